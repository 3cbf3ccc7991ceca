// Package env abstracts wall-clock time and randomness behind a single
// interface.
//
// ProductionEnv wraps the real clock and crypto/rand. SimulatedEnv uses
// a virtual clock and a seeded PRNG, so the deterministic simulation
// harness reproduces every value it draws from an Env from a seed. Not
// all time and randomness goes through env: X25519 key generation
// (crypto.GenerateKeyPair), the noise package's handshake randomness and
// timestamps, and mls.NewRoomID read crypto/rand or the real clock
// directly.
package env
