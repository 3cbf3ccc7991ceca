// Package mls implements the client-side group membership state machine.
//
// Full MLS (RFC 9420) ratchet-tree math and HPKE are out of scope; this
// package treats the group's cryptographic core as an opaque epoch
// secret. The creator draws the first secret from its random source, and
// every merged local commit or applied remote commit advances it with
// HKDF. A Welcome carries the next epoch's secret to a joining client
// inside a Noise IK handshake from the noise package, initiated by the
// inviter, who knows the joining client's static key from its
// KeyPackage. An external joiner reads the group state from the GroupInfo
// body (JoinFromGroupInfo) with no handshake. The epoch secret is consumed
// by the senderkey package to derive per-sender ratchets.
//
// ClientGroup is sans-I/O: every state-changing method takes its inputs
// explicitly, updates the group in place, and returns a list of Actions
// for the caller to execute (send a frame, deliver a message, log an event).
package mls
