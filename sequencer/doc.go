// Package sequencer assigns monotonic log indices to frames within a
// room, enforcing total ordering across all clients.
//
// The Sequencer is Sans-IO: it never touches Storage directly except
// to read the latest log index when a room is first seen, and it
// returns actions for the caller to execute rather than performing
// broadcast or persistence itself. Given the same input frames in the
// same order, it assigns the same log indices every time.
package sequencer
