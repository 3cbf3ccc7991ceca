// Package wire implements the fixed-size binary frame header used by every
// room protocol message: a 128-byte header followed by an opaque payload.
//
// The header carries only what the server needs to route and order a
// frame without ever inspecting the payload: opcode, room id, sender id,
// log index (doubling as recipient id for Welcome), epoch, and an Ed25519
// signature over a deterministic header prefix. Encode and Decode are
// pure, panic-free, and round-trip exactly: decode(encode(f)) == f for
// any valid frame.
//
// Example:
//
//	f, err := wire.New(wire.FrameHeader{
//	    Opcode: wire.OpcodeAppMessage,
//	    RoomID: roomID,
//	    SenderID: senderID,
//	}, payload)
//	if err != nil {
//	    return err
//	}
//	encoded := f.Encode()
//	decoded, err := wire.Decode(encoded)
package wire
