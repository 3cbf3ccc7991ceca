package clientdriver

import (
	"encoding/binary"
	"fmt"
)

// KeyPackage is the minimal published-identity bundle a member needs to
// be added to a room: their member id, the X25519 static key used for
// the Welcome handshake, and the Ed25519 key used to verify their frame
// signatures.
type KeyPackage struct {
	MemberID  uint64
	StaticKey [32]byte
	VerifyKey [32]byte
}

// Encode lays out member_id_be(8) || static_key(32) || verify_key(32).
func (kp KeyPackage) Encode() []byte {
	out := make([]byte, 0, 8+32+32)
	out = binary.BigEndian.AppendUint64(out, kp.MemberID)
	out = append(out, kp.StaticKey[:]...)
	out = append(out, kp.VerifyKey[:]...)
	return out
}

// DecodeKeyPackage parses the bytes produced by Encode.
func DecodeKeyPackage(b []byte) (KeyPackage, error) {
	const size = 8 + 32 + 32
	if len(b) != size {
		return KeyPackage{}, fmt.Errorf("clientdriver: key package is %d bytes, want %d", len(b), size)
	}

	var kp KeyPackage
	kp.MemberID = binary.BigEndian.Uint64(b[0:8])
	copy(kp.StaticKey[:], b[8:40])
	copy(kp.VerifyKey[:], b[40:72])
	return kp, nil
}
