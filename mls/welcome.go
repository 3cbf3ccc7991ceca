package mls

import (
	"encoding/binary"
	"fmt"
)

// welcomeBody is the plaintext carried inside the Noise IK handshake
// payload when inviting a new member: enough to reconstruct the joining
// client's ClientGroup without contacting the sequencer first.
type welcomeBody struct {
	roomID    RoomID
	epoch     uint64
	members   []uint64
	secret    [32]byte
	stateHash [32]byte
}

// encodeWelcomeBody lays out: room_id(16) || epoch_be(8) || member_count_be(4)
// || members(8 each) || epoch_secret(32) || state_hash(32).
func encodeWelcomeBody(roomID RoomID, epoch uint64, members []uint64, secret [32]byte, stateHash [32]byte) []byte {
	out := make([]byte, 0, 16+8+4+8*len(members)+32+32)
	out = append(out, roomID[:]...)
	out = binary.BigEndian.AppendUint64(out, epoch)
	out = binary.BigEndian.AppendUint32(out, uint32(len(members)))
	for _, m := range members {
		out = binary.BigEndian.AppendUint64(out, m)
	}
	out = append(out, secret[:]...)
	out = append(out, stateHash[:]...)
	return out
}

func decodeWelcomeBody(b []byte) (*welcomeBody, error) {
	const fixedSize = 16 + 8 + 4
	if len(b) < fixedSize {
		return nil, &MlsError{Kind: ErrInvalidState, Reason: "welcome body truncated"}
	}

	var body welcomeBody
	copy(body.roomID[:], b[0:16])
	body.epoch = binary.BigEndian.Uint64(b[16:24])
	memberCount := binary.BigEndian.Uint32(b[24:28])

	offset := fixedSize
	need := offset + int(memberCount)*8 + 32 + 32
	if len(b) < need {
		return nil, &MlsError{Kind: ErrInvalidState, Reason: fmt.Sprintf("welcome body truncated: need %d bytes, have %d", need, len(b))}
	}

	body.members = make([]uint64, memberCount)
	for i := range body.members {
		body.members[i] = binary.BigEndian.Uint64(b[offset : offset+8])
		offset += 8
	}

	copy(body.secret[:], b[offset:offset+32])
	offset += 32
	copy(body.stateHash[:], b[offset:offset+32])

	return &body, nil
}
