package mls

import (
	"encoding/binary"
	"fmt"
)

// EncodeCommitBody lays out epoch_be(8) || member_count_be(4) ||
// members(8 each): the plaintext membership snapshot a Commit frame
// carries in its payload. Unlike a welcome/GroupInfo body, it never
// carries the epoch secret, so the sequencing server can read it to
// track membership without holding any group key material.
func EncodeCommitBody(epoch uint64, members []uint64) []byte {
	out := make([]byte, 0, 8+4+8*len(members))
	out = binary.BigEndian.AppendUint64(out, epoch)
	out = binary.BigEndian.AppendUint32(out, uint32(len(members)))
	for _, m := range members {
		out = binary.BigEndian.AppendUint64(out, m)
	}
	return out
}

// DecodeCommitBody reverses EncodeCommitBody.
func DecodeCommitBody(b []byte) (epoch uint64, members []uint64, err error) {
	const fixedSize = 8 + 4
	if len(b) < fixedSize {
		return 0, nil, &MlsError{Kind: ErrInvalidState, Reason: "commit body truncated"}
	}

	epoch = binary.BigEndian.Uint64(b[0:8])
	count := binary.BigEndian.Uint32(b[8:12])

	need := fixedSize + int(count)*8
	if len(b) < need {
		return 0, nil, &MlsError{Kind: ErrInvalidState, Reason: fmt.Sprintf("commit body truncated: need %d bytes, have %d", need, len(b))}
	}

	members = make([]uint64, count)
	offset := fixedSize
	for i := range members {
		members[i] = binary.BigEndian.Uint64(b[offset : offset+8])
		offset += 8
	}
	return epoch, members, nil
}
