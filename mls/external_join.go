package mls

import (
	"fmt"

	"github.com/opd-ai/kalandra/crypto"
)

// JoinFromGroupInfo reconstructs a ClientGroup from a GroupInfo body
// fetched from the server (the body layout is shared with Welcome, so
// decoding reuses decodeWelcomeBody). External join is server-mediated:
// the joiner sends a bare GroupInfoRequest, the server answers directly
// from its stored GroupInfo, and the joiner reconstructs its view here
// before sending an ExternalCommit. GroupInfo carries no key addressed
// to the joiner, so a fresh static key is generated locally.
func JoinFromGroupInfo(memberID uint64, body []byte) (*ClientGroup, error) {
	decoded, err := decodeWelcomeBody(body)
	if err != nil {
		return nil, err
	}

	staticKey, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("mls: generating static keypair: %w", err)
	}

	return &ClientGroup{
		roomID:      decoded.roomID,
		memberID:    memberID,
		epoch:       decoded.epoch,
		stateHash:   decoded.stateHash,
		members:     decoded.members,
		memberKeys:  map[uint64][32]byte{},
		epochSecret: decoded.secret,
		staticKey:   staticKey,
	}, nil
}
