package room

import (
	"testing"

	"github.com/opd-ai/kalandra/crypto"
	"github.com/opd-ai/kalandra/mls"
	"github.com/opd-ai/kalandra/wire"
)

func testFrame(t *testing.T, senderID, epoch uint64) *wire.Frame {
	t.Helper()
	f, err := wire.New(wire.FrameHeader{
		Opcode:   wire.OpcodeAppMessage,
		RoomID:   testRoomID(1),
		SenderID: senderID,
		Epoch:    epoch,
	}, nil)
	if err != nil {
		t.Fatalf("wire.New() error = %v", err)
	}
	return f
}

func testState(epoch uint64, members []uint64) *mls.GroupState {
	return &mls.GroupState{Epoch: epoch, Members: members}
}

func TestValidateFrameAccepted(t *testing.T) {
	frame := testFrame(t, 100, 5)
	state := testState(5, []uint64{100, 200, 300})

	result := ValidateFrame(frame, 5, state)
	if !result.Accepted {
		t.Errorf("ValidateFrame() rejected: %s", result.Reason)
	}
}

func TestValidateFrameOldEpochRejected(t *testing.T) {
	frame := testFrame(t, 100, 3)
	state := testState(5, []uint64{100, 200})

	result := ValidateFrame(frame, 5, state)
	if result.Accepted {
		t.Fatal("expected rejection for old epoch")
	}
	if result.Reason == "" {
		t.Error("expected a rejection reason")
	}
}

func TestValidateFrameFutureEpochRejected(t *testing.T) {
	frame := testFrame(t, 100, 7)
	state := testState(5, []uint64{100, 200})

	result := ValidateFrame(frame, 5, state)
	if result.Accepted {
		t.Fatal("expected rejection for future epoch")
	}
}

func TestValidateFrameNonMemberRejected(t *testing.T) {
	frame := testFrame(t, 999, 5)
	state := testState(5, []uint64{100, 200, 300})

	result := ValidateFrame(frame, 5, state)
	if result.Accepted {
		t.Fatal("expected rejection for non-member sender")
	}
}

func TestValidateFrameAllMembersAccepted(t *testing.T) {
	state := testState(5, []uint64{100, 200, 300})

	for _, sender := range []uint64{100, 200, 300} {
		frame := testFrame(t, sender, 5)
		result := ValidateFrame(frame, 5, state)
		if !result.Accepted {
			t.Errorf("sender %d rejected: %s", sender, result.Reason)
		}
	}
}

func TestValidateFrameNoStateAcceptsAnyEpoch(t *testing.T) {
	// Before any GroupState has been derived there is nothing to
	// validate epoch or membership against, so the room's first-ever
	// ordered frame is accepted whatever epoch it targets.
	for _, epoch := range []uint64{0, 1, 5} {
		frame := testFrame(t, 100, epoch)
		result := ValidateFrameNoState(frame)
		if !result.Accepted {
			t.Errorf("epoch %d: ValidateFrameNoState() rejected: %s", epoch, result.Reason)
		}
	}
}

func TestValidateFrameValidSignatureAccepted(t *testing.T) {
	seed, public, err := crypto.GenerateSigningSeed()
	if err != nil {
		t.Fatalf("GenerateSigningSeed() error = %v", err)
	}

	frame := testFrame(t, 100, 5)
	signature, err := crypto.Sign(frame.SignedPrefix(), seed)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	copy(frame.Header.Signature[:], signature[:])

	state := &mls.GroupState{
		Epoch:      5,
		Members:    []uint64{100},
		MemberKeys: map[uint64][32]byte{100: public},
	}

	result := ValidateFrame(frame, 5, state)
	if !result.Accepted {
		t.Errorf("ValidateFrame() rejected valid signature: %s", result.Reason)
	}
}

func TestValidateFrameInvalidSignatureRejected(t *testing.T) {
	seed, _, err := crypto.GenerateSigningSeed()
	if err != nil {
		t.Fatalf("GenerateSigningSeed() error = %v", err)
	}
	_, wrongPublic, err := crypto.GenerateSigningSeed()
	if err != nil {
		t.Fatalf("GenerateSigningSeed() error = %v", err)
	}

	frame := testFrame(t, 100, 5)
	signature, err := crypto.Sign(frame.SignedPrefix(), seed)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	copy(frame.Header.Signature[:], signature[:])

	state := &mls.GroupState{
		Epoch:      5,
		Members:    []uint64{100},
		MemberKeys: map[uint64][32]byte{100: wrongPublic},
	}

	result := ValidateFrame(frame, 5, state)
	if result.Accepted {
		t.Fatal("expected rejection for signature verified against the wrong key")
	}
}

func TestValidateFrameNoKeySkipsSignatureCheck(t *testing.T) {
	frame := testFrame(t, 100, 5)
	state := testState(5, []uint64{100, 200, 300})

	result := ValidateFrame(frame, 5, state)
	if !result.Accepted {
		t.Errorf("ValidateFrame() rejected: %s", result.Reason)
	}
}
