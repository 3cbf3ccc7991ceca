package room

import (
	"fmt"

	"github.com/opd-ai/kalandra/crypto"
	"github.com/opd-ai/kalandra/mls"
	"github.com/opd-ai/kalandra/wire"
)

// ValidationResult is the outcome of checking a frame against current
// MLS group state. Rejection is a normal outcome, not an error: only
// an internal failure (none currently possible) would surface as an
// error from ValidateFrame.
type ValidationResult struct {
	Accepted bool
	Reason   string
}

// ValidateFrame checks frame's epoch, sender membership, and (if a
// verifying key is on file for the sender) its Ed25519 signature
// against the room's current MLS state. It does not perform full MLS
// proposal/commit processing or tree-hash validation — the group
// client machinery in mls/ owns that.
func ValidateFrame(frame *wire.Frame, currentEpoch uint64, state *mls.GroupState) ValidationResult {
	// A Commit/ExternalCommit's header epoch names the epoch it
	// establishes, one past the group's current epoch; every other
	// opcode is ordered against the epoch the group is already at.
	wantEpoch := currentEpoch
	if frame.Header.Opcode == wire.OpcodeCommit || frame.Header.Opcode == wire.OpcodeExternalCommit {
		wantEpoch = currentEpoch + 1
	}
	if frame.Header.Epoch != wantEpoch {
		return ValidationResult{Reason: fmt.Sprintf(
			"epoch mismatch: expected %d, got %d", wantEpoch, frame.Header.Epoch)}
	}

	senderID := frame.Header.SenderID
	// An ExternalCommit's sender is by definition not yet a member;
	// that's the frame that adds them.
	if frame.Header.Opcode != wire.OpcodeExternalCommit && !state.IsMember(senderID) {
		return ValidationResult{Reason: fmt.Sprintf("sender %d not in group", senderID)}
	}

	if verifyingKey, ok := state.MemberKey(senderID); ok {
		signedData := frame.SignedPrefix()

		var signature crypto.Signature
		copy(signature[:], frame.Header.Signature[:])

		valid, err := crypto.Verify(signedData, signature, verifyingKey)
		if err != nil || !valid {
			return ValidationResult{Reason: fmt.Sprintf(
				"signature verification failed for sender %d", senderID)}
		}
	}

	return ValidationResult{Accepted: true}
}

// ValidateFrameNoState performs the minimal sanity check available
// before a room has any cached MLS state: membership and epoch can't
// be checked against anything yet, so the room's first-ever ordered
// frame (whatever its opcode, at whatever epoch its author targets) is
// accepted unconditionally. Once that frame is processed, a GroupState
// is derived and ValidateFrame takes over for everything after it.
func ValidateFrameNoState(frame *wire.Frame) ValidationResult {
	return ValidationResult{Accepted: true}
}
