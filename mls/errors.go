package mls

import "fmt"

// MlsErrorKind enumerates the closed taxonomy of client group failures.
type MlsErrorKind int

const (
	ErrNotMember MlsErrorKind = iota
	ErrAlreadyMember
	ErrEpochMismatch
	ErrHandshakeFailed
	ErrInvalidState
	ErrCommitTimeout
)

// MlsError is the structured error type for ClientGroup operations.
type MlsError struct {
	Kind MlsErrorKind

	// NotMember / AlreadyMember
	MemberID uint64

	// EpochMismatch
	ExpectedEpoch uint64
	ActualEpoch   uint64

	// HandshakeFailed / InvalidState
	Reason string
}

func (e *MlsError) Error() string {
	switch e.Kind {
	case ErrNotMember:
		return fmt.Sprintf("mls: member %d is not in the group", e.MemberID)
	case ErrAlreadyMember:
		return fmt.Sprintf("mls: member %d is already in the group", e.MemberID)
	case ErrEpochMismatch:
		return fmt.Sprintf("mls: epoch mismatch: expected %d, got %d", e.ExpectedEpoch, e.ActualEpoch)
	case ErrHandshakeFailed:
		return fmt.Sprintf("mls: handshake failed: %s", e.Reason)
	case ErrInvalidState:
		return fmt.Sprintf("mls: invalid state: %s", e.Reason)
	case ErrCommitTimeout:
		return "mls: pending commit timed out"
	default:
		return "mls: error"
	}
}
