package senderkey

import "fmt"

// SenderKeyError is the structured error type for sender-key ratchet and
// record-encryption failures. Fatal errors indicate a protocol violation
// and should drop the message; recoverable errors signal the caller to
// request a sync.
type SenderKeyError struct {
	Kind SenderKeyErrorKind

	// UnknownSender
	SenderIndex uint32

	// RatchetTooFarBehind
	Current   uint32
	Requested uint32

	// DecryptionFailed
	Reason string

	// EpochMismatch
	ExpectedEpoch uint64
	ActualEpoch   uint64

	// InvalidKeyLength
	ExpectedLen int
	ActualLen   int

	// GenerationOverflow
	CurrentGeneration uint32
}

// SenderKeyErrorKind enumerates the closed taxonomy of sender-key failures.
type SenderKeyErrorKind int

const (
	ErrUnknownSender SenderKeyErrorKind = iota
	ErrRatchetTooFarBehind
	ErrDecryptionFailed
	ErrEpochMismatch
	ErrInvalidKeyLength
	ErrGenerationOverflow
)

func (e *SenderKeyError) Error() string {
	switch e.Kind {
	case ErrUnknownSender:
		return fmt.Sprintf("senderkey: unknown sender: %d", e.SenderIndex)
	case ErrRatchetTooFarBehind:
		return fmt.Sprintf("senderkey: ratchet too far behind: at generation %d, need %d", e.Current, e.Requested)
	case ErrDecryptionFailed:
		return fmt.Sprintf("senderkey: decryption failed: %s", e.Reason)
	case ErrEpochMismatch:
		return fmt.Sprintf("senderkey: epoch mismatch: expected %d, got %d", e.ExpectedEpoch, e.ActualEpoch)
	case ErrInvalidKeyLength:
		return fmt.Sprintf("senderkey: invalid key length: expected %d, got %d", e.ExpectedLen, e.ActualLen)
	case ErrGenerationOverflow:
		return fmt.Sprintf("senderkey: ratchet generation overflow at %d", e.CurrentGeneration)
	default:
		return "senderkey: error"
	}
}

// Fatal reports whether this error is unrecoverable (a protocol violation
// or bug) as opposed to one that a sync/retry can resolve.
func (e *SenderKeyError) Fatal() bool {
	switch e.Kind {
	case ErrDecryptionFailed, ErrInvalidKeyLength, ErrGenerationOverflow:
		return true
	default:
		return false
	}
}
