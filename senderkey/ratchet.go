package senderkey

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/opd-ai/kalandra/crypto"
)

// maxSkip bounds the work done catching a ratchet up to a later generation
// when messages arrive out of order.
const maxSkip = 1000

const (
	chainLabel   = "chain"
	messageLabel = "message"
)

// MessageKey is a single-use symmetric key derived from a SymmetricRatchet.
// Callers MUST zeroize it via Wipe once used.
type MessageKey struct {
	key        [32]byte
	generation uint32
}

// Key returns the 32-byte XChaCha20-Poly1305 key.
func (k *MessageKey) Key() [32]byte { return k.key }

// Generation returns the ratchet generation this key was derived from.
func (k *MessageKey) Generation() uint32 { return k.generation }

// Wipe zeroizes the key material. Call once the key is no longer needed.
func (k *MessageKey) Wipe() {
	crypto.ZeroBytes(k.key[:])
}

// SymmetricRatchet is a forward-secure chain of message keys derived from
// an initial seed. Each Advance call derives a message key and steps the
// chain key forward, then wipes the superseded chain key.
type SymmetricRatchet struct {
	chainKey   [32]byte
	generation uint32
}

// NewSymmetricRatchet creates a ratchet from a sender key seed. The seed
// becomes the initial chain key at generation 0.
func NewSymmetricRatchet(seed [32]byte) *SymmetricRatchet {
	return &SymmetricRatchet{chainKey: seed}
}

// Generation returns the number of times Advance has been called.
func (r *SymmetricRatchet) Generation() uint32 { return r.generation }

// Advance derives the message key for the current generation, steps the
// chain key forward, and wipes the superseded chain key.
func (r *SymmetricRatchet) Advance() (*MessageKey, error) {
	if r.generation == ^uint32(0) {
		return nil, &SenderKeyError{Kind: ErrGenerationOverflow, CurrentGeneration: r.generation}
	}

	messageKey := r.deriveKeyed(messageLabel)
	nextChainKey := r.deriveKeyed(chainLabel)

	crypto.ZeroBytes(r.chainKey[:])
	r.chainKey = nextChainKey

	currentGen := r.generation
	r.generation++

	return &MessageKey{key: messageKey, generation: currentGen}, nil
}

// AdvanceTo steps the ratchet forward to the given target generation,
// returning the message key for that generation. Used to catch up on
// out-of-order deliveries. target must be >= the current generation and
// within maxSkip steps of it.
func (r *SymmetricRatchet) AdvanceTo(target uint32) (*MessageKey, error) {
	if target < r.generation {
		return nil, &SenderKeyError{Kind: ErrRatchetTooFarBehind, Current: r.generation, Requested: target}
	}

	skipCount := target - r.generation
	if skipCount > maxSkip {
		return nil, &SenderKeyError{Kind: ErrRatchetTooFarBehind, Current: r.generation, Requested: target}
	}

	var messageKey *MessageKey
	for r.generation <= target {
		key, err := r.Advance()
		if err != nil {
			return nil, err
		}
		messageKey = key
	}

	return messageKey, nil
}

// deriveKeyed computes HMAC-SHA256(chainKey, label).
func (r *SymmetricRatchet) deriveKeyed(label string) [32]byte {
	mac := hmac.New(sha256.New, r.chainKey[:])
	mac.Write([]byte(label))
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}
