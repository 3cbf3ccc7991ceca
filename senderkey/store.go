package senderkey

import "github.com/sirupsen/logrus"

// Store manages sender-key ratchets for every member of a room at a
// single epoch. Immutable after creation: an epoch transition produces
// a fresh Store rather than mutating this one in place, so forward
// secrecy holds even if an old Store lingers in memory.
type Store struct {
	epoch    uint64
	ratchets map[uint32]*SymmetricRatchet
}

// InitializeEpoch derives fresh ratchets for every member index from
// epochSecret. Called after an MLS commit advances the epoch.
func InitializeEpoch(epochSecret []byte, epoch uint64, memberIndices []uint32) *Store {
	logrus.WithFields(logrus.Fields{
		"function": "InitializeEpoch",
		"package":  "senderkey",
		"epoch":    epoch,
		"members":  len(memberIndices),
	}).Debug("initializing sender key store for epoch")

	ratchets := make(map[uint32]*SymmetricRatchet, len(memberIndices))
	for _, idx := range memberIndices {
		seed := DeriveSenderKeySeed(epochSecret, epoch, idx)
		ratchets[idx] = NewSymmetricRatchet(seed)
	}
	return &Store{epoch: epoch, ratchets: ratchets}
}

// Epoch returns the epoch this store's keys are valid for.
func (s *Store) Epoch() uint64 { return s.epoch }

// MemberCount returns the number of senders with initialized ratchets.
func (s *Store) MemberCount() int { return len(s.ratchets) }

// HasMember reports whether senderIndex has an initialized ratchet.
func (s *Store) HasMember(senderIndex uint32) bool {
	_, ok := s.ratchets[senderIndex]
	return ok
}

// Encrypt advances senderIndex's ratchet and encrypts plaintext under
// the resulting message key.
func (s *Store) Encrypt(senderIndex uint32, plaintext []byte, randomSuffix [NonceRandomSize]byte) (*EncryptedMessage, error) {
	ratchet, ok := s.ratchets[senderIndex]
	if !ok {
		return nil, &SenderKeyError{Kind: ErrUnknownSender, SenderIndex: senderIndex}
	}

	messageKey, err := ratchet.Advance()
	if err != nil {
		return nil, err
	}
	defer messageKey.Wipe()

	return EncryptMessage(plaintext, messageKey, s.epoch, senderIndex, randomSuffix)
}

// Decrypt advances the sender's ratchet to match encrypted's generation
// and decrypts it.
func (s *Store) Decrypt(encrypted *EncryptedMessage) ([]byte, error) {
	if encrypted.Epoch != s.epoch {
		return nil, &SenderKeyError{Kind: ErrEpochMismatch, ExpectedEpoch: s.epoch, ActualEpoch: encrypted.Epoch}
	}

	ratchet, ok := s.ratchets[encrypted.SenderIndex]
	if !ok {
		return nil, &SenderKeyError{Kind: ErrUnknownSender, SenderIndex: encrypted.SenderIndex}
	}

	messageKey, err := ratchet.AdvanceTo(encrypted.Generation)
	if err != nil {
		return nil, err
	}
	defer messageKey.Wipe()

	return DecryptMessage(encrypted, messageKey)
}

// Generation returns senderIndex's current ratchet generation.
func (s *Store) Generation(senderIndex uint32) (generation uint32, ok bool) {
	ratchet, ok := s.ratchets[senderIndex]
	if !ok {
		return 0, false
	}
	return ratchet.Generation(), true
}
