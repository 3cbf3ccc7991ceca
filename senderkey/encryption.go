package senderkey

import (
	"encoding/binary"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/chacha20poly1305"
)

// NonceRandomSize is the length of the caller-supplied random nonce tail.
const NonceRandomSize = 8

// EncryptedMessage is the payload body of an AppMessage frame.
type EncryptedMessage struct {
	Epoch       uint64
	SenderIndex uint32
	Generation  uint32
	Nonce       [24]byte
	Ciphertext  []byte
}

// PlaintextLen returns the plaintext length implied by the ciphertext,
// which carries a trailing 16-byte Poly1305 tag.
func (m *EncryptedMessage) PlaintextLen() int {
	const tagSize = 16
	if len(m.Ciphertext) < tagSize {
		return 0
	}
	return len(m.Ciphertext) - tagSize
}

// EncryptMessage encrypts plaintext with XChaCha20-Poly1305 under
// messageKey, using a nonce built from (epoch, senderIndex, generation,
// randomSuffix). The random suffix is supplied by the caller so the
// function stays pure — deterministic given deterministic randomness —
// while still preventing nonce reuse if a protocol bug ever produces the
// same (epoch, sender, generation) tuple twice.
func EncryptMessage(plaintext []byte, messageKey *MessageKey, epoch uint64, senderIndex uint32, randomSuffix [NonceRandomSize]byte) (*EncryptedMessage, error) {
	logger := logrus.WithFields(logrus.Fields{
		"function":     "EncryptMessage",
		"package":      "senderkey",
		"epoch":        epoch,
		"sender_index": senderIndex,
		"generation":   messageKey.Generation(),
	})

	nonce := buildNonce(epoch, senderIndex, messageKey.Generation(), randomSuffix)

	key := messageKey.Key()
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		logger.WithError(err).Error("failed to construct XChaCha20-Poly1305 cipher")
		return nil, &SenderKeyError{Kind: ErrInvalidKeyLength, ExpectedLen: chacha20poly1305.KeySize, ActualLen: len(key)}
	}

	ciphertext := aead.Seal(nil, nonce[:], plaintext, nil)

	logger.Debug("message encrypted")

	return &EncryptedMessage{
		Epoch:       epoch,
		SenderIndex: senderIndex,
		Generation:  messageKey.Generation(),
		Nonce:       nonce,
		Ciphertext:  ciphertext,
	}, nil
}

// DecryptMessage decrypts an EncryptedMessage using messageKey. The
// caller is responsible for advancing the corresponding ratchet to
// encrypted.Generation before calling.
func DecryptMessage(encrypted *EncryptedMessage, messageKey *MessageKey) ([]byte, error) {
	logger := logrus.WithFields(logrus.Fields{
		"function":     "DecryptMessage",
		"package":      "senderkey",
		"epoch":        encrypted.Epoch,
		"sender_index": encrypted.SenderIndex,
		"generation":   encrypted.Generation,
	})

	if messageKey.Generation() != encrypted.Generation {
		return nil, &SenderKeyError{
			Kind: ErrDecryptionFailed,
			Reason: "generation mismatch: key is " +
				strconv.FormatUint(uint64(messageKey.Generation()), 10) + ", message is " + strconv.FormatUint(uint64(encrypted.Generation), 10),
		}
	}

	key := messageKey.Key()
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, &SenderKeyError{Kind: ErrInvalidKeyLength, ExpectedLen: chacha20poly1305.KeySize, ActualLen: len(key)}
	}

	plaintext, err := aead.Open(nil, encrypted.Nonce[:], encrypted.Ciphertext, nil)
	if err != nil {
		logger.Warn("authentication failed while decrypting message")
		return nil, &SenderKeyError{Kind: ErrDecryptionFailed, Reason: "authentication failed"}
	}

	return plaintext, nil
}

// buildNonce lays out the 24-byte XChaCha20 nonce:
// bytes [0:8) epoch, [8:12) sender index, [12:16) generation, [16:24) random.
func buildNonce(epoch uint64, senderIndex, generation uint32, randomSuffix [NonceRandomSize]byte) [24]byte {
	var nonce [24]byte
	binary.BigEndian.PutUint64(nonce[0:8], epoch)
	binary.BigEndian.PutUint32(nonce[8:12], senderIndex)
	binary.BigEndian.PutUint32(nonce[12:16], generation)
	copy(nonce[16:24], randomSuffix[:])
	return nonce
}
