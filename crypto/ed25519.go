package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
)

// SignatureSize is the size of an Ed25519 signature in bytes.
const SignatureSize = ed25519.SignatureSize

// Signature is an Ed25519 signature over a frame header.
type Signature [SignatureSize]byte

// Sign creates an Ed25519 signature for a message using the private key.
func Sign(message []byte, privateKey [32]byte) (Signature, error) {
	if len(message) == 0 {
		return Signature{}, errors.New("empty message")
	}

	// Ed25519 private keys are 64 bytes (32 bytes seed + 32 bytes public key)
	edPrivateKey := ed25519.NewKeyFromSeed(privateKey[:])

	signatureBytes := ed25519.Sign(edPrivateKey, message)

	var signature Signature
	copy(signature[:], signatureBytes)

	return signature, nil
}

// GenerateSigningSeed creates a fresh random Ed25519 seed and its
// corresponding public key, for use with Sign and Verify. This is a
// distinct identity from the X25519 KeyPair used for Noise handshakes.
func GenerateSigningSeed() (seed [32]byte, public [32]byte, err error) {
	if _, err := rand.Read(seed[:]); err != nil {
		return seed, public, err
	}
	pub := ed25519.NewKeyFromSeed(seed[:]).Public().(ed25519.PublicKey)
	copy(public[:], pub)
	return seed, public, nil
}

// Verify checks if a signature is valid for a message and public key.
func Verify(message []byte, signature Signature, publicKey [32]byte) (bool, error) {
	if len(message) == 0 {
		return false, errors.New("empty message")
	}

	var edPublicKey [ed25519.PublicKeySize]byte
	copy(edPublicKey[:], publicKey[:])

	return ed25519.Verify(edPublicKey[:], message, signature[:]), nil
}
