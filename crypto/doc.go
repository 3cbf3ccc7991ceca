// Package crypto implements the low-level cryptographic primitives shared by
// the room protocol: the X25519 static key pairs used as the opaque MLS
// engine's identity, Ed25519 signatures over frame headers, and secure
// memory handling for key material that must not outlive its use.
//
// The sender-key ratchet and record AEAD live in package senderkey; the
// opaque group-epoch engine lives in package noise. This package supplies
// the key primitives both depend on.
//
// # Core Types
//
//   - [KeyPair]: X25519 key pair used as a handshake static key
//   - [Signature]: Ed25519 signature over a frame header
//
// # Key Generation
//
//	keyPair, err := crypto.GenerateKeyPair()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer crypto.WipeKeyPair(keyPair)
//
//	// Recreate a key pair from a previously persisted secret
//	keyPair, err = crypto.FromSecretKey(secretKeyBytes)
//
// # Digital Signatures
//
//	signature, _ := crypto.Sign(frameHeaderBytes, privateKey)
//	valid, _ := crypto.Verify(frameHeaderBytes, signature, publicKey)
//
// # Secure Memory Handling
//
// Key material must be wiped once it is no longer needed:
//
//	defer crypto.SecureWipe(sensitiveData)
//	defer crypto.WipeKeyPair(keyPair)
//
// [SecureWipe] uses a constant-time XOR via crypto/subtle so the compiler
// cannot optimize the wipe away.
//
// # Thread Safety
//
// All exported functions in this package are pure or operate on
// caller-owned data; none retain internal mutable state.
package crypto
