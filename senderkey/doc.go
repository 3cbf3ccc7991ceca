// Package senderkey implements the forward-secure symmetric ratchet and
// AEAD record codec used to encrypt application messages under an MLS
// epoch secret.
//
// A sender key seed is derived from the opaque epoch secret via HKDF-SHA256
// (DeriveSenderKeySeed); the seed initializes a SymmetricRatchet, whose
// Advance/AdvanceTo calls hand out single-use MessageKeys; EncryptMessage
// and DecryptMessage run XChaCha20-Poly1305 over those keys with a
// deterministic, collision-resistant nonce.
//
// Example:
//
//	seed := senderkey.DeriveSenderKeySeed(epochSecret, epoch, senderIndex)
//	ratchet := senderkey.NewSymmetricRatchet(seed)
//	key, err := ratchet.Advance()
//	if err != nil {
//	    return err
//	}
//	encrypted, err := senderkey.EncryptMessage(plaintext, key, epoch, senderIndex, randomSuffix)
package senderkey
