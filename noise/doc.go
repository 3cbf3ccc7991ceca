// Package noise wraps the IK and XX handshake patterns of the formally
// verified flynn/noise library, with ChaCha20-Poly1305 encryption, SHA256
// hashing, and Curve25519 key exchange. The mls package uses the IK
// pattern to carry a Welcome's payload, including the group's opaque
// epoch secret, from an inviter to a joining client; the epoch secret
// itself is generated and advanced by the mls package, not derived here.
//
// # Pattern Selection
//
//	Pattern │ When to Use                                │ Security Properties
//	────────┼────────────────────────────────────────────┼────────────────────────────────────────
//	IK      │ Welcome delivery (joiner's key known)      │ Mutual auth, forward secrecy, KCI resist
//	XX      │ Neither side knows the other's key         │ Mutual auth, forward secrecy
//
// # IK Pattern (Initiator with Knowledge)
//
// Used to deliver a Welcome: the inviter, as initiator, already knows the
// joining client's static public key from the KeyPackage the Welcome is
// built against.
//
// Message flow (2 messages, one round trip):
//
//	Initiator                              Responder
//	─────────                              ─────────
//	-> e, es, s, ss  (ephemeral, static)
//	                                       <- e, ee, se  (ephemeral)
//	[handshake complete]
//
// Example usage:
//
//	ik, err := noise.NewIKHandshake(myPrivKey, peerPubKey, noise.Initiator)
//	if err != nil {
//	    return err
//	}
//	msg, _, err := ik.WriteMessage(nil, nil)
//	// transmit msg to the peer...
//	payload, complete, err := ik.ReadMessage(response)
//	if complete {
//	    send, recv, _ := ik.GetCipherStates()
//	    // send/recv encrypt and decrypt further messages
//	}
//
// # XX Pattern (Interactive Exchange)
//
// For a handshake where neither side knows the other's static key in
// advance. No other package in this module uses it; external joins read
// the GroupInfo body without a handshake.
//
// Message flow (3 messages):
//
//	Initiator                              Responder
//	─────────                              ─────────
//	-> e           (ephemeral only)
//	                                       <- e, ee, s, es
//	-> s, se       (static exchange)
//	[handshake complete]
//
// # Security Considerations
//
// Replay protection: each IKHandshake carries a unique 32-byte nonce via
// GetNonce(); callers track used nonces to reject replays.
//
// Timestamp validation: GetTimestamp() returns the handshake's creation
// time; callers reject handshakes outside an acceptable freshness window.
//
// Key verification: after a successful handshake, GetRemoteStaticKey()
// returns the peer's static key for comparison against the room's known
// member-credential set.
//
// Secure memory: private key material is wiped via crypto.ZeroBytes()
// immediately after key derivation.
//
// # Cipher Suite
//
// All handshakes use Curve25519 for DH, ChaCha20-Poly1305 for AEAD, and
// SHA256 for hashing and key derivation.
//
// # Thread Safety
//
// IKHandshake and XXHandshake instances should be driven from a single
// goroutine: the handshake protocol requires sequential message processing.
// The resulting CipherStates from GetCipherStates() are NOT thread-safe;
// concurrent encrypt/decrypt calls require external synchronization.
//
// # Error Handling
//
//   - ErrHandshakeNotComplete: operation requires a completed handshake
//   - ErrInvalidMessage: received message is invalid for the current state
//   - ErrHandshakeComplete: handshake already finished
package noise
