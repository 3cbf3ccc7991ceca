package senderkey

import (
	"bytes"
	"testing"
)

func testSeed(fill byte) [32]byte {
	var seed [32]byte
	for i := range seed {
		seed[i] = fill
	}
	return seed
}

func TestSymmetricRatchetAdvanceIncrementsGeneration(t *testing.T) {
	ratchet := NewSymmetricRatchet(testSeed(0x01))

	key0, err := ratchet.Advance()
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if key0.Generation() != 0 {
		t.Errorf("first key generation = %d, want 0", key0.Generation())
	}

	key1, err := ratchet.Advance()
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if key1.Generation() != 1 {
		t.Errorf("second key generation = %d, want 1", key1.Generation())
	}

	if ratchet.Generation() != 2 {
		t.Errorf("ratchet.Generation() = %d, want 2", ratchet.Generation())
	}

	k0 := key0.Key()
	k1 := key1.Key()
	if bytes.Equal(k0[:], k1[:]) {
		t.Error("successive message keys must differ")
	}
}

func TestSymmetricRatchetDeterministic(t *testing.T) {
	seed := testSeed(0x42)

	r1 := NewSymmetricRatchet(seed)
	r2 := NewSymmetricRatchet(seed)

	k1, err := r1.Advance()
	if err != nil {
		t.Fatalf("r1.Advance() error = %v", err)
	}
	k2, err := r2.Advance()
	if err != nil {
		t.Fatalf("r2.Advance() error = %v", err)
	}

	a, b := k1.Key(), k2.Key()
	if !bytes.Equal(a[:], b[:]) {
		t.Error("same seed must yield same first message key")
	}
}

func TestSymmetricRatchetAdvanceToCatchesUp(t *testing.T) {
	seed := testSeed(0x07)

	reference := NewSymmetricRatchet(seed)
	var want *MessageKey
	for i := 0; i <= 5; i++ {
		k, err := reference.Advance()
		if err != nil {
			t.Fatalf("reference.Advance() error = %v", err)
		}
		want = k
	}

	skipped := NewSymmetricRatchet(seed)
	got, err := skipped.AdvanceTo(5)
	if err != nil {
		t.Fatalf("AdvanceTo(5) error = %v", err)
	}

	wantKey, gotKey := want.Key(), got.Key()
	if !bytes.Equal(wantKey[:], gotKey[:]) {
		t.Error("AdvanceTo must match sequential Advance calls to the same generation")
	}
	if skipped.Generation() != 6 {
		t.Errorf("skipped.Generation() = %d, want 6", skipped.Generation())
	}
}

func TestSymmetricRatchetAdvanceToRejectsPastGeneration(t *testing.T) {
	ratchet := NewSymmetricRatchet(testSeed(0x09))

	if _, err := ratchet.AdvanceTo(3); err != nil {
		t.Fatalf("AdvanceTo(3) error = %v", err)
	}

	_, err := ratchet.AdvanceTo(1)
	if err == nil {
		t.Fatal("expected error advancing to a past generation")
	}
	skErr, ok := err.(*SenderKeyError)
	if !ok {
		t.Fatalf("error type = %T, want *SenderKeyError", err)
	}
	if skErr.Kind != ErrRatchetTooFarBehind {
		t.Errorf("Kind = %v, want ErrRatchetTooFarBehind", skErr.Kind)
	}
}

func TestSymmetricRatchetAdvanceToRejectsExcessiveSkip(t *testing.T) {
	ratchet := NewSymmetricRatchet(testSeed(0x0a))

	_, err := ratchet.AdvanceTo(maxSkip + 1)
	if err == nil {
		t.Fatal("expected error skipping beyond maxSkip")
	}
	skErr, ok := err.(*SenderKeyError)
	if !ok || skErr.Kind != ErrRatchetTooFarBehind {
		t.Fatalf("err = %v, want ErrRatchetTooFarBehind", err)
	}
}

func TestSymmetricRatchetGenerationOverflow(t *testing.T) {
	ratchet := &SymmetricRatchet{chainKey: testSeed(0x0b), generation: ^uint32(0)}

	_, err := ratchet.Advance()
	if err == nil {
		t.Fatal("expected error on generation overflow")
	}
	skErr, ok := err.(*SenderKeyError)
	if !ok || skErr.Kind != ErrGenerationOverflow {
		t.Fatalf("err = %v, want ErrGenerationOverflow", err)
	}
}

func TestMessageKeyWipeZeroesKey(t *testing.T) {
	ratchet := NewSymmetricRatchet(testSeed(0x0c))
	key, err := ratchet.Advance()
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	key.Wipe()

	k := key.Key()
	var zero [32]byte
	if !bytes.Equal(k[:], zero[:]) {
		t.Error("Wipe() must zero the key material")
	}
}
