package senderkey

import (
	"bytes"
	"testing"
)

func TestDeriveSenderKeySeedDeterministic(t *testing.T) {
	secret := []byte("a sufficiently long epoch secret for hkdf testing")

	a := DeriveSenderKeySeed(secret, 7, 3)
	b := DeriveSenderKeySeed(secret, 7, 3)

	if !bytes.Equal(a[:], b[:]) {
		t.Error("identical inputs must produce identical seeds")
	}
}

func TestDeriveSenderKeySeedVariesByEpoch(t *testing.T) {
	secret := []byte("a sufficiently long epoch secret for hkdf testing")

	a := DeriveSenderKeySeed(secret, 7, 3)
	b := DeriveSenderKeySeed(secret, 8, 3)

	if bytes.Equal(a[:], b[:]) {
		t.Error("different epochs must produce different seeds")
	}
}

func TestDeriveSenderKeySeedVariesBySenderIndex(t *testing.T) {
	secret := []byte("a sufficiently long epoch secret for hkdf testing")

	a := DeriveSenderKeySeed(secret, 7, 3)
	b := DeriveSenderKeySeed(secret, 7, 4)

	if bytes.Equal(a[:], b[:]) {
		t.Error("different sender indices must produce different seeds")
	}
}

func TestDeriveSenderKeySeedVariesBySecret(t *testing.T) {
	a := DeriveSenderKeySeed([]byte("epoch secret one value padded"), 7, 3)
	b := DeriveSenderKeySeed([]byte("epoch secret two value padded"), 7, 3)

	if bytes.Equal(a[:], b[:]) {
		t.Error("different epoch secrets must produce different seeds")
	}
}

func TestDeriveAllSenderSeeds(t *testing.T) {
	secret := []byte("a sufficiently long epoch secret for hkdf testing")
	indices := []uint32{0, 1, 2}

	seeds := DeriveAllSenderSeeds(secret, 1, indices)

	if len(seeds) != len(indices) {
		t.Fatalf("len(seeds) = %d, want %d", len(seeds), len(indices))
	}

	for _, idx := range indices {
		want := DeriveSenderKeySeed(secret, 1, idx)
		got, ok := seeds[idx]
		if !ok {
			t.Fatalf("missing seed for sender index %d", idx)
		}
		if !bytes.Equal(want[:], got[:]) {
			t.Errorf("seed for index %d does not match DeriveSenderKeySeed", idx)
		}
	}
}
