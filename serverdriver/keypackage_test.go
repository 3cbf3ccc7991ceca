package serverdriver

import "testing"

func TestKeyPackageStoreAndTake(t *testing.T) {
	r := NewKeyPackageRegistry()

	result := r.Store(42, KeyPackageEntry{Bytes: []byte{1, 2, 3}, HashRef: []byte{4, 5, 6}})
	if result != KeyPackageStored {
		t.Errorf("Store() = %v, want KeyPackageStored", result)
	}
	if !r.Has(42) {
		t.Error("Has(42) = false, want true")
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}

	entry, ok := r.Take(42)
	if !ok {
		t.Fatal("Take(42) ok = false")
	}
	if string(entry.Bytes) != "\x01\x02\x03" {
		t.Errorf("entry.Bytes = %v, want [1 2 3]", entry.Bytes)
	}

	if r.Has(42) {
		t.Error("Has(42) = true after Take, want false")
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d after Take, want 0", r.Count())
	}
}

func TestKeyPackageTakeNonexistentReturnsNotOK(t *testing.T) {
	r := NewKeyPackageRegistry()
	if _, ok := r.Take(999); ok {
		t.Error("Take(999) ok = true, want false")
	}
}

func TestKeyPackageStoreOverwritesPrevious(t *testing.T) {
	r := NewKeyPackageRegistry()
	r.Store(42, KeyPackageEntry{Bytes: []byte{1}})
	r.Store(42, KeyPackageEntry{Bytes: []byte{3}})

	entry, ok := r.Take(42)
	if !ok || string(entry.Bytes) != "\x03" {
		t.Errorf("entry = %+v, want Bytes=[3]", entry)
	}
}

func TestKeyPackageWithCapacity(t *testing.T) {
	r := NewKeyPackageRegistryWithCapacity(5)
	if r.Capacity() != 5 {
		t.Errorf("Capacity() = %d, want 5", r.Capacity())
	}
	if r.IsFull() {
		t.Error("IsFull() = true for empty registry")
	}
}

func TestKeyPackageEvictionWhenFull(t *testing.T) {
	r := NewKeyPackageRegistryWithCapacity(2)

	r.Store(1, KeyPackageEntry{Bytes: []byte{1}})
	r.Store(2, KeyPackageEntry{Bytes: []byte{2}})
	if r.Count() != 2 || !r.IsFull() {
		t.Fatalf("Count()=%d IsFull()=%v, want 2 true", r.Count(), r.IsFull())
	}

	result := r.Store(3, KeyPackageEntry{Bytes: []byte{3}})
	if result != KeyPackageEvicted {
		t.Errorf("Store() = %v, want KeyPackageEvicted", result)
	}

	if r.Count() != 2 {
		t.Errorf("Count() = %d, want 2", r.Count())
	}
	if r.Has(1) {
		t.Error("Has(1) = true, want false (oldest should be evicted)")
	}
	if !r.Has(2) || !r.Has(3) {
		t.Error("expected entries 2 and 3 to remain")
	}
}

func TestKeyPackageOverwriteDoesNotEvict(t *testing.T) {
	r := NewKeyPackageRegistryWithCapacity(2)
	r.Store(1, KeyPackageEntry{Bytes: []byte{1}})
	r.Store(2, KeyPackageEntry{Bytes: []byte{2}})

	result := r.Store(1, KeyPackageEntry{Bytes: []byte{10}})
	if result != KeyPackageStored {
		t.Errorf("Store() overwrite = %v, want KeyPackageStored", result)
	}
	if r.Count() != 2 {
		t.Errorf("Count() = %d, want 2", r.Count())
	}

	entry, ok := r.Take(1)
	if !ok || string(entry.Bytes) != "\x0a" {
		t.Errorf("entry = %+v, want Bytes=[10]", entry)
	}
}

func TestKeyPackageLRUOrderCorrect(t *testing.T) {
	r := NewKeyPackageRegistryWithCapacity(3)

	r.Store(1, KeyPackageEntry{Bytes: []byte{1}})
	r.Store(2, KeyPackageEntry{Bytes: []byte{2}})
	r.Store(3, KeyPackageEntry{Bytes: []byte{3}})

	// Touch entry 2 to make it most recently used.
	r.Store(2, KeyPackageEntry{Bytes: []byte{20}})

	// Adding a 4th entry should evict entry 1 (least recently used).
	r.Store(4, KeyPackageEntry{Bytes: []byte{4}})

	if r.Has(1) {
		t.Error("Has(1) = true, want false (should be evicted as LRU)")
	}
	if !r.Has(2) || !r.Has(3) || !r.Has(4) {
		t.Error("expected entries 2, 3, 4 to remain")
	}
}
