// Package chaosstorage wraps a storage.Storage with deterministic,
// seeded fault injection, so harness scenarios can exercise the
// server driver's error-handling paths without relying on a real,
// flaky backend.
package chaosstorage

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/kalandra/mls"
	"github.com/opd-ai/kalandra/storage"
	"github.com/opd-ai/kalandra/wire"
)

// defaultSeed matches the fixed default the reference chaos wrapper
// uses when the caller doesn't care about a specific seed, only that
// repeated runs reproduce the same failure pattern.
const defaultSeed = 0x123456789ABCDEF0

// Storage decorates an inner storage.Storage, failing each operation
// independently with probability failureRate before delegating. Safe
// for concurrent use.
type Storage struct {
	inner       storage.Storage
	failureRate float64

	mu  sync.Mutex
	rng *rand.Rand

	operationCount uint64
}

// New wraps inner with a chaos layer using the package's default seed.
// failureRate must be in [0.0, 1.0]; New panics otherwise, mirroring
// the assertion in the reference fault-injection wrapper this is
// grounded on.
func New(inner storage.Storage, failureRate float64) *Storage {
	return WithSeed(inner, failureRate, defaultSeed)
}

// WithSeed wraps inner with an explicit seed, for chaos runs that need
// a reproducible failure pattern distinct from the package default.
func WithSeed(inner storage.Storage, failureRate float64, seed int64) *Storage {
	if failureRate < 0.0 || failureRate > 1.0 {
		panic("chaosstorage: failureRate must be between 0.0 and 1.0")
	}
	return &Storage{
		inner:       inner,
		failureRate: failureRate,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Inner returns the wrapped storage, for asserting on ground-truth
// state after a chaos run.
func (s *Storage) Inner() storage.Storage { return s.inner }

// OperationCount returns how many storage operations have been
// attempted through this wrapper, chaos-failed or not.
func (s *Storage) OperationCount() uint64 {
	return atomic.LoadUint64(&s.operationCount)
}

func (s *Storage) shouldFail() bool {
	atomic.AddUint64(&s.operationCount, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.failureRate
}

var errInjected = &storage.StorageError{Kind: storage.ErrIo, Detail: "chaotic failure injection"}

func (s *Storage) StoreFrame(roomID [16]byte, logIndex uint64, frame *wire.Frame) error {
	if s.shouldFail() {
		return errInjected
	}
	return s.inner.StoreFrame(roomID, logIndex, frame)
}

func (s *Storage) LatestLogIndex(roomID [16]byte) (uint64, bool, error) {
	if s.shouldFail() {
		return 0, false, errInjected
	}
	return s.inner.LatestLogIndex(roomID)
}

func (s *Storage) LoadFrames(roomID [16]byte, from uint64, limit int) ([]*wire.Frame, error) {
	if s.shouldFail() {
		return nil, errInjected
	}
	return s.inner.LoadFrames(roomID, from, limit)
}

func (s *Storage) StoreMlsState(roomID [16]byte, state *mls.GroupState) error {
	if s.shouldFail() {
		return errInjected
	}
	return s.inner.StoreMlsState(roomID, state)
}

func (s *Storage) LoadMlsState(roomID [16]byte) (*mls.GroupState, error) {
	if s.shouldFail() {
		return nil, errInjected
	}
	return s.inner.LoadMlsState(roomID)
}
