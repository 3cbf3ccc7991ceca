package chaosstorage

import (
	"testing"

	"github.com/opd-ai/kalandra/storage"
	"github.com/opd-ai/kalandra/wire"
)

func testFrame(roomID [16]byte, logIndex uint64) *wire.Frame {
	frame, err := wire.New(wire.FrameHeader{Opcode: wire.OpcodeAppMessage, RoomID: roomID, LogIndex: logIndex}, nil)
	if err != nil {
		panic(err)
	}
	return frame
}

func TestZeroFailureRateAlwaysSucceeds(t *testing.T) {
	inner := storage.NewMemoryStorage()
	chaos := New(inner, 0.0)

	var roomID [16]byte
	roomID[0] = 1
	for i := uint64(0); i < 100; i++ {
		if err := chaos.StoreFrame(roomID, i, testFrame(roomID, i)); err != nil {
			t.Fatalf("StoreFrame(%d) unexpected error = %v", i, err)
		}
	}

	latest, ok, err := chaos.LatestLogIndex(roomID)
	if err != nil || !ok || latest != 99 {
		t.Errorf("LatestLogIndex() = (%d, %v, %v), want (99, true, nil)", latest, ok, err)
	}
}

func TestFullFailureRateAlwaysFails(t *testing.T) {
	inner := storage.NewMemoryStorage()
	chaos := New(inner, 1.0)

	var roomID [16]byte
	roomID[0] = 2

	if err := chaos.StoreFrame(roomID, 0, testFrame(roomID, 0)); err == nil {
		t.Error("StoreFrame() must fail at 100% failure rate")
	}
	if _, _, err := chaos.LatestLogIndex(roomID); err == nil {
		t.Error("LatestLogIndex() must fail at 100% failure rate")
	}
	if _, err := chaos.LoadFrames(roomID, 0, 10); err == nil {
		t.Error("LoadFrames() must fail at 100% failure rate")
	}
	if err := chaos.StoreMlsState(roomID, nil); err == nil {
		t.Error("StoreMlsState() must fail at 100% failure rate")
	}
	if _, err := chaos.LoadMlsState(roomID); err == nil {
		t.Error("LoadMlsState() must fail at 100% failure rate")
	}
}

func TestDeterministicGivenSameSeed(t *testing.T) {
	var roomID [16]byte
	roomID[0] = 3

	chaos1 := WithSeed(storage.NewMemoryStorage(), 0.5, 42)
	chaos2 := WithSeed(storage.NewMemoryStorage(), 0.5, 42)

	for i := uint64(0); i < 100; i++ {
		err1 := chaos1.StoreFrame(roomID, i, testFrame(roomID, i))
		err2 := chaos2.StoreFrame(roomID, i, testFrame(roomID, i))
		if (err1 == nil) != (err2 == nil) {
			t.Fatalf("determinism violated at iteration %d: err1=%v err2=%v", i, err1, err2)
		}
	}
}

func TestAccessesUnderlyingStorage(t *testing.T) {
	inner := storage.NewMemoryStorage()
	chaos := New(inner, 0.0)

	var roomID [16]byte
	roomID[0] = 4
	if err := chaos.StoreFrame(roomID, 0, testFrame(roomID, 0)); err != nil {
		t.Fatalf("StoreFrame() error = %v", err)
	}

	latest, ok, err := chaos.Inner().LatestLogIndex(roomID)
	if err != nil || !ok || latest != 0 {
		t.Errorf("Inner().LatestLogIndex() = (%d, %v, %v), want (0, true, nil)", latest, ok, err)
	}
}

func TestRejectsInvalidFailureRate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New() must panic for an out-of-range failure rate")
		}
	}()
	New(storage.NewMemoryStorage(), 1.5)
}

func TestOperationCountIncrementsPerCall(t *testing.T) {
	inner := storage.NewMemoryStorage()
	chaos := New(inner, 0.0)

	var roomID [16]byte
	for i := uint64(0); i < 5; i++ {
		if err := chaos.StoreFrame(roomID, i, testFrame(roomID, i)); err != nil {
			t.Fatalf("StoreFrame(%d) error = %v", i, err)
		}
	}
	if chaos.OperationCount() != 5 {
		t.Errorf("OperationCount() = %d, want 5", chaos.OperationCount())
	}
}
