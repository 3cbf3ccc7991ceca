package sequencer

import (
	"testing"

	"github.com/opd-ai/kalandra/storage"
	"github.com/opd-ai/kalandra/wire"
)

func createTestFrame(t *testing.T, roomID [16]byte, senderID, epoch uint64) *wire.Frame {
	t.Helper()
	f, err := wire.New(wire.FrameHeader{
		Opcode:   wire.OpcodeAppMessage,
		RoomID:   roomID,
		SenderID: senderID,
		Epoch:    epoch,
	}, []byte("msg"))
	if err != nil {
		t.Fatalf("wire.New() error = %v", err)
	}
	return f
}

func testRoomID(n byte) [16]byte {
	var id [16]byte
	id[15] = n
	return id
}

func TestSingleFrameSequencing(t *testing.T) {
	seq := New()
	store := storage.NewMemoryStorage()
	room := testRoomID(100)

	frame := createTestFrame(t, room, 200, 0)
	actions, err := seq.ProcessFrame(frame, store)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("len(actions) = %d, want 3", len(actions))
	}

	if actions[0].Kind != AcceptFrame || actions[0].LogIndex != 0 {
		t.Errorf("actions[0] = %+v, want AcceptFrame at index 0", actions[0])
	}
	if actions[0].Frame.Header.LogIndex != 0 {
		t.Errorf("actions[0].Frame.Header.LogIndex = %d, want 0", actions[0].Frame.Header.LogIndex)
	}

	if actions[1].Kind != StoreFrame || actions[1].LogIndex != 0 {
		t.Errorf("actions[1] = %+v, want StoreFrame at index 0", actions[1])
	}

	if actions[2].Kind != BroadcastToRoom {
		t.Errorf("actions[2].Kind = %v, want BroadcastToRoom", actions[2].Kind)
	}
	if actions[2].Frame.Header.LogIndex != 0 {
		t.Errorf("actions[2].Frame.Header.LogIndex = %d, want 0", actions[2].Frame.Header.LogIndex)
	}
}

func TestSequentialFrames(t *testing.T) {
	seq := New()
	store := storage.NewMemoryStorage()
	room := testRoomID(100)

	for i := uint64(0); i < 3; i++ {
		frame := createTestFrame(t, room, 200, 0)
		actions, err := seq.ProcessFrame(frame, store)
		if err != nil {
			t.Fatalf("ProcessFrame(%d) error = %v", i, err)
		}

		if actions[0].LogIndex != i {
			t.Errorf("actions[0].LogIndex = %d, want %d", actions[0].LogIndex, i)
		}

		for _, a := range actions {
			if a.Kind == StoreFrame {
				if err := store.StoreFrame(a.RoomID, a.LogIndex, a.Frame); err != nil {
					t.Fatalf("StoreFrame() error = %v", err)
				}
				break
			}
		}
	}

	frames, err := store.LoadFrames(room, 0, 10)
	if err != nil {
		t.Fatalf("LoadFrames() error = %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("len(frames) = %d, want 3", len(frames))
	}
	for i, f := range frames {
		if f.Header.LogIndex != uint64(i) {
			t.Errorf("frames[%d].Header.LogIndex = %d, want %d", i, f.Header.LogIndex, i)
		}
	}
}

func TestConcurrentRooms(t *testing.T) {
	seq := New()
	store := storage.NewMemoryStorage()
	roomA := testRoomID(100)
	roomB := testRoomID(200)

	for i := 0; i < 3; i++ {
		frame := createTestFrame(t, roomA, 300, 0)
		if _, err := seq.ProcessFrame(frame, store); err != nil {
			t.Fatalf("ProcessFrame(roomA) error = %v", err)
		}
	}

	for i := 0; i < 5; i++ {
		frame := createTestFrame(t, roomB, 300, 0)
		if _, err := seq.ProcessFrame(frame, store); err != nil {
			t.Fatalf("ProcessFrame(roomB) error = %v", err)
		}
	}

	nextA, ok := seq.NextLogIndex(roomA)
	if !ok || nextA != 3 {
		t.Errorf("NextLogIndex(roomA) = (%d, %v), want (3, true)", nextA, ok)
	}

	nextB, ok := seq.NextLogIndex(roomB)
	if !ok || nextB != 5 {
		t.Errorf("NextLogIndex(roomB) = (%d, %v), want (5, true)", nextB, ok)
	}
}

func TestProcessFrameRejectsZeroRoomID(t *testing.T) {
	seq := New()
	store := storage.NewMemoryStorage()

	var zero [16]byte
	frame := createTestFrame(t, zero, 200, 0)

	_, err := seq.ProcessFrame(frame, store)
	if err == nil {
		t.Fatal("expected validation error for zero room_id")
	}
	seqErr, ok := err.(*SequencerError)
	if !ok || seqErr.Kind != ErrValidation {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestProcessFrameRejectsExcessiveEpoch(t *testing.T) {
	seq := New()
	store := storage.NewMemoryStorage()
	room := testRoomID(1)

	frame := createTestFrame(t, room, 200, ^uint64(0))

	_, err := seq.ProcessFrame(frame, store)
	if err == nil {
		t.Fatal("expected validation error for epoch beyond MaxEpoch")
	}
}
