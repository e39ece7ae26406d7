package web

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mkarag/venturo/internal/event"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	failWith error
	closed   bool
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) received(t *testing.T) []event.Event {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]event.Event, 0, len(f.messages))
	for _, data := range f.messages {
		var ev event.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("bad message payload: %v", err)
		}
		out = append(out, ev)
	}
	return out
}

func TestBroadcastReachesOnlyRoomMembers(t *testing.T) {
	h := NewHub()
	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}
	h.Register("a", a)
	h.Register("b", b)
	h.Register("c", c)
	h.Join("a", "conv-1")
	h.Join("b", "conv-1")
	h.Join("c", "conv-2")

	h.Broadcast(event.ConversationStatus("conv-1", "started", "msg", nil))

	if got := a.received(t); len(got) != 1 || got[0].ConversationID != "conv-1" {
		t.Errorf("client a: unexpected events %+v", got)
	}
	if got := b.received(t); len(got) != 1 {
		t.Errorf("client b: expected 1 event, got %d", len(got))
	}
	if got := c.received(t); len(got) != 0 {
		t.Errorf("client c should receive nothing, got %+v", got)
	}
}

func TestBroadcastToEmptyRoomIsNoop(t *testing.T) {
	h := NewHub()
	h.Broadcast(event.ConversationStatus("ghost", "started", "msg", nil))
}

func TestJoinIsIdempotent(t *testing.T) {
	h := NewHub()
	a := &fakeConn{}
	h.Register("a", a)
	h.Join("a", "conv-1")
	h.Join("a", "conv-1")

	h.Broadcast(event.ConversationStatus("conv-1", "started", "msg", nil))

	if got := a.received(t); len(got) != 1 {
		t.Errorf("expected exactly 1 delivery after duplicate join, got %d", len(got))
	}
}

func TestJoinUnknownClientIsNoop(t *testing.T) {
	h := NewHub()
	h.Join("ghost", "conv-1")

	if _, rooms := h.Counts(); rooms != 0 {
		t.Errorf("expected no rooms, got %d", rooms)
	}
}

func TestUnregisterPurgesRooms(t *testing.T) {
	h := NewHub()
	a := &fakeConn{}
	h.Register("a", a)
	h.Join("a", "conv-1")
	h.Join("a", "conv-2")

	h.Unregister("a", a)

	clients, rooms := h.Counts()
	if clients != 0 || rooms != 0 {
		t.Errorf("expected empty hub, got %d clients %d rooms", clients, rooms)
	}
	if !a.closed {
		t.Error("expected connection closed on unregister")
	}
}

func TestEmptiedRoomIsRemoved(t *testing.T) {
	h := NewHub()
	a, b := &fakeConn{}, &fakeConn{}
	h.Register("a", a)
	h.Register("b", b)
	h.Join("a", "conv-1")
	h.Join("b", "conv-1")

	h.Unregister("a", a)
	if _, rooms := h.Counts(); rooms != 1 {
		t.Errorf("expected room kept while b remains, got %d rooms", rooms)
	}

	h.Unregister("b", b)
	if _, rooms := h.Counts(); rooms != 0 {
		t.Errorf("expected room removed when empty, got %d rooms", rooms)
	}
}

func TestBroadcastPrunesFailedConnections(t *testing.T) {
	h := NewHub()
	good, bad := &fakeConn{}, &fakeConn{failWith: errors.New("broken pipe")}
	h.Register("good", good)
	h.Register("bad", bad)
	h.Join("good", "conv-1")
	h.Join("bad", "conv-1")

	h.Broadcast(event.ConversationStatus("conv-1", "started", "msg", nil))

	clients, _ := h.Counts()
	if clients != 1 {
		t.Errorf("expected failed client pruned, got %d clients", clients)
	}
	if !bad.closed {
		t.Error("expected failed connection closed")
	}

	// Good client keeps receiving.
	h.Broadcast(event.ConversationStatus("conv-1", "verification", "msg", nil))
	if got := good.received(t); len(got) != 2 {
		t.Errorf("expected 2 deliveries to surviving client, got %d", len(got))
	}
}

func TestRegisterReplacesExistingConnection(t *testing.T) {
	h := NewHub()
	old, fresh := &fakeConn{}, &fakeConn{}
	h.Register("a", old)
	h.Register("a", fresh)

	if !old.closed {
		t.Error("expected old connection closed on reconnect")
	}
	clients, _ := h.Counts()
	if clients != 1 {
		t.Errorf("expected 1 client, got %d", clients)
	}
}

func TestUnregisterIgnoresReplacedConnection(t *testing.T) {
	h := NewHub()
	old, fresh := &fakeConn{}, &fakeConn{}
	h.Register("a", old)
	h.Join("a", "conv-1")
	h.Register("a", fresh)

	// The old handler's read loop exits after the replacement closes its
	// connection; its deferred unregister must leave the new one alone.
	h.Unregister("a", old)

	clients, rooms := h.Counts()
	if clients != 1 || rooms != 1 {
		t.Fatalf("expected replacement kept with its room, got %d clients %d rooms", clients, rooms)
	}
	if fresh.closed {
		t.Error("stale unregister closed the replacement connection")
	}

	h.Broadcast(event.ConversationStatus("conv-1", "started", "msg", nil))
	if got := fresh.received(t); len(got) != 1 {
		t.Errorf("expected replacement to keep receiving, got %d events", len(got))
	}
}

func TestSendToUnknownClientIsNoop(t *testing.T) {
	h := NewHub()
	h.SendTo("ghost", event.Pong())
}
