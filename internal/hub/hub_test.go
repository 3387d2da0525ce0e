package hub

import (
	"errors"
	"sync"
	"testing"
)

var errWrite = errors.New("write failed")

type fakeWriter struct {
	mu       sync.Mutex
	messages [][]byte
	failWith error
	closed   bool
}

func (w *fakeWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failWith != nil {
		return w.failWith
	}
	w.messages = append(w.messages, message)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func TestRegisterEvictsPreviousSession(t *testing.T) {
	h := New()
	first := &fakeWriter{}
	second := &fakeWriter{}

	h.Register("agent-1", first)
	sess := h.Register("agent-1", second)

	if !first.isClosed() {
		t.Fatalf("expected first session writer to be closed")
	}

	current, ok := h.Lookup("agent-1")
	if !ok {
		t.Fatalf("expected agent-1 to be connected")
	}
	if current != sess {
		t.Fatalf("expected the newer session to win")
	}
	if got := len(h.Connected()); got != 1 {
		t.Fatalf("expected exactly one session, got %d", got)
	}
}

func TestEvictIgnoresStaleSession(t *testing.T) {
	h := New()
	stale := h.Register("agent-1", &fakeWriter{})
	fresh := h.Register("agent-1", &fakeWriter{})

	h.Evict(stale)

	current, ok := h.Lookup("agent-1")
	if !ok || current != fresh {
		t.Fatalf("stale eviction must not remove the replacement session")
	}
}

func TestSendToDisconnectedAgent(t *testing.T) {
	h := New()
	if h.Send("nobody", []byte("hello")) {
		t.Fatalf("send to unknown agent should report failure")
	}
}

func TestSendEvictsOnWriteFailure(t *testing.T) {
	h := New()
	w := &fakeWriter{failWith: errWrite}
	h.Register("agent-1", w)

	if h.Send("agent-1", []byte("hello")) {
		t.Fatalf("send should fail when the writer fails")
	}
	if !w.isClosed() {
		t.Fatalf("failed session should be closed")
	}
	if _, ok := h.Lookup("agent-1"); ok {
		t.Fatalf("failed session should be evicted")
	}
}

func TestBroadcastReachesAllSessions(t *testing.T) {
	h := New()
	a := &fakeWriter{}
	b := &fakeWriter{}
	h.Register("agent-a", a)
	h.Register("agent-b", b)

	h.Broadcast([]byte("ping"))

	if len(a.messages) != 1 || len(b.messages) != 1 {
		t.Fatalf("expected both sessions to receive the broadcast")
	}
}
