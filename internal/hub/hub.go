package hub

import (
	"sync"
	"time"
)

type Writer interface {
	Write(message []byte) error
	Close() error
}

// Session is one live channel to a registered agent. Owned by the Hub;
// everything except LastSeen is immutable after Register.
type Session struct {
	AgentID     string
	Writer      Writer
	ConnectedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) Touch(at time.Time) {
	s.mu.Lock()
	s.lastSeen = at
	s.mu.Unlock()
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Hub tracks at most one live session per agent identity. Registering a new
// session for an already-connected identity atomically replaces the old entry;
// the evicted session's writer is closed before Register returns so the two
// never coexist for concurrent lookups.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func New() *Hub {
	return &Hub{sessions: make(map[string]*Session)}
}

func (h *Hub) Register(agentID string, w Writer) *Session {
	now := time.Now()
	sess := &Session{AgentID: agentID, Writer: w, ConnectedAt: now, lastSeen: now}

	h.mu.Lock()
	prev := h.sessions[agentID]
	h.sessions[agentID] = sess
	h.mu.Unlock()

	if prev != nil {
		_ = prev.Writer.Close()
	}
	return sess
}

// Evict removes the session only if it is still the current one, so a stale
// session's deferred cleanup cannot tear down its replacement.
func (h *Hub) Evict(sess *Session) {
	h.mu.Lock()
	if h.sessions[sess.AgentID] == sess {
		delete(h.sessions, sess.AgentID)
	}
	h.mu.Unlock()
}

func (h *Hub) Lookup(agentID string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sess, ok := h.sessions[agentID]
	return sess, ok
}

func (h *Hub) Connected() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Send writes to one agent's live session. Returns false when the agent has
// no session or the write fails; a failed session is evicted and closed.
func (h *Hub) Send(agentID string, message []byte) bool {
	h.mu.RLock()
	sess := h.sessions[agentID]
	h.mu.RUnlock()

	if sess == nil {
		return false
	}
	if err := sess.Writer.Write(message); err != nil {
		_ = sess.Writer.Close()
		h.Evict(sess)
		return false
	}
	return true
}

// Broadcast writes to every live session, evicting the ones that fail.
func (h *Hub) Broadcast(message []byte) {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	var failed []*Session
	for _, s := range sessions {
		if err := s.Writer.Write(message); err != nil {
			failed = append(failed, s)
		}
	}
	for _, s := range failed {
		_ = s.Writer.Close()
		h.Evict(s)
	}
}
