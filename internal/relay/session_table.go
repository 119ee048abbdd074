package relay

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the terminal state a relayed session settles into.
type Status int

const (
	StatusPending Status = iota
	StatusComplete
	StatusFailed
)

// SessionRecord is one process-wide session table row, per spec.md §4.2's
// "session_id -> { request_bytes, response_bytes, timestamp }".
type SessionRecord struct {
	SessionID     string
	RequestBytes  int
	ResponseBytes int
	Timestamp     time.Time
	Status        Status
}

// SessionTable is a mutex-protected map of relay sessions with a background
// TTL reaper, adapted from the teacher's SessionManager (session_manager.go)
// — same "mutex with short critical sections" discipline, generalized from
// a 2PC protocol-step table to a byte-pump result table.
type SessionTable struct {
	mu      sync.Mutex
	entries map[string]*SessionRecord
	ttl     time.Duration
	log     *zap.Logger
	stop    chan struct{}
}

// NewSessionTable constructs a table and starts its reaper goroutine. ttl
// is the maximum age an entry may reach before the reaper removes it,
// mirroring the teacher's monitorSessions loop.
func NewSessionTable(ttl time.Duration, log *zap.Logger) *SessionTable {
	t := &SessionTable{
		entries: make(map[string]*SessionRecord),
		ttl:     ttl,
		log:     log,
		stop:    make(chan struct{}),
	}
	go t.reap()
	return t
}

// Insert adds or replaces a session's entry (pending, completed or failed).
func (t *SessionTable) Insert(rec *SessionRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[rec.SessionID] = rec
}

// Get looks up a session by id.
func (t *SessionTable) Get(id string) (*SessionRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.entries[id]
	return rec, ok
}

// Remove deletes a session's entry.
func (t *SessionTable) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// Close stops the reaper goroutine.
func (t *SessionTable) Close() {
	close(t.stop)
}

func (t *SessionTable) reap() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.reapOnce()
		}
	}
}

func (t *SessionTable) reapOnce() {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, rec := range t.entries {
		if now.Sub(rec.Timestamp) > t.ttl {
			if t.log != nil {
				t.log.Info("reaping stale relay session", zap.String("session_id", id))
			}
			delete(t.entries, id)
		}
	}
}
