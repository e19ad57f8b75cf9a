package flow

import (
	"log/slog"
	"sync"
	"time"
)

// StateTable tracks where each user currently is in a multi-step dialogue.
// Absence of an entry means "no active dialogue". Implementations must be safe
// for concurrent use by independent users.
type StateTable interface {
	// Get returns the user's current dialogue state, if any.
	Get(userID string) (ConversationState, bool)

	// Set stores the user's dialogue state, replacing any existing one.
	Set(userID string, state ConversationState)

	// Clear removes the user's dialogue state.
	Clear(userID string)
}

// TableOption defines a configuration option for MemoryStateTable.
type TableOption func(*MemoryStateTable)

// WithStateTTL bounds how long a partial dialogue state may persist. A user
// whose state outlives the TTL is treated as having no active dialogue on the
// next read. Zero disables expiry (a state survives until cleared or replaced).
func WithStateTTL(ttl time.Duration) TableOption {
	return func(t *MemoryStateTable) {
		t.ttl = ttl
	}
}

type stateEntry struct {
	state ConversationState
	setAt time.Time
}

// MemoryStateTable is a mutex-guarded in-memory StateTable.
type MemoryStateTable struct {
	mu      sync.RWMutex
	entries map[string]stateEntry
	ttl     time.Duration
}

// NewMemoryStateTable creates an empty state table.
func NewMemoryStateTable(opts ...TableOption) *MemoryStateTable {
	t := &MemoryStateTable{entries: make(map[string]stateEntry)}
	for _, opt := range opts {
		opt(t)
	}
	slog.Debug("MemoryStateTable created", "ttl", t.ttl)
	return t
}

// Get returns the user's current state. Expired entries are dropped lazily.
func (t *MemoryStateTable) Get(userID string) (ConversationState, bool) {
	t.mu.RLock()
	entry, ok := t.entries[userID]
	t.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if t.ttl > 0 && time.Since(entry.setAt) > t.ttl {
		t.mu.Lock()
		// Re-check under the write lock; the entry may have been replaced.
		if current, stillThere := t.entries[userID]; stillThere && current.setAt.Equal(entry.setAt) {
			delete(t.entries, userID)
			slog.Debug("MemoryStateTable expired stale state", "userID", userID, "phase", entry.state.Phase())
		}
		t.mu.Unlock()
		return nil, false
	}
	return entry.state, true
}

// Set stores the user's state, replacing any existing one.
func (t *MemoryStateTable) Set(userID string, state ConversationState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[userID] = stateEntry{state: state, setAt: time.Now()}
	slog.Debug("MemoryStateTable state set", "userID", userID, "phase", state.Phase())
}

// Clear removes the user's state.
func (t *MemoryStateTable) Clear(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, userID)
	slog.Debug("MemoryStateTable state cleared", "userID", userID)
}
