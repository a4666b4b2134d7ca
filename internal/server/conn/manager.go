// Package conn tracks live duplex sessions: a process-wide mapping from
// connection handle to the conversation it currently has open, if any.
// It owns no per-turn state — that belongs to the orchestrator — and
// performs no I/O of its own.
package conn

import (
	"sync"

	"github.com/google/uuid"
)

// ID identifies one connected duplex session for the lifetime of the
// connection. Generated on Connect, never reused.
type ID string

// Manager is the process-wide registry of live connections, grounded on
// the one-active-conversation-per-connection invariant of
// original_source's connection_manager.py (active_connections: dict
// [WebSocket, Optional[int]]), adapted to Go's sync.Map-free explicit
// locking.
type Manager struct {
	mu    sync.RWMutex
	conns map[ID]*entry
}

type entry struct {
	conversationID  int64
	hasConversation bool
}

// New creates an empty connection manager.
func New() *Manager {
	return &Manager{conns: make(map[ID]*entry)}
}

// Connect registers a newly accepted duplex session and returns its id.
func (m *Manager) Connect() ID {
	id := ID(uuid.NewString())
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[id] = &entry{}
	return id
}

// Disconnect removes a session from the registry. Safe to call more than
// once for the same id.
func (m *Manager) Disconnect(id ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, id)
}

// SetConversation records the conversation a connection is currently
// bound to, overwriting any prior value. A connection holds at most one
// conversation at a time; a turn may create or look up a conversation
// before binding it here.
func (m *Manager) SetConversation(id ID, conversationID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.conns[id]; ok {
		e.conversationID = conversationID
		e.hasConversation = true
	}
}

// Conversation returns the conversation currently bound to id, if any.
func (m *Manager) Conversation(id ID) (conversationID int64, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, present := m.conns[id]
	if !present || !e.hasConversation {
		return 0, false
	}
	return e.conversationID, true
}

// Connected reports whether id is currently registered.
func (m *Manager) Connected(id ID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.conns[id]
	return ok
}

// Count returns the number of live connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}
