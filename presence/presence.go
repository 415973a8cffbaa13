// Package presence tracks per-replica liveness: cursor, selection and
// online status, independent of document content.
package presence

import (
	"sync"
	"time"

	"github.com/replicaworks/collabcore/crdt"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// CursorPosition names the field a replica's caret sits in and its offset
// within that field.
type CursorPosition struct {
	Field  string `json:"field"`
	Offset int    `json:"offset"`
}

// SelectionRange names the field and [Start, End) a replica has selected.
type SelectionRange struct {
	Field string `json:"field"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// UserPresence is one replica's liveness snapshot.
type UserPresence struct {
	Replica   crdt.ReplicaID  `json:"replica"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Cursor    *CursorPosition `json:"cursor,omitempty"`
	Selection *SelectionRange `json:"selection,omitempty"`
	Status    Status          `json:"status"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewUserPresence returns a fresh online presence for replica.
func NewUserPresence(replica crdt.ReplicaID, userID, name string) UserPresence {
	return UserPresence{
		Replica:   replica,
		UserID:    userID,
		Name:      name,
		Status:    StatusOnline,
		UpdatedAt: time.Now(),
	}
}

// Manager is a concurrency-safe registry of UserPresence keyed by replica.
type Manager struct {
	mu   sync.RWMutex
	byID map[crdt.ReplicaID]UserPresence
}

func NewManager() *Manager {
	return &Manager{byID: make(map[crdt.ReplicaID]UserPresence)}
}

func (m *Manager) Update(p UserPresence) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[p.Replica] = p
}

func (m *Manager) Remove(replica crdt.ReplicaID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, replica)
}

func (m *Manager) Get(replica crdt.ReplicaID) (UserPresence, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byID[replica]
	return p, ok
}

// All returns every tracked presence in no particular order.
func (m *Manager) All() []UserPresence {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]UserPresence, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p)
	}
	return out
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
