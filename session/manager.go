package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/replicaworks/collabcore/document"
	"github.com/replicaworks/collabcore/metrics"
)

// ManagerOption configures a Manager at construction time.
type ManagerOption func(*Manager)

func WithManagerLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithManagerMetrics(metrics *metrics.Collectors) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

func WithManagerConfig(cfg Config) ManagerOption {
	return func(m *Manager) { m.defaultConfig = cfg }
}

// Manager owns every live CollabSession for a process, indexed both by
// session id and by the document id it wraps so a reconnecting client can
// find the session for a document without already knowing its session id.
type Manager struct {
	mu            sync.RWMutex
	byID          map[uuid.UUID]*CollabSession
	byDocument    map[string]uuid.UUID
	logger        *zap.Logger
	metrics       *metrics.Collectors
	defaultConfig Config
}

// NewManager returns an empty session manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		byID:          make(map[uuid.UUID]*CollabSession),
		byDocument:    make(map[string]uuid.UUID),
		logger:        zap.NewNop(),
		defaultConfig: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) createLocked(doc *document.Document) *CollabSession {
	s := NewCollabSession(doc, WithConfig(m.defaultConfig), WithLogger(m.logger), WithMetrics(m.metrics))
	m.byID[s.ID()] = s
	m.byDocument[doc.ID] = s.ID()
	return s
}

// Create always starts a brand new session, even if one already exists for
// doc.ID — callers that want reuse should call GetOrCreate instead.
func (m *Manager) Create(doc *document.Document) *CollabSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(doc)
}

// GetOrCreate returns the existing session for doc.ID if one is live, or
// atomically creates one otherwise. The whole check-then-act happens under
// a single lock so two concurrent callers for the same document never race
// into creating two sessions.
func (m *Manager) GetOrCreate(doc *document.Document) *CollabSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byDocument[doc.ID]; ok {
		if s, ok := m.byID[id]; ok && s.State().Status != StatusClosed {
			return s
		}
		delete(m.byDocument, doc.ID)
	}
	return m.createLocked(doc)
}

func (m *Manager) Get(id uuid.UUID) (*CollabSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	return s, ok
}

func (m *Manager) GetByDocument(documentID string) (*CollabSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byDocument[documentID]
	if !ok {
		return nil, false
	}
	s, ok := m.byID[id]
	return s, ok
}

// Remove closes and forgets the session, removing it from both indexes.
func (m *Manager) Remove(id uuid.UUID) {
	m.mu.Lock()
	s, ok := m.byID[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.byID, id)
	delete(m.byDocument, s.Document().ID)
	m.mu.Unlock()

	s.Close()
}

// List returns an Info snapshot for every currently tracked session.
func (m *Manager) List() []Info {
	m.mu.RLock()
	sessions := make([]*CollabSession, 0, len(m.byID))
	for _, s := range m.byID {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info())
	}
	return out
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// CleanupIdle removes every session with zero connected clients whose last
// activity is older than idleTimeout, returning how many were removed.
func (m *Manager) CleanupIdle(idleTimeout time.Duration) int {
	now := time.Now()

	m.mu.RLock()
	var stale []uuid.UUID
	for id, s := range m.byID {
		state := s.State()
		if state.ClientCount == 0 && now.Sub(state.LastActivity) > idleTimeout {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		m.Remove(id)
	}
	return len(stale)
}
