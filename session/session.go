// Package session coordinates one collaboration session per document:
// client membership, presence, status transitions and the broadcast event
// stream peers subscribe to.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/replicaworks/collabcore/crdt"
	"github.com/replicaworks/collabcore/document"
	"github.com/replicaworks/collabcore/metrics"
	"github.com/replicaworks/collabcore/presence"
)

// SessionStatus is the session's lifecycle state. It only ever progresses
// within {Active -> Paused|ReadOnly -> Closing -> Closed}; once Closed, it
// never regresses.
type SessionStatus string

const (
	StatusActive   SessionStatus = "active"
	StatusPaused   SessionStatus = "paused"
	StatusReadOnly SessionStatus = "read_only"
	StatusClosing  SessionStatus = "closing"
	StatusClosed   SessionStatus = "closed"
)

func legalTransition(from, to SessionStatus) bool {
	if from == StatusClosed {
		return false
	}
	switch to {
	case StatusClosing:
		return true
	case StatusClosed:
		return from == StatusClosing
	case StatusActive:
		return from == StatusPaused || from == StatusReadOnly
	case StatusPaused, StatusReadOnly:
		return from == StatusActive
	}
	return false
}

// ClientConnection tracks one connected replica's accounting.
type ClientConnection struct {
	Replica     crdt.ReplicaID
	Presence    presence.UserPresence
	ConnectedAt time.Time
	LastMessage time.Time
	OpsSent     uint64
	OpsReceived uint64
}

// State is a point-in-time read-only snapshot of the session.
type State struct {
	Status          SessionStatus
	ClientCount     int
	OperationsCount uint64
	LastActivity    time.Time
	VClock          crdt.VectorClock
}

// Info is the read-model returned by CollabSession.Info, suitable for a
// status page or health endpoint.
type Info struct {
	ID              uuid.UUID
	DocumentID      string
	ClientCount     int
	Status          SessionStatus
	OperationsCount uint64
	CreatedAt       time.Time
	LastActivity    time.Time
}

// Subscription is a live handle onto a session's broadcast event stream.
// Call Unsubscribe when done — Go has no destructor to detect an abandoned
// channel, so the session can't reclaim it on its own.
type Subscription struct {
	ch      chan SessionEvent
	id      uint64
	session *CollabSession
}

func (s *Subscription) Events() <-chan SessionEvent { return s.ch }

func (s *Subscription) Unsubscribe() {
	s.session.mu.Lock()
	defer s.session.mu.Unlock()
	if ch, ok := s.session.subscribers[s.id]; ok {
		delete(s.session.subscribers, s.id)
		close(ch)
	}
}

// Option configures a CollabSession at construction time.
type Option func(*CollabSession)

func WithConfig(cfg Config) Option { return func(s *CollabSession) { s.config = cfg } }
func WithLogger(l *zap.Logger) Option {
	return func(s *CollabSession) {
		if l != nil {
			s.logger = l
		}
	}
}
func WithMetrics(m *metrics.Collectors) Option { return func(s *CollabSession) { s.metrics = m } }

// CollabSession coordinates a single document's live collaborators.
type CollabSession struct {
	id       uuid.UUID
	document *document.Document
	presence *presence.Manager
	config   Config
	logger   *zap.Logger
	metrics  *metrics.Collectors

	mu          sync.RWMutex
	clients     map[crdt.ReplicaID]*ClientConnection
	subscribers map[uint64]chan SessionEvent
	nextSubID   uint64
	state       State
	createdAt   time.Time
}

// NewCollabSession wraps doc in a fresh session, Active from the start.
func NewCollabSession(doc *document.Document, opts ...Option) *CollabSession {
	s := &CollabSession{
		id:          uuid.New(),
		document:    doc,
		presence:    presence.NewManager(),
		config:      DefaultConfig(),
		logger:      zap.NewNop(),
		clients:     make(map[crdt.ReplicaID]*ClientConnection),
		subscribers: make(map[uint64]chan SessionEvent),
		state:       State{Status: StatusActive, LastActivity: time.Now(), VClock: crdt.NewVectorClock()},
		createdAt:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics != nil {
		s.metrics.SessionsActive.Inc()
	}
	return s
}

func (s *CollabSession) ID() uuid.UUID                { return s.id }
func (s *CollabSession) Document() *document.Document { return s.document }
func (s *CollabSession) Presence() *presence.Manager  { return s.presence }

func (s *CollabSession) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Status:          s.state.Status,
		ClientCount:     s.state.ClientCount,
		OperationsCount: s.state.OperationsCount,
		LastActivity:    s.state.LastActivity,
		VClock:          s.state.VClock.Clone(),
	}
}

func (s *CollabSession) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		ID:              s.id,
		DocumentID:      s.document.ID,
		ClientCount:     len(s.clients),
		Status:          s.state.Status,
		OperationsCount: s.state.OperationsCount,
		CreatedAt:       s.createdAt,
		LastActivity:    s.state.LastActivity,
	}
}

func (s *CollabSession) subscribeLocked() *Subscription {
	s.nextSubID++
	id := s.nextSubID
	ch := make(chan SessionEvent, s.config.EventBufferSize)
	s.subscribers[id] = ch
	return &Subscription{ch: ch, id: id, session: s}
}

// Subscribe opens a new event stream independent of any client join — e.g.
// for an observer dashboard that only watches state changes.
func (s *CollabSession) Subscribe() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribeLocked()
}

func (s *CollabSession) broadcastLocked(event SessionEvent) {
	for _, ch := range s.subscribers {
		select {
		case ch <- event:
			continue
		default:
		}
		// Drop-oldest: evict the oldest queued event, then retry once.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- event:
		default:
			if s.metrics != nil {
				s.metrics.BroadcastDropsTotal.Inc()
			}
		}
	}
}

// Broadcast pushes event to every current subscriber. It never blocks: a
// full subscriber channel has its oldest entry dropped to make room.
func (s *CollabSession) Broadcast(event SessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(event)
}

func (s *CollabSession) setStatusLocked(status SessionStatus) {
	if !legalTransition(s.state.Status, status) {
		return
	}
	s.state.Status = status
	s.broadcastLocked(stateChangedEvent(status))
}

// SetStatus attempts a status transition; illegal transitions (e.g.
// Closed -> anything) are silent no-ops, keeping the state machine invariant
// regardless of caller mistakes.
func (s *CollabSession) SetStatus(status SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStatusLocked(status)
}

// Join registers replica as a connected client and subscribes it to the
// event stream. A repeat join with the same replica is a no-op-but-refresh:
// presence is updated in place, no duplicate ClientConnection is created,
// client_count is unchanged, and no second ClientJoined event fires.
func (s *CollabSession) Join(replica crdt.ReplicaID, userID, name string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status == StatusClosed {
		return nil, errSessionNotFound(s.id)
	}

	if existing, ok := s.clients[replica]; ok {
		existing.LastMessage = time.Now()
		if p, ok := s.presence.Get(replica); ok {
			p.Name = name
			p.UserID = userID
			p.UpdatedAt = time.Now()
			s.presence.Update(p)
		}
		return s.subscribeLocked(), nil
	}

	if len(s.clients) >= s.config.MaxClients {
		return nil, errSessionFull()
	}

	now := time.Now()
	up := presence.NewUserPresence(replica, userID, name)
	s.clients[replica] = &ClientConnection{Replica: replica, Presence: up, ConnectedAt: now, LastMessage: now}
	s.presence.Update(up)
	s.state.ClientCount = len(s.clients)
	s.state.LastActivity = now

	if s.metrics != nil {
		s.metrics.ClientsConnected.Inc()
	}
	s.logger.Info("client joined", zap.Stringer("session", s.id), zap.Stringer("replica", replica))

	sub := s.subscribeLocked()
	s.broadcastLocked(clientJoinedEvent(replica, userID, name))
	return sub, nil
}

// Leave removes replica from the session. Leaving a replica that never
// joined (or already left) is a no-op.
func (s *CollabSession) Leave(replica crdt.ReplicaID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[replica]; !ok {
		return
	}
	delete(s.clients, replica)
	s.presence.Remove(replica)
	s.state.ClientCount = len(s.clients)
	s.state.LastActivity = time.Now()
	if s.metrics != nil {
		s.metrics.ClientsConnected.Dec()
	}
	s.logger.Info("client left", zap.Stringer("session", s.id), zap.Stringer("replica", replica))
	s.broadcastLocked(clientLeftEvent(replica))
}

// RecordOperation accounts for one operation attributed to replica, bumps
// the session's vector clock, and emits DocumentChanged.
func (s *CollabSession) RecordOperation(replica crdt.ReplicaID, field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if client, ok := s.clients[replica]; ok {
		client.OpsReceived++
		client.LastMessage = time.Now()
	}
	s.state.OperationsCount++
	s.state.LastActivity = time.Now()
	s.state.VClock = s.state.VClock.Increment(replica)
	if s.metrics != nil {
		s.metrics.OperationsTotal.Inc()
	}
	s.broadcastLocked(documentChangedEvent(replica, field, s.document.Version()))
}

// UpdateCursor records replica's caret position and emits CursorMoved.
func (s *CollabSession) UpdateCursor(replica crdt.ReplicaID, pos presence.CursorPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.config.EnableCursors {
		return
	}
	if p, ok := s.presence.Get(replica); ok {
		p.Cursor = &pos
		p.UpdatedAt = time.Now()
		s.presence.Update(p)
	}
	s.broadcastLocked(cursorMovedEvent(replica, pos))
}

// UpdateSelection records replica's selection range and emits SelectionChanged.
func (s *CollabSession) UpdateSelection(replica crdt.ReplicaID, sel presence.SelectionRange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.config.EnableSelections {
		return
	}
	if p, ok := s.presence.Get(replica); ok {
		p.Selection = &sel
		p.UpdatedAt = time.Now()
		s.presence.Update(p)
	}
	s.broadcastLocked(selectionChangedEvent(replica, sel))
}

// UpdatePresenceStatus records replica's online/away/busy status and emits PresenceUpdated.
func (s *CollabSession) UpdatePresenceStatus(replica crdt.ReplicaID, status presence.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.config.EnablePresence {
		return
	}
	if p, ok := s.presence.Get(replica); ok {
		p.Status = status
		p.UpdatedAt = time.Now()
		s.presence.Update(p)
	}
	s.broadcastLocked(presenceUpdatedEvent(replica))
}

// RequestSync emits SyncRequired for replica, e.g. after a buffered remote
// RGA op has sat pending too long and the peer should re-send a full snapshot.
func (s *CollabSession) RequestSync(replica crdt.ReplicaID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(syncRequiredEvent(replica))
}

// MergeDocument folds a remote document snapshot into the session's
// document, timing the merge for the document_merge_duration histogram.
func (s *CollabSession) MergeDocument(other *document.Document) {
	start := time.Now()
	s.document.Merge(other)
	if s.metrics != nil {
		s.metrics.DocumentMergeDuration.Observe(time.Since(start).Seconds())
	}
	s.mu.Lock()
	s.state.VClock = s.state.VClock.Merge(other.VClock())
	s.state.LastActivity = time.Now()
	s.mu.Unlock()
}

func (s *CollabSession) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *CollabSession) ConnectedReplicas() []crdt.ReplicaID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crdt.ReplicaID, 0, len(s.clients))
	for r := range s.clients {
		out = append(out, r)
	}
	return out
}

func (s *CollabSession) IsConnected(replica crdt.ReplicaID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.clients[replica]
	return ok
}

// Close tears the session down: every connected client gets a ClientLeft,
// the session transitions Closing then Closed (delivering the terminal
// StateChanged{Closed} before channels are closed), and every subscriber
// channel is then closed. After Close, Join always fails with
// SessionNotFound.
func (s *CollabSession) Close() {
	s.mu.Lock()
	if s.state.Status == StatusClosed {
		s.mu.Unlock()
		return
	}
	s.setStatusLocked(StatusClosing)

	for replica := range s.clients {
		s.broadcastLocked(clientLeftEvent(replica))
	}
	s.clients = make(map[crdt.ReplicaID]*ClientConnection)
	s.state.ClientCount = 0

	s.setStatusLocked(StatusClosed)

	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SessionsActive.Dec()
	}
	s.logger.Info("session closed", zap.Stringer("session", s.id))
}
