package transport

import (
	"sync"

	"go.uber.org/zap"

	"github.com/replicaworks/collabcore/crdt"
)

// Sender is implemented by a live connection so the registry can push raw
// operation-record Messages without depending on the concrete transport.
// Kept at the transport layer so session.CollabSession only ever deals in
// SessionEvents, never raw wire messages.
type Sender interface {
	Send(msg Message) error
	Close() error
	RemoteAddr() string
}

// registry is the per-process table of connected Senders, keyed by document
// then by replica, kept separate from session.CollabSession's own
// SessionEvent broadcast.
type registry struct {
	mu     sync.RWMutex
	byDoc  map[string]map[crdt.ReplicaID]Sender
	logger *zap.Logger
}

func newRegistry(logger *zap.Logger) *registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &registry{byDoc: make(map[string]map[crdt.ReplicaID]Sender), logger: logger}
}

func (r *registry) register(docID string, replica crdt.ReplicaID, sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clients, ok := r.byDoc[docID]
	if !ok {
		clients = make(map[crdt.ReplicaID]Sender)
		r.byDoc[docID] = clients
	}
	clients[replica] = sender
}

func (r *registry) unregister(docID string, replica crdt.ReplicaID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clients, ok := r.byDoc[docID]
	if !ok {
		return
	}
	delete(clients, replica)
	if len(clients) == 0 {
		delete(r.byDoc, docID)
	}
}

// relay pushes msg to every sender registered for docID other than exclude.
func (r *registry) relay(docID string, msg Message, exclude crdt.ReplicaID) {
	r.mu.RLock()
	clients := r.byDoc[docID]
	targets := make([]Sender, 0, len(clients))
	for replica, s := range clients {
		if replica == exclude {
			continue
		}
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	for _, s := range targets {
		if err := s.Send(msg); err != nil {
			r.logger.Warn("relay failed", zap.String("doc_id", docID), zap.Error(err))
		}
	}
}
