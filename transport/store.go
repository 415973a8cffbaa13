package transport

import (
	"sync"

	"github.com/replicaworks/collabcore/document"
)

// documentStore is the process-wide table of live documents, keyed by id.
// It exists purely so WSHandler can hand the same *document.Document to
// every session.Manager.GetOrCreate call for a given doc id.
type documentStore struct {
	mu   sync.Mutex
	docs map[string]*document.Document
}

func newDocumentStore() *documentStore {
	return &documentStore{docs: make(map[string]*document.Document)}
}

func (s *documentStore) getOrCreate(id string) *document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[id]; ok {
		return d
	}
	d := document.New(id)
	s.docs[id] = d
	return d
}
