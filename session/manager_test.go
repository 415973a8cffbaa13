package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replicaworks/collabcore/document"
)

func TestManager_GetOrCreateReusesExistingSession(t *testing.T) {
	m := NewManager()
	doc := document.New("doc-a")

	s1 := m.GetOrCreate(doc)
	s2 := m.GetOrCreate(doc)

	assert.Equal(t, s1.ID(), s2.ID())
	assert.Equal(t, 1, m.Count())
}

func TestManager_GetOrCreateStartsFreshAfterClose(t *testing.T) {
	m := NewManager()
	doc := document.New("doc-a")

	s1 := m.GetOrCreate(doc)
	s1.Close()

	s2 := m.GetOrCreate(doc)
	assert.NotEqual(t, s1.ID(), s2.ID())
}

func TestManager_CreateAlwaysMakesNewSession(t *testing.T) {
	m := NewManager()
	doc := document.New("doc-a")

	s1 := m.Create(doc)
	s2 := m.Create(doc)
	assert.NotEqual(t, s1.ID(), s2.ID())
}

func TestManager_GetAndGetByDocument(t *testing.T) {
	m := NewManager()
	doc := document.New("doc-a")
	s := m.GetOrCreate(doc)

	byID, ok := m.Get(s.ID())
	require.True(t, ok)
	assert.Equal(t, s.ID(), byID.ID())

	byDoc, ok := m.GetByDocument("doc-a")
	require.True(t, ok)
	assert.Equal(t, s.ID(), byDoc.ID())

	_, ok = m.GetByDocument("nonexistent")
	assert.False(t, ok)
}

func TestManager_RemoveClearsBothIndexes(t *testing.T) {
	m := NewManager()
	doc := document.New("doc-a")
	s := m.GetOrCreate(doc)

	m.Remove(s.ID())

	assert.Equal(t, 0, m.Count())
	_, ok := m.Get(s.ID())
	assert.False(t, ok)
	_, ok = m.GetByDocument("doc-a")
	assert.False(t, ok)
	assert.Equal(t, StatusClosed, s.State().Status, "Remove must close the session")
}

func TestManager_ListReturnsInfoForEverySession(t *testing.T) {
	m := NewManager()
	m.GetOrCreate(document.New("doc-a"))
	m.GetOrCreate(document.New("doc-b"))

	infos := m.List()
	assert.Len(t, infos, 2)
}

func TestManager_CleanupIdleRemovesOnlyStaleEmptySessions(t *testing.T) {
	m := NewManager()
	stale := m.GetOrCreate(document.New("doc-stale"))
	active := m.GetOrCreate(document.New("doc-active"))

	sub, err := active.Join(active.Document().Replica(), "u1", "Alice")
	require.NoError(t, err)
	defer sub.Unsubscribe()

	removed := m.CleanupIdle(-time.Second) // everything with zero clients is "stale" under a negative window
	assert.Equal(t, 1, removed)

	_, ok := m.Get(stale.ID())
	assert.False(t, ok)
	_, ok = m.Get(active.ID())
	assert.True(t, ok, "session with a connected client must survive cleanup")
}
