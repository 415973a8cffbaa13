package crdt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGSet_AddIsIdempotentAndMergeIsUnion(t *testing.T) {
	a := NewGSet[string]()
	a.Add("x")
	a.Add("x")
	assert.Equal(t, 1, a.Len())

	b := NewGSet[string]()
	b.Add("y")

	a.Merge(b)
	assert.True(t, a.Contains("x"))
	assert.True(t, a.Contains("y"))
	assert.Equal(t, 2, a.Len())
}

func TestGSet_JSONRoundTrip(t *testing.T) {
	s := NewGSet[string]()
	s.Add("a")
	s.Add("b")

	data, err := json.Marshal(s)
	require.NoError(t, err)

	out := NewGSet[string]()
	require.NoError(t, json.Unmarshal(data, out))
	assert.ElementsMatch(t, s.Elements(), out.Elements())
}

func TestORSet_AddWinsOverConcurrentRemoveOfDifferentTag(t *testing.T) {
	ra, rb := NewReplicaID(), NewReplicaID()
	tagA := LogicalClock{Counter: 1, Replica: ra}
	tagB := LogicalClock{Counter: 1, Replica: rb}

	// Replica A adds "shared" and concurrently removes it (observed tagA);
	// replica B independently adds "shared" with a distinct tag (tagB).
	a := NewORSet[string]()
	a.Add("shared", tagA)
	a.Remove("shared")

	b := NewORSet[string]()
	b.Add("shared", tagB)

	a.Merge(b)
	assert.True(t, a.Contains("shared"), "add with an un-observed tag survives a concurrent remove")
}

func TestORSet_RemoveThenMergeDoesNotResurrect(t *testing.T) {
	ra := NewReplicaID()
	tag := LogicalClock{Counter: 1, Replica: ra}

	a := NewORSet[string]()
	a.Add("x", tag)

	b := a.Clone()
	b.Remove("x")

	a.Merge(b)
	assert.False(t, a.Contains("x"))
}

func TestORSet_MergeIsCommutativeAndIdempotent(t *testing.T) {
	ra, rb := NewReplicaID(), NewReplicaID()
	a := NewORSet[string]()
	a.Add("x", LogicalClock{Counter: 1, Replica: ra})
	b := NewORSet[string]()
	b.Add("y", LogicalClock{Counter: 1, Replica: rb})
	b.Remove("y")

	ab := a.Clone()
	ab.Merge(b)
	ba := b.Clone()
	ba.Merge(a)

	assert.ElementsMatch(t, ab.Elements(), ba.Elements())

	before := ab.Elements()
	ab.Merge(b)
	assert.ElementsMatch(t, before, ab.Elements())
}

func TestORSet_JSONRoundTripPreservesTombstones(t *testing.T) {
	ra := NewReplicaID()
	s := NewORSet[string]()
	s.Add("kept", LogicalClock{Counter: 1, Replica: ra})
	s.Add("removed", LogicalClock{Counter: 2, Replica: ra})
	s.Remove("removed")

	data, err := json.Marshal(s)
	require.NoError(t, err)

	out := NewORSet[string]()
	require.NoError(t, json.Unmarshal(data, out))
	assert.True(t, out.Contains("kept"))
	assert.False(t, out.Contains("removed"))

	// A stale add using the already-tombstoned tag must not resurrect it.
	out.Add("removed", LogicalClock{Counter: 2, Replica: ra})
	assert.False(t, out.Contains("removed"))
}
