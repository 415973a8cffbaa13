package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogicalClock_TickIsMonotonic(t *testing.T) {
	replica := NewReplicaID()
	c := NewLogicalClock(replica)
	for i := 0; i < 5; i++ {
		next := c.Tick()
		assert.True(t, c.Less(next), "tick must strictly advance the clock")
		c = next
	}
	assert.Equal(t, uint64(5), c.Counter)
}

func TestLogicalClock_MergeTakesMax(t *testing.T) {
	r1, r2 := NewReplicaID(), NewReplicaID()
	a := LogicalClock{Counter: 3, Replica: r1}
	b := LogicalClock{Counter: 7, Replica: r2}

	merged := a.Merge(b)
	assert.Equal(t, uint64(7), merged.Counter)
	assert.Equal(t, r1, merged.Replica, "merge keeps the receiver's own replica identity")
}

func TestLogicalClock_LessBreaksTiesOnReplica(t *testing.T) {
	r1, r2 := NewReplicaID(), NewReplicaID()
	require.NotEqual(t, r1, r2)

	a := LogicalClock{Counter: 1, Replica: r1}
	b := LogicalClock{Counter: 1, Replica: r2}

	if r1.Less(r2) {
		assert.True(t, a.Less(b))
		assert.False(t, b.Less(a))
	} else {
		assert.True(t, b.Less(a))
		assert.False(t, a.Less(b))
	}
}

func TestVectorClock_HappensBeforeAndConcurrent(t *testing.T) {
	ra, rb := NewReplicaID(), NewReplicaID()

	v1 := NewVectorClock().Increment(ra)
	v2 := v1.Increment(rb)

	assert.True(t, v1.HappensBefore(v2))
	assert.False(t, v2.HappensBefore(v1))
	assert.False(t, v1.Concurrent(v2))

	branchA := v1.Increment(ra)
	branchB := v1.Increment(rb)
	assert.True(t, branchA.Concurrent(branchB))
	assert.False(t, branchA.HappensBefore(branchB))
	assert.False(t, branchB.HappensBefore(branchA))
}

func TestVectorClock_MergeIsComponentWiseMax(t *testing.T) {
	ra, rb := NewReplicaID(), NewReplicaID()
	v1 := VectorClock{ra: 3, rb: 1}
	v2 := VectorClock{ra: 2, rb: 5}

	merged := v1.Merge(v2)
	assert.Equal(t, uint64(3), merged[ra])
	assert.Equal(t, uint64(5), merged[rb])

	// commutative
	other := v2.Merge(v1)
	assert.True(t, merged.Equal(other))
}

func TestVectorClock_CloneIsIndependent(t *testing.T) {
	ra := NewReplicaID()
	v1 := NewVectorClock().Increment(ra)
	clone := v1.Clone()
	clone2 := clone.Increment(ra)

	assert.Equal(t, uint64(1), v1.Get(ra))
	assert.Equal(t, uint64(1), clone.Get(ra))
	assert.Equal(t, uint64(2), clone2.Get(ra))
}
