// Package crdt provides the generic conflict-free replicated data types
// (CRDTs) that the rest of collabcore builds on: clocks, registers,
// counters, sets and maps. None of these types are safe for concurrent use
// by themselves — document.Document serializes access through its own lock
// and only calls into crdt (and rga) under it.
package crdt

import "github.com/google/uuid"

// ReplicaID uniquely identifies a replica for the lifetime of its process.
type ReplicaID uuid.UUID

// NewReplicaID returns a fresh, globally-unique replica identifier.
func NewReplicaID() ReplicaID {
	return ReplicaID(uuid.New())
}

// NilReplicaID is the zero-value replica identifier. It anchors the RGA root.
var NilReplicaID = ReplicaID(uuid.Nil)

func (r ReplicaID) String() string {
	return uuid.UUID(r).String()
}

// Less gives ReplicaID a total order, used as a tie-breaker by LogicalClock
// and CharID when counters collide.
func (r ReplicaID) Less(other ReplicaID) bool {
	for i := range r {
		if r[i] != other[i] {
			return r[i] < other[i]
		}
	}
	return false
}

func (r ReplicaID) MarshalText() ([]byte, error) {
	return uuid.UUID(r).MarshalText()
}

func (r *ReplicaID) UnmarshalText(data []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(data); err != nil {
		return err
	}
	*r = ReplicaID(u)
	return nil
}

// LogicalClock is a Lamport-style clock: a monotonically increasing counter
// disambiguated by replica so that concurrent ticks from different replicas
// never collide.
type LogicalClock struct {
	Counter uint64    `json:"counter"`
	Replica ReplicaID `json:"replica"`
}

// NewLogicalClock builds a clock at counter 0 for replica.
func NewLogicalClock(replica ReplicaID) LogicalClock {
	return LogicalClock{Counter: 0, Replica: replica}
}

// Tick advances the clock by one and returns the new value. The replica
// component never changes: a clock belongs to the replica that owns it.
func (c LogicalClock) Tick() LogicalClock {
	return LogicalClock{Counter: c.Counter + 1, Replica: c.Replica}
}

// Merge folds in an observed counter from elsewhere, advancing this clock to
// at least that value while keeping its own replica identity.
func (c LogicalClock) Merge(other LogicalClock) LogicalClock {
	counter := c.Counter
	if other.Counter > counter {
		counter = other.Counter
	}
	return LogicalClock{Counter: counter, Replica: c.Replica}
}

// Less orders clocks by counter first, then by replica as a tie-breaker.
// This total order is what LWWRegister and the RGA sibling ordering build on.
func (c LogicalClock) Less(other LogicalClock) bool {
	if c.Counter != other.Counter {
		return c.Counter < other.Counter
	}
	return c.Replica.Less(other.Replica)
}

func (c LogicalClock) Equal(other LogicalClock) bool {
	return c.Counter == other.Counter && c.Replica == other.Replica
}

// VectorClock tracks, per replica, the highest counter observed from it.
// It gives a partial order over events: HappensBefore/Concurrent answer
// whether two states are causally related or diverged.
type VectorClock map[ReplicaID]uint64

// NewVectorClock returns an empty clock.
func NewVectorClock() VectorClock {
	return make(VectorClock)
}

// Clone returns an independent copy.
func (v VectorClock) Clone() VectorClock {
	out := make(VectorClock, len(v))
	for r, c := range v {
		out[r] = c
	}
	return out
}

// Increment returns a copy of v with replica's counter bumped by one.
func (v VectorClock) Increment(replica ReplicaID) VectorClock {
	next := v.Clone()
	next[replica]++
	return next
}

// Get returns the counter observed for replica, or 0 if never observed.
func (v VectorClock) Get(replica ReplicaID) uint64 {
	return v[replica]
}

// LessOrEqual reports whether every entry in v is <= the corresponding entry
// in other (missing entries count as 0).
func (v VectorClock) LessOrEqual(other VectorClock) bool {
	for r, c := range v {
		if other[r] < c {
			return false
		}
	}
	return true
}

// HappensBefore reports whether v strictly precedes other in the partial
// order: every component is <=, and at least one is strictly less.
func (v VectorClock) HappensBefore(other VectorClock) bool {
	return v.LessOrEqual(other) && !other.LessOrEqual(v)
}

// Concurrent reports whether v and other are incomparable: neither
// happens-before the other.
func (v VectorClock) Concurrent(other VectorClock) bool {
	return !v.LessOrEqual(other) && !other.LessOrEqual(v)
}

// Equal reports whether v and other observed exactly the same counters.
func (v VectorClock) Equal(other VectorClock) bool {
	return v.LessOrEqual(other) && other.LessOrEqual(v)
}

// Merge returns the component-wise maximum of v and other.
func (v VectorClock) Merge(other VectorClock) VectorClock {
	merged := v.Clone()
	for r, c := range other {
		if c > merged[r] {
			merged[r] = c
		}
	}
	return merged
}
