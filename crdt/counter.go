package crdt

// GCounter is a grow-only counter: each replica only ever increments its own
// slot, and the total is the sum across all replicas. Merge takes the
// component-wise maximum, same as VectorClock.
type GCounter struct {
	Counts map[ReplicaID]uint64 `json:"counts"`
}

// NewGCounter returns an empty counter.
func NewGCounter() *GCounter {
	return &GCounter{Counts: make(map[ReplicaID]uint64)}
}

// Increment bumps replica's slot by one.
func (c *GCounter) Increment(replica ReplicaID) {
	c.IncrementBy(replica, 1)
}

// IncrementBy bumps replica's slot by delta.
func (c *GCounter) IncrementBy(replica ReplicaID, delta uint64) {
	c.Counts[replica] += delta
}

// Value is the sum of every replica's slot.
func (c *GCounter) Value() uint64 {
	var total uint64
	for _, v := range c.Counts {
		total += v
	}
	return total
}

// ReplicaCount returns the slot for a single replica.
func (c *GCounter) ReplicaCount(replica ReplicaID) uint64 {
	return c.Counts[replica]
}

// Merge takes the component-wise maximum of the two counters' slots.
func (c *GCounter) Merge(other *GCounter) {
	for r, v := range other.Counts {
		if v > c.Counts[r] {
			c.Counts[r] = v
		}
	}
}

// Clone returns an independent copy.
func (c *GCounter) Clone() *GCounter {
	out := NewGCounter()
	for r, v := range c.Counts {
		out.Counts[r] = v
	}
	return out
}

// PNCounter composes two GCounters — one tracking increments, one tracking
// decrements — so that the net value can decrease without ever needing to
// merge by taking a minimum (which wouldn't converge correctly).
type PNCounter struct {
	Positive *GCounter `json:"positive"`
	Negative *GCounter `json:"negative"`
}

// NewPNCounter returns a counter at zero.
func NewPNCounter() *PNCounter {
	return &PNCounter{Positive: NewGCounter(), Negative: NewGCounter()}
}

func (c *PNCounter) Increment(replica ReplicaID) {
	c.Positive.Increment(replica)
}

func (c *PNCounter) Decrement(replica ReplicaID) {
	c.Negative.Increment(replica)
}

// Value is positive.Value() - negative.Value().
func (c *PNCounter) Value() int64 {
	return int64(c.Positive.Value()) - int64(c.Negative.Value())
}

func (c *PNCounter) Merge(other *PNCounter) {
	c.Positive.Merge(other.Positive)
	c.Negative.Merge(other.Negative)
}

func (c *PNCounter) Clone() *PNCounter {
	return &PNCounter{Positive: c.Positive.Clone(), Negative: c.Negative.Clone()}
}
