// Package rga implements a Replicated Growable Array text CRDT: a sequence
// of tombstoned character nodes, each addressed by a CharID that gives the
// whole sequence a deterministic total order regardless of delivery order.
package rga

import (
	"bytes"

	"github.com/google/uuid"

	"github.com/replicaworks/collabcore/crdt"
)

// CharID identifies a single character in the sequence. The LogicalClock
// component orders inserts causally; the UUID component breaks ties between
// two inserts that happen to land on the same clock value (which cannot
// happen for a single replica but can across replicas racing concurrently).
type CharID struct {
	Timestamp crdt.LogicalClock `json:"timestamp"`
	UUID      uuid.UUID         `json:"uuid"`
}

// RootCharID is the distinguished, always-present anchor that every
// sequence starts from. It sorts lower than any CharID a replica can mint.
func RootCharID() CharID {
	return CharID{}
}

func (id CharID) IsRoot() bool {
	return id.UUID == uuid.Nil
}

// Less gives CharID a total order: by clock first, then by uuid. Two
// distinct inserts can never compare equal under this order.
func (id CharID) Less(other CharID) bool {
	if !id.Timestamp.Equal(other.Timestamp) {
		return id.Timestamp.Less(other.Timestamp)
	}
	return bytes.Compare(id.UUID[:], other.UUID[:]) < 0
}
