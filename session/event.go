package session

import (
	"github.com/replicaworks/collabcore/crdt"
	"github.com/replicaworks/collabcore/presence"
)

// EventKind tags a SessionEvent's variant. SessionEvent is one flat struct
// rather than a Go-side tagged union per variant — the same shape the
// teacher's own Message envelope uses (a Type tag plus a handful of
// optional fields), just applied to the higher-level event stream instead
// of to raw CRDT operations.
type EventKind string

const (
	EventClientJoined     EventKind = "client_joined"
	EventClientLeft       EventKind = "client_left"
	EventDocumentChanged  EventKind = "document_changed"
	EventCursorMoved      EventKind = "cursor_moved"
	EventSelectionChanged EventKind = "selection_changed"
	EventPresenceUpdated  EventKind = "presence_updated"
	EventStateChanged     EventKind = "state_changed"
	EventSyncRequired     EventKind = "sync_required"
)

// SessionEvent is one item on a session's broadcast stream.
type SessionEvent struct {
	Kind      EventKind                `json:"kind"`
	Replica   crdt.ReplicaID           `json:"replica,omitempty"`
	UserID    string                   `json:"user_id,omitempty"`
	Name      string                   `json:"name,omitempty"`
	Field     string                   `json:"field,omitempty"`
	Version   uint64                   `json:"version,omitempty"`
	Cursor    *presence.CursorPosition `json:"cursor,omitempty"`
	Selection *presence.SelectionRange `json:"selection,omitempty"`
	Status    SessionStatus            `json:"status,omitempty"`
}

func clientJoinedEvent(replica crdt.ReplicaID, userID, name string) SessionEvent {
	return SessionEvent{Kind: EventClientJoined, Replica: replica, UserID: userID, Name: name}
}

func clientLeftEvent(replica crdt.ReplicaID) SessionEvent {
	return SessionEvent{Kind: EventClientLeft, Replica: replica}
}

func documentChangedEvent(replica crdt.ReplicaID, field string, version uint64) SessionEvent {
	return SessionEvent{Kind: EventDocumentChanged, Replica: replica, Field: field, Version: version}
}

func cursorMovedEvent(replica crdt.ReplicaID, pos presence.CursorPosition) SessionEvent {
	return SessionEvent{Kind: EventCursorMoved, Replica: replica, Cursor: &pos}
}

func selectionChangedEvent(replica crdt.ReplicaID, sel presence.SelectionRange) SessionEvent {
	return SessionEvent{Kind: EventSelectionChanged, Replica: replica, Selection: &sel}
}

func presenceUpdatedEvent(replica crdt.ReplicaID) SessionEvent {
	return SessionEvent{Kind: EventPresenceUpdated, Replica: replica}
}

func stateChangedEvent(status SessionStatus) SessionEvent {
	return SessionEvent{Kind: EventStateChanged, Status: status}
}

func syncRequiredEvent(replica crdt.ReplicaID) SessionEvent {
	return SessionEvent{Kind: EventSyncRequired, Replica: replica}
}
