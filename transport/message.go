// Package transport provides a hand-rolled RFC 6455 WebSocket upgrade and
// wire codec over collabcore's session/document core. It is the reference
// integration the rest of the module is exercised through, not the only way
// to drive collabcore — any transport that can move the same Message
// envelope would do.
package transport

import (
	"encoding/json"
	"time"

	"github.com/replicaworks/collabcore/rga"
)

// Message types exchanged over the wire: the raw CRDT op vocabulary
// (insert/delete/snapshot/ack/error) plus the session-event and presence
// types layered on top.
const (
	MsgInsert    = "insert"
	MsgDelete    = "delete"
	MsgSnapshot  = "snapshot"
	MsgAck       = "ack"
	MsgError     = "error"
	MsgEvent     = "event"
	MsgCursor    = "cursor"
	MsgSelection = "selection"
	MsgPresence  = "presence"
)

// Message is the wire envelope for everything exchanged over a connection:
// raw CRDT operations relayed between peers, and collabcore SessionEvents
// pushed down to a client.
type Message struct {
	DocID    string          `json:"doc_id"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	SenderID string          `json:"sender_id,omitempty"`
	Ts       time.Time       `json:"ts"`
}

// InsertPayload carries one RGA insert operation.
type InsertPayload struct {
	Field string     `json:"field"`
	After rga.CharID `json:"after"`
	ID    rga.CharID `json:"id"`
	Value string     `json:"value"` // single rune, as a string
}

// DeletePayload carries one RGA delete operation.
type DeletePayload struct {
	Field string     `json:"field"`
	ID    rga.CharID `json:"id"`
}

// SnapshotPayload carries a full document snapshot, sent to a client on
// join so it starts from the same state before any relayed ops apply.
type SnapshotPayload struct {
	Document json.RawMessage `json:"document"`
}

// CursorPayload carries a caret move.
type CursorPayload struct {
	Field  string `json:"field"`
	Offset int    `json:"offset"`
}

// SelectionPayload carries a selection range.
type SelectionPayload struct {
	Field string `json:"field"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// PresencePayload carries an online/away/busy/offline status change.
type PresencePayload struct {
	Status string `json:"status"`
}

// ErrorPayload reports a CollabError back to the client.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
