package transport

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/replicaworks/collabcore/crdt"
	"github.com/replicaworks/collabcore/document"
	"github.com/replicaworks/collabcore/presence"
	"github.com/replicaworks/collabcore/rga"
	"github.com/replicaworks/collabcore/session"
)

// wsSender adapts WSConn to the transport.Sender interface the registry
// relays raw operation Messages through.
type wsSender struct {
	ws *WSConn
}

func (s *wsSender) Send(msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.ws.WriteMessage(b)
}

func (s *wsSender) Close() error       { return s.ws.Close() }
func (s *wsSender) RemoteAddr() string { return s.ws.RemoteAddr() }

// WSHandler upgrades WebSocket requests and bridges them to collabcore's
// session and document layers: one connection per replica per document, at
// path "/ws/{doc_id}".
type WSHandler struct {
	manager *session.Manager
	store   *documentStore
	reg     *registry
	logger  *zap.Logger
}

// NewWSHandler wires a handler backed by the given session manager.
func NewWSHandler(manager *session.Manager, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		manager: manager,
		store:   newDocumentStore(),
		reg:     newRegistry(logger),
		logger:  logger,
	}
}

// ServeHTTP upgrades the connection, joins the document's session, and runs
// the connection's read loop until the client disconnects.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, rw, err := wsHandshake(w, r)
	if err != nil {
		http.Error(w, "websocket upgrade failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	ws := &WSConn{conn: conn, rw: rw}

	docID := strings.TrimPrefix(r.URL.Path, "/ws/")
	if docID == "" {
		docID = "default"
	}
	userID := r.URL.Query().Get("user_id")
	name := r.URL.Query().Get("name")
	if name == "" {
		name = conn.RemoteAddr().String()
	}

	doc := h.store.getOrCreate(docID)
	sess := h.manager.GetOrCreate(doc)
	replica := crdt.NewReplicaID()

	sub, err := sess.Join(replica, userID, name)
	if err != nil {
		h.sendError(ws, err)
		ws.Close()
		return
	}
	h.reg.register(docID, replica, &wsSender{ws: ws})

	defer func() {
		h.reg.unregister(docID, replica)
		sess.Leave(replica)
		sub.Unsubscribe()
		ws.Close()
	}()

	h.sendSnapshot(ws, docID, doc)
	go h.pumpEvents(ws, sub)

	for {
		payload, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Warn("bad message json", zap.Error(err))
			continue
		}
		msg.DocID = docID
		h.dispatch(sess, doc, replica, msg)
	}
}

func (h *WSHandler) sendSnapshot(ws *WSConn, docID string, doc *document.Document) {
	snapshot, err := doc.ToJSON()
	if err != nil {
		h.logger.Warn("snapshot encode failed", zap.Error(err))
		return
	}
	payload, _ := json.Marshal(SnapshotPayload{Document: snapshot})
	b, err := json.Marshal(Message{DocID: docID, Type: MsgSnapshot, Payload: payload, Ts: time.Now()})
	if err != nil {
		return
	}
	if err := ws.WriteMessage(b); err != nil {
		h.logger.Warn("snapshot send failed", zap.Error(err))
	}
}

func (h *WSHandler) sendError(ws *WSConn, err error) {
	kind := "unknown"
	if collabErr, ok := err.(*session.CollabError); ok {
		kind = string(collabErr.Kind)
	}
	payload, _ := json.Marshal(ErrorPayload{Kind: kind, Message: err.Error()})
	b, marshalErr := json.Marshal(Message{Type: MsgError, Payload: payload, Ts: time.Now()})
	if marshalErr != nil {
		return
	}
	ws.WriteMessage(b)
}

// pumpEvents forwards a session's SessionEvent stream to the client until
// the subscription's channel is closed (the session closed).
func (h *WSHandler) pumpEvents(ws *WSConn, sub *session.Subscription) {
	for event := range sub.Events() {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		b, err := json.Marshal(Message{Type: MsgEvent, Payload: payload, Ts: time.Now()})
		if err != nil {
			continue
		}
		if err := ws.WriteMessage(b); err != nil {
			return
		}
	}
}

// dispatch applies an incoming client message to doc and relays the
// resulting raw operation to every other connection on the same document.
// Unknown types and malformed payloads are logged and dropped — a bad
// client message never tears down the connection.
func (h *WSHandler) dispatch(sess *session.CollabSession, doc *document.Document, replica crdt.ReplicaID, msg Message) {
	switch msg.Type {
	case MsgInsert:
		var p InsertPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.logger.Warn("bad insert payload", zap.Error(err))
			return
		}
		if p.Value == "" {
			return
		}
		runes := []rune(p.Value)
		op := rga.TextOp{Kind: rga.OpInsert, ID: p.ID, Value: runes[0], After: p.After}
		doc.Text(p.Field).Apply(op)
		sess.RecordOperation(replica, p.Field)
		h.reg.relay(msg.DocID, msg, replica)

	case MsgDelete:
		var p DeletePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.logger.Warn("bad delete payload", zap.Error(err))
			return
		}
		op := rga.TextOp{Kind: rga.OpDelete, ID: p.ID}
		doc.Text(p.Field).Apply(op)
		sess.RecordOperation(replica, p.Field)
		h.reg.relay(msg.DocID, msg, replica)

	case MsgCursor:
		var p CursorPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.logger.Warn("bad cursor payload", zap.Error(err))
			return
		}
		sess.UpdateCursor(replica, presence.CursorPosition{Field: p.Field, Offset: p.Offset})

	case MsgSelection:
		var p SelectionPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.logger.Warn("bad selection payload", zap.Error(err))
			return
		}
		sess.UpdateSelection(replica, presence.SelectionRange{Field: p.Field, Start: p.Start, End: p.End})

	case MsgPresence:
		var p PresencePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.logger.Warn("bad presence payload", zap.Error(err))
			return
		}
		sess.UpdatePresenceStatus(replica, presence.Status(p.Status))

	default:
		h.logger.Warn("unknown message type", zap.String("type", msg.Type))
	}
}
