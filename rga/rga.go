package rga

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/replicaworks/collabcore/crdt"
)

// RGAText is a single replicated text field. Local edits go through Insert/
// Delete; remote edits arrive through Apply. Neither is safe for concurrent
// use on its own — document.Document serializes access with its own lock
// before ever touching a field's RGAText.
type RGAText struct {
	Replica crdt.ReplicaID    `json:"replica"`
	Clock   crdt.LogicalClock `json:"clock"`

	nodes    map[CharID]CharNode
	sequence []CharID

	// pending buffers inserts whose After anchor hasn't arrived yet, keyed
	// by the missing anchor. pendingDeletes buffers deletes of a node that
	// hasn't arrived yet. Both drain the instant the awaited node arrives.
	pending        map[CharID][]TextOp
	pendingDeletes map[CharID]struct{}
}

// NewRGAText returns an empty text field owned by replica.
func NewRGAText(replica crdt.ReplicaID) *RGAText {
	root := RootCharID()
	t := &RGAText{
		Replica:        replica,
		Clock:          crdt.NewLogicalClock(replica),
		nodes:          make(map[CharID]CharNode),
		sequence:       []CharID{root},
		pending:        make(map[CharID][]TextOp),
		pendingDeletes: make(map[CharID]struct{}),
	}
	t.nodes[root] = CharNode{ID: root, After: root}
	return t
}

// idAtPosition returns the CharID a local insert at pos should anchor after:
// the id of the pos-th visible character, or the last visible character if
// pos runs past the end, or the root if pos is 0.
func (t *RGAText) idAtPosition(pos int) CharID {
	if pos <= 0 {
		return RootCharID()
	}
	visible := 0
	for _, id := range t.sequence {
		if node := t.nodes[id]; !node.IsDeleted() {
			visible++
			if visible == pos {
				return id
			}
		}
	}
	for i := len(t.sequence) - 1; i >= 0; i-- {
		id := t.sequence[i]
		if !t.nodes[id].IsDeleted() {
			return id
		}
	}
	return RootCharID()
}

// visibleIDAtPosition returns the id of the pos-th visible character
// (0-indexed), or false if pos is out of range.
func (t *RGAText) visibleIDAtPosition(pos int) (CharID, bool) {
	visible := 0
	for _, id := range t.sequence {
		node := t.nodes[id]
		if node.IsDeleted() {
			continue
		}
		if visible == pos {
			return id, true
		}
		visible++
	}
	return CharID{}, false
}

// findInsertPosition locates where newID belongs in sequence among the
// existing siblings anchored at after. Siblings sharing an anchor are kept
// sorted with the larger CharID closer to the anchor, which is what makes
// every replica converge to the same order regardless of delivery order.
func (t *RGAText) findInsertPosition(after, newID CharID) int {
	afterPos := 0
	for i, id := range t.sequence {
		if id == after {
			afterPos = i
			break
		}
	}
	insertPos := afterPos + 1
	for insertPos < len(t.sequence) {
		existingID := t.sequence[insertPos]
		existing, ok := t.nodes[existingID]
		if !ok || existing.After != after {
			break
		}
		if existingID.Less(newID) {
			break
		}
		insertPos++
	}
	return insertPos
}

func (t *RGAText) spliceIn(id CharID) {
	node := t.nodes[id]
	pos := t.findInsertPosition(node.After, id)
	t.sequence = append(t.sequence, CharID{})
	copy(t.sequence[pos+1:], t.sequence[pos:])
	t.sequence[pos] = id
}

// Insert mints a new character at pos and integrates it locally, returning
// the operation record to relay to peers.
func (t *RGAText) Insert(pos int, ch rune) TextOp {
	after := t.idAtPosition(pos)
	t.Clock = t.Clock.Tick()
	id := CharID{Timestamp: t.Clock, UUID: uuid.New()}
	value := ch
	t.nodes[id] = CharNode{ID: id, Value: &value, After: after}
	t.spliceIn(id)
	return TextOp{Kind: OpInsert, ID: id, Value: ch, After: after}
}

// InsertString inserts s starting at pos, one character at a time, and
// returns the full sequence of operation records in order.
func (t *RGAText) InsertString(pos int, s string) []TextOp {
	ops := make([]TextOp, 0, len(s))
	cur := pos
	for _, ch := range s {
		ops = append(ops, t.Insert(cur, ch))
		cur++
	}
	return ops
}

// Delete tombstones the pos-th visible character, returning the operation
// record and whether a character existed at pos.
func (t *RGAText) Delete(pos int) (TextOp, bool) {
	id, ok := t.visibleIDAtPosition(pos)
	if !ok {
		return TextOp{}, false
	}
	t.tombstone(id)
	return TextOp{Kind: OpDelete, ID: id}, true
}

// DeleteRange tombstones [start, end) and returns the operation records,
// deleting from the end backward so earlier positions stay valid.
func (t *RGAText) DeleteRange(start, end int) []TextOp {
	if end <= start {
		return nil
	}
	ops := make([]TextOp, 0, end-start)
	for pos := end - 1; pos >= start; pos-- {
		if op, ok := t.Delete(pos); ok {
			ops = append(ops, op)
		}
	}
	return ops
}

func (t *RGAText) tombstone(id CharID) {
	node, ok := t.nodes[id]
	if !ok {
		return
	}
	node.Value = nil
	t.nodes[id] = node
}

// Apply integrates a remote operation record. Inserts whose anchor hasn't
// arrived yet, and deletes of a node that hasn't arrived yet, are buffered
// and replayed automatically once the awaited node is integrated — this is
// what keeps convergence correct no matter what order operations arrive in.
func (t *RGAText) Apply(op TextOp) {
	switch op.Kind {
	case OpInsert:
		t.applyInsert(op)
	case OpDelete:
		t.applyDelete(op.ID)
	}
}

func (t *RGAText) applyInsert(op TextOp) {
	t.Clock = t.Clock.Merge(op.ID.Timestamp)
	if _, exists := t.nodes[op.ID]; exists {
		return
	}
	if _, anchorKnown := t.nodes[op.After]; !anchorKnown {
		t.pending[op.After] = append(t.pending[op.After], op)
		return
	}
	t.integrateInsert(op)
}

func (t *RGAText) integrateInsert(op TextOp) {
	value := op.Value
	t.nodes[op.ID] = CharNode{ID: op.ID, Value: &value, After: op.After}
	t.spliceIn(op.ID)

	if waiting, ok := t.pending[op.ID]; ok {
		delete(t.pending, op.ID)
		for _, w := range waiting {
			t.applyInsert(w)
		}
	}
	if _, ok := t.pendingDeletes[op.ID]; ok {
		delete(t.pendingDeletes, op.ID)
		t.applyDelete(op.ID)
	}
}

func (t *RGAText) applyDelete(id CharID) {
	if _, ok := t.nodes[id]; !ok {
		t.pendingDeletes[id] = struct{}{}
		return
	}
	t.tombstone(id)
}

// Merge folds another replica's full state into t: every node the other
// replica has that t doesn't gets inserted (through the same buffering path
// as Apply, so missing-anchor ordering is handled identically), and every
// tombstone the other replica has is applied locally too.
func (t *RGAText) Merge(other *RGAText) {
	for id, node := range other.nodes {
		if id.IsRoot() {
			continue
		}
		if _, exists := t.nodes[id]; !exists {
			value := rune(0)
			if node.Value != nil {
				value = *node.Value
			}
			t.applyInsert(TextOp{Kind: OpInsert, ID: id, Value: value, After: node.After})
		}
		if node.IsDeleted() {
			t.applyDelete(id)
		}
	}
	t.Clock = t.Clock.Merge(other.Clock)
}

// Text returns the currently visible string.
func (t *RGAText) Text() string {
	var sb strings.Builder
	for _, id := range t.sequence {
		if node := t.nodes[id]; !node.IsDeleted() {
			sb.WriteRune(*node.Value)
		}
	}
	return sb.String()
}

// Len returns the number of visible characters.
func (t *RGAText) Len() int {
	n := 0
	for _, id := range t.sequence {
		if !t.nodes[id].IsDeleted() {
			n++
		}
	}
	return n
}

func (t *RGAText) IsEmpty() bool { return t.Len() == 0 }

// CharAt returns the pos-th visible character.
func (t *RGAText) CharAt(pos int) (rune, bool) {
	id, ok := t.visibleIDAtPosition(pos)
	if !ok {
		return 0, false
	}
	node := t.nodes[id]
	if node.IsDeleted() {
		return 0, false
	}
	return *node.Value, true
}

// Operations replays the field's full history as operation records, in
// sequence order, for syncing a late-joining peer from scratch.
func (t *RGAText) Operations() []TextOp {
	ops := make([]TextOp, 0, len(t.sequence))
	for _, id := range t.sequence {
		if id.IsRoot() {
			continue
		}
		node := t.nodes[id]
		value := rune(0)
		if node.Value != nil {
			value = *node.Value
		}
		ops = append(ops, TextOp{Kind: OpInsert, ID: node.ID, Value: value, After: node.After})
		if node.IsDeleted() {
			ops = append(ops, TextOp{Kind: OpDelete, ID: node.ID})
		}
	}
	return ops
}

// Clone returns an independent deep copy.
func (t *RGAText) Clone() *RGAText {
	clone := &RGAText{
		Replica:        t.Replica,
		Clock:          t.Clock,
		nodes:          make(map[CharID]CharNode, len(t.nodes)),
		sequence:       append([]CharID(nil), t.sequence...),
		pending:        make(map[CharID][]TextOp, len(t.pending)),
		pendingDeletes: make(map[CharID]struct{}, len(t.pendingDeletes)),
	}
	for id, node := range t.nodes {
		if node.Value != nil {
			v := *node.Value
			node.Value = &v
		}
		clone.nodes[id] = node
	}
	for anchor, ops := range t.pending {
		clone.pending[anchor] = append([]TextOp(nil), ops...)
	}
	for id := range t.pendingDeletes {
		clone.pendingDeletes[id] = struct{}{}
	}
	return clone
}

type rgaTextWire struct {
	Replica        crdt.ReplicaID         `json:"replica"`
	Clock          crdt.LogicalClock      `json:"clock"`
	Nodes          []CharNode             `json:"nodes"`
	Sequence       []CharID               `json:"sequence"`
	Pending        []pendingInsertWire    `json:"pending,omitempty"`
	PendingDeletes []CharID               `json:"pending_deletes,omitempty"`
}

type pendingInsertWire struct {
	Anchor CharID   `json:"anchor"`
	Ops    []TextOp `json:"ops"`
}

// MarshalJSON flattens the internal maps into arrays since CharID isn't a
// valid JSON object key, then reconstructs them verbatim on UnmarshalJSON —
// including in-flight pending buffers, so a snapshot taken mid-merge still
// converges correctly once reloaded.
func (t *RGAText) MarshalJSON() ([]byte, error) {
	wire := rgaTextWire{
		Replica:  t.Replica,
		Clock:    t.Clock,
		Nodes:    make([]CharNode, 0, len(t.nodes)),
		Sequence: append([]CharID(nil), t.sequence...),
	}
	for _, node := range t.nodes {
		wire.Nodes = append(wire.Nodes, node)
	}
	for anchor, ops := range t.pending {
		wire.Pending = append(wire.Pending, pendingInsertWire{Anchor: anchor, Ops: ops})
	}
	for id := range t.pendingDeletes {
		wire.PendingDeletes = append(wire.PendingDeletes, id)
	}
	return json.Marshal(wire)
}

func (t *RGAText) UnmarshalJSON(data []byte) error {
	var wire rgaTextWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	t.Replica = wire.Replica
	t.Clock = wire.Clock
	t.sequence = wire.Sequence
	t.nodes = make(map[CharID]CharNode, len(wire.Nodes))
	for _, node := range wire.Nodes {
		t.nodes[node.ID] = node
	}
	t.pending = make(map[CharID][]TextOp, len(wire.Pending))
	for _, p := range wire.Pending {
		t.pending[p.Anchor] = p.Ops
	}
	t.pendingDeletes = make(map[CharID]struct{}, len(wire.PendingDeletes))
	for _, id := range wire.PendingDeletes {
		t.pendingDeletes[id] = struct{}{}
	}
	if _, ok := t.nodes[RootCharID()]; !ok {
		t.nodes[RootCharID()] = CharNode{ID: RootCharID(), After: RootCharID()}
	}
	return nil
}
