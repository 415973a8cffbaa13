package document

import (
	"github.com/replicaworks/collabcore/crdt"
	"github.com/replicaworks/collabcore/rga"
)

func newFieldText(replica crdt.ReplicaID) *rga.RGAText {
	return rga.NewRGAText(replica)
}

// RGAHandle is the mutable view onto a text field returned by Document.Text.
// Every mutation through it also advances the owning document's clock,
// vclock and version, the same as any other field mutator — text fields
// aren't a silent exception to the document's versioning.
type RGAHandle struct {
	doc   *Document
	field string
	text  *rga.RGAText
}

// syncClock folds the field's own clock — just advanced by a Tick per
// character inside RGAText — back into the document's clock, so that
// d.clock.Counter never falls behind the highest CharID.Timestamp.Counter
// just stamped on this replica, no matter how many characters a single call
// ticked the field through.
func (h *RGAHandle) syncClock() {
	h.doc.clock = h.doc.clock.Merge(h.text.Clock)
}

func (h *RGAHandle) Insert(pos int, ch rune) rga.TextOp {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	h.doc.tick()
	op := h.text.Insert(pos, ch)
	h.syncClock()
	return op
}

func (h *RGAHandle) InsertString(pos int, s string) []rga.TextOp {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	h.doc.tick()
	ops := h.text.InsertString(pos, s)
	h.syncClock()
	return ops
}

func (h *RGAHandle) Delete(pos int) (rga.TextOp, bool) {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	h.doc.tick()
	op, ok := h.text.Delete(pos)
	h.syncClock()
	return op, ok
}

func (h *RGAHandle) DeleteRange(start, end int) []rga.TextOp {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	h.doc.tick()
	ops := h.text.DeleteRange(start, end)
	h.syncClock()
	return ops
}

// Apply integrates a remote operation record produced by another replica's
// Insert/Delete. It still advances the document's own clocks: a remote edit
// is a mutation of this document's state just as much as a local one, and
// d.clock must observe the remote timestamp the same way h.text.Clock does.
func (h *RGAHandle) Apply(op rga.TextOp) {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	h.doc.vclock = h.doc.vclock.Increment(h.doc.replica)
	h.doc.version++
	h.doc.clock = h.doc.clock.Merge(op.ID.Timestamp)
	h.text.Apply(op)
}

func (h *RGAHandle) Text() string {
	h.doc.mu.RLock()
	defer h.doc.mu.RUnlock()
	return h.text.Text()
}

func (h *RGAHandle) Len() int {
	h.doc.mu.RLock()
	defer h.doc.mu.RUnlock()
	return h.text.Len()
}

func (h *RGAHandle) IsEmpty() bool {
	h.doc.mu.RLock()
	defer h.doc.mu.RUnlock()
	return h.text.IsEmpty()
}

func (h *RGAHandle) CharAt(pos int) (rune, bool) {
	h.doc.mu.RLock()
	defer h.doc.mu.RUnlock()
	return h.text.CharAt(pos)
}

func (h *RGAHandle) Operations() []rga.TextOp {
	h.doc.mu.RLock()
	defer h.doc.mu.RUnlock()
	return h.text.Operations()
}
