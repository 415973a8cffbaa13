package rga

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replicaworks/collabcore/crdt"
)

func TestRGAText_LocalInsertAndDelete(t *testing.T) {
	replica := crdt.NewReplicaID()
	text := NewRGAText(replica)

	text.InsertString(0, "hello")
	assert.Equal(t, "hello", text.Text())
	assert.Equal(t, 5, text.Len())

	op, ok := text.Delete(0)
	require.True(t, ok)
	assert.Equal(t, OpDelete, op.Kind)
	assert.Equal(t, "ello", text.Text())
}

func TestRGAText_FullLifecycleAcrossReplicas(t *testing.T) {
	alice := NewRGAText(crdt.NewReplicaID())
	bob := NewRGAText(crdt.NewReplicaID())

	opH := alice.Insert(0, 'H')
	opE := alice.Insert(1, 'E')

	for _, op := range []TextOp{opH, opE} {
		bob.Apply(op)
	}
	assert.Equal(t, "HE", bob.Text())
	assert.Equal(t, alice.Text(), bob.Text())
}

func TestRGAText_ConcurrentSiblingInsertsConverge(t *testing.T) {
	alice := NewRGAText(crdt.NewReplicaID())
	bob := NewRGAText(crdt.NewReplicaID())

	opH := alice.Insert(0, 'H')
	bob.Apply(opH)
	opE := alice.Insert(1, 'E')
	bob.Apply(opE)
	require.Equal(t, "HE", alice.Text())
	require.Equal(t, "HE", bob.Text())

	// Both insert after 'E' concurrently.
	opL := alice.Insert(2, 'L')
	opY := bob.Insert(2, 'Y')

	// Cross-apply: each replica sees the other's op without having seen its own echoed back.
	alice.Apply(opY)
	bob.Apply(opL)

	assert.Equal(t, alice.Text(), bob.Text(), "replicas must converge to the same string")
}

func TestRGAText_ApplyBuffersUnknownAnchorUntilParentArrives(t *testing.T) {
	replica := crdt.NewReplicaID()
	producer := NewRGAText(replica)
	opP := producer.Insert(0, 'P')
	opC := producer.Insert(1, 'C')

	receiver := NewRGAText(crdt.NewReplicaID())
	// Deliver the child before the parent: child's anchor (opP.ID) is unknown.
	receiver.Apply(opC)
	assert.Equal(t, "", receiver.Text(), "child must wait for its anchor")

	receiver.Apply(opP)
	assert.Equal(t, "PC", receiver.Text(), "buffered child must splice in once its anchor arrives")
}

func TestRGAText_ApplyBuffersDeleteOfUnknownNode(t *testing.T) {
	replica := crdt.NewReplicaID()
	producer := NewRGAText(replica)
	op := producer.Insert(0, 'X')
	delOp, ok := producer.Delete(0)
	require.True(t, ok)

	receiver := NewRGAText(crdt.NewReplicaID())
	receiver.Apply(delOp) // delete arrives before the insert
	receiver.Apply(op)
	assert.Equal(t, "", receiver.Text(), "buffered delete must apply once the node arrives")
}

func TestRGAText_TieBreakPrefersLargerCharIDCloserToAnchor(t *testing.T) {
	// Two replicas insert at the same position concurrently; the insert
	// with the larger CharID must end up closer to the shared anchor.
	alice := NewRGAText(crdt.NewReplicaID())
	opRoot := alice.Insert(0, 'R')

	bob := NewRGAText(crdt.NewReplicaID())
	bob.Apply(opRoot)

	opA := alice.Insert(1, 'A')
	opB := bob.Insert(1, 'B')

	alice.Apply(opB)
	bob.Apply(opA)

	require.Equal(t, alice.Text(), bob.Text())

	var winner CharID
	if opA.ID.Less(opB.ID) {
		winner = opB.ID
	} else {
		winner = opA.ID
	}
	char, ok := alice.CharAt(1)
	require.True(t, ok)
	expected, _ := alice.nodes[winner]
	assert.Equal(t, *expected.Value, char, "the larger CharID must win the tie and sit first")
}

func TestRGAText_MergeIsCommutativeAndConverges(t *testing.T) {
	alice := NewRGAText(crdt.NewReplicaID())
	alice.InsertString(0, "AB")

	bob := NewRGAText(crdt.NewReplicaID())
	bob.InsertString(0, "XY")

	ab := alice.Clone()
	ab.Merge(bob)
	ba := bob.Clone()
	ba.Merge(alice)

	assert.Equal(t, ab.Text(), ba.Text())
}

func TestRGAText_MergeIsIdempotent(t *testing.T) {
	alice := NewRGAText(crdt.NewReplicaID())
	alice.InsertString(0, "hi")
	bob := NewRGAText(crdt.NewReplicaID())
	bob.InsertString(0, "yo")

	alice.Merge(bob)
	before := alice.Text()
	alice.Merge(bob)
	assert.Equal(t, before, alice.Text())
}

func TestRGAText_JSONRoundTrip(t *testing.T) {
	replica := crdt.NewReplicaID()
	text := NewRGAText(replica)
	text.InsertString(0, "abc")
	text.Delete(1)

	data, err := json.Marshal(text)
	require.NoError(t, err)

	var restored RGAText
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, text.Text(), restored.Text())
	assert.Equal(t, text.Len(), restored.Len())
}

func TestTextCursor_MoveLeftRightStaysWithinBounds(t *testing.T) {
	replica := crdt.NewReplicaID()
	text := NewRGAText(replica)
	text.InsertString(0, "abc")

	cursor := NewTextCursor(1, text)
	cursor.MoveRight(text)
	assert.Equal(t, 2, cursor.Offset)
	cursor.MoveRight(text)
	cursor.MoveRight(text) // already at end, must not overshoot
	assert.Equal(t, 3, cursor.Offset)

	cursor.MoveLeft(text)
	assert.Equal(t, 2, cursor.Offset)
}

func TestTextSelection_StartEndAndLen(t *testing.T) {
	sel := RangeSelection(5, 2)
	assert.Equal(t, 2, sel.Start())
	assert.Equal(t, 5, sel.End())
	assert.Equal(t, 3, sel.Len())
	assert.False(t, sel.IsCollapsed())

	collapsed := CursorSelection(4)
	assert.True(t, collapsed.IsCollapsed())
	assert.True(t, collapsed.IsEmpty())
}
