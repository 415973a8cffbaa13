// Package document provides the Document abstraction: a collaborative
// container of heterogeneously-typed fields, each backed by its own CRDT,
// addressed by name.
package document

import (
	"encoding/json"
	"fmt"

	"github.com/replicaworks/collabcore/crdt"
	"github.com/replicaworks/collabcore/rga"
)

// FieldKind tags which variant of FieldValue is populated. Go has no tagged
// union, so FieldValue carries the tag alongside one pointer per variant —
// exactly one of which is ever non-nil for a given Kind.
type FieldKind string

const (
	KindString  FieldKind = "string"
	KindInteger FieldKind = "integer"
	KindFloat   FieldKind = "float"
	KindBoolean FieldKind = "boolean"
	KindCounter FieldKind = "counter"
	KindSet     FieldKind = "set"
	KindMap     FieldKind = "map"
	KindText    FieldKind = "text"
)

// FieldValue is one field's current value, typed by Kind.
type FieldValue struct {
	Kind FieldKind

	String  *crdt.LWWRegister[string]
	Integer *crdt.LWWRegister[int64]
	Float   *crdt.LWWRegister[float64]
	Boolean *crdt.LWWRegister[bool]
	Counter *crdt.PNCounter
	Set     *crdt.ORSet[string]
	Map     *crdt.LWWMap[string, string]
	Text    *rga.RGAText
}

// ChangeType classifies a DocumentChange.
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// DocumentChange describes a single field mutation, suitable for relaying to
// observers that only care about "something changed", not the raw CRDT op.
type DocumentChange struct {
	DocID      string            `json:"doc_id"`
	Field      string            `json:"field"`
	ChangeType ChangeType        `json:"change_type"`
	Replica    crdt.ReplicaID    `json:"replica"`
	Timestamp  crdt.LogicalClock `json:"timestamp"`
}

// mergeFrom folds other's CRDT state into f. A Kind mismatch means a
// concurrent set_X and set_Y raced on the same field name from two
// replicas; per spec this is a silent no-op rather than an error — the
// receiving replica simply keeps its own variant.
func (f *FieldValue) mergeFrom(other *FieldValue) {
	if f.Kind != other.Kind {
		return
	}
	switch f.Kind {
	case KindString:
		f.String.Merge(other.String)
	case KindInteger:
		f.Integer.Merge(other.Integer)
	case KindFloat:
		f.Float.Merge(other.Float)
	case KindBoolean:
		f.Boolean.Merge(other.Boolean)
	case KindCounter:
		f.Counter.Merge(other.Counter)
	case KindSet:
		f.Set.Merge(other.Set)
	case KindMap:
		f.Map.Merge(other.Map)
	case KindText:
		f.Text.Merge(other.Text)
	}
}

// Clone returns an independent deep copy.
func (f *FieldValue) Clone() *FieldValue {
	clone := &FieldValue{Kind: f.Kind}
	switch f.Kind {
	case KindString:
		clone.String = f.String.Clone()
	case KindInteger:
		clone.Integer = f.Integer.Clone()
	case KindFloat:
		clone.Float = f.Float.Clone()
	case KindBoolean:
		clone.Boolean = f.Boolean.Clone()
	case KindCounter:
		clone.Counter = f.Counter.Clone()
	case KindSet:
		clone.Set = f.Set.Clone()
	case KindMap:
		clone.Map = f.Map.Clone()
	case KindText:
		clone.Text = f.Text.Clone()
	}
	return clone
}

type fieldValueWire struct {
	Kind  FieldKind       `json:"kind"`
	Value json.RawMessage `json:"value"`
}

func (f FieldValue) MarshalJSON() ([]byte, error) {
	var value any
	switch f.Kind {
	case KindString:
		value = f.String
	case KindInteger:
		value = f.Integer
	case KindFloat:
		value = f.Float
	case KindBoolean:
		value = f.Boolean
	case KindCounter:
		value = f.Counter
	case KindSet:
		value = f.Set
	case KindMap:
		value = f.Map
	case KindText:
		value = f.Text
	default:
		return nil, fmt.Errorf("document: marshal: unknown field kind %q", f.Kind)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(fieldValueWire{Kind: f.Kind, Value: raw})
}

func (f *FieldValue) UnmarshalJSON(data []byte) error {
	var wire fieldValueWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	f.Kind = wire.Kind
	switch wire.Kind {
	case KindString:
		f.String = &crdt.LWWRegister[string]{}
		return json.Unmarshal(wire.Value, f.String)
	case KindInteger:
		f.Integer = &crdt.LWWRegister[int64]{}
		return json.Unmarshal(wire.Value, f.Integer)
	case KindFloat:
		f.Float = &crdt.LWWRegister[float64]{}
		return json.Unmarshal(wire.Value, f.Float)
	case KindBoolean:
		f.Boolean = &crdt.LWWRegister[bool]{}
		return json.Unmarshal(wire.Value, f.Boolean)
	case KindCounter:
		f.Counter = crdt.NewPNCounter()
		return json.Unmarshal(wire.Value, f.Counter)
	case KindSet:
		f.Set = crdt.NewORSet[string]()
		return json.Unmarshal(wire.Value, f.Set)
	case KindMap:
		f.Map = crdt.NewLWWMap[string, string]()
		return json.Unmarshal(wire.Value, f.Map)
	case KindText:
		f.Text = &rga.RGAText{}
		return json.Unmarshal(wire.Value, f.Text)
	default:
		return fmt.Errorf("document: unmarshal: unknown field kind %q", wire.Kind)
	}
}
