package document

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/replicaworks/collabcore/crdt"
)

// Document is a collaborative container of named, heterogeneously-typed
// fields. It is safe for concurrent use: every accessor and mutator takes
// the document's own readers-writer lock, so the CRDT primitives beneath it
// never need their own locking.
type Document struct {
	mu sync.RWMutex

	ID      string
	replica crdt.ReplicaID
	clock   crdt.LogicalClock
	vclock  crdt.VectorClock
	fields  map[string]*FieldValue
	version uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates an empty document with a freshly-minted replica id.
func New(id string) *Document {
	return NewWithReplica(id, crdt.NewReplicaID())
}

// NewWithReplica creates an empty document owned by a specific replica —
// useful when a process is rehydrating a document it previously owned.
func NewWithReplica(id string, replica crdt.ReplicaID) *Document {
	now := time.Now()
	return &Document{
		ID:        id,
		replica:   replica,
		clock:     crdt.NewLogicalClock(replica),
		vclock:    crdt.NewVectorClock(),
		fields:    make(map[string]*FieldValue),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (d *Document) Replica() crdt.ReplicaID { return d.replica }

func (d *Document) Clock() crdt.LogicalClock {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.clock
}

func (d *Document) VClock() crdt.VectorClock {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.vclock.Clone()
}

func (d *Document) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// tick advances both clocks and bumps version/updated_at. Callers must hold
// d.mu for writing.
func (d *Document) tick() crdt.LogicalClock {
	d.vclock = d.vclock.Increment(d.replica)
	d.clock = d.clock.Tick()
	d.version++
	d.UpdatedAt = time.Now()
	return d.clock
}

func (d *Document) SetString(field, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ts := d.tick()
	if fv, ok := d.fields[field]; ok && fv.Kind == KindString {
		fv.String.Set(value, ts)
		return
	}
	d.fields[field] = &FieldValue{Kind: KindString, String: crdt.NewLWWRegister(value, ts)}
}

func (d *Document) GetString(field string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fv, ok := d.fields[field]
	if !ok || fv.Kind != KindString {
		return "", false
	}
	v, _ := fv.String.Get()
	return v, true
}

func (d *Document) SetInteger(field string, value int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ts := d.tick()
	if fv, ok := d.fields[field]; ok && fv.Kind == KindInteger {
		fv.Integer.Set(value, ts)
		return
	}
	d.fields[field] = &FieldValue{Kind: KindInteger, Integer: crdt.NewLWWRegister(value, ts)}
}

func (d *Document) GetInteger(field string) (int64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fv, ok := d.fields[field]
	if !ok || fv.Kind != KindInteger {
		return 0, false
	}
	v, _ := fv.Integer.Get()
	return v, true
}

func (d *Document) SetFloat(field string, value float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ts := d.tick()
	if fv, ok := d.fields[field]; ok && fv.Kind == KindFloat {
		fv.Float.Set(value, ts)
		return
	}
	d.fields[field] = &FieldValue{Kind: KindFloat, Float: crdt.NewLWWRegister(value, ts)}
}

func (d *Document) GetFloat(field string) (float64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fv, ok := d.fields[field]
	if !ok || fv.Kind != KindFloat {
		return 0, false
	}
	v, _ := fv.Float.Get()
	return v, true
}

func (d *Document) SetBoolean(field string, value bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ts := d.tick()
	if fv, ok := d.fields[field]; ok && fv.Kind == KindBoolean {
		fv.Boolean.Set(value, ts)
		return
	}
	d.fields[field] = &FieldValue{Kind: KindBoolean, Boolean: crdt.NewLWWRegister(value, ts)}
}

func (d *Document) GetBoolean(field string) (bool, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fv, ok := d.fields[field]
	if !ok || fv.Kind != KindBoolean {
		return false, false
	}
	v, _ := fv.Boolean.Get()
	return v, true
}

func (d *Document) counterField(field string) *crdt.PNCounter {
	fv, ok := d.fields[field]
	if !ok || fv.Kind != KindCounter {
		fv = &FieldValue{Kind: KindCounter, Counter: crdt.NewPNCounter()}
		d.fields[field] = fv
	}
	return fv.Counter
}

func (d *Document) Increment(field string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tick()
	d.counterField(field).Increment(d.replica)
}

func (d *Document) Decrement(field string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tick()
	d.counterField(field).Decrement(d.replica)
}

func (d *Document) GetCounter(field string) int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fv, ok := d.fields[field]
	if !ok || fv.Kind != KindCounter {
		return 0
	}
	return fv.Counter.Value()
}

func (d *Document) setField(field string) *FieldValue {
	fv, ok := d.fields[field]
	if !ok || fv.Kind != KindSet {
		fv = &FieldValue{Kind: KindSet, Set: crdt.NewORSet[string]()}
		d.fields[field] = fv
	}
	return fv
}

func (d *Document) AddToSet(field, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ts := d.tick()
	d.setField(field).Set.Add(value, ts)
}

func (d *Document) RemoveFromSet(field, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tick()
	fv, ok := d.fields[field]
	if !ok || fv.Kind != KindSet {
		return
	}
	fv.Set.Remove(value)
}

func (d *Document) SetContains(field, value string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fv, ok := d.fields[field]
	if !ok || fv.Kind != KindSet {
		return false
	}
	return fv.Set.Contains(value)
}

func (d *Document) GetSet(field string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fv, ok := d.fields[field]
	if !ok || fv.Kind != KindSet {
		return nil
	}
	return fv.Set.Elements()
}

func (d *Document) mapField(field string) *FieldValue {
	fv, ok := d.fields[field]
	if !ok || fv.Kind != KindMap {
		fv = &FieldValue{Kind: KindMap, Map: crdt.NewLWWMap[string, string]()}
		d.fields[field] = fv
	}
	return fv
}

func (d *Document) SetMapEntry(field, key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ts := d.tick()
	d.mapField(field).Map.Set(key, value, ts)
}

func (d *Document) DeleteMapEntry(field, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ts := d.tick()
	fv, ok := d.fields[field]
	if !ok || fv.Kind != KindMap {
		return
	}
	fv.Map.Delete(key, ts)
}

func (d *Document) GetMapEntry(field, key string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fv, ok := d.fields[field]
	if !ok || fv.Kind != KindMap {
		return "", false
	}
	return fv.Map.Get(key)
}

// Text returns the RGA handle for field, creating it if absent. If field
// exists with a different Kind, it is overwritten with a fresh text field —
// the documented resolution for this exact conflict (see SPEC_FULL.md §S.4).
// This never fails.
func (d *Document) Text(field string) *RGAHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	fv, ok := d.fields[field]
	if !ok || fv.Kind != KindText {
		fv = &FieldValue{Kind: KindText, Text: newFieldText(d.replica)}
		d.fields[field] = fv
	}
	return &RGAHandle{doc: d, field: field, text: fv.Text}
}

func (d *Document) GetText(field string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fv, ok := d.fields[field]
	if !ok || fv.Kind != KindText {
		return "", false
	}
	return fv.Text.Text(), true
}

// Fields returns the names of every field currently present.
func (d *Document) Fields() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.fields))
	for name := range d.fields {
		out = append(out, name)
	}
	return out
}

func (d *Document) HasField(field string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.fields[field]
	return ok
}

// Merge folds a remote snapshot of the same logical document into d:
// clocks merge monotonically, unseen fields are adopted wholesale, and
// shared fields merge field-wise. A field whose Kind disagrees between the
// two documents is left untouched (see FieldValue.mergeFrom).
func (d *Document) Merge(other *Document) {
	other.mu.RLock()
	otherFields := make(map[string]*FieldValue, len(other.fields))
	for name, fv := range other.fields {
		otherFields[name] = fv
	}
	otherVClock := other.vclock
	otherClock := other.clock
	otherVersion := other.version
	otherUpdatedAt := other.UpdatedAt
	other.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.vclock = d.vclock.Merge(otherVClock)
	d.clock = d.clock.Merge(otherClock)

	for name, fv := range otherFields {
		if existing, ok := d.fields[name]; ok {
			existing.mergeFrom(fv)
			continue
		}
		d.fields[name] = fv.Clone()
	}

	if otherVersion > d.version {
		d.version = otherVersion
	}
	if otherUpdatedAt.After(d.UpdatedAt) {
		d.UpdatedAt = otherUpdatedAt
	}
}

type documentWire struct {
	ID        string                 `json:"id"`
	Replica   crdt.ReplicaID         `json:"replica"`
	Clock     crdt.LogicalClock      `json:"clock"`
	VClock    crdt.VectorClock       `json:"vclock"`
	Fields    map[string]*FieldValue `json:"fields"`
	Version   uint64                 `json:"version"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// ToJSON serializes the full document state, including CRDT tombstones, so
// that FromJSON reconstructs an identical document.
func (d *Document) ToJSON() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	wire := documentWire{
		ID:        d.ID,
		Replica:   d.replica,
		Clock:     d.clock,
		VClock:    d.vclock,
		Fields:    d.fields,
		Version:   d.version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("document: serialize %s: %w", d.ID, err)
	}
	return data, nil
}

// FromJSON reconstructs a document previously produced by ToJSON.
func FromJSON(data []byte) (*Document, error) {
	var wire documentWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("document: deserialize: %w", err)
	}
	fields := wire.Fields
	if fields == nil {
		fields = make(map[string]*FieldValue)
	}
	return &Document{
		ID:        wire.ID,
		replica:   wire.Replica,
		clock:     wire.Clock,
		vclock:    wire.VClock,
		fields:    fields,
		version:   wire.Version,
		CreatedAt: wire.CreatedAt,
		UpdatedAt: wire.UpdatedAt,
	}, nil
}
