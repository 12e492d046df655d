// Package table implements the open-addressed, linear-probing hash
// table that backs both cinder's string interner and its VM-level
// global variable environment.
//
// Design Rationale:
//
// Open addressing with tombstone deletion keeps the table a single
// flat slice with good cache locality, at the cost of needing to skip
// over tombstones during probing. Capacity always doubles from a
// minimum of 8 and rehashes on growth, which keeps the load factor at
// or below 0.75.
package table

import "github.com/kristofer/cinder/pkg/value"

const (
	minCapacity = 8
	maxLoad     = 0.75
)

// entry is one slot in the table. An empty slot has Key == nil and
// tombstone == false; a deleted slot (a tombstone) has Key == nil and
// tombstone == true; a live slot has Key != nil.
type entry struct {
	Key       *value.ObjString
	Value     value.Value
	tombstone bool
}

// Table is an open-addressed hash table keyed by interned strings.
type Table struct {
	entries []entry
	count   int // live entries + tombstones, used against capacity for load factor
}

// New returns an empty Table.
func New() *Table {
	return &Table{}
}

// Count returns the number of live (non-tombstone) entries.
func (t *Table) Count() int {
	n := 0
	for i := range t.entries {
		if t.entries[i].Key != nil {
			n++
		}
	}
	return n
}

// Get looks up key and reports whether it was found.
func (t *Table) Get(key *value.ObjString) (value.Value, bool) {
	if len(t.entries) == 0 {
		return value.Nil, false
	}
	e := t.findEntry(t.entries, key)
	if e.Key == nil {
		return value.Nil, false
	}
	return e.Value, true
}

// Set inserts or overwrites key's value. It returns true if this
// inserted a brand new key (as opposed to overwriting one already
// present).
func (t *Table) Set(key *value.ObjString, v value.Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		t.grow()
	}
	e := t.findEntry(t.entries, key)
	isNew := e.Key == nil
	if isNew && !e.tombstone {
		t.count++
	}
	e.Key = key
	e.Value = v
	e.tombstone = false
	return isNew
}

// Delete removes key, leaving a tombstone so later probe sequences
// through this slot keep working. Reports whether key was present.
func (t *Table) Delete(key *value.ObjString) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.findEntry(t.entries, key)
	if e.Key == nil {
		return false
	}
	e.Key = nil
	e.Value = value.Bool(true)
	e.tombstone = true
	return true
}

// FindString scans the probe sequence for a key with matching length,
// hash and bytes, without needing an already-interned *ObjString. This
// is what the interner uses before it has decided whether bytes denote
// an existing string or a new one.
func (t *Table) FindString(bytes string, hash uint32) *value.ObjString {
	if len(t.entries) == 0 {
		return nil
	}
	capacity := uint32(len(t.entries))
	idx := hash % capacity
	for {
		e := &t.entries[idx]
		if e.Key == nil {
			if !e.tombstone {
				return nil
			}
		} else if e.Key.Hash == hash && e.Key.Chars == bytes {
			return e.Key
		}
		idx = (idx + 1) % capacity
	}
}

// findEntry returns the slot key should occupy: either the slot
// already holding an equal key, or the first tombstone seen along the
// probe sequence (reused as the landing spot) if the key is never
// actually found, or else the first empty slot.
func (t *Table) findEntry(entries []entry, key *value.ObjString) *entry {
	capacity := uint32(len(entries))
	idx := key.Hash % capacity
	var tombstone *entry
	for {
		e := &entries[idx]
		if e.Key == nil {
			if !e.tombstone {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		} else if e.Key == key {
			return e
		}
		idx = (idx + 1) % capacity
	}
}

// grow doubles capacity (from a floor of minCapacity) and rehashes
// every live entry into the new slice; tombstones are dropped.
func (t *Table) grow() {
	newCap := len(t.entries) * 2
	if newCap < minCapacity {
		newCap = minCapacity
	}
	newEntries := make([]entry, newCap)
	t.count = 0
	for i := range t.entries {
		e := &t.entries[i]
		if e.Key == nil {
			continue
		}
		dst := t.findEntry(newEntries, e.Key)
		dst.Key = e.Key
		dst.Value = e.Value
		t.count++
	}
	t.entries = newEntries
}
