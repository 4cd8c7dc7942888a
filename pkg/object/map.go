package object

import "github.com/pyro-lang/pyro/pkg/value"

// MapEntry is one slot of a Map's append-only entry array. A tombstoned
// entry keeps its position (so probe chains that ran through it still
// work) but no longer counts as live.
type MapEntry struct {
	Key       value.Value
	Val       value.Value
	Tombstone bool
}

const maxLoadFactor = 0.75

// Map implements spec.md §3/§4.4's linear-probed hash map: an
// append-only Entries array preserves insertion order for iteration,
// and a linear-probed Index array of signed indices into Entries (a
// negative index means empty or tombstone) makes lookup O(1) amortized.
// IsSet turns this into a MapAsSet, which shares the exact layout but
// ignores stored values.
type Map struct {
	Header
	IsSet     bool
	Entries   []MapEntry
	Index     []int32
	liveCount int
}

const emptySlot int32 = -1

func (m *Map) Kind() value.ObjKind {
	if m.IsSet {
		return value.ObjMapAsSet
	}
	return value.ObjMap
}
func (m *Map) ObjHeader() *Header { return &m.Header }

func (m *Map) Trace(walk func(value.Value)) {
	for _, e := range m.Entries {
		if e.Tombstone {
			continue
		}
		walk(e.Key)
		if !m.IsSet {
			walk(e.Val)
		}
	}
}

// NewMap builds an empty map with an initial index capacity.
func NewMap(asSet bool) *Map {
	m := &Map{IsSet: asSet}
	m.Index = newIndexArray(8)
	return m
}

func newIndexArray(n int) []int32 {
	idx := make([]int32, n)
	for i := range idx {
		idx[i] = emptySlot
	}
	return idx
}

// LiveCount is the number of non-tombstoned entries.
func (m *Map) LiveCount() int { return m.liveCount }

// findSlot returns the index-array slot for key: either the slot
// already holding it, or the first empty/tombstone slot on its probe
// chain.
func (m *Map) findSlot(key value.Value) int {
	mask := uint64(len(m.Index) - 1)
	slot := key.Hash() & mask
	var firstTombstone = -1
	for {
		entryIdx := m.Index[slot]
		if entryIdx == emptySlot {
			if firstTombstone != -1 {
				return firstTombstone
			}
			return int(slot)
		}
		if entryIdx == -2 { // tombstoned index slot, probe continues
			if firstTombstone == -1 {
				firstTombstone = int(slot)
			}
		} else if m.Entries[entryIdx].Key.Equals(key) {
			return int(slot)
		}
		slot = (slot + 1) & mask
	}
}

// Get looks up key, returning (value, true) if present and live.
func (m *Map) Get(key value.Value) (value.Value, bool) {
	if len(m.Entries) == 0 {
		return value.Null, false
	}
	slot := m.findSlot(key)
	idx := m.Index[slot]
	if idx < 0 {
		return value.Null, false
	}
	return m.Entries[idx].Val, true
}

// Has reports whether key is present (used by sets, and by map $contains).
func (m *Map) Has(key value.Value) bool {
	_, ok := m.Get(key)
	return ok
}

// Set inserts or updates key -> val, growing the backing arrays first if
// the load factor would be exceeded (spec.md §3's live_entry_count ≤
// max_load_threshold invariant).
func (m *Map) Set(key, val value.Value) {
	if float64(len(m.Entries)+1) > float64(len(m.Index))*maxLoadFactor {
		m.grow()
	}
	slot := m.findSlot(key)
	idx := m.Index[slot]
	if idx >= 0 {
		m.Entries[idx].Val = val
		return
	}
	m.Entries = append(m.Entries, MapEntry{Key: key, Val: val})
	m.Index[slot] = int32(len(m.Entries) - 1)
	m.liveCount++
}

// Delete tombstones key's entry if present, returning whether it was.
func (m *Map) Delete(key value.Value) bool {
	if len(m.Entries) == 0 {
		return false
	}
	slot := m.findSlot(key)
	idx := m.Index[slot]
	if idx < 0 {
		return false
	}
	m.Entries[idx].Tombstone = true
	m.Entries[idx].Key = value.Tombstone
	m.Entries[idx].Val = value.Tombstone
	m.Index[slot] = -2
	m.liveCount--
	return true
}

func (m *Map) grow() {
	newCap := len(m.Index) * 2
	if newCap == 0 {
		newCap = 8
	}
	oldEntries := m.Entries
	m.Index = newIndexArray(newCap)
	m.Entries = make([]MapEntry, 0, len(oldEntries))
	m.liveCount = 0
	for _, e := range oldEntries {
		if e.Tombstone {
			continue
		}
		m.Set(e.Key, e.Val)
	}
}

// Each walks live entries in insertion order, stopping early if fn
// returns false.
func (m *Map) Each(fn func(k, v value.Value) bool) {
	for _, e := range m.Entries {
		if e.Tombstone {
			continue
		}
		if !fn(e.Key, e.Val) {
			return
		}
	}
}
