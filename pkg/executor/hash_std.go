package executor

import (
	"github.com/spaolacci/murmur3"

	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/expr"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// StandardAggregateHashTable maps a composite key of values to one aggregate
// state per aggregate expression. Entries keep insertion order so the scan is
// deterministic for a given input; a bucket index keyed by the XOR of the
// per-element hashes resolves lookups, with element-wise value comparison on
// collisions.
type StandardAggregateHashTable struct {
	aggrKinds  []expr.AggrKind
	childTypes []types.AttrType
	buckets    map[uint64][]int
	entries    []stdEntry
}

type stdEntry struct {
	key    []types.Value
	states []AggState
}

// NewStandardHashTable builds a table for the given aggregate expressions.
func NewStandardHashTable(aggrs []*expr.AggregateExpr) *StandardAggregateHashTable {
	t := &StandardAggregateHashTable{buckets: make(map[uint64][]int)}
	for _, a := range aggrs {
		t.aggrKinds = append(t.aggrKinds, a.Kind)
		t.childTypes = append(t.childTypes, a.ChildType())
	}
	return t
}

// Len returns the number of groups.
func (t *StandardAggregateHashTable) Len() int { return len(t.entries) }

func hashKey(key []types.Value) uint64 {
	var h uint64
	for _, v := range key {
		h ^= murmur3.Sum64([]byte(v.ToString()))
	}
	return h
}

func keysEqual(a, b []types.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Compare(b[i]) != 0 {
			return false
		}
	}
	return true
}

func (t *StandardAggregateHashTable) find(key []types.Value, h uint64) int {
	for _, idx := range t.buckets[h] {
		if keysEqual(t.entries[idx].key, key) {
			return idx
		}
	}
	return -1
}

// AddChunk feeds one batch of group keys and aggregate inputs into the table.
func (t *StandardAggregateHashTable) AddChunk(groups, aggrs *chunk.Chunk) error {
	if groups.Rows() != aggrs.Rows() {
		return rc.Errorf(rc.InvalidArgument, "group rows %d != aggregate rows %d", groups.Rows(), aggrs.Rows())
	}
	for row := 0; row < groups.Rows(); row++ {
		key := make([]types.Value, groups.ColumnNum())
		for j := 0; j < groups.ColumnNum(); j++ {
			key[j] = groups.GetValue(j, row)
		}
		h := hashKey(key)
		idx := t.find(key, h)
		if idx < 0 {
			states := make([]AggState, len(t.aggrKinds))
			for k := range t.aggrKinds {
				state, err := NewAggState(t.aggrKinds[k], t.childTypes[k])
				if err != nil {
					return err
				}
				states[k] = state
			}
			idx = len(t.entries)
			t.entries = append(t.entries, stdEntry{key: key, states: states})
			t.buckets[h] = append(t.buckets[h], idx)
		}
		entry := &t.entries[idx]
		for k := range entry.states {
			if err := entry.states[k].UpdateValue(aggrs.GetValue(k, row)); err != nil {
				return err
			}
		}
	}
	return nil
}

// StandardHashTableScanner yields one output row per group: key columns
// first, then finalized aggregates, routed by the output chunk's logical ids.
type StandardHashTableScanner struct {
	table *StandardAggregateHashTable
	pos   int
}

// OpenScan resets the cursor.
func (s *StandardHashTableScanner) OpenScan(table *StandardAggregateHashTable) {
	s.table = table
	s.pos = 0
}

// Next fills the output chunk up to its capacity; RECORD_EOF once all groups
// have been emitted.
func (s *StandardHashTableScanner) Next(out *chunk.Chunk) error {
	if s.pos >= len(s.table.entries) {
		return rc.EOF()
	}
	keyLen := 0
	if len(s.table.entries) > 0 {
		keyLen = len(s.table.entries[0].key)
	}
	for s.pos < len(s.table.entries) && out.Rows() < out.Capacity() {
		entry := &s.table.entries[s.pos]
		for i := 0; i < out.ColumnNum(); i++ {
			colID := out.ColumnIDs(i)
			if colID >= keyLen {
				aggrIdx := colID - keyLen
				if err := entry.states[aggrIdx].FinalizeInto(out.Column(i)); err != nil {
					return err
				}
				continue
			}
			if err := out.Column(i).AppendValue(entry.key[colID]); err != nil {
				return err
			}
		}
		s.pos++
	}
	return nil
}

// CloseScan releases the cursor.
func (s *StandardHashTableScanner) CloseScan() {
	s.table = nil
	s.pos = 0
}
