package executor

import (
	"container/heap"

	"github.com/spaolacci/murmur3"

	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/expr"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// fnvPrime combines per-element key hashes, multiplying then xoring the way
// FNV does.
const fnvPrime = 1099511628211

// SpecializedHashTable is the fixed-shape aggregation table: up to four key
// columns drawn from {int32, int64, chars, text} and a fixed number of aggregate
// slots per entry. It avoids the generic value materialization of the
// standard table by extracting keys with typed accessors, and it carries the
// top-N-by-count drain used by the fused operator.
type SpecializedHashTable struct {
	keyTypes   []types.AttrType
	aggrKinds  []expr.AggrKind
	childTypes []types.AttrType
	buckets    map[uint64][]int
	entries    []specEntry
}

type specEntry struct {
	intKeys []int64  // one slot per key column; unused for text keys
	strKeys []string // one slot per key column; empty for numeric keys
	states  []AggState
}

// SupportedSpecKey reports whether a key column type fits this table.
func SupportedSpecKey(t types.AttrType) bool {
	return t == types.Ints || t == types.BigInts || t == types.Texts || t == types.Chars
}

// NewSpecializedHashTable builds a table over the given key column types.
func NewSpecializedHashTable(keyTypes []types.AttrType, aggrs []*expr.AggregateExpr) (*SpecializedHashTable, error) {
	if len(keyTypes) == 0 || len(keyTypes) > 4 {
		return nil, rc.Errorf(rc.InvalidArgument, "specialized table wants 1..4 keys, got %d", len(keyTypes))
	}
	for _, t := range keyTypes {
		if !SupportedSpecKey(t) {
			return nil, rc.Errorf(rc.Unimplemented, "specialized table key type %s", t)
		}
	}
	table := &SpecializedHashTable{
		keyTypes: keyTypes,
		buckets:  make(map[uint64][]int),
	}
	for _, a := range aggrs {
		table.aggrKinds = append(table.aggrKinds, a.Kind)
		table.childTypes = append(table.childTypes, a.ChildType())
	}
	return table, nil
}

// Len returns the number of groups.
func (t *SpecializedHashTable) Len() int { return len(t.entries) }

func (t *SpecializedHashTable) extractKey(groups *chunk.Chunk, row int, intKeys []int64, strKeys []string) {
	for j, kt := range t.keyTypes {
		col := groups.Column(j)
		switch kt {
		case types.Ints:
			intKeys[j] = int64(col.Int32s()[row])
		case types.BigInts:
			intKeys[j] = col.Int64s()[row]
		default:
			strKeys[j] = col.GetValue(row).ToString()
		}
	}
}

func (t *SpecializedHashTable) hashRow(intKeys []int64, strKeys []string) uint64 {
	var h uint64
	for j, kt := range t.keyTypes {
		var elem uint64
		if kt == types.Ints || kt == types.BigInts {
			elem = uint64(intKeys[j])
		} else {
			elem = murmur3.Sum64([]byte(strKeys[j]))
		}
		if j == 0 {
			h = elem
		} else {
			h = h*fnvPrime ^ elem
		}
	}
	return h
}

func (t *SpecializedHashTable) rowEqual(e *specEntry, intKeys []int64, strKeys []string) bool {
	for j, kt := range t.keyTypes {
		if kt == types.Ints || kt == types.BigInts {
			if e.intKeys[j] != intKeys[j] {
				return false
			}
		} else if e.strKeys[j] != strKeys[j] {
			return false
		}
	}
	return true
}

// AddChunk folds one batch of keys and aggregate inputs into the table.
func (t *SpecializedHashTable) AddChunk(groups, aggrs *chunk.Chunk) error {
	if groups.Rows() != aggrs.Rows() {
		return rc.Errorf(rc.InvalidArgument, "group rows %d != aggregate rows %d", groups.Rows(), aggrs.Rows())
	}
	if groups.ColumnNum() != len(t.keyTypes) {
		return rc.Errorf(rc.InvalidArgument, "group columns %d, table keyed on %d", groups.ColumnNum(), len(t.keyTypes))
	}
	intKeys := make([]int64, len(t.keyTypes))
	strKeys := make([]string, len(t.keyTypes))
	for row := 0; row < groups.Rows(); row++ {
		t.extractKey(groups, row, intKeys, strKeys)
		h := t.hashRow(intKeys, strKeys)

		idx := -1
		for _, cand := range t.buckets[h] {
			if t.rowEqual(&t.entries[cand], intKeys, strKeys) {
				idx = cand
				break
			}
		}
		if idx < 0 {
			states := make([]AggState, len(t.aggrKinds))
			for k := range t.aggrKinds {
				state, err := NewAggState(t.aggrKinds[k], t.childTypes[k])
				if err != nil {
					return err
				}
				states[k] = state
			}
			entry := specEntry{
				intKeys: append([]int64(nil), intKeys...),
				strKeys: append([]string(nil), strKeys...),
				states:  states,
			}
			idx = len(t.entries)
			t.entries = append(t.entries, entry)
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

func (t *SpecializedHashTable) appendKey(col *chunk.Column, keyIdx int, e *specEntry) error {
	switch t.keyTypes[keyIdx] {
	case types.Ints:
		return col.AppendValue(types.NewInt(int32(e.intKeys[keyIdx])))
	case types.BigInts:
		return col.AppendValue(types.NewBigInt(e.intKeys[keyIdx]))
	case types.Chars:
		return col.AppendValue(types.NewChars(e.strKeys[keyIdx]))
	default:
		return col.AppendValue(types.NewText([]byte(e.strKeys[keyIdx])))
	}
}

// countHeap is a min-heap of entries ordered by count, so the root is the
// weakest group currently kept.
type countHeap struct {
	counts  []int64
	entries []int
}

func (h *countHeap) Len() int            { return len(h.counts) }
func (h *countHeap) Less(i, j int) bool  { return h.counts[i] < h.counts[j] }
func (h *countHeap) Swap(i, j int) {
	h.counts[i], h.counts[j] = h.counts[j], h.counts[i]
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
}
func (h *countHeap) Push(x any) {
	pair := x.([2]int64)
	h.counts = append(h.counts, pair[0])
	h.entries = append(h.entries, int(pair[1]))
}
func (h *countHeap) Pop() any {
	n := len(h.counts) - 1
	pair := [2]int64{h.counts[n], int64(h.entries[n])}
	h.counts = h.counts[:n]
	h.entries = h.entries[:n]
	return pair
}

// TopN materializes the n groups with the highest counts into out, in
// descending count order. countPos is the index of the count aggregate among
// the table's aggregate slots.
func (t *SpecializedHashTable) TopN(out *chunk.Chunk, countPos, n int) error {
	if countPos < 0 || countPos >= len(t.aggrKinds) || t.aggrKinds[countPos] != expr.AggrCount {
		return rc.Errorf(rc.InvalidArgument, "aggregate %d is not a count", countPos)
	}
	h := &countHeap{}
	heap.Init(h)
	for idx := range t.entries {
		count := t.entries[idx].states[countPos].(*countState).Count()
		if h.Len() < n {
			heap.Push(h, [2]int64{count, int64(idx)})
			continue
		}
		if n > 0 && count > h.counts[0] {
			heap.Pop(h)
			heap.Push(h, [2]int64{count, int64(idx)})
		}
	}

	// Drain the heap weakest-first, then walk the order backwards so the
	// output lands strongest-first.
	order := make([]int, 0, h.Len())
	for h.Len() > 0 {
		pair := heap.Pop(h).([2]int64)
		order = append(order, int(pair[1]))
	}
	for i := len(order) - 1; i >= 0; i-- {
		entry := &t.entries[order[i]]
		for pos := range t.keyTypes {
			if err := t.appendKey(out.Column(pos), pos, entry); err != nil {
				return err
			}
		}
		for k := range entry.states {
			if err := entry.states[k].FinalizeInto(out.Column(len(t.keyTypes) + k)); err != nil {
				return err
			}
		}
	}
	return nil
}

// SpecializedHashTableScanner emits groups in insertion order for plain
// group-by use.
type SpecializedHashTableScanner struct {
	table *SpecializedHashTable
	pos   int
}

// OpenScan resets the cursor.
func (s *SpecializedHashTableScanner) OpenScan(table *SpecializedHashTable) {
	s.table = table
	s.pos = 0
}

// Next fills the output chunk up to its capacity; RECORD_EOF when done.
func (s *SpecializedHashTableScanner) Next(out *chunk.Chunk) error {
	t := s.table
	if s.pos >= len(t.entries) {
		return rc.EOF()
	}
	keyLen := len(t.keyTypes)
	for s.pos < len(t.entries) && out.Rows() < out.Capacity() {
		entry := &t.entries[s.pos]
		for i := 0; i < out.ColumnNum(); i++ {
			colID := out.ColumnIDs(i)
			if colID >= keyLen {
				if err := entry.states[colID-keyLen].FinalizeInto(out.Column(i)); err != nil {
					return err
				}
				continue
			}
			if err := t.appendKey(out.Column(i), colID, entry); err != nil {
				return err
			}
		}
		s.pos++
	}
	return nil
}

// CloseScan releases the cursor.
func (s *SpecializedHashTableScanner) CloseScan() {
	s.table = nil
	s.pos = 0
}
