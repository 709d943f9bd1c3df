package executor

import (
	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/rc"
)

// linearEmptyKey marks an unoccupied slot: 0xFFFFFFFF as a signed int32.
const linearEmptyKey = int32(-1)

// linearDefaultCapacity is the initial slot count.
const linearDefaultCapacity = 16384

// LinearProbingHashTable is the open-addressed fast path for a single int32
// group key with a single sum aggregate. Collisions probe forward one slot at
// a time; the table doubles once half full. The batched insert keeps 8 lanes
// in flight for int32 sums and 4 for int64 sums, mirroring the widths of the
// unrolled summation kernels.
type LinearProbingHashTable[V int32 | int64] struct {
	keys     []int32
	values   []V
	size     int
	capacity int
	lanes    int
}

// NewLinearProbingHashTable builds an empty table.
func NewLinearProbingHashTable[V int32 | int64]() *LinearProbingHashTable[V] {
	t := &LinearProbingHashTable[V]{capacity: linearDefaultCapacity}
	var zero V
	switch any(zero).(type) {
	case int64:
		t.lanes = 4
	default:
		t.lanes = 8
	}
	t.keys = newKeySlots(t.capacity)
	t.values = make([]V, t.capacity)
	return t
}

func newKeySlots(capacity int) []int32 {
	keys := make([]int32, capacity)
	for i := range keys {
		keys[i] = linearEmptyKey
	}
	return keys
}

// Size returns the number of distinct keys.
func (t *LinearProbingHashTable[V]) Size() int { return t.size }

// Capacity returns the current slot count.
func (t *LinearProbingHashTable[V]) Capacity() int { return t.capacity }

func (t *LinearProbingHashTable[V]) home(key int32) int {
	return (int(key)%t.capacity + t.capacity) % t.capacity
}

// Get looks up the aggregated value for key.
func (t *LinearProbingHashTable[V]) Get(key int32) (V, bool) {
	var zero V
	index := t.home(key)
	for probes := 0; probes <= t.capacity; probes++ {
		switch t.keys[index] {
		case linearEmptyKey:
			return zero, false
		case key:
			return t.values[index], true
		}
		index = (index + 1) % t.capacity
	}
	return zero, false
}

// addUp is the scalar probe-and-aggregate path.
func (t *LinearProbingHashTable[V]) addUp(key int32, value V) {
	for offset := t.home(key); ; offset++ {
		if offset == t.capacity {
			offset = 0
		}
		if t.keys[offset] == key {
			t.values[offset] += value
			return
		}
		if t.keys[offset] == linearEmptyKey {
			t.keys[offset] = key
			t.values[offset] = value
			t.size++
			return
		}
	}
}

// AddBatch aggregates a batch of key/value pairs. The vector loop keeps one
// probe in flight per lane: the inv mask marks lanes whose pair has been
// absorbed and which load a fresh input next iteration, while colliding lanes
// keep their pair and advance their probe offset. Leftover lanes and the tail
// finish through the scalar path.
func (t *LinearProbingHashTable[V]) AddBatch(keys []int32, values []V) error {
	if len(keys) != len(values) {
		return rc.Errorf(rc.InvalidArgument, "keys %d != values %d", len(keys), len(values))
	}
	// Grow up front so a batch of all-distinct keys cannot fill the table
	// while probes are in flight.
	for t.capacity < 2*(t.size+len(keys)) {
		t.resize()
	}
	if !vectorized.Load() {
		for i := range keys {
			t.addUp(keys[i], values[i])
		}
		t.resizeIfNeeded()
		return nil
	}

	lanes := t.lanes
	fullMask := uint16(1)<<lanes - 1
	inv := fullMask
	laneKeys := make([]int32, lanes)
	laneValues := make([]V, lanes)
	laneOffsets := make([]int, lanes)

	i := 0
	for i+lanes <= len(keys) {
		// Selective load: finished lanes pull the next inputs in order.
		cursor := i
		for j := 0; j < lanes; j++ {
			if inv&(1<<j) != 0 {
				laneKeys[j] = keys[cursor]
				laneValues[j] = values[cursor]
				cursor++
			}
		}
		i = cursor
		inv = 0
		for j := 0; j < lanes; j++ {
			target := (t.home(laneKeys[j]) + laneOffsets[j]) % t.capacity
			switch t.keys[target] {
			case laneKeys[j]:
				t.values[target] += laneValues[j]
				laneOffsets[j] = 0
				inv |= 1 << j
			case linearEmptyKey:
				t.keys[target] = laneKeys[j]
				t.values[target] = laneValues[j]
				t.size++
				laneOffsets[j] = 0
				inv |= 1 << j
			default:
				laneOffsets[j]++
			}
		}
	}
	// Lanes still carrying an unabsorbed pair.
	for j := 0; j < lanes; j++ {
		if inv&(1<<j) == 0 {
			t.addUp(laneKeys[j], laneValues[j])
		}
	}
	for ; i < len(keys); i++ {
		t.addUp(keys[i], values[i])
	}
	t.resizeIfNeeded()
	return nil
}

// AddChunk adapts the single-key single-sum chunk shape onto AddBatch.
func (t *LinearProbingHashTable[V]) AddChunk(groups, aggrs *chunk.Chunk) error {
	if groups.ColumnNum() != 1 || aggrs.ColumnNum() != 1 {
		return rc.Errorf(rc.InvalidArgument, "linear probing table wants 1 key and 1 aggregate column")
	}
	if groups.Rows() != aggrs.Rows() {
		return rc.Errorf(rc.InvalidArgument, "group rows %d != aggregate rows %d", groups.Rows(), aggrs.Rows())
	}
	keys := groups.Column(0).Int32s()
	var zero V
	switch any(zero).(type) {
	case int64:
		values := aggrs.Column(0).Int64s()
		return any(t).(*LinearProbingHashTable[int64]).AddBatch(keys, values)
	default:
		values := aggrs.Column(0).Int32s()
		return any(t).(*LinearProbingHashTable[int32]).AddBatch(keys, values)
	}
}

func (t *LinearProbingHashTable[V]) resizeIfNeeded() {
	for t.size >= t.capacity/2 {
		t.resize()
	}
}

func (t *LinearProbingHashTable[V]) resize() {
	oldKeys, oldValues := t.keys, t.values
	t.capacity *= 2
	t.keys = newKeySlots(t.capacity)
	t.values = make([]V, t.capacity)
	for i, key := range oldKeys {
		if key == linearEmptyKey {
			continue
		}
		index := t.home(key)
		for t.keys[index] != linearEmptyKey {
			index = (index + 1) % t.capacity
		}
		t.keys[index] = key
		t.values[index] = oldValues[i]
	}
}

func (t *LinearProbingHashTable[V]) iterGet(pos int) (int32, V, bool) {
	if t.keys[pos] == linearEmptyKey {
		var zero V
		return 0, zero, false
	}
	return t.keys[pos], t.values[pos], true
}

// LinearHashTableScanner walks the slot array emitting occupied entries.
type LinearHashTableScanner[V int32 | int64] struct {
	table *LinearProbingHashTable[V]
	pos   int
	count int
}

// OpenScan resets the cursor.
func (s *LinearHashTableScanner[V]) OpenScan(table *LinearProbingHashTable[V]) {
	s.table = table
	s.pos = 0
	s.count = 0
}

// Next fills the output chunk with (key, sum) rows; RECORD_EOF once all
// occupied slots have been visited.
func (s *LinearHashTableScanner[V]) Next(out *chunk.Chunk) error {
	if s.pos >= s.table.capacity || s.count >= s.table.size {
		return rc.EOF()
	}
	for s.pos < s.table.capacity && s.count < s.table.size && out.Rows() < out.Capacity() {
		key, value, ok := s.table.iterGet(s.pos)
		s.pos++
		if !ok {
			continue
		}
		if err := appendLinearRow(out, key, value); err != nil {
			return err
		}
		s.count++
	}
	return nil
}

func appendLinearRow[V int32 | int64](out *chunk.Chunk, key int32, value V) error {
	var keyBuf [4]byte
	putInt32(keyBuf[:], key)
	if err := out.Column(0).AppendRaw(keyBuf[:]); err != nil {
		return err
	}
	switch v := any(value).(type) {
	case int64:
		var buf [8]byte
		putInt64(buf[:], v)
		return out.Column(1).AppendRaw(buf[:])
	default:
		var buf [4]byte
		putInt32(buf[:], any(value).(int32))
		return out.Column(1).AppendRaw(buf[:])
	}
}

// CloseScan releases the cursor.
func (s *LinearHashTableScanner[V]) CloseScan() {
	s.table = nil
	s.pos = 0
	s.count = 0
}

func putInt32(b []byte, v int32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putInt64(b []byte, v int64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
