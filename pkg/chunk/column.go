package chunk

import (
	"encoding/binary"
	"math"

	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// DefaultCapacity is the number of rows a column targets when the caller does
// not pass one; roughly one page worth of fixed-width values.
const DefaultCapacity = 1024

// ColumnMode tells who owns a column's backing buffer.
type ColumnMode uint8

const (
	// ModeOwned means the column allocated and may mutate its buffer.
	ModeOwned ColumnMode = iota
	// ModeReferenced means the buffer belongs to another column; read-only.
	ModeReferenced
	// ModeConstant means every row shares the single stored element.
	ModeConstant
)

// Column is a contiguous typed buffer for one attribute. Fixed-width types
// store raw little-endian values; texts store 16-byte string descriptors whose
// non-inline payloads live in the column's arena.
type Column struct {
	attrType types.AttrType
	attrLen  int
	data     []byte
	count    int
	capacity int
	mode     ColumnMode
	arena    StringArena
}

// NewColumn allocates an owned column. attrLen 0 falls back to the type's
// fixed width; capacity 0 falls back to DefaultCapacity.
func NewColumn(attrType types.AttrType, attrLen int, capacity int) *Column {
	if attrLen == 0 {
		attrLen = attrType.FixedLen()
	}
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	c := &Column{attrType: attrType, attrLen: attrLen, capacity: capacity}
	if attrLen > 0 {
		c.data = alignedAlloc(attrLen * capacity)
	}
	return c
}

// NewEmptyColumn returns an undefined placeholder column, used for positions a
// scan does not need to fill.
func NewEmptyColumn() *Column {
	return &Column{attrType: types.Undefined}
}

func (c *Column) AttrType() types.AttrType { return c.attrType }
func (c *Column) AttrLen() int             { return c.attrLen }
func (c *Column) Count() int               { return c.count }
func (c *Column) Capacity() int            { return c.capacity }
func (c *Column) Mode() ColumnMode         { return c.mode }

// Data exposes the raw element bytes for the current count.
func (c *Column) Data() []byte {
	if c.data == nil {
		return nil
	}
	return c.data[:c.count*c.attrLen]
}

// Arena exposes the string arena of a texts column.
func (c *Column) Arena() *StringArena { return &c.arena }

// SetAttrType rewrites the column's type tag in place. Used by the group-by
// encode path, which runs char keys through an int table and restores the tag
// on output.
func (c *Column) SetAttrType(t types.AttrType) { c.attrType = t }

// AppendValue appends one scalar, converting it to the column's element
// layout.
func (c *Column) AppendValue(v types.Value) error {
	if c.mode == ModeReferenced {
		return rc.New(rc.Internal, "append to referenced column")
	}
	if c.count >= c.capacity {
		return rc.Errorf(rc.RecordNoMem, "column full: capacity %d", c.capacity)
	}
	slot := c.slot(c.count)
	switch c.attrType {
	case types.Booleans:
		if v.Bool() {
			slot[0] = 1
		} else {
			slot[0] = 0
		}
	case types.Ints, types.Dates:
		binary.LittleEndian.PutUint32(slot, uint32(v.Int32()))
	case types.Floats:
		binary.LittleEndian.PutUint32(slot, math.Float32bits(v.Float32()))
	case types.BigInts:
		binary.LittleEndian.PutUint64(slot, uint64(v.Int64()))
	case types.Chars:
		for i := range slot {
			slot[i] = 0
		}
		copy(slot, v.Bytes())
	case types.Texts:
		s := c.arena.Add(v.Bytes())
		s.Encode(slot)
	default:
		return rc.Errorf(rc.Unimplemented, "append to %s column", c.attrType)
	}
	c.count++
	return nil
}

// AppendRaw copies one pre-encoded element.
func (c *Column) AppendRaw(b []byte) error {
	if c.mode == ModeReferenced {
		return rc.New(rc.Internal, "append to referenced column")
	}
	if c.count >= c.capacity {
		return rc.Errorf(rc.RecordNoMem, "column full: capacity %d", c.capacity)
	}
	copy(c.slot(c.count), b[:c.attrLen])
	c.count++
	return nil
}

// AppendSlice bulk-copies n contiguous pre-encoded elements.
func (c *Column) AppendSlice(b []byte, n int) error {
	if c.mode == ModeReferenced {
		return rc.New(rc.Internal, "append to referenced column")
	}
	if c.count+n > c.capacity {
		return rc.Errorf(rc.RecordNoMem, "column full: capacity %d", c.capacity)
	}
	copy(c.data[c.count*c.attrLen:], b[:n*c.attrLen])
	c.count += n
	return nil
}

// AddText places b in the arena and returns its descriptor without appending
// an element.
func (c *Column) AddText(b []byte) StringT { return c.arena.Add(b) }

// AppendStringT appends an already-built descriptor.
func (c *Column) AppendStringT(s StringT) error {
	if c.count >= c.capacity {
		return rc.Errorf(rc.RecordNoMem, "column full: capacity %d", c.capacity)
	}
	s.Encode(c.slot(c.count))
	c.count++
	return nil
}

// GetValue decodes the element at row.
func (c *Column) GetValue(row int) types.Value {
	if c.attrType == types.Undefined || row >= c.count {
		return types.NewUndefined()
	}
	if c.mode == ModeConstant {
		row = 0
	}
	slot := c.slot(row)
	switch c.attrType {
	case types.Booleans:
		return types.NewBool(slot[0] != 0)
	case types.Ints:
		return types.NewInt(int32(binary.LittleEndian.Uint32(slot)))
	case types.Dates:
		return types.NewDate(int32(binary.LittleEndian.Uint32(slot)))
	case types.Floats:
		return types.NewFloat(math.Float32frombits(binary.LittleEndian.Uint32(slot)))
	case types.BigInts:
		return types.NewBigInt(int64(binary.LittleEndian.Uint64(slot)))
	case types.Chars:
		return types.NewChars(string(trimNul(slot)))
	case types.Texts:
		s := DecodeStringT(slot)
		return types.NewText(c.arena.Bytes(s))
	}
	return types.NewUndefined()
}

// StringAt decodes the descriptor at row of a texts column.
func (c *Column) StringAt(row int) StringT {
	if c.mode == ModeConstant {
		row = 0
	}
	return DecodeStringT(c.slot(row))
}

// SetStringAt overwrites the descriptor at row of a texts column.
func (c *Column) SetStringAt(row int, s StringT) {
	s.Encode(c.slot(row))
}

// Resize sets the logical count without touching the buffer. For columns with
// storage the count is clamped to capacity; placeholder and constant columns
// carry a bare count.
func (c *Column) Resize(n int) {
	if n > c.capacity && c.mode != ModeConstant && c.attrLen > 0 {
		n = c.capacity
	}
	c.count = n
}

// Limit truncates the count to at most n.
func (c *Column) Limit(n int) {
	if n < c.count {
		c.count = n
	}
}

// Compress retains the elements whose select bit is non-zero, collapsing them
// left and preserving order.
func (c *Column) Compress(sel []uint8) {
	kept := 0
	for i := 0; i < c.count && i < len(sel); i++ {
		if sel[i] == 0 {
			continue
		}
		if kept != i {
			copy(c.slot(kept), c.slot(i))
		}
		kept++
	}
	c.count = kept
}

// Reference turns this column into a zero-copy read-only view of other.
func (c *Column) Reference(other *Column) {
	c.attrType = other.attrType
	c.attrLen = other.attrLen
	c.data = other.data
	c.count = other.count
	c.capacity = other.capacity
	c.arena = other.arena
	if other.mode == ModeConstant {
		c.mode = ModeConstant
	} else {
		c.mode = ModeReferenced
	}
}

// MakeConstant fills the column with a single shared element counted n times.
func (c *Column) MakeConstant(v types.Value, n int) error {
	c.mode = ModeOwned
	c.count = 0
	if c.capacity == 0 {
		c.capacity = 1
		c.data = alignedAlloc(c.attrLen)
	}
	if err := c.AppendValue(v); err != nil {
		return err
	}
	c.mode = ModeConstant
	c.count = n
	return nil
}

// Reset truncates the column. A referenced column detaches and becomes an
// owned empty column.
func (c *Column) Reset() {
	if c.mode == ModeReferenced {
		c.data = nil
		c.capacity = 0
		c.mode = ModeOwned
		c.arena = StringArena{}
	}
	c.count = 0
}

// ResetData truncates and drops arena contents as well.
func (c *Column) ResetData() {
	c.Reset()
	c.arena.Reset()
}

func (c *Column) slot(row int) []byte {
	off := row * c.attrLen
	return c.data[off : off+c.attrLen]
}

func trimNul(b []byte) []byte {
	for i, ch := range b {
		if ch == 0 {
			return b[:i]
		}
	}
	return b
}
