package chunk

import "unsafe"

// Typed views over a column's element buffer. Columns allocate their buffers
// 8-byte aligned (alignedAlloc) so the reinterpretations below are valid on
// every supported platform. Views alias the buffer: they stay valid until the
// column is reset or compressed.

// alignedAlloc returns an n-byte buffer whose base address is 8-byte aligned.
func alignedAlloc(n int) []byte {
	words := make([]uint64, (n+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), n)
}

// Int32s views the first count elements of a 4-byte column as int32.
func (c *Column) Int32s() []int32 {
	if c.count == 0 || len(c.data) == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&c.data[0])), c.count)
}

// Int64s views the first count elements of an 8-byte column as int64.
func (c *Column) Int64s() []int64 {
	if c.count == 0 || len(c.data) == 0 {
		return nil
	}
	return unsafe.Slice((*int64)(unsafe.Pointer(&c.data[0])), c.count)
}

// Float32s views the first count elements of a 4-byte column as float32.
func (c *Column) Float32s() []float32 {
	if c.count == 0 || len(c.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&c.data[0])), c.count)
}
