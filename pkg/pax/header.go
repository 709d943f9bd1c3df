package pax

import (
	"encoding/binary"
	"fmt"

	"github.com/matteoser/PiemonteDB/pkg/storage"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// StorageFormat selects the on-page record layout.
type StorageFormat uint8

const (
	// FormatRow stores each record contiguously.
	FormatRow StorageFormat = iota
	// FormatPAX partitions each record into per-column runs within the page.
	FormatPAX
)

func (f StorageFormat) String() string {
	if f == FormatPAX {
		return "pax"
	}
	return "row"
}

// FieldSpec is the slice of table metadata the page layer needs: one entry
// per column, in field-id order.
type FieldSpec struct {
	Type types.AttrType
	Len  int
}

// RID identifies one record as a (page, slot) pair.
type RID struct {
	PageNum storage.PageNum
	Slot    int32
}

func (r RID) String() string { return fmt.Sprintf("%d:%d", r.PageNum, r.Slot) }

// Page header field offsets. All fields are little-endian int32.
const (
	offRecordNum      = 0
	offColumnNum      = 4
	offRecordRealSize = 8
	offRecordSize     = 12
	offRecordCapacity = 16
	offColIdxOffset   = 20
	offDataOffset     = 24

	pageHeaderSize = 28
)

// pageHeader reads and writes header fields directly in the frame image, so
// the page bytes are always authoritative.
type pageHeader struct {
	data []byte
}

func (h pageHeader) get(off int) int32 {
	return int32(binary.LittleEndian.Uint32(h.data[off : off+4]))
}

func (h pageHeader) set(off int, v int32) {
	binary.LittleEndian.PutUint32(h.data[off:off+4], uint32(v))
}

func (h pageHeader) recordNum() int32      { return h.get(offRecordNum) }
func (h pageHeader) setRecordNum(v int32)  { h.set(offRecordNum, v) }
func (h pageHeader) columnNum() int32      { return h.get(offColumnNum) }
func (h pageHeader) recordRealSize() int32 { return h.get(offRecordRealSize) }
func (h pageHeader) recordSize() int32     { return h.get(offRecordSize) }
func (h pageHeader) recordCapacity() int32 { return h.get(offRecordCapacity) }
func (h pageHeader) colIdxOffset() int32   { return h.get(offColIdxOffset) }
func (h pageHeader) dataOffset() int32     { return h.get(offDataOffset) }

func (h pageHeader) String() string {
	return fmt.Sprintf("record_num:%d,column_num:%d,record_real_size:%d,record_size:%d,record_capacity:%d,data_offset:%d",
		h.recordNum(), h.columnNum(), h.recordRealSize(), h.recordSize(), h.recordCapacity(), h.dataOffset())
}

// colIndex returns the cumulative column offset index of a PAX page.
func (h pageHeader) colIndex() []int32 {
	n := int(h.columnNum())
	idx := make([]int32, n)
	base := int(h.colIdxOffset())
	for i := 0; i < n; i++ {
		idx[i] = int32(binary.LittleEndian.Uint32(h.data[base+i*4 : base+i*4+4]))
	}
	return idx
}

func (h pageHeader) writeColIndex(idx []int32) {
	base := int(h.colIdxOffset())
	for i, off := range idx {
		binary.LittleEndian.PutUint32(h.data[base+i*4:base+i*4+4], uint32(off))
	}
}

// align8 rounds size up to the next multiple of 8.
func align8(size int) int { return (size + 7) &^ 7 }

// pageRecordCapacity solves capacity*recordSize + capacity/8 + 1 <= available
// with the integer recurrence capacity = (available - 1) / (recordSize + 1/8).
func pageRecordCapacity(pageSize, recordSize, fixedSize int) int {
	return int(float64(pageSize-pageHeaderSize-fixedSize-1) / (float64(recordSize) + 0.125))
}

// HeapPageCapacity returns how many records one page of this shape holds.
// Scans and loaders size their column buffers with it.
func HeapPageCapacity(recordSize, columnNum int) int {
	alignedRecord := align8(recordSize)
	capacity := pageRecordCapacity(storage.PageSize, alignedRecord, columnNum*4)
	for capacity > 0 {
		dataOffset := align8(align8(pageHeaderSize+BitmapBytes(capacity)) + columnNum*4)
		if dataOffset+capacity*alignedRecord <= storage.PageSize {
			break
		}
		capacity--
	}
	return capacity
}

// formatHeader lays out an empty page for the given record shape and returns
// the computed column offset index. The capacity is shrunk until the runs fit
// behind the 8-aligned data offset.
func formatHeader(data []byte, recordSize int, fields []FieldSpec, format StorageFormat) []int32 {
	columnNum := 0
	if format == FormatPAX {
		columnNum = len(fields)
	}
	alignedRecord := align8(recordSize)
	capacity := pageRecordCapacity(storage.PageSize, alignedRecord, columnNum*4)
	var colIdxOffset, dataOffset int
	for capacity > 0 {
		colIdxOffset = align8(pageHeaderSize + BitmapBytes(capacity))
		dataOffset = align8(colIdxOffset + columnNum*4)
		if dataOffset+capacity*alignedRecord <= storage.PageSize {
			break
		}
		capacity--
	}

	h := pageHeader{data: data}
	h.set(offRecordNum, 0)
	h.set(offColumnNum, int32(columnNum))
	h.set(offRecordRealSize, int32(recordSize))
	h.set(offRecordSize, int32(alignedRecord))
	h.set(offRecordCapacity, int32(capacity))
	h.set(offColIdxOffset, int32(colIdxOffset))
	h.set(offDataOffset, int32(dataOffset))

	bitmap := NewBitmap(data[pageHeaderSize:], capacity)
	bitmap.ClearAll()

	idx := make([]int32, columnNum)
	sum := int32(0)
	for i := 0; i < columnNum; i++ {
		sum += int32(fields[i].Len * capacity)
		idx[i] = sum
	}
	h.writeColIndex(idx)
	return idx
}
