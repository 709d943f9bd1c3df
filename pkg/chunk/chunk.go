package chunk

import "github.com/matteoser/PiemonteDB/pkg/types"

// Chunk is the unit of data flowing between operators: an ordered set of
// columns sharing one row count, each tagged with the logical column id it
// carries. ViewName and SourceTable are only set while a chunk is being piped
// into a materialized view; ordinary query output leaves them empty.
type Chunk struct {
	cols []*Column
	ids  []int

	ViewName    string
	SourceTable string
}

// NewChunk returns an empty chunk.
func NewChunk() *Chunk { return &Chunk{} }

// AddColumn appends a column carrying the given logical id.
func (ck *Chunk) AddColumn(col *Column, logicalID int) {
	ck.cols = append(ck.cols, col)
	ck.ids = append(ck.ids, logicalID)
}

// Column returns the column at position pos.
func (ck *Chunk) Column(pos int) *Column { return ck.cols[pos] }

// ColumnIDs returns the logical id of the column at position pos.
func (ck *Chunk) ColumnIDs(pos int) int { return ck.ids[pos] }

// ColumnNum returns the number of columns.
func (ck *Chunk) ColumnNum() int { return len(ck.cols) }

// Rows returns the shared row count: the count of column 0, or 0 when empty.
func (ck *Chunk) Rows() int {
	if len(ck.cols) == 0 {
		return 0
	}
	return ck.cols[0].Count()
}

// Capacity returns the smallest column capacity.
func (ck *Chunk) Capacity() int {
	if len(ck.cols) == 0 {
		return 0
	}
	capacity := ck.cols[0].Capacity()
	for _, col := range ck.cols[1:] {
		if col.Capacity() < capacity {
			capacity = col.Capacity()
		}
	}
	return capacity
}

// GetValue decodes the value at (column pos, row).
func (ck *Chunk) GetValue(pos, row int) types.Value {
	return ck.cols[pos].GetValue(row)
}

// AppendValue appends one value to the column at pos.
func (ck *Chunk) AppendValue(pos int, v types.Value) error {
	return ck.cols[pos].AppendValue(v)
}

// Reset truncates every column to zero rows and clears the view routing
// names. Columns are dropped so the chunk can be repopulated with a different
// shape.
func (ck *Chunk) Reset() {
	for _, col := range ck.cols {
		col.Reset()
	}
	ck.cols = ck.cols[:0]
	ck.ids = ck.ids[:0]
	ck.ViewName = ""
	ck.SourceTable = ""
}

// ResetRows truncates every column to zero rows but keeps the column set.
func (ck *Chunk) ResetRows() {
	for _, col := range ck.cols {
		col.Reset()
	}
}

// ResetData truncates every column, dropping arenas and detaching referenced
// buffers, keeping the column set.
func (ck *Chunk) ResetData() {
	for _, col := range ck.cols {
		col.ResetData()
	}
}

// Reference turns this chunk into a zero-copy alias of other.
func (ck *Chunk) Reference(other *Chunk) error {
	ck.cols = ck.cols[:0]
	ck.ids = ck.ids[:0]
	for i := 0; i < other.ColumnNum(); i++ {
		col := &Column{}
		col.Reference(other.Column(i))
		ck.AddColumn(col, other.ColumnIDs(i))
	}
	ck.ViewName = other.ViewName
	ck.SourceTable = other.SourceTable
	return nil
}
