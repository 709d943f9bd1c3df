package executor

import (
	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/core"
	"github.com/matteoser/PiemonteDB/pkg/expr"
	"github.com/matteoser/PiemonteDB/pkg/pax"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// TableScanVec is the vectorized leaf: it pulls one page worth of columns at
// a time, evaluates its predicates into a select mask and compresses the
// surviving rows.
type TableScanVec struct {
	table      *core.Table
	fieldIDs   map[int]bool // nil means every field
	predicates []expr.Expression

	scanner *pax.ChunkFileScanner
	all     *chunk.Chunk
	sel     []uint8
}

// NewTableScanVec builds a scan over the given fields (nil for all).
func NewTableScanVec(table *core.Table, fieldIDs []int) *TableScanVec {
	s := &TableScanVec{table: table}
	if fieldIDs != nil {
		s.fieldIDs = make(map[int]bool, len(fieldIDs))
		for _, id := range fieldIDs {
			s.fieldIDs[id] = true
		}
	}
	return s
}

// SetPredicates installs pushed-down predicates.
func (s *TableScanVec) SetPredicates(predicates []expr.Expression) {
	s.predicates = predicates
}

// Open binds the chunk scanner and sizes the scratch columns to the page
// capacity.
func (s *TableScanVec) Open(ctx *Context) error {
	meta := s.table.Meta()
	s.scanner = s.table.OpenChunkScanner(pax.ReadOnly)
	capacity := pax.HeapPageCapacity(meta.RecordSize(), meta.FieldNum())
	s.all = chunk.NewChunk()
	for i := 0; i < meta.FieldNum(); i++ {
		field := meta.Field(i)
		if s.fieldIDs != nil && !s.fieldIDs[field.FieldID] {
			s.all.AddColumn(chunk.NewEmptyColumn(), -1)
			continue
		}
		s.all.AddColumn(chunk.NewColumn(field.Type, field.Len, capacity), field.FieldID)
	}
	return nil
}

// Next produces the next page's surviving rows as a referenced chunk.
func (s *TableScanVec) Next(ck *chunk.Chunk) error {
	if err := s.scanner.NextChunk(s.all); err != nil {
		return err
	}
	if len(s.predicates) == 0 {
		return ck.Reference(s.all)
	}

	rows := s.all.Rows()
	if cap(s.sel) < rows {
		s.sel = make([]uint8, rows)
	}
	s.sel = s.sel[:rows]
	for i := range s.sel {
		s.sel[i] = 1
	}
	for _, predicate := range s.predicates {
		if err := predicate.Eval(s.all, s.sel); err != nil {
			return err
		}
	}
	kept := 0
	for _, bit := range s.sel {
		if bit != 0 {
			kept++
		}
	}
	if kept != rows {
		for j := 0; j < s.all.ColumnNum(); j++ {
			col := s.all.Column(j)
			if col.AttrType() == types.Undefined || col.Mode() == chunk.ModeConstant {
				col.Resize(kept)
				continue
			}
			col.Compress(s.sel)
		}
	}
	return ck.Reference(s.all)
}

// Close tears down the scanner.
func (s *TableScanVec) Close() error {
	if s.scanner == nil {
		return nil
	}
	return s.scanner.CloseScan()
}
