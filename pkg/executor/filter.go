package executor

import (
	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/expr"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// FilterVec applies predicates to its child's chunks with the same
// mask-and-compress logic the scan uses; it stands alone when predicates
// cannot be pushed into a leaf.
type FilterVec struct {
	child      PhysicalOperator
	predicates []expr.Expression
	input      *chunk.Chunk
	sel        []uint8
}

// NewFilterVec builds a filter over child.
func NewFilterVec(child PhysicalOperator, predicates []expr.Expression) *FilterVec {
	return &FilterVec{child: child, predicates: predicates, input: chunk.NewChunk()}
}

// Open forwards to the child.
func (f *FilterVec) Open(ctx *Context) error { return f.child.Open(ctx) }

// Next narrows the child's next chunk.
func (f *FilterVec) Next(ck *chunk.Chunk) error {
	f.input.Reset()
	if err := f.child.Next(f.input); err != nil {
		return err
	}
	rows := f.input.Rows()
	if cap(f.sel) < rows {
		f.sel = make([]uint8, rows)
	}
	f.sel = f.sel[:rows]
	for i := range f.sel {
		f.sel[i] = 1
	}
	for _, predicate := range f.predicates {
		if err := predicate.Eval(f.input, f.sel); err != nil {
			return err
		}
	}
	kept := 0
	for _, bit := range f.sel {
		if bit != 0 {
			kept++
		}
	}
	if kept != rows {
		for j := 0; j < f.input.ColumnNum(); j++ {
			col := f.input.Column(j)
			if col.AttrType() == types.Undefined || col.Mode() == chunk.ModeConstant {
				col.Resize(kept)
				continue
			}
			col.Compress(f.sel)
		}
	}
	return ck.Reference(f.input)
}

// Close forwards to the child.
func (f *FilterVec) Close() error { return f.child.Close() }
