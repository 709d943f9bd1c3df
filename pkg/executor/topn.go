package executor

import (
	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/expr"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// GroupByTopNVec fuses "group by K..., count(*), order by count(*) desc
// limit N" into one operator: it drains groups into a specialized hash table
// and materializes only the N highest-count groups, in descending count
// order.
type GroupByTopNVec struct {
	child      PhysicalOperator
	groupExprs []expr.Expression
	aggrExprs  []*expr.AggregateExpr
	n          int
	countPos   int

	table   *SpecializedHashTable
	output  *chunk.Chunk
	emitted bool
}

// NewGroupByTopNVec builds the fused operator; it returns an error when the
// key shape does not fit the specialized table or no count aggregate exists.
func NewGroupByTopNVec(child PhysicalOperator, groupExprs []expr.Expression,
	aggrExprs []*expr.AggregateExpr, n int) (*GroupByTopNVec, error) {
	countPos := -1
	for i, a := range aggrExprs {
		if a.Kind == expr.AggrCount {
			countPos = i
		}
	}
	if countPos < 0 {
		return nil, rc.New(rc.InvalidArgument, "fused top-N needs a count aggregate")
	}
	keyTypes := make([]types.AttrType, len(groupExprs))
	for i, e := range groupExprs {
		keyTypes[i] = e.ValueType()
	}
	table, err := NewSpecializedHashTable(keyTypes, aggrExprs)
	if err != nil {
		return nil, err
	}
	op := &GroupByTopNVec{
		child:      child,
		groupExprs: groupExprs,
		aggrExprs:  aggrExprs,
		n:          n,
		countPos:   countPos,
		table:      table,
		output:     chunk.NewChunk(),
	}
	for i, e := range groupExprs {
		op.output.AddColumn(chunk.NewColumn(e.ValueType(), e.ValueLength(), maxCap(n)), i)
	}
	for i, a := range aggrExprs {
		op.output.AddColumn(chunk.NewColumn(a.ValueType(), a.ValueLength(), maxCap(n)), len(groupExprs)+i)
	}
	return op, nil
}

// Open drains the child into the table and materializes the top N groups.
func (g *GroupByTopNVec) Open(ctx *Context) error {
	if err := g.child.Open(ctx); err != nil {
		return err
	}
	input := chunk.NewChunk()
	for {
		input.Reset()
		err := g.child.Next(input)
		if rc.IsEOF(err) {
			break
		}
		if err != nil {
			return err
		}
		if input.Rows() == 0 {
			continue
		}
		groups := chunk.NewChunk()
		for i, e := range g.groupExprs {
			col := &chunk.Column{}
			if err := e.GetColumn(input, col); err != nil {
				return err
			}
			groups.AddColumn(col, i)
		}
		aggrs := chunk.NewChunk()
		for i, a := range g.aggrExprs {
			col := &chunk.Column{}
			if err := a.Child.GetColumn(input, col); err != nil {
				return err
			}
			aggrs.AddColumn(col, i)
		}
		if err := g.table.AddChunk(groups, aggrs); err != nil {
			return err
		}
	}
	return g.table.TopN(g.output, g.countPos, g.n)
}

// Next emits the materialized result once.
func (g *GroupByTopNVec) Next(ck *chunk.Chunk) error {
	if g.emitted || g.output.Rows() == 0 {
		return rc.EOF()
	}
	g.emitted = true
	return ck.Reference(g.output)
}

// Close forwards to the child.
func (g *GroupByTopNVec) Close() error { return g.child.Close() }
