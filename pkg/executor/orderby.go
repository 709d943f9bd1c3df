package executor

import (
	"sort"

	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/expr"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// orderRow pairs a materialized output row with its ordering key tuple.
type orderRow struct {
	values []types.Value
	key    []types.Value
}

// orderKeyLess compares key tuples lexicographically, inverting the compare
// for descending columns. Equal keys return false both ways, so a stable sort
// keeps insertion order for ties.
func orderKeyLess(asc []bool, a, b []types.Value) bool {
	for i := range a {
		cmp := a[i].Compare(b[i])
		if !asc[i] {
			cmp = -cmp
		}
		if cmp < 0 {
			return true
		}
		if cmp > 0 {
			return false
		}
	}
	return false
}

// fetchOrderRows materializes every row of a chunk with its key columns.
func fetchOrderRows(ck *chunk.Chunk, keyCols []*chunk.Column) []orderRow {
	rows := make([]orderRow, 0, ck.Rows())
	for rid := 0; rid < ck.Rows(); rid++ {
		row := orderRow{
			values: make([]types.Value, ck.ColumnNum()),
			key:    make([]types.Value, len(keyCols)),
		}
		for i := 0; i < ck.ColumnNum(); i++ {
			row.values[i] = ck.GetValue(i, rid)
		}
		for i, col := range keyCols {
			row.key[i] = col.GetValue(rid)
		}
		rows = append(rows, row)
	}
	return rows
}

// OrderByVec materializes the child's whole output, sorts it by the ordering
// keys and emits the sorted rows in one chunk.
type OrderByVec struct {
	child      PhysicalOperator
	orderExprs []expr.Expression
	asc        []bool

	rows     []orderRow
	colTypes []types.AttrType
	colLens  []int
	colIDs   []int
	done     bool
}

// NewOrderByVec builds the operator; asc holds one direction per expression.
func NewOrderByVec(child PhysicalOperator, orderExprs []expr.Expression, asc []bool) *OrderByVec {
	return &OrderByVec{child: child, orderExprs: orderExprs, asc: asc}
}

// Open drains and sorts.
func (o *OrderByVec) Open(ctx *Context) error {
	if err := o.child.Open(ctx); err != nil {
		return err
	}
	input := chunk.NewChunk()
	for {
		input.Reset()
		err := o.child.Next(input)
		if rc.IsEOF(err) {
			break
		}
		if err != nil {
			return err
		}
		if input.Rows() == 0 {
			continue
		}
		o.captureShape(input)
		keyCols := make([]*chunk.Column, len(o.orderExprs))
		for i, e := range o.orderExprs {
			keyCols[i] = &chunk.Column{}
			if err := e.GetColumn(input, keyCols[i]); err != nil {
				return err
			}
		}
		o.rows = append(o.rows, fetchOrderRows(input, keyCols)...)
	}
	sort.SliceStable(o.rows, func(i, j int) bool {
		return orderKeyLess(o.asc, o.rows[i].key, o.rows[j].key)
	})
	return nil
}

func (o *OrderByVec) captureShape(input *chunk.Chunk) {
	if o.colTypes != nil {
		return
	}
	for i := 0; i < input.ColumnNum(); i++ {
		o.colTypes = append(o.colTypes, input.Column(i).AttrType())
		o.colLens = append(o.colLens, input.Column(i).AttrLen())
		o.colIDs = append(o.colIDs, input.ColumnIDs(i))
	}
}

// Next emits all sorted rows once.
func (o *OrderByVec) Next(ck *chunk.Chunk) error {
	if o.done || len(o.rows) == 0 {
		return rc.EOF()
	}
	o.done = true
	ck.Reset()
	for i := range o.colTypes {
		ck.AddColumn(chunk.NewColumn(o.colTypes[i], o.colLens[i], len(o.rows)), o.colIDs[i])
	}
	for _, row := range o.rows {
		for i, v := range row.values {
			if err := ck.Column(i).AppendValue(v); err != nil {
				return err
			}
		}
	}
	o.rows = nil
	return nil
}

// Close forwards to the child.
func (o *OrderByVec) Close() error { return o.child.Close() }
