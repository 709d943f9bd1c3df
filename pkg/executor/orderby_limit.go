package executor

import (
	"container/heap"

	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/expr"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// rowHeap keeps the best N rows seen so far. The comparator is inverted so
// the root is the worst retained row: pushing a better row and popping the
// root preserves the best N.
type rowHeap struct {
	asc  []bool
	rows []orderRow
}

func (h *rowHeap) Len() int { return len(h.rows) }
func (h *rowHeap) Less(i, j int) bool {
	return orderKeyLess(h.asc, h.rows[j].key, h.rows[i].key)
}
func (h *rowHeap) Swap(i, j int) { h.rows[i], h.rows[j] = h.rows[j], h.rows[i] }
func (h *rowHeap) Push(x any)    { h.rows = append(h.rows, x.(orderRow)) }
func (h *rowHeap) Pop() any {
	n := len(h.rows) - 1
	row := h.rows[n]
	h.rows = h.rows[:n]
	return row
}

// OrderByLimitVec is the top-K path: it keeps a bounded heap while draining
// the child, then emits the retained rows in sort order.
type OrderByLimitVec struct {
	child      PhysicalOperator
	orderExprs []expr.Expression
	asc        []bool
	n          int

	heap     *rowHeap
	colTypes []types.AttrType
	colLens  []int
	colIDs   []int
	done     bool
}

// NewOrderByLimitVec builds the fused order-by + limit operator.
func NewOrderByLimitVec(child PhysicalOperator, orderExprs []expr.Expression, asc []bool, n int) *OrderByLimitVec {
	return &OrderByLimitVec{
		child:      child,
		orderExprs: orderExprs,
		asc:        asc,
		n:          n,
		heap:       &rowHeap{asc: asc},
	}
}

// Open drains the child through the bounded heap.
func (o *OrderByLimitVec) Open(ctx *Context) error {
	if err := o.child.Open(ctx); err != nil {
		return err
	}
	heap.Init(o.heap)
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
		for _, row := range fetchOrderRows(input, keyCols) {
			heap.Push(o.heap, row)
			if o.heap.Len() > o.n {
				heap.Pop(o.heap)
			}
		}
	}
	return nil
}

func (o *OrderByLimitVec) captureShape(input *chunk.Chunk) {
	if o.colTypes != nil {
		return
	}
	for i := 0; i < input.ColumnNum(); i++ {
		o.colTypes = append(o.colTypes, input.Column(i).AttrType())
		o.colLens = append(o.colLens, input.Column(i).AttrLen())
		o.colIDs = append(o.colIDs, input.ColumnIDs(i))
	}
}

// Next drains the heap worst-first, reverses, and emits once.
func (o *OrderByLimitVec) Next(ck *chunk.Chunk) error {
	if o.done || o.heap.Len() == 0 {
		return rc.EOF()
	}
	o.done = true
	rows := make([]orderRow, 0, o.heap.Len())
	for o.heap.Len() > 0 {
		rows = append(rows, heap.Pop(o.heap).(orderRow))
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	ck.Reset()
	for i := range o.colTypes {
		ck.AddColumn(chunk.NewColumn(o.colTypes[i], o.colLens[i], len(rows)), o.colIDs[i])
	}
	for _, row := range rows {
		for i, v := range row.values {
			if err := ck.Column(i).AppendValue(v); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close forwards to the child.
func (o *OrderByLimitVec) Close() error { return o.child.Close() }
