package executor

import (
	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/expr"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// aggTable is what every hash-table family exposes to the group-by operator.
type aggTable interface {
	AddChunk(groups, aggrs *chunk.Chunk) error
}

// aggScanner drains a table into output chunks.
type aggScanner interface {
	Next(out *chunk.Chunk) error
	Close()
}

type stdScannerAdapter struct{ StandardHashTableScanner }

func (a *stdScannerAdapter) Close() { a.CloseScan() }

type specScannerAdapter struct{ SpecializedHashTableScanner }

func (a *specScannerAdapter) Close() { a.CloseScan() }

type linearScannerAdapter[V int32 | int64] struct{ LinearHashTableScanner[V] }

func (a *linearScannerAdapter[V]) Close() { a.CloseScan() }

// GroupByVec drains its child into an aggregation hash table on Open and
// scans the table on Next. The table variant is picked from the key and
// aggregate shapes; the first matching row of the dispatch wins:
//
//	1 int32 key (or chars <= 4, int-encoded), 1 sum  -> linear probing
//	1..4 keys from {int32,int64,chars,text}, <= 4 aggrs -> specialized
//	anything else                                    -> standard
type GroupByVec struct {
	child      PhysicalOperator
	groupExprs []expr.Expression
	aggrExprs  []*expr.AggregateExpr

	table      aggTable
	scanner    aggScanner
	needEncode bool
	outTypes   []types.AttrType
	outLens    []int
}

// NewGroupByVec builds the operator and picks the table variant.
func NewGroupByVec(child PhysicalOperator, groupExprs []expr.Expression, aggrExprs []*expr.AggregateExpr) *GroupByVec {
	g := &GroupByVec{child: child, groupExprs: groupExprs, aggrExprs: aggrExprs}
	g.dispatch()
	for _, e := range groupExprs {
		g.outTypes = append(g.outTypes, e.ValueType())
		g.outLens = append(g.outLens, e.ValueLength())
	}
	for _, a := range aggrExprs {
		g.outTypes = append(g.outTypes, a.ValueType())
		g.outLens = append(g.outLens, a.ValueLength())
	}
	return g
}

func (g *GroupByVec) dispatch() {
	if len(g.groupExprs) == 1 && len(g.aggrExprs) == 1 && g.aggrExprs[0].Kind == expr.AggrSum {
		keyType := g.groupExprs[0].ValueType()
		intKey := keyType == types.Ints
		encodable := keyType == types.Chars && g.groupExprs[0].ValueLength() <= 4
		if intKey || encodable {
			g.needEncode = encodable
			switch g.aggrExprs[0].ChildType() {
			case types.Ints:
				table := NewLinearProbingHashTable[int32]()
				scanner := &linearScannerAdapter[int32]{}
				scanner.OpenScan(table)
				g.table, g.scanner = table, scanner
				return
			case types.BigInts:
				table := NewLinearProbingHashTable[int64]()
				scanner := &linearScannerAdapter[int64]{}
				scanner.OpenScan(table)
				g.table, g.scanner = table, scanner
				return
			}
			g.needEncode = false
		}
	}

	if len(g.groupExprs) >= 1 && len(g.groupExprs) <= 4 && len(g.aggrExprs) <= 4 {
		keyTypes := make([]types.AttrType, len(g.groupExprs))
		ok := true
		for i, e := range g.groupExprs {
			keyTypes[i] = e.ValueType()
			if !SupportedSpecKey(keyTypes[i]) {
				ok = false
				break
			}
		}
		if ok {
			if table, err := NewSpecializedHashTable(keyTypes, g.aggrExprs); err == nil {
				scanner := &specScannerAdapter{}
				scanner.OpenScan(table)
				g.table, g.scanner = table, scanner
				return
			}
		}
	}

	table := NewStandardHashTable(g.aggrExprs)
	scanner := &stdScannerAdapter{}
	scanner.OpenScan(table)
	g.table, g.scanner = table, scanner
}

// encodeCharKeys packs char keys of up to four bytes into the low bytes of an
// int column so the linear-probing table can chew on them.
func encodeCharKeys(col *chunk.Column) (*chunk.Column, error) {
	out := chunk.NewColumn(types.Ints, 4, maxCap(col.Count()))
	attrLen := col.AttrLen()
	data := col.Data()
	var packed [4]byte
	for i := 0; i < col.Count(); i++ {
		packed = [4]byte{}
		copy(packed[:], data[i*attrLen:(i+1)*attrLen])
		if err := out.AppendRaw(packed[:]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func maxCap(n int) int {
	if n > chunk.DefaultCapacity {
		return n
	}
	return chunk.DefaultCapacity
}

// Open drains the child into the hash table.
func (g *GroupByVec) Open(ctx *Context) error {
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
			if g.needEncode {
				encoded, err := encodeCharKeys(col)
				if err != nil {
					return err
				}
				col = encoded
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
	return nil
}

// Next scans the table into ck, rebuilding the output columns each call.
func (g *GroupByVec) Next(ck *chunk.Chunk) error {
	ck.Reset()
	if g.needEncode {
		ck.AddColumn(chunk.NewColumn(types.Ints, 4, 0), 0)
		ck.AddColumn(chunk.NewColumn(g.outTypes[1], g.outLens[1], 0), 1)
		err := g.scanner.Next(ck)
		ck.Column(0).SetAttrType(types.Chars)
		return err
	}
	for i := range g.outTypes {
		ck.AddColumn(chunk.NewColumn(g.outTypes[i], g.outLens[i], 0), i)
	}
	return g.scanner.Next(ck)
}

// Close shuts the scanner and the child.
func (g *GroupByVec) Close() error {
	g.scanner.Close()
	return g.child.Close()
}
