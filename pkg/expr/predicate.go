package expr

import (
	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// CompOp is a comparison operator.
type CompOp uint8

const (
	OpEqual CompOp = iota
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
)

func (op CompOp) String() string {
	switch op {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpGreater:
		return ">"
	default:
		return ">="
	}
}

func (op CompOp) holds(cmp int) bool {
	switch op {
	case OpEqual:
		return cmp == 0
	case OpNotEqual:
		return cmp != 0
	case OpLess:
		return cmp < 0
	case OpLessEqual:
		return cmp <= 0
	case OpGreater:
		return cmp > 0
	default:
		return cmp >= 0
	}
}

// ComparisonExpr compares two child expressions row by row. As a predicate it
// clears select bits for rows where the comparison fails; predicates above
// the same chunk therefore AND together.
type ComparisonExpr struct {
	Op    CompOp
	Left  Expression
	Right Expression
}

func NewComparisonExpr(op CompOp, left, right Expression) *ComparisonExpr {
	return &ComparisonExpr{Op: op, Left: left, Right: right}
}

func (e *ComparisonExpr) Name() string {
	return e.Left.Name() + " " + e.Op.String() + " " + e.Right.Name()
}

func (e *ComparisonExpr) ValueType() types.AttrType { return types.Booleans }
func (e *ComparisonExpr) ValueLength() int          { return 1 }

func (e *ComparisonExpr) Eval(ck *chunk.Chunk, sel []uint8) error {
	left := &chunk.Column{}
	if err := e.Left.GetColumn(ck, left); err != nil {
		return err
	}
	right := &chunk.Column{}
	if err := e.Right.GetColumn(ck, right); err != nil {
		return err
	}

	// Fast path: both sides are plain int32 buffers.
	if left.AttrType() == types.Ints && right.AttrType() == types.Ints &&
		left.Mode() != chunk.ModeConstant && right.Mode() != chunk.ModeConstant {
		lv, rv := left.Int32s(), right.Int32s()
		for i := range sel {
			if sel[i] == 0 {
				continue
			}
			if !e.Op.holds(compareInt32(lv[i], rv[i])) {
				sel[i] = 0
			}
		}
		return nil
	}

	for i := range sel {
		if sel[i] == 0 {
			continue
		}
		if !e.Op.holds(left.GetValue(i).Compare(right.GetValue(i))) {
			sel[i] = 0
		}
	}
	return nil
}

func compareInt32(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// GetColumn materializes the comparison as a boolean column.
func (e *ComparisonExpr) GetColumn(ck *chunk.Chunk, col *chunk.Column) error {
	sel := make([]uint8, ck.Rows())
	for i := range sel {
		sel[i] = 1
	}
	if err := e.Eval(ck, sel); err != nil {
		return err
	}
	out := chunk.NewColumn(types.Booleans, 1, maxInt(len(sel), 1))
	for _, bit := range sel {
		if err := out.AppendValue(types.NewBool(bit != 0)); err != nil {
			return err
		}
	}
	col.Reference(out)
	return nil
}

// ConjType joins predicate children with AND or OR.
type ConjType uint8

const (
	ConjAnd ConjType = iota
	ConjOr
)

// ConjunctionExpr combines child predicates.
type ConjunctionExpr struct {
	unimplemented
	Type     ConjType
	Children []Expression
}

func NewConjunctionExpr(typ ConjType, children []Expression) *ConjunctionExpr {
	return &ConjunctionExpr{Type: typ, Children: children}
}

func (e *ConjunctionExpr) Name() string              { return "conjunction" }
func (e *ConjunctionExpr) ValueType() types.AttrType { return types.Booleans }
func (e *ConjunctionExpr) ValueLength() int          { return 1 }

func (e *ConjunctionExpr) Eval(ck *chunk.Chunk, sel []uint8) error {
	if len(e.Children) == 0 {
		return nil
	}
	if e.Type == ConjAnd {
		for _, child := range e.Children {
			if err := child.Eval(ck, sel); err != nil {
				return err
			}
		}
		return nil
	}
	// OR: a row survives when any child keeps it.
	result := make([]uint8, len(sel))
	scratch := make([]uint8, len(sel))
	for _, child := range e.Children {
		copy(scratch, sel)
		if err := child.Eval(ck, scratch); err != nil {
			return err
		}
		for i := range result {
			result[i] |= scratch[i]
		}
	}
	copy(sel, result)
	return nil
}

// ArithOp is an arithmetic operator.
type ArithOp uint8

const (
	ArithAdd ArithOp = iota
	ArithSub
	ArithMul
	ArithNeg
)

// ArithmeticExpr computes an element-wise arithmetic expression.
type ArithmeticExpr struct {
	unimplemented
	Op    ArithOp
	Left  Expression
	Right Expression // nil for negation
}

func NewArithmeticExpr(op ArithOp, left, right Expression) *ArithmeticExpr {
	return &ArithmeticExpr{Op: op, Left: left, Right: right}
}

func (e *ArithmeticExpr) Name() string { return "arithmetic" }

func (e *ArithmeticExpr) ValueType() types.AttrType {
	if e.Right == nil {
		return e.Left.ValueType()
	}
	left, right := e.Left.ValueType(), e.Right.ValueType()
	if left == types.Floats || right == types.Floats {
		return types.Floats
	}
	if left == types.BigInts || right == types.BigInts {
		return types.BigInts
	}
	return types.Ints
}

func (e *ArithmeticExpr) ValueLength() int { return e.ValueType().FixedLen() }

func (e *ArithmeticExpr) GetColumn(ck *chunk.Chunk, col *chunk.Column) error {
	left := &chunk.Column{}
	if err := e.Left.GetColumn(ck, left); err != nil {
		return err
	}
	rows := left.Count()
	out := chunk.NewColumn(e.ValueType(), e.ValueLength(), maxInt(rows, 1))

	if e.Op == ArithNeg {
		for i := 0; i < rows; i++ {
			v, err := left.GetValue(i).Neg()
			if err != nil {
				return err
			}
			if err := out.AppendValue(v); err != nil {
				return err
			}
		}
		col.Reference(out)
		return nil
	}

	right := &chunk.Column{}
	if err := e.Right.GetColumn(ck, right); err != nil {
		return err
	}
	for i := 0; i < rows; i++ {
		var v types.Value
		var err error
		switch e.Op {
		case ArithAdd:
			v, err = left.GetValue(i).Add(right.GetValue(i))
		case ArithSub:
			v, err = left.GetValue(i).Sub(right.GetValue(i))
		default:
			v, err = left.GetValue(i).Mul(right.GetValue(i))
		}
		if err != nil {
			return err
		}
		if err := out.AppendValue(v); err != nil {
			return err
		}
	}
	col.Reference(out)
	return nil
}
