package expr

import (
	"strings"

	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// Expression is a resolved scalar expression evaluated column-at-a-time over
// chunks. GetColumn materializes the expression's values for every row of the
// input chunk; Eval narrows a select mask and is only implemented by
// predicate expressions.
type Expression interface {
	Name() string
	ValueType() types.AttrType
	ValueLength() int
	GetColumn(ck *chunk.Chunk, col *chunk.Column) error
	Eval(ck *chunk.Chunk, sel []uint8) error
}

// unimplemented supplies the default Eval for non-predicate expressions.
type unimplemented struct{}

func (unimplemented) Eval(ck *chunk.Chunk, sel []uint8) error {
	return rc.New(rc.Unimplemented, "expression is not a predicate")
}

// FieldExpr reads one table attribute. When Pos is non-negative a lower
// operator has already produced the value at that output position and the
// chunk is addressed positionally instead of by logical id.
type FieldExpr struct {
	unimplemented
	FieldName string
	FieldID   int
	Type      types.AttrType
	Len       int
	Pos       int
}

// NewFieldExpr builds a field reference addressed by logical id.
func NewFieldExpr(name string, fieldID int, typ types.AttrType, length int) *FieldExpr {
	return &FieldExpr{FieldName: name, FieldID: fieldID, Type: typ, Len: length, Pos: -1}
}

func (e *FieldExpr) Name() string              { return e.FieldName }
func (e *FieldExpr) ValueType() types.AttrType { return e.Type }
func (e *FieldExpr) ValueLength() int          { return e.Len }

func (e *FieldExpr) GetColumn(ck *chunk.Chunk, col *chunk.Column) error {
	if e.Pos >= 0 {
		col.Reference(ck.Column(e.Pos))
		return nil
	}
	for i := 0; i < ck.ColumnNum(); i++ {
		if ck.ColumnIDs(i) == e.FieldID {
			col.Reference(ck.Column(i))
			return nil
		}
	}
	return rc.Errorf(rc.Internal, "field %s (id %d) not present in chunk", e.FieldName, e.FieldID)
}

// ValueExpr carries a literal.
type ValueExpr struct {
	unimplemented
	Val types.Value
}

func NewValueExpr(v types.Value) *ValueExpr { return &ValueExpr{Val: v} }

func (e *ValueExpr) Name() string              { return e.Val.ToString() }
func (e *ValueExpr) ValueType() types.AttrType { return e.Val.AttrType() }
func (e *ValueExpr) ValueLength() int {
	if n := e.Val.AttrType().FixedLen(); n != 0 {
		return n
	}
	return e.Val.Length()
}

func (e *ValueExpr) GetColumn(ck *chunk.Chunk, col *chunk.Column) error {
	fresh := chunk.NewColumn(e.Val.AttrType(), e.ValueLength(), 1)
	if err := fresh.MakeConstant(e.Val, ck.Rows()); err != nil {
		return err
	}
	col.Reference(fresh)
	return nil
}

// CastExpr converts its child to a target type, value by value.
type CastExpr struct {
	unimplemented
	Child  Expression
	Target types.AttrType
}

func NewCastExpr(child Expression, target types.AttrType) *CastExpr {
	return &CastExpr{Child: child, Target: target}
}

func (e *CastExpr) Name() string              { return "cast(" + e.Child.Name() + ")" }
func (e *CastExpr) ValueType() types.AttrType { return e.Target }
func (e *CastExpr) ValueLength() int {
	if n := e.Target.FixedLen(); n != 0 {
		return n
	}
	return e.Child.ValueLength()
}

func (e *CastExpr) GetColumn(ck *chunk.Chunk, col *chunk.Column) error {
	child := &chunk.Column{}
	if err := e.Child.GetColumn(ck, child); err != nil {
		return err
	}
	out := chunk.NewColumn(e.Target, e.ValueLength(), maxInt(child.Count(), 1))
	for i := 0; i < child.Count(); i++ {
		v, err := child.GetValue(i).CastTo(e.Target)
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

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// AggrKind identifies an aggregate function.
type AggrKind uint8

const (
	AggrSum AggrKind = iota
	AggrCount
	AggrAvg
)

func (k AggrKind) String() string {
	switch k {
	case AggrSum:
		return "sum"
	case AggrCount:
		return "count"
	default:
		return "avg"
	}
}

// ParseAggrKind resolves an aggregate function name.
func ParseAggrKind(name string) (AggrKind, bool) {
	switch strings.ToLower(name) {
	case "sum":
		return AggrSum, true
	case "count":
		return AggrCount, true
	case "avg":
		return AggrAvg, true
	}
	return AggrSum, false
}

// AggregateExpr wraps a child expression in an aggregate function. Pos plays
// the same role as on FieldExpr: once a group-by operator has produced the
// finalized value, projection reads it positionally.
type AggregateExpr struct {
	unimplemented
	Kind  AggrKind
	Child Expression
	Pos   int
}

func NewAggregateExpr(kind AggrKind, child Expression) *AggregateExpr {
	return &AggregateExpr{Kind: kind, Child: child, Pos: -1}
}

func (e *AggregateExpr) Name() string { return e.Kind.String() + "(" + e.Child.Name() + ")" }

func (e *AggregateExpr) ValueType() types.AttrType {
	switch e.Kind {
	case AggrCount:
		return types.Ints
	case AggrAvg:
		return types.Floats
	default:
		return e.Child.ValueType()
	}
}

func (e *AggregateExpr) ValueLength() int {
	switch e.Kind {
	case AggrCount, AggrAvg:
		return 4
	default:
		return e.Child.ValueLength()
	}
}

// ChildType returns the attribute type the aggregate accumulates over.
func (e *AggregateExpr) ChildType() types.AttrType { return e.Child.ValueType() }

func (e *AggregateExpr) GetColumn(ck *chunk.Chunk, col *chunk.Column) error {
	if e.Pos >= 0 {
		col.Reference(ck.Column(e.Pos))
		return nil
	}
	return rc.New(rc.Internal, "aggregate value not produced by child operator")
}
