package executor

import (
	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/expr"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// AggState accumulates one aggregate for one group. UpdateColumn folds a
// whole column in through the batched kernels; FinalizeInto appends the
// finished value to an output column.
type AggState interface {
	UpdateValue(v types.Value) error
	UpdateColumn(col *chunk.Column) error
	FinalizeInto(col *chunk.Column) error
}

// NewAggState builds the state for an aggregate kind over a child type.
func NewAggState(kind expr.AggrKind, childType types.AttrType) (AggState, error) {
	switch kind {
	case expr.AggrSum:
		switch childType {
		case types.Ints:
			return &sumInt32State{}, nil
		case types.BigInts:
			return &sumInt64State{}, nil
		case types.Floats:
			return &sumFloat32State{}, nil
		}
		return nil, rc.Errorf(rc.Unimplemented, "sum over %s", childType)
	case expr.AggrCount:
		return &countState{}, nil
	case expr.AggrAvg:
		switch childType {
		case types.Ints:
			return &avgInt32State{}, nil
		case types.BigInts:
			return &avgInt64State{}, nil
		case types.Floats:
			return &avgFloat32State{}, nil
		}
		return nil, rc.Errorf(rc.Unimplemented, "avg over %s", childType)
	}
	return nil, rc.Errorf(rc.Unimplemented, "aggregate kind %d", kind)
}

type sumInt32State struct {
	value int32
}

func (s *sumInt32State) UpdateValue(v types.Value) error {
	s.value += v.Int32()
	return nil
}

func (s *sumInt32State) UpdateColumn(col *chunk.Column) error {
	s.value += sumInt32s(col.Int32s())
	return nil
}

func (s *sumInt32State) FinalizeInto(col *chunk.Column) error {
	return col.AppendValue(types.NewInt(s.value))
}

type sumInt64State struct {
	value int64
}

func (s *sumInt64State) UpdateValue(v types.Value) error {
	s.value += v.Int64()
	return nil
}

func (s *sumInt64State) UpdateColumn(col *chunk.Column) error {
	s.value += sumInt64s(col.Int64s())
	return nil
}

func (s *sumInt64State) FinalizeInto(col *chunk.Column) error {
	return col.AppendValue(types.NewBigInt(s.value))
}

type sumFloat32State struct {
	value float32
}

func (s *sumFloat32State) UpdateValue(v types.Value) error {
	s.value += v.Float32()
	return nil
}

func (s *sumFloat32State) UpdateColumn(col *chunk.Column) error {
	s.value += sumFloat32s(col.Float32s())
	return nil
}

func (s *sumFloat32State) FinalizeInto(col *chunk.Column) error {
	return col.AppendValue(types.NewFloat(s.value))
}

type countState struct {
	value int64
}

func (s *countState) UpdateValue(types.Value) error {
	s.value++
	return nil
}

func (s *countState) UpdateColumn(col *chunk.Column) error {
	s.value += int64(col.Count())
	return nil
}

func (s *countState) FinalizeInto(col *chunk.Column) error {
	if col.AttrType() == types.BigInts {
		return col.AppendValue(types.NewBigInt(s.value))
	}
	return col.AppendValue(types.NewInt(int32(s.value)))
}

// Count exposes the accumulated count; the fused top-N operator orders by it.
func (s *countState) Count() int64 { return s.value }

type avgInt32State struct {
	value int32
	count int64
}

func (s *avgInt32State) UpdateValue(v types.Value) error {
	s.value += v.Int32()
	s.count++
	return nil
}

func (s *avgInt32State) UpdateColumn(col *chunk.Column) error {
	s.value += sumInt32s(col.Int32s())
	s.count += int64(col.Count())
	return nil
}

func (s *avgInt32State) FinalizeInto(col *chunk.Column) error {
	if s.count == 0 {
		return col.AppendValue(types.NewFloat(0))
	}
	return col.AppendValue(types.NewFloat(float32(s.value) / float32(s.count)))
}

type avgInt64State struct {
	value int64
	count int64
}

func (s *avgInt64State) UpdateValue(v types.Value) error {
	s.value += v.Int64()
	s.count++
	return nil
}

func (s *avgInt64State) UpdateColumn(col *chunk.Column) error {
	s.value += sumInt64s(col.Int64s())
	s.count += int64(col.Count())
	return nil
}

func (s *avgInt64State) FinalizeInto(col *chunk.Column) error {
	if s.count == 0 {
		return col.AppendValue(types.NewFloat(0))
	}
	return col.AppendValue(types.NewFloat(float32(s.value) / float32(s.count)))
}

type avgFloat32State struct {
	value float32
	count int64
}

func (s *avgFloat32State) UpdateValue(v types.Value) error {
	s.value += v.Float32()
	s.count++
	return nil
}

func (s *avgFloat32State) UpdateColumn(col *chunk.Column) error {
	s.value += sumFloat32s(col.Float32s())
	s.count += int64(col.Count())
	return nil
}

func (s *avgFloat32State) FinalizeInto(col *chunk.Column) error {
	if s.count == 0 {
		return col.AppendValue(types.NewFloat(0))
	}
	return col.AppendValue(types.NewFloat(s.value / float32(s.count)))
}
