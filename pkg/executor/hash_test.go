package executor

import (
	"math/rand"
	"testing"

	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/expr"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

func TestLinearProbingBatchSum(t *testing.T) {
	table := NewLinearProbingHashTable[int32]()
	keys := []int32{1, 2, 1, 2, 1, 3, 3, 2, 1, 2}
	values := []int32{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	if err := table.AddBatch(keys, values); err != nil {
		t.Fatalf("add batch: %v", err)
	}

	if table.Size() != 3 {
		t.Fatalf("size = %d, want 3", table.Size())
	}
	want := map[int32]int32{1: 180, 2: 240, 3: 130}
	for k, w := range want {
		got, ok := table.Get(k)
		if !ok {
			t.Fatalf("key %d missing", k)
		}
		if got != w {
			t.Errorf("key %d = %d, want %d", k, got, w)
		}
	}
}

func TestLinearProbingScalarMatchesVectorized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	keys := make([]int32, 5000)
	values := make([]int32, 5000)
	for i := range keys {
		keys[i] = int32(rng.Intn(300))
		values[i] = int32(rng.Intn(1000)) - 500
	}

	vec := NewLinearProbingHashTable[int32]()
	if err := vec.AddBatch(keys, values); err != nil {
		t.Fatalf("vectorized: %v", err)
	}

	SetVectorized(false)
	defer SetVectorized(true)
	scalar := NewLinearProbingHashTable[int32]()
	if err := scalar.AddBatch(keys, values); err != nil {
		t.Fatalf("scalar: %v", err)
	}

	if vec.Size() != scalar.Size() {
		t.Fatalf("size mismatch: %d vs %d", vec.Size(), scalar.Size())
	}
	for k := int32(0); k < 300; k++ {
		a, okA := vec.Get(k)
		b, okB := scalar.Get(k)
		if okA != okB || a != b {
			t.Errorf("key %d: vectorized %v/%d scalar %v/%d", k, okA, a, okB, b)
		}
	}
}

func TestLinearProbingResize(t *testing.T) {
	table := NewLinearProbingHashTable[int32]()
	initial := table.Capacity()

	keys := make([]int32, initial)
	values := make([]int32, initial)
	for i := range keys {
		keys[i] = int32(i)
		values[i] = 1
	}
	if err := table.AddBatch(keys, values); err != nil {
		t.Fatalf("add batch: %v", err)
	}
	if table.Size() != initial {
		t.Fatalf("size = %d, want %d", table.Size(), initial)
	}
	if table.Size() >= table.Capacity()/2 {
		t.Errorf("resize invariant violated: size %d capacity %d", table.Size(), table.Capacity())
	}
	if table.Capacity() < 2*initial {
		t.Errorf("capacity %d, want at least %d", table.Capacity(), 2*initial)
	}
	for i := int32(0); i < int32(initial); i += 997 {
		if got, ok := table.Get(i); !ok || got != 1 {
			t.Errorf("key %d lost across resize", i)
		}
	}
}

func TestLinearProbingInt64Values(t *testing.T) {
	table := NewLinearProbingHashTable[int64]()
	keys := []int32{7, 7, 8}
	values := []int64{1 << 40, 1, 5}
	if err := table.AddBatch(keys, values); err != nil {
		t.Fatalf("add batch: %v", err)
	}
	got, ok := table.Get(7)
	if !ok || got != (1<<40)+1 {
		t.Errorf("key 7 = %d (%v), want %d", got, ok, (1<<40)+1)
	}
}

func TestLinearProbingScanner(t *testing.T) {
	table := NewLinearProbingHashTable[int32]()
	if err := table.AddBatch([]int32{5, 6, 5}, []int32{1, 2, 3}); err != nil {
		t.Fatalf("add batch: %v", err)
	}
	scanner := &LinearHashTableScanner[int32]{}
	scanner.OpenScan(table)

	out := chunk.NewChunk()
	out.AddColumn(chunk.NewColumn(types.Ints, 4, 16), 0)
	out.AddColumn(chunk.NewColumn(types.Ints, 4, 16), 1)
	if err := scanner.Next(out); err != nil && !rc.IsEOF(err) {
		t.Fatalf("next: %v", err)
	}
	got := map[int32]int32{}
	for r := 0; r < out.Rows(); r++ {
		got[out.GetValue(0, r).Int32()] = out.GetValue(1, r).Int32()
	}
	if got[5] != 4 || got[6] != 2 {
		t.Errorf("scan mismatch: %v", got)
	}
	scanner.CloseScan()
}

func TestStandardHashTableCompositeKey(t *testing.T) {
	sum := expr.NewAggregateExpr(expr.AggrSum, expr.NewFieldExpr("v", 2, types.Ints, 4))
	table := NewStandardHashTable([]*expr.AggregateExpr{sum})

	groups := chunk.NewChunk()
	groups.AddColumn(intColumn(1, 1, 2, 1), 0)
	groups.AddColumn(charColumn(2, "x", "y", "x", "x"), 1)
	aggrs := chunk.NewChunk()
	aggrs.AddColumn(intColumn(10, 20, 30, 40), 0)

	if err := table.AddChunk(groups, aggrs); err != nil {
		t.Fatalf("add chunk: %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("groups = %d, want 3", table.Len())
	}

	scanner := &StandardHashTableScanner{}
	scanner.OpenScan(table)
	out := chunk.NewChunk()
	out.AddColumn(chunk.NewColumn(types.Ints, 4, 16), 0)
	out.AddColumn(chunk.NewColumn(types.Chars, 2, 16), 1)
	out.AddColumn(chunk.NewColumn(types.Ints, 4, 16), 2)
	if err := scanner.Next(out); err != nil && !rc.IsEOF(err) {
		t.Fatalf("next: %v", err)
	}
	got := map[string]int32{}
	for r := 0; r < out.Rows(); r++ {
		key := out.GetValue(0, r).ToString() + "/" + out.GetValue(1, r).ToString()
		got[key] = out.GetValue(2, r).Int32()
	}
	if got["1/x"] != 50 || got["1/y"] != 20 || got["2/x"] != 30 {
		t.Errorf("aggregation mismatch: %v", got)
	}
	scanner.CloseScan()
}

func TestStandardHashTableRowMismatch(t *testing.T) {
	count := expr.NewAggregateExpr(expr.AggrCount, expr.NewValueExpr(types.NewInt(1)))
	table := NewStandardHashTable([]*expr.AggregateExpr{count})

	groups := chunk.NewChunk()
	groups.AddColumn(intColumn(1, 2), 0)
	aggrs := chunk.NewChunk()
	aggrs.AddColumn(intColumn(1), 0)

	if err := table.AddChunk(groups, aggrs); !rc.Is(err, rc.InvalidArgument) {
		t.Errorf("Expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestSpecializedTableTopN(t *testing.T) {
	count := expr.NewAggregateExpr(expr.AggrCount, expr.NewValueExpr(types.NewInt(1)))
	sum := expr.NewAggregateExpr(expr.AggrSum, expr.NewFieldExpr("v", 1, types.BigInts, 8))
	table, err := NewSpecializedHashTable([]types.AttrType{types.BigInts},
		[]*expr.AggregateExpr{count, sum})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	groups := chunk.NewChunk()
	keyCol := chunk.NewColumn(types.BigInts, 8, 16)
	for _, k := range []int64{100, 200, 100, 300, 100, 200} {
		keyCol.AppendValue(types.NewBigInt(k))
	}
	groups.AddColumn(keyCol, 0)

	aggrs := chunk.NewChunk()
	aggrs.AddColumn(intColumn(1, 1, 1, 1, 1, 1), 0)
	sumCol := chunk.NewColumn(types.BigInts, 8, 16)
	for _, v := range []int64{5, 6, 7, 8, 9, 10} {
		sumCol.AppendValue(types.NewBigInt(v))
	}
	aggrs.AddColumn(sumCol, 1)

	if err := table.AddChunk(groups, aggrs); err != nil {
		t.Fatalf("add chunk: %v", err)
	}

	out := chunk.NewChunk()
	out.AddColumn(chunk.NewColumn(types.BigInts, 8, 16), 0)
	out.AddColumn(chunk.NewColumn(types.Ints, 4, 16), 1)
	out.AddColumn(chunk.NewColumn(types.BigInts, 8, 16), 2)
	if err := table.TopN(out, 0, 2); err != nil {
		t.Fatalf("topn: %v", err)
	}

	if out.Rows() != 2 {
		t.Fatalf("rows = %d, want 2", out.Rows())
	}
	if out.GetValue(0, 0).Int64() != 100 || out.GetValue(1, 0).Int32() != 3 {
		t.Errorf("row 0 = %s/%s", out.GetValue(0, 0).ToString(), out.GetValue(1, 0).ToString())
	}
	if out.GetValue(0, 1).Int64() != 200 || out.GetValue(1, 1).Int32() != 2 {
		t.Errorf("row 1 = %s/%s", out.GetValue(0, 1).ToString(), out.GetValue(1, 1).ToString())
	}
	if out.GetValue(2, 0).Int64() != 5+7+9 {
		t.Errorf("sum for key 100 = %d, want 21", out.GetValue(2, 0).Int64())
	}
}

func TestAggStateSumColumnMatchesLoop(t *testing.T) {
	col := chunk.NewColumn(types.Ints, 4, 2048)
	rng := rand.New(rand.NewSource(7))
	var want int32
	for i := 0; i < 1500; i++ {
		v := int32(rng.Intn(1 << 20))
		col.AppendValue(types.NewInt(v))
		want += v
	}

	state, err := NewAggState(expr.AggrSum, types.Ints)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	if err := state.UpdateColumn(col); err != nil {
		t.Fatalf("update: %v", err)
	}
	out := chunk.NewColumn(types.Ints, 4, 4)
	state.FinalizeInto(out)
	if got := out.GetValue(0).Int32(); got != want {
		t.Errorf("sum = %d, want %d", got, want)
	}

	SetVectorized(false)
	defer SetVectorized(true)
	scalarState, _ := NewAggState(expr.AggrSum, types.Ints)
	scalarState.UpdateColumn(col)
	scalarOut := chunk.NewColumn(types.Ints, 4, 4)
	scalarState.FinalizeInto(scalarOut)
	if scalarOut.GetValue(0).Int32() != want {
		t.Errorf("scalar path disagrees: %d vs %d", scalarOut.GetValue(0).Int32(), want)
	}
}

func TestAggStateSumWraparound(t *testing.T) {
	col := chunk.NewColumn(types.Ints, 4, 16)
	for i := 0; i < 9; i++ {
		col.AppendValue(types.NewInt(1<<30 + 1))
	}
	state, _ := NewAggState(expr.AggrSum, types.Ints)
	state.UpdateColumn(col)

	var want int32
	for i := 0; i < 9; i++ {
		want += 1<<30 + 1
	}
	out := chunk.NewColumn(types.Ints, 4, 4)
	state.FinalizeInto(out)
	if got := out.GetValue(0).Int32(); got != want {
		t.Errorf("wraparound sum = %d, want %d", got, want)
	}
}

func TestAvgStateFinalizesAsFloat(t *testing.T) {
	state, _ := NewAggState(expr.AggrAvg, types.Ints)
	for _, v := range []int32{1, 2} {
		state.UpdateValue(types.NewInt(v))
	}
	out := chunk.NewColumn(types.Floats, 4, 4)
	state.FinalizeInto(out)
	if got := out.GetValue(0).Float32(); got != 1.5 {
		t.Errorf("avg = %f, want 1.5", got)
	}
}

func TestCountStateColumnUpdate(t *testing.T) {
	state, _ := NewAggState(expr.AggrCount, types.Ints)
	state.UpdateColumn(intColumn(1, 2, 3))
	state.UpdateValue(types.NewInt(9))
	out := chunk.NewColumn(types.Ints, 4, 4)
	state.FinalizeInto(out)
	if got := out.GetValue(0).Int32(); got != 4 {
		t.Errorf("count = %d, want 4", got)
	}
}
