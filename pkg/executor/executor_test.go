package executor

import (
	"testing"

	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/expr"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// sliceSource feeds pre-built chunks to the operator under test.
type sliceSource struct {
	chunks []*chunk.Chunk
	pos    int
}

func (s *sliceSource) Open(ctx *Context) error {
	s.pos = 0
	return nil
}

func (s *sliceSource) Next(ck *chunk.Chunk) error {
	if s.pos >= len(s.chunks) {
		return rc.EOF()
	}
	err := ck.Reference(s.chunks[s.pos])
	s.pos++
	return err
}

func (s *sliceSource) Close() error { return nil }

func intColumn(values ...int32) *chunk.Column {
	col := chunk.NewColumn(types.Ints, 4, maxCap(len(values)))
	for _, v := range values {
		col.AppendValue(types.NewInt(v))
	}
	return col
}

func charColumn(width int, values ...string) *chunk.Column {
	col := chunk.NewColumn(types.Chars, width, maxCap(len(values)))
	for _, v := range values {
		col.AppendValue(types.NewChars(v))
	}
	return col
}

func drain(t *testing.T, op PhysicalOperator) []*chunk.Chunk {
	t.Helper()
	if err := op.Open(&Context{}); err != nil {
		t.Fatalf("open: %v", err)
	}
	var out []*chunk.Chunk
	for {
		ck := chunk.NewChunk()
		err := op.Next(ck)
		if rc.IsEOF(err) {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if ck.Rows() > 0 {
			copied := chunk.NewChunk()
			copied.Reference(ck)
			out = append(out, copied)
		}
	}
	if err := op.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return out
}

func flattenRows(chunks []*chunk.Chunk) [][]string {
	var rows [][]string
	for _, ck := range chunks {
		for r := 0; r < ck.Rows(); r++ {
			row := make([]string, ck.ColumnNum())
			for c := 0; c < ck.ColumnNum(); c++ {
				row[c] = ck.GetValue(c, r).ToString()
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func TestOrderByStabilityAndDesc(t *testing.T) {
	input := chunk.NewChunk()
	input.AddColumn(intColumn(2, 1, 2, 1), 0)
	input.AddColumn(charColumn(1, "x", "y", "w", "z"), 1)

	orderExprs := []expr.Expression{
		expr.NewFieldExpr("c0", 0, types.Ints, 4),
		expr.NewFieldExpr("c1", 1, types.Chars, 1),
	}
	op := NewOrderByVec(&sliceSource{chunks: []*chunk.Chunk{input}}, orderExprs, []bool{true, false})

	rows := flattenRows(drain(t, op))
	want := [][]string{{"1", "z"}, {"1", "y"}, {"2", "x"}, {"2", "w"}}
	if len(rows) != len(want) {
		t.Fatalf("rows = %d, want %d", len(rows), len(want))
	}
	for i := range want {
		if rows[i][0] != want[i][0] || rows[i][1] != want[i][1] {
			t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
}

func TestOrderByLimitTopK(t *testing.T) {
	input := chunk.NewChunk()
	input.AddColumn(intColumn(5, 3, 9, 1, 7, 2), 0)

	orderExprs := []expr.Expression{expr.NewFieldExpr("c0", 0, types.Ints, 4)}
	op := NewOrderByLimitVec(&sliceSource{chunks: []*chunk.Chunk{input}}, orderExprs, []bool{true}, 3)

	rows := flattenRows(drain(t, op))
	want := []string{"1", "2", "3"}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	for i, w := range want {
		if rows[i][0] != w {
			t.Errorf("row %d = %s, want %s", i, rows[i][0], w)
		}
	}
}

func TestLimitTruncatesLastChunk(t *testing.T) {
	first := chunk.NewChunk()
	first.AddColumn(intColumn(1, 2, 3), 0)
	second := chunk.NewChunk()
	second.AddColumn(intColumn(4, 5, 6), 0)

	op := NewLimitVec(&sliceSource{chunks: []*chunk.Chunk{first, second}}, 4)
	rows := flattenRows(drain(t, op))
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
	if rows[3][0] != "4" {
		t.Errorf("last row = %s, want 4", rows[3][0])
	}
}

func TestGroupByTopNByCount(t *testing.T) {
	input := chunk.NewChunk()
	input.AddColumn(charColumn(1, "a", "b", "a", "c", "a", "b"), 0)

	groupExprs := []expr.Expression{expr.NewFieldExpr("k", 0, types.Chars, 1)}
	countExpr := expr.NewAggregateExpr(expr.AggrCount, expr.NewValueExpr(types.NewInt(1)))
	op, err := NewGroupByTopNVec(&sliceSource{chunks: []*chunk.Chunk{input}},
		groupExprs, []*expr.AggregateExpr{countExpr}, 2)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	rows := flattenRows(drain(t, op))
	want := [][]string{{"a", "3"}, {"b", "2"}}
	if len(rows) != len(want) {
		t.Fatalf("rows = %d, want %d: %v", len(rows), len(want), rows)
	}
	for i := range want {
		if rows[i][0] != want[i][0] || rows[i][1] != want[i][1] {
			t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
}

func TestGroupByVecMultiAggregate(t *testing.T) {
	input := chunk.NewChunk()
	input.AddColumn(intColumn(1, 2, 1, 2, 3), 0)
	input.AddColumn(intColumn(10, 20, 30, 40, 50), 1)

	groupExprs := []expr.Expression{expr.NewFieldExpr("k", 0, types.Ints, 4)}
	sumExpr := expr.NewAggregateExpr(expr.AggrSum, expr.NewFieldExpr("v", 1, types.Ints, 4))
	avgExpr := expr.NewAggregateExpr(expr.AggrAvg, expr.NewFieldExpr("v", 1, types.Ints, 4))
	op := NewGroupByVec(&sliceSource{chunks: []*chunk.Chunk{input}},
		groupExprs, []*expr.AggregateExpr{sumExpr, avgExpr})

	rows := flattenRows(drain(t, op))
	sums := map[string]string{}
	avgs := map[string]string{}
	for _, row := range rows {
		sums[row[0]] = row[1]
		avgs[row[0]] = row[2]
	}
	if sums["1"] != "40" || sums["2"] != "60" || sums["3"] != "50" {
		t.Errorf("sums mismatch: %v", sums)
	}
	if avgs["1"] != "20" || avgs["3"] != "50" {
		t.Errorf("avgs mismatch: %v", avgs)
	}
}

func TestGroupByVecCharEncodePath(t *testing.T) {
	input := chunk.NewChunk()
	input.AddColumn(charColumn(2, "aa", "bb", "aa"), 0)
	input.AddColumn(intColumn(1, 2, 3), 1)

	groupExprs := []expr.Expression{expr.NewFieldExpr("k", 0, types.Chars, 2)}
	sumExpr := expr.NewAggregateExpr(expr.AggrSum, expr.NewFieldExpr("v", 1, types.Ints, 4))
	op := NewGroupByVec(&sliceSource{chunks: []*chunk.Chunk{input}},
		groupExprs, []*expr.AggregateExpr{sumExpr})
	if !op.needEncode {
		t.Fatal("short char key should take the encoded linear-probing path")
	}

	rows := flattenRows(drain(t, op))
	got := map[string]string{}
	for _, row := range rows {
		got[row[0]] = row[1]
	}
	if got["aa"] != "4" || got["bb"] != "2" {
		t.Errorf("encoded group-by mismatch: %v", got)
	}
}

func TestFilterVecCompress(t *testing.T) {
	input := chunk.NewChunk()
	input.AddColumn(intColumn(10, 20, 30, 40, 50), 0)

	predicate := expr.NewComparisonExpr(expr.OpGreater,
		expr.NewFieldExpr("c0", 0, types.Ints, 4),
		expr.NewValueExpr(types.NewInt(25)))
	op := NewFilterVec(&sliceSource{chunks: []*chunk.Chunk{input}}, []expr.Expression{predicate})

	rows := flattenRows(drain(t, op))
	want := []string{"30", "40", "50"}
	if len(rows) != len(want) {
		t.Fatalf("rows = %d, want %d", len(rows), len(want))
	}
	for i, w := range want {
		if rows[i][0] != w {
			t.Errorf("row %d = %s, want %s", i, rows[i][0], w)
		}
	}
}

func TestProjectVecArithmetic(t *testing.T) {
	input := chunk.NewChunk()
	input.AddColumn(intColumn(1, 2, 3), 0)

	double := expr.NewArithmeticExpr(expr.ArithMul,
		expr.NewFieldExpr("c0", 0, types.Ints, 4),
		expr.NewValueExpr(types.NewInt(2)))
	op := NewProjectVec(&sliceSource{chunks: []*chunk.Chunk{input}},
		[]expr.Expression{double}, []string{"doubled"})

	rows := flattenRows(drain(t, op))
	want := []string{"2", "4", "6"}
	for i, w := range want {
		if rows[i][0] != w {
			t.Errorf("row %d = %s, want %s", i, rows[i][0], w)
		}
	}
}
