package chunk

import (
	"testing"

	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

func TestColumnCompress(t *testing.T) {
	col := NewColumn(types.Ints, 4, 8)
	for _, v := range []int32{10, 20, 30, 40, 50} {
		if err := col.AppendValue(types.NewInt(v)); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}
	col.Compress([]uint8{1, 0, 1, 0, 1})

	if col.Count() != 3 {
		t.Fatalf("Expected count 3, got %d", col.Count())
	}
	want := []int32{10, 30, 50}
	for i, w := range want {
		if got := col.GetValue(i).Int32(); got != w {
			t.Errorf("row %d: got %d, want %d", i, got, w)
		}
	}
}

func TestColumnCompressPreservesOrder(t *testing.T) {
	col := NewColumn(types.Ints, 4, 16)
	sel := make([]uint8, 10)
	for i := int32(0); i < 10; i++ {
		col.AppendValue(types.NewInt(i * 11))
		sel[i] = uint8(i % 2)
	}
	col.Compress(sel)
	if col.Count() != 5 {
		t.Fatalf("Expected count 5, got %d", col.Count())
	}
	prev := int32(-1)
	for i := 0; i < col.Count(); i++ {
		v := col.GetValue(i).Int32()
		if v <= prev {
			t.Errorf("order not preserved: %d after %d", v, prev)
		}
		prev = v
	}
}

func TestColumnAppendOverCapacity(t *testing.T) {
	col := NewColumn(types.Ints, 4, 2)
	col.AppendValue(types.NewInt(1))
	col.AppendValue(types.NewInt(2))
	err := col.AppendValue(types.NewInt(3))
	if !rc.Is(err, rc.RecordNoMem) {
		t.Errorf("Expected RECORD_NOMEM, got %v", err)
	}
}

func TestColumnReference(t *testing.T) {
	owner := NewColumn(types.Ints, 4, 4)
	owner.AppendValue(types.NewInt(7))
	view := &Column{}
	view.Reference(owner)

	if view.Mode() != ModeReferenced {
		t.Fatalf("Expected referenced mode")
	}
	if view.GetValue(0).Int32() != 7 {
		t.Errorf("referenced read mismatch")
	}
	if err := view.AppendValue(types.NewInt(8)); err == nil {
		t.Error("Expected error appending to referenced column")
	}
	view.Reset()
	if view.Mode() != ModeOwned || view.Count() != 0 {
		t.Errorf("reset should detach the reference")
	}
	if owner.Count() != 1 {
		t.Errorf("detach must not touch the owner")
	}
}

func TestColumnCharsPadding(t *testing.T) {
	col := NewColumn(types.Chars, 4, 4)
	col.AppendValue(types.NewChars("ab"))
	col.AppendValue(types.NewChars("wxyz"))
	if got := col.GetValue(0).ToString(); got != "ab" {
		t.Errorf("Expected ab, got %q", got)
	}
	if got := col.GetValue(1).ToString(); got != "wxyz" {
		t.Errorf("Expected wxyz, got %q", got)
	}
}

func TestStringDescriptor(t *testing.T) {
	short := MakeInlineString([]byte("hi"))
	if !short.IsInline() || string(short.Inline()) != "hi" {
		t.Errorf("inline descriptor broken")
	}

	var arena StringArena
	long := arena.Add([]byte("a long string payload"))
	if long.IsInline() {
		t.Fatal("21-byte payload must not inline")
	}
	if string(long.Prefix()) != "a lo" {
		t.Errorf("prefix mismatch: %q", long.Prefix())
	}
	if got := string(arena.Bytes(long)); got != "a long string payload" {
		t.Errorf("arena resolve mismatch: %q", got)
	}

	var buf [StringDescSize]byte
	long.Encode(buf[:])
	decoded := DecodeStringT(buf[:])
	if decoded.Size() != long.Size() || decoded.Offset() != long.Offset() {
		t.Errorf("descriptor encode/decode mismatch")
	}
}

func TestTextsColumn(t *testing.T) {
	col := NewColumn(types.Texts, 0, 4)
	if col.AttrLen() != StringDescSize {
		t.Fatalf("texts width = %d, want %d", col.AttrLen(), StringDescSize)
	}
	col.AppendValue(types.NewText([]byte("short")))
	col.AppendValue(types.NewText([]byte("definitely longer than twelve bytes")))

	if got := col.GetValue(0).ToString(); got != "short" {
		t.Errorf("Expected short, got %q", got)
	}
	if got := col.GetValue(1).ToString(); got != "definitely longer than twelve bytes" {
		t.Errorf("long text mismatch: %q", got)
	}
}

func TestChunkInvariants(t *testing.T) {
	ck := NewChunk()
	left := NewColumn(types.Ints, 4, 8)
	right := NewColumn(types.Chars, 4, 8)
	for i := int32(0); i < 3; i++ {
		left.AppendValue(types.NewInt(i))
		right.AppendValue(types.NewChars("x"))
	}
	ck.AddColumn(left, 0)
	ck.AddColumn(right, 1)

	if ck.Rows() != 3 {
		t.Fatalf("Expected 3 rows, got %d", ck.Rows())
	}
	for i := 0; i < ck.ColumnNum(); i++ {
		if ck.Column(i).Count() != 3 {
			t.Errorf("column %d count %d, want 3", i, ck.Column(i).Count())
		}
	}
	if ck.Capacity() != 8 {
		t.Errorf("Expected capacity 8, got %d", ck.Capacity())
	}

	alias := NewChunk()
	if err := alias.Reference(ck); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if alias.Rows() != 3 || alias.GetValue(0, 2).Int32() != 2 {
		t.Errorf("alias read mismatch")
	}
	alias.Reset()
	if ck.Rows() != 3 {
		t.Errorf("alias reset must not truncate the source")
	}
}

func TestInt32sView(t *testing.T) {
	col := NewColumn(types.Ints, 4, 8)
	for _, v := range []int32{5, -6, 7} {
		col.AppendValue(types.NewInt(v))
	}
	view := col.Int32s()
	if len(view) != 3 || view[0] != 5 || view[1] != -6 || view[2] != 7 {
		t.Errorf("typed view mismatch: %v", view)
	}
}
