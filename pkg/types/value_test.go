package types

import "testing"

func TestDateParseFormatRoundTrip(t *testing.T) {
	encoded, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if encoded != 20240229 {
		t.Errorf("Expected 20240229, got %d", encoded)
	}
	if got := FormatDate(encoded); got != "2024-02-29" {
		t.Errorf("Expected 2024-02-29, got %s", got)
	}
}

func TestDateParseInvalid(t *testing.T) {
	for _, s := range []string{"not-a-date", "2024-13-01", "2024-01-40", ""} {
		if _, err := ParseDate(s); err == nil {
			t.Errorf("Expected error for %q", s)
		}
	}
}

func TestValueCompareSameType(t *testing.T) {
	cases := []struct {
		a, b Value
		want int
	}{
		{NewInt(1), NewInt(2), -1},
		{NewInt(2), NewInt(2), 0},
		{NewInt(3), NewInt(2), 1},
		{NewBigInt(1 << 40), NewBigInt(1), 1},
		{NewChars("abc"), NewChars("abd"), -1},
		{NewDate(20240101), NewDate(20231231), 1},
		{NewFloat(1.5), NewFloat(2.5), -1},
	}
	for i, c := range cases {
		if got := c.a.Compare(c.b); got != c.want {
			t.Errorf("case %d: Compare = %d, want %d", i, got, c.want)
		}
	}
}

func TestValueCompareNumericWidening(t *testing.T) {
	if got := NewInt(3).Compare(NewFloat(2.5)); got != 1 {
		t.Errorf("int vs float compare = %d, want 1", got)
	}
	if got := NewBigInt(2).Compare(NewInt(2)); got != 0 {
		t.Errorf("bigint vs int compare = %d, want 0", got)
	}
}

func TestCastTextToDate(t *testing.T) {
	v, err := NewText([]byte("2023-07-01")).CastTo(Dates)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if v.Int32() != 20230701 {
		t.Errorf("Expected 20230701, got %d", v.Int32())
	}

	if _, err := NewText([]byte("hello")).CastTo(Dates); err == nil {
		t.Fatal("Expected error casting invalid date text")
	}
	if CastCost(Texts, Dates) != 0 {
		t.Errorf("text to date cast cost should stay 0")
	}
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue(Ints, "42")
	if err != nil || v.Int32() != 42 {
		t.Fatalf("ParseValue ints: %v %v", v, err)
	}
	v, err = ParseValue(BigInts, "9999999999")
	if err != nil || v.Int64() != 9999999999 {
		t.Fatalf("ParseValue bigints: %v %v", v, err)
	}
	if _, err := ParseValue(Ints, "abc"); err == nil {
		t.Fatal("Expected error parsing non-numeric int")
	}
	v, err = ParseValue(Chars, "  padded ")
	if err != nil || v.ToString() != "  padded " {
		t.Fatalf("chars should keep bytes verbatim, got %q", v.ToString())
	}
}

func TestArithmeticWidening(t *testing.T) {
	sum, err := NewInt(3).Add(NewBigInt(4))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if sum.AttrType() != BigInts || sum.Int64() != 7 {
		t.Errorf("Expected bigint 7, got %s %d", sum.AttrType(), sum.Int64())
	}
	product, err := NewInt(3).Mul(NewFloat(0.5))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if product.AttrType() != Floats || product.Float32() != 1.5 {
		t.Errorf("Expected float 1.5, got %s %f", product.AttrType(), product.Float32())
	}
}

func TestValueToString(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{NewInt(-5), "-5"},
		{NewBool(true), "true"},
		{NewDate(20240229), "2024-02-29"},
		{NewChars("ciao"), "ciao"},
		{NewFloat(2.5), "2.5"},
	}
	for i, c := range cases {
		if got := c.v.ToString(); got != c.want {
			t.Errorf("case %d: ToString = %q, want %q", i, got, c.want)
		}
	}
}
