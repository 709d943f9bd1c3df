package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/matteoser/PiemonteDB/pkg/rc"
)

// StringDescSize is the width of a texts descriptor inside a column run.
const StringDescSize = 16

// Value is a tagged scalar. Numeric variants are carried inline; chars and
// texts carry their bytes in str.
type Value struct {
	typ    AttrType
	length int
	num    int64
	str    []byte
}

// Constructors.

func NewUndefined() Value { return Value{typ: Undefined} }

func NewBool(b bool) Value {
	v := Value{typ: Booleans, length: 1}
	if b {
		v.num = 1
	}
	return v
}

func NewInt(i int32) Value { return Value{typ: Ints, length: 4, num: int64(i)} }

func NewBigInt(i int64) Value { return Value{typ: BigInts, length: 8, num: i} }

func NewFloat(f float32) Value {
	return Value{typ: Floats, length: 4, num: int64(math.Float32bits(f))}
}

// NewDate wraps an already-encoded YYYY*10000+MM*100+DD value.
func NewDate(encoded int32) Value { return Value{typ: Dates, length: 4, num: int64(encoded)} }

func NewChars(s string) Value {
	return Value{typ: Chars, length: len(s), str: []byte(s)}
}

func NewText(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{typ: Texts, length: len(b), str: cp}
}

// Accessors.

func (v Value) AttrType() AttrType { return v.typ }
func (v Value) Length() int        { return v.length }

func (v Value) Bool() bool { return v.num != 0 }

func (v Value) Int32() int32 {
	switch v.typ {
	case Floats:
		return int32(math.Float32frombits(uint32(v.num)))
	default:
		return int32(v.num)
	}
}

func (v Value) Int64() int64 {
	switch v.typ {
	case Floats:
		return int64(math.Float32frombits(uint32(v.num)))
	default:
		return v.num
	}
}

func (v Value) Float32() float32 {
	switch v.typ {
	case Floats:
		return math.Float32frombits(uint32(v.num))
	case Chars, Texts:
		f, _ := strconv.ParseFloat(strings.TrimSpace(string(v.str)), 32)
		return float32(f)
	default:
		return float32(v.num)
	}
}

func (v Value) Bytes() []byte { return v.str }

// Compare implements a total order within one type and numeric widening
// between numeric types. Non-comparable pairs order by type tag so sorts stay
// deterministic.
func (v Value) Compare(other Value) int {
	if v.typ == other.typ {
		switch v.typ {
		case Booleans, Ints, BigInts, Dates:
			return compareInt64(v.num, other.num)
		case Floats:
			return compareFloat(v.Float32(), other.Float32())
		case Chars, Texts:
			return strings.Compare(string(v.str), string(other.str))
		default:
			return 0
		}
	}
	if v.typ.numeric() && other.typ.numeric() {
		return compareFloat(v.Float32(), other.Float32())
	}
	return compareInt64(int64(v.typ), int64(other.typ))
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat(a, b float32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CastCost returns the implicit-promotion cost from type from to type to, or a
// negative value when the cast is impossible. Lower is cheaper; zero means
// free.
func CastCost(from, to AttrType) int {
	if from == to {
		return 0
	}
	switch from {
	case Ints:
		switch to {
		case BigInts:
			return 1
		case Floats:
			return 2
		}
	case BigInts:
		if to == Floats {
			return 1
		}
	case Chars:
		switch to {
		case Texts:
			return 1
		case Dates:
			return 10
		}
	case Texts:
		switch to {
		case Dates:
			// Kept free even though the parse can fail; the failure surfaces
			// as INVALID_ARGUMENT from CastTo.
			return 0
		case Chars:
			return 50
		}
	case Dates:
		if to == Chars {
			return 0
		}
	}
	return -1
}

// CastTo converts v to the target type.
func (v Value) CastTo(target AttrType) (Value, error) {
	if v.typ == target {
		return v, nil
	}
	switch v.typ {
	case Ints:
		switch target {
		case BigInts:
			return NewBigInt(v.num), nil
		case Floats:
			return NewFloat(float32(v.num)), nil
		}
	case BigInts:
		if target == Floats {
			return NewFloat(float32(v.num)), nil
		}
	case Chars, Texts:
		switch target {
		case Dates:
			encoded, err := ParseDate(string(v.str))
			if err != nil {
				return Value{}, err
			}
			return NewDate(encoded), nil
		case Chars:
			return NewChars(string(v.str)), nil
		case Texts:
			return NewText(v.str), nil
		}
	case Dates:
		if target == Chars {
			return NewChars(v.ToString()), nil
		}
	}
	return Value{}, rc.Errorf(rc.SchemaFieldTypeMismatch, "cannot cast %s to %s", v.typ, target)
}

// Arithmetic. Mixed numeric operands widen to the wider type.

func arithType(a, b AttrType) AttrType {
	if a == Floats || b == Floats {
		return Floats
	}
	if a == BigInts || b == BigInts {
		return BigInts
	}
	return Ints
}

func (v Value) Add(other Value) (Value, error) { return v.arith(other, '+') }
func (v Value) Sub(other Value) (Value, error) { return v.arith(other, '-') }
func (v Value) Mul(other Value) (Value, error) { return v.arith(other, '*') }

func (v Value) Neg() (Value, error) {
	switch v.typ {
	case Ints:
		return NewInt(-v.Int32()), nil
	case BigInts:
		return NewBigInt(-v.num), nil
	case Floats:
		return NewFloat(-v.Float32()), nil
	}
	return Value{}, rc.Errorf(rc.InvalidArgument, "cannot negate %s", v.typ)
}

func (v Value) arith(other Value, op byte) (Value, error) {
	if !v.typ.numeric() || !other.typ.numeric() {
		return Value{}, rc.Errorf(rc.InvalidArgument, "arithmetic on %s and %s", v.typ, other.typ)
	}
	switch arithType(v.typ, other.typ) {
	case Floats:
		a, b := v.Float32(), other.Float32()
		switch op {
		case '+':
			return NewFloat(a + b), nil
		case '-':
			return NewFloat(a - b), nil
		default:
			return NewFloat(a * b), nil
		}
	case BigInts:
		a, b := v.Int64(), other.Int64()
		switch op {
		case '+':
			return NewBigInt(a + b), nil
		case '-':
			return NewBigInt(a - b), nil
		default:
			return NewBigInt(a * b), nil
		}
	default:
		a, b := v.Int32(), other.Int32()
		switch op {
		case '+':
			return NewInt(a + b), nil
		case '-':
			return NewInt(a - b), nil
		default:
			return NewInt(a * b), nil
		}
	}
}

// ParseValue parses s into a value of the given type. Whitespace handling is
// the caller's concern; chars fields keep their bytes verbatim.
func ParseValue(typ AttrType, s string) (Value, error) {
	switch typ {
	case Booleans:
		switch strings.ToLower(s) {
		case "true", "1":
			return NewBool(true), nil
		case "false", "0":
			return NewBool(false), nil
		}
		return Value{}, rc.Errorf(rc.SchemaFieldTypeMismatch, "invalid boolean %q", s)
	case Ints:
		i, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Value{}, rc.Errorf(rc.SchemaFieldTypeMismatch, "invalid int %q", s)
		}
		return NewInt(int32(i)), nil
	case BigInts:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, rc.Errorf(rc.SchemaFieldTypeMismatch, "invalid bigint %q", s)
		}
		return NewBigInt(i), nil
	case Floats:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Value{}, rc.Errorf(rc.SchemaFieldTypeMismatch, "invalid float %q", s)
		}
		return NewFloat(float32(f)), nil
	case Dates:
		encoded, err := ParseDate(s)
		if err != nil {
			return Value{}, err
		}
		return NewDate(encoded), nil
	case Chars:
		return NewChars(s), nil
	case Texts:
		return NewText([]byte(s)), nil
	}
	return Value{}, rc.Errorf(rc.Unimplemented, "cannot parse %s", typ)
}

// ToString renders the value the way the text protocol prints it.
func (v Value) ToString() string {
	switch v.typ {
	case Undefined:
		return "null"
	case Booleans:
		if v.num != 0 {
			return "true"
		}
		return "false"
	case Ints, BigInts:
		return strconv.FormatInt(v.num, 10)
	case Floats:
		return formatFloat(v.Float32())
	case Dates:
		return FormatDate(int32(v.num))
	case Chars, Texts:
		return string(v.str)
	}
	return ""
}

// formatFloat trims trailing zeros the way the wire protocol expects.
func formatFloat(f float32) string {
	s := strconv.FormatFloat(float64(f), 'f', -1, 32)
	return s
}

// ParseDate parses "YYYY-MM-DD" into the encoded integer form.
func ParseDate(s string) (int32, error) {
	var year, month, day int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d-%d-%d", &year, &month, &day); err != nil {
		return 0, rc.Errorf(rc.InvalidArgument, "invalid date %q", s)
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, rc.Errorf(rc.InvalidArgument, "invalid date %q", s)
	}
	return int32(year*10000 + month*100 + day), nil
}

// FormatDate renders an encoded date back to "YYYY-MM-DD".
func FormatDate(encoded int32) string {
	year := encoded / 10000
	month := (encoded / 100) % 100
	day := encoded % 100
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}
