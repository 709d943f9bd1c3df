package types

// AttrType identifies the storage type of one attribute.
type AttrType uint8

const (
	Undefined AttrType = iota
	Booleans
	Ints
	BigInts
	Floats
	Dates
	Chars
	Texts
	Vectors
)

var attrTypeNames = map[AttrType]string{
	Undefined: "undefined",
	Booleans:  "booleans",
	Ints:      "ints",
	BigInts:   "bigints",
	Floats:    "floats",
	Dates:     "dates",
	Chars:     "chars",
	Texts:     "texts",
	Vectors:   "vectors",
}

func (t AttrType) String() string {
	if name, ok := attrTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseAttrType resolves a type name as it appears in schemas and configs.
func ParseAttrType(name string) (AttrType, bool) {
	for t, n := range attrTypeNames {
		if n == name {
			return t, true
		}
	}
	return Undefined, false
}

// FixedLen returns the on-page width of a fixed-width type, the descriptor
// width for texts, or 0 when the width is declared per field (chars).
func (t AttrType) FixedLen() int {
	switch t {
	case Booleans:
		return 1
	case Ints, Floats, Dates:
		return 4
	case BigInts:
		return 8
	case Texts:
		return StringDescSize
	default:
		return 0
	}
}

func (t AttrType) numeric() bool {
	return t == Ints || t == BigInts || t == Floats
}
