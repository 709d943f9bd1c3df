package chunk

import "encoding/binary"

// StringDescSize is the width of one string descriptor inside a column run.
const StringDescSize = 16

// StringInlineSize is the largest payload stored directly in the descriptor.
const StringInlineSize = 12

// StringPrefixSize is the number of leading bytes kept beside the offset for
// non-inline strings.
const StringPrefixSize = 4

// StringT is a 16-byte string descriptor. Payloads up to 12 bytes live inline;
// longer payloads keep a 4-byte prefix plus a 64-bit offset. While a column is
// in memory the offset addresses the column's arena; once the descriptor is
// written to a page the offset addresses the lob file.
type StringT struct {
	size int32
	data [StringInlineSize]byte
}

// MakeInlineString builds an inline descriptor. len(b) must be <= 12.
func MakeInlineString(b []byte) StringT {
	var s StringT
	s.size = int32(len(b))
	copy(s.data[:], b)
	return s
}

// MakeOffsetString builds a non-inline descriptor for a payload stored at the
// given offset.
func MakeOffsetString(size int32, prefix []byte, offset uint64) StringT {
	var s StringT
	s.size = size
	copy(s.data[:StringPrefixSize], prefix)
	binary.LittleEndian.PutUint64(s.data[StringPrefixSize:], offset)
	return s
}

func (s StringT) Size() int32    { return s.size }
func (s StringT) IsInline() bool { return s.size <= StringInlineSize }

// Inline returns the inline payload. Only valid when IsInline.
func (s StringT) Inline() []byte { return s.data[:s.size] }

// Prefix returns the retained leading bytes of a non-inline string.
func (s StringT) Prefix() []byte { return s.data[:StringPrefixSize] }

// Offset returns the external offset of a non-inline string.
func (s StringT) Offset() uint64 {
	return binary.LittleEndian.Uint64(s.data[StringPrefixSize:])
}

// SetOffset rewrites the external offset, keeping size and prefix.
func (s *StringT) SetOffset(offset uint64) {
	binary.LittleEndian.PutUint64(s.data[StringPrefixSize:], offset)
}

// Encode writes the descriptor into dst, which must be 16 bytes.
func (s StringT) Encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[:4], uint32(s.size))
	copy(dst[4:StringDescSize], s.data[:])
}

// DecodeStringT reads a descriptor from src, which must be 16 bytes.
func DecodeStringT(src []byte) StringT {
	var s StringT
	s.size = int32(binary.LittleEndian.Uint32(src[:4]))
	copy(s.data[:], src[4:StringDescSize])
	return s
}

// StringArena is an append-only byte store backing the non-inline strings of
// one column.
type StringArena struct {
	buf []byte
}

// Add copies b into the arena and returns its descriptor. Short payloads are
// inlined and never touch the arena.
func (a *StringArena) Add(b []byte) StringT {
	if len(b) <= StringInlineSize {
		return MakeInlineString(b)
	}
	offset := uint64(len(a.buf))
	a.buf = append(a.buf, b...)
	return MakeOffsetString(int32(len(b)), b[:StringPrefixSize], offset)
}

// Alloc reserves size bytes for a non-inline string and returns the arena
// offset together with the writable window, used when materializing lob bytes
// into a chunk. The caller builds the descriptor once the window is filled.
// size must exceed StringInlineSize; page descriptors for shorter payloads are
// always inline.
func (a *StringArena) Alloc(size int32) (uint64, []byte) {
	offset := uint64(len(a.buf))
	a.buf = append(a.buf, make([]byte, size)...)
	return offset, a.buf[offset : offset+uint64(size)]
}

// Bytes resolves a descriptor against this arena.
func (a *StringArena) Bytes(s StringT) []byte {
	if s.IsInline() {
		return s.Inline()
	}
	offset := s.Offset()
	return a.buf[offset : offset+uint64(s.size)]
}

// Reset drops all stored bytes.
func (a *StringArena) Reset() { a.buf = a.buf[:0] }

// Len returns the number of stored bytes.
func (a *StringArena) Len() int { return len(a.buf) }
