package pax

// Bitmap is a view over packed slot-occupancy bits, LSB first within each
// byte. It does not own the backing bytes; page handlers point it at the
// bitmap region of a latched frame.
type Bitmap struct {
	bits []byte
	size int
}

// BitmapBytes returns the number of bytes needed to track size slots.
func BitmapBytes(size int) int { return (size + 7) / 8 }

// NewBitmap wraps bits as a bitmap over size slots.
func NewBitmap(bits []byte, size int) Bitmap { return Bitmap{bits: bits, size: size} }

// Get reports whether the bit at index is set.
func (b Bitmap) Get(index int) bool {
	return b.bits[index/8]&(1<<(index%8)) != 0
}

// Set sets the bit at index.
func (b Bitmap) Set(index int) {
	b.bits[index/8] |= 1 << (index % 8)
}

// Clear clears the bit at index.
func (b Bitmap) Clear(index int) {
	b.bits[index/8] &^= 1 << (index % 8)
}

// SetFirst sets the first n bits.
func (b Bitmap) SetFirst(n int) {
	full := n / 8
	for i := 0; i < full; i++ {
		b.bits[i] = 0xFF
	}
	for i := full * 8; i < n; i++ {
		b.Set(i)
	}
}

// ClearAll clears every tracked bit.
func (b Bitmap) ClearAll() {
	for i := 0; i < BitmapBytes(b.size); i++ {
		b.bits[i] = 0
	}
}

// NextUnset returns the index of the first clear bit at or after start, or -1.
func (b Bitmap) NextUnset(start int) int {
	startInByte := start % 8
	for iter, end := start/8, BitmapBytes(b.size); iter < end; iter++ {
		byteVal := b.bits[iter]
		if byteVal != 0xFF {
			for i := startInByte; i < 8; i++ {
				if byteVal&(1<<i) == 0 {
					idx := iter*8 + i
					if idx >= b.size {
						return -1
					}
					return idx
				}
			}
		}
		startInByte = 0
	}
	return -1
}

// NextSet returns the index of the first set bit at or after start, or -1.
func (b Bitmap) NextSet(start int) int {
	startInByte := start % 8
	for iter, end := start/8, BitmapBytes(b.size); iter < end; iter++ {
		byteVal := b.bits[iter]
		if byteVal != 0 {
			for i := startInByte; i < 8; i++ {
				if byteVal&(1<<i) != 0 {
					idx := iter*8 + i
					if idx >= b.size {
						return -1
					}
					return idx
				}
			}
		}
		startInByte = 0
	}
	return -1
}

// Count returns the number of set bits among the tracked slots.
func (b Bitmap) Count() int {
	n := 0
	for i := 0; i < b.size; i++ {
		if b.Get(i) {
			n++
		}
	}
	return n
}
