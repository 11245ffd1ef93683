// Package visit tracks which (map, x, y) cells an agent has stood on.
package visit

import (
	"fmt"
	"math/bits"
)

// Cells is the size of the packed coordinate space.
const Cells = 1 << 24

// Words is the length of a bitmap in 64-bit words.
const Words = Cells / 64

// Pack folds a coordinate into a 24-bit index: map in the high byte, y in the
// low byte.
func Pack(mapID, x, y uint8) uint32 {
	return uint32(mapID)<<16 | uint32(x)<<8 | uint32(y)
}

// Bitmap holds one bit per cell. Indices at or beyond Cells are ignored.
type Bitmap struct {
	w []uint64
}

func NewBitmap() *Bitmap { return &Bitmap{w: make([]uint64, Words)} }

func (b *Bitmap) Has(i uint32) bool {
	if b == nil || i >= Cells {
		return false
	}
	return b.w[i>>6]&(1<<(i&63)) != 0
}

func (b *Bitmap) Set(i uint32) {
	if b == nil || i >= Cells {
		return
	}
	b.w[i>>6] |= 1 << (i & 63)
}

func (b *Bitmap) Clear() {
	if b == nil {
		return
	}
	clear(b.w)
}

// Fill marks every cell.
func (b *Bitmap) Fill() {
	if b == nil {
		return
	}
	for i := range b.w {
		b.w[i] = ^uint64(0)
	}
}

func (b *Bitmap) CopyFrom(o *Bitmap) {
	if b == nil || o == nil {
		return
	}
	copy(b.w, o.w)
}

// Count returns the number of marked cells.
func (b *Bitmap) Count() int {
	if b == nil {
		return 0
	}
	n := 0
	for _, w := range b.w {
		n += bits.OnesCount64(w)
	}
	return n
}

// Words exposes the backing words for serialization. Callers must not retain
// the slice across mutations.
func (b *Bitmap) Words() []uint64 {
	if b == nil {
		return nil
	}
	return b.w
}

// SetWords replaces the contents with a serialized copy.
func (b *Bitmap) SetWords(w []uint64) error {
	if b == nil {
		return fmt.Errorf("nil bitmap")
	}
	if len(w) != Words {
		return fmt.Errorf("bitmap has %d words want %d", len(w), Words)
	}
	copy(b.w, w)
	return nil
}
