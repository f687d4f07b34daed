package ir

import "math/bits"

// SlotMask is a set of slots within one slot space. It records which
// variables a stage reads or writes.
type SlotMask uint64

// MaskOf returns a mask with the given slots set.
func MaskOf[T ~uint8](slots ...T) SlotMask {
	var m SlotMask
	for _, s := range slots {
		m |= 1 << s
	}
	return m
}

// Has reports whether slot i is set.
func (m SlotMask) Has(i uint8) bool {
	return i < 64 && m&(1<<i) != 0
}

// With returns m with slot i set.
func (m SlotMask) With(i uint8) SlotMask {
	return m | 1<<i
}

// Without returns m with slot i cleared.
func (m SlotMask) Without(i uint8) SlotMask {
	return m &^ (1 << i)
}

// Len returns the number of set slots.
func (m SlotMask) Len() int {
	return bits.OnesCount64(uint64(m))
}

// Slots returns the set slots in ascending order.
func (m SlotMask) Slots() []uint8 {
	out := make([]uint8, 0, m.Len())
	for v := uint64(m); v != 0; v &= v - 1 {
		out = append(out, uint8(bits.TrailingZeros64(v)))
	}
	return out
}
