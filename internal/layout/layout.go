// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package layout holds the fixed-offset field tables shared by the container
// encoders and decoders.
package layout

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// SectionAlign is the alignment of every section that follows the code in a
// container.
const SectionAlign = 0x100

// AlignUp rounds v up to the next multiple of a. a must be a power of two.
func AlignUp[T constraints.Unsigned](v, a T) T {
	return (v + a - 1) &^ (a - 1)
}

// Fits32 reports whether v can be stored in a 32-bit size field.
func Fits32(v uint64) bool {
	return v <= math.MaxUint32
}

// Field is a named byte range of a container.
type Field struct {
	Name   string
	Offset int
	Size   int
}

// End returns the offset one past the last byte of the field.
func (f Field) End() int { return f.Offset + f.Size }

// Layout describes a fixed-size structure. Bytes not covered by a field are
// reserved and always zero.
type Layout struct {
	Name   string
	Size   int
	Fields []Field
}

// Field returns the field with the given name. It panics on unknown names:
// the tables are static.
func (l *Layout) Field(name string) Field {
	for _, f := range l.Fields {
		if f.Name == name {
			return f
		}
	}
	panic(fmt.Sprintf("layout %s: unknown field %q", l.Name, name))
}

// Covered reports whether offset off belongs to a named field.
func (l *Layout) Covered(off int) bool {
	for _, f := range l.Fields {
		if off >= f.Offset && off < f.End() {
			return true
		}
	}
	return false
}

// CheckReserved returns the offset of the first non-zero reserved byte in
// buf, or -1 when every reserved byte is zero.
func (l *Layout) CheckReserved(buf []byte) int {
	for off := 0; off < l.Size && off < len(buf); off++ {
		if buf[off] != 0 && !l.Covered(off) {
			return off
		}
	}
	return -1
}

// Writer stores fields of a layout into a zeroed buffer.
type Writer struct {
	l   *Layout
	buf []byte
}

// NewWriter returns a writer over buf. buf must be at least l.Size long and
// zero-filled.
func NewWriter(l *Layout, buf []byte) *Writer {
	return &Writer{l: l, buf: buf[:l.Size]}
}

// U32 stores a 32-bit little-endian field.
func (w *Writer) U32(name string, v uint32) {
	f := w.l.Field(name)
	binary.LittleEndian.PutUint32(w.buf[f.Offset:f.End()], v)
}

// U32s stores consecutive 32-bit values into an array field.
func (w *Writer) U32s(name string, vs []uint32) {
	f := w.l.Field(name)
	for i, v := range vs {
		off := f.Offset + 4*i
		binary.LittleEndian.PutUint32(w.buf[off:off+4], v)
	}
}

// U8 stores a byte field.
func (w *Writer) U8(name string, v uint8) {
	w.buf[w.l.Field(name).Offset] = v
}

// Bool stores a byte field holding 0 or 1.
func (w *Writer) Bool(name string, v bool) {
	if v {
		w.U8(name, 1)
	}
}

// Reader loads fields of a layout from a buffer.
type Reader struct {
	l   *Layout
	buf []byte
}

// NewReader returns a reader over buf. buf must be at least l.Size long.
func NewReader(l *Layout, buf []byte) *Reader {
	return &Reader{l: l, buf: buf}
}

// U32 loads a 32-bit little-endian field.
func (r *Reader) U32(name string) uint32 {
	f := r.l.Field(name)
	return binary.LittleEndian.Uint32(r.buf[f.Offset:f.End()])
}

// U32s loads an array field of 32-bit values.
func (r *Reader) U32s(name string) []uint32 {
	f := r.l.Field(name)
	out := make([]uint32, f.Size/4)
	for i := range out {
		off := f.Offset + 4*i
		out[i] = binary.LittleEndian.Uint32(r.buf[off : off+4])
	}
	return out
}

// U8 loads a byte field.
func (r *Reader) U8(name string) uint8 {
	return r.buf[r.l.Field(name).Offset]
}

// Bool loads a byte field as a flag.
func (r *Reader) Bool(name string) bool {
	return r.U8(name) != 0
}
