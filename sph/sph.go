// Package sph builds the shader program header that precedes the machine
// code of every graphics stage.
//
// The header is 20 little-endian words. Word 0 identifies the header type
// and shader type and carries code properties; words 1 to 4 size the local
// memory pools and output limits. The remaining words are attribute maps:
// one bit per component for vertex, tessellation and geometry stages, and a
// two-bit interpolation code per component for pixel shaders.
package sph

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/uam/codegen"
	"github.com/gogpu/uam/ir"
)

const (
	// Words is the number of words in a header.
	Words = 20

	// Size is the header size in bytes.
	Size = 4 * Words
)

// Header types.
const (
	TypeVTG = 1
	TypePS  = 2
)

const (
	version     = 3
	sassVersion = 1

	vtgStoreReq = 0xff000
	psDefault5  = 0x80000000

	maxGeometryVertices = 1024
	maxInvocations      = 32
)

// Word 0 property bits.
const (
	bitMRTEnable   = 1 << 14
	bitKillsPixels = 1 << 15
	bitGlobalStore = 1 << 16
	bitLoadStore   = 1 << 26
	bitFP64        = 1 << 27
)

// Word 19 pixel output bits.
const (
	bitOmapSampleMask = 1 << 0
	bitOmapDepth      = 1 << 1
)

// ErrUnmapped is returned for a binding whose semantic has no hardware
// attribute.
var ErrUnmapped = errors.New("sph: semantic has no attribute address")

// Header is a shader program header.
type Header [Words]uint32

// Type returns the header type, TypeVTG or TypePS.
func (h *Header) Type() uint32 { return h[0] & 0x1F }

// Version returns the header version.
func (h *Header) Version() uint32 { return h[0] >> 5 & 0x1F }

// ShaderType returns the hardware shader type: 1 vertex, 2 tessellation
// control, 3 tessellation evaluation, 4 geometry, 5 pixel.
func (h *Header) ShaderType() uint32 { return h[0] >> 10 & 0xF }

// KillsPixels reports whether the pixel shader may discard.
func (h *Header) KillsPixels() bool { return h[0]&bitKillsPixels != 0 }

// IsZero reports whether every word is zero, as for compute programs.
func (h *Header) IsZero() bool { return *h == Header{} }

// Bytes returns the little-endian encoding of h.
func (h *Header) Bytes() []byte {
	out := make([]byte, Size)
	h.Put(out)
	return out
}

// Put encodes h into b, which must hold at least Size bytes.
func (h *Header) Put(b []byte) {
	for i, w := range h {
		binary.LittleEndian.PutUint32(b[4*i:], w)
	}
}

// Decode reads a header from the first Size bytes of b.
func Decode(b []byte) (Header, error) {
	var h Header
	if len(b) < Size {
		return h, fmt.Errorf("sph: need %d bytes, have %d", Size, len(b))
	}
	for i := range h {
		h[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return h, nil
}

func shaderType(s ir.Stage) uint32 {
	switch s {
	case ir.StageVertex:
		return 1
	case ir.StageTessControl:
		return 2
	case ir.StageTessEvaluation:
		return 3
	case ir.StageGeometry:
		return 4
	case ir.StageFragment:
		return 5
	}
	return 0
}

// Build returns the header for a program with register assignment m and
// generated code a. Compute programs have no header; Build returns the zero
// header for them.
func Build(info *ir.ProgramInfo, m *ir.IOMap, a *codegen.Artifact) (Header, error) {
	var h Header
	if m.Stage == ir.StageCompute {
		return h, nil
	}

	hdrType := uint32(TypeVTG)
	if m.Stage == ir.StageFragment {
		hdrType = TypePS
	}
	h[0] = hdrType | version<<5 | shaderType(m.Stage)<<10 | sassVersion<<17
	if a.Flags&codegen.FlagGlobalStore != 0 {
		h[0] |= bitGlobalStore
	}
	if a.Flags&codegen.FlagLoadStore != 0 {
		h[0] |= bitLoadStore
	}
	if a.Flags&codegen.FlagFP64 != 0 {
		h[0] |= bitFP64
	}
	h[1] = a.LocalPosMemSize & 0xFFFFFF
	h[2] = a.LocalNegMemSize & 0xFFFFFF
	h[3] = a.CRSSize & 0xFFFFFF

	var err error
	if m.Stage == ir.StageFragment {
		err = h.buildPixel(info, m, a)
	} else {
		err = h.buildVTG(m)
	}
	if err != nil {
		return Header{}, err
	}
	return h, nil
}

func (h *Header) buildVTG(m *ir.IOMap) error {
	h[4] = vtgStoreReq

	for _, in := range m.Inputs {
		if in.Synthetic {
			continue
		}
		var attr Attribute
		if m.Stage == ir.StageVertex {
			attr = vertexInput(in.Index)
		} else {
			var ok bool
			if attr, ok = AttributeOf(in.Semantic, in.SemanticIndex); !ok {
				return fmt.Errorf("%w: input %s", ErrUnmapped, in)
			}
		}
		if !h.setBits(5, 13, attr) {
			return fmt.Errorf("%w: input %s at %#x is outside the input map", ErrUnmapped, in, attr.Addr)
		}
	}

	for _, out := range m.Outputs {
		// The edge flag is routed by the runtime and has no map entry.
		if out.Synthetic || out.Semantic == ir.SemanticEdgeFlag {
			continue
		}
		attr, ok := AttributeOf(out.Semantic, out.SemanticIndex)
		if !ok {
			return fmt.Errorf("%w: output %s", ErrUnmapped, out)
		}
		if !h.setBits(13, Words, attr) {
			return fmt.Errorf("%w: output %s at %#x is outside the output map", ErrUnmapped, out, attr.Addr)
		}
	}

	switch p := &m.Props; m.Stage {
	case ir.StageGeometry:
		h[2] |= min(max(p.Invocations, 1), maxInvocations) << 24
		h[3] |= outputTopology(p.OutputPrimitive) << 24
		h[4] = min(max(p.MaxOutputVertices, 1), maxGeometryVertices)
	case ir.StageTessControl:
		h[2] |= (p.OutputVertices & 0xFF) << 24
	}
	return nil
}

// setBits sets one bit per component of attr in the map starting at word
// first. It reports false when a component falls outside words [first, end).
func (h *Header) setBits(first, end int, attr Attribute) bool {
	for c := 0; c < attr.Components; c++ {
		a := attr.Addr/4 + uint32(c)
		w := first + int(a/32)
		if w >= end {
			return false
		}
		h[w] |= 1 << (a % 32)
	}
	return true
}

func outputTopology(p ir.Primitive) uint32 {
	switch p {
	case ir.PrimitivePoints:
		return 1
	case ir.PrimitiveLineStrip:
		return 6
	default:
		return 7
	}
}

func (h *Header) buildPixel(info *ir.ProgramInfo, m *ir.IOMap, a *codegen.Artifact) error {
	// Position w must be enabled or the hardware traps.
	h[5] = psDefault5

	if info.Fragment.UsesDiscard || a.Flags&codegen.FlagKillsPixels != 0 {
		h[0] |= bitKillsPixels
	}
	if m.Props.Color0WritesAllCbufs {
		h[0] |= bitMRTEnable
	}

	for _, in := range m.Inputs {
		attr, ok := AttributeOf(in.Semantic, in.SemanticIndex)
		if !ok {
			return fmt.Errorf("%w: input %s", ErrUnmapped, in)
		}
		mode := interpMode(in.Interp)
		first := attr.Addr / 4
		for c := uint32(0); c < uint32(attr.Components); c++ {
			a := first + c
			switch {
			case first >= AddrPrimitiveID/4 && first <= 0x07C/4:
				h[5] |= 1 << (24 + a - AddrPrimitiveID/4)
			case first >= AddrClipDistance/4 && first <= 0x2FC/4:
				h[14] |= 1 << (a - AddrFrontColor/4) & 0x07FF0000
			case a < 0x040/4 || a > 0x380/4:
				// Face and other system values have no map entry.
			default:
				a *= 2
				if first >= AddrTexCoord/4 {
					a -= 32
				}
				h[4+a/32] |= mode << (a % 32)
			}
		}
	}

	for _, out := range m.Outputs {
		switch out.Semantic {
		case ir.SemanticColor:
			h[18] |= 0xF << (4 * out.SemanticIndex)
		case ir.SemanticSampleMask:
			h[19] |= bitOmapSampleMask
		case ir.SemanticPosition:
			h[19] |= bitOmapDepth
		}
	}
	return nil
}
