package sph

import "github.com/gogpu/uam/ir"

// Hardware attribute addresses.
const (
	AddrTessOuter     = 0x000
	AddrTessInner     = 0x010
	AddrPrimitiveID   = 0x060
	AddrLayer         = 0x064
	AddrViewportIndex = 0x068
	AddrPointSize     = 0x06C
	AddrPosition      = 0x070
	AddrGeneric       = 0x080
	AddrClipVertex    = 0x270
	AddrFrontColor    = 0x280
	AddrBackColor     = 0x2A0
	AddrClipDistance  = 0x2C0
	AddrPointCoord    = 0x2E0
	AddrFog           = 0x2E8
	AddrTexCoord      = 0x300
	AddrViewportMask  = 0x3A0
	AddrFace          = 0x3FC
)

// Attribute is the hardware location of a semantic.
type Attribute struct {
	Addr       uint32
	Components int
}

// AttributeOf returns the hardware location of semantic sem with index idx.
func AttributeOf(sem ir.Semantic, idx uint32) (Attribute, bool) {
	switch sem {
	case ir.SemanticPosition:
		return Attribute{AddrPosition, 4}, idx == 0
	case ir.SemanticColor:
		return Attribute{AddrFrontColor + 16*idx, 4}, idx < 2
	case ir.SemanticBColor:
		return Attribute{AddrBackColor + 16*idx, 4}, idx < 2
	case ir.SemanticFog:
		return Attribute{AddrFog, 1}, idx == 0
	case ir.SemanticPSize:
		return Attribute{AddrPointSize, 1}, idx == 0
	case ir.SemanticGeneric:
		return Attribute{AddrGeneric + 16*idx, 4}, idx < 32
	case ir.SemanticTexCoord:
		return Attribute{AddrTexCoord + 16*idx, 4}, idx < 8
	case ir.SemanticPCoord:
		return Attribute{AddrPointCoord, 2}, idx == 0
	case ir.SemanticClipDist:
		return Attribute{AddrClipDistance + 16*idx, 4}, idx < 2
	case ir.SemanticClipVertex:
		return Attribute{AddrClipVertex, 4}, idx == 0
	case ir.SemanticPrimID:
		return Attribute{AddrPrimitiveID, 1}, idx == 0
	case ir.SemanticLayer:
		return Attribute{AddrLayer, 1}, idx == 0
	case ir.SemanticViewportIndex:
		return Attribute{AddrViewportIndex, 1}, idx == 0
	case ir.SemanticFace:
		return Attribute{AddrFace, 1}, idx == 0
	case ir.SemanticTessOuter:
		return Attribute{AddrTessOuter, 4}, idx == 0
	case ir.SemanticTessInner:
		return Attribute{AddrTessInner, 2}, idx == 0
	case ir.SemanticViewportMask:
		return Attribute{AddrViewportMask, 1}, idx == 0
	}
	return Attribute{}, false
}

// vertexInput returns the location of vertex input register index.
func vertexInput(index int) Attribute {
	return Attribute{AddrGeneric + 16*uint32(index), 4}
}

// interpMode is the two-bit pixel shader input map code.
func interpMode(i ir.Interpolation) uint32 {
	switch i {
	case ir.InterpConstant:
		return 1
	case ir.InterpLinear:
		return 3
	default:
		return 2
	}
}
