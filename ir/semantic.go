package ir

import "fmt"

// Semantic is the named role of a declared input or output register.
type Semantic uint8

const (
	SemanticNone Semantic = iota
	SemanticPosition
	SemanticColor
	SemanticBColor
	SemanticFog
	SemanticPSize
	SemanticGeneric
	SemanticFace
	SemanticEdgeFlag
	SemanticPrimID
	SemanticStencil
	SemanticClipDist
	SemanticClipVertex
	SemanticTexCoord
	SemanticPCoord
	SemanticViewportIndex
	SemanticLayer
	SemanticSampleMask
	SemanticTessOuter
	SemanticTessInner
	SemanticViewportMask
)

var semanticNames = [...]string{
	SemanticNone:          "NONE",
	SemanticPosition:      "POSITION",
	SemanticColor:         "COLOR",
	SemanticBColor:        "BCOLOR",
	SemanticFog:           "FOG",
	SemanticPSize:         "PSIZE",
	SemanticGeneric:       "GENERIC",
	SemanticFace:          "FACE",
	SemanticEdgeFlag:      "EDGEFLAG",
	SemanticPrimID:        "PRIMID",
	SemanticStencil:       "STENCIL",
	SemanticClipDist:      "CLIPDIST",
	SemanticClipVertex:    "CLIPVERTEX",
	SemanticTexCoord:      "TEXCOORD",
	SemanticPCoord:        "PCOORD",
	SemanticViewportIndex: "VIEWPORT_INDEX",
	SemanticLayer:         "LAYER",
	SemanticSampleMask:    "SAMPLEMASK",
	SemanticTessOuter:     "TESSOUTER",
	SemanticTessInner:     "TESSINNER",
	SemanticViewportMask:  "VIEWPORT_MASK",
}

func (s Semantic) String() string {
	if int(s) < len(semanticNames) {
		return semanticNames[s]
	}
	return fmt.Sprintf("Semantic(%d)", uint8(s))
}

// Interpolation is the interpolation mode of a fragment input.
type Interpolation uint8

const (
	InterpConstant Interpolation = iota
	InterpLinear
	InterpPerspective
	InterpColor
	// InterpCount leaves the mode unspecified; a later stage decides.
	InterpCount
)

var interpNames = [...]string{
	InterpConstant:    "CONSTANT",
	InterpLinear:      "LINEAR",
	InterpPerspective: "PERSPECTIVE",
	InterpColor:       "COLOR",
	InterpCount:       "COUNT",
}

func (i Interpolation) String() string {
	if int(i) < len(interpNames) {
		return interpNames[i]
	}
	return fmt.Sprintf("Interpolation(%d)", uint8(i))
}

// DepthLayout is the layout qualifier of the fragment depth output.
type DepthLayout uint8

const (
	DepthLayoutNone DepthLayout = iota
	DepthLayoutAny
	DepthLayoutGreater
	DepthLayoutLess
	DepthLayoutUnchanged
)

var depthLayoutNames = [...]string{
	DepthLayoutNone:      "none",
	DepthLayoutAny:       "any",
	DepthLayoutGreater:   "greater",
	DepthLayoutLess:      "less",
	DepthLayoutUnchanged: "unchanged",
}

func (d DepthLayout) String() string {
	if int(d) < len(depthLayoutNames) {
		return depthLayoutNames[d]
	}
	return fmt.Sprintf("DepthLayout(%d)", uint8(d))
}

// ParseDepthLayout parses a depth layout qualifier name. The empty string
// means none.
func ParseDepthLayout(name string) (DepthLayout, error) {
	if name == "" {
		return DepthLayoutNone, nil
	}
	for i, n := range depthLayoutNames {
		if n == name {
			return DepthLayout(i), nil
		}
	}
	return 0, fmt.Errorf("unknown depth layout %q", name)
}

// Binding associates a variable slot with a register index and, for
// declared registers, a semantic.
type Binding struct {
	// Index is the register index assigned to the slot.
	Index int

	// Space and Slot identify the variable.
	Space SlotSpace
	Slot  uint8

	Semantic      Semantic
	SemanticIndex uint32

	// Interp is meaningful for fragment inputs only.
	Interp Interpolation

	// Placeholder marks the second register of a double attribute. It
	// consumes an index but carries no semantic.
	Placeholder bool

	// Synthetic marks a register reserved regardless of program usage.
	Synthetic bool

	// Secondary marks a fragment output of the dual-source blend bank.
	Secondary bool
}

func (b Binding) String() string {
	name := SlotName(b.Space, b.Slot)
	switch {
	case b.Placeholder:
		return fmt.Sprintf("[%d] %s (second half)", b.Index, name)
	case b.Semantic == SemanticNone:
		return fmt.Sprintf("[%d] %s", b.Index, name)
	}
	s := fmt.Sprintf("[%d] %s -> %s[%d]", b.Index, name, b.Semantic, b.SemanticIndex)
	if b.Secondary {
		s += " secondary"
	}
	if b.Synthetic {
		s += " synthetic"
	}
	return s
}
