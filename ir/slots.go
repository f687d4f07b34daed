package ir

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/maps"
)

// VertAttrib is a vertex shader input attribute slot.
type VertAttrib uint8

const (
	VertAttribPos VertAttrib = iota
	VertAttribNormal
	VertAttribColor0
	VertAttribColor1
	VertAttribFog
	VertAttribColorIndex
	VertAttribEdgeFlag
	VertAttribTex0
	VertAttribTex1
	VertAttribTex2
	VertAttribTex3
	VertAttribTex4
	VertAttribTex5
	VertAttribTex6
	VertAttribTex7
	VertAttribPointSize
	VertAttribGeneric0
	VertAttribGeneric15 = VertAttribGeneric0 + 15

	// VertAttribMax is the number of vertex attribute slots.
	VertAttribMax = VertAttribGeneric15 + 1
)

// VaryingSlot is a slot for a value passed between pipeline stages.
type VaryingSlot uint8

const (
	VaryingPos VaryingSlot = iota
	VaryingCol0
	VaryingCol1
	VaryingFogC
	VaryingTex0
	VaryingTex1
	VaryingTex2
	VaryingTex3
	VaryingTex4
	VaryingTex5
	VaryingTex6
	VaryingTex7
	VaryingPSiz
	VaryingBFC0
	VaryingBFC1
	VaryingEdge
	VaryingClipVertex
	VaryingClipDist0
	VaryingClipDist1
	VaryingCullDist0
	VaryingCullDist1
	VaryingPrimitiveID
	VaryingLayer
	VaryingViewport
	VaryingFace
	VaryingPntC
	VaryingTessLevelOuter
	VaryingTessLevelInner
	VaryingBoundingBox0
	VaryingBoundingBox1
	VaryingViewIndex
	VaryingViewportMask
	VaryingVar0
	VaryingVar31 = VaryingVar0 + 31

	// VaryingMax is the number of varying slots.
	VaryingMax = VaryingVar31 + 1
)

// FragResult is a fragment shader output slot.
type FragResult uint8

const (
	FragResultDepth FragResult = iota
	FragResultStencil
	FragResultColor
	FragResultSampleMask
	FragResultData0
	FragResultData7 = FragResultData0 + 7

	// FragResultMax is the number of fragment output slots.
	FragResultMax = FragResultData7 + 1
)

var vertAttribNames = func() map[VertAttrib]string {
	m := map[VertAttrib]string{
		VertAttribPos:        "POS",
		VertAttribNormal:     "NORMAL",
		VertAttribColor0:     "COLOR0",
		VertAttribColor1:     "COLOR1",
		VertAttribFog:        "FOG",
		VertAttribColorIndex: "COLOR_INDEX",
		VertAttribEdgeFlag:   "EDGEFLAG",
		VertAttribPointSize:  "POINT_SIZE",
	}
	for i := VertAttrib(0); i < 8; i++ {
		m[VertAttribTex0+i] = fmt.Sprintf("TEX%d", i)
	}
	for i := VertAttrib(0); i < 16; i++ {
		m[VertAttribGeneric0+i] = fmt.Sprintf("GENERIC%d", i)
	}
	return m
}()

var varyingNames = func() map[VaryingSlot]string {
	m := map[VaryingSlot]string{
		VaryingPos:            "POS",
		VaryingCol0:           "COL0",
		VaryingCol1:           "COL1",
		VaryingFogC:           "FOGC",
		VaryingPSiz:           "PSIZ",
		VaryingBFC0:           "BFC0",
		VaryingBFC1:           "BFC1",
		VaryingEdge:           "EDGE",
		VaryingClipVertex:     "CLIP_VERTEX",
		VaryingClipDist0:      "CLIP_DIST0",
		VaryingClipDist1:      "CLIP_DIST1",
		VaryingCullDist0:      "CULL_DIST0",
		VaryingCullDist1:      "CULL_DIST1",
		VaryingPrimitiveID:    "PRIMITIVE_ID",
		VaryingLayer:          "LAYER",
		VaryingViewport:       "VIEWPORT",
		VaryingFace:           "FACE",
		VaryingPntC:           "PNTC",
		VaryingTessLevelOuter: "TESS_LEVEL_OUTER",
		VaryingTessLevelInner: "TESS_LEVEL_INNER",
		VaryingBoundingBox0:   "BOUNDING_BOX0",
		VaryingBoundingBox1:   "BOUNDING_BOX1",
		VaryingViewIndex:      "VIEW_INDEX",
		VaryingViewportMask:   "VIEWPORT_MASK",
	}
	for i := VaryingSlot(0); i < 8; i++ {
		m[VaryingTex0+i] = fmt.Sprintf("TEX%d", i)
	}
	for i := VaryingSlot(0); i < 32; i++ {
		m[VaryingVar0+i] = fmt.Sprintf("VAR%d", i)
	}
	return m
}()

var fragResultNames = func() map[FragResult]string {
	m := map[FragResult]string{
		FragResultDepth:      "DEPTH",
		FragResultStencil:    "STENCIL",
		FragResultColor:      "COLOR",
		FragResultSampleMask: "SAMPLE_MASK",
	}
	for i := FragResult(0); i < 8; i++ {
		m[FragResultData0+i] = fmt.Sprintf("DATA%d", i)
	}
	return m
}()

func (a VertAttrib) String() string {
	if n, ok := vertAttribNames[a]; ok {
		return n
	}
	return fmt.Sprintf("VertAttrib(%d)", uint8(a))
}

func (v VaryingSlot) String() string {
	if n, ok := varyingNames[v]; ok {
		return n
	}
	return fmt.Sprintf("VaryingSlot(%d)", uint8(v))
}

func (r FragResult) String() string {
	if n, ok := fragResultNames[r]; ok {
		return n
	}
	return fmt.Sprintf("FragResult(%d)", uint8(r))
}

// ParseVertAttrib parses a vertex attribute name such as "POS" or "GENERIC3".
func ParseVertAttrib(name string) (VertAttrib, error) {
	return parseSlot(vertAttribNames, "vertex attribute", name)
}

// ParseVaryingSlot parses a varying slot name such as "COL0" or "VAR12".
func ParseVaryingSlot(name string) (VaryingSlot, error) {
	return parseSlot(varyingNames, "varying slot", name)
}

// ParseFragResult parses a fragment output name such as "DEPTH" or "DATA1".
func ParseFragResult(name string) (FragResult, error) {
	return parseSlot(fragResultNames, "fragment result", name)
}

func parseSlot[T ~uint8](names map[T]string, what, name string) (T, error) {
	for s, n := range names {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	valid := maps.Values(names)
	sort.Strings(valid)
	return 0, fmt.Errorf("unknown %s %q (valid: %s)", what, name, strings.Join(valid, ", "))
}

// SlotSpace identifies the numbering a Binding's slot belongs to.
type SlotSpace uint8

const (
	SpaceVertAttrib SlotSpace = iota
	SpaceVarying
	SpaceFragResult
)

// SlotName returns the name of slot in space.
func SlotName(space SlotSpace, slot uint8) string {
	switch space {
	case SpaceVertAttrib:
		return VertAttrib(slot).String()
	case SpaceVarying:
		return VaryingSlot(slot).String()
	case SpaceFragResult:
		return FragResult(slot).String()
	default:
		return fmt.Sprintf("slot(%d)", slot)
	}
}
