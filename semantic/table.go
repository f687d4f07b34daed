package semantic

import "github.com/gogpu/uam/ir"

type ruleKind uint8

const (
	ruleInvalid ruleKind = iota
	ruleFixed
	ruleGeneric
)

// rule maps one varying slot to its semantic.
type rule struct {
	kind   ruleKind
	sem    ir.Semantic
	index  uint32
	interp ir.Interpolation
	reason string
}

func fixed(sem ir.Semantic, index uint32, interp ir.Interpolation) rule {
	return rule{kind: ruleFixed, sem: sem, index: index, interp: interp}
}

func invalid(reason string) rule {
	return rule{kind: ruleInvalid, reason: reason}
}

const (
	reasonCullDist = "cull distances must be lowered into clip distances before mapping"
	reasonNoRule   = "slot has no semantic in this direction"
)

// varyingRules is used for every varying written by a vertex stage and for
// the pass-through stages. Interpolation is not meaningful here.
var varyingRules = func() [ir.VaryingMax]rule {
	var t [ir.VaryingMax]rule
	for i := range t {
		t[i] = invalid(reasonNoRule)
	}
	t[ir.VaryingPos] = fixed(ir.SemanticPosition, 0, ir.InterpCount)
	t[ir.VaryingCol0] = fixed(ir.SemanticColor, 0, ir.InterpCount)
	t[ir.VaryingCol1] = fixed(ir.SemanticColor, 1, ir.InterpCount)
	t[ir.VaryingBFC0] = fixed(ir.SemanticBColor, 0, ir.InterpCount)
	t[ir.VaryingBFC1] = fixed(ir.SemanticBColor, 1, ir.InterpCount)
	t[ir.VaryingFogC] = fixed(ir.SemanticFog, 0, ir.InterpCount)
	t[ir.VaryingPSiz] = fixed(ir.SemanticPSize, 0, ir.InterpCount)
	t[ir.VaryingClipDist0] = fixed(ir.SemanticClipDist, 0, ir.InterpCount)
	t[ir.VaryingClipDist1] = fixed(ir.SemanticClipDist, 1, ir.InterpCount)
	t[ir.VaryingCullDist0] = invalid(reasonCullDist)
	t[ir.VaryingCullDist1] = invalid(reasonCullDist)
	t[ir.VaryingEdge] = fixed(ir.SemanticEdgeFlag, 0, ir.InterpCount)
	t[ir.VaryingClipVertex] = fixed(ir.SemanticClipVertex, 0, ir.InterpCount)
	t[ir.VaryingLayer] = fixed(ir.SemanticLayer, 0, ir.InterpCount)
	t[ir.VaryingViewport] = fixed(ir.SemanticViewportIndex, 0, ir.InterpCount)
	t[ir.VaryingFace] = fixed(ir.SemanticFace, 0, ir.InterpCount)
	t[ir.VaryingPrimitiveID] = fixed(ir.SemanticPrimID, 0, ir.InterpCount)
	t[ir.VaryingTessLevelOuter] = fixed(ir.SemanticTessOuter, 0, ir.InterpCount)
	t[ir.VaryingTessLevelInner] = fixed(ir.SemanticTessInner, 0, ir.InterpCount)
	t[ir.VaryingViewportMask] = fixed(ir.SemanticViewportMask, 0, ir.InterpCount)
	t[ir.VaryingPntC] = fixed(ir.SemanticPCoord, 0, ir.InterpCount)
	for i := uint32(0); i < 8; i++ {
		t[ir.VaryingTex0+ir.VaryingSlot(i)] = fixed(ir.SemanticTexCoord, i, ir.InterpCount)
	}
	for s := ir.VaryingVar0; s <= ir.VaryingVar31; s++ {
		t[s] = rule{kind: ruleGeneric, sem: ir.SemanticGeneric, interp: ir.InterpCount}
	}
	return t
}()

// fragmentInputRules is the per-slot rule for varyings read by a fragment
// stage.
var fragmentInputRules = func() [ir.VaryingMax]rule {
	var t [ir.VaryingMax]rule
	for i := range t {
		t[i] = invalid(reasonNoRule)
	}
	t[ir.VaryingPos] = fixed(ir.SemanticPosition, 0, ir.InterpLinear)
	t[ir.VaryingCol0] = fixed(ir.SemanticColor, 0, ir.InterpCount)
	t[ir.VaryingCol1] = fixed(ir.SemanticColor, 1, ir.InterpCount)
	t[ir.VaryingFogC] = fixed(ir.SemanticFog, 0, ir.InterpPerspective)
	t[ir.VaryingFace] = fixed(ir.SemanticFace, 0, ir.InterpConstant)
	t[ir.VaryingPrimitiveID] = fixed(ir.SemanticPrimID, 0, ir.InterpConstant)
	t[ir.VaryingLayer] = fixed(ir.SemanticLayer, 0, ir.InterpConstant)
	t[ir.VaryingViewport] = fixed(ir.SemanticViewportIndex, 0, ir.InterpConstant)
	t[ir.VaryingClipDist0] = fixed(ir.SemanticClipDist, 0, ir.InterpPerspective)
	t[ir.VaryingClipDist1] = fixed(ir.SemanticClipDist, 1, ir.InterpPerspective)
	t[ir.VaryingCullDist0] = invalid(reasonCullDist)
	t[ir.VaryingCullDist1] = invalid(reasonCullDist)
	t[ir.VaryingPntC] = fixed(ir.SemanticPCoord, 0, ir.InterpLinear)
	for i := uint32(0); i < 8; i++ {
		t[ir.VaryingTex0+ir.VaryingSlot(i)] = fixed(ir.SemanticTexCoord, i, ir.InterpCount)
	}
	for s := ir.VaryingVar0; s <= ir.VaryingVar31; s++ {
		t[s] = rule{kind: ruleGeneric, sem: ir.SemanticGeneric, interp: ir.InterpCount}
	}
	return t
}()

// GenericIndex returns the GENERIC semantic index of a user varying. The
// vertex output and fragment input mappings both use it, so the indices of
// the two stages agree.
func GenericIndex(slot ir.VaryingSlot) (uint32, bool) {
	if slot < ir.VaryingVar0 || slot > ir.VaryingVar31 {
		return 0, false
	}
	return uint32(slot - ir.VaryingVar0), true
}

// resolve applies a rule table to one varying slot.
func resolve(t *[ir.VaryingMax]rule, stage ir.Stage, slot uint8) (ir.Semantic, uint32, ir.Interpolation, error) {
	if int(slot) >= len(t) {
		return 0, 0, 0, inconsistent(stage, ir.SpaceVarying, slot, "slot out of range")
	}
	r := t[slot]
	switch r.kind {
	case ruleFixed:
		return r.sem, r.index, r.interp, nil
	case ruleGeneric:
		idx, ok := GenericIndex(ir.VaryingSlot(slot))
		if !ok {
			return 0, 0, 0, inconsistent(stage, ir.SpaceVarying, slot, "not a generic varying")
		}
		return r.sem, idx, r.interp, nil
	default:
		return 0, 0, 0, inconsistent(stage, ir.SpaceVarying, slot, "%s", r.reason)
	}
}
