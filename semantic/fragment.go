package semantic

import (
	"fmt"

	"github.com/gogpu/uam/ir"
)

// priorityOutputs are emitted ahead of every color output, in this order.
var priorityOutputs = [...]struct {
	slot ir.FragResult
	sem  ir.Semantic
}{
	{ir.FragResultDepth, ir.SemanticPosition},
	{ir.FragResultStencil, ir.SemanticStencil},
	{ir.FragResultSampleMask, ir.SemanticSampleMask},
}

func mapFragment(info *ir.ProgramInfo) (*ir.IOMap, error) {
	m := &ir.IOMap{Stage: ir.StageFragment}

	for i, slot := range info.InputsRead.Slots() {
		sem, si, interp, err := resolve(&fragmentInputRules, info.Stage, slot)
		if err != nil {
			return nil, err
		}
		m.Inputs = append(m.Inputs, ir.Binding{
			Index:         i,
			Space:         ir.SpaceVarying,
			Slot:          slot,
			Semantic:      sem,
			SemanticIndex: si,
			Interp:        interp,
		})
	}

	outputs, writeAll, err := fragmentOutputs(info)
	if err != nil {
		return nil, err
	}
	m.Outputs = outputs
	m.Props.Color0WritesAllCbufs = writeAll

	switch layout := info.Fragment.DepthLayout; layout {
	case ir.DepthLayoutNone, ir.DepthLayoutAny, ir.DepthLayoutGreater,
		ir.DepthLayoutLess, ir.DepthLayoutUnchanged:
		m.Props.DepthLayout = layout
	default:
		return nil, fmt.Errorf("%w: unknown depth layout %d", ErrInconsistent, uint8(layout))
	}
	m.Props.EarlyFragmentTests = info.Fragment.EarlyFragmentTests
	m.Props.PostDepthCoverage = info.Fragment.PostDepthCoverage
	return m, nil
}

// fragmentOutputs assigns depth, stencil and sample mask first, then sweeps
// the primary and the secondary (dual-source) color banks. A single counter
// numbers every output.
func fragmentOutputs(info *ir.ProgramInfo) ([]ir.Binding, bool, error) {
	var (
		out      []ir.Binding
		writeAll bool
		written  = info.OutputsWritten
	)

	for _, p := range priorityOutputs {
		if !written.Has(uint8(p.slot)) {
			continue
		}
		out = append(out, ir.Binding{
			Index:    len(out),
			Space:    ir.SpaceFragResult,
			Slot:     uint8(p.slot),
			Semantic: p.sem,
		})
		written = written.Without(uint8(p.slot))
	}

	banks := [2]ir.SlotMask{written, info.SecondaryOutputsWritten}
	for bank, mask := range banks {
		secondary := bank == 1
		for _, loc := range mask.Slots() {
			var index uint32
			switch r := ir.FragResult(loc); {
			case r == ir.FragResultDepth, r == ir.FragResultStencil, r == ir.FragResultSampleMask:
				return nil, false, inconsistent(info.Stage, ir.SpaceFragResult, loc,
					"reached during the color sweep")
			case r == ir.FragResultColor:
				writeAll = true
				index = 0
			case r >= ir.FragResultData0 && r <= ir.FragResultData7:
				index = uint32(r - ir.FragResultData0)
			default:
				return nil, false, inconsistent(info.Stage, ir.SpaceFragResult, loc, "output out of range")
			}

			if secondary {
				if index != 0 {
					return nil, false, inconsistent(info.Stage, ir.SpaceFragResult, loc,
						"dual-source output must target color 0")
				}
				index++
			}

			out = append(out, ir.Binding{
				Index:         len(out),
				Space:         ir.SpaceFragResult,
				Slot:          loc,
				Semantic:      ir.SemanticColor,
				SemanticIndex: index,
				Secondary:     secondary,
			})
		}
	}
	return out, writeAll, nil
}
