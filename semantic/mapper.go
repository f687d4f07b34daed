// Package semantic maps the variables a program stage reads and writes onto
// the positional, semantic register model of the IR.
//
// Map is a pure function of the ProgramInfo: the same usage bitsets and
// stage always produce the same bindings in the same order.
//
// Vertex stages always end both binding lists with a synthetic EDGEFLAG
// register, whether or not the program touches the edge flag. Downstream
// runtimes rely on the reservation being present. An edge flag the program
// does use is also swept like any other slot, so it takes a register of its
// own ahead of the reservation.
package semantic

import (
	"fmt"

	"github.com/gogpu/uam/ir"
)

// Map computes the register assignment of one program stage.
func Map(info *ir.ProgramInfo) (*ir.IOMap, error) {
	switch info.Stage {
	case ir.StageVertex:
		return mapVertex(info)
	case ir.StageFragment:
		return mapFragment(info)
	case ir.StageGeometry, ir.StageTessControl, ir.StageTessEvaluation:
		return mapPassthrough(info)
	case ir.StageCompute:
		return mapCompute(info)
	default:
		return nil, fmt.Errorf("%w: unknown stage %d", ErrInconsistent, uint8(info.Stage))
	}
}

func mapVertex(info *ir.ProgramInfo) (*ir.IOMap, error) {
	m := &ir.IOMap{Stage: ir.StageVertex}

	index := 0
	for _, attr := range info.InputsRead.Slots() {
		if attr >= uint8(ir.VertAttribMax) {
			return nil, inconsistent(info.Stage, ir.SpaceVertAttrib, attr, "attribute out of range")
		}
		m.Inputs = append(m.Inputs, ir.Binding{Index: index, Space: ir.SpaceVertAttrib, Slot: attr})
		index++
		if info.DualSlotInputs.Has(attr) {
			m.Inputs = append(m.Inputs, ir.Binding{
				Index:       index,
				Space:       ir.SpaceVertAttrib,
				Slot:        attr,
				Placeholder: true,
			})
			index++
		}
	}
	m.Inputs = append(m.Inputs, ir.Binding{
		Index:     index,
		Space:     ir.SpaceVertAttrib,
		Slot:      uint8(ir.VertAttribEdgeFlag),
		Semantic:  ir.SemanticEdgeFlag,
		Synthetic: true,
	})

	index = 0
	for _, slot := range info.OutputsWritten.Slots() {
		sem, si, _, err := resolve(&varyingRules, info.Stage, slot)
		if err != nil {
			return nil, err
		}
		m.Outputs = append(m.Outputs, ir.Binding{
			Index:         index,
			Space:         ir.SpaceVarying,
			Slot:          slot,
			Semantic:      sem,
			SemanticIndex: si,
		})
		index++
	}
	m.Outputs = append(m.Outputs, ir.Binding{
		Index:     index,
		Space:     ir.SpaceVarying,
		Slot:      uint8(ir.VaryingEdge),
		Semantic:  ir.SemanticEdgeFlag,
		Synthetic: true,
	})

	m.Props.NumClipDistances = info.ClipDistanceArraySize
	m.Props.NumCullDistances = info.CullDistanceArraySize
	return m, nil
}

// mapPassthrough applies the IR builder defaults: every varying keeps the
// semantic of the shared varying table, in canonical order.
func mapPassthrough(info *ir.ProgramInfo) (*ir.IOMap, error) {
	m := &ir.IOMap{Stage: info.Stage, Passthrough: true}

	var err error
	if m.Inputs, err = defaultBindings(info.Stage, info.InputsRead); err != nil {
		return nil, err
	}
	if m.Outputs, err = defaultBindings(info.Stage, info.OutputsWritten); err != nil {
		return nil, err
	}

	m.Props.NumClipDistances = info.ClipDistanceArraySize
	m.Props.NumCullDistances = info.CullDistanceArraySize
	switch info.Stage {
	case ir.StageGeometry:
		m.Props.InputPrimitive = info.Geometry.InputPrimitive
		m.Props.OutputPrimitive = info.Geometry.OutputPrimitive
		m.Props.MaxOutputVertices = info.Geometry.MaxOutputVertices
		m.Props.Invocations = info.Geometry.Invocations
	case ir.StageTessControl:
		m.Props.OutputVertices = info.TessControl.OutputVertices
	}
	return m, nil
}

func defaultBindings(stage ir.Stage, mask ir.SlotMask) ([]ir.Binding, error) {
	var out []ir.Binding
	for i, slot := range mask.Slots() {
		sem, si, interp, err := resolve(&varyingRules, stage, slot)
		if err != nil {
			return nil, err
		}
		out = append(out, ir.Binding{
			Index:         i,
			Space:         ir.SpaceVarying,
			Slot:          slot,
			Semantic:      sem,
			SemanticIndex: si,
			Interp:        interp,
		})
	}
	return out, nil
}

func mapCompute(info *ir.ProgramInfo) (*ir.IOMap, error) {
	if info.InputsRead != 0 || info.OutputsWritten != 0 {
		return nil, fmt.Errorf("%w: compute stage declares input or output variables", ErrInconsistent)
	}
	m := &ir.IOMap{Stage: ir.StageCompute, Passthrough: true}
	m.Props.WorkgroupSize = info.Compute.WorkgroupSize
	m.Props.SharedMemorySize = info.Compute.SharedMemorySize
	return m, nil
}
