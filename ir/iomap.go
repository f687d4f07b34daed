package ir

// Properties are stage-level values the IR builder declares alongside the
// bindings.
type Properties struct {
	NumClipDistances uint8
	NumCullDistances uint8

	// Fragment.
	Color0WritesAllCbufs bool
	DepthLayout          DepthLayout
	EarlyFragmentTests   bool
	PostDepthCoverage    bool

	// Compute.
	WorkgroupSize    [3]uint32
	SharedMemorySize uint32

	// Geometry.
	InputPrimitive    Primitive
	OutputPrimitive   Primitive
	MaxOutputVertices uint32
	Invocations       uint32

	// Tessellation control.
	OutputVertices uint32
}

// IOMap is the ordered register assignment of one stage.
type IOMap struct {
	Stage   Stage
	Inputs  []Binding
	Outputs []Binding
	Props   Properties

	// Passthrough is set for stages whose bindings are the IR builder
	// defaults rather than a stage-specific remapping.
	Passthrough bool
}

// NumInputs returns the number of input registers, excluding synthetic
// reservations.
func (m *IOMap) NumInputs() int {
	return countReal(m.Inputs)
}

// NumOutputs returns the number of output registers, excluding synthetic
// reservations.
func (m *IOMap) NumOutputs() int {
	return countReal(m.Outputs)
}

func countReal(bs []Binding) int {
	n := 0
	for _, b := range bs {
		if !b.Synthetic {
			n++
		}
	}
	return n
}

// OutputsWith returns the output bindings carrying semantic s.
func (m *IOMap) OutputsWith(s Semantic) []Binding {
	var out []Binding
	for _, b := range m.Outputs {
		if b.Semantic == s && !b.Synthetic {
			out = append(out, b)
		}
	}
	return out
}

// Output returns the output binding for a slot of the given space.
func (m *IOMap) Output(space SlotSpace, slot uint8, secondary bool) (Binding, bool) {
	for _, b := range m.Outputs {
		if b.Space == space && b.Slot == slot && b.Secondary == secondary && !b.Synthetic {
			return b, true
		}
	}
	return Binding{}, false
}
