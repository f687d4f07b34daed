package ir

import "fmt"

// ProgramInfo is the front end's description of one program stage.
//
// The slot space of InputsRead and OutputsWritten depends on Stage:
//   - Vertex: inputs are VertAttrib, outputs are VaryingSlot
//   - Fragment: inputs are VaryingSlot, outputs are FragResult
//   - Geometry, tessellation: inputs and outputs are VaryingSlot
//   - Compute: no inputs or outputs
type ProgramInfo struct {
	Stage Stage

	InputsRead     SlotMask
	OutputsWritten SlotMask

	// DualSlotInputs marks vertex attributes occupying two registers.
	DualSlotInputs SlotMask

	// SecondaryOutputsWritten is the dual-source blend output bank.
	SecondaryOutputsWritten SlotMask

	ClipDistanceArraySize uint8
	CullDistanceArraySize uint8

	Fragment    FragmentInfo
	Compute     ComputeInfo
	Geometry    GeometryInfo
	TessControl TessInfo

	Resources []Resource
}

// FragmentInfo holds fragment stage flags.
type FragmentInfo struct {
	DepthLayout        DepthLayout
	EarlyFragmentTests bool
	PostDepthCoverage  bool
	// SampleShading requests one invocation per sample.
	SampleShading bool
	UsesDiscard   bool
}

// ComputeInfo holds compute stage parameters.
type ComputeInfo struct {
	WorkgroupSize    [3]uint32
	SharedMemorySize uint32
}

// Primitive is a geometry stage primitive type.
type Primitive uint8

const (
	PrimitivePoints Primitive = iota
	PrimitiveLines
	PrimitiveLinesAdjacency
	PrimitiveTriangles
	PrimitiveTrianglesAdjacency
	PrimitiveLineStrip
	PrimitiveTriangleStrip
)

var primitiveNames = [...]string{
	PrimitivePoints:             "points",
	PrimitiveLines:              "lines",
	PrimitiveLinesAdjacency:     "lines_adjacency",
	PrimitiveTriangles:          "triangles",
	PrimitiveTrianglesAdjacency: "triangles_adjacency",
	PrimitiveLineStrip:          "line_strip",
	PrimitiveTriangleStrip:      "triangle_strip",
}

func (p Primitive) String() string {
	if int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return fmt.Sprintf("Primitive(%d)", uint8(p))
}

// ParsePrimitive parses a primitive name such as "triangle_strip".
func ParsePrimitive(name string) (Primitive, error) {
	for i, n := range primitiveNames {
		if n == name {
			return Primitive(i), nil
		}
	}
	return 0, fmt.Errorf("unknown primitive %q", name)
}

// GeometryInfo holds geometry stage parameters.
type GeometryInfo struct {
	InputPrimitive    Primitive
	OutputPrimitive   Primitive
	MaxOutputVertices uint32
	Invocations       uint32
}

// TessInfo holds tessellation control stage parameters.
type TessInfo struct {
	OutputVertices uint32
}

// ResourceKind is the kind of a bound resource.
type ResourceKind uint8

const (
	ResourceConstBuffer ResourceKind = iota
	ResourceSampler
	ResourceImage
	ResourceBuffer
)

var resourceKindNames = [...]string{
	ResourceConstBuffer: "CONST",
	ResourceSampler:     "SAMP",
	ResourceImage:       "IMAGE",
	ResourceBuffer:      "BUFFER",
}

func (k ResourceKind) String() string {
	if int(k) < len(resourceKindNames) {
		return resourceKindNames[k]
	}
	return fmt.Sprintf("ResourceKind(%d)", uint8(k))
}

// ParseResourceKind parses "ubo", "sampler", "image" or "ssbo".
func ParseResourceKind(name string) (ResourceKind, error) {
	switch name {
	case "ubo", "uniform":
		return ResourceConstBuffer, nil
	case "sampler", "texture":
		return ResourceSampler, nil
	case "image":
		return ResourceImage, nil
	case "ssbo", "storage":
		return ResourceBuffer, nil
	}
	return 0, fmt.Errorf("unknown resource kind %q", name)
}

// Resource is a resource binding declared by the program.
type Resource struct {
	Kind    ResourceKind
	Binding uint32
}

// Emitter receives the instructions of a translated program body.
type Emitter interface {
	Inst(op string, operands ...string)
}

// Body is the front end's translation routine. It emits the program's
// instructions against the register assignment in m.
type Body interface {
	Translate(e Emitter, m *IOMap) error
}

// Program is a parsed and type-checked program as produced by a front end.
type Program struct {
	Info ProgramInfo
	Body Body
}
