// Package manifest is a front end that reads a program description from
// JSON.
//
// A manifest names the slots a program reads and writes, its stage flags and
// resources, the IR body to emit and, optionally, machine code produced by an
// offline generator:
//
//	{
//	  "stage": "vert",
//	  "inputs": ["POS", "GENERIC0"],
//	  "outputs": ["POS", "VAR0"],
//	  "body": [["MOV", "OUT:POS", "IN:POS"], ["MOV", "OUT:VAR0", "IN:GENERIC0"]],
//	  "machine": {"code": {"hex": "..."}, "gprs": 8}
//	}
//
// Body operands of the form IN:<slot> and OUT:<slot> are replaced with the
// register the semantic mapper assigned to the slot.
package manifest

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/uam/codegen"
	"github.com/gogpu/uam/ir"
)

// ErrNoMachineCode is returned by Generator when the manifest carries no
// machine code.
var ErrNoMachineCode = errors.New("manifest: no machine code")

// Manifest is a decoded program description.
type Manifest struct {
	Stage string `json:"stage,omitempty"`

	Inputs           []string `json:"inputs,omitempty"`
	Outputs          []string `json:"outputs,omitempty"`
	DualSlotInputs   []string `json:"dual_slot_inputs,omitempty"`
	SecondaryOutputs []string `json:"secondary_outputs,omitempty"`

	ClipDistances uint8 `json:"clip_distances,omitempty"`
	CullDistances uint8 `json:"cull_distances,omitempty"`

	Fragment    *Fragment    `json:"fragment,omitempty"`
	Compute     *Compute     `json:"compute,omitempty"`
	Geometry    *Geometry    `json:"geometry,omitempty"`
	TessControl *TessControl `json:"tess_control,omitempty"`

	Resources []Resource `json:"resources,omitempty"`
	Body      [][]string `json:"body,omitempty"`

	Machine *Machine `json:"machine,omitempty"`
}

// Fragment holds fragment stage flags.
type Fragment struct {
	DepthLayout        string `json:"depth_layout,omitempty"`
	EarlyFragmentTests bool   `json:"early_fragment_tests,omitempty"`
	PostDepthCoverage  bool   `json:"post_depth_coverage,omitempty"`
	SampleShading      bool   `json:"sample_shading,omitempty"`
	UsesDiscard        bool   `json:"uses_discard,omitempty"`
}

// Compute holds the workgroup size and shared memory of a compute stage.
type Compute struct {
	WorkgroupSize [3]uint32 `json:"workgroup_size"`
	SharedMemory  uint32    `json:"shared_memory,omitempty"`
}

// Geometry holds geometry stage primitives and limits.
type Geometry struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	MaxVertices uint32 `json:"max_vertices"`
	Invocations uint32 `json:"invocations,omitempty"`
}

// TessControl holds the tessellation control output patch size.
type TessControl struct {
	OutputVertices uint32 `json:"output_vertices"`
}

// Resource is a resource bound to the program.
type Resource struct {
	Kind    string `json:"kind"`
	Binding uint32 `json:"binding"`
}

// Machine is generator output produced ahead of time.
type Machine struct {
	Code Blob `json:"code"`
	Data Blob `json:"data,omitempty"`

	GPRs               uint32   `json:"gprs"`
	PerWarpScratchSize uint32   `json:"per_warp_scratch,omitempty"`
	LocalPosMemSize    uint32   `json:"local_pos_mem,omitempty"`
	LocalNegMemSize    uint32   `json:"local_neg_mem,omitempty"`
	CRSSize            uint32   `json:"crs,omitempty"`
	NumBarriers        uint32   `json:"barriers,omitempty"`
	Flags              []string `json:"flags,omitempty"`

	// MinInstructions rejects IR bodies shorter than the code was built
	// for.
	MinInstructions int `json:"min_instructions,omitempty"`
}

// Blob is binary content given inline as hex or as a file path relative to
// the manifest.
type Blob struct {
	Hex  string `json:"hex,omitempty"`
	File string `json:"file,omitempty"`
}

// Load returns the content of b. Whitespace inside Hex is ignored.
func (b Blob) Load(dir string) ([]byte, error) {
	switch {
	case b.Hex != "" && b.File != "":
		return nil, errors.New("blob has both hex and file")
	case b.File != "":
		path := b.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		return os.ReadFile(path)
	case b.Hex != "":
		return hex.DecodeString(strings.Join(strings.Fields(b.Hex), ""))
	}
	return nil, nil
}

// Parse decodes a manifest. Unknown fields are rejected.
func Parse(data []byte) (*Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	return &m, nil
}

// ResolveStage returns the stage of the manifest. When known is set, want
// is the stage requested by the caller and must agree with the manifest's
// own stage field.
func (m *Manifest) ResolveStage(want ir.Stage, known bool) (ir.Stage, error) {
	if m.Stage == "" {
		if !known {
			return 0, errors.New("manifest: stage not given")
		}
		return want, nil
	}
	s, err := ir.ParseStage(m.Stage)
	if err != nil {
		return 0, fmt.Errorf("manifest: %w", err)
	}
	if known && s != want {
		return 0, fmt.Errorf("manifest: describes a %s program, %s requested", s, want)
	}
	return s, nil
}

// Program builds the program description for stage.
func (m *Manifest) Program(stage ir.Stage) (*ir.Program, error) {
	stage, err := m.ResolveStage(stage, true)
	if err != nil {
		return nil, err
	}
	info := ir.ProgramInfo{
		Stage:                 stage,
		ClipDistanceArraySize: m.ClipDistances,
		CullDistanceArraySize: m.CullDistances,
	}

	inSpace, outSpace := spaces(stage)
	if info.InputsRead, err = mask(inSpace, m.Inputs); err != nil {
		return nil, fmt.Errorf("manifest: inputs: %w", err)
	}
	if info.OutputsWritten, err = mask(outSpace, m.Outputs); err != nil {
		return nil, fmt.Errorf("manifest: outputs: %w", err)
	}
	if info.DualSlotInputs, err = mask(inSpace, m.DualSlotInputs); err != nil {
		return nil, fmt.Errorf("manifest: dual_slot_inputs: %w", err)
	}
	if info.SecondaryOutputsWritten, err = mask(outSpace, m.SecondaryOutputs); err != nil {
		return nil, fmt.Errorf("manifest: secondary_outputs: %w", err)
	}

	if f := m.Fragment; f != nil {
		layout, err := ir.ParseDepthLayout(f.DepthLayout)
		if err != nil {
			return nil, fmt.Errorf("manifest: fragment: %w", err)
		}
		info.Fragment = ir.FragmentInfo{
			DepthLayout:        layout,
			EarlyFragmentTests: f.EarlyFragmentTests,
			PostDepthCoverage:  f.PostDepthCoverage,
			SampleShading:      f.SampleShading,
			UsesDiscard:        f.UsesDiscard,
		}
	}
	if c := m.Compute; c != nil {
		info.Compute = ir.ComputeInfo{WorkgroupSize: c.WorkgroupSize, SharedMemorySize: c.SharedMemory}
	}
	if g := m.Geometry; g != nil {
		in, err := ir.ParsePrimitive(g.Input)
		if err != nil {
			return nil, fmt.Errorf("manifest: geometry input: %w", err)
		}
		out, err := ir.ParsePrimitive(g.Output)
		if err != nil {
			return nil, fmt.Errorf("manifest: geometry output: %w", err)
		}
		info.Geometry = ir.GeometryInfo{
			InputPrimitive:    in,
			OutputPrimitive:   out,
			MaxOutputVertices: g.MaxVertices,
			Invocations:       g.Invocations,
		}
	}
	if tc := m.TessControl; tc != nil {
		info.TessControl = ir.TessInfo{OutputVertices: tc.OutputVertices}
	}

	for _, r := range m.Resources {
		kind, err := ir.ParseResourceKind(r.Kind)
		if err != nil {
			return nil, fmt.Errorf("manifest: resources: %w", err)
		}
		info.Resources = append(info.Resources, ir.Resource{Kind: kind, Binding: r.Binding})
	}

	prog := &ir.Program{Info: info}
	if len(m.Body) > 0 {
		b := &body{in: inSpace, out: outSpace, insts: m.Body}
		if err := b.check(); err != nil {
			return nil, err
		}
		prog.Body = b
	}
	return prog, nil
}

// Generator returns a generator replaying the manifest's machine code. dir
// resolves relative blob paths.
func (m *Manifest) Generator(stage ir.Stage, dir string) (*codegen.Prebuilt, error) {
	stage, err := m.ResolveStage(stage, true)
	if err != nil {
		return nil, err
	}
	mc := m.Machine
	if mc == nil {
		return nil, ErrNoMachineCode
	}
	code, err := mc.Code.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("manifest: code: %w", err)
	}
	if len(code) == 0 {
		return nil, ErrNoMachineCode
	}
	data, err := mc.Data.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("manifest: data: %w", err)
	}
	flags, err := codegen.ParseFlags(mc.Flags...)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	return &codegen.Prebuilt{
		Stage: stage,
		Artifact: codegen.Artifact{
			Code:               code,
			Data:               data,
			NumGPRs:            mc.GPRs,
			PerWarpScratchSize: mc.PerWarpScratchSize,
			LocalPosMemSize:    mc.LocalPosMemSize,
			LocalNegMemSize:    mc.LocalNegMemSize,
			CRSSize:            mc.CRSSize,
			NumBarriers:        mc.NumBarriers,
			Flags:              flags,
		},
		MinInstructions: mc.MinInstructions,
	}, nil
}

// FrontEnd parses manifest sources.
type FrontEnd struct{}

// Parse decodes source as a manifest and builds its program for stage.
func (FrontEnd) Parse(source []byte, stage ir.Stage) (*ir.Program, error) {
	m, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return m.Program(stage)
}

// spaces returns the slot spaces of a stage's inputs and outputs.
func spaces(stage ir.Stage) (in, out ir.SlotSpace) {
	switch stage {
	case ir.StageVertex:
		return ir.SpaceVertAttrib, ir.SpaceVarying
	case ir.StageFragment:
		return ir.SpaceVarying, ir.SpaceFragResult
	}
	return ir.SpaceVarying, ir.SpaceVarying
}

func parseSlot(space ir.SlotSpace, name string) (uint8, error) {
	switch space {
	case ir.SpaceVertAttrib:
		a, err := ir.ParseVertAttrib(name)
		return uint8(a), err
	case ir.SpaceFragResult:
		r, err := ir.ParseFragResult(name)
		return uint8(r), err
	}
	v, err := ir.ParseVaryingSlot(name)
	return uint8(v), err
}

func mask(space ir.SlotSpace, names []string) (ir.SlotMask, error) {
	var m ir.SlotMask
	for _, name := range names {
		slot, err := parseSlot(space, name)
		if err != nil {
			return 0, err
		}
		m = m.With(slot)
	}
	return m, nil
}
