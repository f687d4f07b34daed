// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package nvn encodes and decodes the NVN shader container pair: a
// fixed-size control container describing the program and a GPU program
// container holding its header, code and constant data.
//
// GPU program layout:
//
//	0x00  magic
//	0x30  shader program header
//	0x80  machine code
//	      constant data at the next 256-byte boundary, then padding
//
// The control container records the program size, the constant buffer
// placement and the total GPU program size so a runtime can load either
// container without parsing the other. Every byte outside a named field of
// either container is zero.
package nvn

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gogpu/uam/codegen"
	"github.com/gogpu/uam/dksh"
	"github.com/gogpu/uam/internal/layout"
	"github.com/gogpu/uam/ir"
	"github.com/gogpu/uam/sph"
)

// ErrMalformed is wrapped by every decoding failure.
var ErrMalformed = errors.New("nvn: malformed container")

// Payload is the stage-specific part of the control container.
type Payload interface {
	Stage() ir.Stage
}

// FragmentPayload carries the fragment fields of the control container.
type FragmentPayload struct {
	EarlyFragmentTests  bool
	PostDepthCoverage   bool
	WritesDepth         bool
	NumColourResults    uint32
	PerSampleInvocation bool
}

func (*FragmentPayload) Stage() ir.Stage { return ir.StageFragment }

// ComputePayload has the same fields as the deko3d module's.
type ComputePayload = dksh.ComputePayload

// Program is the content of a container pair.
type Program struct {
	Stage              ir.Stage
	NumGPRs            uint32
	PerWarpScratchSize uint32
	Header             sph.Header

	// Code is padded to codegen.CodeAlign.
	Code []byte
	Data []byte

	Payload Payload
}

// NewProgram assembles a program from the results of one compilation.
func NewProgram(info *ir.ProgramInfo, m *ir.IOMap, a *codegen.Artifact, hdr sph.Header) *Program {
	p := &Program{
		Stage:              m.Stage,
		NumGPRs:            a.NumGPRs,
		PerWarpScratchSize: a.PerWarpScratchSize,
		Header:             hdr,
		Code:               a.Code,
		Data:               a.Data,
	}
	switch m.Stage {
	case ir.StageFragment:
		p.Payload = &FragmentPayload{
			EarlyFragmentTests:  m.Props.EarlyFragmentTests,
			PostDepthCoverage:   m.Props.PostDepthCoverage,
			WritesDepth:         len(m.OutputsWith(ir.SemanticPosition)) > 0,
			NumColourResults:    uint32(len(m.OutputsWith(ir.SemanticColor))),
			PerSampleInvocation: info.Fragment.SampleShading,
		}
	case ir.StageCompute:
		p.Payload = dksh.PayloadFor(info, m, a)
	}
	return p
}

// Sections are the computed sizes of a container pair.
type Sections struct {
	// ProgramSize counts the program header and the code.
	ProgramSize uint64

	// DataOffset is zero without constant data.
	DataOffset uint64

	// ShaderSize is the size of the GPU program container.
	ShaderSize uint64
}

// ComputeSections lays out code and data of the given sizes. It returns
// codegen.ErrOverflow when a size field cannot hold the result.
func ComputeSections(codeSize, dataSize uint64) (Sections, error) {
	var s Sections
	codeEnd := CodeOffset + codeSize
	s.ProgramSize = sph.Size + codeSize
	s.ShaderSize = codeEnd
	if dataSize > 0 {
		s.DataOffset = layout.AlignUp(codeEnd, uint64(layout.SectionAlign))
		s.ShaderSize = layout.AlignUp(s.DataOffset+dataSize, uint64(layout.SectionAlign))
	}
	if codeEnd < codeSize || s.DataOffset < codeEnd && dataSize > 0 || s.ShaderSize < codeEnd ||
		!layout.Fits32(s.ShaderSize) || !layout.Fits32(dataSize) {
		return Sections{}, fmt.Errorf("%w: nvn code %d data %d", codegen.ErrOverflow, codeSize, dataSize)
	}
	return s, nil
}

func (p *Program) validate() error {
	if !p.Stage.Valid() {
		return fmt.Errorf("nvn: invalid stage %d", uint8(p.Stage))
	}
	if len(p.Code) == 0 || len(p.Code)%codegen.CodeAlign != 0 {
		return fmt.Errorf("nvn: code size %d is not a non-zero multiple of %d", len(p.Code), codegen.CodeAlign)
	}
	if p.Payload != nil && p.Payload.Stage() != p.Stage {
		return fmt.Errorf("nvn: %s payload for %s program", p.Payload.Stage(), p.Stage)
	}
	if p.Stage == ir.StageCompute && !p.Header.IsZero() {
		return fmt.Errorf("nvn: compute program with a shader program header")
	}
	return nil
}

func controlLayoutFor(stage ir.Stage) *layout.Layout {
	switch stage {
	case ir.StageFragment:
		return &fragmentLayout
	case ir.StageCompute:
		return &computeLayout
	default:
		return &otherLayout
	}
}

// EncodeControl returns the control container of p.
func EncodeControl(p *Program) ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	s, err := ComputeSections(uint64(len(p.Code)), uint64(len(p.Data)))
	if err != nil {
		return nil, err
	}

	buf := make([]byte, ControlSize)
	w := layout.NewWriter(controlLayoutFor(p.Stage), buf)
	w.U32("magic", ControlMagic)
	w.U32("major", MajorVersion)
	w.U32("minor", MinorVersion)
	w.U32("unk0", unk0)
	w.U32("unk1", unk1)
	w.U32("glasm_offset", glasmBase)
	w.U32("glasm_unk1", glasmUnk1)
	w.U32("unk2", controlUnk)
	w.U32("program_size", uint32(s.ProgramSize))
	w.U32("const_buf_size", uint32(len(p.Data)))
	w.U32("const_buf_offset", uint32(s.DataOffset))
	w.U32("shader_size", uint32(s.ShaderSize))
	w.U32("program_offset", ProgramOffset)
	w.U32("num_regs", p.NumGPRs)
	w.U32("per_warp_scratch_sz", p.PerWarpScratchSize)
	w.U32("stage", uint32(p.Stage))

	switch pl := p.Payload.(type) {
	case *FragmentPayload:
		w.Bool("early_fragment_tests", pl.EarlyFragmentTests)
		w.Bool("post_depth_coverage", pl.PostDepthCoverage)
		w.Bool("writes_depth", pl.WritesDepth)
		w.U32("num_colour_results", pl.NumColourResults)
		w.Bool("per_sample_invocation", pl.PerSampleInvocation)
	case *ComputePayload:
		pl.Put(w)
	}
	return buf, nil
}

// EncodeProgram returns the GPU program container of p.
func EncodeProgram(p *Program) ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	s, err := ComputeSections(uint64(len(p.Code)), uint64(len(p.Data)))
	if err != nil {
		return nil, err
	}

	buf := make([]byte, s.ShaderSize)
	layout.NewWriter(&programLayout, buf).U32("magic", ProgramMagic)
	p.Header.Put(buf[SPHOffset:])
	copy(buf[CodeOffset:], p.Code)
	copy(buf[s.DataOffset:], p.Data)
	return buf, nil
}

// Encode returns both containers of p.
func Encode(p *Program) (control, program []byte, err error) {
	if control, err = EncodeControl(p); err != nil {
		return nil, nil, err
	}
	if program, err = EncodeProgram(p); err != nil {
		return nil, nil, err
	}
	return control, program, nil
}

// Control is a decoded control container.
type Control struct {
	MajorVersion       uint32
	MinorVersion       uint32
	Stage              ir.Stage
	ProgramSize        uint32
	ConstBufSize       uint32
	ConstBufOffset     uint32
	ShaderSize         uint32
	ProgramOffset      uint32
	NumGPRs            uint32
	PerWarpScratchSize uint32
	Payload            Payload
}

// CodeSize returns the machine code size recorded by the control
// container.
func (c *Control) CodeSize() uint32 { return c.ProgramSize - sph.Size }

// DecodeControl parses a control container.
func DecodeControl(b []byte) (*Control, error) {
	if len(b) != ControlSize {
		return nil, fmt.Errorf("%w: control size %#x, want %#x", ErrMalformed, len(b), ControlSize)
	}
	r := layout.NewReader(&otherLayout, b)
	fixed := []struct {
		name string
		want uint32
	}{
		{"magic", ControlMagic},
		{"major", MajorVersion},
		{"unk0", unk0},
		{"unk1", unk1},
		{"glasm_offset", glasmBase},
		{"glasm_size", 0},
		{"glasm_unk0", 0},
		{"glasm_unk1", glasmUnk1},
		{"unk2", controlUnk},
		{"unk3", 0},
		{"program_offset", ProgramOffset},
	}
	for _, f := range fixed {
		if got := r.U32(f.name); got != f.want {
			return nil, fmt.Errorf("%w: %s = %#x, want %#x", ErrMalformed, f.name, got, f.want)
		}
	}

	c := &Control{
		MajorVersion:       r.U32("major"),
		MinorVersion:       r.U32("minor"),
		Stage:              ir.Stage(r.U32("stage")),
		ProgramSize:        r.U32("program_size"),
		ConstBufSize:       r.U32("const_buf_size"),
		ConstBufOffset:     r.U32("const_buf_offset"),
		ShaderSize:         r.U32("shader_size"),
		ProgramOffset:      r.U32("program_offset"),
		NumGPRs:            r.U32("num_regs"),
		PerWarpScratchSize: r.U32("per_warp_scratch_sz"),
	}
	if c.MinorVersion < MinorVersion {
		return nil, fmt.Errorf("%w: minor version %d", ErrMalformed, c.MinorVersion)
	}
	if !c.Stage.Valid() {
		return nil, fmt.Errorf("%w: stage %d", ErrMalformed, uint32(c.Stage))
	}
	l := controlLayoutFor(c.Stage)
	if off := l.CheckReserved(b); off >= 0 {
		return nil, fmt.Errorf("%w: non-zero reserved byte at %#x", ErrMalformed, off)
	}

	if c.ProgramSize <= sph.Size || c.CodeSize()%codegen.CodeAlign != 0 {
		return nil, fmt.Errorf("%w: program size %#x", ErrMalformed, c.ProgramSize)
	}
	s, err := ComputeSections(uint64(c.CodeSize()), uint64(c.ConstBufSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if uint64(c.ConstBufOffset) != s.DataOffset || uint64(c.ShaderSize) != s.ShaderSize {
		return nil, fmt.Errorf("%w: const buffer %#x shader size %#x inconsistent with program size %#x",
			ErrMalformed, c.ConstBufOffset, c.ShaderSize, c.ProgramSize)
	}

	pr := layout.NewReader(l, b)
	switch c.Stage {
	case ir.StageFragment:
		c.Payload = &FragmentPayload{
			EarlyFragmentTests:  pr.Bool("early_fragment_tests"),
			PostDepthCoverage:   pr.Bool("post_depth_coverage"),
			WritesDepth:         pr.Bool("writes_depth"),
			NumColourResults:    pr.U32("num_colour_results"),
			PerSampleInvocation: pr.Bool("per_sample_invocation"),
		}
	case ir.StageCompute:
		c.Payload = dksh.ReadComputePayload(pr)
	}
	return c, nil
}

// DecodeProgram parses a GPU program container described by c.
func DecodeProgram(b []byte, c *Control) (*Program, error) {
	if uint64(len(b)) != uint64(c.ShaderSize) {
		return nil, fmt.Errorf("%w: program size %#x, control says %#x", ErrMalformed, len(b), c.ShaderSize)
	}
	if len(b) < CodeOffset {
		return nil, fmt.Errorf("%w: program shorter than its header", ErrMalformed)
	}
	if got := layout.NewReader(&programLayout, b).U32("magic"); got != ProgramMagic {
		return nil, fmt.Errorf("%w: program magic %#x", ErrMalformed, got)
	}
	if off := programLayout.CheckReserved(b); off >= 0 {
		return nil, fmt.Errorf("%w: non-zero reserved byte at %#x", ErrMalformed, off)
	}
	hdr, err := sph.Decode(b[SPHOffset:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	codeEnd := uint64(CodeOffset) + uint64(c.CodeSize())
	if codeEnd > uint64(len(b)) {
		return nil, fmt.Errorf("%w: code runs past the container", ErrMalformed)
	}
	p := &Program{
		Stage:              c.Stage,
		NumGPRs:            c.NumGPRs,
		PerWarpScratchSize: c.PerWarpScratchSize,
		Header:             hdr,
		Code:               append([]byte(nil), b[CodeOffset:codeEnd]...),
		Payload:            c.Payload,
	}

	tail := b[codeEnd:]
	if c.ConstBufSize > 0 {
		dataEnd := uint64(c.ConstBufOffset) + uint64(c.ConstBufSize)
		if uint64(c.ConstBufOffset) < codeEnd || dataEnd > uint64(len(b)) {
			return nil, fmt.Errorf("%w: const buffer %#x+%#x outside the container", ErrMalformed, c.ConstBufOffset, c.ConstBufSize)
		}
		p.Data = append([]byte(nil), b[c.ConstBufOffset:dataEnd]...)
		if !zero(b[codeEnd:c.ConstBufOffset]) {
			return nil, fmt.Errorf("%w: code padding is not zero", ErrMalformed)
		}
		tail = b[dataEnd:]
	}
	if !zero(tail) {
		return nil, fmt.Errorf("%w: trailing padding is not zero", ErrMalformed)
	}
	return p, nil
}

func zero(b []byte) bool {
	return len(bytes.TrimLeft(b, "\x00")) == 0
}
