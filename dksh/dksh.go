// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package dksh encodes and decodes deko3d shader modules.
//
// A module holds one program:
//
//	0x000  module header (0x18 bytes)
//	0x018  program header (0x40 bytes)
//	0x100  code section: 0x30 zero bytes, shader program header at 0x30,
//	       machine code at 0x80, constant data at the next 256-byte
//	       boundary, then padding to 256 bytes
//
// All offsets inside the program header are relative to the code section.
// Every byte outside a named field is zero.
package dksh

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gogpu/uam/codegen"
	"github.com/gogpu/uam/internal/layout"
	"github.com/gogpu/uam/ir"
	"github.com/gogpu/uam/sph"
)

// ErrMalformed is wrapped by every decoding failure.
var ErrMalformed = errors.New("dksh: malformed module")

// Module is the content of a shader module.
type Module struct {
	Stage              ir.Stage
	NumGPRs            uint32
	PerWarpScratchSize uint32

	// Header is the shader program header. It must be zero for compute.
	Header sph.Header

	// Code is the machine code, padded to codegen.CodeAlign.
	Code []byte

	// Data is bound as constant buffer 1.
	Data []byte

	// Payload must be nil or belong to Stage.
	Payload Payload
}

// NewModule assembles a module from the results of one compilation.
func NewModule(info *ir.ProgramInfo, m *ir.IOMap, a *codegen.Artifact, hdr sph.Header) *Module {
	return &Module{
		Stage:              m.Stage,
		NumGPRs:            a.NumGPRs,
		PerWarpScratchSize: a.PerWarpScratchSize,
		Header:             hdr,
		Code:               a.Code,
		Data:               a.Data,
		Payload:            PayloadFor(info, m, a),
	}
}

// Sections are the computed offsets and sizes of an encoded module. All
// values are relative to the code section except Total.
type Sections struct {
	CodeEnd    uint64
	DataOffset uint64
	CodeSize   uint64
	Total      uint64
}

// ComputeSections lays out code and data of the given sizes. It returns
// codegen.ErrOverflow when a size field cannot hold the result.
func ComputeSections(codeSize, dataSize uint64) (Sections, error) {
	var s Sections
	s.CodeEnd = CodeOffset + codeSize
	s.DataOffset = layout.AlignUp(s.CodeEnd, uint64(layout.SectionAlign))
	s.CodeSize = s.DataOffset + layout.AlignUp(dataSize, uint64(layout.SectionAlign))
	s.Total = ControlSize + s.CodeSize
	if s.CodeEnd < codeSize || s.DataOffset < s.CodeEnd || s.CodeSize < s.DataOffset ||
		!layout.Fits32(s.Total) || !layout.Fits32(dataSize) {
		return Sections{}, fmt.Errorf("%w: dksh code %d data %d", codegen.ErrOverflow, codeSize, dataSize)
	}
	return s, nil
}

// Encode returns the module bytes.
func Encode(m *Module) ([]byte, error) {
	if !m.Stage.Valid() {
		return nil, fmt.Errorf("dksh: invalid stage %d", uint8(m.Stage))
	}
	if len(m.Code) == 0 || len(m.Code)%codegen.CodeAlign != 0 {
		return nil, fmt.Errorf("dksh: code size %d is not a non-zero multiple of %d", len(m.Code), codegen.CodeAlign)
	}
	if m.Payload != nil && m.Payload.Stage() != m.Stage {
		return nil, fmt.Errorf("dksh: %s payload for %s program", m.Payload.Stage(), m.Stage)
	}
	if m.Stage == ir.StageCompute && !m.Header.IsZero() {
		return nil, fmt.Errorf("dksh: compute program with a shader program header")
	}

	s, err := ComputeSections(uint64(len(m.Code)), uint64(len(m.Data)))
	if err != nil {
		return nil, err
	}

	buf := make([]byte, s.Total)

	hw := layout.NewWriter(&headerLayout, buf)
	hw.U32("magic", Magic)
	hw.U32("header_sz", HeaderSize)
	hw.U32("control_sz", ControlSize)
	hw.U32("code_sz", uint32(s.CodeSize))
	hw.U32("programs_off", ProgramsOffset)
	hw.U32("num_programs", 1)

	pl := layoutFor(m.Stage)
	pw := layout.NewWriter(pl, buf[ProgramsOffset:])
	pw.U32("type", uint32(m.Stage))
	pw.U32("entrypoint", EntryPoint(m.Stage))
	pw.U32("num_gprs", m.NumGPRs)
	if len(m.Data) > 0 {
		pw.U32("constbuf1_off", uint32(s.DataOffset))
		pw.U32("constbuf1_sz", uint32(len(m.Data)))
	}
	pw.U32("per_warp_scratch_sz", m.PerWarpScratchSize)
	if m.Payload != nil {
		m.Payload.put(pw)
	}

	code := buf[ControlSize:]
	m.Header.Put(code[SPHOffset:])
	copy(code[CodeOffset:], m.Code)
	copy(code[s.DataOffset:], m.Data)
	return buf, nil
}

// Decode parses a module produced by Encode. The module records only the
// section-aligned code size, so the code of the result runs to the next
// layout.SectionAlign boundary and keeps the alignment zeros.
func Decode(b []byte) (*Module, error) {
	if len(b) < ControlSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the control section", ErrMalformed, len(b))
	}
	hr := layout.NewReader(&headerLayout, b)
	if got := hr.U32("magic"); got != Magic {
		return nil, fmt.Errorf("%w: magic %#x", ErrMalformed, got)
	}
	for _, f := range []struct {
		name string
		want uint32
	}{
		{"header_sz", HeaderSize},
		{"control_sz", ControlSize},
		{"programs_off", ProgramsOffset},
		{"num_programs", 1},
	} {
		if got := hr.U32(f.name); got != f.want {
			return nil, fmt.Errorf("%w: %s = %#x, want %#x", ErrMalformed, f.name, got, f.want)
		}
	}
	codeSize := uint64(hr.U32("code_sz"))
	if uint64(len(b)) != ControlSize+codeSize {
		return nil, fmt.Errorf("%w: length %#x, header says %#x", ErrMalformed, len(b), ControlSize+codeSize)
	}
	if codeSize%layout.SectionAlign != 0 || codeSize < layout.SectionAlign {
		return nil, fmt.Errorf("%w: code_sz %#x is not a multiple of %#x", ErrMalformed, codeSize, layout.SectionAlign)
	}
	if off := headerLayout.CheckReserved(b); off >= 0 {
		return nil, fmt.Errorf("%w: non-zero reserved byte at %#x", ErrMalformed, off)
	}

	prog := b[ProgramsOffset : ProgramsOffset+ProgramHeaderSize]
	stage := ir.Stage(layout.NewReader(&otherLayout, prog).U32("type"))
	if !stage.Valid() {
		return nil, fmt.Errorf("%w: program type %d", ErrMalformed, uint8(stage))
	}
	pl := layoutFor(stage)
	if off := pl.CheckReserved(prog); off >= 0 {
		return nil, fmt.Errorf("%w: non-zero reserved byte at %#x", ErrMalformed, ProgramsOffset+off)
	}
	if end := ProgramsOffset + ProgramHeaderSize; !allZero(b[end:ControlSize]) {
		return nil, fmt.Errorf("%w: control padding is not zero", ErrMalformed)
	}

	pr := layout.NewReader(pl, prog)
	if got := pr.U32("entrypoint"); got != EntryPoint(stage) {
		return nil, fmt.Errorf("%w: entrypoint %#x for %s program", ErrMalformed, got, stage)
	}
	m := &Module{
		Stage:              stage,
		NumGPRs:            pr.U32("num_gprs"),
		PerWarpScratchSize: pr.U32("per_warp_scratch_sz"),
	}
	switch stage {
	case ir.StageFragment:
		m.Payload = readFragment(pr)
	case ir.StageCompute:
		m.Payload = ReadComputePayload(pr)
	}

	code := b[ControlSize:]
	if !allZero(code[:SPHOffset]) {
		return nil, fmt.Errorf("%w: code prefix is not zero", ErrMalformed)
	}
	hdr, err := sph.Decode(code[SPHOffset:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	m.Header = hdr

	codeEnd := codeSize
	dataOff := uint64(pr.U32("constbuf1_off"))
	dataSize := uint64(pr.U32("constbuf1_sz"))
	switch {
	case dataSize == 0 && dataOff != 0:
		return nil, fmt.Errorf("%w: constbuf1_off %#x without data", ErrMalformed, dataOff)
	case dataSize > 0:
		if dataOff%layout.SectionAlign != 0 || dataOff <= CodeOffset || dataOff+dataSize > codeSize {
			return nil, fmt.Errorf("%w: constbuf1 %#x+%#x outside code section %#x", ErrMalformed, dataOff, dataSize, codeSize)
		}
		if layout.AlignUp(dataOff+dataSize, uint64(layout.SectionAlign)) != codeSize {
			return nil, fmt.Errorf("%w: code_sz %#x inconsistent with constbuf1", ErrMalformed, codeSize)
		}
		if !allZero(code[dataOff+dataSize:]) {
			return nil, fmt.Errorf("%w: data padding is not zero", ErrMalformed)
		}
		m.Data = append([]byte(nil), code[dataOff:dataOff+dataSize]...)
		codeEnd = dataOff
	}

	m.Code = append([]byte(nil), code[CodeOffset:codeEnd]...)
	return m, nil
}

func allZero(b []byte) bool {
	return len(bytes.TrimLeft(b, "\x00")) == 0
}
