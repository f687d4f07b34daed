// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package dksh

import (
	"github.com/gogpu/uam/internal/layout"
	"github.com/gogpu/uam/ir"
)

const (
	// Magic is "DKSH" in little endian.
	Magic = 0x48534B44

	HeaderSize        = 0x18
	ProgramHeaderSize = 0x40

	// ControlSize is the size of the control section: the module header
	// and one program header, aligned.
	ControlSize = 0x100

	// ProgramsOffset is the offset of the first program header.
	ProgramsOffset = HeaderSize

	// SPHOffset and CodeOffset are relative to the start of the code
	// section.
	SPHOffset  = 0x30
	CodeOffset = 0x80
)

var headerLayout = layout.Layout{
	Name: "dksh header",
	Size: HeaderSize,
	Fields: []layout.Field{
		{Name: "magic", Offset: 0x00, Size: 4},
		{Name: "header_sz", Offset: 0x04, Size: 4},
		{Name: "control_sz", Offset: 0x08, Size: 4},
		{Name: "code_sz", Offset: 0x0C, Size: 4},
		{Name: "programs_off", Offset: 0x10, Size: 4},
		{Name: "num_programs", Offset: 0x14, Size: 4},
	},
}

var programFields = []layout.Field{
	{Name: "type", Offset: 0x00, Size: 4},
	{Name: "entrypoint", Offset: 0x04, Size: 4},
	{Name: "num_gprs", Offset: 0x08, Size: 4},
	{Name: "constbuf1_off", Offset: 0x0C, Size: 4},
	{Name: "constbuf1_sz", Offset: 0x10, Size: 4},
	{Name: "per_warp_scratch_sz", Offset: 0x14, Size: 4},
}

func programLayout(name string, payload ...layout.Field) layout.Layout {
	return layout.Layout{
		Name:   name,
		Size:   ProgramHeaderSize,
		Fields: append(append([]layout.Field(nil), programFields...), payload...),
	}
}

var (
	// The fragment table fields are written zero; other toolchains fill
	// them, so decoding accepts any value.
	fragmentLayout = programLayout("dksh fragment program",
		layout.Field{Name: "has_table_3d1", Offset: 0x18, Size: 1},
		layout.Field{Name: "early_fragment_tests", Offset: 0x19, Size: 1},
		layout.Field{Name: "post_depth_coverage", Offset: 0x1A, Size: 1},
		layout.Field{Name: "sample_shading", Offset: 0x1B, Size: 1},
		layout.Field{Name: "table_3d1", Offset: 0x1C, Size: 16},
		layout.Field{Name: "param_d8", Offset: 0x2C, Size: 4},
		layout.Field{Name: "param_65b", Offset: 0x30, Size: 2},
		layout.Field{Name: "param_489", Offset: 0x32, Size: 2},
	)

	computeLayout = programLayout("dksh compute program",
		layout.Field{Name: "block_dims", Offset: 0x18, Size: 12},
		layout.Field{Name: "shared_mem_sz", Offset: 0x24, Size: 4},
		layout.Field{Name: "local_pos_mem_sz", Offset: 0x28, Size: 4},
		layout.Field{Name: "local_neg_mem_sz", Offset: 0x2C, Size: 4},
		layout.Field{Name: "crs_sz", Offset: 0x30, Size: 4},
		layout.Field{Name: "num_barriers", Offset: 0x34, Size: 4},
	)

	otherLayout = programLayout("dksh program")
)

func layoutFor(stage ir.Stage) *layout.Layout {
	switch stage {
	case ir.StageFragment:
		return &fragmentLayout
	case ir.StageCompute:
		return &computeLayout
	default:
		return &otherLayout
	}
}

// EntryPoint returns the entry point offset of a stage relative to the code
// section. Graphics programs start at their header, compute programs at the
// first instruction.
func EntryPoint(stage ir.Stage) uint32 {
	if stage == ir.StageCompute {
		return CodeOffset
	}
	return SPHOffset
}
