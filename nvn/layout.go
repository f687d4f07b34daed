// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package nvn

import "github.com/gogpu/uam/internal/layout"

const (
	ControlMagic = 0x98761234
	ProgramMagic = 0x12345678

	MajorVersion = 1

	// MinorVersion is the lowest minor version that knows every field the
	// encoder writes. Runtimes accept older minors, so nothing newer is
	// ever emitted.
	MinorVersion = 5

	// ControlSize is the size of the control container.
	ControlSize = 0x7C8

	// SPHOffset and CodeOffset locate the shader program header and the
	// machine code in the GPU program.
	SPHOffset  = 0x30
	CodeOffset = 0x80

	// ProgramOffset is the value of the control program_offset field.
	ProgramOffset = SPHOffset

	unk0       = 120
	unk1       = 0xB
	glasmBase  = ControlSize - 8
	glasmUnk1  = ControlSize - 7
	controlUnk = ControlSize - 7
)

func u32(name string, off int) layout.Field { return layout.Field{Name: name, Offset: off, Size: 4} }
func u8(name string, off int) layout.Field  { return layout.Field{Name: name, Offset: off, Size: 1} }

var controlFields = []layout.Field{
	u32("magic", 0x000),
	u32("major", 0x004),
	u32("minor", 0x008),
	u32("unk0", 0x00C),
	u32("unk1", 0x010),
	u32("glasm_offset", 0x014),
	u32("glasm_size", 0x018),
	u32("glasm_unk0", 0x01C),
	u32("glasm_unk1", 0x020),
	u32("unk2", 0x6F0),
	u32("unk3", 0x6F4),
	u32("program_size", 0x6F8),
	u32("const_buf_size", 0x6FC),
	u32("const_buf_offset", 0x700),
	u32("shader_size", 0x704),
	u32("program_offset", 0x708),
	u32("num_regs", 0x70C),
	u32("per_warp_scratch_sz", 0x710),
	u32("stage", 0x714),
}

func controlLayout(name string, payload ...layout.Field) layout.Layout {
	return layout.Layout{
		Name:   name,
		Size:   ControlSize,
		Fields: append(append([]layout.Field(nil), controlFields...), payload...),
	}
}

var (
	fragmentLayout = controlLayout("nvn fragment control",
		u8("early_fragment_tests", 0x718),
		u8("post_depth_coverage", 0x719),
		u8("writes_depth", 0x71C),
		u32("num_colour_results", 0x734),
		u8("per_sample_invocation", 0x74A),
	)

	// The compute fields share their names with the deko3d module so the
	// same payload code reads and writes both.
	computeLayout = controlLayout("nvn compute control",
		layout.Field{Name: "block_dims", Offset: 0x748, Size: 12},
		u32("shared_mem_sz", 0x754),
		u32("local_pos_mem_sz", 0x758),
		u32("local_neg_mem_sz", 0x75C),
		u32("crs_sz", 0x760),
		u32("num_barriers", 0x764),
	)

	otherLayout = controlLayout("nvn control")

	programLayout = layout.Layout{
		Name:   "nvn gpu program",
		Size:   SPHOffset,
		Fields: []layout.Field{u32("magic", 0x00)},
	}
)
