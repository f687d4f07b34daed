// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package dksh

import (
	"github.com/gogpu/uam/codegen"
	"github.com/gogpu/uam/internal/layout"
	"github.com/gogpu/uam/ir"
)

// Payload is the stage-specific part of a program header. Exactly one
// implementation exists per stage that has one.
type Payload interface {
	// Stage returns the stage the payload belongs to.
	Stage() ir.Stage

	put(w *layout.Writer)
}

// FragmentPayload carries the fragment program flags.
type FragmentPayload struct {
	EarlyFragmentTests bool
	PostDepthCoverage  bool
	SampleShading      bool
}

func (*FragmentPayload) Stage() ir.Stage { return ir.StageFragment }

func (p *FragmentPayload) put(w *layout.Writer) {
	w.Bool("early_fragment_tests", p.EarlyFragmentTests)
	w.Bool("post_depth_coverage", p.PostDepthCoverage)
	w.Bool("sample_shading", p.SampleShading)
}

func readFragment(r *layout.Reader) *FragmentPayload {
	return &FragmentPayload{
		EarlyFragmentTests: r.Bool("early_fragment_tests"),
		PostDepthCoverage:  r.Bool("post_depth_coverage"),
		SampleShading:      r.Bool("sample_shading"),
	}
}

// ComputePayload carries the compute dispatch parameters.
type ComputePayload struct {
	BlockDims       [3]uint32
	SharedMemSize   uint32
	LocalPosMemSize uint32
	LocalNegMemSize uint32
	CRSSize         uint32
	NumBarriers     uint32
}

func (*ComputePayload) Stage() ir.Stage { return ir.StageCompute }

func (p *ComputePayload) put(w *layout.Writer) {
	w.U32s("block_dims", p.BlockDims[:])
	w.U32("shared_mem_sz", p.SharedMemSize)
	w.U32("local_pos_mem_sz", p.LocalPosMemSize)
	w.U32("local_neg_mem_sz", p.LocalNegMemSize)
	w.U32("crs_sz", p.CRSSize)
	w.U32("num_barriers", p.NumBarriers)
}

// Put writes p through w. w must cover a layout with the compute payload
// field names.
func (p *ComputePayload) Put(w *layout.Writer) { p.put(w) }

// ReadComputePayload reads a compute payload through r.
func ReadComputePayload(r *layout.Reader) *ComputePayload {
	var p ComputePayload
	copy(p.BlockDims[:], r.U32s("block_dims"))
	p.SharedMemSize = r.U32("shared_mem_sz")
	p.LocalPosMemSize = r.U32("local_pos_mem_sz")
	p.LocalNegMemSize = r.U32("local_neg_mem_sz")
	p.CRSSize = r.U32("crs_sz")
	p.NumBarriers = r.U32("num_barriers")
	return &p
}

// PayloadFor derives the payload of a program from its register assignment
// and generated code. It returns nil for stages without a payload.
func PayloadFor(info *ir.ProgramInfo, m *ir.IOMap, a *codegen.Artifact) Payload {
	switch m.Stage {
	case ir.StageFragment:
		return &FragmentPayload{
			EarlyFragmentTests: m.Props.EarlyFragmentTests,
			PostDepthCoverage:  m.Props.PostDepthCoverage,
			SampleShading:      info.Fragment.SampleShading,
		}
	case ir.StageCompute:
		return &ComputePayload{
			BlockDims:       m.Props.WorkgroupSize,
			SharedMemSize:   m.Props.SharedMemorySize,
			LocalPosMemSize: a.LocalPosMemSize,
			LocalNegMemSize: a.LocalNegMemSize,
			CRSSize:         a.CRSSize,
			NumBarriers:     a.NumBarriers,
		}
	}
	return nil
}
