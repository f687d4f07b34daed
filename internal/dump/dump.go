// Package dump renders decoded shader containers as deterministic text,
// for the inspection tool and for golden comparisons.
package dump

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gogpu/uam/dksh"
	"github.com/gogpu/uam/ir"
	"github.com/gogpu/uam/nvn"
	"github.com/gogpu/uam/sph"
)

// Module writes a deko3d shader module.
func Module(w io.Writer, data []byte) error {
	m, err := dksh.Decode(data)
	if err != nil {
		return err
	}
	s, err := dksh.ComputeSections(uint64(len(m.Code)), uint64(len(m.Data)))
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "; deko3d shader module\n")
	fmt.Fprintf(w, "; Size: 0x%X\n", len(data))
	fmt.Fprintf(w, "; Stage: %s\n", m.Stage)
	fmt.Fprintf(w, "; Entrypoint: 0x%X\n", dksh.EntryPoint(m.Stage))
	fmt.Fprintf(w, "; GPRs: %d\n", m.NumGPRs)
	fmt.Fprintf(w, "; Per-warp scratch: 0x%X\n", m.PerWarpScratchSize)
	if len(m.Data) > 0 {
		fmt.Fprintf(w, "; Const buffer 1: offset 0x%X size 0x%X\n", s.DataOffset, len(m.Data))
	}
	switch p := m.Payload.(type) {
	case *dksh.FragmentPayload:
		fmt.Fprintf(w, "; Early fragment tests: %t\n", p.EarlyFragmentTests)
		fmt.Fprintf(w, "; Post depth coverage: %t\n", p.PostDepthCoverage)
		fmt.Fprintf(w, "; Sample shading: %t\n", p.SampleShading)
	case *dksh.ComputePayload:
		compute(w, p)
	}
	fmt.Fprintln(w)

	header(w, m.Stage, &m.Header)
	code(w, m.Code)
	return nil
}

// NVN writes an NVN control container and, when program is not nil, the
// GPU program it describes.
func NVN(w io.Writer, control, program []byte) error {
	c, err := nvn.DecodeControl(control)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "; NVN shader control\n")
	fmt.Fprintf(w, "; Version: %d.%d\n", c.MajorVersion, c.MinorVersion)
	fmt.Fprintf(w, "; Stage: %s\n", c.Stage)
	fmt.Fprintf(w, "; Program size: 0x%X\n", c.ProgramSize)
	fmt.Fprintf(w, "; Shader size: 0x%X\n", c.ShaderSize)
	fmt.Fprintf(w, "; GPRs: %d\n", c.NumGPRs)
	fmt.Fprintf(w, "; Per-warp scratch: 0x%X\n", c.PerWarpScratchSize)
	if c.ConstBufSize > 0 {
		fmt.Fprintf(w, "; Const buffer: offset 0x%X size 0x%X\n", c.ConstBufOffset, c.ConstBufSize)
	}
	switch p := c.Payload.(type) {
	case *nvn.FragmentPayload:
		fmt.Fprintf(w, "; Early fragment tests: %t\n", p.EarlyFragmentTests)
		fmt.Fprintf(w, "; Post depth coverage: %t\n", p.PostDepthCoverage)
		fmt.Fprintf(w, "; Writes depth: %t\n", p.WritesDepth)
		fmt.Fprintf(w, "; Colour results: %d\n", p.NumColourResults)
		fmt.Fprintf(w, "; Per-sample invocation: %t\n", p.PerSampleInvocation)
	case *nvn.ComputePayload:
		compute(w, p)
	}
	fmt.Fprintln(w)

	if program == nil {
		return nil
	}
	p, err := nvn.DecodeProgram(program, c)
	if err != nil {
		return err
	}
	header(w, p.Stage, &p.Header)
	code(w, p.Code)
	return nil
}

func compute(w io.Writer, p *dksh.ComputePayload) {
	fmt.Fprintf(w, "; Block dims: %d x %d x %d\n", p.BlockDims[0], p.BlockDims[1], p.BlockDims[2])
	fmt.Fprintf(w, "; Shared memory: 0x%X\n", p.SharedMemSize)
	fmt.Fprintf(w, "; Local memory: pos 0x%X neg 0x%X crs 0x%X\n", p.LocalPosMemSize, p.LocalNegMemSize, p.CRSSize)
	fmt.Fprintf(w, "; Barriers: %d\n", p.NumBarriers)
}

func header(w io.Writer, stage ir.Stage, h *sph.Header) {
	if !stage.IsGraphics() {
		return
	}
	kind := "VTG"
	if h.Type() == sph.TypePS {
		kind = "PS"
	}
	fmt.Fprintf(w, "; SPH: type %s version %d shader type %d kills pixels %t\n",
		kind, h.Version(), h.ShaderType(), h.KillsPixels())
	for i := 0; i < sph.Words; i += 4 {
		fmt.Fprintf(w, "; %2d: %08x %08x %08x %08x\n", i, h[i], h[i+1], h[i+2], h[i+3])
	}
	fmt.Fprintln(w)
}

// code lists the code one instruction word per line.
func code(w io.Writer, b []byte) {
	for off := 0; off+8 <= len(b); off += 8 {
		fmt.Fprintf(w, "/*%04x*/ %016x\n", off, binary.LittleEndian.Uint64(b[off:]))
	}
}
