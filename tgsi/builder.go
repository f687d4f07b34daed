package tgsi

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/uam/ir"
)

// Options configures IR construction.
type Options struct {
	// ResourceBindingOffset is added to every resource binding. The GLSLC
	// binding scheme uses 1.
	ResourceBindingOffset uint32
}

// Program is a finished token stream.
type Program struct {
	Stage  ir.Stage
	Tokens []uint32

	// NumInstructions counts body instructions, excluding END.
	NumInstructions int
}

// Bytes returns the token stream as little-endian bytes.
func (p *Program) Bytes() []byte {
	out := make([]byte, 4*len(p.Tokens))
	for i, w := range p.Tokens {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

// Text returns the human-readable dump of the program.
func (p *Program) Text() (string, error) {
	return Disassemble(p.Tokens)
}

// Builder assembles a token stream section by section. It implements
// ir.Emitter for the front end's translation routine.
type Builder struct {
	stage      ir.Stage
	properties []Instruction
	decls      []Instruction
	body       []Instruction
}

// NewBuilder creates a builder for the given stage.
func NewBuilder(stage ir.Stage) *Builder {
	return &Builder{stage: stage}
}

// SetProperty declares a program property.
func (b *Builder) SetProperty(p Property, value uint32) {
	var ib instBuilder
	b.properties = append(b.properties, ib.word(uint32(p)).word(value).build(OpProperty))
}

// DeclareInput declares an input register.
func (b *Builder) DeclareInput(index int, sem ir.Semantic, semIndex uint32, interp ir.Interpolation) {
	var ib instBuilder
	ib.word(uint32(index)).word(uint32(sem)).word(semIndex).word(uint32(interp))
	b.decls = append(b.decls, ib.build(OpDeclInput))
}

// DeclareOutput declares an output register.
func (b *Builder) DeclareOutput(index int, sem ir.Semantic, semIndex uint32) {
	var ib instBuilder
	ib.word(uint32(index)).word(uint32(sem)).word(semIndex)
	b.decls = append(b.decls, ib.build(OpDeclOutput))
}

// DeclareResource declares a resource binding.
func (b *Builder) DeclareResource(kind ir.ResourceKind, binding uint32) {
	var ib instBuilder
	b.decls = append(b.decls, ib.word(uint32(kind)).word(binding).build(OpDeclResource))
}

// Inst appends a body instruction.
func (b *Builder) Inst(op string, operands ...string) {
	var ib instBuilder
	ib.str(op)
	for _, o := range operands {
		ib.str(o)
	}
	b.body = append(b.body, ib.build(OpInst))
}

// Finish terminates the program with END and returns the token stream.
func (b *Builder) Finish() *Program {
	var ib instBuilder
	header := ib.word(uint32(b.stage)).build(OpHeader)

	var tokens []uint32
	tokens = append(tokens, header.Encode()...)
	for _, section := range [][]Instruction{b.properties, b.decls, b.body} {
		for _, inst := range section {
			tokens = append(tokens, inst.Encode()...)
		}
	}
	tokens = append(tokens, Instruction{Opcode: OpEnd}.Encode()...)

	return &Program{Stage: b.stage, Tokens: tokens, NumInstructions: len(b.body)}
}

// Build declares the registers and properties of m, runs the program body
// and returns the finished token stream.
func Build(prog *ir.Program, m *ir.IOMap, opts Options) (*Program, error) {
	if prog.Info.Stage != m.Stage {
		return nil, fmt.Errorf("tgsi: program stage %s does not match mapping stage %s", prog.Info.Stage, m.Stage)
	}

	b := NewBuilder(m.Stage)
	declareProperties(b, m)

	for _, in := range m.Inputs {
		if in.Placeholder || in.Synthetic {
			continue
		}
		b.DeclareInput(in.Index, in.Semantic, in.SemanticIndex, in.Interp)
	}
	for _, out := range m.Outputs {
		if out.Synthetic {
			continue
		}
		b.DeclareOutput(out.Index, out.Semantic, out.SemanticIndex)
	}
	for _, r := range prog.Info.Resources {
		b.DeclareResource(r.Kind, r.Binding+opts.ResourceBindingOffset)
	}

	if prog.Body != nil {
		if err := prog.Body.Translate(b, m); err != nil {
			return nil, fmt.Errorf("tgsi: translate %s program: %w", m.Stage, err)
		}
	}
	return b.Finish(), nil
}

func declareProperties(b *Builder, m *ir.IOMap) {
	p := &m.Props
	if p.NumClipDistances > 0 {
		b.SetProperty(PropNumClipDistEnabled, uint32(p.NumClipDistances))
	}
	if p.NumCullDistances > 0 {
		b.SetProperty(PropNumCullDistEnabled, uint32(p.NumCullDistances))
	}

	switch m.Stage {
	case ir.StageFragment:
		if p.Color0WritesAllCbufs {
			b.SetProperty(PropFSColor0WritesAllCbufs, 1)
		}
		if p.DepthLayout != ir.DepthLayoutNone {
			b.SetProperty(PropFSDepthLayout, uint32(p.DepthLayout))
		}
		if p.EarlyFragmentTests {
			b.SetProperty(PropFSEarlyDepthStencil, 1)
		}
		if p.PostDepthCoverage {
			b.SetProperty(PropFSPostDepthCoverage, 1)
		}
	case ir.StageCompute:
		b.SetProperty(PropCSFixedBlockWidth, p.WorkgroupSize[0])
		b.SetProperty(PropCSFixedBlockHeight, p.WorkgroupSize[1])
		b.SetProperty(PropCSFixedBlockDepth, p.WorkgroupSize[2])
		if p.SharedMemorySize > 0 {
			b.SetProperty(PropCSSharedMemory, p.SharedMemorySize)
		}
	case ir.StageGeometry:
		b.SetProperty(PropGSInputPrim, uint32(p.InputPrimitive))
		b.SetProperty(PropGSOutputPrim, uint32(p.OutputPrimitive))
		b.SetProperty(PropGSMaxOutputVertices, p.MaxOutputVertices)
		b.SetProperty(PropGSInvocations, p.Invocations)
	case ir.StageTessControl:
		b.SetProperty(PropTCSVerticesOut, p.OutputVertices)
	}
}
