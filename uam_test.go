package uam

import (
	"bytes"
	"encoding/binary"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/uam/codegen"
	"github.com/gogpu/uam/dksh"
	"github.com/gogpu/uam/emit"
	"github.com/gogpu/uam/ir"
	"github.com/gogpu/uam/nvn"
	"github.com/gogpu/uam/tgsi"
)

type body [][]string

func (b body) Translate(e ir.Emitter, _ *ir.IOMap) error {
	for _, inst := range b {
		e.Inst(inst[0], inst[1:]...)
	}
	return nil
}

// fixed returns a front end that always produces prog.
func fixed(prog ir.Program) FrontEnd {
	return FrontEndFunc(func([]byte, ir.Stage) (*ir.Program, error) {
		p := prog
		return &p, nil
	})
}

func code(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i + 1)
	}
	return b
}

func vertexProgram() ir.Program {
	return ir.Program{
		Info: ir.ProgramInfo{
			Stage:          ir.StageVertex,
			InputsRead:     ir.MaskOf(ir.VertAttribPos, ir.VertAttribGeneric0),
			OutputsWritten: ir.MaskOf(ir.VaryingPos, ir.VaryingVar0),
		},
		Body: body{{"MOV", "OUT[0]", "IN[0]"}, {"MOV", "OUT[1]", "IN[1]"}},
	}
}

func prebuilt(stage ir.Stage, codeSize, dataSize int) *codegen.Prebuilt {
	return &codegen.Prebuilt{
		Stage: stage,
		Artifact: codegen.Artifact{
			Code:    code(codeSize),
			Data:    code(dataSize),
			NumGPRs: 8,
		},
	}
}

func compileOK(t *testing.T, prog ir.Program, gen codegen.Generator, opts Options) *Compiler {
	t.Helper()
	c, err := Compile(nil, prog.Info.Stage, fixed(prog), gen, opts)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if c.State() != StateCodeGenerated {
		t.Fatalf("state = %s, want %s", c.State(), StateCodeGenerated)
	}
	t.Cleanup(c.Close)
	return c
}

func TestCompile_Vertex(t *testing.T) {
	c := compileOK(t, vertexProgram(), prebuilt(ir.StageVertex, 0x30, 0x24), DefaultOptions())

	if n := c.IOMap().NumInputs(); n != 2 {
		t.Errorf("NumInputs = %d, want 2", n)
	}

	raw, err := c.RawCode()
	if err != nil {
		t.Fatalf("RawCode: %v", err)
	}
	if len(raw) != 0x40 || !bytes.Equal(raw[:0x30], code(0x30)) {
		t.Errorf("raw code = %d bytes, want the code padded to 0x40", len(raw))
	}

	module, err := c.Module()
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	m, err := dksh.Decode(module)
	if err != nil {
		t.Fatalf("decode module: %v", err)
	}
	if m.Stage != ir.StageVertex || m.NumGPRs != 8 {
		t.Errorf("module stage %s gprs %d", m.Stage, m.NumGPRs)
	}
	if !bytes.Equal(m.Data, code(0x24)) {
		t.Errorf("module data = %x", m.Data)
	}
	if m.Header.IsZero() {
		t.Error("vertex module has no program header")
	}

	text, err := c.IRText()
	if err != nil {
		t.Fatalf("IRText: %v", err)
	}
	if !strings.HasPrefix(string(text), "VERT\n") || !strings.Contains(string(text), "DCL OUT[0], POSITION") {
		t.Errorf("IR text:\n%s", text)
	}

	control, program, err := c.NVN()
	if err != nil {
		t.Fatalf("NVN: %v", err)
	}
	ctl, err := nvn.DecodeControl(control)
	if err != nil {
		t.Fatalf("decode control: %v", err)
	}
	if _, err := nvn.DecodeProgram(program, ctl); err != nil {
		t.Fatalf("decode program: %v", err)
	}

	// Output requests never change the state.
	if c.State() != StateCodeGenerated {
		t.Errorf("state after outputs = %s", c.State())
	}
}

func TestCompile_FragmentDualSource(t *testing.T) {
	prog := ir.Program{
		Info: ir.ProgramInfo{
			Stage:                   ir.StageFragment,
			InputsRead:              ir.MaskOf(ir.VaryingVar0),
			OutputsWritten:          ir.MaskOf(ir.FragResultData0),
			SecondaryOutputsWritten: ir.MaskOf(ir.FragResultData0),
			Resources:               []ir.Resource{{Kind: ir.ResourceSampler, Binding: 0}},
		},
		Body: body{{"TEX", "TEMP[0]", "IN[0]", "SAMP[1]"}},
	}
	opts := DefaultOptions()
	opts.GlslcBindings = true
	c := compileOK(t, prog, prebuilt(ir.StageFragment, 0x40, 0), opts)

	colors := c.IOMap().OutputsWith(ir.SemanticColor)
	if len(colors) != 2 || colors[1].SemanticIndex != 1 || !colors[1].Secondary {
		t.Fatalf("color outputs = %v, want COLOR[0] and secondary COLOR[1]", colors)
	}

	text, err := c.IRText()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(text), "DCL SAMP[1]") {
		t.Errorf("sampler binding not offset:\n%s", text)
	}

	control, _, err := c.NVN()
	if err != nil {
		t.Fatal(err)
	}
	ctl, err := nvn.DecodeControl(control)
	if err != nil {
		t.Fatal(err)
	}
	fp, ok := ctl.Payload.(*nvn.FragmentPayload)
	if !ok {
		t.Fatalf("payload = %T, want fragment", ctl.Payload)
	}
	if fp.NumColourResults != 2 {
		t.Errorf("NumColourResults = %d, want 2", fp.NumColourResults)
	}
}

func TestCompile_Compute(t *testing.T) {
	prog := ir.Program{Info: ir.ProgramInfo{
		Stage:   ir.StageCompute,
		Compute: ir.ComputeInfo{WorkgroupSize: [3]uint32{64, 1, 1}, SharedMemorySize: 0x400},
	}}
	gen := prebuilt(ir.StageCompute, 0x80, 0)
	gen.Artifact.NumBarriers = 1
	c := compileOK(t, prog, gen, DefaultOptions())

	module, err := c.Module()
	if err != nil {
		t.Fatal(err)
	}
	m, err := dksh.Decode(module)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Header.IsZero() {
		t.Error("compute module carries a program header")
	}
	cp, ok := m.Payload.(*dksh.ComputePayload)
	if !ok {
		t.Fatalf("payload = %T", m.Payload)
	}
	if cp.BlockDims != [3]uint32{64, 1, 1} || cp.SharedMemSize != 0x400 || cp.NumBarriers != 1 {
		t.Errorf("compute payload = %+v", cp)
	}
	if got := binary.LittleEndian.Uint32(module[dksh.HeaderSize+4:]); got != dksh.EntryPoint(ir.StageCompute) {
		t.Errorf("entrypoint = %#x", got)
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		prog ir.Program
		fe   FrontEnd
		gen  codegen.Generator
		want ErrorKind
	}{
		{
			name: "front end",
			fe: FrontEndFunc(func([]byte, ir.Stage) (*ir.Program, error) {
				return nil, errors.New("syntax error")
			}),
			gen:  prebuilt(ir.StageVertex, 0x40, 0),
			want: ErrFrontEnd,
		},
		{
			name: "no program",
			fe: FrontEndFunc(func([]byte, ir.Stage) (*ir.Program, error) {
				return nil, nil
			}),
			gen:  prebuilt(ir.StageVertex, 0x40, 0),
			want: ErrFrontEnd,
		},
		{
			name: "cull distance",
			prog: ir.Program{Info: ir.ProgramInfo{
				Stage:          ir.StageVertex,
				OutputsWritten: ir.MaskOf(ir.VaryingPos, ir.VaryingCullDist0),
			}},
			gen:  prebuilt(ir.StageVertex, 0x40, 0),
			want: ErrMappingInconsistency,
		},
		{
			name: "generator",
			prog: vertexProgram(),
			gen: codegen.GeneratorFunc(func(*tgsi.Program, codegen.OptLevel) (*codegen.Artifact, error) {
				return nil, errors.New("register allocation failed")
			}),
			want: ErrCodeGen,
		},
		{
			name: "generator stage",
			prog: vertexProgram(),
			gen:  prebuilt(ir.StageFragment, 0x40, 0),
			want: ErrCodeGen,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := tt.fe
			if fe == nil {
				fe = fixed(tt.prog)
			}
			c, err := Compile(nil, ir.StageVertex, fe, tt.gen, DefaultOptions())
			if err == nil {
				t.Fatal("expected error")
			}
			if kind, ok := KindOf(err); !ok || kind != tt.want {
				t.Errorf("kind = %v (%v), want %v: %v", kind, ok, tt.want, err)
			}
			if c.State() != StateFailed || c.Err() == nil {
				t.Errorf("state = %s, err = %v", c.State(), c.Err())
			}
			if _, err := c.Module(); !isInvalidState(err) {
				t.Errorf("Module after failure: %v", err)
			}
		})
	}
}

func TestNewCompiler_UnknownStage(t *testing.T) {
	_, err := NewCompiler(ir.Stage(42), fixed(vertexProgram()), prebuilt(ir.StageVertex, 0x40, 0), DefaultOptions())
	if kind, _ := KindOf(err); kind != ErrStageDetermination {
		t.Errorf("err = %v, want stage determination", err)
	}
}

func TestCompiler_InvalidState(t *testing.T) {
	c, err := NewCompiler(ir.StageVertex, fixed(vertexProgram()), prebuilt(ir.StageVertex, 0x40, 0), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.RawCode(); !isInvalidState(err) {
		t.Errorf("RawCode before Compile: %v", err)
	}
	if err := c.Compile(nil); err != nil {
		t.Fatal(err)
	}
	if err := c.Compile(nil); !isInvalidState(err) {
		t.Errorf("second Compile: %v", err)
	}
	if c.State() != StateCodeGenerated {
		t.Errorf("a rejected call changed the state to %s", c.State())
	}

	c.Close()
	if c.State() != StateDone {
		t.Errorf("state after Close = %s", c.State())
	}
	if c.Artifact() != nil {
		t.Error("Close kept the artifact")
	}
	if _, _, err := c.NVN(); !isInvalidState(err) {
		t.Errorf("NVN after Close: %v", err)
	}
}

func TestCompiler_Outputs(t *testing.T) {
	c := compileOK(t, vertexProgram(), prebuilt(ir.StageVertex, 0x40, 0x10), DefaultOptions())

	dir := t.TempDir()
	targets := Targets{
		Module:     filepath.Join(dir, "a.dksh"),
		RawCode:    filepath.Join(dir, "a.bin"),
		IRText:     filepath.Join(dir, "a.tgsi"),
		NVNControl: filepath.Join(dir, "a.ctl"),
		NVNProgram: filepath.Join(dir, "a.gpu"),
	}
	outs, err := c.Outputs(targets)
	if err != nil {
		t.Fatalf("Outputs: %v", err)
	}
	if len(outs) != 5 {
		t.Fatalf("got %d outputs, want 5", len(outs))
	}
	if err := emit.Err(emit.Write(outs)); err != nil {
		t.Fatalf("write: %v", err)
	}

	module, err := c.Module()
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(targets.Module)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, module) {
		t.Error("written module differs from Module()")
	}

	outs, err = c.Outputs(Targets{IRText: emit.Stdout})
	if err != nil || len(outs) != 1 || outs[0].Kind != emit.KindIRText {
		t.Errorf("IR-only outputs = %v, %v", outs, err)
	}
}

func TestCompiler_OutputsPartialFailure(t *testing.T) {
	overflow := func(*nvn.Program) ([]byte, []byte, error) {
		return nil, nil, codegen.ErrOverflow
	}
	defer func(f func(*nvn.Program) ([]byte, []byte, error)) { encodeNVN = f }(encodeNVN)
	encodeNVN = overflow

	c := compileOK(t, vertexProgram(), prebuilt(ir.StageVertex, 0x40, 0x10), DefaultOptions())
	dir := t.TempDir()
	outs, err := c.Outputs(Targets{
		Module:     filepath.Join(dir, "a.dksh"),
		RawCode:    filepath.Join(dir, "a.bin"),
		IRText:     filepath.Join(dir, "a.tgsi"),
		NVNControl: filepath.Join(dir, "a.ctl"),
		NVNProgram: filepath.Join(dir, "a.gpu"),
	})
	if err == nil {
		t.Fatal("Outputs succeeded with a failing NVN encoder")
	}

	var kinds []emit.Kind
	for _, o := range outs {
		kinds = append(kinds, o.Kind)
	}
	want := []emit.Kind{emit.KindModule, emit.KindRawCode, emit.KindIRText}
	if len(kinds) != len(want) {
		t.Fatalf("output kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("output %d kind = %v, want %v", i, kinds[i], want[i])
		}
	}

	if kind, ok := KindOf(err); !ok || kind != ErrEncodingOverflow {
		t.Errorf("KindOf(%v) = %v, %v; want %v", err, kind, ok, ErrEncodingOverflow)
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		t.Fatalf("err %T is not a joined error", err)
	}
	if n := len(joined.Unwrap()); n != 1 {
		t.Errorf("joined %d errors, want the NVN error once: %v", n, err)
	}
	if !errors.Is(err, codegen.ErrOverflow) {
		t.Errorf("err = %v, want codegen.ErrOverflow in chain", err)
	}
}

func TestCompiler_OutputsModuleFailure(t *testing.T) {
	defer func(f func(*dksh.Module) ([]byte, error)) { encodeModule = f }(encodeModule)
	encodeModule = func(*dksh.Module) ([]byte, error) {
		return nil, errors.New("disk full")
	}

	c := compileOK(t, vertexProgram(), prebuilt(ir.StageVertex, 0x40, 0x10), DefaultOptions())
	outs, err := c.Outputs(Targets{Module: "a.dksh", NVNControl: "a.ctl", NVNProgram: "a.gpu"})
	if kind, ok := KindOf(err); !ok || kind != ErrEmit {
		t.Errorf("KindOf(%v) = %v, %v; want %v", err, kind, ok, ErrEmit)
	}
	if len(outs) != 2 || outs[0].Kind != emit.KindNVNControl || outs[1].Kind != emit.KindNVNProgram {
		t.Errorf("outputs = %v, want the NVN pair", outs)
	}
	if c.State() != StateCodeGenerated {
		t.Errorf("state = %s after a failed output, want %s", c.State(), StateCodeGenerated)
	}
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { SetLogger(nil) })

	compileOK(t, vertexProgram(), prebuilt(ir.StageVertex, 0x40, 0), DefaultOptions())
	if !strings.Contains(buf.String(), "state transition") {
		t.Errorf("no debug records logged:\n%s", buf.String())
	}
}

func TestErrorKindString(t *testing.T) {
	e := newError(ErrEncodingOverflow, ir.StageFragment, codegen.ErrOverflow)
	if !e.IsEncodingOverflow() || e.IsInvalidState() {
		t.Error("kind helpers disagree with Kind")
	}
	if !errors.Is(e, codegen.ErrOverflow) {
		t.Error("Error does not unwrap")
	}
	if !strings.Contains(e.Error(), "EncodingOverflow") || !strings.Contains(e.Error(), "frag") {
		t.Errorf("Error() = %q", e.Error())
	}
}

func isInvalidState(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == ErrInvalidState
}
