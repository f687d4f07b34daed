package tgsi

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/gogpu/uam/ir"
	"github.com/gogpu/uam/semantic"
)

// body replays a fixed instruction list.
type body [][]string

func (b body) Translate(e ir.Emitter, _ *ir.IOMap) error {
	for _, inst := range b {
		e.Inst(inst[0], inst[1:]...)
	}
	return nil
}

type failingBody struct{}

func (failingBody) Translate(ir.Emitter, *ir.IOMap) error {
	return errors.New("unsupported opcode")
}

var goldenCases = []struct {
	name string
	prog ir.Program
	opts Options
}{
	{
		name: "vertex_position",
		prog: ir.Program{
			Info: ir.ProgramInfo{
				Stage:          ir.StageVertex,
				InputsRead:     ir.MaskOf(ir.VertAttribPos, ir.VertAttribGeneric0),
				OutputsWritten: ir.MaskOf(ir.VaryingPos, ir.VaryingVar0),
			},
			Body: body{{"MOV", "OUT[0]", "IN[0]"}, {"MOV", "OUT[1]", "IN[1]"}},
		},
	},
	{
		name: "fragment_dual_source",
		prog: ir.Program{
			Info: ir.ProgramInfo{
				Stage:                   ir.StageFragment,
				InputsRead:              ir.MaskOf(ir.VaryingPos, ir.VaryingVar0+3, ir.VaryingFace),
				OutputsWritten:          ir.MaskOf(ir.FragResultData0),
				SecondaryOutputsWritten: ir.MaskOf(ir.FragResultData0),
				Fragment:                ir.FragmentInfo{EarlyFragmentTests: true},
				Resources:               []ir.Resource{{Kind: ir.ResourceSampler, Binding: 0}},
			},
			Body: body{{"TEX", "TEMP[0]", "IN[2]", "SAMP[1]"}},
		},
		opts: Options{ResourceBindingOffset: 1},
	},
	{
		name: "fragment_depth",
		prog: ir.Program{
			Info: ir.ProgramInfo{
				Stage:          ir.StageFragment,
				OutputsWritten: ir.MaskOf(ir.FragResultDepth, ir.FragResultColor),
				Fragment:       ir.FragmentInfo{DepthLayout: ir.DepthLayoutGreater},
			},
		},
	},
	{
		name: "compute",
		prog: ir.Program{
			Info: ir.ProgramInfo{
				Stage:   ir.StageCompute,
				Compute: ir.ComputeInfo{WorkgroupSize: [3]uint32{8, 8, 1}, SharedMemorySize: 1024},
			},
		},
	},
	{
		name: "geometry",
		prog: ir.Program{
			Info: ir.ProgramInfo{
				Stage:          ir.StageGeometry,
				InputsRead:     ir.MaskOf(ir.VaryingPos),
				OutputsWritten: ir.MaskOf(ir.VaryingPos, ir.VaryingLayer),
				Geometry: ir.GeometryInfo{
					InputPrimitive:    ir.PrimitiveTriangles,
					OutputPrimitive:   ir.PrimitiveTriangleStrip,
					MaxOutputVertices: 3,
					Invocations:       1,
				},
			},
		},
	},
}

func buildText(t *testing.T, prog *ir.Program, opts Options) string {
	t.Helper()

	m, err := semantic.Map(&prog.Info)
	if err != nil {
		t.Fatalf("semantic.Map: %v", err)
	}
	p, err := Build(prog, m, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	text, err := p.Text()
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	return text
}

// TestGolden compares the text form of each case with testdata/golden.txtar.
//
// To regenerate after intentional changes:
//
//	UPDATE_GOLDEN=1 go test ./tgsi/...
func TestGolden(t *testing.T) {
	path := filepath.Join("testdata", "golden.txtar")
	archive, err := txtar.ParseFile(path)
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	want := make(map[string]string, len(archive.Files))
	for _, f := range archive.Files {
		want[f.Name] = string(f.Data)
	}

	update := os.Getenv("UPDATE_GOLDEN") != ""
	var updated txtar.Archive
	updated.Comment = archive.Comment

	for i := range goldenCases {
		tc := &goldenCases[i]
		t.Run(tc.name, func(t *testing.T) {
			got := buildText(t, &tc.prog, tc.opts)
			updated.Files = append(updated.Files, txtar.File{Name: tc.name, Data: []byte(got)})
			if update {
				return
			}
			exp, ok := want[tc.name]
			if !ok {
				t.Fatalf("no golden entry %q", tc.name)
			}
			if got != exp {
				t.Errorf("text mismatch\n--- got ---\n%s--- want ---\n%s", got, exp)
			}
		})
	}

	if update {
		if err := os.WriteFile(path, txtar.Format(&updated), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

func TestBuild_SkipsPlaceholdersAndSynthetic(t *testing.T) {
	prog := &ir.Program{Info: ir.ProgramInfo{
		Stage:          ir.StageVertex,
		InputsRead:     ir.MaskOf(ir.VertAttribGeneric0, ir.VertAttribGeneric0+1),
		DualSlotInputs: ir.MaskOf(ir.VertAttribGeneric0),
		OutputsWritten: ir.MaskOf(ir.VaryingPos),
	}}
	text := buildText(t, prog, Options{})

	if strings.Contains(text, "EDGEFLAG") {
		t.Errorf("synthetic edge flag declared:\n%s", text)
	}
	// GENERIC0 takes IN[0] and IN[1]; GENERIC1 lands on IN[2].
	if !strings.Contains(text, "DCL IN[0]\nDCL IN[2]\n") {
		t.Errorf("placeholder register not skipped:\n%s", text)
	}
}

func TestBuild_StageMismatch(t *testing.T) {
	prog := &ir.Program{Info: ir.ProgramInfo{Stage: ir.StageFragment}}
	_, err := Build(prog, &ir.IOMap{Stage: ir.StageVertex}, Options{})
	if err == nil {
		t.Fatal("expected stage mismatch error")
	}
}

func TestBuild_BodyError(t *testing.T) {
	prog := &ir.Program{
		Info: ir.ProgramInfo{Stage: ir.StageCompute},
		Body: failingBody{},
	}
	m, err := semantic.Map(&prog.Info)
	if err != nil {
		t.Fatalf("semantic.Map: %v", err)
	}
	_, err = Build(prog, m, Options{})
	if err == nil || !strings.Contains(err.Error(), "unsupported opcode") {
		t.Errorf("err = %v, want body error", err)
	}
}

func TestProgram_Bytes(t *testing.T) {
	p := NewBuilder(ir.StageVertex).Finish()
	b := p.Bytes()
	if len(b) != 4*len(p.Tokens) {
		t.Fatalf("len = %d, want %d", len(b), 4*len(p.Tokens))
	}
	// HEADER: word count 2, opcode 1.
	if b[0] != 1 || b[2] != 2 {
		t.Errorf("first word bytes = % x", b[:4])
	}
}

func TestDecodeStrings(t *testing.T) {
	tests := [][]string{
		{"MOV"},
		{"ABCD", "", "x"},
		{"LONGER_MNEMONIC", "OUT[0].xyzw"},
	}
	for _, want := range tests {
		var ib instBuilder
		for _, s := range want {
			ib.str(s)
		}
		got, err := decodeStrings(ib.words)
		if err != nil {
			t.Fatalf("decodeStrings(%q): %v", want, err)
		}
		if strings.Join(got, "|") != strings.Join(want, "|") || len(got) != len(want) {
			t.Errorf("decodeStrings = %q, want %q", got, want)
		}
	}

	if _, err := decodeStrings([]uint32{0x41414141}); err == nil {
		t.Error("unterminated string should fail")
	}
}

func TestDisassemble_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		tokens []uint32
	}{
		{"empty", nil},
		{"zero count", []uint32{0}},
		{"no header", Instruction{Opcode: OpEnd}.Encode()},
		{"truncated", []uint32{3<<16 | uint32(OpHeader), 0}},
		{"missing end", Instruction{Opcode: OpHeader, Words: []uint32{0}}.Encode()},
		{"bad operand count", append(
			Instruction{Opcode: OpHeader, Words: []uint32{0}}.Encode(),
			Instruction{Opcode: OpProperty, Words: []uint32{1}}.Encode()...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Disassemble(tt.tokens); err == nil {
				t.Error("expected error")
			}
		})
	}
}
