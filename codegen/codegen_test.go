package codegen

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/uam/ir"
	"github.com/gogpu/uam/tgsi"
)

func program(stage ir.Stage) *tgsi.Program {
	return tgsi.NewBuilder(stage).Finish()
}

func TestPad(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{8, 0x40},
		{0x40, 0x40},
		{0x48, 0x80},
		{0x100, 0x100},
	}
	for _, tt := range tests {
		code := make([]byte, tt.in)
		for i := range code {
			code[i] = 0xAA
		}
		got, err := Pad(code)
		if err != nil {
			t.Fatalf("Pad(%d): %v", tt.in, err)
		}
		if len(got) != tt.want {
			t.Errorf("Pad(%d) len = %#x, want %#x", tt.in, len(got), tt.want)
		}
		for i := tt.in; i < len(got); i++ {
			if got[i] != 0 {
				t.Fatalf("Pad(%d): byte %#x = %#x, want 0", tt.in, i, got[i])
			}
		}
		if len(code) != tt.in {
			t.Error("Pad modified its input")
		}
	}
}

func TestPaddedSize_Overflow(t *testing.T) {
	if _, err := PaddedSize(math.MaxUint32 - 0x3F); err != nil {
		t.Errorf("largest aligned size: %v", err)
	}
	for _, n := range []uint64{math.MaxUint32 - 0x3E, math.MaxUint32, math.MaxUint64 - 1} {
		if _, err := PaddedSize(n); !errors.Is(err, ErrOverflow) {
			t.Errorf("PaddedSize(%#x) err = %v, want ErrOverflow", n, err)
		}
	}
}

func TestRun(t *testing.T) {
	g := &Prebuilt{
		Stage: ir.StageFragment,
		Artifact: Artifact{
			Code:    make([]byte, 24),
			Data:    []byte{1, 2, 3, 4},
			NumGPRs: 12,
			Flags:   FlagKillsPixels,
		},
	}
	a, err := Run(g, program(ir.StageFragment), OptDefault)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.CodeSize() != CodeAlign {
		t.Errorf("CodeSize() = %d, want %d", a.CodeSize(), CodeAlign)
	}
	if a.DataSize() != 4 || a.NumGPRs != 12 || a.Flags != FlagKillsPixels {
		t.Errorf("artifact = %+v", a)
	}
	if len(g.Artifact.Code) != 24 {
		t.Error("Run modified the generator's artifact")
	}
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name string
		gen  Generator
		opt  OptLevel
		want error
	}{
		{
			name: "generator error",
			gen: GeneratorFunc(func(*tgsi.Program, OptLevel) (*Artifact, error) {
				return nil, errors.New("register allocation failed")
			}),
			opt:  OptDefault,
			want: ErrFailed,
		},
		{
			name: "nil artifact",
			gen: GeneratorFunc(func(*tgsi.Program, OptLevel) (*Artifact, error) {
				return nil, nil
			}),
			opt:  OptDefault,
			want: ErrFailed,
		},
		{
			name: "empty code",
			gen:  &Prebuilt{Stage: ir.StageVertex},
			opt:  OptDefault,
			want: ErrFailed,
		},
		{
			name: "unaligned code",
			gen:  &Prebuilt{Stage: ir.StageVertex, Artifact: Artifact{Code: make([]byte, 12)}},
			opt:  OptDefault,
			want: ErrFailed,
		},
		{
			name: "stage mismatch",
			gen:  &Prebuilt{Stage: ir.StageCompute, Artifact: Artifact{Code: make([]byte, 8)}},
			opt:  OptDefault,
			want: ErrFailed,
		},
		{
			name: "too few instructions",
			gen:  &Prebuilt{Stage: ir.StageVertex, Artifact: Artifact{Code: make([]byte, 8)}, MinInstructions: 1},
			opt:  OptDefault,
			want: ErrFailed,
		},
		{
			name: "bad opt level",
			gen:  &Prebuilt{Stage: ir.StageVertex, Artifact: Artifact{Code: make([]byte, 8)}},
			opt:  4,
			want: ErrFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Run(tt.gen, program(ir.StageVertex), tt.opt)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if a != nil {
				t.Error("artifact returned on failure")
			}
		})
	}
}

func TestFlagsString(t *testing.T) {
	tests := []struct {
		f    Flags
		want string
	}{
		{0, "none"},
		{FlagKillsPixels, "kills_pixels"},
		{FlagGlobalStore | FlagFP64, "global_store|fp64"},
		{FlagLoadStore | 1<<8, "load_store|0x100"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Errorf("Flags(%#x).String() = %q, want %q", uint32(tt.f), got, tt.want)
		}
	}
}

func TestParseFlags(t *testing.T) {
	f, err := ParseFlags("fp64", "kills_pixels")
	if err != nil {
		t.Fatal(err)
	}
	if f != FlagFP64|FlagKillsPixels {
		t.Errorf("ParseFlags = %s", f)
	}
	if _, err := ParseFlags("bindless"); err == nil {
		t.Error("unknown flag accepted")
	}
}
