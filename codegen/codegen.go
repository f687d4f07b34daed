// Package codegen defines the contract with the machine-code generator and
// the artifact it produces.
//
// The generator itself is an external collaborator. This package validates
// what it returns and pads the code to the granularity the containers
// expect; the result is immutable once handed to the header synthesizers.
package codegen

import (
	"errors"
	"fmt"

	"github.com/gogpu/uam/internal/layout"
	"github.com/gogpu/uam/tgsi"
)

var (
	// ErrFailed is wrapped by every generator failure.
	ErrFailed = errors.New("codegen: generation failed")

	// ErrOverflow is returned when a size does not fit the 32-bit field
	// that must hold it.
	ErrOverflow = errors.New("codegen: size overflows a 32-bit field")
)

// CodeAlign is the granularity compiled code is padded to.
const CodeAlign = 0x40

// InstructionSize is the size of one machine instruction word.
const InstructionSize = 8

// OptLevel is the generator optimization level, 0 to 3.
type OptLevel int

const (
	OptNone    OptLevel = 0
	OptDefault OptLevel = 3
)

// Valid reports whether o is a supported level.
func (o OptLevel) Valid() bool {
	return o >= OptNone && o <= OptDefault
}

// Flags describe properties of the generated code that end up in the shader
// program header.
type Flags uint32

const (
	FlagKillsPixels Flags = 1 << iota
	FlagGlobalStore
	FlagLoadStore
	FlagFP64
)

var flagNames = [...]string{"kills_pixels", "global_store", "load_store", "fp64"}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var s string
	for i, name := range flagNames {
		if f&(1<<i) == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += name
	}
	if rest := f &^ (1<<len(flagNames) - 1); rest != 0 {
		if s != "" {
			s += "|"
		}
		s += fmt.Sprintf("%#x", uint32(rest))
	}
	return s
}

// ParseFlags parses flag names as printed by Flags.String.
func ParseFlags(names ...string) (Flags, error) {
	var f Flags
next:
	for _, name := range names {
		for i, n := range flagNames {
			if n == name {
				f |= 1 << i
				continue next
			}
		}
		return 0, fmt.Errorf("codegen: unknown flag %q", name)
	}
	return f, nil
}

// Artifact is the generator output for one program.
type Artifact struct {
	// Code is the machine code. After Run it is padded to CodeAlign.
	Code []byte

	// Data is the immediate constant data bound as constant buffer 1.
	Data []byte

	NumGPRs            uint32
	PerWarpScratchSize uint32

	// Local memory pools and call/return stack, used by compute headers.
	LocalPosMemSize uint32
	LocalNegMemSize uint32
	CRSSize         uint32
	NumBarriers     uint32

	Flags Flags
}

// CodeSize returns the code size in bytes.
func (a *Artifact) CodeSize() uint32 { return uint32(len(a.Code)) }

// DataSize returns the constant data size in bytes.
func (a *Artifact) DataSize() uint32 { return uint32(len(a.Data)) }

// Clone returns a deep copy of a.
func (a *Artifact) Clone() *Artifact {
	c := *a
	c.Code = append([]byte(nil), a.Code...)
	c.Data = append([]byte(nil), a.Data...)
	return &c
}

// Generator turns an IR token stream into machine code.
type Generator interface {
	Generate(prog *tgsi.Program, opt OptLevel) (*Artifact, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(prog *tgsi.Program, opt OptLevel) (*Artifact, error)

// Generate calls f.
func (f GeneratorFunc) Generate(prog *tgsi.Program, opt OptLevel) (*Artifact, error) {
	return f(prog, opt)
}

// Run invokes g and validates the result. A nil artifact is a failure even
// when g reports none. The returned artifact is a padded copy owned by the
// caller.
func Run(g Generator, prog *tgsi.Program, opt OptLevel) (*Artifact, error) {
	if !opt.Valid() {
		return nil, fmt.Errorf("%w: invalid optimization level %d", ErrFailed, opt)
	}
	a, err := g.Generate(prog, opt)
	if err != nil {
		if errors.Is(err, ErrFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrFailed, err)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: generator returned no artifact", ErrFailed)
	}
	if err := Validate(a); err != nil {
		return nil, err
	}

	out := a.Clone()
	out.Code, err = Pad(out.Code)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks the invariants of a generator result.
func Validate(a *Artifact) error {
	if len(a.Code) == 0 {
		return fmt.Errorf("%w: empty code", ErrFailed)
	}
	if len(a.Code)%InstructionSize != 0 {
		return fmt.Errorf("%w: code size %d is not a multiple of %d", ErrFailed, len(a.Code), InstructionSize)
	}
	if !layout.Fits32(uint64(len(a.Data))) {
		return fmt.Errorf("%w: data size %d", ErrOverflow, len(a.Data))
	}
	return nil
}

// Pad returns code zero-padded to CodeAlign. code is not modified.
func Pad(code []byte) ([]byte, error) {
	size, err := PaddedSize(uint64(len(code)))
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, code)
	return out, nil
}

// PaddedSize returns n rounded up to CodeAlign, or ErrOverflow when the
// result does not fit in 32 bits.
func PaddedSize(n uint64) (uint64, error) {
	size := layout.AlignUp(n, CodeAlign)
	if size < n || !layout.Fits32(size) {
		return 0, fmt.Errorf("%w: code size %d", ErrOverflow, n)
	}
	return size, nil
}
