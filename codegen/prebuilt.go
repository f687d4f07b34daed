package codegen

import (
	"fmt"

	"github.com/gogpu/uam/ir"
	"github.com/gogpu/uam/tgsi"
)

// Prebuilt is a Generator that returns machine code produced ahead of time
// by an offline generator. It checks that the IR it is asked to compile is
// for the stage the code was built for.
type Prebuilt struct {
	Stage    ir.Stage
	Artifact Artifact

	// MinInstructions, if non-zero, rejects IR bodies shorter than the
	// given instruction count.
	MinInstructions int
}

// Generate returns a copy of the prebuilt artifact.
func (p *Prebuilt) Generate(prog *tgsi.Program, opt OptLevel) (*Artifact, error) {
	if prog == nil {
		return nil, fmt.Errorf("%w: no IR program", ErrFailed)
	}
	if prog.Stage != p.Stage {
		return nil, fmt.Errorf("%w: code built for %s stage, IR is %s", ErrFailed, p.Stage, prog.Stage)
	}
	if prog.NumInstructions < p.MinInstructions {
		return nil, fmt.Errorf("%w: IR has %d instructions, code expects at least %d",
			ErrFailed, prog.NumInstructions, p.MinInstructions)
	}
	return p.Artifact.Clone(), nil
}
