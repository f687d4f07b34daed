package uam

import (
	"errors"
	"fmt"

	"github.com/gogpu/uam/codegen"
	"github.com/gogpu/uam/dksh"
	"github.com/gogpu/uam/emit"
	"github.com/gogpu/uam/ir"
	"github.com/gogpu/uam/nvn"
	"github.com/gogpu/uam/semantic"
	"github.com/gogpu/uam/sph"
	"github.com/gogpu/uam/tgsi"
)

// Container encoders, replaced in tests.
var (
	encodeModule = dksh.Encode
	encodeNVN    = nvn.Encode
)

// State is the position of a Compiler in its life cycle.
type State uint8

const (
	StateCreated State = iota
	StateFrontEndParsed
	StateIRBuilt
	StateCodeGenerated
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateCreated:        "created",
	StateFrontEndParsed: "front end parsed",
	StateIRBuilt:        "ir built",
	StateCodeGenerated:  "code generated",
	StateDone:           "done",
	StateFailed:         "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Compiler compiles one program of one stage. It is not safe for concurrent
// use; independent compilations use independent compilers.
//
// Compile moves the compiler from StateCreated to StateCodeGenerated, or to
// StateFailed on the first error. Output methods are valid only in
// StateCodeGenerated and never change the state. Close moves to StateDone.
type Compiler struct {
	stage ir.Stage
	opts  Options
	fe    FrontEnd
	gen   codegen.Generator

	state State
	err   error

	prog     *ir.Program
	iomap    *ir.IOMap
	ir       *tgsi.Program
	artifact *codegen.Artifact
	header   sph.Header
}

// NewCompiler returns a compiler for stage.
func NewCompiler(stage ir.Stage, fe FrontEnd, gen codegen.Generator, opts Options) (*Compiler, error) {
	if !stage.Valid() {
		return nil, newError(ErrStageDetermination, stage, fmt.Errorf("unknown stage %d", uint8(stage)))
	}
	if fe == nil || gen == nil {
		return nil, newError(ErrInvalidState, stage, errors.New("front end and generator are required"))
	}
	return &Compiler{stage: stage, opts: opts, fe: fe, gen: gen}, nil
}

// State returns the current state.
func (c *Compiler) State() State { return c.state }

// Err returns the error that moved the compiler to StateFailed.
func (c *Compiler) Err() error { return c.err }

// Stage returns the stage being compiled.
func (c *Compiler) Stage() ir.Stage { return c.stage }

func (c *Compiler) advance(to State) {
	slogger().Debug("uam: state transition", "stage", c.stage, "from", c.state, "to", to)
	c.state = to
}

func (c *Compiler) fail(kind ErrorKind, err error) error {
	e := newError(kind, c.stage, err)
	slogger().Debug("uam: compilation failed", "stage", c.stage, "state", c.state, "kind", kind, "error", err)
	c.state = StateFailed
	c.err = e
	c.release()
	return e
}

// Compile runs the front end, the semantic mapping, IR construction, code
// generation and header generation. No step is retried.
func (c *Compiler) Compile(source []byte) error {
	if c.state != StateCreated {
		return newError(ErrInvalidState, c.stage, fmt.Errorf("compile in state %s", c.state))
	}

	prog, err := c.fe.Parse(source, c.stage)
	if err != nil {
		return c.fail(ErrFrontEnd, err)
	}
	if prog == nil {
		return c.fail(ErrFrontEnd, errors.New("front end returned no program"))
	}
	if prog.Info.Stage != c.stage {
		return c.fail(ErrFrontEnd, fmt.Errorf("front end produced a %s program", prog.Info.Stage))
	}
	c.prog = prog
	c.advance(StateFrontEndParsed)

	m, err := semantic.Map(&prog.Info)
	if err != nil {
		return c.fail(ErrMappingInconsistency, err)
	}
	c.iomap = m
	slogger().Debug("uam: registers assigned", "stage", c.stage,
		"inputs", m.NumInputs(), "outputs", m.NumOutputs())

	var topts tgsi.Options
	if c.opts.GlslcBindings {
		topts.ResourceBindingOffset = 1
	}
	tp, err := tgsi.Build(prog, m, topts)
	if err != nil {
		return c.fail(ErrFrontEnd, err)
	}
	c.ir = tp
	c.advance(StateIRBuilt)

	a, err := codegen.Run(c.gen, tp, c.opts.OptLevel)
	if err != nil {
		// Every container stores the padded code size in 32 bits, so no
		// container can hold this code.
		if errors.Is(err, codegen.ErrOverflow) {
			return c.fail(ErrEncodingOverflow, err)
		}
		return c.fail(ErrCodeGen, err)
	}
	hdr, err := sph.Build(&prog.Info, m, a)
	if err != nil {
		return c.fail(ErrMappingInconsistency, err)
	}
	c.artifact = a
	c.header = hdr
	slogger().Debug("uam: code generated", "stage", c.stage,
		"code", a.CodeSize(), "data", a.DataSize(), "gprs", a.NumGPRs)
	c.advance(StateCodeGenerated)
	return nil
}

func (c *Compiler) ready(output string) error {
	if c.state != StateCodeGenerated {
		return newError(ErrInvalidState, c.stage, fmt.Errorf("%s requested in state %s", output, c.state))
	}
	return nil
}

func (c *Compiler) encodeErr(err error) error {
	if errors.Is(err, codegen.ErrOverflow) {
		return newError(ErrEncodingOverflow, c.stage, err)
	}
	return newError(ErrEmit, c.stage, err)
}

// IOMap returns the register assignment. It is nil before the mapping step
// and after Close.
func (c *Compiler) IOMap() *ir.IOMap { return c.iomap }

// Artifact returns the generated code. It is nil unless the compiler is in
// StateCodeGenerated.
func (c *Compiler) Artifact() *codegen.Artifact {
	if c.state != StateCodeGenerated {
		return nil
	}
	return c.artifact
}

// Module returns the deko3d shader module.
func (c *Compiler) Module() ([]byte, error) {
	if err := c.ready("module"); err != nil {
		return nil, err
	}
	b, err := encodeModule(dksh.NewModule(&c.prog.Info, c.iomap, c.artifact, c.header))
	if err != nil {
		return nil, c.encodeErr(err)
	}
	return b, nil
}

// RawCode returns the padded machine code.
func (c *Compiler) RawCode() ([]byte, error) {
	if err := c.ready("raw code"); err != nil {
		return nil, err
	}
	return append([]byte(nil), c.artifact.Code...), nil
}

// IRText returns the text form of the IR.
func (c *Compiler) IRText() ([]byte, error) {
	if err := c.ready("ir text"); err != nil {
		return nil, err
	}
	text, err := c.ir.Text()
	if err != nil {
		return nil, newError(ErrEmit, c.stage, err)
	}
	return []byte(text), nil
}

// NVN returns the NVN control and GPU program containers.
func (c *Compiler) NVN() (control, program []byte, err error) {
	if err := c.ready("nvn"); err != nil {
		return nil, nil, err
	}
	control, program, err = encodeNVN(nvn.NewProgram(&c.prog.Info, c.iomap, c.artifact, c.header))
	if err != nil {
		return nil, nil, c.encodeErr(err)
	}
	return control, program, nil
}

// Targets names the destinations of the requested outputs. Empty paths are
// not requested.
type Targets struct {
	Module     string
	RawCode    string
	IRText     string
	NVNControl string
	NVNProgram string
}

// Outputs synthesizes every requested output. A format that fails is left
// out and its error joined into the returned error; the other formats are
// still returned.
func (c *Compiler) Outputs(t Targets) ([]emit.Output, error) {
	if err := c.ready("outputs"); err != nil {
		return nil, err
	}

	var (
		outs []emit.Output
		errs []error
	)
	add := func(kind emit.Kind, path string, data []byte, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		outs = append(outs, emit.Output{Kind: kind, Path: path, Data: data})
	}

	if t.Module != "" {
		b, err := c.Module()
		add(emit.KindModule, t.Module, b, err)
	}
	if t.RawCode != "" {
		b, err := c.RawCode()
		add(emit.KindRawCode, t.RawCode, b, err)
	}
	if t.IRText != "" {
		b, err := c.IRText()
		add(emit.KindIRText, t.IRText, b, err)
	}
	if t.NVNControl != "" || t.NVNProgram != "" {
		// Both NVN files come from one encoding and share its error.
		control, program, err := c.NVN()
		if err != nil {
			errs = append(errs, err)
		} else {
			if t.NVNControl != "" {
				add(emit.KindNVNControl, t.NVNControl, control, nil)
			}
			if t.NVNProgram != "" {
				add(emit.KindNVNProgram, t.NVNProgram, program, nil)
			}
		}
	}
	return outs, errors.Join(errs...)
}

func (c *Compiler) release() {
	c.prog = nil
	c.ir = nil
	c.artifact = nil
}

// Close releases the compilation results. Closing a failed compiler keeps
// it failed.
func (c *Compiler) Close() {
	if c.state != StateFailed {
		c.advance(StateDone)
	}
	c.iomap = nil
	c.release()
}
