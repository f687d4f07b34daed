// Package uam is a shader compiler back end for Maxwell-class GPUs.
//
// It takes a program that a front end has already parsed and type-checked,
// assigns its stage inputs and outputs to IR registers, hands the IR to a
// machine-code generator and packages the result for the two target
// runtimes: a deko3d shader module (DKSH) and an NVN control and GPU program
// pair.
//
// The pipeline is:
//  1. Parse the source with a FrontEnd
//  2. Map stage variables to registers (package semantic)
//  3. Build the IR token stream (package tgsi)
//  4. Generate machine code (package codegen)
//  5. Build the shader program header (package sph)
//
// After these steps every output format is an independent, pure encoding
// step:
//
//	c, err := uam.NewCompiler(ir.StageFragment, fe, gen, uam.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//	if err := c.Compile(source); err != nil {
//	    log.Fatal(err)
//	}
//	module, err := c.Module()
package uam

import (
	"github.com/gogpu/uam/codegen"
	"github.com/gogpu/uam/ir"
)

// Version is the compiler version.
const Version = "0.1.0"

// Options configures a compilation.
type Options struct {
	// OptLevel is the generator optimization level, 0 to 3.
	OptLevel codegen.OptLevel

	// GlslcBindings offsets every resource binding by one, matching the
	// binding scheme of the GLSLC toolchain.
	GlslcBindings bool
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		OptLevel:      codegen.OptDefault,
		GlslcBindings: false,
	}
}

// FrontEnd parses source text into a program description.
type FrontEnd interface {
	Parse(source []byte, stage ir.Stage) (*ir.Program, error)
}

// FrontEndFunc adapts a function to FrontEnd.
type FrontEndFunc func(source []byte, stage ir.Stage) (*ir.Program, error)

// Parse calls f.
func (f FrontEndFunc) Parse(source []byte, stage ir.Stage) (*ir.Program, error) {
	return f(source, stage)
}

// Compile runs a complete compilation and returns the compiler, ready for
// output requests. On failure the compiler is returned in the failed state
// together with the error.
func Compile(source []byte, stage ir.Stage, fe FrontEnd, gen codegen.Generator, opts Options) (*Compiler, error) {
	c, err := NewCompiler(stage, fe, gen, opts)
	if err != nil {
		return nil, err
	}
	if err := c.Compile(source); err != nil {
		return c, err
	}
	return c, nil
}
