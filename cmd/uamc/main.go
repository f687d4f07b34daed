// Command uamc is the uam shader compiler CLI.
//
// Usage:
//
//	uamc [options] <input>...
//
// Each input is a JSON program manifest (see package manifest). The stage is
// taken from -s, else from the file extension (.vert, .frag, .geom, .tesc,
// .tese, .comp, optionally followed by .json), else from the manifest.
//
// With several inputs, every output path must contain %s, which is replaced
// by the input's base name.
//
// Examples:
//
//	uamc -o tri.dksh tri.vert.json               # deko3d shader module
//	uamc -c tri.ctl -g tri.gpu tri.frag.json     # NVN control and GPU program
//	uamc -t - tri.vert.json                      # IR text to stdout
//	uamc -j 4 -o out/%s.dksh shaders/*.json      # batch compile
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/uam"
	"github.com/gogpu/uam/codegen"
	"github.com/gogpu/uam/emit"
	"github.com/gogpu/uam/ir"
	"github.com/gogpu/uam/manifest"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type config struct {
	targets   uam.Targets
	stageName string
	glslc     bool
	optLevel  int
	version   bool
	verbose   bool
	jobs      int
	inputs    []string
}

func parseFlags(args []string, stderr io.Writer) (*config, error) {
	var c config
	fs := flag.NewFlagSet("uamc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&c.targets.Module, "o", "", "output deko3d shader module `file` (.dksh)")
	fs.StringVar(&c.targets.RawCode, "r", "", "output raw machine code `file`")
	fs.StringVar(&c.targets.IRText, "t", "", "output IR text `file`")
	fs.StringVar(&c.stageName, "s", "", "pipeline `stage` (vert, tess_ctrl, tess_eval, geom, frag, comp)")
	fs.StringVar(&c.targets.NVNControl, "c", "", "output NVN shader control `file`")
	fs.StringVar(&c.targets.NVNProgram, "g", "", "output NVN GPU program `file`")
	fs.BoolVar(&c.glslc, "b", false, "use the GLSLC binding scheme (add 1 to every binding)")
	fs.IntVar(&c.optLevel, "O", int(codegen.OptDefault), "optimization `level` (0-3)")
	fs.BoolVar(&c.version, "version", false, "print version")
	fs.BoolVar(&c.verbose, "v", false, "verbose logging")
	fs.IntVar(&c.jobs, "j", runtime.GOMAXPROCS(0), "compile up to `n` inputs in parallel")
	fs.Usage = func() { usage(fs) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	c.inputs = fs.Args()
	return &c, nil
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintf(w, "Usage: uamc [options] <input.json>...\n\n")
	fmt.Fprintf(w, "Options:\n")
	fs.PrintDefaults()
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  uamc -o tri.dksh tri.vert.json            Compile to a shader module\n")
	fmt.Fprintf(w, "  uamc -c tri.ctl -g tri.gpu tri.frag.json  Compile to an NVN program\n")
	fmt.Fprintf(w, "  uamc -j 4 -o out/%%s.dksh shaders/*.json   Compile a batch\n")
}

func (c *config) validate() error {
	t := c.targets
	if len(c.inputs) == 0 {
		return errors.New("no input file specified")
	}
	if t == (uam.Targets{}) {
		return errors.New("no output file specified")
	}
	if (t.NVNControl == "") != (t.NVNProgram == "") {
		return errors.New("NVN output needs both -c and -g")
	}
	if !codegen.OptLevel(c.optLevel).Valid() {
		return fmt.Errorf("invalid optimization level %d", c.optLevel)
	}
	if c.stageName != "" {
		if _, err := ir.ParseStage(c.stageName); err != nil {
			return err
		}
	}
	if len(c.inputs) > 1 {
		for _, p := range []string{t.Module, t.RawCode, t.IRText, t.NVNControl, t.NVNProgram} {
			if p != "" && p != emit.Stdout && !strings.Contains(p, "%s") {
				return fmt.Errorf("output %q must contain %%s when compiling several inputs", p)
			}
		}
	}
	if c.jobs < 1 {
		c.jobs = 1
	}
	return nil
}

func run(args []string, stdout, stderr io.Writer) int {
	c, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if c.version {
		fmt.Fprintf(stdout, "uamc version %s\n", uam.Version)
		return 0
	}
	if err := c.validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	uam.SetLogger(logger)
	defer uam.SetLogger(nil)

	em := &emit.Emitter{Stdout: stdout}
	var g errgroup.Group
	g.SetLimit(c.jobs)
	failed := make([]bool, len(c.inputs))
	for i, input := range c.inputs {
		g.Go(func() error {
			if err := compileOne(c, input, em, logger); err != nil {
				logger.Error("compilation failed", "input", input, "error", err)
				failed[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, f := range failed {
		if f {
			return 1
		}
	}
	return 0
}

// stageOf resolves the stage of input: -s, then the file extension, then the
// manifest.
func stageOf(c *config, input string, m *manifest.Manifest) (ir.Stage, error) {
	if c.stageName != "" {
		s, _ := ir.ParseStage(c.stageName)
		return m.ResolveStage(s, true)
	}
	if s, ok := ir.StageFromPath(strings.TrimSuffix(input, ".json")); ok {
		return m.ResolveStage(s, true)
	}
	s, err := m.ResolveStage(0, false)
	if err != nil {
		return 0, fmt.Errorf("could not deduce the stage; pass -s or use a stage extension: %w", err)
	}
	return s, nil
}

func compileOne(c *config, input string, em *emit.Emitter, logger *slog.Logger) error {
	source, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	m, err := manifest.Parse(source)
	if err != nil {
		return err
	}
	stage, err := stageOf(c, input, m)
	if err != nil {
		return err
	}
	gen, err := m.Generator(stage, filepath.Dir(input))
	if err != nil {
		return err
	}

	opts := uam.DefaultOptions()
	opts.OptLevel = codegen.OptLevel(c.optLevel)
	opts.GlslcBindings = c.glslc

	comp, err := uam.Compile(source, stage, manifest.FrontEnd{}, gen, opts)
	if err != nil {
		return err
	}
	defer comp.Close()

	outs, synthErr := comp.Outputs(expand(c.targets, input))
	results := em.Write(outs)
	for _, r := range results {
		if r.Err == nil {
			logger.Debug("wrote output", "input", input, "kind", r.Kind, "path", r.Path)
		}
	}
	return errors.Join(synthErr, emit.Err(results))
}

// expand substitutes the base name of input into the %s of every target.
func expand(t uam.Targets, input string) uam.Targets {
	base := filepath.Base(strings.TrimSuffix(input, ".json"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	sub := func(p string) string { return strings.ReplaceAll(p, "%s", base) }
	return uam.Targets{
		Module:     sub(t.Module),
		RawCode:    sub(t.RawCode),
		IRText:     sub(t.IRText),
		NVNControl: sub(t.NVNControl),
		NVNProgram: sub(t.NVNProgram),
	}
}
