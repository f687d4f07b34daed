// Package emit writes finished compilation outputs to their destinations.
//
// Each output is written independently: a failure for one destination does
// not prevent or undo the others. Files are written to a temporary file in
// the destination directory and renamed into place, so a destination is
// either left untouched or fully written.
package emit

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Kind is the format of an output.
type Kind uint8

const (
	KindModule Kind = iota
	KindRawCode
	KindIRText
	KindNVNControl
	KindNVNProgram
)

var kindNames = [...]string{
	KindModule:     "module",
	KindRawCode:    "raw",
	KindIRText:     "tgsi",
	KindNVNControl: "nvn control",
	KindNVNProgram: "nvn gpu program",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Stdout is the destination that names standard output.
const Stdout = "-"

// Output is one finished output.
type Output struct {
	Kind Kind
	Path string
	Data []byte
}

// Result is the outcome of writing one output.
type Result struct {
	Kind Kind
	Path string
	Err  error
}

// Emitter writes outputs. It is safe for concurrent use; writes to Stdout
// are serialized.
type Emitter struct {
	// Stdout receives outputs whose path is Stdout. Nil means os.Stdout.
	Stdout io.Writer

	// Perm is the permission of created files. Zero means 0o644.
	Perm os.FileMode

	mu sync.Mutex
}

// Write writes every output and reports one result per output, in order.
func (e *Emitter) Write(outputs []Output) []Result {
	results := make([]Result, len(outputs))
	for i, out := range outputs {
		results[i] = Result{Kind: out.Kind, Path: out.Path, Err: e.writeOne(out)}
	}
	return results
}

// Write writes outputs with the default Emitter.
func Write(outputs []Output) []Result {
	var e Emitter
	return e.Write(outputs)
}

func (e *Emitter) writeOne(out Output) error {
	if out.Path == "" {
		return fmt.Errorf("emit: %s output has no destination", out.Kind)
	}
	if out.Path == Stdout {
		w := e.Stdout
		if w == nil {
			w = os.Stdout
		}
		e.mu.Lock()
		_, err := w.Write(out.Data)
		e.mu.Unlock()
		if err != nil {
			return fmt.Errorf("emit: write %s output to stdout: %w", out.Kind, err)
		}
		return nil
	}
	perm := e.Perm
	if perm == 0 {
		perm = 0o644
	}
	if err := writeFile(out.Path, out.Data, perm); err != nil {
		return fmt.Errorf("emit: write %s output: %w", out.Kind, err)
	}
	return nil
}

func writeFile(path string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Chmod(perm); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Err joins the failures of results, or returns nil when every output was
// written.
func Err(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

// Failed reports whether any output failed.
func Failed(results []Result) bool {
	return Err(results) != nil
}
