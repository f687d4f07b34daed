package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/uam"
	"github.com/gogpu/uam/dksh"
	"github.com/gogpu/uam/nvn"
)

const vertexSource = `{
  "inputs": ["POS"],
  "outputs": ["POS"],
  "body": [["MOV", "OUT:POS", "IN:POS"]],
  "machine": {"code": {"hex": "0123456789abcdef"}, "gprs": 4}
}`

const fragmentSource = `{
  "stage": "frag",
  "outputs": ["DATA0"],
  "machine": {"code": {"hex": "fedcba9876543210"}, "gprs": 2}
}`

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_AllOutputs(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "tri.vert.json", vertexSource)
	out := func(name string) string { return filepath.Join(dir, name) }

	var stdout, stderr bytes.Buffer
	code := run([]string{
		"-o", out("tri.dksh"), "-r", out("tri.bin"), "-t", "-",
		"-c", out("tri.ctl"), "-g", out("tri.gpu"), input,
	}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}

	module, err := os.ReadFile(out("tri.dksh"))
	if err != nil {
		t.Fatal(err)
	}
	if binary.LittleEndian.Uint32(module) != dksh.Magic {
		t.Errorf("module magic = %#x", binary.LittleEndian.Uint32(module))
	}
	raw, err := os.ReadFile(out("tri.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 0x40 {
		t.Errorf("raw code is %d bytes, want 0x40", len(raw))
	}
	control, err := os.ReadFile(out("tri.ctl"))
	if err != nil {
		t.Fatal(err)
	}
	if len(control) != nvn.ControlSize {
		t.Errorf("control is %#x bytes", len(control))
	}
	if !strings.HasPrefix(stdout.String(), "VERT\n") {
		t.Errorf("stdout = %q, want the IR text", stdout.String())
	}
}

func TestRun_Batch(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{
		writeInput(t, dir, "a.vert.json", vertexSource),
		writeInput(t, dir, "b.json", fragmentSource),
	}
	var stdout, stderr bytes.Buffer
	args := append([]string{"-j", "2", "-b", "-o", filepath.Join(dir, "%s.dksh")}, inputs...)
	if code := run(args, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	for _, name := range []string{"a.dksh", "b.dksh"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestRun_Failures(t *testing.T) {
	dir := t.TempDir()
	good := writeInput(t, dir, "ok.vert.json", vertexSource)
	noStage := writeInput(t, dir, "shader.json", `{"machine": {"code": {"hex": "0011223344556677"}}}`)
	mismatch := writeInput(t, dir, "x.frag.json", `{"stage": "vert"}`)
	dksh := filepath.Join(dir, "out.dksh")

	tests := []struct {
		name string
		args []string
		want int
		msg  string
	}{
		{"no input", []string{"-o", dksh}, 1, "no input file"},
		{"no output", []string{good}, 1, "no output file"},
		{"half nvn", []string{"-c", "x.ctl", good}, 1, "both -c and -g"},
		{"bad stage", []string{"-s", "pixel", "-o", dksh, good}, 1, "unrecognized pipeline stage"},
		{"bad level", []string{"-O", "7", "-o", dksh, good}, 1, "optimization level"},
		{"no template", []string{"-o", dksh, good, good}, 1, "%s"},
		{"unknown flag", []string{"-x"}, 2, "flag provided but not defined"},
		{"stage not deducible", []string{"-o", dksh, noStage}, 1, "could not deduce the stage"},
		{"stage mismatch", []string{"-o", dksh, mismatch}, 1, "vert program"},
		{"missing input", []string{"-o", dksh, filepath.Join(dir, "nope.vert")}, 1, "nope.vert"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tt.args, &stdout, &stderr); code != tt.want {
				t.Errorf("exit %d, want %d", code, tt.want)
			}
			if !strings.Contains(stderr.String(), tt.msg) {
				t.Errorf("stderr = %q, want it to mention %q", stderr.String(), tt.msg)
			}
		})
	}
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d", code)
	}
	if !strings.Contains(stdout.String(), uam.Version) {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestExpand(t *testing.T) {
	got := expand(uam.Targets{Module: "out/%s.dksh", IRText: "-"}, "shaders/tri.vert.json")
	if got.Module != "out/tri.dksh" || got.IRText != "-" || got.RawCode != "" {
		t.Errorf("expand = %+v", got)
	}
}
