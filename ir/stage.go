package ir

import (
	"fmt"
	"path/filepath"
)

// Stage represents a pipeline stage. The numeric values are the stage
// numbers written into the runtime containers.
type Stage uint8

const (
	StageVertex Stage = iota
	StageFragment
	StageGeometry
	StageTessControl
	StageTessEvaluation
	StageCompute
)

var stageNames = [...]string{
	StageVertex:         "vert",
	StageFragment:       "frag",
	StageGeometry:       "geom",
	StageTessControl:    "tess_ctrl",
	StageTessEvaluation: "tess_eval",
	StageCompute:        "comp",
}

// String returns the short stage name used on the command line.
func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", uint8(s))
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return int(s) < len(stageNames)
}

// IsGraphics reports whether s runs in the graphics pipeline and therefore
// carries a shader program header.
func (s Stage) IsGraphics() bool {
	return s.Valid() && s != StageCompute
}

// ParseStage parses a short stage name (vert, tess_ctrl, tess_eval, geom,
// frag, comp).
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unrecognized pipeline stage: %q", name)
}

var stageExtensions = map[string]Stage{
	".vert": StageVertex,
	".frag": StageFragment,
	".geom": StageGeometry,
	".tesc": StageTessControl,
	".tese": StageTessEvaluation,
	".comp": StageCompute,
}

// StageFromPath deduces the stage from a file extension. The second result
// is false when the extension is not one of .vert, .frag, .geom, .tesc,
// .tese or .comp.
func StageFromPath(path string) (Stage, bool) {
	s, ok := stageExtensions[filepath.Ext(path)]
	return s, ok
}
