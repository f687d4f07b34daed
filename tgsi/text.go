package tgsi

import (
	"fmt"
	"strings"

	"github.com/gogpu/uam/ir"
)

var stageHeaders = map[ir.Stage]string{
	ir.StageVertex:         "VERT",
	ir.StageFragment:       "FRAG",
	ir.StageGeometry:       "GEOM",
	ir.StageTessControl:    "TESS_CTRL",
	ir.StageTessEvaluation: "TESS_EVAL",
	ir.StageCompute:        "COMP",
}

// Disassemble renders a token stream in text form.
func Disassemble(tokens []uint32) (string, error) {
	var (
		sb    strings.Builder
		stage ir.Stage
		n     int
	)
	for off := 0; off < len(tokens); {
		word := tokens[off]
		op := Opcode(word & 0xFFFF)
		count := int(word >> 16)
		if count == 0 || off+count > len(tokens) {
			return "", fmt.Errorf("tgsi: invalid word count %d at token %d", count, off)
		}
		ops := tokens[off+1 : off+count]

		if off == 0 && op != OpHeader {
			return "", fmt.Errorf("tgsi: stream does not start with a header")
		}
		if err := checkOperands(op, ops, off); err != nil {
			return "", err
		}

		switch op {
		case OpHeader:
			stage = ir.Stage(ops[0])
			name, ok := stageHeaders[stage]
			if !ok {
				return "", fmt.Errorf("tgsi: unknown stage %d", ops[0])
			}
			sb.WriteString(name)
			sb.WriteByte('\n')

		case OpProperty:
			p := Property(ops[0])
			fmt.Fprintf(&sb, "PROPERTY %s %s\n", p, propertyValue(p, ops[1]))

		case OpDeclInput:
			fmt.Fprintf(&sb, "DCL IN[%d]", ops[0])
			if sem := ir.Semantic(ops[1]); sem != ir.SemanticNone {
				fmt.Fprintf(&sb, ", %s", semanticText(sem, ops[2]))
			}
			if interp := ir.Interpolation(ops[3]); stage == ir.StageFragment && interp != ir.InterpCount {
				fmt.Fprintf(&sb, ", %s", interp)
			}
			sb.WriteByte('\n')

		case OpDeclOutput:
			fmt.Fprintf(&sb, "DCL OUT[%d], %s\n", ops[0], semanticText(ir.Semantic(ops[1]), ops[2]))

		case OpDeclResource:
			fmt.Fprintf(&sb, "DCL %s[%d]\n", ir.ResourceKind(ops[0]), ops[1])

		case OpInst:
			strs, err := decodeStrings(ops)
			if err != nil {
				return "", fmt.Errorf("tgsi: token %d: %w", off, err)
			}
			fmt.Fprintf(&sb, "%3d: %s", n, strs[0])
			if len(strs) > 1 {
				fmt.Fprintf(&sb, " %s", strings.Join(strs[1:], ", "))
			}
			sb.WriteByte('\n')
			n++

		case OpEnd:
			fmt.Fprintf(&sb, "%3d: END\n", n)
			if off+count != len(tokens) {
				return "", fmt.Errorf("tgsi: tokens after END at %d", off+count)
			}
			return sb.String(), nil

		default:
			return "", fmt.Errorf("tgsi: unknown opcode %d at token %d", uint16(op), off)
		}
		off += count
	}
	return "", fmt.Errorf("tgsi: missing END")
}

// operandCounts lists the fixed operand count of each opcode; INST is
// variable and absent.
var operandCounts = map[Opcode]int{
	OpHeader:       1,
	OpProperty:     2,
	OpDeclInput:    4,
	OpDeclOutput:   3,
	OpDeclResource: 2,
	OpEnd:          0,
}

func checkOperands(op Opcode, ops []uint32, off int) error {
	if want, ok := operandCounts[op]; ok && len(ops) != want {
		return fmt.Errorf("tgsi: %s at token %d has %d operands, want %d", op, off, len(ops), want)
	}
	if op == OpInst && len(ops) == 0 {
		return fmt.Errorf("tgsi: empty INST at token %d", off)
	}
	return nil
}

func semanticText(sem ir.Semantic, index uint32) string {
	if index == 0 && sem != ir.SemanticGeneric && sem != ir.SemanticTexCoord {
		return sem.String()
	}
	return fmt.Sprintf("%s[%d]", sem, index)
}

func propertyValue(p Property, v uint32) string {
	switch p {
	case PropFSDepthLayout:
		return strings.ToUpper(ir.DepthLayout(v).String())
	case PropGSInputPrim, PropGSOutputPrim:
		return strings.ToUpper(ir.Primitive(v).String())
	default:
		return fmt.Sprintf("%d", v)
	}
}
