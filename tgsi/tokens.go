// Package tgsi builds the IR token stream handed to the machine-code
// generator.
//
// A program is a sequence of instructions. Each instruction starts with a
// word holding the word count in the high 16 bits and the opcode in the low
// 16 bits, followed by its operands:
//
//	HEADER   stage
//	PROPERTY property value
//	DCL_IN   index semantic semantic-index interpolation
//	DCL_OUT  index semantic semantic-index
//	DCL_RES  kind binding
//	INST     null-terminated strings (mnemonic, operands...)
//	END
//
// The declarations come from a semantic IOMap; the instruction body comes
// from the front end's translation routine and is carried opaquely.
package tgsi

import "fmt"

// Opcode identifies a token stream instruction.
type Opcode uint16

const (
	OpHeader Opcode = iota + 1
	OpProperty
	OpDeclInput
	OpDeclOutput
	OpDeclResource
	OpInst
	OpEnd
)

var opcodeNames = map[Opcode]string{
	OpHeader:       "HEADER",
	OpProperty:     "PROPERTY",
	OpDeclInput:    "DCL_IN",
	OpDeclOutput:   "DCL_OUT",
	OpDeclResource: "DCL_RES",
	OpInst:         "INST",
	OpEnd:          "END",
}

func (o Opcode) String() string {
	if n, ok := opcodeNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Opcode(%d)", uint16(o))
}

// Property is a stage-level program property.
type Property uint16

const (
	PropNumClipDistEnabled Property = iota
	PropNumCullDistEnabled
	PropFSColor0WritesAllCbufs
	PropFSDepthLayout
	PropFSEarlyDepthStencil
	PropFSPostDepthCoverage
	PropCSFixedBlockWidth
	PropCSFixedBlockHeight
	PropCSFixedBlockDepth
	PropCSSharedMemory
	PropGSInputPrim
	PropGSOutputPrim
	PropGSMaxOutputVertices
	PropGSInvocations
	PropTCSVerticesOut
)

var propertyNames = [...]string{
	PropNumClipDistEnabled:     "NUM_CLIPDIST_ENABLED",
	PropNumCullDistEnabled:     "NUM_CULLDIST_ENABLED",
	PropFSColor0WritesAllCbufs: "FS_COLOR0_WRITES_ALL_CBUFS",
	PropFSDepthLayout:          "FS_DEPTH_LAYOUT",
	PropFSEarlyDepthStencil:    "FS_EARLY_DEPTH_STENCIL",
	PropFSPostDepthCoverage:    "FS_POST_DEPTH_COVERAGE",
	PropCSFixedBlockWidth:      "CS_FIXED_BLOCK_WIDTH",
	PropCSFixedBlockHeight:     "CS_FIXED_BLOCK_HEIGHT",
	PropCSFixedBlockDepth:      "CS_FIXED_BLOCK_DEPTH",
	PropCSSharedMemory:         "CS_SHARED_MEMORY",
	PropGSInputPrim:            "GS_INPUT_PRIMITIVE",
	PropGSOutputPrim:           "GS_OUTPUT_PRIMITIVE",
	PropGSMaxOutputVertices:    "GS_MAX_OUTPUT_VERTICES",
	PropGSInvocations:          "GS_INVOCATIONS",
	PropTCSVerticesOut:         "TCS_VERTICES_OUT",
}

func (p Property) String() string {
	if int(p) < len(propertyNames) {
		return propertyNames[p]
	}
	return fmt.Sprintf("Property(%d)", uint16(p))
}

// Instruction is one decoded or pending token stream instruction.
type Instruction struct {
	Opcode Opcode
	Words  []uint32
}

// Encode encodes the instruction to words.
func (i Instruction) Encode() []uint32 {
	wordCount := uint32(len(i.Words) + 1)
	result := make([]uint32, 0, wordCount)
	result = append(result, (wordCount<<16)|uint32(i.Opcode))
	result = append(result, i.Words...)
	return result
}

// instBuilder accumulates the operands of one instruction.
type instBuilder struct {
	words []uint32
}

func (b *instBuilder) word(w uint32) *instBuilder {
	b.words = append(b.words, w)
	return b
}

// str appends a null-terminated string padded to a word boundary.
func (b *instBuilder) str(s string) *instBuilder {
	bytes := append([]byte(s), 0)
	for len(bytes)%4 != 0 {
		bytes = append(bytes, 0)
	}
	for i := 0; i < len(bytes); i += 4 {
		b.words = append(b.words, uint32(bytes[i])|
			uint32(bytes[i+1])<<8|
			uint32(bytes[i+2])<<16|
			uint32(bytes[i+3])<<24)
	}
	return b
}

func (b *instBuilder) build(op Opcode) Instruction {
	return Instruction{Opcode: op, Words: b.words}
}

// decodeStrings splits string operands packed by instBuilder.str.
func decodeStrings(words []uint32) ([]string, error) {
	var (
		out  []string
		cur  []byte
		open bool
	)
	for _, w := range words {
		open = true
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c != 0 {
				cur = append(cur, c)
				continue
			}
			// Strings start on word boundaries, so the rest of the
			// word after the terminator is padding.
			out = append(out, string(cur))
			cur = cur[:0]
			open = false
			break
		}
	}
	if open {
		return nil, fmt.Errorf("unterminated string operand")
	}
	return out, nil
}
