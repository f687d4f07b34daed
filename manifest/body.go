package manifest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/uam/ir"
)

// body emits the manifest's instruction list, resolving slot references
// against the register assignment.
type body struct {
	in, out ir.SlotSpace
	insts   [][]string
}

// slotRef is a parsed IN:<slot> or OUT:<slot> operand. A trailing prime,
// as in OUT:DATA0', selects the dual-source output bank.
type slotRef struct {
	output    bool
	space     ir.SlotSpace
	slot      uint8
	secondary bool
}

// parseRef parses op. The second result is false for operands that are not
// slot references; they are emitted unchanged.
func (b *body) parseRef(op string) (slotRef, bool, error) {
	var r slotRef
	name, ok := strings.CutPrefix(op, "IN:")
	r.space = b.in
	if !ok {
		if name, ok = strings.CutPrefix(op, "OUT:"); !ok {
			return r, false, nil
		}
		r.output, r.space = true, b.out
	}
	name, r.secondary = strings.CutSuffix(name, "'")
	if r.secondary && !r.output {
		return r, true, fmt.Errorf("%s: only outputs have a secondary bank", op)
	}
	slot, err := parseSlot(r.space, name)
	if err != nil {
		return r, true, err
	}
	r.slot = slot
	return r, true, nil
}

// check validates the instruction list without a register assignment.
func (b *body) check() error {
	for i, inst := range b.insts {
		if len(inst) == 0 || inst[0] == "" {
			return fmt.Errorf("manifest: body instruction %d has no opcode", i)
		}
		for _, op := range inst[1:] {
			if _, _, err := b.parseRef(op); err != nil {
				return fmt.Errorf("manifest: body instruction %d: %w", i, err)
			}
		}
	}
	return nil
}

// Translate implements ir.Body.
func (b *body) Translate(e ir.Emitter, m *ir.IOMap) error {
	for i, inst := range b.insts {
		ops := make([]string, len(inst)-1)
		for j, op := range inst[1:] {
			reg, err := b.resolve(op, m)
			if err != nil {
				return fmt.Errorf("instruction %d: %w", i, err)
			}
			ops[j] = reg
		}
		e.Inst(inst[0], ops...)
	}
	return nil
}

func (b *body) resolve(op string, m *ir.IOMap) (string, error) {
	r, ok, err := b.parseRef(op)
	if err != nil || !ok {
		return op, err
	}

	file, bindings := "IN", m.Inputs
	if r.output {
		file, bindings = "OUT", m.Outputs
	}
	// A slot swept into its own register wins over the vertex edge flag
	// reservation, which only serves programs that never declared it.
	reg := -1
	for _, bd := range bindings {
		if bd.Space != r.space || bd.Slot != r.slot || bd.Secondary != r.secondary || bd.Placeholder {
			continue
		}
		if !bd.Synthetic {
			reg = bd.Index
			break
		}
		if reg < 0 {
			reg = bd.Index
		}
	}
	if reg < 0 {
		return "", fmt.Errorf("%s has no register", op)
	}
	return file + "[" + strconv.Itoa(reg) + "]", nil
}
