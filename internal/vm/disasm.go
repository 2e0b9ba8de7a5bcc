package vm

import (
	"fmt"
	"strings"
)

// DisassembleInstruction renders the instruction at offset as a single
// human-readable line: offset, source line, opcode name, and (for
// opcodes that carry one) the decoded operand. Mirrors the reference VM's
// disassemble_instruction, used both by the `-d` CLI flag and by
// DebugFlags.DisassembleInstruction during Execute.
func DisassembleInstruction(c *Chunk, offset int) string {
	instr := c.Code[offset]
	var b strings.Builder
	fmt.Fprintf(&b, "%04d %4d  %-14s", offset, c.LineAt(offset), instr.Opcode.String())

	if !instr.Opcode.hasPayloadOperand() {
		return b.String()
	}

	switch instr.Opcode {
	case OP_CONSTANT:
		fmt.Fprintf(&b, " %4d  '%s'", instr.Payload, c.Constants[instr.Payload].String())
	case OP_LOOKUP_GLOBAL, OP_DEFINE_GLOBAL, OP_ASSIGN_GLOBAL:
		fmt.Fprintf(&b, " %4d  '%s'", instr.Payload, c.Identifier(instr.Payload))
	case OP_LOOKUP_LOCAL, OP_ASSIGN_LOCAL:
		if name := c.LocalName(int(instr.Payload)); name != "" {
			fmt.Fprintf(&b, " %4d  '%s'", instr.Payload, name)
		} else {
			fmt.Fprintf(&b, " %4d", instr.Payload)
		}
	case OP_JUMP, OP_JUMP_IF_FALSE, OP_AND, OP_OR:
		fmt.Fprintf(&b, " %4d -> %d", instr.Payload, offset+int(instr.Payload))
	case OP_LOOP:
		fmt.Fprintf(&b, " %4d -> %d", instr.Payload, offset-int(instr.Payload))
	default:
		fmt.Fprintf(&b, " %4d", instr.Payload)
	}
	return b.String()
}

// Disassemble renders every instruction in c, labeled with name (spec's
// `-d` CLI flag dumps the whole top-level chunk this way).
func Disassemble(c *Chunk, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); offset++ {
		b.WriteString(DisassembleInstruction(c, offset))
		b.WriteByte('\n')
	}
	return b.String()
}

// DisassembleConstants renders the constant pool, for DebugFlags.PrintConstants.
func DisassembleConstants(c *Chunk) string {
	var b strings.Builder
	fmt.Fprintln(&b, "== constants ==")
	for i, v := range c.Constants {
		fmt.Fprintf(&b, "%4d  %s\n", i, v.String())
	}
	return b.String()
}
