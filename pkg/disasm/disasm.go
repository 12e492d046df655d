// Package disasm renders a compiled value.Chunk as human-readable
// bytecode listing text, the way the teacher's debugger formatted
// instructions for its own dispatch loop. It never reads or writes
// bytecode to disk; persistence is explicitly out of scope.
package disasm

import (
	"fmt"
	"io"

	"github.com/kristofer/cinder/pkg/chunk"
	"github.com/kristofer/cinder/pkg/value"
)

// Disassemble writes every instruction in c to w, one per line,
// prefixed with name on its own header line.
func Disassemble(w io.Writer, c *value.Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < c.Len(); {
		offset = Instruction(w, c, offset)
	}
}

// Instruction writes the single instruction at offset and returns the
// offset of the instruction that follows it.
func Instruction(w io.Writer, c *value.Chunk, offset int) int {
	if offset > 0 && c.LineOf(offset) == c.LineOf(offset-1) {
		fmt.Fprintf(w, "%04d    | ", offset)
	} else {
		fmt.Fprintf(w, "%04d %4d ", offset, c.LineOf(offset))
	}

	op := chunk.Opcode(c.Code[offset])
	switch op {
	case chunk.OpConstant:
		return constantInstr(w, c, op, offset, 1)
	case chunk.OpLongConstant, chunk.OpDefineLongGlobal, chunk.OpGetLongGlobal, chunk.OpSetLongGlobal:
		return constantInstr(w, c, op, offset, 2)
	case chunk.OpDefineGlobal, chunk.OpGetGlobal, chunk.OpSetGlobal:
		return constantInstr(w, c, op, offset, 1)

	case chunk.OpGetLocal, chunk.OpSetLocal, chunk.OpGetUpvalue, chunk.OpSetUpvalue, chunk.OpCall:
		return byteOperandInstr(w, op, c, offset)

	case chunk.OpJump, chunk.OpJumpIfFalse, chunk.OpJumpIfTrue:
		return jumpInstr(w, op, c, offset, 1)
	case chunk.OpLoop:
		return jumpInstr(w, op, c, offset, -1)

	case chunk.OpClosure:
		return closureInstr(w, c, offset)

	default:
		fmt.Fprintln(w, op)
		return offset + 1
	}
}

func constantInstr(w io.Writer, c *value.Chunk, op chunk.Opcode, offset, operandWidth int) int {
	var idx int
	if operandWidth == 1 {
		idx = int(c.Code[offset+1])
	} else {
		idx = int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	}
	fmt.Fprintf(w, "%-18s %4d '%s'\n", op, idx, c.Constants[idx].String())
	return offset + 1 + operandWidth
}

func byteOperandInstr(w io.Writer, op chunk.Opcode, c *value.Chunk, offset int) int {
	operand := c.Code[offset+1]
	fmt.Fprintf(w, "%-18s %4d\n", op, operand)
	return offset + 2
}

func jumpInstr(w io.Writer, op chunk.Opcode, c *value.Chunk, offset, sign int) int {
	jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	target := offset + 3 + sign*jump
	fmt.Fprintf(w, "%-18s %4d -> %d\n", op, offset, target)
	return offset + 3
}

func closureInstr(w io.Writer, c *value.Chunk, offset int) int {
	constIdx := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	fmt.Fprintf(w, "%-18s %4d '%s'\n", chunk.OpClosure, constIdx, c.Constants[constIdx].String())
	cursor := offset + 3
	upvalueCount := int(c.Code[cursor])
	cursor++
	for i := 0; i < upvalueCount; i++ {
		isLocal := c.Code[cursor]
		index := c.Code[cursor+1]
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(w, "%04d      |                     %s %d\n", cursor, kind, index)
		cursor += 2
	}
	return cursor
}
