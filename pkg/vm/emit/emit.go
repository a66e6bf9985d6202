// Package emit contains helpers writing raw compiled script data. Nothing is
// validated here, so it can be used to produce malformed code blocks as well.
package emit

import (
	"github.com/tribes-emu/dsovm/pkg/dso"
	"github.com/tribes-emu/dsovm/pkg/io"
	"github.com/tribes-emu/dsovm/pkg/vm/opcode"
)

// Header emits the version 1 header: version tag, string table and its
// terminator.
func Header(w *io.BinWriter, strs ...string) {
	w.WriteU32LE(dso.V1)
	StringTable(w, uint32(len(strs)), strs...)
}

// StringTable emits a string table declaring count entries (which may differ
// from the actual number of strs) followed by the table terminator.
func StringTable(w *io.BinWriter, count uint32, strs ...string) {
	w.WriteU32LE(count)
	for _, s := range strs {
		w.WriteString(s, 0)
	}
	w.WriteU32LE(dso.V1StringTableEnd)
}

// Opcode emits a single instruction id without parameters.
func Opcode(w *io.BinWriter, op opcode.Opcode) {
	w.WriteU32LE(uint32(op))
}

// Instruction emits an instruction with parameters laid out according to the
// opcode operands. Unknown opcodes get all parameters as 4-byte values.
func Instruction(w *io.BinWriter, op opcode.Opcode, params ...uint32) {
	Opcode(w, op)
	inf, ok := opcode.Lookup(op)
	for i, p := range params {
		size := 4
		if ok && i < len(inf.Operands) {
			size = inf.Operands[i].Size()
		}
		w.WriteFixed(size, uint64(p))
	}
}

// String emits PUSHSTR referencing string table entry idx.
func String(w *io.BinWriter, idx uint16) {
	Instruction(w, opcode.PUSHSTR, uint32(idx))
}

// Immediate emits PUSHIMM with the given value.
func Immediate(w *io.BinWriter, v uint32) {
	Instruction(w, opcode.PUSHIMM, v)
}

// Call emits CALL.
func Call(w *io.BinWriter) {
	Opcode(w, opcode.CALL)
}

// Return emits RET.
func Return(w *io.BinWriter) {
	Opcode(w, opcode.RET)
}

// FunctionBegin emits function declaration start with the given name.
func FunctionBegin(w *io.BinWriter, name string) {
	w.WriteU32LE(dso.V1FunctionBegin)
	w.WriteString(name, 0)
}

// FunctionEnd emits function declaration end marker.
func FunctionEnd(w *io.BinWriter) {
	w.WriteU32LE(dso.V1FunctionEnd)
}

// Function emits a complete function declaration with the given body.
func Function(w *io.BinWriter, name string, body func(w *io.BinWriter)) {
	FunctionBegin(w, name)
	body(w)
	FunctionEnd(w)
}
