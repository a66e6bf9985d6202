package dso

import (
	"fmt"

	"github.com/tribes-emu/dsovm/pkg/io"
	"github.com/tribes-emu/dsovm/pkg/vm/opcode"
)

// Version 1 layout constants.
//
//	+-----------------+-----------+------------------------------------------+
//	|      Field      |  Length   |                 Comment                  |
//	+-----------------+-----------+------------------------------------------+
//	| Version         | 4 bytes   | V1                                       |
//	| String count    | 4 bytes   | Number of string table entries           |
//	| Strings         | var       | NUL-terminated entries, NUL padding      |
//	| Table end       | 4 bytes   | V1StringTableEnd                         |
//	+-----------------+-----------+------------------------------------------+
//	| Items           | var       | Until the end of data, each one is:      |
//	|                 |           | - a registered instruction               |
//	|                 |           | - V1FunctionBegin + NUL-terminated name  |
//	|                 |           | - V1FunctionEnd                          |
//	+-----------------+-----------+------------------------------------------+
const (
	V1               uint32 = 0xdeadbeef
	V1StringTableEnd uint32 = 0x00000cab
	V1FunctionBegin  uint32 = 0x12345678
	V1FunctionEnd    uint32 = 0x00abcdef
)

type formatV1 struct{}

// Version implements Format interface.
func (formatV1) Version() uint32 {
	return V1
}

// Markers implements MarkedFormat interface.
func (formatV1) Markers() []opcode.Opcode {
	return []opcode.Opcode{
		opcode.Opcode(V1StringTableEnd),
		opcode.Opcode(V1FunctionBegin),
		opcode.Opcode(V1FunctionEnd),
	}
}

// DecodeBinary implements Format interface.
func (formatV1) DecodeBinary(r *io.BinReader, cb *CodeBlock) {
	cb.Strings = decodeStringTableV1(r)
	if r.Err != nil {
		return
	}

	current := -1
	for r.Err == nil && r.Remaining() > 0 {
		offset := r.Pos()
		id := r.PeekU32LE()
		if r.Err != nil {
			return
		}
		if opcode.IsValid(opcode.Opcode(id)) {
			var ins Instruction
			ins.DecodeBinary(r)
			if r.Err != nil {
				return
			}
			if current < 0 {
				cb.Global = append(cb.Global, ins)
			} else {
				cb.Functions[current].Code = append(cb.Functions[current].Code, ins)
			}
			continue
		}
		r.ReadU32LE()
		switch id {
		case V1FunctionBegin:
			name := LowerName(r.ReadString(0))
			if r.Err != nil {
				return
			}
			if current >= 0 {
				r.Err = &DecodeError{Offset: offset, Err: fmt.Errorf("%w: %q declared inside %q",
					ErrDuplicateFunction, name, cb.Functions[current].Name)}
				return
			}
			if cb.Function(name) != nil {
				r.Err = &DecodeError{Offset: offset, Err: fmt.Errorf("%w: %q declared multiple times",
					ErrDuplicateFunction, name)}
				return
			}
			cb.Functions = append(cb.Functions, Function{Name: name})
			current = len(cb.Functions) - 1
		case V1FunctionEnd:
			current = -1
		default:
			r.Err = &DecodeError{Offset: offset, Err: fmt.Errorf("%w: 0x%08x", ErrUnknownInstruction, id)}
		}
	}
}

func decodeStringTableV1(r *io.BinReader) []string {
	count := r.ReadU32LE()
	if r.Err != nil {
		return nil
	}
	// Every entry takes at least its terminator.
	if uint64(count) > uint64(r.Remaining()) {
		r.Err = fmt.Errorf("%w: %d entries declared, %d bytes left", ErrStringTableMismatch, count, r.Remaining())
		return nil
	}
	var strs []string
	for i := uint32(0); i < count; i++ {
		s := r.ReadString(0)
		if r.Err != nil {
			r.Err = fmt.Errorf("%w: entry %d of %d: %w", ErrStringTableMismatch, i, count, r.Err)
			return nil
		}
		strs = append(strs, s)
	}
	for r.Remaining() > 0 && r.PeekFixed(1) == 0 {
		r.ReadB()
	}
	if end := r.ReadU32LE(); r.Err != nil {
		r.Err = fmt.Errorf("%w: no terminator: %w", ErrStringTableMismatch, r.Err)
		return nil
	} else if end != V1StringTableEnd {
		r.Err = fmt.Errorf("%w: expected %d entries, got 0x%08x instead of terminator", ErrStringTableMismatch, count, end)
		return nil
	}
	return strs
}

// EncodeBinary implements Format interface.
func (formatV1) EncodeBinary(w *io.BinWriter, cb *CodeBlock) {
	w.WriteU32LE(uint32(len(cb.Strings)))
	for _, s := range cb.Strings {
		w.WriteString(s, 0)
	}
	w.WriteU32LE(V1StringTableEnd)
	for i := range cb.Global {
		cb.Global[i].EncodeBinary(w)
	}
	for _, f := range cb.Functions {
		w.WriteU32LE(V1FunctionBegin)
		w.WriteString(f.Name, 0)
		for i := range f.Code {
			f.Code[i].EncodeBinary(w)
		}
		w.WriteU32LE(V1FunctionEnd)
	}
}
