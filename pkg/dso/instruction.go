package dso

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tribes-emu/dsovm/pkg/io"
	"github.com/tribes-emu/dsovm/pkg/vm/opcode"
)

// Instruction is a single decoded VM instruction: an opcode and its operands
// in the order defined by the opcode layout.
type Instruction struct {
	Op     opcode.Opcode
	Params []uint32
}

// NewInstruction creates an instruction checking its parameters against the
// opcode layout.
func NewInstruction(op opcode.Opcode, params ...uint32) (Instruction, error) {
	inf, ok := opcode.Lookup(op)
	if !ok {
		return Instruction{}, fmt.Errorf("%w: %s", ErrUnknownInstruction, op)
	}
	if err := checkParams(inf, params); err != nil {
		return Instruction{}, fmt.Errorf("%s: %w", inf.Name, err)
	}
	ins := Instruction{Op: op}
	if len(params) != 0 {
		ins.Params = append([]uint32(nil), params...)
	}
	return ins, nil
}

// MustInstruction is like NewInstruction, but panics on error. Useful for
// program construction in tests and embedding code.
func MustInstruction(op opcode.Opcode, params ...uint32) Instruction {
	ins, err := NewInstruction(op, params...)
	if err != nil {
		panic(err)
	}
	return ins
}

func checkParams(inf opcode.Info, params []uint32) error {
	if len(params) != len(inf.Operands) {
		return fmt.Errorf("%w: %d instead of %d", ErrParamCount, len(params), len(inf.Operands))
	}
	for i, o := range inf.Operands {
		if o.Size() < 4 && params[i]>>(8*o.Size()) != 0 {
			return fmt.Errorf("%s operand %d doesn't fit in %d bytes", o, params[i], o.Size())
		}
	}
	return nil
}

// Size returns the encoded size of the instruction.
func (i Instruction) Size() int {
	inf, _ := opcode.Lookup(i.Op)
	return 4 + inf.ParamSize()
}

// DecodeBinary implements io.Serializable interface.
func (i *Instruction) DecodeBinary(r *io.BinReader) {
	i.Op = opcode.Opcode(r.ReadU32LE())
	if r.Err != nil {
		return
	}
	inf, ok := opcode.Lookup(i.Op)
	if !ok {
		r.Err = fmt.Errorf("%w: 0x%08x", ErrUnknownInstruction, uint32(i.Op))
		return
	}
	i.Params = nil
	for _, o := range inf.Operands {
		i.Params = append(i.Params, uint32(r.ReadFixed(o.Size())))
	}
}

// EncodeBinary implements io.Serializable interface.
func (i *Instruction) EncodeBinary(w *io.BinWriter) {
	if w.Err != nil {
		return
	}
	inf, ok := opcode.Lookup(i.Op)
	if !ok {
		w.Err = fmt.Errorf("%w: 0x%08x", ErrUnknownInstruction, uint32(i.Op))
		return
	}
	if err := checkParams(inf, i.Params); err != nil {
		w.Err = fmt.Errorf("%s: %w", inf.Name, err)
		return
	}
	w.WriteU32LE(uint32(i.Op))
	for n, o := range inf.Operands {
		w.WriteFixed(o.Size(), uint64(i.Params[n]))
	}
}

// String implements fmt.Stringer interface.
func (i Instruction) String() string {
	if len(i.Params) == 0 {
		return i.Op.String()
	}
	var sb strings.Builder
	sb.WriteString(i.Op.String())
	for _, p := range i.Params {
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatUint(uint64(p), 10))
	}
	return sb.String()
}
