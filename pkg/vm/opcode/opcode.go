/*
Package opcode contains the instruction identifiers understood by the script
VM together with the registry describing their operand layout.

Every instruction is identified by a 4-byte little-endian value followed by
zero or more fixed-width operands. The registry is filled at init time with
the built-in instruction set and can be extended by the host before any code
is decoded or executed.
*/
package opcode

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Opcode represents a single operation code for the script VM.
type Opcode uint32

// Built-in instruction set.
const (
	PUSHSTR    Opcode = 0x11223344
	PUSHIMM    Opcode = 0x11443344
	NEWOBJECT  Opcode = 0x06660666
	SETMEMBER  Opcode = 0x00103431
	GETMEMBER  Opcode = 0x00102085
	ADD        Opcode = 0x44221100
	SUB        Opcode = 0x00112233
	CALL       Opcode = 0x00345671
	CALLMETHOD Opcode = 0x00345672
	RET        Opcode = 0x08675309
)

// Operand describes a single fixed-width instruction parameter.
type Operand byte

// Operand kinds.
const (
	// StringIndex is a 2-byte index into the code block string table.
	StringIndex Operand = iota + 1
	// Immediate is a 4-byte constant.
	Immediate
)

// Size returns operand width in bytes.
func (o Operand) Size() int {
	switch o {
	case StringIndex:
		return 2
	case Immediate:
		return 4
	default:
		return 0
	}
}

// String implements fmt.Stringer interface.
func (o Operand) String() string {
	switch o {
	case StringIndex:
		return "string"
	case Immediate:
		return "immediate"
	default:
		return fmt.Sprintf("Operand(%d)", byte(o))
	}
}

// Info is the registry entry of an opcode.
type Info struct {
	Name     string
	Operands []Operand
}

// ParamSize returns the number of parameter bytes following the identifier.
func (i Info) ParamSize() int {
	var n int
	for _, o := range i.Operands {
		n += o.Size()
	}
	return n
}

var (
	// ErrAlreadyRegistered is returned on an attempt to register an opcode
	// or name twice.
	ErrAlreadyRegistered = errors.New("opcode is already registered")
	// ErrReserved is returned on an attempt to register an identifier
	// reserved with Reserve.
	ErrReserved = errors.New("opcode identifier is reserved")

	registryLock sync.RWMutex
	registry     = make(map[Opcode]Info)
	names        = make(map[string]Opcode)
	reserved     = make(map[Opcode]string)
)

func init() {
	for _, d := range []struct {
		op  Opcode
		inf Info
	}{
		{PUSHSTR, Info{"PUSHSTR", []Operand{StringIndex}}},
		{PUSHIMM, Info{"PUSHIMM", []Operand{Immediate}}},
		{NEWOBJECT, Info{Name: "NEWOBJECT"}},
		{SETMEMBER, Info{Name: "SETMEMBER"}},
		{GETMEMBER, Info{Name: "GETMEMBER"}},
		{ADD, Info{Name: "ADD"}},
		{SUB, Info{Name: "SUB"}},
		{CALL, Info{Name: "CALL"}},
		{CALLMETHOD, Info{Name: "CALLMETHOD"}},
		{RET, Info{Name: "RET"}},
	} {
		if err := Register(d.op, d.inf.Name, d.inf.Operands...); err != nil {
			panic(err)
		}
	}
}

// Register adds a new opcode with the given name and operand layout. It's
// supposed to be called during host initialization, before decoding.
func Register(op Opcode, name string, operands ...Operand) error {
	if name == "" {
		return errors.New("empty opcode name")
	}
	for _, o := range operands {
		if o.Size() == 0 {
			return fmt.Errorf("%s: invalid operand %s", name, o)
		}
	}
	name = strings.ToUpper(name)

	registryLock.Lock()
	defer registryLock.Unlock()
	if owner, ok := reserved[op]; ok {
		return fmt.Errorf("%w: 0x%08x is used by %s", ErrReserved, uint32(op), owner)
	}
	if _, ok := registry[op]; ok {
		return fmt.Errorf("%w: 0x%08x", ErrAlreadyRegistered, uint32(op))
	}
	if _, ok := names[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	registry[op] = Info{Name: name, Operands: append([]Operand(nil), operands...)}
	names[name] = op
	return nil
}

// Reserve marks identifiers that are not instructions, but may appear in
// the instruction stream (like code block format markers), so that they're
// never registered as opcodes. Reserving a registered opcode is an error.
func Reserve(owner string, ops ...Opcode) error {
	registryLock.Lock()
	defer registryLock.Unlock()
	for _, op := range ops {
		if inf, ok := registry[op]; ok {
			return fmt.Errorf("%w: 0x%08x is %s", ErrAlreadyRegistered, uint32(op), inf.Name)
		}
	}
	for _, op := range ops {
		reserved[op] = owner
	}
	return nil
}

// Lookup returns registry entry for op.
func Lookup(op Opcode) (Info, bool) {
	registryLock.RLock()
	defer registryLock.RUnlock()
	inf, ok := registry[op]
	return inf, ok
}

// IsValid returns true if the opcode passed is registered.
func IsValid(op Opcode) bool {
	_, ok := Lookup(op)
	return ok
}

// FromString converts string representation to an opcode itself.
func FromString(s string) (Opcode, error) {
	registryLock.RLock()
	defer registryLock.RUnlock()
	if op, ok := names[strings.ToUpper(s)]; ok {
		return op, nil
	}
	return 0, fmt.Errorf("unknown opcode %q", s)
}

// String implements fmt.Stringer interface.
func (op Opcode) String() string {
	if inf, ok := Lookup(op); ok {
		return inf.Name
	}
	return fmt.Sprintf("Opcode(0x%08x)", uint32(op))
}
