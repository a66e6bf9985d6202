/*
Package dso implements the compiled script object (DSO) format: a versioned
binary container holding a string table, global code and named functions.

	+-----------------+-----------+------------------------------------------+
	|      Field      |  Length   |                 Comment                  |
	+-----------------+-----------+------------------------------------------+
	| Version         | 4 bytes   | Format version tag, selects the layout   |
	+-----------------+-----------+------------------------------------------+
	| Body            | ...       | Version-specific, see formatV1           |
	+-----------------+-----------+------------------------------------------+

Decoding always goes through the version tag first and then the concrete
Format registered for it, every format shares the same io.BinReader and
Instruction primitives.
*/
package dso

import (
	"fmt"

	"github.com/tribes-emu/dsovm/pkg/vm/opcode"
)

// CodeBlock is a compiled unit of script code.
type CodeBlock struct {
	// Version is the format version the block is encoded with.
	Version uint32
	// Strings is the string table referenced by PUSHSTR-like instructions.
	Strings []string
	// Global is the code executed once when the block is registered.
	Global []Instruction
	// Functions are named instruction sequences in declaration order.
	Functions []Function
}

// Function is a named instruction sequence of a code block.
type Function struct {
	Name string
	Code []Instruction
}

// New returns an empty code block using the latest format version.
func New() *CodeBlock {
	return &CodeBlock{Version: V1}
}

// AddString returns the index of s in the string table appending it if
// there is no such string yet.
func (cb *CodeBlock) AddString(s string) uint16 {
	for i := range cb.Strings {
		if cb.Strings[i] == s {
			return uint16(i)
		}
	}
	cb.Strings = append(cb.Strings, s)
	return uint16(len(cb.Strings) - 1)
}

// StringAt returns string table entry number idx.
func (cb *CodeBlock) StringAt(idx int) (string, error) {
	if idx < 0 || idx >= len(cb.Strings) {
		return "", fmt.Errorf("%w: %d of %d", ErrStringIndex, idx, len(cb.Strings))
	}
	return cb.Strings[idx], nil
}

// AddFunction declares a new function, names are stored lower-cased (ASCII
// only) just like the decoder does.
func (cb *CodeBlock) AddFunction(name string, code ...Instruction) error {
	name = LowerName(name)
	if cb.Function(name) != nil {
		return fmt.Errorf("%w: %q", ErrDuplicateFunction, name)
	}
	cb.Functions = append(cb.Functions, Function{Name: name, Code: code})
	return nil
}

// Function returns function with the given (already lower-cased) name or nil.
func (cb *CodeBlock) Function(name string) *Function {
	for i := range cb.Functions {
		if cb.Functions[i].Name == name {
			return &cb.Functions[i]
		}
	}
	return nil
}

// Validate checks that function names are unique and all instructions match
// their opcode layout and reference existing strings.
func (cb *CodeBlock) Validate() error {
	seen := make(map[string]struct{}, len(cb.Functions))
	for _, f := range cb.Functions {
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateFunction, f.Name)
		}
		seen[f.Name] = struct{}{}
		if err := cb.validateCode(f.Code); err != nil {
			return fmt.Errorf("function %q: %w", f.Name, err)
		}
	}
	if err := cb.validateCode(cb.Global); err != nil {
		return fmt.Errorf("global code: %w", err)
	}
	return nil
}

func (cb *CodeBlock) validateCode(code []Instruction) error {
	for n, ins := range code {
		inf, ok := opcode.Lookup(ins.Op)
		if !ok {
			return fmt.Errorf("instruction %d: %w: 0x%08x", n, ErrUnknownInstruction, uint32(ins.Op))
		}
		if err := checkParams(inf, ins.Params); err != nil {
			return fmt.Errorf("instruction %d (%s): %w", n, inf.Name, err)
		}
		for i, o := range inf.Operands {
			if o == opcode.StringIndex {
				if _, err := cb.StringAt(int(ins.Params[i])); err != nil {
					return fmt.Errorf("instruction %d (%s): %w", n, inf.Name, err)
				}
			}
		}
	}
	return nil
}

// LowerName lower-cases ASCII letters of a function name leaving all other
// bytes intact, so raw legacy-charset names survive unchanged.
func LowerName(name string) string {
	var b []byte
	for i := 0; i < len(name); i++ {
		if c := name[i]; 'A' <= c && c <= 'Z' {
			if b == nil {
				b = []byte(name)
			}
			b[i] = c + 'a' - 'A'
		}
	}
	if b == nil {
		return name
	}
	return string(b)
}
