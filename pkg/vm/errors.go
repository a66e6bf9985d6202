package vm

import (
	"errors"
	"fmt"

	"github.com/tribes-emu/dsovm/pkg/dso"
	"github.com/tribes-emu/dsovm/pkg/sim"
	"github.com/tribes-emu/dsovm/pkg/vm/opcode"
)

// Execution errors, all of them abort the current call.
var (
	ErrStackUnderflow         = errors.New("stack underflow")
	ErrTypeCoercion           = sim.ErrTypeCoercion
	ErrStringIndex            = dso.ErrStringIndex
	ErrUnsupportedInstruction = errors.New("unsupported instruction")
	ErrCallDepth              = errors.New("call depth limit exceeded")
)

var (
	// ErrDuplicateFunction is returned when a code block declares the same
	// function twice.
	ErrDuplicateFunction = dso.ErrDuplicateFunction
	// ErrShutdown is returned for calls made after a shutdown request.
	ErrShutdown = errors.New("VM is shut down")
	// ErrUnknownObject is returned for identifiers missing from the object
	// table.
	ErrUnknownObject = errors.New("unknown object")
)

// ExecutionError describes the instruction that failed. Built-in failures
// have no instruction, Op is zero for them.
type ExecutionError struct {
	// Function name, empty for global code.
	Function string
	// IP is the index of the failed instruction.
	IP  int
	Op  opcode.Opcode
	Err error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	fn := e.Function
	if fn == "" {
		fn = "global code"
	}
	if e.Op == 0 {
		return fmt.Sprintf("%s: %v", fn, e.Err)
	}
	return fmt.Sprintf("%s at %d (%s): %v", fn, e.IP, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}
