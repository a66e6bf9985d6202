package dso

import (
	"errors"
	"fmt"

	"github.com/tribes-emu/dsovm/pkg/io"
)

// Decoding errors. All of them are fatal for the code block being decoded,
// use errors.Is to check for a particular one.
var (
	ErrOutOfBounds         = io.ErrOutOfBounds
	ErrMissingTerminator   = io.ErrMissingTerminator
	ErrUnknownVersion      = errors.New("unknown compiled file version")
	ErrUnknownInstruction  = errors.New("unknown instruction")
	ErrDuplicateFunction   = errors.New("duplicate function")
	ErrStringTableMismatch = errors.New("string table mismatch")
)

// ErrStringIndex is returned by Validate (and by the VM at runtime) for an
// instruction referencing a non-existent string table entry.
var ErrStringIndex = errors.New("string index out of range")

// ErrParamCount is returned when an instruction doesn't have the number of
// parameters its opcode layout requires.
var ErrParamCount = errors.New("wrong number of instruction parameters")

// DecodeError is returned from Decode, it carries the offset at which
// decoding failed.
type DecodeError struct {
	Offset int
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("dso decode at offset %d: %v", e.Offset, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

func newDecodeError(r *io.BinReader) error {
	var de *DecodeError
	if errors.As(r.Err, &de) {
		return de
	}
	return &DecodeError{Offset: r.Pos(), Err: r.Err}
}
