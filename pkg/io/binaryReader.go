package io

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds is returned when a read needs more bytes than left in the buffer.
	ErrOutOfBounds = errors.New("out of bounds read")
	// ErrMissingTerminator is returned when the buffer ends before the terminator byte.
	ErrMissingTerminator = errors.New("missing terminator")
)

// BinReader is a forward-only reader over an immutable byte buffer. Just like
// neo-go readers it latches the first error, all subsequent reads are no-ops
// returning zero values, so a structure with many fields can be read without
// checking every call.
type BinReader struct {
	data []byte
	pos  int
	Err  error
}

// NewBinReaderFromBuf makes a BinReader from byte buffer.
func NewBinReaderFromBuf(b []byte) *BinReader {
	return &BinReader{data: b}
}

// Len returns the length of the underlying buffer.
func (r *BinReader) Len() int {
	return len(r.data)
}

// Pos returns the current cursor position.
func (r *BinReader) Pos() int {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *BinReader) Remaining() int {
	if r.pos >= len(r.data) {
		return 0
	}
	return len(r.data) - r.pos
}

// ReadFixed reads an unsigned little-endian integer of the given width (1, 2,
// 4 or 8 bytes) and advances the cursor.
func (r *BinReader) ReadFixed(width int) uint64 {
	v := r.PeekFixed(width)
	if r.Err == nil {
		r.pos += width
	}
	return v
}

// PeekFixed is the same as ReadFixed, but it doesn't move the cursor.
func (r *BinReader) PeekFixed(width int) uint64 {
	if r.Err != nil {
		return 0
	}
	if r.Remaining() < width {
		r.Err = fmt.Errorf("%w: %d bytes at offset %d, %d left", ErrOutOfBounds, width, r.pos, r.Remaining())
		return 0
	}
	b := r.data[r.pos : r.pos+width]
	switch width {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	default:
		r.Err = fmt.Errorf("unsupported fixed width %d", width)
		return 0
	}
}

// ReadU32LE reads a little-endian uint32.
func (r *BinReader) ReadU32LE() uint32 {
	return uint32(r.ReadFixed(4))
}

// PeekU32LE returns the next little-endian uint32 without advancing.
func (r *BinReader) PeekU32LE() uint32 {
	return uint32(r.PeekFixed(4))
}

// ReadU16LE reads a little-endian uint16.
func (r *BinReader) ReadU16LE() uint16 {
	return uint16(r.ReadFixed(2))
}

// ReadB reads a single byte.
func (r *BinReader) ReadB() byte {
	return byte(r.ReadFixed(1))
}

// ReadBytes fills the given slice from the buffer.
func (r *BinReader) ReadBytes(b []byte) {
	if r.Err != nil {
		return
	}
	if r.Remaining() < len(b) {
		r.Err = fmt.Errorf("%w: %d bytes at offset %d, %d left", ErrOutOfBounds, len(b), r.pos, r.Remaining())
		return
	}
	r.pos += copy(b, r.data[r.pos:])
}

// ReadTerminated returns the bytes between the cursor and the first
// occurrence of term and moves the cursor past the terminator. The result
// shares memory with the underlying buffer and shouldn't be modified.
func (r *BinReader) ReadTerminated(term byte) []byte {
	b := r.PeekTerminated(term)
	if r.Err == nil {
		r.pos += len(b) + 1
	}
	return b
}

// PeekTerminated is the same as ReadTerminated, but it doesn't move the cursor.
func (r *BinReader) PeekTerminated(term byte) []byte {
	if r.Err != nil {
		return nil
	}
	if r.pos >= len(r.data) {
		r.Err = fmt.Errorf("%w: offset %d, buffer length %d", ErrOutOfBounds, r.pos, len(r.data))
		return nil
	}
	i := bytes.IndexByte(r.data[r.pos:], term)
	if i < 0 {
		r.Err = fmt.Errorf("%w: 0x%02x after offset %d", ErrMissingTerminator, term, r.pos)
		return nil
	}
	return r.data[r.pos : r.pos+i]
}

// ReadString reads a terminated string, see ReadTerminated.
func (r *BinReader) ReadString(term byte) string {
	return string(r.ReadTerminated(term))
}
