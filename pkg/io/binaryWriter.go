package io

import (
	"encoding/binary"
	"io"
)

// BinWriter is a convenient wrapper around an io.Writer and err object.
// Used to simplify error handling when writing into an io.Writer
// from a struct with many fields.
type BinWriter struct {
	w   io.Writer
	Err error
	uv  [8]byte
}

// NewBinWriterFromIO makes a BinWriter from io.Writer.
func NewBinWriterFromIO(iow io.Writer) *BinWriter {
	return &BinWriter{w: iow}
}

// WriteU32LE writes a uint32 value into the underlying io.Writer in
// little-endian format.
func (w *BinWriter) WriteU32LE(u32 uint32) {
	binary.LittleEndian.PutUint32(w.uv[:4], u32)
	w.WriteBytes(w.uv[:4])
}

// WriteU16LE writes a uint16 value into the underlying io.Writer in
// little-endian format.
func (w *BinWriter) WriteU16LE(u16 uint16) {
	binary.LittleEndian.PutUint16(w.uv[:2], u16)
	w.WriteBytes(w.uv[:2])
}

// WriteFixed writes v as an unsigned little-endian integer of the given
// width, it's the counterpart of BinReader.ReadFixed.
func (w *BinWriter) WriteFixed(width int, v uint64) {
	binary.LittleEndian.PutUint64(w.uv[:], v)
	w.WriteBytes(w.uv[:width])
}

// WriteB writes a byte into the underlying io.Writer.
func (w *BinWriter) WriteB(u8 byte) {
	w.uv[0] = u8
	w.WriteBytes(w.uv[:1])
}

// WriteBytes writes a variable byte into the underlying io.Writer without prefix.
func (w *BinWriter) WriteBytes(b []byte) {
	if w.Err != nil {
		return
	}
	_, w.Err = w.w.Write(b)
}

// WriteTerminated writes b followed by the terminator byte.
func (w *BinWriter) WriteTerminated(b []byte, term byte) {
	w.WriteBytes(b)
	w.WriteB(term)
}

// WriteString writes s followed by the terminator byte.
func (w *BinWriter) WriteString(s string, term byte) {
	if w.Err != nil {
		return
	}
	_, w.Err = io.WriteString(w.w, s)
	w.WriteB(term)
}
