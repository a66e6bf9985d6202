package dso

import (
	"fmt"
	"sync"

	"github.com/tribes-emu/dsovm/pkg/io"
	"github.com/tribes-emu/dsovm/pkg/vm/opcode"
	"golang.org/x/text/encoding"
)

// Format is a version-specific code block layout. The version tag is
// handled by Decode/Encode, formats only deal with the rest of the data.
type Format interface {
	// Version returns the tag this format is registered for.
	Version() uint32
	// DecodeBinary fills cb reading the body following the version tag.
	DecodeBinary(r *io.BinReader, cb *CodeBlock)
	// EncodeBinary writes cb body (without the version tag).
	EncodeBinary(w *io.BinWriter, cb *CodeBlock)
}

// MarkedFormat is a Format using identifiers of its own in the instruction
// stream. They're reserved in the opcode registry when the format is
// registered.
type MarkedFormat interface {
	Format
	Markers() []opcode.Opcode
}

var (
	formatsLock sync.RWMutex
	formats     = map[uint32]Format{
		V1: formatV1{},
	}
)

func init() {
	for _, f := range formats {
		if err := reserveMarkers(f); err != nil {
			panic(err)
		}
	}
}

func reserveMarkers(f Format) error {
	m, ok := f.(MarkedFormat)
	if !ok {
		return nil
	}
	return opcode.Reserve(fmt.Sprintf("format 0x%08x", f.Version()), m.Markers()...)
}

// RegisterFormat adds a new format version handler. Markers of a
// MarkedFormat must not clash with registered opcodes.
func RegisterFormat(f Format) error {
	formatsLock.Lock()
	defer formatsLock.Unlock()
	if _, ok := formats[f.Version()]; ok {
		return fmt.Errorf("format 0x%08x is already registered", f.Version())
	}
	if err := reserveMarkers(f); err != nil {
		return err
	}
	formats[f.Version()] = f
	return nil
}

// LookupFormat returns format handler for the given version tag.
func LookupFormat(version uint32) (Format, bool) {
	formatsLock.RLock()
	defer formatsLock.RUnlock()
	f, ok := formats[version]
	return f, ok
}

// Decoder decodes code blocks optionally converting string table entries and
// function names from a legacy charset to UTF-8.
type Decoder struct {
	// Charset is the encoding strings are stored in, nil means no
	// conversion.
	Charset encoding.Encoding
}

// Encoder is the counterpart of Decoder.
type Encoder struct {
	Charset encoding.Encoding
}

// Decode decodes code block from b without any charset conversion.
func Decode(b []byte) (*CodeBlock, error) {
	return Decoder{}.Decode(b)
}

// Decode decodes code block from b. Either a complete code block or an error
// is returned, the error is always a *DecodeError.
func (d Decoder) Decode(b []byte) (*CodeBlock, error) {
	r := io.NewBinReaderFromBuf(b)
	cb := new(CodeBlock)
	cb.DecodeBinary(r)
	if r.Err == nil && d.Charset != nil {
		r.Err = convert(cb, d.Charset.NewDecoder().String)
	}
	if r.Err != nil {
		err := newDecodeError(r)
		decodeFailed(err)
		return nil, err
	}
	decodedBlocks.Inc()
	return cb, nil
}

// Bytes encodes the code block without any charset conversion.
func (cb *CodeBlock) Bytes() ([]byte, error) {
	return Encoder{}.Encode(cb)
}

// Encode returns binary representation of cb.
func (e Encoder) Encode(cb *CodeBlock) ([]byte, error) {
	if e.Charset != nil {
		c := &CodeBlock{
			Version:   cb.Version,
			Strings:   append([]string(nil), cb.Strings...),
			Global:    cb.Global,
			Functions: append([]Function(nil), cb.Functions...),
		}
		if err := convert(c, e.Charset.NewEncoder().String); err != nil {
			return nil, err
		}
		cb = c
	}
	w := io.NewBufBinWriter()
	cb.EncodeBinary(w.BinWriter)
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Bytes(), nil
}

// DecodeBinary implements io.Serializable interface.
func (cb *CodeBlock) DecodeBinary(r *io.BinReader) {
	version := r.ReadU32LE()
	if r.Err != nil {
		return
	}
	f, ok := LookupFormat(version)
	if !ok {
		r.Err = fmt.Errorf("%w: 0x%08x", ErrUnknownVersion, version)
		return
	}
	cb.Version = version
	f.DecodeBinary(r, cb)
}

// EncodeBinary implements io.Serializable interface.
func (cb *CodeBlock) EncodeBinary(w *io.BinWriter) {
	f, ok := LookupFormat(cb.Version)
	if !ok {
		w.Err = fmt.Errorf("%w: 0x%08x", ErrUnknownVersion, cb.Version)
		return
	}
	w.WriteU32LE(cb.Version)
	f.EncodeBinary(w, cb)
}

func convert(cb *CodeBlock, conv func(string) (string, error)) error {
	var err error
	for i := range cb.Strings {
		cb.Strings[i], err = conv(cb.Strings[i])
		if err != nil {
			return fmt.Errorf("string %d: %w", i, err)
		}
	}
	for i := range cb.Functions {
		cb.Functions[i].Name, err = conv(cb.Functions[i].Name)
		if err != nil {
			return fmt.Errorf("function %d name: %w", i, err)
		}
	}
	return nil
}
