package io

// Serializable defines the binary encoding/decoding interface. Errors are
// returned via the reader/writer Err field.
type Serializable interface {
	DecodeBinary(*BinReader)
	EncodeBinary(*BinWriter)
}
