package testserdes

import (
	"fmt"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
	"github.com/tribes-emu/dsovm/pkg/io"
)

// MarshalUnmarshalCBOR checks if expected stays the same after
// marshal/unmarshal via CBOR.
func MarshalUnmarshalCBOR(t *testing.T, expected, actual any) {
	data, err := cbor.Marshal(expected)
	require.NoError(t, err)
	require.NoError(t, cbor.Unmarshal(data, actual))
	require.Equal(t, expected, actual)
}

// EncodeDecodeBinary checks if expected stays the same after
// serializing/deserializing via io.Serializable methods.
func EncodeDecodeBinary(t *testing.T, expected, actual io.Serializable) {
	data, err := EncodeBinary(expected)
	require.NoError(t, err)
	require.NoError(t, DecodeBinary(data, actual))
	require.Equal(t, expected, actual)
}

// EncodeBinary serializes a to a byte slice.
func EncodeBinary(a io.Serializable) ([]byte, error) {
	w := io.NewBufBinWriter()
	a.EncodeBinary(w.BinWriter)
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Bytes(), nil
}

// DecodeBinary deserializes a from a byte slice, all of the data must be
// consumed.
func DecodeBinary(data []byte, a io.Serializable) error {
	r := io.NewBinReaderFromBuf(data)
	a.DecodeBinary(r)
	if r.Err == nil && r.Remaining() != 0 {
		return fmt.Errorf("%d bytes left after decoding", r.Remaining())
	}
	return r.Err
}
