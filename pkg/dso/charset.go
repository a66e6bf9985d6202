package dso

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// LookupCharset returns an encoding for the given IANA charset name to be
// used with Decoder and Encoder. An empty name and "raw" both return nil
// meaning strings are kept as is.
func LookupCharset(name string) (encoding.Encoding, error) {
	if name == "" || strings.EqualFold(name, "raw") {
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("charset %q is not supported", name)
	}
	return enc, nil
}
