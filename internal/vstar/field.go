package vstar

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

// PadField encodes s into a FieldSize byte array, right-padded with NUL bytes.
//
// s must be valid UTF-8, must not contain NUL bytes (they would be lost on
// decode) and must be at most FieldSize bytes long. Nothing is truncated.
func PadField(s string) ([FieldSize]byte, error) {
	var b [FieldSize]byte

	if !utf8.ValidString(s) {
		return b, fmt.Errorf("%w: %q is not valid UTF-8", ErrEncoding, s)
	}
	if strings.IndexByte(s, 0) >= 0 {
		return b, fmt.Errorf("%w: %q contains a NUL byte", ErrEncoding, s)
	}
	if len(s) > FieldSize {
		return b, fmt.Errorf("%w: %q is %d bytes, field holds %d",
			ErrEncoding, s, len(s), FieldSize)
	}

	copy(b[:], s)
	return b, nil
}

// StripField decodes a NUL-padded text field. Trailing NUL bytes are removed
// and the remainder must be valid UTF-8.
func StripField(b []byte) (string, error) {
	b = bytes.TrimRight(b, "\x00")
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: % x is not valid UTF-8", ErrEncoding, b)
	}
	return string(b), nil
}
