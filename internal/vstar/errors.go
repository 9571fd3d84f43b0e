package vstar

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat is returned when the container or the manifest is malformed:
	// a bad prefix, a manifest line with the wrong field count, an unsafe
	// filename.
	ErrFormat = errors.New("format error")

	// ErrTruncated is returned when fewer bytes are available than a marker,
	// a header or a declared payload size requires.
	ErrTruncated = errors.New("truncated container")

	// ErrEncoding is returned when a text field is not valid UTF-8, contains
	// a NUL byte or does not fit its fixed-size field.
	ErrEncoding = errors.New("encoding error")

	// ErrIO is returned when an underlying file cannot be opened, read or written.
	ErrIO = errors.New("i/o error")

	// ErrDuplicate is returned when two entries would be extracted to the same file.
	ErrDuplicate = errors.New("duplicate filename")
)

// EntryError records which entry, and which of its fields, an error refers to.
type EntryError struct {
	Index int    // zero-based position of the entry in the container
	Field string // header field name, empty if the error is not field specific
	Err   error
}

func (e *EntryError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("entry %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("entry %d: %s: %v", e.Index, e.Field, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }
