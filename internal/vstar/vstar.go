package vstar

import (
	"encoding/binary"
	"fmt"
)

// Header describes one file stored in a firmware container.
//
// On the wire it is laid out as
//
//	[path(64)][filename(64)][filesize(uint32)][version(int32)][factory(uint32)]
//
// with all integers little-endian, immediately followed by FileSize bytes of
// payload.
type Header struct {
	Path     string // device path the file is installed to, e.g. "/mtd/app"
	Filename string // name of the payload file
	FileSize uint32 // payload length in bytes
	Version  int32  // opaque version tag
	Factory  uint32 // opaque factory flag
}

// NewHeader returns a header for path/filename carrying the default
// version and factory values.
func NewHeader(path, filename string) Header {
	return Header{
		Path:     path,
		Filename: filename,
		Version:  DefaultVersion,
		Factory:  DefaultFactory,
	}
}

// MarshalBinary encodes h into its HeaderSize wire form.
// Text fields that do not fit are reported as an *EntryError naming the field.
func (h Header) MarshalBinary() ([]byte, error) {
	path, err := PadField(h.Path)
	if err != nil {
		return nil, &EntryError{Field: "path", Err: err}
	}
	filename, err := PadField(h.Filename)
	if err != nil {
		return nil, &EntryError{Field: "filename", Err: err}
	}

	b := make([]byte, HeaderSize)
	copy(b[0:FieldSize], path[:])
	copy(b[FieldSize:2*FieldSize], filename[:])
	binary.LittleEndian.PutUint32(b[128:132], h.FileSize)
	binary.LittleEndian.PutUint32(b[132:136], uint32(h.Version))
	binary.LittleEndian.PutUint32(b[136:140], h.Factory)
	return b, nil
}

// UnmarshalHeader decodes a HeaderSize byte slice.
func UnmarshalHeader(b []byte) (Header, error) {
	var h Header
	if len(b) != HeaderSize {
		return h, fmt.Errorf("%w: header is %d bytes, want %d", ErrTruncated, len(b), HeaderSize)
	}

	var err error
	if h.Path, err = StripField(b[0:FieldSize]); err != nil {
		return h, &EntryError{Field: "path", Err: err}
	}
	if h.Filename, err = StripField(b[FieldSize : 2*FieldSize]); err != nil {
		return h, &EntryError{Field: "filename", Err: err}
	}
	h.FileSize = binary.LittleEndian.Uint32(b[128:132])
	h.Version = int32(binary.LittleEndian.Uint32(b[132:136]))
	h.Factory = binary.LittleEndian.Uint32(b[136:140])

	return h, nil
}
