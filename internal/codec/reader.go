package codec

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ossyrian/vstarfw/internal/vstar"
)

// Entry is a decoded header together with its payload.
type Entry struct {
	vstar.Header

	Index  int    // zero-based position in the container
	Offset int64  // absolute offset of the payload within the container
	Data   []byte // exactly Header.FileSize bytes
}

// readState is the position of the decoder within the entry sequence.
type readState int

const (
	// stateMarker: the next 32 bytes are either the suffix or the start of a header.
	stateMarker readState = iota
	// stateEntry: a header has been started; read its remainder and the payload.
	stateEntry
	// stateDone: the suffix has been consumed.
	stateDone
)

// Reader decodes entries from a VStarCam firmware container.
type Reader struct {
	file   io.Reader
	logger *slog.Logger

	state    readState
	prefixOK bool
	index    int   // index of the entry being decoded
	offset   int64 // bytes consumed so far
	header   [vstar.HeaderSize]byte
	err      error // sticky
}

// NewReader returns a Reader decoding from r. A nil logger discards output.
func NewReader(r io.Reader, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reader{file: r, logger: logger}
}

// ReadPrefix consumes the 32-byte prefix and fails with vstar.ErrFormat if
// it does not match. Next calls it implicitly when it has not been called.
func (r *Reader) ReadPrefix() error {
	if r.prefixOK {
		return nil
	}
	if r.err != nil {
		return r.err
	}

	var prefix [vstar.MarkerSize]byte
	n, err := io.ReadFull(r.file, prefix[:])
	r.offset += int64(n)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		r.err = fmt.Errorf("%w: bad prefix: file is only %d bytes", vstar.ErrFormat, n)
		return r.err
	case err != nil:
		r.err = fmt.Errorf("%w: failed to read prefix: %w", vstar.ErrIO, err)
		return r.err
	}

	if !vstar.IsPrefix(prefix[:]) {
		r.err = fmt.Errorf("%w: bad prefix: expected %q, got %q",
			vstar.ErrFormat, vstar.Prefix[:], prefix[:])
		return r.err
	}

	r.logger.Debug("prefix is valid")
	r.prefixOK = true
	return nil
}

// Next decodes the next entry. It returns io.EOF once the suffix has been
// read. Any other error is sticky: later calls return it again.
func (r *Reader) Next() (*Entry, error) {
	if err := r.ReadPrefix(); err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}

	for {
		switch r.state {
		case stateDone:
			return nil, io.EOF

		case stateMarker:
			candidate := r.header[:vstar.MarkerSize]
			if err := r.readFull(candidate, "marker"); err != nil {
				r.err = err
				return nil, err
			}
			if vstar.IsSuffix(candidate) {
				r.logger.Debug("reached suffix",
					"entry_count", r.index,
					"offset", r.offset,
				)
				r.state = stateDone
				continue
			}
			r.state = stateEntry

		case stateEntry:
			entry, err := r.readEntry()
			if err != nil {
				r.err = err
				return nil, err
			}
			r.state = stateMarker
			r.index++
			return entry, nil
		}
	}
}

// readEntry completes the header whose first 32 bytes are already in
// r.header and reads the payload that follows it.
func (r *Reader) readEntry() (*Entry, error) {
	if err := r.readFull(r.header[vstar.MarkerSize:], "header"); err != nil {
		return nil, err
	}

	h, err := vstar.UnmarshalHeader(r.header[:])
	if err != nil {
		return nil, r.entryError(err)
	}

	entry := &Entry{Header: h, Index: r.index, Offset: r.offset}

	// FileSize is untrusted; grow with the data actually present.
	entry.Data, err = io.ReadAll(io.LimitReader(r.file, int64(h.FileSize)))
	r.offset += int64(len(entry.Data))
	if err != nil {
		return nil, &vstar.EntryError{Index: r.index, Field: "payload",
			Err: fmt.Errorf("%w: %w", vstar.ErrIO, err)}
	}
	if len(entry.Data) < int(h.FileSize) {
		return nil, &vstar.EntryError{Index: r.index, Field: "payload",
			Err: fmt.Errorf("%w: %s declares %d bytes, only %d remain",
				vstar.ErrTruncated, h.Filename, h.FileSize, len(entry.Data))}
	}

	r.logger.Debug("read entry",
		"index", entry.Index,
		"offset", entry.Offset,
	)

	return entry, nil
}

// readFull fills b, mapping short reads to vstar.ErrTruncated.
func (r *Reader) readFull(b []byte, field string) error {
	start := r.offset
	n, err := io.ReadFull(r.file, b)
	r.offset += int64(n)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return &vstar.EntryError{Index: r.index, Field: field,
			Err: fmt.Errorf("%w: need %d bytes at offset %d, got %d",
				vstar.ErrTruncated, len(b), start, n)}
	default:
		return &vstar.EntryError{Index: r.index, Field: field,
			Err: fmt.Errorf("%w: %w", vstar.ErrIO, err)}
	}
}

// entryError stamps the current index onto errors coming from vstar.
func (r *Reader) entryError(err error) error {
	var ee *vstar.EntryError
	if errors.As(err, &ee) {
		ee.Index = r.index
		return ee
	}
	return &vstar.EntryError{Index: r.index, Err: err}
}

// Decode reads a whole container into memory.
func Decode(rd io.Reader, logger *slog.Logger) ([]Entry, error) {
	r := NewReader(rd, logger)

	var entries []Entry
	for {
		entry, err := r.Next()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, *entry)
	}
}
