package codec

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/ossyrian/vstarfw/internal/vstar"
)

var errClosed = errors.New("codec: write to closed writer")

// Writer encodes entries into a VStarCam firmware container.
//
// The prefix is written before the first entry and the suffix by Close, so
// a Writer that is never closed leaves an unterminated container behind.
type Writer struct {
	file   io.Writer
	logger *slog.Logger

	index       int
	wrotePrefix bool
	closed      bool
}

// NewWriter returns a Writer encoding to w. A nil logger discards output.
func NewWriter(w io.Writer, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{file: w, logger: logger}
}

// WriteEntry appends one entry. h.FileSize is ignored and replaced by
// len(data). Header fields are validated before anything is written.
func (w *Writer) WriteEntry(h vstar.Header, data []byte) error {
	if w.closed {
		return errClosed
	}

	if uint64(len(data)) > math.MaxUint32 {
		return &vstar.EntryError{Index: w.index, Field: "filesize",
			Err: fmt.Errorf("%w: %s is %d bytes, limit is %d",
				vstar.ErrFormat, h.Filename, len(data), uint64(math.MaxUint32))}
	}
	h.FileSize = uint32(len(data))

	header, err := h.MarshalBinary()
	if err != nil {
		var ee *vstar.EntryError
		if errors.As(err, &ee) {
			ee.Index = w.index
			return ee
		}
		return &vstar.EntryError{Index: w.index, Err: err}
	}

	if err := w.writePrefix(); err != nil {
		return err
	}
	if err := w.write(header, "header"); err != nil {
		return err
	}
	if err := w.write(data, "payload"); err != nil {
		return err
	}

	w.logger.Debug("wrote entry", "index", w.index, "size", len(data))

	w.index++
	return nil
}

// Close terminates the container with the suffix. It does not close the
// underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if err := w.writePrefix(); err != nil {
		return err
	}
	if err := w.write(vstar.Suffix[:], "suffix"); err != nil {
		return err
	}
	w.closed = true

	w.logger.Debug("wrote suffix", "entry_count", w.index)
	return nil
}

func (w *Writer) writePrefix() error {
	if w.wrotePrefix {
		return nil
	}
	if _, err := w.file.Write(vstar.Prefix[:]); err != nil {
		return fmt.Errorf("%w: failed to write prefix: %w", vstar.ErrIO, err)
	}
	w.wrotePrefix = true
	return nil
}

func (w *Writer) write(b []byte, field string) error {
	if _, err := w.file.Write(b); err != nil {
		return &vstar.EntryError{Index: w.index, Field: field,
			Err: fmt.Errorf("%w: %w", vstar.ErrIO, err)}
	}
	return nil
}

// Encode writes a complete container holding entries, in order.
func Encode(wr io.Writer, entries []Entry, logger *slog.Logger) error {
	w := NewWriter(wr, logger)
	for _, e := range entries {
		if err := w.WriteEntry(e.Header, e.Data); err != nil {
			return err
		}
	}
	return w.Close()
}
