// Package manifest reads and writes the tab-separated buildfile that lists
// the entries of a firmware container in order.
//
// Each line is
//
//	<path>\t<filename>
//
// or, when the header fields are kept,
//
//	<path>\t<filename>\t<version>\t<factory>
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ossyrian/vstarfw/internal/vstar"
)

const (
	basicFields    = 2
	extendedFields = 4
)

// Row is one manifest line.
type Row struct {
	Path     string
	Filename string

	// Extended is set when the row carries its own version and factory
	// values. Otherwise Version and Factory are zero and the caller
	// supplies defaults.
	Extended bool
	Version  int32
	Factory  uint32
}

// Header returns the container header for r. Rows without explicit values
// get version and factory from def.
func (r Row) Header(def vstar.Header) vstar.Header {
	h := vstar.Header{
		Path:     r.Path,
		Filename: r.Filename,
		Version:  def.Version,
		Factory:  def.Factory,
	}
	if r.Extended {
		h.Version = r.Version
		h.Factory = r.Factory
	}
	return h
}

// FromHeader builds the row describing h. Version and factory are only
// recorded when extended is set.
func FromHeader(h vstar.Header, extended bool) Row {
	row := Row{Path: h.Path, Filename: h.Filename}
	if extended {
		row.Extended = true
		row.Version = h.Version
		row.Factory = h.Factory
	}
	return row
}

// Read parses a manifest.
//
// Blank lines are ignored. A line must have two or four tab-separated
// fields, otherwise Read fails with vstar.ErrFormat. Rows whose path or
// filename is empty are skipped.
func Read(r io.Reader) ([]Row, error) {
	var rows []Row

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		row, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if row.Path == "" || row.Filename == "" {
			continue
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read manifest: %w", vstar.ErrIO, err)
	}

	return rows, nil
}

func parseLine(line string) (Row, error) {
	fields := strings.Split(line, "\t")

	switch len(fields) {
	case basicFields:
		return Row{Path: fields[0], Filename: fields[1]}, nil

	case extendedFields:
		row := Row{Path: fields[0], Filename: fields[1], Extended: true}

		version, err := strconv.ParseInt(fields[2], 10, 32)
		if err != nil {
			return Row{}, fmt.Errorf("%w: invalid version %q: %w", vstar.ErrFormat, fields[2], err)
		}
		factory, err := strconv.ParseUint(fields[3], 10, 32)
		if err != nil {
			return Row{}, fmt.Errorf("%w: invalid factory %q: %w", vstar.ErrFormat, fields[3], err)
		}
		row.Version = int32(version)
		row.Factory = uint32(factory)
		return row, nil

	default:
		return Row{}, fmt.Errorf("%w: expected %d or %d tab-separated fields, got %d",
			vstar.ErrFormat, basicFields, extendedFields, len(fields))
	}
}

// Writer writes manifest rows.
type Writer struct {
	w *bufio.Writer
}

// NewWriter returns a Writer buffering output to w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write appends one row. Fields must not contain tabs or newlines.
func (w *Writer) Write(row Row) error {
	for _, s := range []string{row.Path, row.Filename} {
		if strings.ContainsAny(s, "\t\r\n") {
			return fmt.Errorf("%w: %q cannot be stored in a manifest", vstar.ErrFormat, s)
		}
	}

	line := row.Path + "\t" + row.Filename
	if row.Extended {
		line += "\t" + strconv.FormatInt(int64(row.Version), 10) +
			"\t" + strconv.FormatUint(uint64(row.Factory), 10)
	}

	if _, err := w.w.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("%w: failed to write manifest: %w", vstar.ErrIO, err)
	}
	return nil
}

// Flush writes any buffered rows to the underlying writer.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("%w: failed to write manifest: %w", vstar.ErrIO, err)
	}
	return nil
}
