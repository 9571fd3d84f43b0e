package codec_test

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/ossyrian/vstarfw/internal/codec"
	"github.com/ossyrian/vstarfw/internal/vstar"
)

// rawHeader builds a header by hand, bypassing vstar's validation.
func rawHeader(path, filename string, size uint32, version int32, factory uint32) []byte {
	buf := new(bytes.Buffer)

	field := make([]byte, vstar.FieldSize)
	copy(field, path)
	buf.Write(field)

	field = make([]byte, vstar.FieldSize)
	copy(field, filename)
	buf.Write(field)

	binary.Write(buf, binary.LittleEndian, size)
	binary.Write(buf, binary.LittleEndian, version)
	binary.Write(buf, binary.LittleEndian, factory)

	b := buf.Bytes()
	return b[:len(b):len(b)]
}

// buildContainer concatenates prefix, parts and suffix.
func buildContainer(parts ...[]byte) []byte {
	buf := new(bytes.Buffer)
	buf.Write(vstar.Prefix[:])
	for _, p := range parts {
		buf.Write(p)
	}
	buf.Write(vstar.Suffix[:])
	return buf.Bytes()
}

func TestEncodeAppBin(t *testing.T) {
	var out bytes.Buffer
	w := codec.NewWriter(&out, nil)
	if err := w.WriteEntry(vstar.NewHeader("/mtd/app", "app.bin"), []byte("0123456789")); err != nil {
		t.Fatalf("WriteEntry() failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	got := out.Bytes()
	if len(got) != 32+140+10+32 {
		t.Fatalf("len = %d, want %d", len(got), 32+140+10+32)
	}
	if !bytes.Equal(got[:32], vstar.Prefix[:]) {
		t.Errorf("prefix = %q", got[:32])
	}

	header := got[32 : 32+140]
	if !bytes.Equal(header[0:64], append([]byte("/mtd/app"), make([]byte, 56)...)) {
		t.Errorf("path field = %q", header[0:64])
	}
	if !bytes.Equal(header[64:128], append([]byte("app.bin"), make([]byte, 57)...)) {
		t.Errorf("filename field = %q", header[64:128])
	}
	if v := binary.LittleEndian.Uint32(header[128:132]); v != 10 {
		t.Errorf("filesize = %d, want 10", v)
	}
	if v := binary.LittleEndian.Uint32(header[132:136]); v != 808791301 {
		t.Errorf("version = %d, want 808791301", v)
	}
	if v := binary.LittleEndian.Uint32(header[136:140]); v != 0 {
		t.Errorf("factory = %d, want 0", v)
	}
	if string(got[172:182]) != "0123456789" {
		t.Errorf("payload = %q", got[172:182])
	}
	if !bytes.Equal(got[182:], vstar.Suffix[:]) {
		t.Errorf("suffix = %q", got[182:])
	}

	want := buildContainer(rawHeader("/mtd/app", "app.bin", 10, 808791301, 0), []byte("0123456789"))
	if !bytes.Equal(got, want) {
		t.Errorf("container mismatch:\n% x\nwant\n% x", got, want)
	}

	entries, err := codec.Decode(bytes.NewReader(got), nil)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Path != "/mtd/app" || e.Filename != "app.bin" || string(e.Data) != "0123456789" {
		t.Errorf("entry = %+v", e)
	}
	if e.Offset != 32+140 {
		t.Errorf("Offset = %d, want %d", e.Offset, 32+140)
	}
}

func TestRoundTrip(t *testing.T) {
	in := []codec.Entry{
		{Header: vstar.NewHeader("/mtd/app", "app.bin"), Data: []byte("0123456789")},
		{Header: vstar.NewHeader("/system/www", "www.tar"), Data: bytes.Repeat([]byte{0xAB}, 4096)},
		{Header: vstar.NewHeader("/mtd", "empty"), Data: nil},
		{Header: vstar.Header{Path: "/etc", Filename: "boa.conf", Version: 1, Factory: 1}, Data: []byte("Port 80\n")},
	}

	var buf bytes.Buffer
	if err := codec.Encode(&buf, in, nil); err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	out, err := codec.Decode(&buf, nil)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i].Index != i {
			t.Errorf("entry %d: Index = %d", i, out[i].Index)
		}
		if out[i].Path != in[i].Path || out[i].Filename != in[i].Filename {
			t.Errorf("entry %d: got (%q, %q), want (%q, %q)",
				i, out[i].Path, out[i].Filename, in[i].Path, in[i].Filename)
		}
		if out[i].Version != in[i].Version || out[i].Factory != in[i].Factory {
			t.Errorf("entry %d: got version %d factory %d", i, out[i].Version, out[i].Factory)
		}
		if int(out[i].FileSize) != len(in[i].Data) || !bytes.Equal(out[i].Data, in[i].Data) {
			t.Errorf("entry %d: payload mismatch", i)
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := codec.Encode(&buf, nil, nil); err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), buildContainer()) {
		t.Errorf("Encode(nil) = %q", buf.Bytes())
	}

	entries, err := codec.Decode(&buf, nil)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("len(entries) = %d, want 0", len(entries))
	}
}

func TestReader_Errors(t *testing.T) {
	valid := rawHeader("/mtd/app", "app.bin", 10, 808791301, 0)

	tests := []struct {
		name    string
		input   []byte
		wantErr error
		errMsg  string
		entries int // entries decoded before the error
	}{
		{
			name:    "bad prefix",
			input:   append([]byte("www.object-camera.com.by.HONGZX."), valid...),
			wantErr: vstar.ErrFormat,
			errMsg:  "bad prefix",
		},
		{
			name:    "suffix instead of prefix",
			input:   buildContainer()[32:],
			wantErr: vstar.ErrFormat,
			errMsg:  "bad prefix",
		},
		{
			name:    "short prefix",
			input:   vstar.Prefix[:10],
			wantErr: vstar.ErrFormat,
			errMsg:  "bad prefix",
		},
		{
			name:    "empty input",
			input:   []byte{},
			wantErr: vstar.ErrFormat,
			errMsg:  "bad prefix",
		},
		{
			name:    "missing suffix",
			input:   append(vstar.Prefix[:], append(valid, "0123456789"...)...),
			wantErr: vstar.ErrTruncated,
			errMsg:  "entry 1: marker",
			entries: 1,
		},
		{
			name:    "partial suffix",
			input:   append(vstar.Prefix[:], vstar.Suffix[:20]...),
			wantErr: vstar.ErrTruncated,
			errMsg:  "entry 0: marker",
		},
		{
			name:    "truncated header",
			input:   append(vstar.Prefix[:], valid[:100]...),
			wantErr: vstar.ErrTruncated,
			errMsg:  "entry 0: header",
		},
		{
			name:    "truncated payload",
			input:   append(vstar.Prefix[:], append(valid, "01234"...)...),
			wantErr: vstar.ErrTruncated,
			errMsg:  "declares 10 bytes, only 5 remain",
		},
		{
			name: "size runs into suffix",
			input: buildContainer(
				rawHeader("/mtd/app", "app.bin", 20, 0, 0),
				[]byte("0123456789"),
			),
			wantErr: vstar.ErrTruncated,
			errMsg:  "entry 1: marker",
			entries: 1,
		},
		{
			name:    "invalid UTF-8 path",
			input:   buildContainer(rawHeader("/mtd/\xff", "app.bin", 0, 0, 0)),
			wantErr: vstar.ErrEncoding,
			errMsg:  "entry 0: path",
		},
		{
			name: "invalid UTF-8 filename in second entry",
			input: buildContainer(
				valid, []byte("0123456789"),
				rawHeader("/mtd", "\xc3\x28", 0, 0, 0),
			),
			wantErr: vstar.ErrEncoding,
			errMsg:  "entry 1: filename",
			entries: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := codec.Decode(bytes.NewReader(tt.input), nil)

			if err == nil {
				t.Fatal("Decode() succeeded unexpectedly, wanted error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Decode() error = %v, should contain %q", err, tt.errMsg)
			}
			if len(entries) != tt.entries {
				t.Errorf("decoded %d entries before failing, want %d", len(entries), tt.entries)
			}
		})
	}
}

func TestReader_PrefixFailureReadsNothingElse(t *testing.T) {
	input := append([]byte("not a firmware, not a firmware!!"), rawHeader("/a", "b", 0, 0, 0)...)
	src := bytes.NewReader(input)

	r := codec.NewReader(src, nil)
	if _, err := r.Next(); !errors.Is(err, vstar.ErrFormat) {
		t.Fatalf("Next() error = %v, want ErrFormat", err)
	}
	if consumed := len(input) - src.Len(); consumed != vstar.MarkerSize {
		t.Errorf("consumed %d bytes, want %d", consumed, vstar.MarkerSize)
	}
}

func TestReader_SuffixCheckedBeforeHeader(t *testing.T) {
	// A header whose first 32 bytes are the suffix is indistinguishable from
	// the end of the container; decoding must stop there.
	trap := append(vstar.Suffix[:], make([]byte, vstar.HeaderSize-vstar.MarkerSize)...)
	input := append(vstar.Prefix[:], vstar.Suffix[:]...)
	input = append(input, trap...)

	r := codec.NewReader(bytes.NewReader(input), nil)
	entry, err := r.Next()
	if err != io.EOF {
		t.Fatalf("Next() = %+v, %v, want io.EOF", entry, err)
	}
	// Done is terminal.
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("second Next() error = %v, want io.EOF", err)
	}
}

func TestReader_PayloadLooksLikeSuffix(t *testing.T) {
	// Payload bytes are never inspected for the marker.
	payload := vstar.Suffix[:]
	input := buildContainer(rawHeader("/mtd", "trap.bin", uint32(len(payload)), 0, 0), payload)

	entries, err := codec.Decode(bytes.NewReader(input), nil)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if len(entries) != 1 || !bytes.Equal(entries[0].Data, payload) {
		t.Errorf("entries = %+v", entries)
	}
}

func TestReader_ErrorIsSticky(t *testing.T) {
	input := append(vstar.Prefix[:], rawHeader("/mtd", "app.bin", 10, 0, 0)...)
	r := codec.NewReader(bytes.NewReader(input), nil)

	_, first := r.Next()
	if !errors.Is(first, vstar.ErrTruncated) {
		t.Fatalf("Next() error = %v, want ErrTruncated", first)
	}
	if _, second := r.Next(); second != first {
		t.Errorf("second Next() error = %v, want %v", second, first)
	}
}

func TestReader_EntryErrorIndex(t *testing.T) {
	input := buildContainer(
		rawHeader("/a", "a", 1, 0, 0), []byte("a"),
		rawHeader("/b", "b", 1, 0, 0), []byte("b"),
		rawHeader("/c", "c", 5, 0, 0), []byte("c"),
	)

	_, err := codec.Decode(bytes.NewReader(input), nil)

	var ee *vstar.EntryError
	if !errors.As(err, &ee) {
		t.Fatalf("Decode() error = %v, want *EntryError", err)
	}
	if ee.Index != 2 || ee.Field != "payload" {
		t.Errorf("EntryError = {Index: %d, Field: %q}, want {2, payload}", ee.Index, ee.Field)
	}
}

func TestWriter_FieldOverflow(t *testing.T) {
	var buf bytes.Buffer
	w := codec.NewWriter(&buf, nil)

	if err := w.WriteEntry(vstar.NewHeader("/mtd", "ok.bin"), []byte("ok")); err != nil {
		t.Fatalf("WriteEntry() failed: %v", err)
	}
	written := buf.Len()

	err := w.WriteEntry(vstar.NewHeader("/mtd", strings.Repeat("n", 65)), []byte("data"))
	if !errors.Is(err, vstar.ErrEncoding) {
		t.Fatalf("WriteEntry() error = %v, want ErrEncoding", err)
	}
	var ee *vstar.EntryError
	if !errors.As(err, &ee) || ee.Index != 1 || ee.Field != "filename" {
		t.Errorf("WriteEntry() error = %#v, want entry 1 filename", err)
	}
	if buf.Len() != written {
		t.Errorf("rejected entry wrote %d bytes", buf.Len()-written)
	}
}

func TestWriter_FileSizeFromData(t *testing.T) {
	var buf bytes.Buffer
	h := vstar.NewHeader("/mtd", "app.bin")
	h.FileSize = 9999

	if err := codec.Encode(&buf, []codec.Entry{{Header: h, Data: []byte("abc")}}, nil); err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if got := binary.LittleEndian.Uint32(buf.Bytes()[32+128:]); got != 3 {
		t.Errorf("filesize = %d, want 3", got)
	}
}

func TestWriter_WriteAfterClose(t *testing.T) {
	w := codec.NewWriter(io.Discard, nil)
	if err := w.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
	if err := w.WriteEntry(vstar.NewHeader("/a", "b"), nil); err == nil {
		t.Error("WriteEntry() after Close succeeded unexpectedly")
	}
}

type failingWriter struct{ after int }

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.after <= 0 {
		return 0, errors.New("disk full")
	}
	f.after--
	return len(p), nil
}

func TestWriter_IOError(t *testing.T) {
	w := codec.NewWriter(&failingWriter{after: 1}, nil)

	err := w.WriteEntry(vstar.NewHeader("/a", "b"), []byte("x"))
	if !errors.Is(err, vstar.ErrIO) {
		t.Errorf("WriteEntry() error = %v, want ErrIO", err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("WriteEntry() error = %v, should contain cause", err)
	}
}

func TestReader_DebugLogCarriesPosition(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	input := buildContainer(rawHeader("/mtd/app", "app.bin", 10, 808791301, 0), []byte("0123456789"))
	if _, err := codec.Decode(bytes.NewReader(input), logger); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}

	var record map[string]any
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		if strings.Contains(line, `"msg":"read entry"`) {
			if err := json.Unmarshal([]byte(line), &record); err != nil {
				t.Fatalf("bad log line %q: %v", line, err)
			}
		}
	}
	if record == nil {
		t.Fatalf("no read entry record in %q", logs.String())
	}
	if record["offset"] != float64(32+140) {
		t.Errorf("offset = %v, want %d", record["offset"], 32+140)
	}
	if _, ok := record["filename"]; ok {
		t.Errorf("read entry record repeats header fields: %v", record)
	}
}
