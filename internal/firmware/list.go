package firmware

import (
	"bufio"
	_ "crypto/sha256" // digest.Canonical
	"log/slog"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/ossyrian/vstarfw/internal/codec"
	"github.com/ossyrian/vstarfw/internal/vstar"
)

// EntryInfo describes one entry of a container without its payload.
type EntryInfo struct {
	vstar.Header

	Index  int
	Offset int64         // payload offset within the container
	Digest digest.Digest // sha256 of the payload

	// Duplicate is set when another entry names the same file, which
	// makes extraction fail unless overwriting is allowed.
	Duplicate bool
}

// List decodes the container name and describes its entries. Nothing is
// written.
func List(fsys afero.Fs, name string) ([]EntryInfo, error) {
	logger := slog.With("file", name)

	f, err := fsys.Open(name)
	if err != nil {
		return nil, ioError("open", name, err)
	}
	defer f.Close()

	entries, err := codec.Decode(bufio.NewReader(f), logger)
	if err != nil {
		return nil, err
	}

	// Filenames naming the same file once cleaned collide on extraction.
	key := func(e codec.Entry) string { return filepath.Clean(e.Filename) }
	counts := lo.CountValuesBy(entries, key)

	infos := lo.Map(entries, func(e codec.Entry, _ int) EntryInfo {
		return EntryInfo{
			Header:    e.Header,
			Index:     e.Index,
			Offset:    e.Offset,
			Digest:    digest.FromBytes(e.Data),
			Duplicate: counts[key(e)] > 1,
		}
	})

	logger.Info("listed firmware", "entry_count", len(infos))

	return infos, nil
}
