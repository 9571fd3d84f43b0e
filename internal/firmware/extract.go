package firmware

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/ossyrian/vstarfw/internal/codec"
	"github.com/ossyrian/vstarfw/internal/config"
	"github.com/ossyrian/vstarfw/internal/manifest"
	"github.com/ossyrian/vstarfw/internal/vstar"
)

// Extract unpacks the container cfg.ExtractFile. Each entry's payload is
// written to cfg.PayloadDir under its filename and listed, in container
// order, in the manifest cfg.ManifestFile.
//
// There is no rollback: on failure the files written so far, including a
// partial manifest, stay on disk.
func Extract(fsys afero.Fs, cfg *config.Config) (headers []vstar.Header, err error) {
	logger := slog.With("file", cfg.ExtractFile)
	logger.Info("extracting firmware",
		"payload_dir", cfg.PayloadDir,
		"manifest", cfg.ManifestFile,
	)

	in, err := fsys.Open(cfg.ExtractFile)
	if err != nil {
		return nil, ioError("open", cfg.ExtractFile, err)
	}
	defer in.Close()

	reader := codec.NewReader(bufio.NewReader(in), logger)
	if err := reader.ReadPrefix(); err != nil {
		return nil, err
	}

	if err := fsys.MkdirAll(cfg.PayloadDir, 0o755); err != nil {
		return nil, ioError("create", cfg.PayloadDir, err)
	}

	mf, err := fsys.Create(cfg.ManifestFile)
	if err != nil {
		return nil, ioError("create", cfg.ManifestFile, err)
	}
	defer func() {
		if closeErr := mf.Close(); closeErr != nil && err == nil {
			err = ioError("close", cfg.ManifestFile, closeErr)
		}
	}()

	mw := manifest.NewWriter(mf)
	defer func() {
		if flushErr := mw.Flush(); flushErr != nil && err == nil {
			err = flushErr
		}
	}()

	seen := make(map[string]int)
	for {
		entry, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return headers, err
		}

		logger.Info("extracting entry",
			"index", entry.Index,
			"path", entry.Path,
			"filename", entry.Filename,
			"file_size", entry.FileSize,
			"version", entry.Version,
			"factory", entry.Factory,
		)

		target, err := payloadPath(cfg.PayloadDir, entry.Filename)
		if err != nil {
			return headers, &vstar.EntryError{Index: entry.Index, Field: "filename", Err: err}
		}
		for _, reserved := range []string{cfg.ManifestFile, cfg.ExtractFile} {
			if sameFile(target, reserved) {
				return headers, &vstar.EntryError{Index: entry.Index, Field: "filename",
					Err: fmt.Errorf("%w: %q would overwrite %s",
						vstar.ErrDuplicate, entry.Filename, reserved)}
			}
		}

		if prev, ok := seen[target]; ok {
			if !cfg.AllowOverwrite {
				return headers, &vstar.EntryError{Index: entry.Index, Field: "filename",
					Err: fmt.Errorf("%w: %q already extracted from entry %d",
						vstar.ErrDuplicate, entry.Filename, prev)}
			}
			logger.Warn("overwriting previously extracted file",
				"filename", entry.Filename,
				"index", entry.Index,
				"previous_index", prev,
			)
		}
		seen[target] = entry.Index

		if err := writePayload(fsys, cfg.PayloadDir, target, entry); err != nil {
			return headers, err
		}

		if err := mw.Write(manifest.FromHeader(entry.Header, cfg.KeepHeaderFields)); err != nil {
			return headers, &vstar.EntryError{Index: entry.Index, Err: err}
		}

		headers = append(headers, entry.Header)
	}

	logger.Info("extracted firmware", "entry_count", len(headers))

	return headers, nil
}

func writePayload(fsys afero.Fs, dir, target string, entry *codec.Entry) error {
	if parent := filepath.Dir(target); parent != filepath.Clean(dir) {
		if err := fsys.MkdirAll(parent, 0o755); err != nil {
			return &vstar.EntryError{Index: entry.Index, Field: "filename",
				Err: ioError("create", parent, err)}
		}
	}

	if err := afero.WriteFile(fsys, target, entry.Data, 0o644); err != nil {
		return &vstar.EntryError{Index: entry.Index, Field: "payload",
			Err: ioError("write", target, err)}
	}
	return nil
}
