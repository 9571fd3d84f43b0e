package firmware

import (
	"bufio"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/ossyrian/vstarfw/internal/codec"
	"github.com/ossyrian/vstarfw/internal/config"
	"github.com/ossyrian/vstarfw/internal/manifest"
	"github.com/ossyrian/vstarfw/internal/vstar"
)

// Create assembles the container cfg.OutputFile from the manifest
// cfg.BuildFile. Payloads are read from cfg.PayloadDir in manifest order.
// Rows without their own version and factory get cfg.Version and
// cfg.Factory.
func Create(fsys afero.Fs, cfg *config.Config) (headers []vstar.Header, err error) {
	logger := slog.With("file", cfg.BuildFile)
	logger.Info("creating firmware",
		"payload_dir", cfg.PayloadDir,
		"output", cfg.OutputFile,
	)

	rows, err := readManifest(fsys, cfg.BuildFile)
	if err != nil {
		return nil, err
	}

	out, err := fsys.Create(cfg.OutputFile)
	if err != nil {
		return nil, ioError("create", cfg.OutputFile, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = ioError("close", cfg.OutputFile, closeErr)
		}
	}()

	bw := bufio.NewWriter(out)
	writer := codec.NewWriter(bw, logger)
	defaults := cfg.DefaultHeader()

	for i, row := range rows {
		src, err := payloadPath(cfg.PayloadDir, row.Filename)
		if err != nil {
			return headers, &vstar.EntryError{Index: i, Field: "filename", Err: err}
		}

		data, err := afero.ReadFile(fsys, src)
		if err != nil {
			return headers, &vstar.EntryError{Index: i, Field: "payload",
				Err: ioError("read", src, err)}
		}

		h := row.Header(defaults)
		if err := writer.WriteEntry(h, data); err != nil {
			return headers, err
		}
		h.FileSize = uint32(len(data))

		logger.Info("added entry",
			"index", i,
			"path", h.Path,
			"filename", h.Filename,
			"file_size", h.FileSize,
			"version", h.Version,
			"factory", h.Factory,
		)

		headers = append(headers, h)
	}

	if err := writer.Close(); err != nil {
		return headers, err
	}
	if err := bw.Flush(); err != nil {
		return headers, ioError("write", cfg.OutputFile, err)
	}

	logger.Info("created firmware",
		"output", cfg.OutputFile,
		"entry_count", len(headers),
	)

	return headers, nil
}

func readManifest(fsys afero.Fs, name string) ([]manifest.Row, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, ioError("open", name, err)
	}
	defer f.Close()

	rows, err := manifest.Read(f)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", name, err)
	}
	return rows, nil
}
