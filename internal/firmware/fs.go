// Package firmware unpacks and assembles VStarCam firmware containers on a
// filesystem: payload files plus a buildfile on one side, a single
// container on the other.
package firmware

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/ossyrian/vstarfw/internal/vstar"
)

// NewFs returns the filesystem the operations run against. In dry-run mode
// reads go to disk and writes land in memory, so nothing is modified.
func NewFs(dryRun bool) afero.Fs {
	base := afero.NewOsFs()
	if !dryRun {
		return base
	}
	return afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(base), afero.NewMemMapFs())
}

// payloadPath resolves filename inside dir. Filenames come from container
// headers and manifests, so anything escaping dir is refused.
func payloadPath(dir, filename string) (string, error) {
	if !filepath.IsLocal(filename) {
		return "", fmt.Errorf("%w: unsafe filename %q", vstar.ErrFormat, filename)
	}
	return filepath.Join(dir, filename), nil
}

// sameFile reports whether a and b name the same file once cleaned and made
// absolute.
func sameFile(a, b string) bool {
	return absPath(a) == absPath(b)
}

func absPath(name string) string {
	if abs, err := filepath.Abs(name); err == nil {
		return abs
	}
	return filepath.Clean(name)
}

func ioError(op, name string, err error) error {
	return fmt.Errorf("%w: failed to %s %s: %w", vstar.ErrIO, op, name, err)
}
