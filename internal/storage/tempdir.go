package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/leca/dt-video-gen/internal/apperror"
)

// TempDir is the single writable directory holding per-request transient
// files. Names carry a time-derived token plus a process-wide sequence
// number so concurrent requests never collide.
type TempDir struct {
	dir string
	seq atomic.Uint64
}

// NewTempDir creates dir if needed.
func NewTempDir(dir string) (*TempDir, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp dir %s: %w", dir, err)
	}
	return &TempDir{dir: dir}, nil
}

// Dir returns the directory path.
func (t *TempDir) Dir() string {
	return t.dir
}

// Path returns a fresh, unused file name in the directory.
func (t *TempDir) Path(prefix, ext string) string {
	token := strconv.FormatInt(time.Now().UnixNano(), 10) + "-" + strconv.FormatUint(t.seq.Add(1), 10)
	return filepath.Join(t.dir, prefix+"-"+token+ext)
}

// Create opens a new file exclusively. The caller owns the file and its path.
func (t *TempDir) Create(prefix, ext string) (*os.File, error) {
	f, err := os.OpenFile(t.Path(prefix, ext), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, apperror.Storage("creating temp file", err)
	}
	return f, nil
}

// Save copies r into a new temp file and returns its path and size. No file
// is left behind when the copy fails.
func (t *TempDir) Save(prefix, ext string, r io.Reader) (string, int64, error) {
	f, err := t.Create(prefix, ext)
	if err != nil {
		return "", 0, err
	}
	name := f.Name()
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(name)
		return "", 0, apperror.Storage("writing temp file", err)
	}
	return name, n, nil
}
