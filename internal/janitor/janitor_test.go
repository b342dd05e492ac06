package janitor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	return p
}

func TestCleanupRemovesTrackedFiles(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, dir, "upload.png")
	b := touch(t, dir, "resized.png")

	jan := New(nil)
	jan.Track(a)
	jan.Track(b)
	jan.Cleanup()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTrackDedupesIdenticalPaths(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, dir, "upload.png")

	// a non-empty directory cannot be removed, so every attempt is a failure
	busy := filepath.Join(dir, "busy")
	require.NoError(t, os.Mkdir(busy, 0o755))
	touch(t, busy, "keep")

	var failures int
	jan := New(nil).OnFailure(func(string, error) { failures++ })
	jan.Track(a)
	jan.Track(a)
	jan.Track(busy)
	jan.Track(busy)
	jan.Track("")

	jan.Cleanup()
	assert.Equal(t, 1, failures, "a path tracked twice is deleted once")
	assert.NoFileExists(t, a)
}

func TestCleanupMissingFileIsNoop(t *testing.T) {
	var failures int
	jan := New(nil).OnFailure(func(string, error) { failures++ })
	jan.Track(filepath.Join(t.TempDir(), "never-created"))
	jan.Cleanup()
	assert.Zero(t, failures)
}

func TestCleanupIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, dir, "upload.png")

	jan := New(nil)
	jan.Track(a)
	jan.Cleanup()
	assert.NoFileExists(t, a)

	// a file recreated at a handled path is left alone
	touch(t, dir, "upload.png")
	jan.Cleanup()
	assert.FileExists(t, a)
}

func TestCleanupReportsFailuresAndContinues(t *testing.T) {
	dir := t.TempDir()
	// A non-empty directory cannot be removed with os.Remove.
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.Mkdir(blocked, 0o755))
	touch(t, blocked, "child")
	after := touch(t, dir, "after.png")

	var failed []string
	jan := New(nil).OnFailure(func(p string, _ error) { failed = append(failed, p) })
	jan.Track(blocked)
	jan.Track(after)
	jan.Cleanup()

	assert.Equal(t, []string{blocked}, failed)
	assert.NoFileExists(t, after)
}

func TestCleanupRunsOnPanicPath(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, dir, "upload.png")

	func() {
		defer func() { _ = recover() }()
		jan := New(nil)
		defer jan.Cleanup()
		jan.Track(a)
		panic("handler blew up")
	}()

	assert.NoFileExists(t, a)
}
