package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	data := []byte("fake mp4 bytes")

	n, err := fs.Store(context.Background(), ArtifactKey("video_1", "video"), bytes.NewReader(data), int64(len(data)), "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)

	// Verify the file exists on disk at the expected path.
	path := filepath.Join(fs.basePath, "video_1", "video")
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, content)
}

func TestRetrieve(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	data := []byte("retrieve me")
	ctx := context.Background()

	_, err := fs.Store(ctx, "video_2/thumbnail", bytes.NewReader(data), -1, "")
	require.NoError(t, err)

	rc, err := fs.Retrieve(ctx, "video_2/thumbnail")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestExists(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	ctx := context.Background()

	exists, err := fs.Exists(ctx, "video_4/video")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = fs.Store(ctx, "video_4/video", bytes.NewReader([]byte("exists")), -1, "")
	require.NoError(t, err)

	exists, err = fs.Exists(ctx, "video_4/video")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStoreLeavesNoTempFiles(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	_, err := fs.Store(context.Background(), "video_5/video", bytes.NewReader([]byte("x")), -1, "")
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(fs.basePath, "video_5"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "video", entries[0].Name())
}

func TestRetrieveNotFound(t *testing.T) {
	fs := NewFileSystem(t.TempDir())

	rc, err := fs.Retrieve(context.Background(), "missing/video")
	assert.Error(t, err)
	assert.Nil(t, rc)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestKeysCannotEscapeBase(t *testing.T) {
	base := t.TempDir()
	fs := NewFileSystem(filepath.Join(base, "archive"))

	_, err := fs.Store(context.Background(), "../../outside", bytes.NewReader([]byte("x")), -1, "")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(base, "outside"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(base, "archive", "outside"))
	assert.NoError(t, err)
}

func TestEmptyKeyRejected(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	_, err := fs.Store(context.Background(), "  ", bytes.NewReader(nil), 0, "")
	assert.Error(t, err)
}

func TestArtifactKey(t *testing.T) {
	assert.Equal(t, "video_1/video", ArtifactKey("video_1", ""))
	assert.Equal(t, "video_1/thumbnail", ArtifactKey("video_1", "thumbnail"))
}
