package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBucket is a minimal path-style S3 endpoint keeping objects in memory.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		b.objects[key] = data
		b.types[key] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if _, ok := b.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeS3(t *testing.T) (*S3, *fakeBucket) {
	t.Helper()
	bucket := &fakeBucket{objects: map[string][]byte{}, types: map[string]string{}}
	ts := httptest.NewServer(bucket)
	t.Cleanup(ts.Close)

	store, err := NewS3(context.Background(), S3Config{
		Endpoint:        ts.URL,
		Region:          "us-east-1",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Bucket:          "artifacts",
		Prefix:          "videos",
	})
	require.NoError(t, err)
	return store, bucket
}

func TestS3_ExistsMissing(t *testing.T) {
	store, _ := newFakeS3(t)

	ok, err := store.Exists(context.Background(), "video_1/video")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestS3_ExistsPresent(t *testing.T) {
	store, bucket := newFakeS3(t)
	bucket.objects["artifacts/videos/video_1/video"] = []byte("x")

	ok, err := store.Exists(context.Background(), "video_1/video")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{})
	assert.Error(t, err)
}
