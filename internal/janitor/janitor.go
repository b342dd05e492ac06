// Package janitor removes the temporary files a request creates, exactly once,
// on every exit path.
package janitor

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
)

// Janitor collects paths owned by one request. Use it as
//
//	jan := janitor.New(logger)
//	defer jan.Cleanup()
//
// and Track each file as soon as it exists.
type Janitor struct {
	logger    *slog.Logger
	onFailure func(path string, err error)

	mu    sync.Mutex
	paths []string
	seen  map[string]struct{}
}

// New returns an empty Janitor. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{logger: logger, seen: make(map[string]struct{})}
}

// OnFailure registers a hook called for every delete that fails.
func (j *Janitor) OnFailure(fn func(path string, err error)) *Janitor {
	j.onFailure = fn
	return j
}

// Track schedules path for deletion. Tracking the same path twice schedules
// one delete.
func (j *Janitor) Track(path string) {
	if path == "" {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.seen[path]; ok {
		return
	}
	j.seen[path] = struct{}{}
	j.paths = append(j.paths, path)
}

// Cleanup deletes every tracked path. Missing files are ignored; other
// failures are logged and do not stop the remaining deletes. Calling Cleanup
// again is a no-op for paths already handled.
func (j *Janitor) Cleanup() {
	j.mu.Lock()
	paths := j.paths
	j.paths = nil
	j.mu.Unlock()

	for _, p := range paths {
		err := os.Remove(p)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		j.logger.Warn("failed to remove temp file", "path", p, "error", err)
		if j.onFailure != nil {
			j.onFailure(p, err)
		}
	}
}
