// Package archive copies finished artifacts from the remote service into
// durable storage.
package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/leca/dt-video-gen/internal/janitor"
	"github.com/leca/dt-video-gen/internal/metrics"
	"github.com/leca/dt-video-gen/internal/remote"
	"github.com/leca/dt-video-gen/internal/storage"
)

// Variant is the content variant that gets archived.
const Variant = "video"

// DefaultTimeout bounds one background archive.
const DefaultTimeout = 10 * time.Minute

// Downloader opens an artifact stream.
type Downloader interface {
	DownloadContent(ctx context.Context, jobID, variant string) (*remote.Artifact, error)
}

// Ledger records where an artifact was archived. It may be nil.
type Ledger interface {
	MarkArchived(id, key string) error
}

// Options configures an Archiver.
type Options struct {
	Timeout time.Duration
	Ledger  Ledger
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Archiver downloads completed artifacts once and stores them. Concurrent
// requests for the same job share one download.
type Archiver struct {
	client  Downloader
	store   storage.Storage
	temp    *storage.TempDir
	ledger  Ledger
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	group singleflight.Group
	wg    sync.WaitGroup
}

// New creates an Archiver.
func New(client Downloader, store storage.Storage, temp *storage.TempDir, opts Options) *Archiver {
	a := &Archiver{
		client:  client,
		store:   store,
		temp:    temp,
		ledger:  opts.Ledger,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		timeout: opts.Timeout,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.timeout <= 0 {
		a.timeout = DefaultTimeout
	}
	return a
}

// Archive stores the job's video under its artifact key and returns the key.
// An artifact that is already stored is not downloaded again.
func (a *Archiver) Archive(ctx context.Context, jobID string) (string, error) {
	key := storage.ArtifactKey(jobID, Variant)
	v, err, _ := a.group.Do(key, func() (interface{}, error) {
		return a.archive(ctx, jobID, key)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (a *Archiver) archive(ctx context.Context, jobID, key string) (string, error) {
	exists, err := a.store.Exists(ctx, key)
	if err != nil {
		a.metrics.ObserveArchive("error")
		return "", fmt.Errorf("checking archive %s: %w", key, err)
	}
	if exists {
		a.metrics.ObserveArchive("skipped")
		return key, nil
	}

	art, err := a.client.DownloadContent(ctx, jobID, Variant)
	if err != nil {
		a.metrics.ObserveArchive("error")
		return "", err
	}
	defer art.Close()

	// Spool to disk first so the store gets a seekable body of known size.
	jan := janitor.New(a.logger).OnFailure(func(string, error) { a.metrics.ObserveCleanupFailure() })
	defer jan.Cleanup()

	path, size, err := a.temp.Save("archive", ".mp4", art.Body)
	if err != nil {
		a.metrics.ObserveArchive("error")
		return "", err
	}
	jan.Track(path)

	f, err := os.Open(path)
	if err != nil {
		a.metrics.ObserveArchive("error")
		return "", fmt.Errorf("reopening spooled artifact: %w", err)
	}
	defer f.Close()

	if _, err := a.store.Store(ctx, key, f, size, art.ContentType); err != nil {
		a.metrics.ObserveArchive("error")
		return "", fmt.Errorf("storing artifact %s: %w", key, err)
	}
	a.metrics.ObserveArchive("stored")

	if a.ledger != nil {
		if err := a.ledger.MarkArchived(jobID, key); err != nil {
			a.logger.Warn("failed to record archive", "job_id", jobID, "key", key, "error", err)
		}
	}
	a.logger.Info("artifact archived", "job_id", jobID, "key", key, "bytes", size)
	return key, nil
}

// Open returns the archived video of jobID, or an error wrapping
// storage.ErrNotFound when it was never archived.
func (a *Archiver) Open(ctx context.Context, jobID string) (io.ReadCloser, error) {
	return a.store.Retrieve(ctx, storage.ArtifactKey(jobID, Variant))
}

// ArchiveAsync archives in the background, detached from any request and
// bounded by the archiver's timeout. Failures are logged.
func (a *Archiver) ArchiveAsync(jobID string) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if _, err := a.Archive(ctx, jobID); err != nil {
			a.logger.Error("archive failed", "job_id", jobID, "error", err)
		}
	}()
}

// Wait blocks until every background archive has finished.
func (a *Archiver) Wait() {
	a.wg.Wait()
}
