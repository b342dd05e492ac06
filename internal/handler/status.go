package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leca/dt-video-gen/internal/api"
	"github.com/leca/dt-video-gen/internal/apperror"
	"github.com/leca/dt-video-gen/internal/archive"
	"github.com/leca/dt-video-gen/internal/database"
	"github.com/leca/dt-video-gen/internal/model"
	"github.com/leca/dt-video-gen/internal/poller"
	"github.com/leca/dt-video-gen/internal/remote"
	"github.com/leca/dt-video-gen/internal/storage"
)

// Status handles GET /status/{id}. Transient upstream failures are retried
// inside the poll; a failed poll reports whether calling again may help.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.Poller.Poll(r.Context(), id)
	if err != nil {
		api.WriteRetryableError(w, err, poller.IsRetryable(err))
		return
	}

	job := res.Job
	result := job.Result()
	h.refresh(r, job, result)
	if result.State.Terminal() {
		logger(r).Info("job finished", "job_id", job.ID, "state", result.State, "reason", result.Reason, "attempts", res.Attempts)
	}
	if result.ArtifactRef != "" && h.Archiver != nil {
		h.Archiver.ArchiveAsync(result.ArtifactRef)
	}
	api.WriteRaw(w, http.StatusOK, job.Raw)
}

// refresh moves a ledger entry to the polled state. Jobs submitted before
// the ledger existed are recorded on first sight.
func (h *Handler) refresh(r *http.Request, job *model.Job, result model.StatusResult) {
	if h.DB == nil {
		return
	}
	err := h.DB.UpdateJobStatus(job.ID, result.State, result.Progress)
	if errors.Is(err, database.ErrNotFound) {
		h.record(r.Context(), job, model.GenerationRequest{})
		return
	}
	if err != nil {
		logger(r).Warn("failed to refresh job", "job_id", job.ID, "error", err)
	}
}

// Download handles GET /download/{id}?variant= -- streams the artifact
// straight from the remote service.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	variant := r.URL.Query().Get("variant")

	art, err := h.Remote.DownloadContent(r.Context(), id, variant)
	h.Metrics.ObserveRemote("download", outcome(err))
	if err != nil {
		if gone(err) && h.serveArchived(w, r, id, variant) {
			return
		}
		api.WriteError(w, err)
		return
	}
	defer art.Close()

	w.Header().Set("Content-Type", art.ContentType)
	if art.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(art.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)
	if n, err := io.Copy(w, art.Body); err != nil {
		// Headers are already sent; all that is left is to log it.
		logger(r).Warn("artifact stream interrupted", "job_id", id, "variant", variant, "bytes", n, "error", err)
	}
}

// serveArchived streams the archived video once the remote copy is gone. It
// reports false, with nothing written, when there is no archived copy.
func (h *Handler) serveArchived(w http.ResponseWriter, r *http.Request, id, variant string) bool {
	if h.Archiver == nil || (variant != "" && variant != archive.Variant) {
		return false
	}
	rc, err := h.Archiver.Open(r.Context(), id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger(r).Warn("failed to open archived artifact", "job_id", id, "error", err)
		}
		return false
	}
	defer rc.Close()

	w.Header().Set("Content-Type", remote.DefaultContentType(archive.Variant))
	w.WriteHeader(http.StatusOK)
	if n, err := io.Copy(w, rc); err != nil {
		logger(r).Warn("archived stream interrupted", "job_id", id, "bytes", n, "error", err)
	}
	return true
}

// gone reports whether the remote service no longer has the artifact.
func gone(err error) bool {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperror.KindRetrieval {
		return false
	}
	return appErr.UpstreamStatus == http.StatusNotFound || appErr.UpstreamStatus == http.StatusGone
}
