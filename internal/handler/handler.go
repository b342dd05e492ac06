package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/leca/dt-video-gen/internal/api"
	"github.com/leca/dt-video-gen/internal/apperror"
	"github.com/leca/dt-video-gen/internal/archive"
	"github.com/leca/dt-video-gen/internal/config"
	"github.com/leca/dt-video-gen/internal/database"
	"github.com/leca/dt-video-gen/internal/imageproc"
	"github.com/leca/dt-video-gen/internal/janitor"
	"github.com/leca/dt-video-gen/internal/metrics"
	"github.com/leca/dt-video-gen/internal/model"
	"github.com/leca/dt-video-gen/internal/poller"
	"github.com/leca/dt-video-gen/internal/remote"
	"github.com/leca/dt-video-gen/internal/storage"
)

// Handler holds dependencies for HTTP handlers. DB and Archiver are
// optional; everything else is required.
type Handler struct {
	Remote   *remote.Client
	Poller   *poller.Poller
	Images   *imageproc.Preprocessor
	Temp     *storage.TempDir
	Fetch    *http.Client
	DB       database.Database
	Archiver *archive.Archiver
	Metrics  *metrics.Metrics
	Config   *config.Config
}

// newJanitor returns a request-scoped janitor that counts failed deletes.
func (h *Handler) newJanitor(ctx context.Context) *janitor.Janitor {
	return janitor.New(api.Logger(ctx)).OnFailure(func(string, error) {
		h.Metrics.ObserveCleanupFailure()
	})
}

// record writes a job to the ledger. Ledger failures never fail a request.
func (h *Handler) record(ctx context.Context, job *model.Job, req model.GenerationRequest) {
	if h.DB == nil {
		return
	}
	if err := h.DB.RecordJob(model.NewJobRecord(job, req)); err != nil {
		api.Logger(ctx).Warn("failed to record job", "job_id", job.ID, "error", err)
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func isValidation(err error) bool {
	return apperror.KindOf(err) == apperror.KindValidation
}

func logger(r *http.Request) *slog.Logger {
	return api.Logger(r.Context())
}
