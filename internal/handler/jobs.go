package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leca/dt-video-gen/internal/api"
	"github.com/leca/dt-video-gen/internal/database"
	"github.com/leca/dt-video-gen/internal/model"
)

// ListJobs handles GET /jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.DB == nil {
		api.NotFound(w, "job ledger is disabled")
		return
	}

	page := 1
	perPage := 50

	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		if pp, err := strconv.Atoi(v); err == nil && pp > 0 {
			if pp > 1000 {
				pp = 1000
			}
			perPage = pp
		}
	}

	jobs, total, err := h.DB.ListJobs(page, perPage)
	if err != nil {
		logger(r).Error("failed to list jobs", "error", err)
		api.WriteJSON(w, http.StatusInternalServerError, api.ErrorResponse(9500, "failed to list jobs"))
		return
	}

	// Ensure non-nil slice for JSON serialisation.
	if jobs == nil {
		jobs = []*model.JobRecord{}
	}

	info := api.ResultInfo{
		Page:       page,
		PerPage:    perPage,
		Count:      len(jobs),
		TotalCount: total,
		TotalPages: (total + perPage - 1) / perPage,
	}

	api.WriteJSON(w, http.StatusOK, api.PaginatedResponse(map[string]interface{}{"jobs": jobs}, info))
}

// GetJob handles GET /jobs/{id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.DB == nil {
		api.NotFound(w, "job ledger is disabled")
		return
	}

	rec, err := h.DB.GetJob(chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrNotFound) {
		api.NotFound(w, "job not found")
		return
	}
	if err != nil {
		logger(r).Error("failed to get job", "error", err)
		api.WriteJSON(w, http.StatusInternalServerError, api.ErrorResponse(9500, "failed to get job"))
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(rec))
}
