package handler

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/leca/dt-video-gen/internal/api"
	"github.com/leca/dt-video-gen/internal/model"
)

type remixRequest struct {
	VideoID string `json:"video_id"`
	Prompt  string `json:"prompt"`
}

// Remix handles POST /remix -- JSON {"video_id","prompt"} or the same
// fields as form values.
func (h *Handler) Remix(w http.ResponseWriter, r *http.Request) {
	var body remixRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			api.BadRequest(w, "invalid JSON body: "+err.Error())
			return
		}
	} else {
		if err := r.ParseMultipartForm(multipartMemory); err == nil {
			defer r.MultipartForm.RemoveAll()
		}
		body.VideoID = r.FormValue("video_id")
		body.Prompt = r.FormValue("prompt")
	}

	job, err := h.Remote.RemixJob(r.Context(), strings.TrimSpace(body.VideoID), body.Prompt)
	if !isValidation(err) {
		h.Metrics.ObserveRemote("remix", outcome(err))
	}
	if err != nil {
		api.WriteError(w, err)
		return
	}

	logger(r).Info("remix submitted", "job_id", job.ID, "parent_id", body.VideoID)
	if job.RemixedFromVideoID == "" {
		job.RemixedFromVideoID = strings.TrimSpace(body.VideoID)
	}
	h.record(r.Context(), job, model.GenerationRequest{Prompt: body.Prompt})
	api.WriteRaw(w, http.StatusOK, job.Raw)
}
