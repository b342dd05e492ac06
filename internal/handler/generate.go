package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/leca/dt-video-gen/internal/api"
	"github.com/leca/dt-video-gen/internal/apperror"
	"github.com/leca/dt-video-gen/internal/imageproc"
	"github.com/leca/dt-video-gen/internal/model"
	"github.com/leca/dt-video-gen/internal/remote"
	"github.com/leca/dt-video-gen/internal/sizing"
)

// multipartMemory is how much of a multipart form is held in memory before
// the parser spills to disk.
const multipartMemory = 10 << 20

// Generate handles POST /generate -- multipart image upload or image URL,
// normalized to a catalog size and submitted as a new job. Every temporary
// file created here is removed before the handler returns.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	jan := h.newJanitor(r.Context())
	defer jan.Cleanup()

	// Room for the form fields on top of the image itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.TooLarge(w, "request body too large")
			return
		}
		api.BadRequest(w, "invalid multipart form: "+err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer func() {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				h.Metrics.ObserveCleanupFailure()
				logger(r).Warn("failed to remove multipart spill files", "error", err)
			}
		}()
	}

	req := model.GenerationRequest{
		Prompt:  r.FormValue("prompt"),
		Size:    strings.TrimSpace(r.FormValue("size")),
		Seconds: strings.TrimSpace(r.FormValue("seconds")),
		Model:   strings.TrimSpace(r.FormValue("model")),
	}
	if req.Model == "" {
		req.Model = h.Config.DefaultModel
	}
	if req.Seconds == "" {
		req.Seconds = h.Config.DefaultSeconds
	}
	if req.Size == "" {
		req.Size = h.Config.DefaultSize
	}

	sourcePath, filename, err := h.receiveImage(r)
	jan.Track(sourcePath)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	sourceSize, _, err := imageproc.Inspect(sourcePath)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	target, err := sizing.Negotiate(req.Size, &sourceSize)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	prepared, err := h.Images.Prepare(sourcePath, target)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	jan.Track(prepared.Path)

	req.Size = target.String()
	req.Reference = &model.ReferenceImage{
		Path:     prepared.Path,
		MIME:     prepared.MIME,
		Filename: referenceName(filename, prepared.Format),
	}

	job, err := h.Remote.CreateJob(r.Context(), remote.CreateParams{
		Prompt:    req.Prompt,
		Model:     req.Model,
		Seconds:   req.Seconds,
		Size:      target,
		Reference: req.Reference,
	})
	h.Metrics.ObserveRemote("create", outcome(err))
	if err != nil {
		logger(r).Error("job submission failed", "size", req.Size, "error", err)
		api.WriteError(w, err)
		return
	}

	logger(r).Info("job submitted", "job_id", job.ID, "size", req.Size, "resized", prepared.Resized)
	h.record(r.Context(), job, req)
	api.WriteRaw(w, http.StatusOK, job.Raw)
}

// receiveImage stores the caller's image in the temp directory, from the
// "image" file part or the "image_url" field. A non-empty path is returned
// whenever a file was created, even alongside an error.
func (h *Handler) receiveImage(r *http.Request) (string, string, error) {
	file, header, err := r.FormFile("image")
	if err == nil {
		defer file.Close()
		if header.Size > h.Config.MaxUploadBytes {
			return "", "", apperror.Validation("image exceeds the upload limit")
		}
		path, _, err := h.Temp.Save("upload", imageExt(header.Filename), file)
		if err != nil {
			return "", "", err
		}
		return path, header.Filename, nil
	}
	if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		return "", "", apperror.Validation("invalid image part: " + err.Error())
	}

	if u := r.FormValue("image_url"); u != "" {
		return h.fetchImage(r.Context(), u)
	}
	return "", "", apperror.Validation("an image file or image_url is required")
}

// referenceName is the file name sent upstream, with the extension of the
// format actually being sent.
func referenceName(original, format string) string {
	base := filepath.Base(original)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = uuid.NewString()
	}
	ext := "." + format
	if format == "jpeg" {
		ext = ".jpg"
	}
	return base + ext
}
