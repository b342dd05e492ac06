package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/leca/dt-video-gen/internal/apperror"
)

// fetchImage downloads rawURL into a new temp file and returns its path and
// the name to send upstream. The returned path is owned by the caller even
// when an error is returned alongside it.
func (h *Handler) fetchImage(ctx context.Context, rawURL string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", "", apperror.Validation("image_url must be an absolute http(s) URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", "", apperror.Validation("invalid image_url")
	}
	resp, err := h.Fetch.Do(req)
	if err != nil {
		return "", "", apperror.Validation(fmt.Sprintf("failed to fetch image_url: %v", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", apperror.Validation(fmt.Sprintf("failed to fetch image_url: status %d", resp.StatusCode))
	}

	limit := h.Config.MaxUploadBytes
	p, n, err := h.Temp.Save("fetch", imageExt(u.Path), io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", "", err
	}
	if n > limit {
		return p, "", apperror.Validation(fmt.Sprintf("image exceeds %d bytes", limit))
	}
	return p, path.Base(u.Path), nil
}

// imageExt keeps a recognised image extension from name, or returns "".
func imageExt(name string) string {
	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	default:
		return ""
	}
}
