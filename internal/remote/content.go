package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/leca/dt-video-gen/internal/apperror"
)

// Artifact is an open upstream content stream. The caller must Close it.
type Artifact struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// Close releases the underlying connection.
func (a *Artifact) Close() error {
	return a.Body.Close()
}

// DefaultContentType returns the fallback MIME type for a content variant.
func DefaultContentType(variant string) string {
	switch variant {
	case "", "video":
		return "video/mp4"
	case "thumbnail":
		return "image/webp"
	case "spritesheet":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// DownloadContent opens the artifact stream for a completed job. The body is
// handed back unread so it can be streamed; a non-2xx response is a
// RetrievalError with the upstream body, and is not retried.
func (c *Client) DownloadContent(ctx context.Context, jobID, variant string) (*Artifact, error) {
	if jobID == "" {
		return nil, apperror.Validation("job id is required")
	}
	u := c.jobURL(jobID) + "/content"
	if variant != "" {
		u += "?" + url.Values{"variant": {variant}}.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &apperror.Error{Kind: apperror.KindRetrieval, Message: "remote service unreachable", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, apperror.Retrieval(resp.StatusCode, string(body))
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = DefaultContentType(variant)
	}
	return &Artifact{Body: resp.Body, ContentType: ct, ContentLength: resp.ContentLength}, nil
}
