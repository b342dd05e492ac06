// Package remote talks to the asynchronous video-generation service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/leca/dt-video-gen/internal/apperror"
	"github.com/leca/dt-video-gen/internal/model"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client handles communication with the remote service. It holds no
// per-job state and is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new remote client.
func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: timeout,
				IdleConnTimeout:       90 * time.Second,
			},
		}
	}
	return &Client{
		baseURL:    base,
		apiKey:     strings.TrimSpace(opts.APIKey),
		httpClient: client,
	}
}

// RetrieveJob issues a single status read. Errors are classified:
// 500/502/503 and connection resets or timeouts are transient, every other
// failure (including an unparsable body) is not.
func (c *Client) RetrieveJob(ctx context.Context, jobID string) (*model.Job, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, apperror.Validation("job id is required")
	}
	req, err := c.newRequest(ctx, http.MethodGet, c.jobURL(jobID), nil)
	if err != nil {
		return nil, apperror.Status(0, "", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isTransientNetErr(err) {
			return nil, apperror.Transient(0, "", err)
		}
		return nil, apperror.Status(0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := readBody(resp.Body)
		switch resp.StatusCode {
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return nil, apperror.Transient(resp.StatusCode, body, nil)
		default:
			return nil, apperror.Status(resp.StatusCode, body, nil)
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTransientNetErr(err) {
			return nil, apperror.Transient(resp.StatusCode, "", err)
		}
		return nil, apperror.Status(resp.StatusCode, "", err)
	}
	job, err := decodeJob(raw)
	if err != nil {
		return nil, apperror.Status(resp.StatusCode, truncate(string(raw)), err)
	}
	return job, nil
}

// RemixJob submits a follow-up job derived from parentID. Missing inputs are
// rejected before any network call; there is no retry.
func (c *Client) RemixJob(ctx context.Context, parentID, prompt string) (*model.Job, error) {
	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		return nil, apperror.Validation("parent job id is required")
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, apperror.Validation("prompt is required")
	}

	payload, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal remix body: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.jobURL(parentID)+"/remix", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doSubmit(req)
}

// doSubmit executes a single-attempt create/remix call.
func (c *Client) doSubmit(req *http.Request) (*model.Job, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &apperror.Error{Kind: apperror.KindSubmission, Message: "remote service unreachable", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperror.Error{Kind: apperror.KindSubmission, Message: "reading remote response", UpstreamStatus: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperror.Submission(resp.StatusCode, string(raw))
	}
	job, err := decodeJob(raw)
	if err != nil {
		return nil, &apperror.Error{Kind: apperror.KindSubmission, Message: "malformed job object", UpstreamStatus: resp.StatusCode, Body: truncate(string(raw)), Err: err}
	}
	return job, nil
}

func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *Client) jobURL(jobID string) string {
	return c.baseURL + "/videos/" + url.PathEscape(jobID)
}

func decodeJob(raw []byte) (*model.Job, error) {
	var job model.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	if job.ID == "" {
		return nil, errors.New("job object has no id")
	}
	job.Raw = json.RawMessage(raw)
	return &job, nil
}

// isTransientNetErr reports connection resets, broken pipes, truncated
// responses and timeouts.
func isTransientNetErr(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

const maxErrorBody = 64 << 10

func readBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return string(b)
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
