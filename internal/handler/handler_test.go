package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leca/dt-video-gen/internal/archive"
	"github.com/leca/dt-video-gen/internal/config"
	"github.com/leca/dt-video-gen/internal/database"
	"github.com/leca/dt-video-gen/internal/handler"
	"github.com/leca/dt-video-gen/internal/imageproc"
	"github.com/leca/dt-video-gen/internal/metrics"
	"github.com/leca/dt-video-gen/internal/poller"
	"github.com/leca/dt-video-gen/internal/remote"
	"github.com/leca/dt-video-gen/internal/router"
	"github.com/leca/dt-video-gen/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

// createCall is what the fake upstream saw on one POST /videos.
type createCall struct {
	Fields  map[string]string
	RefMIME string
	RefName string
	Ref     []byte
}

// fakeUpstream imitates the remote generation service.
type fakeUpstream struct {
	t *testing.T

	mu           sync.Mutex
	creates      []createCall
	createStatus int
	createBody   string
	lastCreate   string
	statuses     []int
	statusHits   int
	jobStatus    string
	remixes      []map[string]string
	remixPaths   []string
	content      []byte
	contentType  string
	contentCode  int
}

func newFakeUpstream(t *testing.T) (*fakeUpstream, *httptest.Server) {
	up := &fakeUpstream{t: t, jobStatus: "in_progress", content: []byte("mp4-bytes"), contentType: "video/mp4"}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /videos", up.create)
	mux.HandleFunc("GET /videos/{id}", up.retrieve)
	mux.HandleFunc("GET /videos/{id}/content", up.download)
	mux.HandleFunc("POST /videos/{id}/remix", up.remix)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return up, ts
}

func (up *fakeUpstream) create(w http.ResponseWriter, r *http.Request) {
	call := createCall{Fields: map[string]string{}}
	mr, err := r.MultipartReader()
	require.NoError(up.t, err)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(up.t, err)
		data, err := io.ReadAll(part)
		require.NoError(up.t, err)
		if part.FormName() == "input_reference" {
			call.RefMIME = part.Header.Get("Content-Type")
			call.RefName = part.FileName()
			call.Ref = data
			continue
		}
		call.Fields[part.FormName()] = string(data)
	}

	up.mu.Lock()
	defer up.mu.Unlock()
	up.creates = append(up.creates, call)
	if up.createStatus != 0 {
		w.WriteHeader(up.createStatus)
		_, _ = w.Write([]byte(up.createBody))
		return
	}
	up.lastCreate = fmt.Sprintf(`{"id":"video_%d","object":"video","status":"queued","progress":0,"model":%q,"seconds":%q,"size":%q}`,
		len(up.creates), call.Fields["model"], call.Fields["seconds"], call.Fields["size"])
	_, _ = w.Write([]byte(up.lastCreate))
}

func (up *fakeUpstream) retrieve(w http.ResponseWriter, r *http.Request) {
	up.mu.Lock()
	defer up.mu.Unlock()
	n := up.statusHits
	up.statusHits++
	if n < len(up.statuses) && up.statuses[n] != http.StatusOK {
		w.WriteHeader(up.statuses[n])
		_, _ = w.Write([]byte(`{"error":{"message":"scripted"}}`))
		return
	}
	progress := 50
	if up.jobStatus == "completed" {
		progress = 100
	}
	_, _ = fmt.Fprintf(w, `{"id":%q,"object":"video","status":%q,"progress":%d}`, r.PathValue("id"), up.jobStatus, progress)
}

func (up *fakeUpstream) download(w http.ResponseWriter, r *http.Request) {
	if up.contentCode != 0 {
		w.WriteHeader(up.contentCode)
		_, _ = w.Write([]byte(`{"error":"not ready"}`))
		return
	}
	w.Header().Set("Content-Type", up.contentType)
	_, _ = w.Write(up.content)
}

func (up *fakeUpstream) remix(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	require.NoError(up.t, json.NewDecoder(r.Body).Decode(&body))
	up.mu.Lock()
	up.remixes = append(up.remixes, body)
	up.remixPaths = append(up.remixPaths, r.URL.Path)
	up.mu.Unlock()
	_, _ = fmt.Fprintf(w, `{"id":"video_remix","object":"video","status":"queued","remixed_from_video_id":%q}`, r.PathValue("id"))
}

func (up *fakeUpstream) createCount() int {
	up.mu.Lock()
	defer up.mu.Unlock()
	return len(up.creates)
}

// fixture is a fully wired server plus the pieces tests inspect.
type fixture struct {
	Server   *httptest.Server
	Handler  *handler.Handler
	Upstream *fakeUpstream
	TempDir  string
	DB       *database.SQLiteDB
	Archive  *storage.FileSystem
}

type fixtureOption func(*fixture)

// withArchive enables a filesystem archiver.
func withArchive(t *testing.T) fixtureOption {
	return func(f *fixture) {
		f.Archive = storage.NewFileSystem(t.TempDir())
	}
}

func testServer(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	up, upstreamServer := newFakeUpstream(t)

	db, err := database.NewSQLiteDB("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tempDir := t.TempDir()
	temp, err := storage.NewTempDir(tempDir)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.AuthToken = testToken
	cfg.TempDir = tempDir

	m := metrics.New()
	client := remote.NewClient(remote.Options{BaseURL: upstreamServer.URL, APIKey: "sk-test"})
	h := &handler.Handler{
		Remote: client,
		Poller: poller.New(client, poller.Options{
			Sleep:   func(context.Context, time.Duration) error { return nil },
			Metrics: m,
		}),
		Images:  imageproc.NewPreprocessor(temp),
		Temp:    temp,
		Fetch:   &http.Client{Timeout: 5 * time.Second},
		DB:      db,
		Metrics: m,
		Config:  cfg,
	}

	f := &fixture{Handler: h, Upstream: up, TempDir: tempDir, DB: db}
	for _, opt := range opts {
		opt(f)
	}
	if f.Archive != nil {
		h.Archiver = archiveFor(client, f.Archive, temp, db)
	}

	srv := router.New(h, nil)
	f.Server = httptest.NewServer(srv.Router)
	t.Cleanup(f.Server.Close)
	return f
}

// authReq creates an *http.Request with the test bearer token.
func authReq(method, url string, body io.Reader) *http.Request {
	req, _ := http.NewRequest(method, url, body)
	req.Header.Set("Authorization", "Bearer "+testToken)
	return req
}

// generateBody builds a /generate multipart body with an image part and
// extra form fields.
func generateBody(t *testing.T, fileName string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if content != nil {
		fw, err := w.CreateFormFile("image", fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func postGenerate(t *testing.T, f *fixture, fileName string, content []byte, fields map[string]string) *http.Response {
	t.Helper()
	body, ct := generateBody(t, fileName, content, fields)
	req := authReq(http.MethodPost, f.Server.URL+"/generate", body)
	req.Header.Set("Content-Type", ct)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return data
}

// errorBody is the error envelope.
type errorBody struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code      int    `json:"code"`
		Kind      string `json:"kind"`
		Message   string `json:"message"`
		Retryable *bool  `json:"retryable"`
	} `json:"errors"`
}

func decodeError(t *testing.T, resp *http.Response) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(readBody(t, resp), &body))
	require.False(t, body.Success)
	require.Len(t, body.Errors, 1)
	return body
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(w, h)))
	return buf.Bytes()
}

func jpegImage(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(w, h), nil))
	return buf.Bytes()
}

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	return img
}

func decodedSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Empty(t, names, "temp dir should be empty")
}

func archiveFor(client *remote.Client, store storage.Storage, temp *storage.TempDir, db *database.SQLiteDB) *archive.Archiver {
	return archive.New(client, store, temp, archive.Options{Ledger: db})
}

func (up *fakeUpstream) call(t *testing.T, i int) createCall {
	t.Helper()
	up.mu.Lock()
	defer up.mu.Unlock()
	require.Greater(t, len(up.creates), i)
	return up.creates[i]
}

func (up *fakeUpstream) lastResponse() string {
	up.mu.Lock()
	defer up.mu.Unlock()
	return up.lastCreate
}

func (up *fakeUpstream) remixCount() int {
	up.mu.Lock()
	defer up.mu.Unlock()
	return len(up.remixes)
}

// script sets the status codes returned by successive GET /videos/{id}.
func (up *fakeUpstream) script(jobStatus string, statuses ...int) {
	up.mu.Lock()
	defer up.mu.Unlock()
	up.jobStatus = jobStatus
	up.statuses = statuses
	up.statusHits = 0
}

func (up *fakeUpstream) hits() int {
	up.mu.Lock()
	defer up.mu.Unlock()
	return up.statusHits
}
