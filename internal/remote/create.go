package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/leca/dt-video-gen/internal/apperror"
	"github.com/leca/dt-video-gen/internal/model"
	"github.com/leca/dt-video-gen/internal/sizing"
)

// CreateParams are the inputs of a creation request. Size must be a catalog
// member; negotiate it first.
type CreateParams struct {
	Prompt    string
	Model     string
	Seconds   string
	Size      model.Size
	Reference *model.ReferenceImage
}

// CreateJob submits a new generation job. The reference image, if any, is
// streamed from disk as the "input_reference" part with an exact
// Content-Length on the request. Any non-2xx response is a SubmissionError;
// there is no retry since the call has side effects.
func (c *Client) CreateJob(ctx context.Context, p CreateParams) (*model.Job, error) {
	if !p.Size.Valid() {
		return nil, apperror.Configuration("create request has no size")
	}
	if !sizing.IsValid(p.Size) {
		return nil, apperror.Configuration(fmt.Sprintf("size %s is not one of %v", p.Size, sizing.Catalog()))
	}
	if strings.TrimSpace(p.Model) == "" {
		return nil, apperror.Configuration("create request has no model")
	}

	body, length, closeBody, err := buildCreateBody(p)
	if err != nil {
		return nil, err
	}
	defer closeBody()

	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/videos", body.reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = length
	req.Header.Set("Content-Type", body.contentType)
	return c.doSubmit(req)
}

type multipartBody struct {
	reader      io.Reader
	contentType string
}

// buildCreateBody lays out the multipart envelope around the file so the
// file itself is never held in memory. The multipart writer writes straight
// through to its destination, so the bytes before and after the file part
// can be captured separately.
func buildCreateBody(p CreateParams) (multipartBody, int64, func(), error) {
	var head bytes.Buffer
	mw := multipart.NewWriter(&head)

	fields := [][2]string{
		{"model", p.Model},
		{"size", p.Size.String()},
	}
	if p.Prompt != "" {
		fields = append([][2]string{{"prompt", p.Prompt}}, fields...)
	}
	if p.Seconds != "" {
		fields = append(fields, [2]string{"seconds", p.Seconds})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return multipartBody{}, 0, nil, fmt.Errorf("writing field %s: %w", f[0], err)
		}
	}

	noop := func() {}
	if p.Reference == nil {
		if err := mw.Close(); err != nil {
			return multipartBody{}, 0, nil, fmt.Errorf("closing multipart body: %w", err)
		}
		return multipartBody{reader: &head, contentType: mw.FormDataContentType()}, int64(head.Len()), noop, nil
	}

	f, err := os.Open(p.Reference.Path)
	if err != nil {
		return multipartBody{}, 0, nil, apperror.Storage("opening reference image", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return multipartBody{}, 0, nil, apperror.Storage("reading reference image size", err)
	}

	filename := p.Reference.Filename
	if filename == "" {
		filename = filepath.Base(p.Reference.Path)
	}
	mime := p.Reference.MIME
	if mime == "" {
		mime = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="input_reference"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", mime)
	h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	if _, err := mw.CreatePart(h); err != nil {
		f.Close()
		return multipartBody{}, 0, nil, fmt.Errorf("writing file part header: %w", err)
	}
	prefix := bytes.Clone(head.Bytes())

	head.Reset()
	if err := mw.Close(); err != nil {
		f.Close()
		return multipartBody{}, 0, nil, fmt.Errorf("closing multipart body: %w", err)
	}
	suffix := bytes.Clone(head.Bytes())

	length := int64(len(prefix)) + info.Size() + int64(len(suffix))
	r := io.MultiReader(bytes.NewReader(prefix), io.LimitReader(f, info.Size()), bytes.NewReader(suffix))
	return multipartBody{reader: r, contentType: mw.FormDataContentType()}, length, func() { f.Close() }, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
