//go:build conformance

package conformance

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
)

// apiURL builds a full URL for the given path, e.g. "/generate".
func apiURL(path string) string {
	return strings.TrimRight(baseURL, "/") + path
}

// doRequest performs an HTTP request and returns the response.
func doRequest(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// doJSON performs an authenticated request and returns the decoded JSON.
func doJSON(t *testing.T, method, url, contentType string, body io.Reader) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+authToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp := doRequest(t, req)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal JSON: %v\nbody: %s", err, string(data))
	}
	return resp.StatusCode, raw
}

// multipartBody builds a multipart form body with optional file and fields.
func multipartBody(t *testing.T, fileName string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if content != nil {
		fw, err := w.CreateFormFile("image", fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("write content: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

// assertErrorEnvelope validates the error envelope and returns errors[0].
func assertErrorEnvelope(t *testing.T, raw map[string]any) map[string]any {
	t.Helper()

	if raw["success"] != false {
		t.Errorf("'success' should be false, got %v", raw["success"])
	}
	if _, ok := raw["result"]; !ok {
		t.Error("envelope missing 'result' field")
	} else if raw["result"] != nil {
		t.Errorf("'result' should be null, got %v", raw["result"])
	}
	if _, ok := raw["messages"].([]any); !ok {
		t.Errorf("'messages' should be array, got %T", raw["messages"])
	}

	errArr, ok := raw["errors"].([]any)
	if !ok || len(errArr) == 0 {
		t.Fatalf("'errors' should be a non-empty array, got %v", raw["errors"])
	}
	errObj, ok := errArr[0].(map[string]any)
	if !ok {
		t.Fatalf("errors[0] should be object, got %T", errArr[0])
	}
	if _, ok := errObj["code"].(float64); !ok {
		t.Errorf("errors[0].code should be numeric, got %T", errObj["code"])
	}
	if _, ok := errObj["message"].(string); !ok {
		t.Errorf("errors[0].message should be string, got %T", errObj["message"])
	}
	return errObj
}
