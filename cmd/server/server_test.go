package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/go-pdf/fpdf"

	"github.com/toricodesthings/resumeio-pdf/internal/config"
	"github.com/toricodesthings/resumeio-pdf/internal/ocr"
	"github.com/toricodesthings/resumeio-pdf/internal/pipeline"
	"github.com/toricodesthings/resumeio-pdf/internal/resumeio"
	"github.com/toricodesthings/resumeio-pdf/internal/types"
)

var secret = strings.Repeat("k", 32)

type blankEngine struct{}

func (blankEngine) Name() string { return "blank" }

func (blankEngine) Recognize(ctx context.Context, img image.Image) (ocr.Page, error) {
	pdf := fpdf.New("P", "pt", "", "")
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: 1600, Ht: 2000})
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return ocr.Page{}, err
	}
	return ocr.Page{PDF: buf.Bytes(), Width: 1600, Height: 2000}, nil
}

// remoteStub serves one page for "abc123" and 404 for anything else.
func remoteStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/meta/abc123":
			w.Write([]byte(`{"pages":[{"viewport":{"width":800,"height":1000},
				"links":[{"url":"https://x","x":10,"y":20,"width":100,"height":30}]}]}`))
		case "/to-image/abc123-1.jpeg", "/to-image/abc123-1.png":
			img := image.NewGray(image.Rect(0, 0, 8, 10))
			img.Set(0, 0, color.White)
			png.Encode(w, img)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testServer(t *testing.T, mutate func(*config.Config)) http.Handler {
	t.Helper()
	remote := remoteStub(t)
	cfg := config.Config{
		InternalSharedSecret:  secret,
		MaxJSONBodyBytes:      1 << 16,
		MaxConcurrentRequests: 4,
		MaxOCRConcurrent:      2,
		RateLimitEvery:        time.Millisecond,
		RateLimitBurst:        100,
		HealthDegradeRatio:    0.9,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := resumeio.New(resumeio.Config{
		MetadataBaseURL: remote.URL + "/meta",
		ImageBaseURL:    remote.URL + "/to-image",
	})
	proc := pipeline.New(client, blankEngine{}, pipeline.Options{}, logger)
	return newServer(cfg, proc, logger).routes()
}

func do(h http.Handler, method, path, body string, auth bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth {
		req.Header.Set("X-Internal-Auth", secret)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := testServer(t, nil)
	rec := do(h, http.MethodGet, "/health", "", false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"healthy"`) {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	h := testServer(t, nil)
	for _, path := range []string{"/metrics", "/resume/abc123.pdf"} {
		if rec := do(h, http.MethodGet, path, "", false); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s without auth = %d", path, rec.Code)
		}
	}
	if rec := do(h, http.MethodGet, "/metrics", "", true); rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
}

func TestGeneratePDF(t *testing.T) {
	h := testServer(t, nil)

	rec := do(h, http.MethodPost, "/resume/pdf", `{"token":"abc123","format":"png","size":1200}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type = %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("body is not a PDF")
	}
	if rec.Header().Get("X-Page-Count") != "1" || rec.Header().Get("X-Run-ID") == "" || rec.Header().Get("X-Cache-Stamp") == "" {
		t.Fatalf("headers = %v", rec.Header())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "abc123_resume.pdf") {
		t.Fatalf("content disposition = %q", cd)
	}

	rec = do(h, http.MethodGet, "/resume/abc123.pdf", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d body %s", rec.Code, rec.Body.String())
	}
}

func TestGenerateErrors(t *testing.T) {
	h := testServer(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"bad json", http.MethodPost, "/resume/pdf", `{"token":`, http.StatusBadRequest, "bad_request"},
		{"unknown field", http.MethodPost, "/resume/pdf", `{"token":"a","extra":1}`, http.StatusBadRequest, "bad_request"},
		{"empty token", http.MethodPost, "/resume/pdf", `{"token":""}`, http.StatusBadRequest, "validation_failed"},
		{"bad token", http.MethodPost, "/resume/pdf", `{"token":"../etc"}`, http.StatusBadRequest, "validation_failed"},
		{"bad format", http.MethodPost, "/resume/pdf", `{"token":"abc123","format":"gif"}`, http.StatusBadRequest, "validation_failed"},
		{"bad size", http.MethodGet, "/resume/abc123.pdf?size=big", "", http.StatusBadRequest, "validation_failed"},
		{"size range", http.MethodPost, "/resume/pdf", `{"token":"abc123","size":99999}`, http.StatusBadRequest, "validation_failed"},
		{"unknown resume", http.MethodGet, "/resume/missing.pdf", "", http.StatusNotFound, "not_found"},
		{"wrong method", http.MethodPut, "/resume/pdf", "", http.StatusMethodNotAllowed, "method_not_allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, tt.method, tt.path, tt.body, true)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			var resp types.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Success || resp.Code != tt.code {
				t.Fatalf("response = %+v", resp)
			}
		})
	}
}

func TestRunFailureCarriesStage(t *testing.T) {
	h := testServer(t, nil)
	rec := do(h, http.MethodGet, "/resume/missing.pdf", "", true)
	var resp types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Stage != "fetching_metadata" || resp.RunID == "" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestRateLimit(t *testing.T) {
	h := testServer(t, func(c *config.Config) {
		c.RateLimitEvery = time.Hour
		c.RateLimitBurst = 1
	})
	if rec := do(h, http.MethodGet, "/resume/abc123.pdf", "", true); rec.Code != http.StatusOK {
		t.Fatalf("first request = %d", rec.Code)
	}
	rec := do(h, http.MethodGet, "/resume/abc123.pdf", "", true)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("second request = %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{types.RemoteFetch(types.ResourceMetadata, 0, 404, nil), http.StatusNotFound},
		{types.RemoteFetch(types.ResourceImage, 2, 500, nil), http.StatusBadGateway},
		{types.MalformedMetadata(nil), http.StatusBadGateway},
		{types.ImageDecode(1, nil), http.StatusBadGateway},
		{types.Recognition(1, nil), http.StatusInternalServerError},
		{types.Assembly(1, nil), http.StatusInternalServerError},
		{types.Recognition(1, context.DeadlineExceeded), http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		if got, _ := statusFor(tt.err); got != tt.status {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.status)
		}
	}
}

func TestValidateToken(t *testing.T) {
	for _, ok := range []string{"abc123", "A-b_C", strings.Repeat("a", maxTokenLen)} {
		if err := validateToken(ok); err != nil {
			t.Errorf("validateToken(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "a b", "a/b", "ä", strings.Repeat("a", maxTokenLen+1)} {
		if err := validateToken(bad); err == nil {
			t.Errorf("validateToken(%q) accepted", bad)
		}
	}
}
