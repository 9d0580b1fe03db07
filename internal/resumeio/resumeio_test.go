package resumeio

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/toricodesthings/resumeio-pdf/internal/format"
	"github.com/toricodesthings/resumeio-pdf/internal/types"
)

const sampleMetadata = `{"pages":[
 {"viewport":{"width":800,"height":1000},"links":[{"url":"https://x","x":10,"y":20,"width":100,"height":30}]},
 {"viewport":{"width":800,"height":1000},"links":[]}
]}`

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestClient(srv *httptest.Server) *Client {
	return New(Config{
		MetadataBaseURL: srv.URL + "/meta",
		ImageBaseURL:    srv.URL + "/to-image",
	})
}

func TestNewSnapshot(t *testing.T) {
	now := time.Date(2024, 3, 5, 7, 8, 9, 123456789, time.FixedZone("CET", 3600))
	s := NewSnapshot("abc123", now)
	if s.Stamp != "2024-03-05T06:08:09.123Z" {
		t.Fatalf("Stamp = %q", s.Stamp)
	}
	if s.Token != "abc123" {
		t.Fatalf("Token = %q", s.Token)
	}
}

func TestURLs(t *testing.T) {
	c := New(Config{})
	s := Snapshot{Token: "abc123", Stamp: "2024-03-05T06:08:09.123Z"}

	if got, want := c.MetadataURL(s), "https://ssr.resume.tools/meta/abc123?cache=2024-03-05T06%3A08%3A09.123Z"; got != want {
		t.Fatalf("MetadataURL = %q, want %q", got, want)
	}
	got := c.ImageURL(s, 2, ImageOptions{Format: format.JPEG, Size: 3000})
	want := "https://ssr.resume.tools/to-image/abc123-2.jpeg?cache=2024-03-05T06%3A08%3A09.123Z&size=3000"
	if got != want {
		t.Fatalf("ImageURL = %q, want %q", got, want)
	}
}

func TestMetadata(t *testing.T) {
	var stamp string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/meta/abc123" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		stamp = r.URL.Query().Get("cache")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleMetadata))
	}))
	defer srv.Close()

	s := NewSnapshot("abc123", time.Now())
	pages, err := newTestClient(srv).Metadata(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if stamp != s.Stamp {
		t.Fatalf("cache param = %q, want %q", stamp, s.Stamp)
	}
	if len(pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(pages))
	}
	if pages[0].Viewport.Width != 800 || pages[0].Viewport.Height != 1000 {
		t.Fatalf("viewport = %+v", pages[0].Viewport)
	}
	l := pages[0].Links[0]
	if l.URL != "https://x" || l.Rect.X != 10 || l.Rect.Y != 20 || l.Rect.Width != 100 || l.Rect.Height != 30 {
		t.Fatalf("link = %+v", l)
	}
	if len(pages[1].Links) != 0 {
		t.Fatalf("page 2 links = %+v", pages[1].Links)
	}
}

func TestMetadataStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Metadata(context.Background(), NewSnapshot("gone", time.Now()))
	if !errors.Is(err, types.ErrRemoteFetch) {
		t.Fatalf("expected remote fetch error, got %v", err)
	}
	var te *types.Error
	if !errors.As(err, &te) || te.StatusCode != 404 || te.Resource != types.ResourceMetadata {
		t.Fatalf("unexpected detail: %+v", te)
	}
}

func TestParseMetadataMalformed(t *testing.T) {
	bad := map[string]string{
		"not json":         `<html>`,
		"no pages":         `{"data":[]}`,
		"empty pages":      `{"pages":[]}`,
		"no viewport":      `{"pages":[{"links":[]}]}`,
		"zero viewport":    `{"pages":[{"viewport":{"width":0,"height":10}}]}`,
		"missing height":   `{"pages":[{"viewport":{"width":10}}]}`,
		"link without url": `{"pages":[{"viewport":{"width":1,"height":1},"links":[{"x":1,"y":1,"width":1,"height":1}]}]}`,
		"link partial":     `{"pages":[{"viewport":{"width":1,"height":1},"links":[{"url":"https://x","x":1}]}]}`,
		"wrong type":       `{"pages":[{"viewport":{"width":"800","height":1000}}]}`,
	}
	for name, body := range bad {
		if _, err := ParseMetadata([]byte(body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestMetadataMalformedKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pages":"nope"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Metadata(context.Background(), NewSnapshot("t", time.Now()))
	if !errors.Is(err, types.ErrMalformedMetadata) {
		t.Fatalf("expected malformed metadata, got %v", err)
	}
}

func TestImage(t *testing.T) {
	payload := pngBytes(t, 12, 34)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/to-image/tok-1.png":
			if r.URL.Query().Get("size") != "1200" {
				t.Errorf("size = %q", r.URL.Query().Get("size"))
			}
			w.Write(payload)
		case "/to-image/tok-2.png":
			w.Write([]byte("this is not an image"))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv)
	s := NewSnapshot("tok", time.Now())
	opts := ImageOptions{Format: format.PNG, Size: 1200}

	img, err := c.Image(context.Background(), s, 1, opts)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 12 || b.Dy() != 34 {
		t.Fatalf("bounds = %v", b)
	}

	_, err = c.Image(context.Background(), s, 2, opts)
	if !errors.Is(err, types.ErrImageDecode) {
		t.Fatalf("page 2: expected decode error, got %v", err)
	}

	_, err = c.Image(context.Background(), s, 3, opts)
	var te *types.Error
	if !errors.As(err, &te) || te.Kind != types.KindRemoteFetch || te.StatusCode != 502 || te.Page != 3 {
		t.Fatalf("page 3: unexpected error %v", err)
	}
}

func TestImageTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()

	c := New(Config{ImageBaseURL: srv.URL, MaxImageBytes: 1024})
	_, err := c.Image(context.Background(), NewSnapshot("t", time.Now()), 1, ImageOptions{Format: format.JPEG, Size: 10})
	if !errors.Is(err, types.ErrRemoteFetch) {
		t.Fatalf("expected remote fetch error, got %v", err)
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(sampleMetadata))
	}))
	defer srv.Close()

	c := New(Config{MetadataBaseURL: srv.URL, RateEvery: time.Hour, RateBurst: 1})
	s := NewSnapshot("t", time.Now())
	if _, err := c.Metadata(context.Background(), s); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Metadata(ctx, s); !errors.Is(err, types.ErrRemoteFetch) {
		t.Fatalf("expected throttled request to fail, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("server hits = %d, want 1", n)
	}
}
