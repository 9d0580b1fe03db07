// Package ocr turns page images into searchable single-page PDFs.
//
// Engines are looked up by name. The tesseract CLI engine is always
// available; others register themselves from their own packages in init.
package ocr

import (
	"context"
	"fmt"
	"image"
	"sort"
	"sync"
	"time"
)

// Page is a recognized page: a one-page PDF carrying the page image and an
// invisible text layer. Width and Height are the PDF media box in points and
// are unrelated to the pixel size of the source image.
type Page struct {
	PDF    []byte
	Width  float64
	Height float64
	Text   string
}

type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image) (Page, error)
}

type Options struct {
	// Path of the tesseract binary; engines that link libtesseract ignore it.
	Path      string
	Languages []string
	// DPI fixes the image resolution and therefore the PDF page size.
	DPI     int
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Path == "" {
		o.Path = "tesseract"
	}
	if len(o.Languages) == 0 {
		o.Languages = []string{"eng"}
	}
	if o.DPI <= 0 {
		o.DPI = 300
	}
	return o
}

type Factory func(Options) (Engine, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

func init() {
	Register("tesseract", func(o Options) (Engine, error) { return NewTesseract(o), nil })
}

// Register makes an engine available under name, replacing any previous one.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = f
}

func New(name string, opts Options) (Engine, error) {
	mu.RLock()
	f, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown OCR engine %q (available: %v)", name, Names())
	}
	return f(opts.withDefaults())
}

func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Check rejects pages an engine produced but that cannot be assembled.
func Check(p Page) error {
	if len(p.PDF) == 0 {
		return fmt.Errorf("engine returned an empty document")
	}
	if !(p.Width > 0) || !(p.Height > 0) {
		return fmt.Errorf("engine returned a page of %vx%v", p.Width, p.Height)
	}
	return nil
}
