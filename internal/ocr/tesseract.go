package ocr

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/toricodesthings/resumeio-pdf/internal/pdfinfo"
	"github.com/toricodesthings/resumeio-pdf/internal/raster"
)

// Tesseract runs the tesseract binary and asks it for its pdf and txt
// renderers in one pass.
type Tesseract struct {
	opts Options
}

func NewTesseract(opts Options) *Tesseract {
	return &Tesseract{opts: opts.withDefaults()}
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (Page, error) {
	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}

	data, err := raster.EncodePNG(img)
	if err != nil {
		return Page{}, err
	}

	tmpDir, err := os.MkdirTemp("", "resumeocr-*")
	if err != nil {
		return Page{}, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	in := filepath.Join(tmpDir, "page.png")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return Page{}, fmt.Errorf("write image: %w", err)
	}
	base := filepath.Join(tmpDir, "page")

	cmd := exec.CommandContext(ctx, t.opts.Path, t.args(in, base)...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Page{}, fmt.Errorf("tesseract: %w: %s", err, lastLine(stderr.String()))
	}

	pdf, err := os.ReadFile(base + ".pdf")
	if err != nil {
		return Page{}, fmt.Errorf("read tesseract pdf: %w", err)
	}
	txt, err := os.ReadFile(base + ".txt")
	if err != nil {
		return Page{}, fmt.Errorf("read tesseract text: %w", err)
	}

	w, h, err := pdfinfo.PageSize(pdf, 1)
	if err != nil {
		return Page{}, err
	}
	return Page{PDF: pdf, Width: w, Height: h, Text: string(txt)}, nil
}

func (t *Tesseract) args(in, outBase string) []string {
	return []string{
		in, outBase,
		"-l", strings.Join(t.opts.Languages, "+"),
		"--dpi", strconv.Itoa(t.opts.DPI),
		"pdf", "txt",
	}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}
