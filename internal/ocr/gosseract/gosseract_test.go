//go:build gosseract

package gosseract

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"os/exec"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/toricodesthings/resumeio-pdf/internal/ocr"
)

func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func TestRegistered(t *testing.T) {
	e, err := ocr.New("gosseract", ocr.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if e.Name() != "gosseract" {
		t.Fatalf("Name() = %q", e.Name())
	}
}

func TestRecognize(t *testing.T) {
	ensureTesseractAvailable(t)

	img := image.NewRGBA(image.Rect(0, 0, 400, 100))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{Dst: img, Src: image.Black, Face: basicfont.Face7x13, Dot: fixed.P(10, 50)}
	d.DrawString("Hello Resume")

	page, err := New(ocr.Options{Languages: []string{"eng"}, DPI: 72}).Recognize(context.Background(), img)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if err := ocr.Check(page); err != nil {
		t.Fatal(err)
	}
	if page.Width != 400 || page.Height != 100 {
		t.Fatalf("page size = %vx%v, want 400x100", page.Width, page.Height)
	}
}

func TestRecognizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(ocr.Options{}).Recognize(ctx, image.NewGray(image.Rect(0, 0, 1, 1))); err == nil {
		t.Fatal("expected context error")
	}
}
