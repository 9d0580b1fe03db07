//go:build gosseract

// Package gosseract provides an in-process OCR engine backed by libtesseract.
// Build with -tags gosseract; importing the package registers the engine as
// "gosseract".
package gosseract

import (
	"context"
	"fmt"
	"image"
	"strconv"

	gs "github.com/otiai10/gosseract/v2"

	"github.com/toricodesthings/resumeio-pdf/internal/ocr"
	"github.com/toricodesthings/resumeio-pdf/internal/raster"
)

func init() {
	ocr.Register("gosseract", func(o ocr.Options) (ocr.Engine, error) { return New(o), nil })
}

type Engine struct {
	opts          ocr.Options
	clientFactory func() *gs.Client
}

func New(opts ocr.Options) *Engine {
	if opts.DPI <= 0 {
		opts.DPI = 300
	}
	return &Engine{opts: opts, clientFactory: gs.NewClient}
}

func (e *Engine) Name() string { return "gosseract" }

// Recognize collects word boxes from libtesseract and renders the text layer
// itself. A fresh client per page keeps concurrent runs independent.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (ocr.Page, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Page{}, err
	}
	data, err := raster.EncodePNG(img)
	if err != nil {
		return ocr.Page{}, err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(data); err != nil {
		return ocr.Page{}, fmt.Errorf("set image: %w", err)
	}
	if len(e.opts.Languages) > 0 {
		if err := c.SetLanguage(e.opts.Languages...); err != nil {
			return ocr.Page{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetVariable(gs.SettableVariable("user_defined_dpi"), strconv.Itoa(e.opts.DPI)); err != nil {
		return ocr.Page{}, fmt.Errorf("set dpi: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gs.RIL_WORD)
	if err != nil {
		return ocr.Page{}, fmt.Errorf("recognize words: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return ocr.Page{}, err
	}

	words := make([]ocr.Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, ocr.Word{Text: b.Word, Box: b.Box})
	}
	return ocr.RenderPage(img, words, e.opts.DPI)
}
