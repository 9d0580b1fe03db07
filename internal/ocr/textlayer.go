package ocr

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"codeberg.org/go-pdf/fpdf"

	"github.com/toricodesthings/resumeio-pdf/internal/raster"
)

// Word is a recognized word and its box in image pixels (origin top-left).
type Word struct {
	Text string
	Box  image.Rectangle
}

// RenderPage builds a one-page PDF the size of img at dpi, with the image as
// background and words drawn in invisible text over their boxes.
func RenderPage(img image.Image, words []Word, dpi int) (Page, error) {
	if dpi <= 0 {
		dpi = 300
	}
	w, h := raster.PageSize(img, dpi)
	data, err := raster.EncodePNG(img)
	if err != nil {
		return Page{}, err
	}

	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("page", opts, bytes.NewReader(data))
	pdf.ImageOptions("page", 0, 0, w, h, false, opts, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	k := 72 / float64(dpi)

	pdf.SetTextRenderingMode(3)
	texts := make([]string, 0, len(words))
	for _, word := range words {
		txt := strings.TrimSpace(word.Text)
		if txt == "" || word.Box.Empty() {
			continue
		}
		texts = append(texts, txt)
		pdf.SetFontSize(float64(word.Box.Dy()) * k)
		pdf.Text(float64(word.Box.Min.X)*k, float64(word.Box.Max.Y)*k, tr(txt))
	}
	pdf.SetTextRenderingMode(0)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Page{}, fmt.Errorf("render page: %w", err)
	}
	return Page{PDF: buf.Bytes(), Width: w, Height: h, Text: strings.Join(texts, " ")}, nil
}
