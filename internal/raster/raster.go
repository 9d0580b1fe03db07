package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/webp"
)

// Decode decodes a page image. Any registered format is accepted; the name of
// the detected format is returned so callers can notice a mismatch.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", errors.New("empty image payload")
	}
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, name, fmt.Errorf("decoded %s image has no pixels", name)
	}
	return img, name, nil
}

// EncodePNG re-encodes img losslessly for OCR engines.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// PageSize converts the pixel size of img to PDF points at the given DPI.
func PageSize(img image.Image, dpi int) (width, height float64) {
	if dpi <= 0 {
		dpi = 72
	}
	b := img.Bounds()
	d := float64(dpi)
	return float64(b.Dx()) * 72 / d, float64(b.Dy()) * 72 / d
}
