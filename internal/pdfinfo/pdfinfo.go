// Package pdfinfo inspects PDF documents in memory.
package pdfinfo

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/toricodesthings/resumeio-pdf/internal/layout"
)

func init() {
	// pdfcpu would otherwise create and read a config dir on first use, which
	// is racy when several runs inspect documents at once.
	api.DisableConfigDir()
}

func conf() *model.Configuration { return model.NewDefaultConfiguration() }

func PageCount(pdf []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(pdf), conf())
	if err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	return n, nil
}

// PageSize returns the media box size of a 1-based page, in points.
func PageSize(pdf []byte, page int) (width, height float64, err error) {
	dims, err := api.PageDims(bytes.NewReader(pdf), conf())
	if err != nil {
		return 0, 0, fmt.Errorf("page dims: %w", err)
	}
	if page < 1 || page > len(dims) {
		return 0, 0, fmt.Errorf("page %d out of range (document has %d)", page, len(dims))
	}
	d := dims[page-1]
	return d.Width, d.Height, nil
}

// Links returns the URI link annotations of every page, keyed by 1-based page
// number and ordered bottom-up, then left to right.
func Links(pdf []byte) (map[int][]layout.Link, error) {
	annots, err := api.Annotations(bytes.NewReader(pdf), nil, conf())
	if err != nil {
		return nil, fmt.Errorf("annotations: %w", err)
	}

	out := make(map[int][]layout.Link, len(annots))
	for page, pageAnnots := range annots {
		linkAnnots, ok := pageAnnots[model.AnnLink]
		if !ok {
			continue
		}
		for _, renderer := range linkAnnots.Map {
			link, ok := renderer.(model.LinkAnnotation)
			if !ok || link.URI == "" {
				continue
			}
			out[page] = append(out[page], layout.Link{URL: link.URI, Rect: normalize(
				link.Rect.LL.X, link.Rect.LL.Y, link.Rect.UR.X, link.Rect.UR.Y,
			)})
		}
	}
	for _, links := range out {
		sort.Slice(links, func(i, j int) bool {
			if links[i].Rect.Y != links[j].Rect.Y {
				return links[i].Rect.Y < links[j].Rect.Y
			}
			return links[i].Rect.X < links[j].Rect.X
		})
	}
	return out, nil
}

func normalize(x1, y1, x2, y2 float64) layout.Rect {
	return layout.Rect{
		X:      math.Min(x1, x2),
		Y:      math.Min(y1, y2),
		Width:  math.Abs(x2 - x1),
		Height: math.Abs(y2 - y1),
	}
}
