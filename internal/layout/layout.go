// Package layout holds the page geometry reported by the rendering service and
// maps it onto recognized pages.
//
// Rectangles follow PDF user space: the origin is the lower-left corner of the
// page and Y is the lower edge of the box.
package layout

import (
	"fmt"
	"math"
)

type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Scale multiplies every component by f.
func (r Rect) Scale(f float64) Rect {
	return Rect{X: r.X * f, Y: r.Y * f, Width: r.Width * f, Height: r.Height * f}
}

// Validate rejects rectangles that cannot be placed on a page.
func (r Rect) Validate() error {
	for _, v := range []float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("rect %+v has a non-finite component", r)
		}
	}
	if r.Width < 0 || r.Height < 0 {
		return fmt.Errorf("rect %+v has a negative size", r)
	}
	return nil
}

type Link struct {
	URL  string
	Rect Rect
}

type Viewport struct {
	Width  float64
	Height float64
}

// Page describes one page as laid out by the rendering service.
type Page struct {
	Viewport Viewport
	Links    []Link
}

// Scale returns the uniform factor mapping viewport units onto a page of
// width x height. The larger axis ratio wins so links never shrink below the
// region they cover.
func Scale(v Viewport, width, height float64) float64 {
	return math.Max(height/v.Height, width/v.Width)
}

// Place rescales the page's links onto a recognized page of width x height.
// The input page is not modified.
func Place(p Page, width, height float64) (float64, []Link) {
	s := Scale(p.Viewport, width, height)
	out := make([]Link, len(p.Links))
	for i, l := range p.Links {
		out[i] = Link{URL: l.URL, Rect: l.Rect.Scale(s)}
	}
	return s, out
}
