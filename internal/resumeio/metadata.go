package resumeio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/toricodesthings/resumeio-pdf/internal/layout"
	"github.com/toricodesthings/resumeio-pdf/internal/types"
)

// Wire shapes. Pointers tell a missing field apart from a zero value.
type metadataDoc struct {
	Pages *[]pageDoc `json:"pages"`
}

type pageDoc struct {
	Viewport *struct {
		Width  *float64 `json:"width"`
		Height *float64 `json:"height"`
	} `json:"viewport"`
	Links []linkDoc `json:"links"`
}

type linkDoc struct {
	URL    string   `json:"url"`
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
}

// Metadata fetches the page descriptors of the snapshot, in page order.
func (c *Client) Metadata(ctx context.Context, s Snapshot) ([]layout.Page, error) {
	body, err := c.get(ctx, c.MetadataURL(s), c.cfg.MaxMetadataBytes)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return nil, types.MalformedMetadata(err)
		}
		return nil, types.RemoteFetch(types.ResourceMetadata, 0, statusOf(err), err)
	}
	pages, err := ParseMetadata(body)
	if err != nil {
		return nil, types.MalformedMetadata(err)
	}
	return pages, nil
}

// ParseMetadata decodes a metadata body. At least one page is required and
// every viewport must have a positive size.
func ParseMetadata(body []byte) ([]layout.Page, error) {
	var doc metadataDoc
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if doc.Pages == nil {
		return nil, errors.New("metadata has no pages field")
	}
	if len(*doc.Pages) == 0 {
		return nil, errors.New("metadata lists no pages")
	}

	out := make([]layout.Page, 0, len(*doc.Pages))
	for i, p := range *doc.Pages {
		n := i + 1
		if p.Viewport == nil || p.Viewport.Width == nil || p.Viewport.Height == nil {
			return nil, fmt.Errorf("page %d: viewport missing", n)
		}
		vw, vh := *p.Viewport.Width, *p.Viewport.Height
		if vw <= 0 || vh <= 0 {
			return nil, fmt.Errorf("page %d: invalid viewport %vx%v", n, vw, vh)
		}

		links := make([]layout.Link, 0, len(p.Links))
		for j, l := range p.Links {
			if strings.TrimSpace(l.URL) == "" {
				return nil, fmt.Errorf("page %d link %d: url missing", n, j+1)
			}
			if l.X == nil || l.Y == nil || l.Width == nil || l.Height == nil {
				return nil, fmt.Errorf("page %d link %d: rectangle incomplete", n, j+1)
			}
			links = append(links, layout.Link{
				URL:  l.URL,
				Rect: layout.Rect{X: *l.X, Y: *l.Y, Width: *l.Width, Height: *l.Height},
			})
		}

		out = append(out, layout.Page{
			Viewport: layout.Viewport{Width: vw, Height: vh},
			Links:    links,
		})
	}
	return out, nil
}
