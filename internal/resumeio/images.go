package resumeio

import (
	"context"
	"image"

	"github.com/toricodesthings/resumeio-pdf/internal/raster"
	"github.com/toricodesthings/resumeio-pdf/internal/types"
)

// Image fetches and decodes one 1-based page.
func (c *Client) Image(ctx context.Context, s Snapshot, page int, opts ImageOptions) (image.Image, error) {
	body, err := c.get(ctx, c.ImageURL(s, page, opts), c.cfg.MaxImageBytes)
	if err != nil {
		return nil, types.RemoteFetch(types.ResourceImage, page, statusOf(err), err)
	}
	img, _, err := raster.Decode(body)
	if err != nil {
		return nil, types.ImageDecode(page, err)
	}
	return img, nil
}
