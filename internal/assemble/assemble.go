// Package assemble merges recognized pages into one PDF and lays clickable
// links over them.
package assemble

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"

	"github.com/toricodesthings/resumeio-pdf/internal/layout"
	"github.com/toricodesthings/resumeio-pdf/internal/ocr"
	"github.com/toricodesthings/resumeio-pdf/internal/pdfinfo"
)

type Options struct {
	Title    string
	Creator  string
	Created  time.Time
	Compress bool
}

// Document accumulates pages in the order they are added. It is not safe for
// concurrent use; a run owns exactly one.
type Document struct {
	pdf   *fpdf.Fpdf
	imp   *gofpdi.Importer
	links []int // per page
	// gofpdi caches parsed sources by the address of the reader, so every
	// source stays reachable until the document is written.
	sources []*io.ReadSeeker
	done    bool
	err     error
}

func New(opts Options) *Document {
	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCompression(opts.Compress)
	if opts.Title != "" {
		pdf.SetTitle(opts.Title, true)
	}
	if opts.Creator != "" {
		pdf.SetCreator(opts.Creator, true)
		pdf.SetProducer(opts.Creator, true)
	}
	if !opts.Created.IsZero() {
		pdf.SetCreationDate(opts.Created)
		pdf.SetModificationDate(opts.Created)
	}
	return &Document{pdf: pdf, imp: gofpdi.NewImporter()}
}

func (d *Document) Pages() int { return len(d.links) }

// AddPage appends the first page of p and places links on it. Link
// rectangles must already be in the page's coordinate space (PDF points,
// origin bottom-left).
func (d *Document) AddPage(p ocr.Page, links []layout.Link) (err error) {
	if d.done {
		return fmt.Errorf("document already serialized")
	}
	if d.err != nil {
		return fmt.Errorf("document unusable after earlier failure: %w", d.err)
	}
	if err := ocr.Check(p); err != nil {
		return err
	}
	for i, l := range links {
		if err := l.Rect.Validate(); err != nil {
			return fmt.Errorf("link %d: %w", i+1, err)
		}
		if err := checkTarget(l.URL); err != nil {
			return fmt.Errorf("link %d: %w", i+1, err)
		}
	}

	// gofpdi panics on documents it cannot parse. Either way a half-added
	// page poisons the document.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("import page: %v", r)
		}
		if err != nil {
			d.err = err
		}
	}()

	d.pdf.AddPageFormat("P", fpdf.SizeType{Wd: p.Width, Ht: p.Height})

	rs := io.ReadSeeker(bytes.NewReader(p.PDF))
	d.sources = append(d.sources, &rs)
	tpl := d.imp.ImportPageFromStream(d.pdf, &rs, 1, "/MediaBox")
	d.imp.UseImportedTemplate(d.pdf, tpl, 0, 0, p.Width, p.Height)

	for _, l := range links {
		r := l.Rect
		// fpdf measures y from the top edge.
		d.pdf.LinkString(r.X, p.Height-(r.Y+r.Height), r.Width, r.Height, l.URL)
	}

	if err := d.pdf.Error(); err != nil {
		return fmt.Errorf("add page: %w", err)
	}
	d.links = append(d.links, len(links))
	return nil
}

// Bytes serializes the document and checks the result page by page. It may
// be called once.
func (d *Document) Bytes() ([]byte, error) {
	if d.done {
		return nil, fmt.Errorf("document already serialized")
	}
	d.done = true
	if d.err != nil {
		return nil, fmt.Errorf("document unusable after earlier failure: %w", d.err)
	}
	if len(d.links) == 0 {
		return nil, fmt.Errorf("document has no pages")
	}

	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	out := buf.Bytes()

	if err := d.verify(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Document) verify(out []byte) error {
	n, err := pdfinfo.PageCount(out)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if n != len(d.links) {
		return fmt.Errorf("verify: document has %d pages, added %d", n, len(d.links))
	}
	placed, err := pdfinfo.Links(out)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	for i, want := range d.links {
		if got := len(placed[i+1]); got != want {
			return fmt.Errorf("verify: page %d has %d links, added %d", i+1, got, want)
		}
	}
	return nil
}

func checkTarget(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid link target %q: %w", raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return fmt.Errorf("link target %q has no host", raw)
		}
	case "mailto":
	default:
		return fmt.Errorf("unsupported link target %q", raw)
	}
	return nil
}
