// Package pipeline runs one resume through fetch, recognition and assembly.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/toricodesthings/resumeio-pdf/internal/assemble"
	"github.com/toricodesthings/resumeio-pdf/internal/format"
	"github.com/toricodesthings/resumeio-pdf/internal/layout"
	"github.com/toricodesthings/resumeio-pdf/internal/ocr"
	"github.com/toricodesthings/resumeio-pdf/internal/quality"
	"github.com/toricodesthings/resumeio-pdf/internal/resumeio"
	"github.com/toricodesthings/resumeio-pdf/internal/types"
)

// Fetcher is satisfied by *resumeio.Client.
type Fetcher interface {
	Metadata(ctx context.Context, s resumeio.Snapshot) ([]layout.Page, error)
	Image(ctx context.Context, s resumeio.Snapshot, page int, opts resumeio.ImageOptions) (image.Image, error)
}

type Options struct {
	Format          format.Format
	Size            int
	MaxImageWorkers int
	MinWords        int
	// RunTimeout bounds a whole run. Zero leaves it to the caller's context.
	RunTimeout time.Duration
	Creator    string
}

func WithDefaults(o Options) Options {
	if !o.Format.Valid() {
		o.Format = format.JPEG
	}
	if o.Size <= 0 {
		o.Size = 3000
	}
	if o.MaxImageWorkers <= 0 {
		o.MaxImageWorkers = 4
	}
	if o.MinWords <= 0 {
		o.MinWords = 10
	}
	if o.Creator == "" {
		o.Creator = "resumeio-pdf"
	}
	return o
}

// Processor holds what runs share: the fetcher, the engine and options.
// It is safe for concurrent use; each Generate call gets its own Run.
type Processor struct {
	fetch  Fetcher
	engine ocr.Engine
	opts   Options
	log    *slog.Logger
	now    func() time.Time
}

func New(fetch Fetcher, engine ocr.Engine, opts Options, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		fetch:  fetch,
		engine: engine,
		opts:   WithDefaults(opts),
		log:    logger,
		now:    time.Now,
	}
}

func (p *Processor) Options() Options { return p.opts }

// Derive returns a processor sharing p's fetcher, engine and logger but
// running with opts.
func (p *Processor) Derive(opts Options) *Processor {
	c := *p
	c.opts = WithDefaults(opts)
	return &c
}

// NewRun takes a fresh snapshot of token. The run has not started yet.
func (p *Processor) NewRun(token string) *Run {
	now := p.now()
	id := uuid.NewString()
	snap := resumeio.NewSnapshot(token, now)
	return &Run{
		p:       p,
		id:      id,
		snap:    snap,
		started: now,
		log:     p.log.With("run_id", id, "token", token),
	}
}

// Generate executes a fresh run of token and returns the finished document.
func (p *Processor) Generate(ctx context.Context, token string) (Result, error) {
	return p.NewRun(token).Execute(ctx)
}

type Result struct {
	RunID string
	Token string
	Stamp string
	PDF   []byte
	Pages []types.PageReport
}

// Run is a single attempt. It is not safe for concurrent use and executes
// at most once; retrying means starting a new run with a new snapshot.
type Run struct {
	p       *Processor
	id      string
	snap    resumeio.Snapshot
	started time.Time
	state   State
	log     *slog.Logger
}

func (r *Run) ID() string                  { return r.id }
func (r *Run) Snapshot() resumeio.Snapshot { return r.snap }
func (r *Run) State() State                { return r.state }

func (r *Run) Execute(ctx context.Context) (Result, error) {
	if r.state != Idle {
		return Result{}, fmt.Errorf("run %s already %s", r.id, r.state)
	}
	if r.p.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.p.opts.RunTimeout)
		defer cancel()
	}

	t0 := time.Now()
	r.log.Info("run started", "stamp", r.snap.Stamp, "engine", r.p.engine.Name())

	res, err := r.execute(ctx)
	if err != nil {
		r.state = Failed
		r.log.Error("run failed", "err", err, "elapsed", time.Since(t0))
		return Result{}, err
	}
	r.state = Done
	r.log.Info("run finished", "pages", len(res.Pages), "bytes", len(res.PDF), "elapsed", time.Since(t0))
	return res, nil
}

func (r *Run) execute(ctx context.Context) (Result, error) {
	// 1) metadata
	r.state = FetchingMetadata
	pages, err := r.p.fetch.Metadata(ctx, r.snap)
	if err != nil {
		return Result{}, r.fail(err, types.KindRemoteFetch, 0)
	}
	r.log.Debug("metadata fetched", "pages", len(pages))

	// 2) images, stored by page index
	r.state = FetchingImages
	images, err := r.fetchImages(ctx, len(pages))
	if err != nil {
		return Result{}, err
	}

	// 3) recognize and assemble strictly in page order
	doc := assemble.New(assemble.Options{
		Title:    "Resume " + r.snap.Token,
		Creator:  r.p.opts.Creator,
		Created:  r.started,
		Compress: true,
	})
	reports := make([]types.PageReport, 0, len(pages))

	for i, desc := range pages {
		n := i + 1
		r.state = Recognizing
		rec, err := r.p.engine.Recognize(ctx, images[i])
		if err == nil {
			err = ocr.Check(rec)
		}
		if err != nil {
			return Result{}, r.fail(err, types.KindRecognition, n)
		}
		images[i] = nil

		scale, links := layout.Place(desc, rec.Width, rec.Height)

		r.state = Assembling
		if err := doc.AddPage(rec, links); err != nil {
			return Result{}, r.fail(err, types.KindAssembly, n)
		}

		d := quality.Score(rec.Text, r.p.opts.MinWords)
		rep := types.PageReport{
			Page:        n,
			Scale:       scale,
			Links:       len(links),
			Width:       rec.Width,
			Height:      rec.Height,
			WordCount:   d.WordCount,
			Quality:     d.Quality,
			WeakText:    d.Weak,
			QualityNote: d.Reasons,
		}
		reports = append(reports, rep)

		l := r.log.With("stage", Assembling.String(), "page", n)
		if d.Weak {
			l.Warn("weak recognized text", "quality", d.Quality, "reasons", d.Reasons)
		}
		l.Debug("page added", "scale", scale, "links", len(links), "words", d.WordCount)
	}

	r.state = Assembling
	out, err := doc.Bytes()
	if err != nil {
		return Result{}, r.fail(err, types.KindAssembly, 0)
	}

	return Result{
		RunID: r.id,
		Token: r.snap.Token,
		Stamp: r.snap.Stamp,
		PDF:   out,
		Pages: reports,
	}, nil
}

func (r *Run) fetchImages(ctx context.Context, n int) ([]image.Image, error) {
	images := make([]image.Image, n)
	opts := resumeio.ImageOptions{Format: r.p.opts.Format, Size: r.p.opts.Size}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.p.opts.MaxImageWorkers)
	for i := range images {
		g.Go(func() error {
			img, err := r.p.fetch.Image(gctx, r.snap, i+1, opts)
			if err != nil {
				return r.fail(err, types.KindRemoteFetch, i+1)
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// fail stamps err with the current stage. Errors that are not already typed
// get kind and page.
func (r *Run) fail(err error, kind types.Kind, page int) error {
	var te *types.Error
	if errors.As(err, &te) {
		c := *te
		c.Stage = r.state.String()
		return &c
	}
	e := &types.Error{Kind: kind, Stage: r.state.String(), Page: page, Err: err}
	if kind == types.KindRemoteFetch {
		e.Resource = types.ResourceImage
		if page == 0 {
			e.Resource = types.ResourceMetadata
		}
	}
	return e
}
