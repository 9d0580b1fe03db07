// Command resumepdf rebuilds a resume as a searchable PDF with working links.
//
//	resumepdf [-format jpeg] [-size 3000] [-o file] <token>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/toricodesthings/resumeio-pdf/internal/config"
	"github.com/toricodesthings/resumeio-pdf/internal/format"
	"github.com/toricodesthings/resumeio-pdf/internal/ocr"
	"github.com/toricodesthings/resumeio-pdf/internal/pipeline"
	"github.com/toricodesthings/resumeio-pdf/internal/resumeio"
	"github.com/toricodesthings/resumeio-pdf/internal/types"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "resumepdf:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("resumepdf", flag.ContinueOnError)
	formatName := fs.String("format", cfg.ImageFormat, "page image format (jpeg, png, webp)")
	size := fs.Int("size", cfg.ImageSize, "page image size in pixels")
	out := fs.String("o", "", "output file (default <token>_resume.pdf)")
	engineName := fs.String("engine", cfg.OCREngine, "OCR engine")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: resumepdf [flags] <token>\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("exactly one rendering token required")
	}
	token := fs.Arg(0)

	if _, err := format.Parse(*formatName); err != nil {
		return err
	}
	cfg.ImageFormat = *formatName
	cfg.ImageSize = *size
	cfg.OCREngine = *engineName
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cfg.Logger(os.Stderr)
	engine, err := ocr.New(cfg.OCREngine, cfg.OCROptions())
	if err != nil {
		return err
	}
	proc := pipeline.New(resumeio.New(cfg.ClientConfig()), engine, cfg.PipelineOptions(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := proc.Generate(ctx, token)
	if err != nil {
		var te *types.Error
		if errors.As(err, &te) && te.Kind == types.KindRemoteFetch && te.StatusCode == 404 {
			return fmt.Errorf("no resume found for token %q: %w", token, err)
		}
		return err
	}

	path := *out
	if path == "" {
		path = token + "_resume.pdf"
	}
	if err := writeFile(path, res.PDF); err != nil {
		return err
	}

	weak := 0
	for _, p := range res.Pages {
		if p.WeakText {
			weak++
		}
	}
	fmt.Printf("wrote %s (%d pages, run %s)\n", path, len(res.Pages), res.RunID)
	if weak > 0 {
		fmt.Printf("warning: %d page(s) with weak recognized text\n", weak)
	}
	return nil
}

// writeFile replaces path only once the whole document is on disk.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".resumepdf-*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
