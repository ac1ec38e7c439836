// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert drives the page pipeline: it rasterizes each page, sends
// it to the extraction backend in capacity-bounded groups, saves detected
// figures, and reassembles the page results into one Markdown document.
// Page failures become inline placeholders and never stop sibling pages.
package convert

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/pdf2md/internal/extract"
	"github.com/pdiddy/pdf2md/internal/render"
	"github.com/pdiddy/pdf2md/pkg/types"
)

// Document is an opened PDF that workers render pages from.
type Document interface {
	Name() string
	PageCount() int
	RenderPage(ctx context.Context, page int, scale float64) (image.Image, error)
	RenderCrop(ctx context.Context, page int, box types.Box, scale float64) (image.Image, error)
	Close() error
}

// OpenFunc opens the document at path.
type OpenFunc func(ctx context.Context, path string) (Document, error)

// Recorder persists run and page outcomes. Recording failures are logged
// and do not affect the run.
type Recorder interface {
	StartRun(ctx context.Context, run types.Run) error
	RecordPage(ctx context.Context, runID string, res types.PageResult) error
	FinishRun(ctx context.Context, run types.Run) error
}

// Pipeline converts documents page by page.
type Pipeline struct {
	cfg      types.ConversionConfig
	open     OpenFunc
	backend  extract.Backend
	limiter  *Limiter
	logger   *slog.Logger
	out      io.Writer
	recorder Recorder
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOutput sets the writer for human-readable progress lines.
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.out = &syncWriter{w: w} }
}

// WithRecorder records every run and page outcome.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// New creates a pipeline. A nil limiter gets one sized by
// cfg.MaxConcurrentCalls.
func New(cfg types.ConversionConfig, open OpenFunc, backend extract.Backend, limiter *Limiter, logger *slog.Logger, opts ...Option) *Pipeline {
	cfg = cfg.WithDefaults()
	if limiter == nil {
		limiter = NewLimiter(cfg.MaxConcurrentCalls)
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		cfg:     cfg,
		open:    open,
		backend: backend,
		limiter: limiter,
		logger:  logger,
		out:     io.Discard,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DocumentResult is the outcome of one document run.
type DocumentResult struct {
	Run   types.Run
	Pages []types.PageResult
}

// Failed returns the number of pages that ended in a placeholder.
func (r DocumentResult) Failed() int {
	n := 0
	for _, p := range r.Pages {
		if p.Failed() {
			n++
		}
	}
	return n
}

// AssetsDir returns the directory that holds figure crops for output.
func AssetsDir(output string) string { return output + "_assets" }

// TempDir returns the directory that holds per-page Markdown for output.
func TempDir(output string) string { return output + "_temp" }

// ConvertDocument transcribes the PDF at in to Markdown at out. A page of 0
// converts every page; otherwise only that 1-based page. Page failures are
// recorded inline; only configuration and filesystem errors are returned.
func (p *Pipeline) ConvertDocument(ctx context.Context, in, out string, page int) (DocumentResult, error) {
	return p.run(ctx, in, out, page, types.ModeConvert)
}

// SolveDocument writes step-by-step solutions for the problems on each page
// of the PDF at in to out.
func (p *Pipeline) SolveDocument(ctx context.Context, in, out string, page int) (DocumentResult, error) {
	return p.run(ctx, in, out, page, types.ModeSolve)
}

func (p *Pipeline) run(ctx context.Context, in, out string, page int, mode types.RunMode) (DocumentResult, error) {
	if err := p.backend.Ready(); err != nil {
		return DocumentResult{}, err
	}

	fmt.Fprintf(p.out, "Opening %s...\n", in)
	doc, err := p.open(ctx, in)
	if err != nil {
		return DocumentResult{}, fmt.Errorf("opening %s: %w", in, err)
	}
	defer func() {
		if err := doc.Close(); err != nil {
			p.logger.Warn("document.close_error", "doc", doc.Name(), "error", err)
		}
	}()

	pages, err := selectPages(doc.PageCount(), page)
	if err != nil {
		return DocumentResult{}, err
	}

	run := types.Run{
		ID:        uuid.NewString(),
		Document:  doc.Name(),
		Source:    in,
		Output:    out,
		Mode:      mode,
		Model:     p.cfg.Model,
		Pages:     len(pages),
		StartedAt: p.now().UTC(),
	}
	log := p.logger.With("doc", run.Document, "run_id", run.ID, "mode", string(mode))

	d := &docRun{
		p:       p,
		doc:     doc,
		run:     run,
		total:   doc.PageCount(),
		results: NewResults(),
		log:     log,
	}

	batch := p.cfg.BatchSize
	work := d.convertPage
	if mode == types.ModeSolve {
		batch = p.cfg.SolveBatchSize
		work = d.solvePage
	} else {
		d.assetsDir, d.tempDir = AssetsDir(out), TempDir(out)
		d.names = newAssetNames()
		for _, dir := range []string{d.assetsDir, d.tempDir} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return DocumentResult{}, fmt.Errorf("creating %s: %w", dir, err)
			}
		}
	}

	fmt.Fprintf(p.out, "Processing %d page(s) of %s with %s...\n", len(pages), run.Document, p.cfg.Model)
	log.Info("document.start", "pages", len(pages), "batch_size", batch)
	p.record(ctx, log, func(r Recorder) error { return r.StartRun(ctx, run) })

	if err := schedule(ctx, pages, batch, d.guard(work)); err != nil {
		log.Error("document.aborted", "error", err, "completed", d.results.Len())
		return DocumentResult{}, err
	}
	if err := ctx.Err(); err != nil {
		log.Error("document.aborted", "error", err, "completed", d.results.Len())
		return DocumentResult{}, err
	}

	if missing := d.results.Missing(pages); len(missing) > 0 {
		log.Error("document.missing_results", "pages", missing)
	}

	var text string
	if mode == types.ModeSolve {
		text = AssembleSolutions(d.results, pages)
	} else {
		text = Reassemble(d.results, pages)
	}
	if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
		return DocumentResult{}, fmt.Errorf("writing %s: %w", out, err)
	}

	res := DocumentResult{Run: run, Pages: d.results.Sorted()}
	res.Run.Failed = res.Failed()
	res.Run.FinishedAt = p.now().UTC()

	if mode == types.ModeConvert {
		if err := writeManifest(filepath.Join(d.tempDir, manifestFile), res); err != nil {
			log.Warn("document.manifest_error", "error", err)
		}
	}
	p.record(ctx, log, func(r Recorder) error { return r.FinishRun(ctx, res.Run) })

	log.Info("document.done", "failed", res.Run.Failed,
		"elapsed_ms", res.Run.FinishedAt.Sub(run.StartedAt).Milliseconds())
	if mode == types.ModeSolve {
		fmt.Fprintf(p.out, "\nSolutions saved to %s\n", out)
	} else {
		fmt.Fprintf(p.out, "\nSaved to %s\n", out)
	}
	return res, nil
}

// selectPages returns the 1-based pages to process.
func selectPages(count, page int) ([]int, error) {
	if page != 0 {
		if page < 1 || page > count {
			return nil, fmt.Errorf("page %d of %d: %w", page, count, render.ErrPageRange)
		}
		return []int{page}, nil
	}
	pages := make([]int, count)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages, nil
}

func (p *Pipeline) record(ctx context.Context, log *slog.Logger, fn func(Recorder) error) {
	if p.recorder == nil {
		return
	}
	if err := fn(p.recorder); err != nil {
		log.Warn("journal.error", "error", err)
	}
}

// fatal reports whether err must stop the whole run rather than a page.
func fatal(err error) bool {
	return errors.Is(err, extract.ErrNotConfigured)
}

// fatalErr returns the error that stops the run after a page failed with
// err, or nil when only the page fails. A deadline on a single call fails
// the page; only the run's own context ending stops the run.
func fatalErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if fatal(err) {
		return err
	}
	return nil
}

// syncWriter serializes progress lines from concurrent workers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(b)
}
