// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/pdf2md/internal/extract"
	"github.com/pdiddy/pdf2md/internal/render"
	"github.com/pdiddy/pdf2md/internal/retry"
	"github.com/pdiddy/pdf2md/pkg/types"
)

// docRun is the state shared by the page workers of one document.
type docRun struct {
	p       *Pipeline
	doc     Document
	run     types.Run
	total   int
	results *Results
	log     *slog.Logger

	// Conversion mode only.
	assetsDir string
	tempDir   string
	names     *assetNames
}

// pageWork processes one page and returns its result. A non-nil error is
// fatal for the run: a configuration error or cancellation of the run.
type pageWork func(ctx context.Context, page int) (types.PageResult, error)

// guard stores each worker's result, converts panics into page failures,
// and passes fatal errors up to the scheduler.
func (d *docRun) guard(work pageWork) func(ctx context.Context, page int) error {
	return func(ctx context.Context, page int) (err error) {
		var res types.PageResult
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("page.panic", "page", page, "panic", r)
				res = d.failed(page, 0, fmt.Errorf("internal error: %v", r))
				err = nil
			}
			if res.Page == 0 {
				res.Page = page
			}
			if setErr := d.results.Set(res); setErr != nil {
				d.log.Error("page.result_conflict", "page", page, "error", setErr)
			}
			d.p.record(ctx, d.log, func(r Recorder) error { return r.RecordPage(ctx, d.run.ID, res) })
		}()
		res, err = work(ctx, page)
		return err
	}
}

// failed builds the placeholder result for page.
func (d *docRun) failed(page, attempts int, err error) types.PageResult {
	text := ConvertPlaceholder(page, err)
	if d.run.Mode == types.ModeSolve {
		text = SolvePlaceholder(page, err)
	}
	return types.PageResult{
		Page:     page,
		Status:   types.PageFailed,
		Text:     text,
		Attempts: attempts,
		Error:    err.Error(),
	}
}

// rasterize renders page for upload, downscaled to the configured budget.
func (d *docRun) rasterize(ctx context.Context, page int) ([]byte, error) {
	img, err := d.doc.RenderPage(ctx, page, d.p.cfg.Render.Scale)
	if err != nil {
		return nil, err
	}
	return render.EncodePNG(render.Fit(img, d.p.cfg.Render.MaxEdge))
}

// call runs fn under the global limiter, retrying rate-limited attempts
// with backoff. The limiter slot is held only while fn runs.
func (d *docRun) call(ctx context.Context, page int, fn func(ctx context.Context) error) (int, error) {
	policy := retry.Policy{
		MaxAttempts: d.p.cfg.MaxAttempts,
		BaseDelay:   d.p.cfg.RetryBaseDelay,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			d.log.Warn("page.rate_limited", "page", page, "attempt", attempt,
				"max_attempts", d.p.cfg.MaxAttempts, "delay_ms", delay.Milliseconds(), "error", err)
			fmt.Fprintf(d.p.out, "Rate limited on page %d, retrying in %.2fs... (attempt %d/%d)\n",
				page, delay.Seconds(), attempt, d.p.cfg.MaxAttempts)
		},
	}
	return policy.Do(ctx, func(ctx context.Context) error {
		if err := d.p.limiter.Acquire(ctx); err != nil {
			return err
		}
		defer d.p.limiter.Release()
		return fn(ctx)
	}, extract.IsRetryable)
}

// convertPage runs rasterize, extract, crop figures and persist for one page.
func (d *docRun) convertPage(ctx context.Context, page int) (types.PageResult, error) {
	if err := ctx.Err(); err != nil {
		return d.failed(page, 0, err), err
	}
	start := time.Now()
	log := d.log.With("page", page)
	fmt.Fprintf(d.p.out, "Processing page %d/%d...\n", page, d.total)

	png, err := d.rasterize(ctx, page)
	if err != nil {
		log.Error("page.render_error", "error", err)
		fmt.Fprintf(d.p.out, "Error processing page %d: %v\n", page, err)
		return d.failed(page, 0, err), fatalErr(ctx, err)
	}

	assetsName := filepath.Base(d.assetsDir)
	var ext types.Extraction
	attempts, err := d.call(ctx, page, func(ctx context.Context) error {
		var err error
		ext, err = d.p.backend.ExtractPage(ctx, png, d.doc.Name(), assetsName)
		return err
	})
	if err != nil {
		log.Error("page.extract_error", "attempts", attempts, "error", err)
		fmt.Fprintf(d.p.out, "Error processing page %d: %v\n", page, err)
		return d.failed(page, attempts, err), fatalErr(ctx, err)
	}

	markdown := ext.Markdown
	var saved []string
	seen := make(map[string]int)
	for i, fig := range ext.Figures {
		if !fig.Box.Valid() {
			log.Debug("page.figure_skipped", "index", i+1, "coords", len(fig.Box))
			continue
		}
		name := d.names.resolve(page, i+1, fig.Name)
		nth := seen[fig.Name]
		seen[fig.Name]++
		crop, err := d.doc.RenderCrop(ctx, page, fig.Box, d.p.cfg.Render.CropScale)
		if err != nil {
			log.Warn("page.crop_error", "index", i+1, "name", name, "error", err)
			continue
		}
		path := filepath.Join(d.assetsDir, name)
		if err := saveFigure(path, crop); err != nil {
			log.Warn("page.crop_error", "index", i+1, "name", name, "error", err)
			continue
		}
		markdown = relinkFigure(markdown, assetsName, fig.Name, name, nth)
		saved = append(saved, name)
		log.Debug("page.figure_saved", "path", path)
	}

	for _, name := range MissingAssets(markdown, assetsName, saved) {
		log.Warn("page.dangling_figure_link", "name", name)
	}

	tmp := filepath.Join(d.tempDir, fmt.Sprintf("page_%03d.md", page))
	if err := os.WriteFile(tmp, []byte(markdown), 0o644); err != nil {
		log.Warn("page.temp_write_error", "path", tmp, "error", err)
	}

	log.Info("page.extract.ok", "attempts", attempts, "figures", len(saved),
		"elapsed_ms", time.Since(start).Milliseconds())
	fmt.Fprintf(d.p.out, "Page %d processed.\n", page)
	return types.PageResult{
		Page:     page,
		Status:   types.PageDone,
		Text:     markdown,
		Figures:  saved,
		Attempts: attempts,
	}, nil
}

// solvePage runs rasterize and solve for one page.
func (d *docRun) solvePage(ctx context.Context, page int) (types.PageResult, error) {
	if err := ctx.Err(); err != nil {
		return d.failed(page, 0, err), err
	}
	start := time.Now()
	log := d.log.With("page", page)
	fmt.Fprintf(d.p.out, "Solving page %d/%d...\n", page, d.total)

	png, err := d.rasterize(ctx, page)
	if err != nil {
		log.Error("page.render_error", "error", err)
		fmt.Fprintf(d.p.out, "Error solving page %d: %v\n", page, err)
		return d.failed(page, 0, err), fatalErr(ctx, err)
	}

	var solution string
	attempts, err := d.call(ctx, page, func(ctx context.Context) error {
		var err error
		solution, err = d.p.backend.Solve(ctx, png, page)
		return err
	})
	if err != nil {
		log.Error("page.solve_error", "attempts", attempts, "error", err)
		fmt.Fprintf(d.p.out, "Error solving page %d: %v\n", page, err)
		return d.failed(page, attempts, err), fatalErr(ctx, err)
	}

	log.Info("page.solve.ok", "attempts", attempts, "elapsed_ms", time.Since(start).Milliseconds())
	fmt.Fprintf(d.p.out, "Page %d solved.\n", page)
	return types.PageResult{
		Page:     page,
		Status:   types.PageDone,
		Text:     solution,
		Attempts: attempts,
	}, nil
}
