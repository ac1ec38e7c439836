// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render rasterizes PDF pages with the poppler tools. Pages are
// numbered from 1; the adapter translates to the tools' own numbering and
// converts normalized figure boxes to page space before cropping.
package render

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/pdiddy/pdf2md/internal/container"
	"github.com/pdiddy/pdf2md/pkg/types"
)

// pointsPerInch converts a zoom factor to the resolution pdftoppm expects.
const pointsPerInch = 72.0

// ErrPageRange is returned for page numbers outside 1..PageCount.
var ErrPageRange = errors.New("page out of range")

// ErrClosed is returned when rendering from a closed document.
var ErrClosed = errors.New("document closed")

// Rasterizer opens documents and hands out page renders.
type Rasterizer struct {
	cfg    types.RenderConfig
	runner Runner
	rt     container.Runtime
	logger *slog.Logger
}

// New creates a rasterizer that runs pdfinfo and pdftoppm from the host.
func New(cfg types.RenderConfig, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	return newWithRunner(cfg, execRunner{logger: logger}, logger)
}

// NewContainer creates a rasterizer that runs the tools inside cfg.Image
// using the given container runtime.
func NewContainer(cfg types.RenderConfig, rt container.Runtime, logger *slog.Logger) (*Rasterizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Image == "" {
		cfg.Image = types.DefaultRenderImage
	}
	if err := rt.ImageExists(cfg.Image); err != nil {
		return nil, fmt.Errorf("poppler image not available in %s: %w", rt.Name(), err)
	}
	r := newWithRunner(cfg, nil, logger)
	r.rt = rt
	return r, nil
}

func newWithRunner(cfg types.RenderConfig, runner Runner, logger *slog.Logger) *Rasterizer {
	if cfg.Pdfinfo == "" {
		cfg.Pdfinfo = "pdfinfo"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	return &Rasterizer{cfg: cfg, runner: runner, logger: logger}
}

// Document is an opened PDF. It is safe for concurrent use by page workers.
type Document struct {
	name   string
	path   string // path as seen by the runner
	pages  int
	runner Runner
	cfg    types.RenderConfig
	logger *slog.Logger

	mu     sync.Mutex
	sizes  map[int][2]float64
	closed bool
}

// Open inspects the PDF at path and returns a handle for rendering its pages.
func (r *Rasterizer) Open(ctx context.Context, path string) (*Document, error) {
	runner, toolPath := r.runner, path
	if r.rt != nil {
		cr, mapped, err := newContainerRunner(r.rt, r.cfg.Image, path, r.logger)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", path, err)
		}
		runner, toolPath = cr, mapped
	}

	out, errb, err := runner.Run(ctx, r.cfg.Pdfinfo, toolPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w: %s", path, err, strings.TrimSpace(string(errb)))
	}
	info := parseInfo(out)
	if info.pages <= 0 {
		return nil, fmt.Errorf("reading %s: no pages reported", path)
	}

	d := &Document{
		name:   filepath.Base(path),
		path:   toolPath,
		pages:  info.pages,
		runner: runner,
		cfg:    r.cfg,
		logger: r.logger,
		sizes:  make(map[int][2]float64),
	}
	r.logger.Debug("render.open", "doc", d.name, "pages", d.pages)
	return d, nil
}

// Name returns the document's file name.
func (d *Document) Name() string { return d.name }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return d.pages }

// Close releases the document. Later renders fail with ErrClosed.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *Document) check(page int) error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if page < 1 || page > d.pages {
		return fmt.Errorf("page %d of %d: %w", page, d.pages, ErrPageRange)
	}
	return nil
}

// PageSize returns the displayed width and height of page in points,
// accounting for page rotation.
func (d *Document) PageSize(ctx context.Context, page int) (float64, float64, error) {
	if err := d.check(page); err != nil {
		return 0, 0, err
	}
	d.mu.Lock()
	if s, ok := d.sizes[page]; ok {
		d.mu.Unlock()
		return s[0], s[1], nil
	}
	d.mu.Unlock()

	n := strconv.Itoa(page)
	out, errb, err := d.runner.Run(ctx, d.cfg.Pdfinfo, "-f", n, "-l", n, d.path)
	if err != nil {
		return 0, 0, fmt.Errorf("page %d size: %w: %s", page, err, strings.TrimSpace(string(errb)))
	}
	info := parseInfo(out)
	w, h, ok := info.size(page)
	if !ok {
		return 0, 0, fmt.Errorf("page %d size: not reported", page)
	}

	d.mu.Lock()
	d.sizes[page] = [2]float64{w, h}
	d.mu.Unlock()
	return w, h, nil
}

// RenderPage renders the whole page at the given zoom factor.
func (d *Document) RenderPage(ctx context.Context, page int, scale float64) (image.Image, error) {
	if err := d.check(page); err != nil {
		return nil, err
	}
	return d.pdftoppm(ctx, page, scale, nil)
}

// RenderCrop renders the normalized box of page at the given zoom factor.
func (d *Document) RenderCrop(ctx context.Context, page int, box types.Box, scale float64) (image.Image, error) {
	w, h, err := d.PageSize(ctx, page)
	if err != nil {
		return nil, err
	}
	rect, err := box.ToRect(w, h)
	if err != nil {
		return nil, err
	}
	crop := pixelRect(rect, scale)
	return d.pdftoppm(ctx, page, scale, &crop)
}

// pixelRect scales a page-space rectangle to the pixel grid of a render at scale.
func pixelRect(r types.Rect, scale float64) image.Rectangle {
	x0 := int(r.X0 * scale)
	y0 := int(r.Y0 * scale)
	x1 := int(r.X1*scale + 0.5)
	y1 := int(r.Y1*scale + 0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return image.Rect(x0, y0, x1, y1)
}

func (d *Document) pdftoppm(ctx context.Context, page int, scale float64, crop *image.Rectangle) (image.Image, error) {
	if scale <= 0 {
		scale = 1
	}
	n := strconv.Itoa(page)
	dpi := strconv.FormatFloat(scale*pointsPerInch, 'f', -1, 64)
	args := []string{"-f", n, "-l", n, "-r", dpi}
	if crop != nil {
		args = append(args,
			"-x", strconv.Itoa(crop.Min.X),
			"-y", strconv.Itoa(crop.Min.Y),
			"-W", strconv.Itoa(crop.Dx()),
			"-H", strconv.Itoa(crop.Dy()),
		)
	}
	// No output root: pdftoppm writes the single page to stdout.
	args = append(args, "-png", "-singlefile", d.path)

	out, errb, err := d.runner.Run(ctx, d.cfg.Pdftoppm, args...)
	if err != nil {
		return nil, fmt.Errorf("rendering page %d: %w: %s", page, err, strings.TrimSpace(string(errb)))
	}
	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decoding page %d render: %w", page, err)
	}
	return img, nil
}

var (
	rePages    = regexp.MustCompile(`^Pages:\s+(\d+)`)
	rePageSize = regexp.MustCompile(`^Page\s+(\d+)\s+size:\s+([\d.]+)\s+x\s+([\d.]+)`)
	reSize     = regexp.MustCompile(`^Page size:\s+([\d.]+)\s+x\s+([\d.]+)`)
	rePageRot  = regexp.MustCompile(`^Page\s+(\d+)\s+rot:\s+(\d+)`)
)

type pdfInfo struct {
	pages int
	sizes map[int][2]float64
	rot   map[int]int
	first [2]float64
}

func (i pdfInfo) size(page int) (float64, float64, bool) {
	s, ok := i.sizes[page]
	if !ok {
		if i.first[0] == 0 {
			return 0, 0, false
		}
		s = i.first
	}
	if r := i.rot[page]; r == 90 || r == 270 {
		return s[1], s[0], true
	}
	return s[0], s[1], true
}

// parseInfo reads the fields of pdfinfo output the rasterizer needs.
func parseInfo(out []byte) pdfInfo {
	info := pdfInfo{sizes: map[int][2]float64{}, rot: map[int]int{}}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if m := rePages.FindStringSubmatch(line); m != nil {
			info.pages, _ = strconv.Atoi(m[1])
			continue
		}
		if m := rePageSize.FindStringSubmatch(line); m != nil {
			p, _ := strconv.Atoi(m[1])
			w, _ := strconv.ParseFloat(m[2], 64)
			h, _ := strconv.ParseFloat(m[3], 64)
			info.sizes[p] = [2]float64{w, h}
			continue
		}
		if m := reSize.FindStringSubmatch(line); m != nil {
			w, _ := strconv.ParseFloat(m[1], 64)
			h, _ := strconv.ParseFloat(m[2], 64)
			info.first = [2]float64{w, h}
			continue
		}
		if m := rePageRot.FindStringSubmatch(line); m != nil {
			p, _ := strconv.Atoi(m[1])
			r, _ := strconv.Atoi(m[2])
			info.rot[p] = r
		}
	}
	return info
}
