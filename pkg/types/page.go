// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the pdf2md pipeline:
// figures and their bounding boxes, per-page extraction output, page outcomes,
// and the configuration blocks consumed by each stage.
package types

import "fmt"

// NormalizedScale is the fixed coordinate range models use for bounding boxes,
// independent of the page's physical size.
const NormalizedScale = 1000.0

// Box is a bounding box in normalized coordinates, ordered
// (ymin, xmin, ymax, xmax) on a 0-1000 scale.
type Box []float64

// Valid reports whether the box has exactly four coordinates.
func (b Box) Valid() bool {
	return len(b) == 4
}

// Rect is an axis-aligned rectangle in page space (PDF points).
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// Width returns the horizontal extent of r.
func (r Rect) Width() float64 { return r.X1 - r.X0 }

// Height returns the vertical extent of r.
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Empty reports whether r encloses no area.
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// ToRect converts the normalized box to page space for a page of the given
// width and height. Coordinates are clamped to the page. The box must be Valid.
func (b Box) ToRect(width, height float64) (Rect, error) {
	if !b.Valid() {
		return Rect{}, fmt.Errorf("bounding box has %d coordinates, want 4", len(b))
	}
	ymin, xmin, ymax, xmax := clampNorm(b[0]), clampNorm(b[1]), clampNorm(b[2]), clampNorm(b[3])
	r := Rect{
		X0: xmin * width / NormalizedScale,
		Y0: ymin * height / NormalizedScale,
		X1: xmax * width / NormalizedScale,
		Y1: ymax * height / NormalizedScale,
	}
	if r.Empty() {
		return Rect{}, fmt.Errorf("bounding box %v encloses no area", []float64(b))
	}
	return r, nil
}

func clampNorm(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > NormalizedScale:
		return NormalizedScale
	}
	return v
}

// Figure is a sub-image region the model detected on a page.
type Figure struct {
	// Name is the model's suggested asset filename; empty means synthesize one.
	Name string `json:"name" yaml:"name"`

	// Description is a short caption in the document's language.
	Description string `json:"description" yaml:"description"`

	// Box is the normalized bounding box (ymin, xmin, ymax, xmax).
	Box Box `json:"box_2d" yaml:"box_2d"`
}

// Extraction is the model's output for one page in conversion mode.
type Extraction struct {
	Markdown string   `json:"markdown" yaml:"markdown"`
	Figures  []Figure `json:"images" yaml:"images"`
}

// PageStatus is the terminal state of a page worker.
type PageStatus string

const (
	PageDone   PageStatus = "done"
	PageFailed PageStatus = "failed"
)

// PageResult is the outcome of one page worker. Text holds either the
// extracted Markdown (or solution) or the formatted error placeholder.
type PageResult struct {
	Page     int        `json:"page" yaml:"page"`
	Status   PageStatus `json:"status" yaml:"status"`
	Text     string     `json:"-" yaml:"-"`
	Figures  []string   `json:"figures,omitempty" yaml:"figures,omitempty"`
	Attempts int        `json:"attempts" yaml:"attempts"`
	Error    string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether the page ended in an error placeholder.
func (r PageResult) Failed() bool { return r.Status == PageFailed }
