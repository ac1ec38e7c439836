// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RunMode names the pipeline a document went through.
type RunMode string

const (
	ModeConvert RunMode = "convert"
	ModeSolve   RunMode = "solve"
)

// Run describes one pass of the pipeline over a single document.
type Run struct {
	ID         string    `json:"id" yaml:"run_id"`
	Document   string    `json:"document" yaml:"document"`
	Source     string    `json:"source" yaml:"source"`
	Output     string    `json:"output" yaml:"output"`
	Mode       RunMode   `json:"mode" yaml:"mode"`
	Model      string    `json:"model" yaml:"model"`
	Pages      int       `json:"pages" yaml:"pages"`
	Failed     int       `json:"failed" yaml:"failed"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero" yaml:"finished_at,omitempty"`
}

// Finished reports whether the run has completed.
func (r Run) Finished() bool { return !r.FinishedAt.IsZero() }
