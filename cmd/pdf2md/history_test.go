// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/pdf2md/pkg/types"
)

func TestPrintRuns(t *testing.T) {
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	runs := []types.Run{
		{
			ID: "a1", Document: "a-very-long-document-name-for-the-table.pdf", Mode: types.ModeConvert,
			Pages: 12, Failed: 1, StartedAt: start, FinishedAt: start.Add(95 * time.Second),
		},
		{ID: "b2", Document: "hw.pdf", Mode: types.ModeSolve, Pages: 3, StartedAt: start},
	}
	var w bytes.Buffer
	printRuns(&w, runs)
	out := w.String()
	assert.Contains(t, out, "a-very-long-document-name-f...")
	assert.Contains(t, out, "1m35s")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "solve")
	assert.Contains(t, out, "2 run(s)")
}

func TestPrintRuns_Empty(t *testing.T) {
	var w bytes.Buffer
	printRuns(&w, nil)
	assert.Equal(t, "No runs recorded.\n", w.String())
}

func TestPrintPages(t *testing.T) {
	var w bytes.Buffer
	printPages(&w, []types.PageResult{
		{Page: 1, Status: types.PageDone, Attempts: 1, Figures: []string{"a.png"}},
		{Page: 2, Status: types.PageFailed, Attempts: 5, Error: "giving up after 5 attempts"},
	})
	assert.Contains(t, w.String(), "giving up after 5 attempts")
	assert.Contains(t, w.String(), "failed")
}
