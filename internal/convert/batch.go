// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BatchResult holds the outcome of a directory run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the number of directory entries considered.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any document failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// ListPDFs returns the names of regular files in dir with a .pdf extension
// (any case), sorted, and the number of other entries skipped.
func ListPDFs(dir string) ([]string, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("reading input directory %s: %w", dir, err)
	}
	var pdfs []string
	skipped := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			skipped++
			continue
		}
		pdfs = append(pdfs, e.Name())
	}
	sort.Strings(pdfs)
	return pdfs, skipped, nil
}

// OutputName maps an input PDF name to its Markdown output name.
func OutputName(pdf string) string {
	return strings.TrimSuffix(pdf, filepath.Ext(pdf)) + ".md"
}

// splitOutputConflicts keeps the first of pdfs for each output name and
// maps every later PDF sharing that output name to the PDF that kept it.
func splitOutputConflicts(pdfs []string) ([]string, map[string]string) {
	owner := make(map[string]string, len(pdfs))
	var keep []string
	conflicts := make(map[string]string)
	for _, name := range pdfs {
		out := OutputName(name)
		if first, ok := owner[out]; ok {
			conflicts[name] = first
			continue
		}
		owner[out] = name
		keep = append(keep, name)
	}
	return keep, conflicts
}

// ConvertDir processes every PDF in inDir concurrently, writing one Markdown
// file per PDF into outDir. One document's failure does not stop the
// others; a configuration error or cancellation is returned after all
// documents finish. A PDF whose output name is already used by an earlier
// PDF (a.pdf and a.PDF) is counted as failed and not converted.
func (p *Pipeline) ConvertDir(ctx context.Context, inDir, outDir string, solve bool, w io.Writer) (BatchResult, error) {
	pdfs, skipped, err := ListPDFs(inDir)
	if err != nil {
		return BatchResult{}, err
	}
	result := BatchResult{Skipped: skipped}
	if len(pdfs) == 0 {
		fmt.Fprintf(w, "No PDF files found in %s\n", inDir)
		return result, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return result, fmt.Errorf("creating output directory: %w", err)
	}

	fmt.Fprintf(w, "Found %d PDF file(s) in %s\n", len(pdfs), inDir)

	pdfs, conflicts := splitOutputConflicts(pdfs)
	for _, name := range slices.Sorted(maps.Keys(conflicts)) {
		p.logger.Error("document.output_conflict", "doc", name, "kept", conflicts[name])
		fmt.Fprintf(w, "failed:  %s (output %s already written for %s)\n", name, OutputName(name), conflicts[name])
		result.Failed++
	}

	var (
		mu      sync.Mutex
		stopErr error
		g       errgroup.Group
	)
	for _, name := range pdfs {
		g.Go(func() error {
			in := filepath.Join(inDir, name)
			out := filepath.Join(outDir, OutputName(name))

			var (
				res DocumentResult
				err error
			)
			if solve {
				res, err = p.SolveDocument(ctx, in, out, 0)
			} else {
				res, err = p.ConvertDocument(ctx, in, out, 0)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Error("document.error", "doc", name, "error", err)
				fmt.Fprintf(w, "failed:  %s (%v)\n", name, err)
				result.Failed++
				if (fatal(err) || ctx.Err() != nil) && stopErr == nil {
					stopErr = err
				}
				return nil
			}
			fmt.Fprintf(w, "converted: %s -> %s (%d pages, %d failed)\n", name, out, len(res.Pages), res.Failed())
			result.Converted++
			return nil
		})
	}
	_ = g.Wait()

	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result, stopErr
}
