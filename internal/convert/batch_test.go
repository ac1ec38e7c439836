// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf2md/internal/extract"
)

func writeInputs(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("%PDF-1.4"), 0o644))
	}
}

// dirPipeline opens a fresh two-page fakeDoc per path; paths whose base
// name is in broken fail to open.
func dirPipeline(be *fakeBackend, broken ...string) *Pipeline {
	open := func(_ context.Context, path string) (Document, error) {
		name := filepath.Base(path)
		for _, b := range broken {
			if b == name {
				return nil, errors.New("not a PDF")
			}
		}
		return &fakeDoc{name: name, pages: 2}, nil
	}
	return New(testConfig(), open, be, nil, quietLogger())
}

func TestListPDFs(t *testing.T) {
	dir := t.TempDir()
	writeInputs(t, dir, "b.pdf", "A.PDF", "notes.txt", "c.Pdf")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755))

	pdfs, skipped, err := ListPDFs(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"A.PDF", "b.pdf", "c.Pdf"}, pdfs)
	assert.Equal(t, 1, skipped)
}

func TestListPDFs_MissingDir(t *testing.T) {
	_, _, err := ListPDFs(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "report.md", OutputName("report.pdf"))
	assert.Equal(t, "REPORT.md", OutputName("REPORT.PDF"))
	assert.Equal(t, "a.b.md", OutputName("a.b.pdf"))
}

func TestConvertDir(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "md")
	writeInputs(t, in, "a.pdf", "B.PDF", "notes.txt")

	var w bytes.Buffer
	res, err := dirPipeline(&fakeBackend{}).ConvertDir(context.Background(), in, out, false, &w)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Converted: 2, Skipped: 1}, res)
	assert.False(t, res.HasFailures())
	assert.Equal(t, 3, res.Total())

	var mds []string
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	for _, e := range entries {
		if !e.IsDir() {
			mds = append(mds, e.Name())
		}
	}
	assert.Equal(t, []string{"B.md", "a.md"}, mds)
	assert.Equal(t, "# Page 1"+Separator+"# Page 2", readFile(t, filepath.Join(out, "a.md")))

	assert.Contains(t, w.String(), "Found 2 PDF file(s)")
	assert.Contains(t, w.String(), "Batch summary: 2 converted, 1 skipped, 0 failed (total: 3)")
}

func TestConvertDir_OneDocumentFails(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeInputs(t, in, "good.pdf", "bad.pdf")

	var w bytes.Buffer
	res, err := dirPipeline(&fakeBackend{}, "bad.pdf").ConvertDir(context.Background(), in, out, false, &w)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Converted)
	assert.Equal(t, 1, res.Failed)
	assert.True(t, res.HasFailures())

	assert.FileExists(t, filepath.Join(out, "good.md"))
	assert.NoFileExists(t, filepath.Join(out, "bad.md"))
	assert.Contains(t, w.String(), "failed:  bad.pdf")
	assert.Contains(t, w.String(), "Batch summary: 1 converted, 0 skipped, 1 failed (total: 2)")
}

func TestConvertDir_Solve(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeInputs(t, in, "hw.pdf")

	res, err := dirPipeline(&fakeBackend{}).ConvertDir(context.Background(), in, out, true, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Converted)

	got := readFile(t, filepath.Join(out, "hw.md"))
	assert.True(t, strings.HasPrefix(got, "## Page 1\n\nsolution 1"))
	assert.NoDirExists(t, AssetsDir(filepath.Join(out, "hw.md")))
}

func TestConvertDir_Empty(t *testing.T) {
	in := t.TempDir()
	writeInputs(t, in, "readme.txt")
	out := filepath.Join(t.TempDir(), "md")

	var w bytes.Buffer
	res, err := dirPipeline(&fakeBackend{}).ConvertDir(context.Background(), in, out, false, &w)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Converted)
	assert.Equal(t, 1, res.Skipped)
	assert.Contains(t, w.String(), "No PDF files found in "+in)
	assert.NoDirExists(t, out)
}

func TestConvertDir_NotConfigured(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeInputs(t, in, "a.pdf", "b.pdf")

	var w bytes.Buffer
	res, err := dirPipeline(&fakeBackend{notReady: true}).ConvertDir(context.Background(), in, out, false, &w)
	require.ErrorIs(t, err, extract.ErrNotConfigured)
	assert.Equal(t, 2, res.Failed)
	assert.Contains(t, w.String(), "Batch summary: 0 converted, 0 skipped, 2 failed (total: 2)")
}

func TestConvertDir_OutputNameConflict(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeInputs(t, in, "a.pdf", "a.PDF", "b.pdf")
	if entries, _ := os.ReadDir(in); len(entries) < 3 {
		t.Skip("filesystem is case-insensitive")
	}

	var w bytes.Buffer
	res, err := dirPipeline(&fakeBackend{}).ConvertDir(context.Background(), in, out, false, &w)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Converted: 2, Failed: 1}, res)

	assert.FileExists(t, filepath.Join(out, "a.md"))
	assert.FileExists(t, filepath.Join(out, "b.md"))
	assert.Contains(t, w.String(), "failed:  a.pdf (output a.md already written for a.PDF)")
	assert.Contains(t, w.String(), "Batch summary: 2 converted, 0 skipped, 1 failed (total: 3)")
}

func TestSplitOutputConflicts(t *testing.T) {
	keep, conflicts := splitOutputConflicts([]string{"A.pdf", "a.PDF", "a.pdf", "x.Pdf", "x.pdf"})
	assert.Equal(t, []string{"A.pdf", "a.PDF", "x.Pdf"}, keep)
	assert.Equal(t, map[string]string{"a.pdf": "a.PDF", "x.pdf": "x.Pdf"}, conflicts)
}

func TestConvertDir_Cancelled(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeInputs(t, in, "a.pdf", "b.pdf")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var w bytes.Buffer
	res, err := dirPipeline(&fakeBackend{}).ConvertDir(ctx, in, out, false, &w)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, res.Failed)
	assert.NoFileExists(t, filepath.Join(out, "a.md"))
	assert.NoFileExists(t, filepath.Join(out, "b.md"))
}
