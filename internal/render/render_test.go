// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf2md/internal/container"
	"github.com/pdiddy/pdf2md/pkg/types"
)

const infoOutput = `Title:          Sample
Producer:       test
Pages:          3
Encrypted:      no
Page size:      612 x 792 pts (letter)
Page rot:       0
`

const pageInfoOutput = `Pages:          3
Page    2 size: 595.28 x 841.89 pts (A4)
Page    2 rot:  0
`

const rotatedInfoOutput = `Pages:          3
Page    3 size: 612 x 792 pts (letter)
Page    3 rot:  90
`

// fakeRunner answers pdfinfo with canned output and pdftoppm with a PNG
// sized to the requested crop (or 10x10 for full pages).
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	info  map[string]string // joined args -> stdout
	err   error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	if f.err != nil {
		return nil, []byte("boom"), f.err
	}
	switch name {
	case "pdfinfo":
		return []byte(f.info[strings.Join(args, " ")]), nil, nil
	case "pdftoppm":
		w, h := 10, 10
		for i := 0; i+1 < len(args); i++ {
			switch args[i] {
			case "-W":
				w = atoi(args[i+1])
			case "-H":
				h = atoi(args[i+1])
			}
		}
		return pngBytes(w, h), nil, nil
	}
	return nil, nil, errors.New("unexpected command " + name)
}

func (f *fakeRunner) last() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

func pngBytes(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRasterizer(r Runner) *Rasterizer {
	return newWithRunner(types.RenderConfig{}, r, quietLogger())
}

func openTestDoc(t *testing.T, r *fakeRunner) *Document {
	t.Helper()
	d, err := newTestRasterizer(r).Open(context.Background(), "/data/in/sample.pdf")
	require.NoError(t, err)
	return d
}

func defaultRunner() *fakeRunner {
	return &fakeRunner{info: map[string]string{
		"/data/in/sample.pdf":           infoOutput,
		"-f 2 -l 2 /data/in/sample.pdf": pageInfoOutput,
		"-f 3 -l 3 /data/in/sample.pdf": rotatedInfoOutput,
		"-f 1 -l 1 /data/in/sample.pdf": infoOutput,
	}}
}

func TestOpen(t *testing.T) {
	d := openTestDoc(t, defaultRunner())
	assert.Equal(t, "sample.pdf", d.Name())
	assert.Equal(t, 3, d.PageCount())
}

func TestOpen_NoPages(t *testing.T) {
	r := &fakeRunner{info: map[string]string{"/data/in/sample.pdf": "Title: x\n"}}
	_, err := newTestRasterizer(r).Open(context.Background(), "/data/in/sample.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pages")
}

func TestOpen_ToolFailure(t *testing.T) {
	r := &fakeRunner{err: errors.New("exit status 1")}
	_, err := newTestRasterizer(r).Open(context.Background(), "/data/in/sample.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRenderPage_TranslatesPageNumber(t *testing.T) {
	r := defaultRunner()
	d := openTestDoc(t, r)

	img, err := d.RenderPage(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dx())

	got := strings.Join(r.last(), " ")
	assert.Equal(t, "pdftoppm -f 2 -l 2 -r 144 -png -singlefile /data/in/sample.pdf", got)
}

func TestRenderPage_OutOfRange(t *testing.T) {
	d := openTestDoc(t, defaultRunner())
	for _, p := range []int{0, 4, -1} {
		_, err := d.RenderPage(context.Background(), p, 2)
		assert.ErrorIs(t, err, ErrPageRange, "page %d", p)
	}
}

func TestRenderPage_Closed(t *testing.T) {
	d := openTestDoc(t, defaultRunner())
	require.NoError(t, d.Close())
	_, err := d.RenderPage(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPageSize(t *testing.T) {
	r := defaultRunner()
	d := openTestDoc(t, r)

	w, h, err := d.PageSize(context.Background(), 2)
	require.NoError(t, err)
	assert.InDelta(t, 595.28, w, 0.001)
	assert.InDelta(t, 841.89, h, 0.001)

	// Cached on the second call.
	calls := len(r.calls)
	_, _, err = d.PageSize(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, r.calls, calls)
}

func TestPageSize_Rotated(t *testing.T) {
	d := openTestDoc(t, defaultRunner())
	w, h, err := d.PageSize(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 792.0, w)
	assert.Equal(t, 612.0, h)
}

func TestPageSize_FallsBackToDocumentSize(t *testing.T) {
	d := openTestDoc(t, defaultRunner())
	w, h, err := d.PageSize(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 612.0, w)
	assert.Equal(t, 792.0, h)
}

func TestRenderCrop_ConvertsNormalizedBox(t *testing.T) {
	r := defaultRunner()
	d := openTestDoc(t, r)

	// Letter page (612 x 792 pts), box (ymin=100, xmin=100, ymax=400, xmax=400), 3x.
	img, err := d.RenderCrop(context.Background(), 1, types.Box{100, 100, 400, 400}, 3)
	require.NoError(t, err)

	args := r.last()
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-r 216")
	assert.Contains(t, joined, "-x 183") // 61.2 pts * 3
	assert.Contains(t, joined, "-y 237") // 79.2 pts * 3
	assert.Contains(t, joined, "-W 551") // (244.8 - 61.2) * 3
	assert.Contains(t, joined, "-H 713") // (316.8 - 79.2) * 3
	assert.Equal(t, 551, img.Bounds().Dx())
}

func TestRenderCrop_InvalidBox(t *testing.T) {
	d := openTestDoc(t, defaultRunner())

	_, err := d.RenderCrop(context.Background(), 1, types.Box{1, 2, 3}, 3)
	assert.Error(t, err)

	_, err = d.RenderCrop(context.Background(), 1, types.Box{500, 500, 500, 500}, 3)
	assert.Error(t, err)
}

func TestContainerBackend(t *testing.T) {
	rt := &fakeRuntime{out: map[string]string{
		"pdfinfo /src/sample.pdf": infoOutput,
	}}
	ras, err := NewContainer(types.RenderConfig{Image: "poppler:test"}, rt, quietLogger())
	require.NoError(t, err)

	d, err := ras.Open(context.Background(), "/data/in/sample.pdf")
	require.NoError(t, err)
	assert.Equal(t, 3, d.PageCount())

	require.Len(t, rt.invocations, 1)
	inv := rt.invocations[0]
	assert.Equal(t, "poppler:test", inv.Image)
	assert.Equal(t, []container.Mount{{Source: "/data/in", Target: "/src", ReadOnly: true}}, inv.Mounts)
}

func TestContainerBackend_MissingImage(t *testing.T) {
	rt := &fakeRuntime{missing: true}
	_, err := NewContainer(types.RenderConfig{Image: "poppler:test"}, rt, quietLogger())
	assert.Error(t, err)
}

type fakeRuntime struct {
	out         map[string]string
	missing     bool
	invocations []container.Invocation
}

func (f *fakeRuntime) Name() string    { return "docker" }
func (f *fakeRuntime) Available() bool { return true }

func (f *fakeRuntime) ImageExists(image string) error {
	if f.missing {
		return errors.New("no such image: " + image)
	}
	return nil
}

func (f *fakeRuntime) Run(_ context.Context, inv container.Invocation) error {
	f.invocations = append(f.invocations, inv)
	_, err := io.WriteString(inv.Stdout, f.out[strings.Join(inv.Command, " ")])
	return err
}

func TestFit(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 400, 200))

	same := Fit(img, 0)
	assert.Equal(t, img.Bounds(), same.Bounds())

	same = Fit(img, 500)
	assert.Equal(t, img.Bounds(), same.Bounds())

	small := Fit(img, 100)
	assert.Equal(t, 100, small.Bounds().Dx())
	assert.Equal(t, 50, small.Bounds().Dy())

	tall := Fit(image.NewRGBA(image.Rect(0, 0, 100, 300)), 150)
	assert.Equal(t, 50, tall.Bounds().Dx())
	assert.Equal(t, 150, tall.Bounds().Dy())
}

func TestEncodePNG(t *testing.T) {
	b, err := EncodePNG(image.NewRGBA(image.Rect(0, 0, 3, 2)))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())
}
