// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/pdiddy/pdf2md/internal/render"
)

// figureName is the name given to a figure the model did not name.
func figureName(page, index int) string {
	return fmt.Sprintf("page_%03d_img_%02d.png", page, index)
}

// assetNames hands out unique figure file names within one document.
type assetNames struct {
	mu    sync.Mutex
	taken map[string]int // name -> page that claimed it
}

func newAssetNames() *assetNames {
	return &assetNames{taken: make(map[string]int)}
}

// resolve returns the file name to save a figure under. Suggested names are
// reduced to a base name with a .png extension. Empty or unusable names, and
// names already claimed, fall back to the synthesized page/index name; if
// that is claimed too, a numeric suffix is added until the name is free.
func (a *assetNames) resolve(page, index int, suggested string) string {
	name := sanitizeName(suggested)
	if name == "" {
		name = figureName(page, index)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.taken[name]; ok {
		name = figureName(page, index)
	}
	base := strings.TrimSuffix(name, ".png")
	for n := 2; ; n++ {
		if _, ok := a.taken[name]; !ok {
			break
		}
		name = fmt.Sprintf("%s_%d.png", base, n)
	}
	a.taken[name] = page
	return name
}

func sanitizeName(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\\", "/"))
	if s == "" {
		return ""
	}
	base := filepath.Base(s)
	if base == "." || base == "/" || base == ".." || strings.HasPrefix(base, ".") {
		return ""
	}
	if ext := filepath.Ext(base); ext != ".png" {
		base = strings.TrimSuffix(base, ext) + ".png"
	}
	if base == ".png" {
		return ""
	}
	return base
}

// relinkFigure points the nth (0-based) Markdown link to the model's
// suggested name at the saved file instead.
func relinkFigure(markdown, assetsName, suggested, saved string, nth int) string {
	if suggested == "" || suggested == saved {
		return markdown
	}
	old := assetsName + "/" + suggested + ")"
	idx := 0
	for i := 0; ; i++ {
		j := strings.Index(markdown[idx:], old)
		if j < 0 {
			return markdown
		}
		idx += j
		if i == nth {
			return markdown[:idx] + assetsName + "/" + saved + ")" + markdown[idx+len(old):]
		}
		idx += len(old)
	}
}

// saveFigure writes img as PNG to path.
func saveFigure(path string, img image.Image) error {
	b, err := render.EncodePNG(img)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, b, 0o644)
}

// MissingAssets returns image destinations in markdown that point into the
// assets directory but name a file not in saved.
func MissingAssets(markdown, assetsName string, saved []string) []string {
	have := make(map[string]bool, len(saved))
	for _, s := range saved {
		have[s] = true
	}

	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var missing []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		img, ok := n.(*ast.Image)
		if !ok {
			return ast.WalkContinue, nil
		}
		dest := strings.TrimPrefix(string(img.Destination), "./")
		name, ok := strings.CutPrefix(dest, assetsName+"/")
		if !ok {
			return ast.WalkContinue, nil
		}
		if !have[name] {
			missing = append(missing, name)
		}
		return ast.WalkContinue, nil
	})
	return missing
}
