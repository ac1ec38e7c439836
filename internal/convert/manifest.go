// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pdf2md/pkg/types"
)

const manifestFile = "manifest.yaml"

// Manifest summarizes a conversion run next to its per-page Markdown. It is
// written for inspection only and never read back.
type Manifest struct {
	types.Run `yaml:",inline"`
	Results   []types.PageResult `yaml:"results"`
}

func writeManifest(path string, res DocumentResult) error {
	data, err := yaml.Marshal(Manifest{Run: res.Run, Results: res.Pages})
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
