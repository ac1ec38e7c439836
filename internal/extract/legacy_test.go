// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf2md/pkg/types"
)

func TestParseLegacy(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantMD      string
		wantFigures int
		check       func(t *testing.T, w LegacyWarnings)
	}{
		{
			name:        "both sections",
			raw:         "[MARKDOWN_CONTENT]\n# Title\nBody\n\n[IMAGE_COORDINATES]\n[{\"name\":\"a.png\",\"description\":\"x\",\"box_2d\":[1,2,3,4]}]",
			wantMD:      "# Title\nBody",
			wantFigures: 1,
			check:       func(t *testing.T, w LegacyWarnings) { assert.True(t, w.Empty()) },
		},
		{
			name:        "fenced sections",
			raw:         "[MARKDOWN_CONTENT]\n```markdown\nText\n```\n[IMAGE_COORDINATES]\n```json\n[]\n```",
			wantMD:      "Text",
			wantFigures: 0,
			check:       func(t *testing.T, w LegacyWarnings) { assert.True(t, w.Empty()) },
		},
		{
			name:        "malformed coordinates",
			raw:         "[MARKDOWN_CONTENT]\nText\n[IMAGE_COORDINATES]\n[{\"name\": oops",
			wantMD:      "Text",
			wantFigures: 0,
			check:       func(t *testing.T, w LegacyWarnings) { assert.Error(t, w.FigureError) },
		},
		{
			name:        "no figure section",
			raw:         "[MARKDOWN_CONTENT]\nOnly text",
			wantMD:      "Only text",
			wantFigures: 0,
			check:       func(t *testing.T, w LegacyWarnings) { assert.True(t, w.MissingFigures) },
		},
		{
			name:        "no markdown marker",
			raw:         "Plain text\n[IMAGE_COORDINATES]\n[]",
			wantMD:      "Plain text",
			wantFigures: 0,
			check:       func(t *testing.T, w LegacyWarnings) { assert.True(t, w.MissingMarkdownMarker) },
		},
		{
			name:        "wrapped images object",
			raw:         "[MARKDOWN_CONTENT]\nT\n[IMAGE_COORDINATES]\n{\"images\":[{\"name\":\"b.png\",\"description\":\"\",\"box_2d\":[0,0,10,10]}]}",
			wantMD:      "T",
			wantFigures: 1,
		},
		{
			name:        "bad entry dropped",
			raw:         "[MARKDOWN_CONTENT]\nT\n[IMAGE_COORDINATES]\n[{\"name\":\"ok.png\",\"box_2d\":[0,0,10,10]}, {\"box_2d\":\"wide\"}]",
			wantMD:      "T",
			wantFigures: 1,
			check:       func(t *testing.T, w LegacyWarnings) { assert.Equal(t, 1, w.Dropped) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, warn, err := ParseLegacy(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMD, ext.Markdown)
			assert.Len(t, ext.Figures, tt.wantFigures)
			if tt.check != nil {
				tt.check(t, warn)
			}
		})
	}
}

func TestParseLegacy_Blank(t *testing.T) {
	_, _, err := ParseLegacy("  \n ")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestResponse_StructuredPassthrough(t *testing.T) {
	want := types.Extraction{Markdown: "m", Figures: []types.Figure{{Name: "f.png"}}}
	ext, warn, err := Response{Kind: Structured, Structured: want}.Extraction()
	require.NoError(t, err)
	assert.Equal(t, want, ext)
	assert.True(t, warn.Empty())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrRateLimited, true},
		{fmt.Errorf("wrapped: %w", ErrRateLimited), true},
		{&APIError{Status: 429}, true},
		{&APIError{Status: 400, Code: "RESOURCE_EXHAUSTED"}, true},
		{&APIError{Status: 500, Code: "INTERNAL"}, false},
		{errors.New("429 Too Many Requests"), true},
		{errors.New("RESOURCE_EXHAUSTED: try later"), true},
		{errors.New("Quota exceeded for metric"), true},
		{errors.New("rate limit reached"), true},
		{ErrNotConfigured, false},
		{ErrSchema, false},
		{errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRetryable(tt.err), "%v", tt.err)
	}
}

func TestToProviderSchema(t *testing.T) {
	in := PageSchema()
	in["additionalProperties"] = false
	out := toProviderSchema(in)

	assert.Equal(t, "OBJECT", out["type"])
	assert.NotContains(t, out, "additionalProperties")

	props := out["properties"].(map[string]any)
	assert.Equal(t, "STRING", props["markdown"].(map[string]any)["type"])
	images := props["images"].(map[string]any)
	assert.Equal(t, "ARRAY", images["type"])
	fig := images["items"].(map[string]any)
	box := fig["properties"].(map[string]any)["box_2d"].(map[string]any)
	assert.Equal(t, "NUMBER", box["items"].(map[string]any)["type"])
}

func TestValidateJSONAgainstSchema(t *testing.T) {
	assert.NoError(t, ValidateJSONAgainstSchema(MarkdownSchema(), []byte(`{"markdown":""}`)))
	assert.Error(t, ValidateJSONAgainstSchema(MarkdownSchema(), []byte(`{}`)))
	assert.Error(t, ValidateJSONAgainstSchema(FiguresSchema(), []byte(`{"images":[{"name":"x"}]}`)))
	assert.Error(t, ValidateJSONAgainstSchema(MarkdownSchema(), []byte(`not json`)))
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFence("  {\"a\":1}  "))
	assert.Equal(t, "x", stripFence("```\nx\n```"))
}
