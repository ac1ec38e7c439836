// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/pdf2md/pkg/types"
)

// Section markers of the delimited free-text reply.
const (
	MarkerMarkdown = "[MARKDOWN_CONTENT]"
	MarkerFigures  = "[IMAGE_COORDINATES]"
)

// LegacyWarnings records what ParseLegacy had to tolerate. None of these
// fail the page.
type LegacyWarnings struct {
	// MissingMarkdownMarker is set when the reply lacks MarkerMarkdown and
	// the text before MarkerFigures was taken as the transcription.
	MissingMarkdownMarker bool

	// MissingFigures is set when the reply has no MarkerFigures section.
	MissingFigures bool

	// FigureError holds the JSON error when the figure section could not be
	// parsed; the figure list is then empty.
	FigureError error

	// Dropped counts figure entries that were not objects of the expected shape.
	Dropped int
}

// Empty reports whether parsing needed no leniency.
func (w LegacyWarnings) Empty() bool {
	return !w.MissingMarkdownMarker && !w.MissingFigures && w.FigureError == nil && w.Dropped == 0
}

var (
	reMarkdownFence = regexp.MustCompile("(?m)^```markdown\\s*|\\s*```$")
	reJSONFence     = regexp.MustCompile("(?m)^```json\\s*|\\s*```$")
)

// ParseLegacy splits a delimited free-text reply into the transcription and
// its figures. Malformed figure JSON yields an empty figure list and a
// warning. Only a blank reply is an error.
func ParseLegacy(raw string) (types.Extraction, LegacyWarnings, error) {
	var warn LegacyWarnings
	if strings.TrimSpace(raw) == "" {
		return types.Extraction{}, warn, ErrEmptyResponse
	}

	mdPart, figPart, found := strings.Cut(raw, MarkerFigures)
	if !found {
		warn.MissingFigures = true
	}
	if !strings.Contains(mdPart, MarkerMarkdown) {
		warn.MissingMarkdownMarker = true
	}
	mdPart = strings.TrimSpace(strings.ReplaceAll(mdPart, MarkerMarkdown, ""))
	markdown := strings.TrimSpace(reMarkdownFence.ReplaceAllString(mdPart, ""))

	out := types.Extraction{Markdown: markdown}
	figPart = strings.TrimSpace(reJSONFence.ReplaceAllString(strings.TrimSpace(figPart), ""))
	if figPart == "" {
		return out, warn, nil
	}

	figs, dropped, err := parseFigureList(figPart)
	if err != nil {
		warn.FigureError = err
		return out, warn, nil
	}
	warn.Dropped = dropped
	out.Figures = figs
	return out, warn, nil
}

// parseFigureList accepts either a JSON array of figures or an object with
// an "images" array. Entries that do not decode are counted and skipped.
func parseFigureList(s string) ([]types.Figure, int, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		var wrapped struct {
			Images []json.RawMessage `json:"images"`
		}
		if err2 := json.Unmarshal([]byte(s), &wrapped); err2 != nil || wrapped.Images == nil {
			return nil, 0, fmt.Errorf("parsing figure coordinates: %w", err)
		}
		items = wrapped.Images
	}

	figs := make([]types.Figure, 0, len(items))
	dropped := 0
	for _, item := range items {
		var f types.Figure
		if err := json.Unmarshal(item, &f); err != nil {
			dropped++
			continue
		}
		figs = append(figs, f)
	}
	return figs, dropped, nil
}
