// Package extract is the remote extraction client: it sends page images to a
// vision model and returns Markdown, figure boxes, or worked solutions.
// Replies are schema-validated by default; a legacy delimited free-text
// mode is kept for older prompts.
package extract

import (
	"context"

	"github.com/pdiddy/pdf2md/pkg/types"
)

// Backend abstracts the vision model so tests can supply a mock.
type Backend interface {
	// Ready returns ErrNotConfigured when no call can succeed.
	Ready() error

	// ExtractPage returns the page transcription and its figures.
	ExtractPage(ctx context.Context, png []byte, docName, assetsDir string) (types.Extraction, error)

	// Solve returns Markdown solutions for the problems on a page.
	Solve(ctx context.Context, png []byte, page int) (string, error)
}

// ResponseKind tags a Response.
type ResponseKind int

const (
	// Structured replies were validated against the page schema.
	Structured ResponseKind = iota

	// LegacyText replies are raw delimited text awaiting ParseLegacy.
	LegacyText
)

func (k ResponseKind) String() string {
	if k == LegacyText {
		return "legacy"
	}
	return "structured"
}

// Response is a page reply in either response mode.
type Response struct {
	Kind       ResponseKind
	Structured types.Extraction // set when Kind == Structured
	Raw        string           // set when Kind == LegacyText
}

// Extraction resolves the reply to a page extraction. Legacy replies are
// routed through ParseLegacy.
func (r Response) Extraction() (types.Extraction, LegacyWarnings, error) {
	if r.Kind == LegacyText {
		return ParseLegacy(r.Raw)
	}
	return r.Structured, LegacyWarnings{}, nil
}
