// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Separator joins page sections in the output document.
const Separator = "\n\n---\n\n"

var errNoResult = errors.New("no result recorded")

// ConvertPlaceholder is the inline note left in place of a failed page.
func ConvertPlaceholder(page int, err error) string {
	return fmt.Sprintf("\n> [Error processing page %d: %v]\n", page, err)
}

// SolvePlaceholder is the text recorded for a page that could not be solved.
func SolvePlaceholder(page int, err error) string {
	return fmt.Sprintf("Error solving page %d: %v", page, err)
}

// Reassemble joins the page texts in ascending page order. Pages without a
// result get a placeholder; pages whose text is blank are left out.
func Reassemble(results *Results, pages []int) string {
	sections := make([]string, 0, len(pages))
	for _, p := range sortedPages(pages) {
		res, ok := results.Get(p)
		text := res.Text
		if !ok {
			text = ConvertPlaceholder(p, errNoResult)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		sections = append(sections, text)
	}
	return strings.Join(sections, Separator)
}

// AssembleSolutions renders each page as a "## Page N" section in ascending
// page order.
func AssembleSolutions(results *Results, pages []int) string {
	sections := make([]string, 0, len(pages))
	for _, p := range sortedPages(pages) {
		res, ok := results.Get(p)
		text := res.Text
		if !ok {
			text = SolvePlaceholder(p, errNoResult)
		}
		sections = append(sections, fmt.Sprintf("## Page %d\n\n%s", p, text))
	}
	return strings.Join(sections, Separator)
}

func sortedPages(pages []int) []int {
	out := slices.Clone(pages)
	slices.Sort(out)
	return slices.Compact(out)
}
