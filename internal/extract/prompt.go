// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"text/template"
)

// pagePromptTmpl asks for the page transcription and its figure boxes in one
// structured reply.
var pagePromptTmpl = template.Must(template.New("page").Parse(`You are a professional document digitizer. Analyze this page from '{{.DocName}}' and produce a high-fidelity Markdown version.

Instructions:
1. Language: write all extracted text and figure descriptions in the same language as the page.
2. Text: reconstruct all text, headings and tables accurately. Use LaTeX for every mathematical formula or expression.
3. Figures: for each diagram, chart or photograph, insert the tag ![DESCRIPTION](./{{.AssetsDir}}/NAME.png) exactly where it sits in the reading flow, and list it under "images" with the same NAME.png as "name", a short "description", and "box_2d" as [ymin, xmin, ymax, xmax] on a 0-1000 scale relative to the page.
4. Do not re-type text that is part of a figure you tagged.
5. Return only the JSON object. No commentary.
`))

// markdownPromptTmpl asks for the transcription only.
var markdownPromptTmpl = template.Must(template.New("markdown").Parse(`You are a professional document digitizer. Transcribe this page from '{{.DocName}}' into Markdown.

Instructions:
1. Write in the same language as the page.
2. Reconstruct all text, headings and tables. Use LaTeX for mathematical formulas.
3. Where a diagram, chart or photograph appears, insert ![DESCRIPTION](./{{.AssetsDir}}/NAME.png) at its position in the reading flow and do not re-type the text inside it.
4. Put the result in the "markdown" field. No commentary.
`))

// figuresPromptTmpl asks for figure boxes only.
var figuresPromptTmpl = template.Must(template.New("figures").Parse(`Locate every diagram, chart or photograph on this page. For each one return an entry in "images" with a file "name" ending in .png, a short "description" in the page's language, and "box_2d" as [ymin, xmin, ymax, xmax] on a 0-1000 scale relative to the page. Return an empty list when the page has no figures.
`))

// legacyPromptTmpl asks for delimited free text split on section markers.
var legacyPromptTmpl = template.Must(template.New("legacy").Parse(`You are a professional document digitizer. Analyze this page from '{{.DocName}}' and produce a high-fidelity Markdown version.

Instructions:
1. Language: use the same language as the page for all text and image descriptions.
2. Text: reconstruct all text, headings and tables. Use LaTeX for all mathematical formulas.
3. Images: for each diagram or image insert ![IMAGE_DESCRIPTION](./{{.AssetsDir}}/IMAGE_NAME) exactly where it appears in the document flow.
4. Do not re-type text that is inside a tagged image.
5. Return only the content below. No commentary.

Output format:
` + MarkerMarkdown + `
(Markdown text)

` + MarkerFigures + `
(A single JSON list of objects: {"name": "IMAGE_NAME", "description": "...", "box_2d": [ymin, xmin, ymax, xmax]})
`))

// solvePromptTmpl asks for worked solutions to the problems on a page.
var solvePromptTmpl = template.Must(template.New("solve").Parse(`You are an expert tutor and problem solver. This image is page {{.Page}} of a document.

Tasks:
1. Identify every problem or question on the page.
2. For each problem give, in order:
   - **Problem Description**: a complete textual rendition of the problem, including any information carried by figures.
   - **Solution Steps**: a clear step-by-step solution.
   - **Final Answer**: the final answer, stated clearly.

Requirements:
- Answer in the same language as the problems on the page.
- Output Markdown. Use LaTeX for mathematical formulas.
- If the page has no problems, say "No problems found on this page." in that language.
`))

type pageVars struct {
	DocName   string
	AssetsDir string
	Page      int
}

func renderPrompt(tmpl *template.Template, v pageVars) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}
