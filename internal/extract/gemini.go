// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/pdf2md/pkg/types"
)

// apiVersion is the path segment of the generateContent endpoint.
const apiVersion = "v1beta"

// Gemini calls the Gemini generateContent REST endpoint.
type Gemini struct {
	cfg    types.AIConfig
	client *http.Client
	log    *slog.Logger
}

// NewGemini creates a client. A nil client uses one without a global
// timeout; cfg.CallTimeout bounds each call instead.
func NewGemini(cfg types.AIConfig, client *http.Client, logger *slog.Logger) *Gemini {
	if cfg.Model == "" {
		cfg.Model = types.DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = types.DefaultBaseURL
	}
	if cfg.ResponseMode == "" {
		cfg.ResponseMode = types.ResponseStructured
	}
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{cfg: cfg, client: client, log: logger}
}

// Ready reports whether an API key is configured.
func (g *Gemini) Ready() error {
	if strings.TrimSpace(g.cfg.APIKey) == "" {
		return ErrNotConfigured
	}
	return nil
}

// ExtractMarkdown transcribes a page image into Markdown.
func (g *Gemini) ExtractMarkdown(ctx context.Context, png []byte, docName, assetsDir string) (string, error) {
	prompt, err := renderPrompt(markdownPromptTmpl, pageVars{DocName: docName, AssetsDir: assetsDir})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	schema := MarkdownSchema()
	text, err := g.generate(ctx, "markdown", prompt, png, schema)
	if err != nil {
		return "", err
	}
	var out struct {
		Markdown string `json:"markdown"`
	}
	if err := decodeStructured(text, schema, &out); err != nil {
		return "", err
	}
	return out.Markdown, nil
}

// ExtractFigures locates figures on a page image.
func (g *Gemini) ExtractFigures(ctx context.Context, png []byte) ([]types.Figure, error) {
	prompt, err := renderPrompt(figuresPromptTmpl, pageVars{})
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}
	schema := FiguresSchema()
	text, err := g.generate(ctx, "figures", prompt, png, schema)
	if err != nil {
		return nil, err
	}
	var out struct {
		Images []types.Figure `json:"images"`
	}
	if err := decodeStructured(text, schema, &out); err != nil {
		return nil, err
	}
	return out.Images, nil
}

// Respond issues the combined page request in the configured response mode
// and returns the tagged reply.
func (g *Gemini) Respond(ctx context.Context, png []byte, docName, assetsDir string) (Response, error) {
	vars := pageVars{DocName: docName, AssetsDir: assetsDir}

	if g.cfg.ResponseMode == types.ResponseLegacy {
		prompt, err := renderPrompt(legacyPromptTmpl, vars)
		if err != nil {
			return Response{}, fmt.Errorf("rendering prompt: %w", err)
		}
		text, err := g.generate(ctx, "page.legacy", prompt, png, nil)
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: LegacyText, Raw: text}, nil
	}

	prompt, err := renderPrompt(pagePromptTmpl, vars)
	if err != nil {
		return Response{}, fmt.Errorf("rendering prompt: %w", err)
	}
	schema := PageSchema()
	text, err := g.generate(ctx, "page", prompt, png, schema)
	if err != nil {
		return Response{}, err
	}
	var ext types.Extraction
	if err := decodeStructured(text, schema, &ext); err != nil {
		return Response{}, err
	}
	return Response{Kind: Structured, Structured: ext}, nil
}

// ExtractPage returns the page transcription and figures in one call.
func (g *Gemini) ExtractPage(ctx context.Context, png []byte, docName, assetsDir string) (types.Extraction, error) {
	resp, err := g.Respond(ctx, png, docName, assetsDir)
	if err != nil {
		return types.Extraction{}, err
	}
	ext, warn, err := resp.Extraction()
	if err != nil {
		return types.Extraction{}, err
	}
	if !warn.Empty() {
		g.log.Warn("llm.legacy.lenient_parse",
			"doc", docName,
			"missing_markdown_marker", warn.MissingMarkdownMarker,
			"missing_figures", warn.MissingFigures,
			"figure_error", errString(warn.FigureError),
			"dropped", warn.Dropped,
		)
	}
	return ext, nil
}

// Solve returns free-text Markdown solutions for the problems on a page.
func (g *Gemini) Solve(ctx context.Context, png []byte, page int) (string, error) {
	prompt, err := renderPrompt(solvePromptTmpl, pageVars{Page: page})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return g.generate(ctx, "solve", prompt, png, nil)
}

type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (g *Gemini) endpoint() string {
	return strings.TrimRight(g.cfg.BaseURL, "/") + "/" + apiVersion + "/models/" + g.cfg.Model + ":generateContent"
}

// generate sends one prompt plus image and returns the reply text. A
// non-nil schema requests JSON output constrained to it.
func (g *Gemini) generate(ctx context.Context, op, prompt string, png []byte, schema map[string]any) (string, error) {
	if err := g.Ready(); err != nil {
		return "", err
	}
	if g.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.CallTimeout)
		defer cancel()
	}

	body := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: prompt},
				{InlineData: &inlineData{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(png)}},
			},
		}},
	}
	if schema != nil {
		body.GenerationConfig = &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   toProviderSchema(schema),
		}
	}

	reqID := uuid.New().String()
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), bytes.NewReader(bs))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)

	g.log.Debug("llm.request",
		"req_id", reqID,
		"op", op,
		"model", g.cfg.Model,
		"image_bytes", len(png),
		"content_length", len(bs),
	)

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Error("llm.send_error", "req_id", reqID, "op", op, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("calling model API: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			g.log.Warn("llm.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading model response: %w", err)
	}

	g.log.Debug("llm.response",
		"req_id", reqID,
		"op", op,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return "", parseAPIError(resp.StatusCode, raw)
	}

	var gr geminiResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", fmt.Errorf("decoding model response: %w", err)
	}
	if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", ErrEmptyResponse, gr.PromptFeedback.BlockReason)
	}
	if len(gr.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: finish reason %s", ErrEmptyResponse, gr.Candidates[0].FinishReason)
	}
	return text, nil
}

func parseAPIError(status int, raw []byte) error {
	apiErr := &APIError{Status: status, Message: strings.TrimSpace(string(raw))}
	var body geminiErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		apiErr.Code = body.Error.Status
		apiErr.Message = body.Error.Message
	}
	return apiErr
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
