package types

import (
	"fmt"
	"time"
)

// ResponseMode selects how the model is asked to shape its answer.
type ResponseMode string

const (
	// ResponseStructured declares a JSON schema and validates the reply against it.
	ResponseStructured ResponseMode = "structured"

	// ResponseLegacy asks for delimited free text split on section markers.
	ResponseLegacy ResponseMode = "legacy"
)

// RenderBackend selects where the poppler tools run.
type RenderBackend string

const (
	RenderLocal     RenderBackend = "local"
	RenderContainer RenderBackend = "container"
)

// AIConfig holds settings for the remote vision model.
type AIConfig struct {
	// APIKey authenticates against the model endpoint. An empty key is
	// tolerated at startup; the first remote call fails instead.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint (e.g. a proxy).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Model is the model identifier (e.g. "gemini-3-flash-preview").
	Model string `json:"model" yaml:"model"`

	// CallTimeout bounds a single remote call. Zero disables the bound.
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout"`

	// ResponseMode chooses structured (default) or legacy delimited output.
	ResponseMode ResponseMode `json:"response_mode" yaml:"response_mode"`
}

// RenderConfig holds rasterization settings.
type RenderConfig struct {
	// Scale is the zoom factor for full-page renders sent to the model (default 2).
	Scale float64 `json:"scale" yaml:"scale"`

	// CropScale is the zoom factor for figure crops (default 3).
	CropScale float64 `json:"crop_scale" yaml:"crop_scale"`

	// MaxEdge caps the longest side, in pixels, of images uploaded to the
	// model. Zero uploads renders unchanged.
	MaxEdge int `json:"max_edge" yaml:"max_edge"`

	// Backend selects local poppler binaries or a container image.
	Backend RenderBackend `json:"backend" yaml:"backend"`

	// Image is the container image providing pdfinfo and pdftoppm.
	Image string `json:"image,omitempty" yaml:"image,omitempty"`

	// Pdfinfo and Pdftoppm name the binaries; empty means look them up on PATH.
	Pdfinfo  string `json:"pdfinfo,omitempty" yaml:"pdfinfo,omitempty"`
	Pdftoppm string `json:"pdftoppm,omitempty" yaml:"pdftoppm,omitempty"`
}

// ConversionConfig holds settings for the page pipeline.
type ConversionConfig struct {
	AIConfig `yaml:",inline"`

	Render RenderConfig `json:"render" yaml:"render"`

	// BatchSize is the number of pages converted concurrently per group (default 4).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// SolveBatchSize is the group size in solve mode (default 10).
	SolveBatchSize int `json:"solve_batch_size" yaml:"solve_batch_size"`

	// MaxConcurrentCalls bounds in-flight remote calls across the whole run (default 5).
	MaxConcurrentCalls int `json:"max_concurrent_calls" yaml:"max_concurrent_calls"`

	// MaxAttempts is the number of tries for a rate-limited call (default 5).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// RetryBaseDelay is the first backoff step; it doubles each attempt (default 2s).
	RetryBaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay"`

	// Journal is the path to the SQLite run ledger. Empty disables it.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`
}

const (
	DefaultModel              = "gemini-3-flash-preview"
	DefaultBaseURL            = "https://generativelanguage.googleapis.com"
	DefaultBatchSize          = 4
	DefaultSolveBatchSize     = 10
	DefaultMaxConcurrentCalls = 5
	DefaultMaxAttempts        = 5
	DefaultRetryBaseDelay     = 2 * time.Second
	DefaultCallTimeout        = 5 * time.Minute
	DefaultScale              = 2.0
	DefaultCropScale          = 3.0
	DefaultRenderImage        = "minidocks/poppler:latest"
)

// WithDefaults returns a copy of c with zero values replaced by defaults.
func (c ConversionConfig) WithDefaults() ConversionConfig {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.ResponseMode == "" {
		c.ResponseMode = ResponseStructured
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.SolveBatchSize <= 0 {
		c.SolveBatchSize = DefaultSolveBatchSize
	}
	if c.MaxConcurrentCalls <= 0 {
		c.MaxConcurrentCalls = DefaultMaxConcurrentCalls
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.Render.Scale <= 0 {
		c.Render.Scale = DefaultScale
	}
	if c.Render.CropScale <= 0 {
		c.Render.CropScale = DefaultCropScale
	}
	if c.Render.Backend == "" {
		c.Render.Backend = RenderLocal
	}
	if c.Render.Image == "" {
		c.Render.Image = DefaultRenderImage
	}
	return c
}

// Validate reports settings that WithDefaults cannot repair.
func (c ConversionConfig) Validate() error {
	switch c.ResponseMode {
	case "", ResponseStructured, ResponseLegacy:
	default:
		return fmt.Errorf("response_mode %q: want %q or %q", c.ResponseMode, ResponseStructured, ResponseLegacy)
	}
	switch c.Render.Backend {
	case "", RenderLocal, RenderContainer:
	default:
		return fmt.Errorf("render.backend %q: want %q or %q", c.Render.Backend, RenderLocal, RenderContainer)
	}
	if c.Render.MaxEdge < 0 {
		return fmt.Errorf("render.max_edge must not be negative, got %d", c.Render.MaxEdge)
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("call_timeout must not be negative, got %s", c.CallTimeout)
	}
	return nil
}
