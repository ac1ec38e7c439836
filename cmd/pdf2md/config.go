// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/pdiddy/pdf2md/internal/secrets"
	"github.com/pdiddy/pdf2md/pkg/types"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("model", types.DefaultModel)
	v.SetDefault("base_url", types.DefaultBaseURL)
	v.SetDefault("call_timeout", types.DefaultCallTimeout)
	v.SetDefault("response_mode", string(types.ResponseStructured))
	v.SetDefault("batch_size", types.DefaultBatchSize)
	v.SetDefault("solve_batch_size", types.DefaultSolveBatchSize)
	v.SetDefault("max_concurrent_calls", types.DefaultMaxConcurrentCalls)
	v.SetDefault("max_attempts", types.DefaultMaxAttempts)
	v.SetDefault("retry_base_delay", types.DefaultRetryBaseDelay)
	v.SetDefault("render.scale", types.DefaultScale)
	v.SetDefault("render.crop_scale", types.DefaultCropScale)
	v.SetDefault("render.max_edge", 0)
	v.SetDefault("render.backend", string(types.RenderLocal))
	v.SetDefault("render.image", types.DefaultRenderImage)
}

// bindLegacyEnv accepts the unprefixed API_KEY, BASE_URL and MODEL_NAME
// variables when the PDF2MD_ ones are unset.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("api_key", "PDF2MD_API_KEY", "API_KEY")
	_ = v.BindEnv("base_url", "PDF2MD_BASE_URL", "BASE_URL")
	_ = v.BindEnv("model", "PDF2MD_MODEL", "MODEL_NAME")
}

// conversionConfig builds the pipeline settings from v.
func conversionConfig(v *viper.Viper) (types.ConversionConfig, error) {
	cfg := types.ConversionConfig{
		AIConfig: types.AIConfig{
			APIKey:       v.GetString("api_key"),
			BaseURL:      v.GetString("base_url"),
			Model:        v.GetString("model"),
			CallTimeout:  v.GetDuration("call_timeout"),
			ResponseMode: types.ResponseMode(v.GetString("response_mode")),
		},
		Render: types.RenderConfig{
			Scale:     v.GetFloat64("render.scale"),
			CropScale: v.GetFloat64("render.crop_scale"),
			MaxEdge:   v.GetInt("render.max_edge"),
			Backend:   types.RenderBackend(v.GetString("render.backend")),
			Image:     v.GetString("render.image"),
			Pdfinfo:   v.GetString("render.pdfinfo"),
			Pdftoppm:  v.GetString("render.pdftoppm"),
		},
		BatchSize:          v.GetInt("batch_size"),
		SolveBatchSize:     v.GetInt("solve_batch_size"),
		MaxConcurrentCalls: v.GetInt("max_concurrent_calls"),
		MaxAttempts:        v.GetInt("max_attempts"),
		RetryBaseDelay:     v.GetDuration("retry_base_delay"),
		Journal:            v.GetString("journal"),
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return types.ConversionConfig{}, err
	}
	return cfg, nil
}

// resolveAPIKey fills in cfg.APIKey from the secrets directory when no
// key was configured. A missing key only warns; the first remote call
// reports the configuration error.
func resolveAPIKey(cfg *types.ConversionConfig, dir string, w io.Writer) error {
	key, src, err := secrets.ResolveAPIKey(cfg.APIKey, dir, logger)
	if err != nil {
		return err
	}
	if key == "" {
		fmt.Fprintln(w, "Warning: no API key configured (set PDF2MD_API_KEY or create .secrets/api-key)")
		logger.Warn("config.missing_api_key")
		return nil
	}
	cfg.APIKey = key
	logger.Debug("config.api_key", "source", src)
	return nil
}

// loadDotEnv copies the variables defined in path into the process
// environment. Variables already set win. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return fmt.Errorf("setting %s: %w", name, err)
		}
	}
	return nil
}

// newLogger builds the process logger.
func newLogger(format, level string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q: want text or json", format)
	}
}
