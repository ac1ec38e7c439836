// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox_ToRect(t *testing.T) {
	r, err := Box{100, 250, 500, 750}.ToRect(612, 792)
	require.NoError(t, err)
	assert.InDelta(t, 153.0, r.X0, 1e-9)
	assert.InDelta(t, 79.2, r.Y0, 1e-9)
	assert.InDelta(t, 459.0, r.X1, 1e-9)
	assert.InDelta(t, 396.0, r.Y1, 1e-9)
}

func TestBox_ToRectClamps(t *testing.T) {
	r, err := Box{-50, -10, 1200, 1000}.ToRect(100, 200)
	require.NoError(t, err)
	assert.Equal(t, Rect{X0: 0, Y0: 0, X1: 100, Y1: 200}, r)
}

func TestBox_ToRectInvalid(t *testing.T) {
	_, err := Box{1, 2, 3}.ToRect(100, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 coordinates")

	_, err = Box{500, 500, 500, 800}.ToRect(100, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no area")
}

func TestWithDefaults(t *testing.T) {
	c := ConversionConfig{BatchSize: 7}.WithDefaults()
	assert.Equal(t, 7, c.BatchSize)
	assert.Equal(t, DefaultSolveBatchSize, c.SolveBatchSize)
	assert.Equal(t, DefaultModel, c.Model)
	assert.Equal(t, ResponseStructured, c.ResponseMode)
	assert.Equal(t, DefaultRetryBaseDelay, c.RetryBaseDelay)
	assert.Equal(t, DefaultScale, c.Render.Scale)
	assert.Equal(t, RenderLocal, c.Render.Backend)
	assert.Zero(t, c.CallTimeout, "zero timeout stays unbounded")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ConversionConfig
		wantErr string
	}{
		{name: "zero value", cfg: ConversionConfig{}},
		{name: "legacy", cfg: ConversionConfig{AIConfig: AIConfig{ResponseMode: ResponseLegacy}}},
		{name: "bad mode", cfg: ConversionConfig{AIConfig: AIConfig{ResponseMode: "xml"}}, wantErr: "response_mode"},
		{name: "bad backend", cfg: ConversionConfig{Render: RenderConfig{Backend: "gpu"}}, wantErr: "render.backend"},
		{name: "negative edge", cfg: ConversionConfig{Render: RenderConfig{MaxEdge: -1}}, wantErr: "max_edge"},
		{name: "negative timeout", cfg: ConversionConfig{AIConfig: AIConfig{CallTimeout: -time.Second}}, wantErr: "call_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunAndPageResult(t *testing.T) {
	assert.False(t, Run{}.Finished())
	assert.True(t, Run{FinishedAt: time.Now()}.Finished())
	assert.True(t, PageResult{Status: PageFailed}.Failed())
	assert.False(t, PageResult{Status: PageDone}.Failed())
}
