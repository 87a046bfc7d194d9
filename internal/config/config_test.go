package config

import (
	"image/color"
	"testing"

	"github.com/MeKo-Tech/cocoseg/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.InDelta(t, 0.5, cfg.Render.Alpha, 0)
	assert.Equal(t, "#00FF00", cfg.Render.Color)
	assert.Equal(t, "mask", cfg.Render.Mode)
	assert.Equal(t, DefaultOutputName, cfg.Synthesize.OutputName)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"alpha above one", func(c *Config) { c.Render.Alpha = 1.2 }, "render.alpha"},
		{"negative alpha", func(c *Config) { c.Render.Alpha = -0.01 }, "render.alpha"},
		{"colour", func(c *Config) { c.Render.Color = "chartreuse" }, "render.color"},
		{"mode", func(c *Config) { c.Render.Mode = "outline" }, "render.mode"},
		{"box thickness", func(c *Config) { c.Render.BoxThickness = 0 }, "box thickness"},
		{"batch format", func(c *Config) { c.Batch.Format = "xml" }, "batch format"},
		{"synth workers", func(c *Config) { c.Synthesize.Workers = 0 }, "synthesize workers"},
		{"render workers", func(c *Config) { c.Render.Workers = -1 }, "render workers"},
		{"batch workers", func(c *Config) { c.Batch.Workers = 0 }, "batch workers"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max upload"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_AlphaBoundsInclusive(t *testing.T) {
	for _, a := range []float64{0, 1} {
		cfg := DefaultConfig()
		cfg.Render.Alpha = a
		assert.NoError(t, cfg.Validate())
	}
}

func TestToRenderOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Render.Alpha = 0.25
	cfg.Render.Color = "#FF0000"
	cfg.Render.Mode = "boxes"
	cfg.Render.BoxThickness = 3
	cfg.Render.Workers = 2

	opts, err := cfg.ToRenderOptions()
	require.NoError(t, err)
	assert.Equal(t, render.Options{
		Mode:         render.ModeBoxes,
		Alpha:        0.25,
		Color:        color.NRGBA{R: 255, A: 255},
		BoxThickness: 3,
		Workers:      2,
	}, opts)

	cfg.Render.Color = "nope"
	_, err = cfg.ToRenderOptions()
	require.Error(t, err)

	cfg.Render.Color = "#FF0000"
	cfg.Render.Alpha = 2
	_, err = cfg.ToRenderOptions()
	require.ErrorIs(t, err, render.ErrInvalidAlpha)
}

func TestToSynthOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Synthesize.Workers = 3
	assert.Equal(t, 3, cfg.ToSynthOptions().Workers)
}
