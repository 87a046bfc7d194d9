package config

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/MeKo-Tech/cocoseg/internal/render"
	"github.com/MeKo-Tech/cocoseg/internal/synth"
	"github.com/MeKo-Tech/cocoseg/internal/utils"
)

// DefaultOutputName is the file synthesize writes next to its input when no
// output path is given.
const DefaultOutputName = "new_results.json"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Synthesize: SynthesizeConfig{
			Workers:    runtime.NumCPU(),
			OutputName: DefaultOutputName,
			Indent:     false,
		},
		Render: RenderConfig{
			Alpha:        render.DefaultAlpha,
			Color:        utils.FormatHexColor(render.DefaultColor),
			Mode:         string(render.ModeMask),
			BoxThickness: render.DefaultBoxThickness,
			Workers:      runtime.NumCPU(),
		},
		Batch: BatchConfig{
			Workers:         4,
			OutputDir:       "overlays",
			ContinueOnError: false,
			Format:          "text",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,

			RateLimitEnabled:  false,
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if err := render.ValidateAlpha(c.Render.Alpha); err != nil {
		return fmt.Errorf("invalid render.alpha: %w", err)
	}
	if _, err := utils.ParseHexColor(c.Render.Color); err != nil {
		return fmt.Errorf("invalid render.color: %w", err)
	}
	if _, err := render.ParseMode(c.Render.Mode); err != nil {
		return fmt.Errorf("invalid render.mode: %w", err)
	}
	if c.Render.BoxThickness <= 0 {
		return fmt.Errorf("invalid render box thickness: %d (must be positive)", c.Render.BoxThickness)
	}

	validFormats := []string{"text", "json", "csv"}
	if c.Batch.Format != "" && !slices.Contains(validFormats, c.Batch.Format) {
		return fmt.Errorf("invalid batch format: %s (must be one of: %s)", c.Batch.Format, strings.Join(validFormats, ", "))
	}

	if c.Synthesize.Workers <= 0 {
		return fmt.Errorf("invalid synthesize workers: %d (must be positive)", c.Synthesize.Workers)
	}
	if c.Render.Workers <= 0 {
		return fmt.Errorf("invalid render workers: %d (must be positive)", c.Render.Workers)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RequestsPerMinute < 0 || c.Server.RequestsPerHour < 0 {
		return fmt.Errorf("invalid rate limit: %d/min %d/hour (must not be negative)",
			c.Server.RequestsPerMinute, c.Server.RequestsPerHour)
	}

	return nil
}

// ToSynthOptions converts the config to synthesis options.
func (c *Config) ToSynthOptions() synth.Options {
	return synth.Options{Workers: c.Synthesize.Workers}
}

// ToRenderOptions converts the config to render options.
func (c *Config) ToRenderOptions() (render.Options, error) {
	col, err := utils.ParseHexColor(c.Render.Color)
	if err != nil {
		return render.Options{}, err
	}
	mode, err := render.ParseMode(c.Render.Mode)
	if err != nil {
		return render.Options{}, err
	}
	if err := render.ValidateAlpha(c.Render.Alpha); err != nil {
		return render.Options{}, err
	}
	return render.Options{
		Mode:         mode,
		Alpha:        c.Render.Alpha,
		Color:        col,
		BoxThickness: c.Render.BoxThickness,
		Workers:      c.Render.Workers,
	}, nil
}
