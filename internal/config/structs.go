//nolint:lll
package config

// Config represents the complete configuration for cocoseg.
// It includes settings for all commands (synthesize, render, batch, serve) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Synthesize SynthesizeConfig `mapstructure:"synthesize" yaml:"synthesize" json:"synthesize"`

	// Overlay settings shared by render, batch and the server
	Render RenderConfig `mapstructure:"render" yaml:"render" json:"render"`

	// Batch rendering configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// SynthesizeConfig contains bbox to polygon synthesis settings.
type SynthesizeConfig struct {
	Workers    int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	OutputName string `mapstructure:"output_name" yaml:"output_name" json:"output_name"`
	Indent     bool   `mapstructure:"indent" yaml:"indent" json:"indent"`
}

// RenderConfig contains mask overlay settings.
type RenderConfig struct {
	Alpha        float64 `mapstructure:"alpha" yaml:"alpha" json:"alpha"`
	Color        string  `mapstructure:"color" yaml:"color" json:"color"`
	Mode         string  `mapstructure:"mode" yaml:"mode" json:"mode"`
	BoxThickness int     `mapstructure:"box_thickness" yaml:"box_thickness" json:"box_thickness"`
	Workers      int     `mapstructure:"workers" yaml:"workers" json:"workers"`
}

// BatchConfig contains batch rendering settings.
type BatchConfig struct {
	Workers         int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	OutputDir       string   `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	Recursive       bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	IncludePatterns []string `mapstructure:"include" yaml:"include,omitempty" json:"include"`
	ExcludePatterns []string `mapstructure:"exclude" yaml:"exclude,omitempty" json:"exclude"`
	ContinueOnError bool     `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	Format          string   `mapstructure:"format" yaml:"format" json:"format"`
	ShowProgress    bool     `mapstructure:"progress" yaml:"progress" json:"progress"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	RateLimitEnabled  bool `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int  `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
}
