package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/cocoseg/internal/coco"
	"github.com/MeKo-Tech/cocoseg/internal/render"
	"github.com/MeKo-Tech/cocoseg/internal/synth"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxUploadMB bounds request bodies when Config.MaxUploadMB is unset.
const DefaultMaxUploadMB = 50

// Server holds the HTTP server state and dependencies.
type Server struct {
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	render      render.Options
	synth       synth.Options
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// RateLimitConfig configures per-client request limits.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	// Render holds the defaults for /v1/render; requests may override mode,
	// alpha and colour.
	Render     render.Options
	Synthesize synth.Options
	RateLimit  RateLimitConfig
	Logger     *slog.Logger
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type ValidateResponse struct {
	Valid    bool         `json:"valid"`
	Errors   int          `json:"errors"`
	Warnings int          `json:"warnings"`
	Issues   []coco.Issue `json:"issues"`
}

// NewServer creates a new server instance.
func NewServer(config Config) (*Server, error) {
	if _, err := render.ParseMode(string(config.Render.Mode)); err != nil {
		return nil, err
	}
	if err := render.ValidateAlpha(config.Render.Alpha); err != nil {
		return nil, err
	}
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = DefaultMaxUploadMB
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
		render:      config.Render,
		synth:       config.Synthesize,
		logger:      logger,
	}
	if config.RateLimit.Enabled {
		if config.RateLimit.RequestsPerMinute <= 0 && config.RateLimit.RequestsPerHour <= 0 {
			return nil, fmt.Errorf("rate limiting enabled without a limit")
		}
		s.rateLimiter = NewRateLimiter(config.RateLimit.RequestsPerMinute, config.RateLimit.RequestsPerHour)
	}
	return s, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.wrap(s.healthHandler))
	mux.HandleFunc("/v1/synthesize", s.wrap(s.rateLimitMiddleware(s.synthesizeHandler)))
	mux.HandleFunc("/v1/render", s.wrap(s.rateLimitMiddleware(s.renderHandler)))
	mux.HandleFunc("/v1/validate", s.wrap(s.rateLimitMiddleware(s.validateHandler)))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with every route installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func (s *Server) maxUploadBytes() int64 {
	return s.maxUploadMB * 1024 * 1024
}
