package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/cocoseg/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the synthesis and rendering API",
	Long: `Start an HTTP server that exposes mask synthesis, rendering and validation.

The server provides the following endpoints:
  GET  /health        - Health check endpoint
  POST /v1/synthesize - Annotation store in, synthesized store out
  POST /v1/render     - Multipart image + annotations + image_id, PNG out
  POST /v1/validate   - Annotation store in, validation issues out
  GET  /metrics       - Prometheus metrics

Examples:
  cocoseg serve
  cocoseg serve --port 8080
  cocoseg serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "host to bind")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().String("cors-origin", "*", "value of Access-Control-Allow-Origin")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum request body size in MB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "graceful shutdown timeout in seconds")
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable per-client rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "requests per hour per client")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := *GetConfig()
	sc := cfg.Server

	if cmd.Flags().Changed("host") {
		sc.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		sc.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("cors-origin") {
		sc.CORSOrigin, _ = cmd.Flags().GetString("cors-origin")
	}
	if cmd.Flags().Changed("max-upload-size") {
		sc.MaxUploadMB, _ = cmd.Flags().GetInt("max-upload-size")
	}
	if cmd.Flags().Changed("timeout") {
		sc.TimeoutSec, _ = cmd.Flags().GetInt("timeout")
	}
	if cmd.Flags().Changed("shutdown-timeout") {
		sc.ShutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
	}
	if cmd.Flags().Changed("rate-limit-enabled") {
		sc.RateLimitEnabled, _ = cmd.Flags().GetBool("rate-limit-enabled")
	}
	if cmd.Flags().Changed("requests-per-minute") {
		sc.RequestsPerMinute, _ = cmd.Flags().GetInt("requests-per-minute")
	}
	if cmd.Flags().Changed("requests-per-hour") {
		sc.RequestsPerHour, _ = cmd.Flags().GetInt("requests-per-hour")
	}

	if sc.Port < 1 || sc.Port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", sc.Port)
	}

	renderOpts, err := cfg.ToRenderOptions()
	if err != nil {
		return err
	}

	srv, err := server.NewServer(server.Config{
		Host:        sc.Host,
		Port:        sc.Port,
		CORSOrigin:  sc.CORSOrigin,
		MaxUploadMB: int64(sc.MaxUploadMB),
		TimeoutSec:  sc.TimeoutSec,
		Render:      renderOpts,
		Synthesize:  cfg.ToSynthOptions(),
		RateLimit: server.RateLimitConfig{
			Enabled:           sc.RateLimitEnabled,
			RequestsPerMinute: sc.RequestsPerMinute,
			RequestsPerHour:   sc.RequestsPerHour,
		},
		Logger: slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", sc.Host, sc.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(sc.TimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(sc.TimeoutSec) * time.Second,
	}

	ctx := cmd.Context()
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "host", sc.Host, "port", sc.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(sc.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}
