package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rulesmith/rulesmith/internal/api"
	"github.com/rulesmith/rulesmith/internal/app"
	"github.com/rulesmith/rulesmith/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve [addr]",
	Short: "Start the JSON HTTP API server",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

// serveAddr overrides both the config address and the positional one.
var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "server address (host:port), overrides config")
	rootCmd.AddCommand(serveCmd)
}

// parseRateBurst reads RULESMITH_RATE_BURST from the environment.
// Returns 0 (use default) if unset or invalid.
func parseRateBurst() int {
	v := os.Getenv("RULESMITH_RATE_BURST")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // model-backed generation can run long
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

// runServe initializes and starts the HTTP API server.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = checkRequiredEnv(); err != nil {
		return err
	}

	addr, err := resolveAddr(serveAddr, args, cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting HTTP API server", "version", Version)

	a, err := app.Setup(ctx, cfg, app.Options{Logger: logger, Tracing: true})
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:       logger,
		Chat:         a.Chat,
		Sessions:     a.Sessions,
		Rules:        a.Rules,
		Versions:     a.Versions,
		Persist:      a.Persist,
		Pool:         a.Pool,
		ArtifactsDir: a.ArtifactsDir,
		CORSOrigins:  cfg.CORSOrigins,
		IsDev:        isDev(cfg),
		TrustProxy:   cfg.TrustProxy,
		RateBurst:    parseRateBurst(),
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", addr,
		"api", "/api/v1/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}

// isDev decides whether to relax browser security headers. The file
// backend is the local workstation mode; a postgres deployment counts
// as dev only when it skips TLS to the database.
func isDev(cfg *config.Config) bool {
	if cfg.StorageBackend == config.StoragePostgres {
		return cfg.PostgresSSLMode == "disable"
	}
	return true
}
