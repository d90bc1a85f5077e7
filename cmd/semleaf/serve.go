package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/furon-kuina/semleaf"
	"github.com/furon-kuina/semleaf/infrastructure/api"
	"github.com/furon-kuina/semleaf/internal/config"
	"github.com/furon-kuina/semleaf/internal/log"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  HOST                         Server host to bind to (default: 0.0.0.0)
  PORT                         Server port to listen on (default: 8080)
  DATA_DIR                     Data directory (default: ~/.semleaf)
  DB_URL                       Database URL, sqlite:///path or postgres://...
                               (default: sqlite:///{data_dir}/semleaf.db, falls back to DATABASE_URL)
  DB_MAX_OPEN_CONNS            Connection pool size (default: 5)
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)
  API_KEYS                     Comma-separated keys required to modify phrases
  CORS_ALLOWED_ORIGINS         Comma-separated browser origins
  SEARCH_LIMIT                 Default number of search results (default: 20)
  HTTP_CACHE_DIR               Cache embedding responses on disk

  EMBEDDING_ENDPOINT_*         Embedding service configuration
    BASE_URL                   Base URL (default: https://api.openai.com/v1)
    MODEL                      Model identifier (default: text-embedding-3-large)
    API_KEY                    API key (falls back to OPENAI_API_KEY)
    DIMENSION                  Vector dimension (default: 3072)
    NUM_PARALLEL_TASKS         Concurrent embedding calls per write (default: 1)
    TIMEOUT                    Request timeout in seconds (default: 60)
    MAX_RETRIES                Retries after the first attempt (default: 0)
    INITIAL_DELAY              First retry delay in seconds (default: 2)
    BACKOFF_FACTOR             Retry delay multiplier (default: 2)
    REQUESTS_PER_SECOND        Client-side rate limit, 0 disables (default: 0)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(ctx context.Context, envFile, host string, port int) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	cfg = applyServeOverrides(cfg, host, port)

	slogger := log.Configure(cfg).Slog()

	opts, err := clientOptions(cfg, slogger, true)
	if err != nil {
		return err
	}

	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	slogger.LogAttrs(context.Background(), slog.LevelInfo, "starting semleaf", attrs...)

	client, err := semleaf.New(opts...)
	if err != nil {
		return fmt.Errorf("create semleaf client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close semleaf client", slog.Any("error", err))
		}
	}()

	apiServer := api.NewAPIServer(client, api.Config{
		APIKeys:            cfg.APIKeys(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins(),
		Version:            version,
	})

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.ListenAndServe(cfg.Addr())
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slogger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}

	return cfg.Apply(opts...)
}
