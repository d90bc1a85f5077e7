package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/furon-kuina/semleaf"
	"github.com/furon-kuina/semleaf/domain/search"
	"github.com/furon-kuina/semleaf/infrastructure/provider"
	"github.com/furon-kuina/semleaf/internal/config"
)

var errEmbeddingNotConfigured = errors.New("embedding endpoint not configured: set EMBEDDING_ENDPOINT_API_KEY or OPENAI_API_KEY")

// clientOptions returns the semleaf.Option slice derived from AppConfig.
// When requireEmbedder is false and no API key is configured, the client
// is built with an embedder that refuses every call, which is enough for
// commands that only read.
func clientOptions(cfg config.AppConfig, logger *slog.Logger, requireEmbedder bool) ([]semleaf.Option, error) {
	if isSQLite(cfg.DBURL()) {
		if err := cfg.EnsureDataDir(); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	endpoint := cfg.EmbeddingEndpoint()
	opts := []semleaf.Option{
		semleaf.WithDatabaseURL(cfg.DBURL()),
		semleaf.WithMaxOpenConns(cfg.MaxOpenConns()),
		semleaf.WithSearchLimit(cfg.SearchLimit()),
		semleaf.WithDimension(endpoint.Dimension()),
		semleaf.WithEmbeddingParallelism(endpoint.NumParallelTasks()),
		semleaf.WithLogger(logger),
	}

	switch {
	case endpoint.IsConfigured():
		opts = append(opts, semleaf.WithOpenAIConfig(openAIConfig(cfg)))
	case requireEmbedder:
		return nil, errEmbeddingNotConfigured
	default:
		opts = append(opts, semleaf.WithEmbedder(search.EmbedderFunc(refuseEmbedding)))
	}
	return opts, nil
}

func openAIConfig(cfg config.AppConfig) provider.OpenAIConfig {
	endpoint := cfg.EmbeddingEndpoint()
	return provider.OpenAIConfig{
		APIKey:            endpoint.APIKey(),
		BaseURL:           endpoint.BaseURL(),
		Model:             endpoint.Model(),
		Dimension:         endpoint.Dimension(),
		Timeout:           endpoint.Timeout(),
		MaxRetries:        endpoint.MaxRetries(),
		InitialDelay:      endpoint.InitialDelay(),
		BackoffFactor:     endpoint.BackoffFactor(),
		RequestsPerSecond: endpoint.RequestsPerSecond(),
		CacheDir:          cfg.HTTPCacheDir(),
	}
}

func refuseEmbedding(context.Context, string) ([]float64, error) {
	return nil, fmt.Errorf("%w: %w", search.ErrEmbedding, errEmbeddingNotConfigured)
}

// isSQLite checks if the database URL is for SQLite.
func isSQLite(url string) bool {
	return strings.HasPrefix(url, "sqlite:")
}
