package semleaf

import (
	"log/slog"

	"github.com/furon-kuina/semleaf/domain/search"
	"github.com/furon-kuina/semleaf/infrastructure/provider"
	"github.com/furon-kuina/semleaf/internal/config"
)

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults from internal/config.
type clientConfig struct {
	dbURL                string
	maxOpenConns         int
	openAI               *provider.OpenAIConfig
	embedder             search.Embedder
	dimension            int
	embeddingParallelism int
	searchLimit          int
	logger               *slog.Logger
}

// newClientConfig creates a clientConfig with defaults from internal/config.
func newClientConfig() *clientConfig {
	return &clientConfig{
		maxOpenConns:         config.DefaultMaxOpenConns,
		embeddingParallelism: config.DefaultEndpointParallelTasks,
		searchLimit:          config.DefaultSearchLimit,
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithSQLite stores phrases in the SQLite file at path.
// Semantic search ranks meanings in process.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.dbURL = "sqlite:///" + path
	}
}

// WithPostgres stores phrases in PostgreSQL. The pgvector extension must be
// available; it is enabled on first start.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.dbURL = dsn
	}
}

// WithDatabaseURL sets the database from a URL such as sqlite:///path or postgres://...
func WithDatabaseURL(url string) Option {
	return func(c *clientConfig) {
		c.dbURL = url
	}
}

// WithOpenAI embeds meanings with the OpenAI embeddings API using the default model.
func WithOpenAI(apiKey string) Option {
	return func(c *clientConfig) {
		c.openAI = &provider.OpenAIConfig{APIKey: apiKey}
		c.embedder = nil
	}
}

// WithOpenAIConfig embeds meanings with an OpenAI-compatible endpoint.
func WithOpenAIConfig(cfg provider.OpenAIConfig) Option {
	return func(c *clientConfig) {
		c.openAI = &cfg
		c.embedder = nil
	}
}

// WithEmbedder sets a custom embedder, replacing any OpenAI configuration.
func WithEmbedder(e search.Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
		c.openAI = nil
	}
}

// WithDimension sets the embedding dimension every vector must have.
func WithDimension(d int) Option {
	return func(c *clientConfig) {
		if d > 0 {
			c.dimension = d
		}
	}
}

// WithMaxOpenConns bounds the database connection pool.
func WithMaxOpenConns(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.maxOpenConns = n
		}
	}
}

// WithEmbeddingParallelism sets how many meanings of one write are embedded concurrently.
func WithEmbeddingParallelism(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.embeddingParallelism = n
		}
	}
}

// WithSearchLimit sets the result count used when a caller asks for none.
func WithSearchLimit(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.searchLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}
