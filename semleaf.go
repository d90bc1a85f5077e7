// Package semleaf stores phrases with their meanings and finds them again by
// meaning or by substring.
//
// Each meaning is embedded when it is written, so a phrase can be found with
// a query that shares none of its words.
//
// Basic usage:
//
//	client, err := semleaf.New(
//	    semleaf.WithSQLite("phrases.db"),
//	    semleaf.WithOpenAI(os.Getenv("OPENAI_API_KEY")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	p, err := client.Phrases.Create(ctx, service.CreateParams{
//	    Phrase:   "serendipity",
//	    Meanings: []string{"finding good things by chance"},
//	})
//
//	found, err := client.Search.Semantic(ctx, "a lucky accident", 5)
package semleaf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/furon-kuina/semleaf/application/service"
	"github.com/furon-kuina/semleaf/domain/search"
	"github.com/furon-kuina/semleaf/infrastructure/persistence"
	"github.com/furon-kuina/semleaf/infrastructure/provider"
	"github.com/furon-kuina/semleaf/internal/config"
	"github.com/furon-kuina/semleaf/internal/database"
)

var (
	// ErrNoDatabase indicates no database option was given.
	ErrNoDatabase = errors.New("semleaf: no database configured")
	// ErrNoEmbedder indicates neither an OpenAI configuration nor a custom embedder was given.
	ErrNoEmbedder = errors.New("semleaf: no embedding provider configured")
	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("semleaf: client is closed")
)

// Client owns the connection pool and the embedding client for the life of
// the process.
//
// Access operations via struct fields:
//
//	client.Phrases.Get(ctx, id)
//	client.Search.Text(ctx, "ice", 10)
type Client struct {
	Phrases *service.Phrase
	Search  *service.Search

	db     database.Database
	store  *persistence.PhraseStore
	logger *slog.Logger
	closed atomic.Bool
	mu     sync.Mutex
}

// New opens the database, applies the schema and wires the services.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.dbURL == "" {
		return nil, ErrNoDatabase
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	embedder, dimension, err := buildEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	db, err := database.NewDatabase(ctx, cfg.dbURL,
		database.WithLogger(logger),
		database.WithMaxOpenConns(cfg.maxOpenConns),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := persistence.AutoMigrate(ctx, db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("auto migrate: %w", err), errClose)
	}

	store := persistence.NewPhraseStore(db, logger)
	serviceOpts := []service.Option{
		service.WithDimension(dimension),
		service.WithParallelism(cfg.embeddingParallelism),
		service.WithLimits(service.NewLimits(cfg.searchLimit, config.DefaultMaxSearchLimit)),
		service.WithLogger(logger),
	}

	client := &Client{
		Phrases: service.NewPhrase(store, embedder, serviceOpts...),
		Search:  service.NewSearch(store, store, embedder, serviceOpts...),
		db:      db,
		store:   store,
		logger:  logger,
	}

	logger.Info("semleaf client ready",
		slog.Bool("postgres", db.IsPostgres()),
		slog.Int("max_open_conns", db.MaxOpenConns()),
		slog.Int("dimension", dimension),
	)
	return client, nil
}

// Close releases the connection pool. A second call returns ErrClientClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	c.logger.Info("semleaf client closed")
	return nil
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// buildEmbedder resolves the configured embedder and the dimension every vector must have.
func buildEmbedder(cfg *clientConfig, logger *slog.Logger) (search.Embedder, int, error) {
	switch {
	case cfg.embedder != nil:
		return cfg.embedder, cfg.dimension, nil
	case cfg.openAI != nil:
		oc := *cfg.openAI
		if oc.Dimension == 0 {
			oc.Dimension = cfg.dimension
		}
		if oc.Dimension == 0 {
			oc.Dimension = config.DefaultEmbeddingDimension
		}
		p, err := provider.NewOpenAIEmbedder(oc, provider.WithLogger(logger))
		if err != nil {
			return nil, 0, fmt.Errorf("embedding provider: %w", err)
		}
		return p, oc.Dimension, nil
	default:
		return nil, 0, ErrNoEmbedder
	}
}
