package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/server"

	"github.com/furon-kuina/semleaf"
	apimiddleware "github.com/furon-kuina/semleaf/infrastructure/api/middleware"
	v1 "github.com/furon-kuina/semleaf/infrastructure/api/v1"
	mcpinternal "github.com/furon-kuina/semleaf/internal/mcp"
)

// RequestTimeout bounds every /api request. It must outlast a full write
// path, which embeds each meaning before the transaction runs.
const RequestTimeout = 120 * time.Second

// Config configures an APIServer.
type Config struct {
	// APIKeys protects POST, PUT, PATCH and DELETE on phrases and every
	// export request. Empty disables the check.
	APIKeys []string
	// CORSAllowedOrigins lists browser origins allowed to call the API.
	// Empty disables CORS headers.
	CORSAllowedOrigins []string
	// Version is reported by the MCP endpoint.
	Version string
}

// APIServer serves the phrase API and the MCP endpoint for a semleaf Client.
type APIServer struct {
	client *semleaf.Client
	config Config

	mu     sync.Mutex
	server *Server
}

// NewAPIServer creates a new APIServer wired to the given Client.
func NewAPIServer(client *semleaf.Client, config Config) *APIServer {
	if config.Version == "" {
		config.Version = "dev"
	}
	return &APIServer{
		client: client,
		config: config,
	}
}

// mountRoutes wires the API and MCP routes on router.
func (a *APIServer) mountRoutes(router chi.Router) {
	c := a.client

	phrasesRouter := v1.NewPhrasesRouter(c)
	searchRouter := v1.NewSearchRouter(c)
	exportRouter := v1.NewExportRouter(c)

	router.Route("/api", func(r chi.Router) {
		if len(a.config.CORSAllowedOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   a.config.CORSAllowedOrigins,
				AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
				AllowedHeaders:   []string{"Accept", "Content-Type", apimiddleware.APIKeyHeader, apimiddleware.CorrelationIDHeader},
				ExposedHeaders:   []string{"Content-Disposition", apimiddleware.CorrelationIDHeader},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}
		r.Use(chimiddleware.Timeout(RequestTimeout))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte("ok"))
		})

		// Semantic search is a read-only POST.
		r.Mount("/search", searchRouter.Routes())

		auth := apimiddleware.NewAuthConfigWithKeys(a.config.APIKeys)
		r.Group(func(r chi.Router) {
			r.Use(apimiddleware.WriteProtect(auth))
			r.Mount("/phrases", phrasesRouter.Routes())
		})
		// Export dumps the whole store, so reads need a key as well.
		r.Group(func(r chi.Router) {
			r.Use(apimiddleware.RequireAPIKey(auth))
			r.Mount("/export", exportRouter.Routes())
		})
	})

	// MCP streams its responses, so it stays outside the timeout group.
	mcpSrv := mcpinternal.NewServer(c.Search, c.Phrases, a.config.Version, c.Logger())
	router.Mount("/mcp", server.NewStreamableHTTPServer(mcpSrv.MCPServer()))
}

// ListenAndServe starts the HTTP server on addr and blocks until Shutdown.
func (a *APIServer) ListenAndServe(addr string) error {
	s := NewServer(addr, a.client.Logger())
	a.mountRoutes(s.Router())

	a.mu.Lock()
	a.server = s
	a.mu.Unlock()

	return s.Start()
}

// Shutdown gracefully shuts down the server.
func (a *APIServer) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	s := a.server
	a.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Shutdown(ctx)
}

// Handler returns the fully wired routes for use with a custom listener.
func (a *APIServer) Handler() http.Handler {
	s := NewServer("", a.client.Logger())
	a.mountRoutes(s.Router())
	return s.Router()
}
