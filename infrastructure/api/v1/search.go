package v1

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/furon-kuina/semleaf"
	"github.com/furon-kuina/semleaf/infrastructure/api/middleware"
	"github.com/furon-kuina/semleaf/infrastructure/api/v1/dto"
)

// SearchRouter handles search API endpoints.
type SearchRouter struct {
	client *semleaf.Client
	logger *slog.Logger
}

// NewSearchRouter creates a new SearchRouter.
func NewSearchRouter(client *semleaf.Client) *SearchRouter {
	return &SearchRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for search endpoints.
func (r *SearchRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/semantic", r.Semantic)
	router.Get("/text", r.Text)

	return router
}

// Semantic handles POST /api/search/semantic.
func (r *SearchRouter) Semantic(w http.ResponseWriter, req *http.Request) {
	var body dto.SemanticSearchRequest
	if err := decode(req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	phrases, err := r.client.Search.Semantic(req.Context(), body.Query, body.Limit)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.FromDomainList(phrases))
}

// Text handles GET /api/search/text?q=&limit=.
func (r *SearchRouter) Text(w http.ResponseWriter, req *http.Request) {
	limit, err := limitParam(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	phrases, err := r.client.Search.Text(req.Context(), req.URL.Query().Get("q"), limit)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.FromDomainList(phrases))
}
