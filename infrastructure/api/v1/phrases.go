// Package v1 provides the HTTP handlers of the phrase API.
package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/furon-kuina/semleaf"
	"github.com/furon-kuina/semleaf/infrastructure/api/middleware"
	"github.com/furon-kuina/semleaf/infrastructure/api/v1/dto"
)

// PhrasesRouter handles phrase API endpoints.
type PhrasesRouter struct {
	client *semleaf.Client
	logger *slog.Logger
}

// NewPhrasesRouter creates a new PhrasesRouter.
func NewPhrasesRouter(client *semleaf.Client) *PhrasesRouter {
	return &PhrasesRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for phrase endpoints.
func (r *PhrasesRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)
	router.Post("/", r.Create)
	router.Get("/{id}", r.Get)
	router.Put("/{id}", r.Update)
	router.Delete("/{id}", r.Delete)

	return router
}

// List handles GET /api/phrases, returning random phrases.
func (r *PhrasesRouter) List(w http.ResponseWriter, req *http.Request) {
	limit, err := limitParam(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	phrases, err := r.client.Phrases.ListRandom(req.Context(), limit)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.FromDomainList(phrases))
}

// Create handles POST /api/phrases.
func (r *PhrasesRouter) Create(w http.ResponseWriter, req *http.Request) {
	var body dto.CreatePhraseRequest
	if err := decode(req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	p, err := r.client.Phrases.Create(req.Context(), body.Params())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.FromDomain(p))
}

// Get handles GET /api/phrases/{id}.
func (r *PhrasesRouter) Get(w http.ResponseWriter, req *http.Request) {
	p, err := r.client.Phrases.Get(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.FromDomain(p))
}

// Update handles PUT /api/phrases/{id}.
func (r *PhrasesRouter) Update(w http.ResponseWriter, req *http.Request) {
	var body dto.UpdatePhraseRequest
	if err := decode(req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	p, err := r.client.Phrases.Update(req.Context(), chi.URLParam(req, "id"), body.Params())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.FromDomain(p))
}

// Delete handles DELETE /api/phrases/{id}.
func (r *PhrasesRouter) Delete(w http.ResponseWriter, req *http.Request) {
	if err := r.client.Phrases.Delete(req.Context(), chi.URLParam(req, "id")); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.OKResponse{OK: true})
}

func decode(req *http.Request, v any) error {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return middleware.BadRequest("Bad request: invalid JSON body", err)
	}
	return nil
}

// limitParam reads ?limit=. Absent means the configured default.
func limitParam(req *http.Request) (int, error) {
	raw := req.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, middleware.BadRequest("Bad request: limit must be an integer", err)
	}
	return n, nil
}
