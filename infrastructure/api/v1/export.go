package v1

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/furon-kuina/semleaf"
	"github.com/furon-kuina/semleaf/infrastructure/api/middleware"
	"github.com/furon-kuina/semleaf/infrastructure/export"
)

// ExportRouter serves the full collection as a file download.
type ExportRouter struct {
	client *semleaf.Client
	logger *slog.Logger
}

// NewExportRouter creates a new ExportRouter.
func NewExportRouter(client *semleaf.Client) *ExportRouter {
	return &ExportRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for the export endpoint.
func (r *ExportRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", r.Export)
	return router
}

// Export handles GET /api/export?format=json|csv.
func (r *ExportRouter) Export(w http.ResponseWriter, req *http.Request) {
	format := export.ParseFormat(req.URL.Query().Get("format"))

	phrases, err := r.client.Phrases.ListAll(req.Context())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	// Render fully before writing headers so a failure still yields an error body.
	var buf bytes.Buffer
	if err := export.Write(&buf, format, phrases); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
