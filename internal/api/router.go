// Package api wires the HTTP surface: router, middleware stack and
// handler dependencies.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/mavalente92/debatelens/internal/api/middleware"
	"github.com/mavalente92/debatelens/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	TextAnalysisHandler   http.HandlerFunc
	URLAnalysisHandler    http.HandlerFunc
	UploadAnalysisHandler http.HandlerFunc

	GetAnalysisHandler    http.HandlerFunc
	AnalysisStatusHandler http.HandlerFunc
	GetTranscriptHandler  http.HandlerFunc
	ListAnalysesHandler   http.HandlerFunc
	DeleteAnalysisHandler http.HandlerFunc
	RegenerateHandler     http.HandlerFunc
}

// NewRouter builds the Chi router with the middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Rate-limited API
	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/api/v1/analyses/text", orNotImplemented(deps.TextAnalysisHandler))
		r.Post("/api/v1/analyses/url", orNotImplemented(deps.URLAnalysisHandler))
		r.Post("/api/v1/analyses/upload", orNotImplemented(deps.UploadAnalysisHandler))

		r.Get("/api/v1/analyses", orNotImplemented(deps.ListAnalysesHandler))
		r.Get("/api/v1/analyses/{analysisID}", orNotImplemented(deps.GetAnalysisHandler))
		r.Get("/api/v1/analyses/{analysisID}/status", orNotImplemented(deps.AnalysisStatusHandler))
		r.Get("/api/v1/analyses/{analysisID}/transcript", orNotImplemented(deps.GetTranscriptHandler))
		r.Delete("/api/v1/analyses/{analysisID}", orNotImplemented(deps.DeleteAnalysisHandler))
		r.Post("/api/v1/analyses/{analysisID}/regenerate", orNotImplemented(deps.RegenerateHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
