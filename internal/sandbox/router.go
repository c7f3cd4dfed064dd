// Package sandbox is a local stand-in for the Amazon Pilot API gateway. It
// serves the routes pilotwatch calls, backed by an in-memory store with
// scripted report jobs.
package sandbox

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/pilotwatch/internal/sandbox/middleware"
	"github.com/kiranshivaraju/pilotwatch/internal/sandbox/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler         http.HandlerFunc
	LoginHandler          http.HandlerFunc
	ProfileHandler        http.HandlerFunc
	ListGroupsHandler     http.HandlerFunc
	CreateGroupHandler    http.HandlerFunc
	GetAnalysisHandler    http.HandlerFunc
	GenerateReportHandler http.HandlerFunc
	GenerateAsyncHandler  http.HandlerFunc
	ReportStatusHandler   http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/health", orNotImplemented(deps.HealthHandler))
	r.Post("/api/auth/login", orNotImplemented(deps.LoginHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Get("/api/auth/users/profile", orNotImplemented(deps.ProfileHandler))

		r.Route("/api/competitor/analysis", func(r chi.Router) {
			r.Get("/", orNotImplemented(deps.ListGroupsHandler))
			r.Post("/", orNotImplemented(deps.CreateGroupHandler))
			r.Get("/{analysisID}", orNotImplemented(deps.GetAnalysisHandler))
			r.Post("/{analysisID}/generate-report", orNotImplemented(deps.GenerateReportHandler))
			r.Post("/{analysisID}/generate-report-async", orNotImplemented(deps.GenerateAsyncHandler))
			r.Get("/{analysisID}/report-status", orNotImplemented(deps.ReportStatusHandler))
		})
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
