// Package api serves the admin HTTP surface: health, metrics, transfer
// sessions, the artifact catalog and the live event stream.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/theblitlabs/parity-ml/internal/api/handlers"
	"github.com/theblitlabs/parity-ml/internal/api/middleware"
	"github.com/theblitlabs/parity-ml/internal/auth"
	"github.com/theblitlabs/parity-ml/internal/telemetry"
)

// Router wraps mux.Router to add more functionality
type Router struct {
	*mux.Router
	middleware []mux.MiddlewareFunc
	endpoint   string
}

// NewRouter creates and configures a new router with all dependencies.
// Routes under endpoint require a token when authority is non-nil.
func NewRouter(
	adminHandler *handlers.AdminHandler,
	eventStream http.Handler,
	authority *auth.Authority,
	endpoint string,
) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		middleware: []mux.MiddlewareFunc{
			middleware.Logging,
			telemetry.MetricsMiddleware,
		},
		endpoint: endpoint,
	}

	r.setup()
	r.registerRoutes(adminHandler, eventStream, authority)

	return r
}

// setup configures the base router with middleware and common settings
func (r *Router) setup() {
	for _, m := range r.middleware {
		r.Use(m)
	}
}

// registerRoutes registers all application routes
func (r *Router) registerRoutes(
	adminHandler *handlers.AdminHandler,
	eventStream http.Handler,
	authority *auth.Authority,
) {
	r.HandleFunc("/health", adminHandler.Health).Methods(http.MethodGet)
	r.Handle("/metrics", telemetry.MetricsHandler()).Methods(http.MethodGet)

	api := r.PathPrefix(r.endpoint).Subrouter()
	api.Use(middleware.Auth(authority))

	api.HandleFunc("/sessions", adminHandler.ListSessions).Methods(http.MethodGet)
	api.HandleFunc("/artifacts", adminHandler.ListArtifacts).Methods(http.MethodGet)
	api.HandleFunc("/artifacts/{purpose}/latest", adminHandler.LatestArtifact).Methods(http.MethodGet)
	if eventStream != nil {
		api.Handle("/events", eventStream).Methods(http.MethodGet)
	}
}

// AddMiddleware adds a new middleware to the router
func (r *Router) AddMiddleware(middleware mux.MiddlewareFunc) {
	r.Use(middleware)
}
