package api

import (
	"net/http"

	"streetwise/internal/coordinator"
	"streetwise/internal/event"
	"streetwise/internal/logging"
)

// RouterOptions carries everything the HTTP surface needs. AuthToken
// empty means the API is open; /api/health is always open so load
// balancers can probe without credentials.
type RouterOptions struct {
	Coordinator    *coordinator.Coordinator
	Logger         *logging.Logger
	Bus            *event.Bus[coordinator.Event]
	AuthToken      string
	AllowedOrigins []string
}

func RegisterRoutes(mux *http.ServeMux, options RouterOptions) {
	rest := &RestHandler{
		Coordinator: options.Coordinator,
		Logger:      options.Logger,
	}

	wrap := func(handler http.Handler) http.Handler {
		return loggingMiddleware(options.Logger, handler)
	}

	mux.Handle("/api/decide", wrap(restHandler(options.AuthToken, rest.handleDecide)))
	mux.Handle("/api/quick-analysis", wrap(restHandler(options.AuthToken, rest.handleQuickAnalysis)))
	mux.Handle("/api/dining-recommendation", wrap(restHandler(options.AuthToken, rest.handleDiningRecommendation)))
	mux.Handle("/api/route-safety", wrap(restHandler(options.AuthToken, rest.handleRouteSafety)))
	mux.Handle("/api/decisions", wrap(restHandler(options.AuthToken, rest.handleDecisions)))
	mux.Handle("/api/participants", wrap(restHandler(options.AuthToken, rest.handleParticipants)))
	mux.Handle("/api/logs", wrap(restHandler(options.AuthToken, rest.handleLogs)))

	mux.Handle("/api/health", wrap(restHandler("", rest.handleHealth)))
	mux.Handle("/a2a/receive", wrap(restHandler("", rest.handleReceive)))

	mux.Handle("/ws/decisions", securityHeadersHandler(cacheControlNoStore, (&DecisionEventsHandler{
		Bus:            options.Bus,
		AuthToken:      options.AuthToken,
		AllowedOrigins: options.AllowedOrigins,
	}).ServeHTTP))

	mux.Handle("/api/", securityHeadersHandler(cacheControlNoStore, http.NotFound))
}
