package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authsvc "github.com/pawmatch/backend/internal/services/auth"
	matchersvc "github.com/pawmatch/backend/internal/services/matcher"
	"github.com/pawmatch/backend/internal/transport/http/handlers"
)

type Dependencies struct {
	Sessions       handlers.SessionProvider
	MatcherService *matchersvc.Service
	JWTManager     *authsvc.JWTManager
	Logger         *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	discoveryHandler := handlers.NewDiscoveryHandler(deps.Sessions)
	matchesHandler := handlers.NewMatchesHandler(deps.Sessions, deps.MatcherService)

	authMW := AuthMiddleware(deps.JWTManager, deps.Logger)

	r.Get("/healthz", healthHandler.Get)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/discovery", func(r chi.Router) {
			r.Use(authMW)
			r.Get("/state", discoveryHandler.State)
			r.Post("/decisions", discoveryHandler.Decide)
			r.Post("/gestures", discoveryHandler.Gesture)
			r.Post("/rewind", discoveryHandler.Rewind)
			r.Put("/filters", discoveryHandler.Filters)
			r.Get("/quota", discoveryHandler.Quota)
			r.Delete("/session", discoveryHandler.EndSession)
		})

		r.With(authMW).Get("/matches", matchesHandler.List)
	})
}
