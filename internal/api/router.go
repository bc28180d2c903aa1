package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// NewRouter builds and returns the Chi router with all routes configured.
// The health endpoint is unauthenticated; every other route requires bearer auth.
// Rate limiting is applied globally: 60 requests per minute per IP.
func NewRouter(handlers *Handlers, token string, db, redis Pinger, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Get("/api/v1/health", HealthHandlerFunc(db, redis, log))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(token))

		r.Post("/api/v1/users", handlers.CreateUser)

		r.Route("/api/v1/users/{userID}", func(r chi.Router) {
			r.Get("/", handlers.GetUser)

			r.Get("/flights", handlers.ListSavedFlights)
			r.Post("/flights", handlers.SaveFlight)
			r.Delete("/flights/{flightID}", handlers.UnsaveFlight)

			r.Get("/activities", handlers.ListSavedActivities)
			r.Post("/activities", handlers.SaveActivity)
			r.Get("/activities/weather", handlers.ActivitiesWeather)
			r.Delete("/activities/{activityID}", handlers.UnsaveActivity)
		})

		r.Get("/api/v1/flights/{flightID}", handlers.GetFlight)
		r.Get("/api/v1/activities/{activityID}", handlers.GetActivity)
		r.Get("/api/v1/weather/{city}", handlers.GetWeather)
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
