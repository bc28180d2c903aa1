package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/neexbeast/tether/internal/saved"
	"github.com/neexbeast/tether/internal/weather"
)

const maxBodyBytes = 1 << 20

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	saves        SavesService
	savedCache   SavedCache
	weatherCache WeatherCache
	weather      WeatherFetcher
	log          *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(saves SavesService, savedCache SavedCache, weatherCache WeatherCache, fetcher WeatherFetcher, log *slog.Logger) *Handlers {
	return &Handlers{
		saves:        saves,
		savedCache:   savedCache,
		weatherCache: weatherCache,
		weather:      fetcher,
		log:          log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody reads a JSON request body of at most maxBodyBytes into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decoding body: %v", saved.ErrInvalidPayload, err)
	}
	return nil
}

// writeResult maps a save or unsave outcome onto an HTTP status.
func writeResult(w http.ResponseWriter, res saved.Result) {
	switch res.Status {
	case saved.StatusCreated:
		writeJSON(w, http.StatusCreated, res)
	case saved.StatusNotSaved:
		writeJSON(w, http.StatusNotFound, res)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// writeFailure maps orchestrator errors onto HTTP statuses. Integrity errors
// keep the Result shape so clients can branch on status. They are matched
// before ErrNotFound since a missing referenced row is their usual cause.
func (h *Handlers) writeFailure(w http.ResponseWriter, kind saved.Kind, userID, resourceID string, err error) {
	switch {
	case errors.Is(err, saved.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, saved.ErrDataIntegrity):
		h.log.Error("data integrity violation", "kind", kind, "user_id", userID, "resource_id", resourceID, "err", err)
		writeJSON(w, http.StatusInternalServerError, saved.NewResult(kind, userID, resourceID, saved.StatusDataError))
	case errors.Is(err, saved.ErrUnknownUser):
		writeError(w, http.StatusNotFound, fmt.Sprintf("user %s not found", userID))
	case errors.Is(err, saved.ErrUserExists):
		writeError(w, http.StatusConflict, fmt.Sprintf("user %s already exists", userID))
	case errors.Is(err, saved.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s %s not found", kind, resourceID))
	case errors.Is(err, saved.ErrTxConflict):
		h.log.Warn("gave up after conflicts", "kind", kind, "user_id", userID, "resource_id", resourceID, "err", err)
		writeError(w, http.StatusConflict, "concurrent update, try again")
	case errors.Is(err, saved.ErrStorageUnavailable):
		h.log.Error("storage unavailable", "kind", kind, "user_id", userID, "resource_id", resourceID, "err", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		h.log.Error("request failed", "kind", kind, "user_id", userID, "resource_id", resourceID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// invalidate retires every cached list of kind after a mutation, since
// ref_counts in other users' lists moved too. Cache failures never fail the
// request.
func (h *Handlers) invalidate(ctx context.Context, kind saved.Kind, res saved.Result) {
	if !res.Success {
		return
	}
	if err := h.savedCache.InvalidateSaved(ctx, kind); err != nil {
		h.log.Warn("cache invalidate failed", "kind", kind, "user_id", res.UserID, "err", err)
	}
}

// CreateUser handles POST /api/v1/users.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var body saved.User
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.saves.CreateUser(r.Context(), body)
	if err != nil {
		h.writeFailure(w, "", body.ID, "", err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// GetUser handles GET /api/v1/users/{userID}.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	user, err := h.saves.GetUser(r.Context(), userID)
	if err != nil {
		h.writeFailure(w, "", userID, "", err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// SaveFlight handles POST /api/v1/users/{userID}/flights.
// The body is a flight in offer shape with outbound and inbound segment lists.
func (h *Handlers) SaveFlight(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var view saved.FlightView
	if err := decodeBody(w, r, &view); err != nil {
		h.writeFailure(w, saved.KindFlight, userID, "", err)
		return
	}

	req, err := view.ToFlightSave(userID)
	if err != nil {
		h.writeFailure(w, saved.KindFlight, userID, view.ID, err)
		return
	}

	res, err := h.saves.SaveFlight(r.Context(), req)
	if err != nil {
		h.writeFailure(w, saved.KindFlight, userID, view.ID, err)
		return
	}

	h.invalidate(r.Context(), saved.KindFlight, res)
	writeResult(w, res)
}

// UnsaveFlight handles DELETE /api/v1/users/{userID}/flights/{flightID}.
func (h *Handlers) UnsaveFlight(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	flightID := chi.URLParam(r, "flightID")

	res, err := h.saves.UnsaveFlight(r.Context(), userID, flightID)
	if err != nil {
		h.writeFailure(w, saved.KindFlight, userID, flightID, err)
		return
	}

	h.invalidate(r.Context(), saved.KindFlight, res)
	writeResult(w, res)
}

// ListSavedFlights handles GET /api/v1/users/{userID}/flights.
// Cache hit → return. Otherwise load from storage and populate the cache.
func (h *Handlers) ListSavedFlights(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	cached, hit, err := h.savedCache.GetFlights(r.Context(), userID)
	if err != nil {
		h.log.Warn("cache get failed", "kind", saved.KindFlight, "user_id", userID, "err", err)
	}
	if hit {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	views, err := h.saves.ListSavedFlights(r.Context(), userID)
	if err != nil {
		h.writeFailure(w, saved.KindFlight, userID, "", err)
		return
	}

	if err := h.savedCache.SetFlights(r.Context(), userID, views); err != nil {
		h.log.Warn("cache set failed", "kind", saved.KindFlight, "user_id", userID, "err", err)
	}

	writeJSON(w, http.StatusOK, views)
}

// GetFlight handles GET /api/v1/flights/{flightID}.
func (h *Handlers) GetFlight(w http.ResponseWriter, r *http.Request) {
	flightID := chi.URLParam(r, "flightID")

	view, err := h.saves.GetFlight(r.Context(), flightID)
	if err != nil {
		h.writeFailure(w, saved.KindFlight, "", flightID, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// SaveActivity handles POST /api/v1/users/{userID}/activities.
func (h *Handlers) SaveActivity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var activity saved.Activity
	if err := decodeBody(w, r, &activity); err != nil {
		h.writeFailure(w, saved.KindActivity, userID, "", err)
		return
	}

	req, err := saved.NewActivitySave(userID, activity)
	if err != nil {
		h.writeFailure(w, saved.KindActivity, userID, activity.ID, err)
		return
	}

	res, err := h.saves.SaveActivity(r.Context(), req)
	if err != nil {
		h.writeFailure(w, saved.KindActivity, userID, activity.ID, err)
		return
	}

	h.invalidate(r.Context(), saved.KindActivity, res)
	writeResult(w, res)
}

// UnsaveActivity handles DELETE /api/v1/users/{userID}/activities/{activityID}.
func (h *Handlers) UnsaveActivity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	activityID := chi.URLParam(r, "activityID")

	res, err := h.saves.UnsaveActivity(r.Context(), userID, activityID)
	if err != nil {
		h.writeFailure(w, saved.KindActivity, userID, activityID, err)
		return
	}

	h.invalidate(r.Context(), saved.KindActivity, res)
	writeResult(w, res)
}

// ListSavedActivities handles GET /api/v1/users/{userID}/activities.
func (h *Handlers) ListSavedActivities(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	activities, err := h.savedActivities(r.Context(), userID)
	if err != nil {
		h.writeFailure(w, saved.KindActivity, userID, "", err)
		return
	}

	writeJSON(w, http.StatusOK, activities)
}

func (h *Handlers) savedActivities(ctx context.Context, userID string) ([]saved.Activity, error) {
	cached, hit, err := h.savedCache.GetActivities(ctx, userID)
	if err != nil {
		h.log.Warn("cache get failed", "kind", saved.KindActivity, "user_id", userID, "err", err)
	}
	if hit {
		return cached, nil
	}

	activities, err := h.saves.ListSavedActivities(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := h.savedCache.SetActivities(ctx, userID, activities); err != nil {
		h.log.Warn("cache set failed", "kind", saved.KindActivity, "user_id", userID, "err", err)
	}
	return activities, nil
}

// GetActivity handles GET /api/v1/activities/{activityID}.
func (h *Handlers) GetActivity(w http.ResponseWriter, r *http.Request) {
	activityID := chi.URLParam(r, "activityID")

	activity, err := h.saves.GetActivity(r.Context(), activityID)
	if err != nil {
		h.writeFailure(w, saved.KindActivity, "", activityID, err)
		return
	}

	writeJSON(w, http.StatusOK, activity)
}

// GetWeather handles GET /api/v1/weather/{city}?country=XX.
// Cache hit → return. Otherwise fetch, cache and return.
func (h *Handlers) GetWeather(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")
	country := r.URL.Query().Get("country")

	cached, err := h.weatherCache.GetWeather(r.Context(), city, country)
	if err != nil {
		h.log.Warn("cache get failed", "city", city, "err", err)
	}
	if cached != nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	report, err := h.weather.Fetch(r.Context(), city, country)
	if err != nil {
		if errors.Is(err, weather.ErrCityNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("city %s not found", city))
			return
		}
		h.log.Error("weather fetch failed", "city", city, "country", country, "err", err)
		writeError(w, http.StatusBadGateway, "failed to fetch weather")
		return
	}

	if err := h.weatherCache.SetWeather(r.Context(), city, country, report); err != nil {
		h.log.Warn("cache set failed", "city", city, "err", err)
	}

	writeJSON(w, http.StatusOK, report)
}

// ActivitiesWeather handles GET /api/v1/users/{userID}/activities/weather.
// Reports every distinct city among the user's saved activities; cities the
// provider cannot answer for are left out.
func (h *Handlers) ActivitiesWeather(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	activities, err := h.savedActivities(r.Context(), userID)
	if err != nil {
		h.writeFailure(w, saved.KindActivity, userID, "", err)
		return
	}

	seen := make(map[string]bool, len(activities))
	var reports []weather.CityReport
	var misses []weather.Location
	for _, a := range activities {
		if seen[a.City] {
			continue
		}
		seen[a.City] = true

		cached, err := h.weatherCache.GetWeather(r.Context(), a.City, "")
		if err != nil {
			h.log.Warn("cache get failed", "city", a.City, "err", err)
		}
		if cached != nil {
			reports = append(reports, weather.CityReport{Location: weather.Location{City: a.City}, Report: cached})
			continue
		}
		misses = append(misses, weather.Location{City: a.City})
	}

	if len(misses) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()

		fetched, err := h.weather.FetchMany(ctx, misses)
		if err != nil {
			h.log.Error("weather fan-out failed", "user_id", userID, "err", err)
			writeError(w, http.StatusBadGateway, "failed to fetch weather")
			return
		}
		for _, cr := range fetched {
			if err := h.weatherCache.SetWeather(r.Context(), cr.City, cr.Country, cr.Report); err != nil {
				h.log.Warn("cache set failed", "city", cr.City, "err", err)
			}
		}
		reports = append(reports, fetched...)
	}

	if reports == nil {
		reports = []weather.CityReport{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "cities": reports})
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and redis connectivity.
// Returns 200 when both answer, 503 otherwise.
func HealthHandlerFunc(db, redis Pinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok", "db": "ok", "redis": "ok"}

		if err := db.Ping(ctx); err != nil {
			log.Error("health check: db ping failed", "err", err)
			body["db"] = "error"
			status = http.StatusServiceUnavailable
		}

		if err := redis.Ping(ctx); err != nil {
			log.Error("health check: redis ping failed", "err", err)
			body["redis"] = "error"
			status = http.StatusServiceUnavailable
		}

		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		writeJSON(w, status, body)
	}
}
