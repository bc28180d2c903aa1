package api

import (
	"context"

	"github.com/neexbeast/tether/internal/saved"
	"github.com/neexbeast/tether/internal/weather"
)

// SavesService defines the save/unsave operations needed by handlers.
type SavesService interface {
	SaveFlight(ctx context.Context, req saved.FlightSave) (saved.Result, error)
	UnsaveFlight(ctx context.Context, userID, flightID string) (saved.Result, error)
	SaveActivity(ctx context.Context, req saved.ActivitySave) (saved.Result, error)
	UnsaveActivity(ctx context.Context, userID, activityID string) (saved.Result, error)
	ListSavedFlights(ctx context.Context, userID string) ([]saved.FlightView, error)
	ListSavedActivities(ctx context.Context, userID string) ([]saved.Activity, error)
	GetFlight(ctx context.Context, flightID string) (*saved.FlightView, error)
	GetActivity(ctx context.Context, activityID string) (*saved.Activity, error)
	CreateUser(ctx context.Context, u saved.User) (saved.User, error)
	GetUser(ctx context.Context, userID string) (*saved.User, error)
}

// SavedCache defines the per-user list cache needed by handlers.
type SavedCache interface {
	GetFlights(ctx context.Context, userID string) ([]saved.FlightView, bool, error)
	SetFlights(ctx context.Context, userID string, views []saved.FlightView) error
	GetActivities(ctx context.Context, userID string) ([]saved.Activity, bool, error)
	SetActivities(ctx context.Context, userID string, activities []saved.Activity) error
	InvalidateSaved(ctx context.Context, kind saved.Kind) error
}

// WeatherCache defines the weather report cache needed by handlers.
type WeatherCache interface {
	GetWeather(ctx context.Context, city, country string) (*weather.Report, error)
	SetWeather(ctx context.Context, city, country string, report *weather.Report) error
}

// WeatherFetcher defines the weather provider lookups needed by handlers.
type WeatherFetcher interface {
	Fetch(ctx context.Context, city, country string) (*weather.Report, error)
	FetchMany(ctx context.Context, locations []weather.Location) ([]weather.CityReport, error)
}

// Pinger is satisfied by anything the health endpoint checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
