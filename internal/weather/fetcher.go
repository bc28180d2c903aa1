package weather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

const maxConcurrentCities = 4

// currentFetcher is the interface satisfied by CurrentClient.
type currentFetcher interface {
	Fetch(ctx context.Context, city, country string) (*Current, error)
}

// forecastFetcher is the interface satisfied by ForecastClient.
type forecastFetcher interface {
	Fetch(ctx context.Context, lat, lon float64) ([]ForecastDay, error)
}

// Fetcher combines current conditions and the daily forecast into a Report.
type Fetcher struct {
	current  currentFetcher
	forecast forecastFetcher
	log      *slog.Logger
}

// NewFetcher constructs a Fetcher with production provider URLs.
func NewFetcher(apiKey string, log *slog.Logger) *Fetcher {
	return &Fetcher{
		current:  NewCurrentClient(apiKey),
		forecast: NewForecastClient(),
		log:      log,
	}
}

// NewFetcherWithClients constructs a Fetcher with injectable clients (used in tests).
func NewFetcherWithClients(c currentFetcher, f forecastFetcher, log *slog.Logger) *Fetcher {
	return &Fetcher{current: c, forecast: f, log: log}
}

// Fetch returns the weather report for a city. The forecast is looked up
// from the coordinates of the current conditions; its failure is logged and
// the report is returned without it.
func (f *Fetcher) Fetch(ctx context.Context, city, country string) (*Report, error) {
	current, err := f.current.Fetch(ctx, city, country)
	if err != nil {
		return nil, err
	}

	report := &Report{Current: *current, Forecast: []ForecastDay{}}

	days, err := f.forecast.Fetch(ctx, current.Latitude, current.Longitude)
	if err != nil {
		f.log.Warn("forecast fetch failed", "city", city, "err", err)
		return report, nil
	}
	if days != nil {
		report.Forecast = days
	}

	return report, nil
}

// FetchMany fetches every distinct location concurrently. Locations that
// fail are logged and left out; the rest keep their input order.
func (f *Fetcher) FetchMany(ctx context.Context, locations []Location) ([]CityReport, error) {
	locations = dedupe(locations)
	reports := make([]*Report, len(locations))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCities)

	for i, loc := range locations {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					f.log.Error("weather fetch panicked", "city", loc.City, "recover", r)
					err = fmt.Errorf("weather fetch for %s panicked: %v", loc.City, r)
				}
			}()
			report, fetchErr := f.Fetch(gCtx, loc.City, loc.Country)
			if fetchErr != nil {
				f.log.Warn("weather fetch failed", "city", loc.City, "country", loc.Country, "err", fetchErr)
				return nil
			}
			reports[i] = report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching weather for %d cities: %w", len(locations), err)
	}

	out := make([]CityReport, 0, len(locations))
	for i, report := range reports {
		if report != nil {
			out = append(out, CityReport{Location: locations[i], Report: report})
		}
	}
	return out, nil
}

// dedupe drops repeated locations, comparing case-insensitively.
func dedupe(locations []Location) []Location {
	seen := make(map[Location]bool, len(locations))
	out := make([]Location, 0, len(locations))
	for _, loc := range locations {
		loc.City = strings.TrimSpace(loc.City)
		if loc.City == "" {
			continue
		}
		k := Location{City: strings.ToLower(loc.City), Country: strings.ToLower(loc.Country)}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, loc)
	}
	return out
}
