package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const httpTimeout = 10 * time.Second

// ErrCityNotFound is returned when the provider does not know the city.
var ErrCityNotFound = errors.New("city not found")

// StatusError is a non-200 response from a provider.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned status %d", e.URL, e.Code)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// doGet performs a GET request and decodes the JSON response into dst.
// The API key never appears in returned errors; only base URLs do.
func doGet(ctx context.Context, client *http.Client, base string, params url.Values, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", base, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", base, redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: base, Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response from %s: %w", base, err)
	}

	return nil
}

// redact strips the request URL, which carries the API key, from transport errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// ---- OpenWeatherMap ----

// CurrentClient fetches current conditions from OpenWeatherMap.
type CurrentClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

const owmDefaultURL = "https://api.openweathermap.org/data/2.5/weather"

// NewCurrentClient constructs a CurrentClient with the given API key.
func NewCurrentClient(apiKey string) *CurrentClient {
	return &CurrentClient{apiKey: apiKey, baseURL: owmDefaultURL, client: newHTTPClient()}
}

// NewCurrentClientWithURL constructs a CurrentClient pointing at a custom base URL (for tests).
func NewCurrentClientWithURL(baseURL, apiKey string) *CurrentClient {
	return &CurrentClient{apiKey: apiKey, baseURL: baseURL, client: newHTTPClient()}
}

type owmResponse struct {
	Name  string `json:"name"`
	Dt    int64  `json:"dt"`
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Sys struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Pressure  int     `json:"pressure"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Rain struct {
		OneHour *float64 `json:"1h"`
	} `json:"rain"`
}

// Fetch retrieves current conditions in metric units. country may be empty.
func (c *CurrentClient) Fetch(ctx context.Context, city, country string) (*Current, error) {
	q := city
	if country != "" {
		q = city + "," + country
	}
	params := url.Values{
		"q":     {q},
		"appid": {c.apiKey},
		"units": {"metric"},
	}

	var raw owmResponse
	if err := doGet(ctx, c.client, c.baseURL, params, &raw); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("openweathermap fetch for %s: %w", q, ErrCityNotFound)
		}
		return nil, fmt.Errorf("openweathermap fetch for %s: %w", q, err)
	}

	current := &Current{
		City:        raw.Name,
		CountryCode: raw.Sys.Country,
		Temperature: raw.Main.Temp,
		FeelsLike:   raw.Main.FeelsLike,
		Pressure:    raw.Main.Pressure,
		Humidity:    raw.Main.Humidity,
		WindSpeed:   raw.Wind.Speed,
		Cloudiness:  raw.Clouds.All,
		Rain1h:      raw.Rain.OneHour,
		Timestamp:   raw.Dt,
		Sunrise:     raw.Sys.Sunrise,
		Sunset:      raw.Sys.Sunset,
		Latitude:    raw.Coord.Lat,
		Longitude:   raw.Coord.Lon,
	}
	if len(raw.Weather) > 0 {
		current.Main = raw.Weather[0].Main
		current.Description = raw.Weather[0].Description
	}

	return current, nil
}

// ---- Open-Meteo ----

// ForecastClient fetches the daily forecast from Open-Meteo (no API key required).
type ForecastClient struct {
	baseURL string
	client  *http.Client
}

const openMeteoDefaultURL = "https://api.open-meteo.com/v1/forecast"

var dailyFields = []string{
	"weather_code", "temperature_2m_max", "temperature_2m_min",
	"sunrise", "sunset", "uv_index_max", "precipitation_probability_max",
	"wind_speed_10m_max",
}

// NewForecastClient constructs a ForecastClient.
func NewForecastClient() *ForecastClient {
	return &ForecastClient{baseURL: openMeteoDefaultURL, client: newHTTPClient()}
}

// NewForecastClientWithURL constructs a ForecastClient pointing at a custom base URL (for tests).
func NewForecastClientWithURL(baseURL string) *ForecastClient {
	return &ForecastClient{baseURL: baseURL, client: newHTTPClient()}
}

type openMeteoResponse struct {
	Daily struct {
		Time                        []string   `json:"time"`
		WeatherCode                 []int      `json:"weather_code"`
		TemperatureMax              []float64  `json:"temperature_2m_max"`
		TemperatureMin              []float64  `json:"temperature_2m_min"`
		Sunrise                     []string   `json:"sunrise"`
		Sunset                      []string   `json:"sunset"`
		UVIndexMax                  []*float64 `json:"uv_index_max"`
		PrecipitationProbabilityMax []*int     `json:"precipitation_probability_max"`
		WindSpeedMax                []float64  `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

// Fetch retrieves the daily forecast at the given coordinates. The first
// day (today) is dropped since current conditions cover it.
func (c *ForecastClient) Fetch(ctx context.Context, lat, lon float64) ([]ForecastDay, error) {
	params := url.Values{
		"latitude":        {strconv.FormatFloat(lat, 'f', -1, 64)},
		"longitude":       {strconv.FormatFloat(lon, 'f', -1, 64)},
		"daily":           {strings.Join(dailyFields, ",")},
		"wind_speed_unit": {"ms"},
		"timezone":        {"auto"},
	}

	var raw openMeteoResponse
	if err := doGet(ctx, c.client, c.baseURL, params, &raw); err != nil {
		return nil, fmt.Errorf("open-meteo fetch for %f,%f: %w", lat, lon, err)
	}

	d := raw.Daily
	n := len(d.Time)
	for _, l := range []int{
		len(d.WeatherCode), len(d.TemperatureMax), len(d.TemperatureMin), len(d.Sunrise),
		len(d.Sunset), len(d.UVIndexMax), len(d.PrecipitationProbabilityMax), len(d.WindSpeedMax),
	} {
		if l != n {
			return nil, fmt.Errorf("open-meteo fetch for %f,%f: incomplete daily forecast", lat, lon)
		}
	}

	days := make([]ForecastDay, 0, max(n-1, 0))
	for i := 1; i < n; i++ {
		days = append(days, ForecastDay{
			Date:                        d.Time[i],
			WeatherCode:                 d.WeatherCode[i],
			Description:                 DescribeWMO(d.WeatherCode[i]),
			TemperatureMax:              d.TemperatureMax[i],
			TemperatureMin:              d.TemperatureMin[i],
			Sunrise:                     d.Sunrise[i],
			Sunset:                      d.Sunset[i],
			UVIndexMax:                  d.UVIndexMax[i],
			PrecipitationProbabilityMax: d.PrecipitationProbabilityMax[i],
			WindSpeedMax:                d.WindSpeedMax[i],
		})
	}

	return days, nil
}
