package weather

// Current holds the present conditions for a city as reported by OpenWeatherMap.
type Current struct {
	City        string   `json:"city"`
	CountryCode string   `json:"country_code"`
	Main        string   `json:"weather_main"`
	Description string   `json:"weather_description"`
	Temperature float64  `json:"temperature"`
	FeelsLike   float64  `json:"feels_like"`
	Pressure    int      `json:"pressure"`
	Humidity    int      `json:"humidity"`
	WindSpeed   float64  `json:"wind_speed"`
	Cloudiness  int      `json:"cloudiness"`
	Rain1h      *float64 `json:"rain_1h,omitempty"`
	Timestamp   int64    `json:"timestamp"`
	Sunrise     int64    `json:"sunrise"`
	Sunset      int64    `json:"sunset"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
}

// ForecastDay is one day of the Open-Meteo daily forecast.
type ForecastDay struct {
	Date                        string   `json:"date"`
	WeatherCode                 int      `json:"weather_code"`
	Description                 string   `json:"weather_description"`
	TemperatureMax              float64  `json:"temperature_max"`
	TemperatureMin              float64  `json:"temperature_min"`
	Sunrise                     string   `json:"sunrise"`
	Sunset                      string   `json:"sunset"`
	UVIndexMax                  *float64 `json:"uv_index_max,omitempty"`
	PrecipitationProbabilityMax *int     `json:"precipitation_probability_max,omitempty"`
	WindSpeedMax                float64  `json:"wind_speed_max"`
}

// Report is the combined weather view of a city. Forecast is empty when the
// forecast provider failed.
type Report struct {
	Current  Current       `json:"current"`
	Forecast []ForecastDay `json:"forecast"`
}

// Location names a city, optionally qualified by an ISO country code.
type Location struct {
	City    string `json:"city"`
	Country string `json:"country,omitempty"`
}

// CityReport pairs a location with its report in multi-city results.
type CityReport struct {
	Location
	Report *Report `json:"report"`
}

var wmoDescriptions = map[int]string{
	0: "Clear sky", 1: "Mainly clear", 2: "Partly cloudy", 3: "Overcast",
	45: "Fog", 48: "Depositing rime fog",
	51: "Light drizzle", 53: "Moderate drizzle", 55: "Dense drizzle",
	56: "Light freezing drizzle", 57: "Dense freezing drizzle",
	61: "Slight rain", 63: "Moderate rain", 65: "Heavy rain",
	66: "Light freezing rain", 67: "Heavy freezing rain",
	71: "Slight snow fall", 73: "Moderate snow fall", 75: "Heavy snow fall", 77: "Snow grains",
	80: "Slight rain showers", 81: "Moderate rain showers", 82: "Violent rain showers",
	85: "Slight snow showers", 86: "Heavy snow showers",
	95: "Thunderstorm", 96: "Thunderstorm with slight hail", 99: "Thunderstorm with heavy hail",
}

// DescribeWMO maps a WMO weather interpretation code to text.
func DescribeWMO(code int) string {
	if d, ok := wmoDescriptions[code]; ok {
		return d
	}
	return "Unknown"
}
