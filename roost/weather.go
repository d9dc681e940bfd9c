package roost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// WeatherReport is the current conditions shown by /weather.
type WeatherReport struct {
	Location     string  `json:"location"`
	Country      string  `json:"country"`
	Description  string  `json:"description"`
	TemperatureC float64 `json:"temperature_c"`
	FeelsLikeC   float64 `json:"feels_like_c"`
	Humidity     int     `json:"humidity"`
	WindSpeedKMH float64 `json:"wind_speed_kmh"`
}

// WeatherClient resolves a place name and fetches its current conditions
// from open-meteo.com. The geocoding and forecast calls share one limiter,
// so each /weather costs two tokens.
type WeatherClient struct {
	lookupClient
	geocodeURL  string
	forecastURL string
}

func newWeatherClient(
	config *LookupConfig,
	httpClient *http.Client,
	logger *slog.Logger,
) *WeatherClient {
	return &WeatherClient{
		lookupClient: newLookupClient(
			httpClient,
			config.WeatherRatePerMinute,
			config.MaxRetries,
			config.Timeout,
			logger.With(loggerNameKey, "weather"),
		),
		geocodeURL:  config.WeatherGeocodeURL,
		forecastURL: config.WeatherForecastURL,
	}
}

type weatherGeocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type weatherForecastResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		FeelsLike   float64 `json:"apparent_temperature"`
		Humidity    int     `json:"relative_humidity_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

// weatherCodeDescriptions maps WMO weather interpretation codes to text.
var weatherCodeDescriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Drizzle",
	55: "Dense drizzle",
	61: "Light rain",
	63: "Rain",
	65: "Heavy rain",
	66: "Freezing rain",
	67: "Heavy freezing rain",
	71: "Light snow",
	73: "Snow",
	75: "Heavy snow",
	77: "Snow grains",
	80: "Light showers",
	81: "Showers",
	82: "Violent showers",
	85: "Snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with hail",
	99: "Thunderstorm with heavy hail",
}

// Current returns the current conditions for the best geocoding match on
// the given place name.
func (c *WeatherClient) Current(
	ctx context.Context,
	place string,
) (WeatherReport, error) {
	var report WeatherReport
	place = strings.TrimSpace(place)
	if len(place) < 2 {
		return report, fmt.Errorf(
			"%w: place name must be at least 2 characters",
			ErrValidation,
		)
	}

	geoParams := url.Values{}
	geoParams.Set("name", place)
	geoParams.Set("count", "1")

	var geo weatherGeocodeResponse
	if err := c.getJSON(ctx, c.geocodeURL, geoParams, &geo); err != nil {
		if errors.Is(err, errLookupNoResult) {
			return report, fmt.Errorf("%w: place %q", ErrNotFound, place)
		}
		return report, err
	}
	if len(geo.Results) == 0 {
		return report, fmt.Errorf("%w: place %q", ErrNotFound, place)
	}
	match := geo.Results[0]

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(match.Latitude, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(match.Longitude, 'f', 4, 64))
	params.Set(
		"current",
		"temperature_2m,apparent_temperature,relative_humidity_2m,"+
			"wind_speed_10m,weather_code",
	)

	var forecast weatherForecastResponse
	if err := c.getJSON(ctx, c.forecastURL, params, &forecast); err != nil {
		return report, err
	}

	description, ok := weatherCodeDescriptions[forecast.Current.WeatherCode]
	if !ok {
		description = "Unknown conditions"
	}
	return WeatherReport{
		Location:     match.Name,
		Country:      match.Country,
		Description:  description,
		TemperatureC: forecast.Current.Temperature,
		FeelsLikeC:   forecast.Current.FeelsLike,
		Humidity:     forecast.Current.Humidity,
		WindSpeedKMH: forecast.Current.WindSpeed,
	}, nil
}
