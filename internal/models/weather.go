package models

import (
	"math"
	"strconv"
	"time"
)

// WeatherRecord is the result of one successful current-weather lookup.
type WeatherRecord struct {
	Location      string  `json:"location"`
	Country       string  `json:"country"`
	Temperature   float64 `json:"temperature"`
	Humidity      int     `json:"humidity"`
	CloudCoverage int     `json:"cloudCoverage"`
	WindSpeed     float64 `json:"windSpeed"`
	Conditions    string  `json:"conditions"`
	Icon          string  `json:"icon"`
}

// CacheEntry is the single persisted slot: the last successful record and when it was captured.
type CacheEntry struct {
	Record    WeatherRecord
	Timestamp time.Time
}

// RainChance derives a rain percentage from cloud coverage. It is not supplied by the API.
func RainChance(cloudCoverage int) int {
	return int(math.Round(math.Min(float64(cloudCoverage)*0.8, 100)))
}

// RainChance returns the derived rain percentage for the record.
func (r WeatherRecord) RainChance() int {
	return RainChance(r.CloudCoverage)
}

// FormatTemperature renders the temperature rounded to whole degrees, e.g. "15°C".
func (r WeatherRecord) FormatTemperature() string {
	return strconv.Itoa(int(math.Round(r.Temperature))) + "°C"
}

// FormatHumidity renders e.g. "70%".
func (r WeatherRecord) FormatHumidity() string {
	return strconv.Itoa(r.Humidity) + "%"
}

// FormatRainChance renders e.g. "64%".
func (r WeatherRecord) FormatRainChance() string {
	return strconv.Itoa(r.RainChance()) + "%"
}

// FormatWindSpeed renders e.g. "3.2 m/s".
func (r WeatherRecord) FormatWindSpeed() string {
	return strconv.FormatFloat(r.WindSpeed, 'f', -1, 64) + " m/s"
}

// IconURL returns the OpenWeatherMap icon image for the record, or "" when no icon is set.
func (r WeatherRecord) IconURL() string {
	if r.Icon == "" {
		return ""
	}
	return "https://openweathermap.org/img/wn/" + r.Icon + "@2x.png"
}

// DisplayName renders "London, GB", or just the location when the country is unknown.
func (r WeatherRecord) DisplayName() string {
	if r.Country == "" {
		return r.Location
	}
	return r.Location + ", " + r.Country
}
