package models

import "time"

// Observation is one weather reading for a city at a specific UTC instant.
// The triple (CityName, CountryCode, TsUTC) identifies a row; everything else
// is payload. Nullable provider fields are pointers so a missing value stays
// distinguishable from zero.
type Observation struct {
	CityName           string   `json:"city"`
	CountryCode        string   `json:"country"`
	Lat                *float64 `json:"lat,omitempty"`
	Lon                *float64 `json:"lon,omitempty"`
	TsUTC              int64    `json:"ts_utc"`
	Tz                 string   `json:"tz"`
	TempC              *float64 `json:"temp_c"`
	FeelsLikeC         *float64 `json:"feels_like_c"`
	Humidity           *int64   `json:"humidity"`
	Pressure           *float64 `json:"pressure,omitempty"`
	WindSpeed          *float64 `json:"wind_speed,omitempty"`
	WindDir            *int64   `json:"wind_dir,omitempty"`
	Clouds             *int64   `json:"clouds,omitempty"`
	VisibilityKm       *float64 `json:"visibility_km,omitempty"`
	WeatherDescription *string  `json:"weather_description"`
	CreatedAt          string   `json:"created_at,omitempty"` // assigned by the store on insert
}

// Time returns the observation instant as a UTC time.Time.
func (o Observation) Time() time.Time {
	return time.Unix(o.TsUTC, 0).UTC()
}

// LocalTime converts the observation instant to its IANA zone. Falls back to
// UTC when the zone name is empty or unknown.
func (o Observation) LocalTime() time.Time {
	if o.Tz == "" {
		return o.Time()
	}
	loc, err := time.LoadLocation(o.Tz)
	if err != nil {
		return o.Time()
	}
	return o.Time().In(loc)
}
