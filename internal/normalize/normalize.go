// Package normalize maps raw provider payloads to canonical observations.
package normalize

import (
	"github.com/climareal/clima-service/internal/client"
	"github.com/climareal/clima-service/internal/models"
)

// Current extracts the first element of the payload's data array into an
// Observation. A payload with zero results yields an observation with empty
// identity and nil attributes rather than an error; the null-filled row
// propagates downstream as-is.
//
// Ts is always interpreted as epoch UTC. A missing timezone becomes the
// literal "UTC". No numeric validation is performed; provider values pass
// through as-is.
func Current(p *client.CurrentPayload) models.Observation {
	var d client.CurrentObs
	if p != nil && len(p.Data) > 0 {
		d = p.Data[0]
	}

	obs := models.Observation{
		Lat:          d.Lat,
		Lon:          d.Lon,
		TempC:        d.Temp,
		FeelsLikeC:   d.AppTemp,
		Humidity:     d.RH,
		Pressure:     d.Pres,
		WindSpeed:    d.WindSpd,
		WindDir:      d.WindDir,
		Clouds:       d.Clouds,
		VisibilityKm: d.Vis,
	}

	if d.CityName != nil {
		obs.CityName = *d.CityName
	}
	if d.CountryCode != nil {
		obs.CountryCode = *d.CountryCode
	}
	if d.Ts != nil {
		obs.TsUTC = *d.Ts
	}

	obs.Tz = "UTC"
	if d.Timezone != nil && *d.Timezone != "" {
		obs.Tz = *d.Timezone
	}

	if d.Weather != nil {
		desc := d.Weather.Description
		obs.WeatherDescription = &desc
	}

	return obs
}
