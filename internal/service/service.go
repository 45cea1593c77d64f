package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/climareal/clima-service/internal/client"
	"github.com/climareal/clima-service/internal/models"
	"github.com/climareal/clima-service/internal/normalize"
	"github.com/climareal/clima-service/internal/observability"
	"github.com/climareal/clima-service/internal/store"
)

// Collector runs the fetch -> normalize -> idempotent insert pipeline and
// fronts the store's read queries for the HTTP layer and chart renderer.
type Collector struct {
	client client.WeatherClient
	store  store.Store
	lang   string
	units  string
}

// NewCollector creates a Collector. lang and units are passed through to the
// provider on every fetch.
func NewCollector(client client.WeatherClient, store store.Store, lang, units string) *Collector {
	return &Collector{
		client: client,
		store:  store,
		lang:   lang,
		units:  units,
	}
}

// CollectResult describes the outcome of one collection attempt.
type CollectResult struct {
	Observation models.Observation
	Inserted    bool
}

// Collect fetches current conditions for city/country, normalizes the payload
// and inserts it. A duplicate insert is reported through Inserted=false, not
// an error. Provider and store failures abort the attempt and surface to the
// caller untouched; no retries.
func (c *Collector) Collect(ctx context.Context, city, country string) (CollectResult, error) {
	logger := observability.LoggerFromContext(ctx)

	payload, err := c.client.FetchByCity(ctx, city, country, c.lang, c.units)
	if err != nil {
		return CollectResult{}, err
	}

	obs := normalize.Current(payload)

	inserted, err := c.store.Insert(ctx, obs)
	if err != nil {
		return CollectResult{}, err
	}

	if inserted {
		observability.ObservationsInsertedTotal.Inc()
	} else {
		observability.ObservationsDuplicateTotal.Inc()
	}

	if logger != nil {
		logger.Info("collection finished",
			zap.String("city", obs.CityName),
			zap.String("country", obs.CountryCode),
			zap.Int64("ts_utc", obs.TsUTC),
			zap.String("tz", obs.Tz),
			zap.Bool("inserted", inserted))
	}

	return CollectResult{Observation: obs, Inserted: inserted}, nil
}

// Latest returns up to limit newest observations for city/country. An empty
// result is not an error; the presentation layer maps it to not-found.
func (c *Collector) Latest(ctx context.Context, city, country string, limit int) ([]models.Observation, error) {
	return c.store.FetchLatest(ctx, city, country, limit)
}

// Range returns observations between the optional inclusive epoch bounds,
// ascending by instant.
func (c *Collector) Range(ctx context.Context, city, country string, startUTC, endUTC *int64) ([]models.Observation, error) {
	return c.store.FetchRange(ctx, city, country, startUTC, endUTC)
}

// Window returns the observations from the trailing window ending now. Used
// by the chart renderer.
func (c *Collector) Window(ctx context.Context, city, country string, window time.Duration) ([]models.Observation, error) {
	end := time.Now().UTC().Unix()
	start := end - int64(window.Seconds())
	return c.store.FetchRange(ctx, city, country, &start, &end)
}
