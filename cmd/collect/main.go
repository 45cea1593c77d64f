// Command collect performs one collection cycle: fetch current conditions
// for the configured (or flagged) city, normalize and insert. Meant to be
// driven by cron or another external scheduler; the service does not
// self-schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/climareal/clima-service/internal/client"
	"github.com/climareal/clima-service/internal/config"
	"github.com/climareal/clima-service/internal/observability"
	"github.com/climareal/clima-service/internal/service"
	"github.com/climareal/clima-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	city := flag.String("city", cfg.DefaultCity, "city display name")
	country := flag.String("country", cfg.DefaultCountry, "ISO-3166-1 alpha-2 country code")
	flag.Parse()

	weatherClient, err := client.NewWeatherbitClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}
	defer func() { _ = st.Close() }()

	collector := service.NewCollector(weatherClient, st, cfg.Lang, cfg.Units)

	result, err := collector.Collect(context.Background(), *city, *country)
	if err != nil {
		logger.Fatal("collect", zap.Error(err))
	}

	obs := result.Observation
	local := obs.LocalTime()
	if result.Inserted {
		fmt.Printf("[OK] inserted: %s-%s @ %s (%s)\n", obs.CityName, obs.CountryCode, local.Format("2006-01-02 15:04"), obs.Tz)
	} else {
		fmt.Printf("[IGNORED] duplicate for %s-%s @ %s (%s)\n", obs.CityName, obs.CountryCode, local.Format("2006-01-02 15:04"), obs.Tz)
	}
}
