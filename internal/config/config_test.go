package config

import (
	"errors"
	"os"
	"testing"
	"time"
)

func TestLoadMissingAPIKey(t *testing.T) {
	t.Setenv("WEATHERBIT_API_KEY", "")
	// Run from a scratch directory so a developer's .env or config.yaml
	// cannot leak into the test.
	chdir(t, t.TempDir())

	_, err := Load()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Load() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WEATHERBIT_API_KEY", "test-key")
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.WeatherAPIURL != "https://api.weatherbit.io/v2.0/current" {
		t.Errorf("WeatherAPIURL = %q", cfg.WeatherAPIURL)
	}
	if cfg.WeatherAPITimeout != 20*time.Second {
		t.Errorf("WeatherAPITimeout = %v, want 20s", cfg.WeatherAPITimeout)
	}
	if cfg.DefaultCity != "Rio de Janeiro" || cfg.DefaultCountry != "BR" {
		t.Errorf("default location = %q/%q, want Rio de Janeiro/BR", cfg.DefaultCity, cfg.DefaultCountry)
	}
	if cfg.Lang != "pt" || cfg.Units != "M" {
		t.Errorf("lang/units = %q/%q, want pt/M", cfg.Lang, cfg.Units)
	}
	if cfg.DBPath != "./data/weather.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.HoursWindow != 168 {
		t.Errorf("HoursWindow = %d, want 168", cfg.HoursWindow)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("WEATHERBIT_API_KEY", "test-key")
	t.Setenv("DEFAULT_CITY", "Niterói")
	t.Setenv("DEFAULT_COUNTRY", "BR")
	t.Setenv("DB_PATH", "/tmp/test-weather.db")
	t.Setenv("HOURS_WINDOW", "24")
	t.Setenv("WEATHERBIT_API_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "debug")
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DefaultCity != "Niterói" {
		t.Errorf("DefaultCity = %q, want Niterói", cfg.DefaultCity)
	}
	if cfg.DBPath != "/tmp/test-weather.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.HoursWindow != 24 {
		t.Errorf("HoursWindow = %d, want 24", cfg.HoursWindow)
	}
	if cfg.WeatherAPITimeout != 5*time.Second {
		t.Errorf("WeatherAPITimeout = %v, want 5s", cfg.WeatherAPITimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadYAMLFileLayering(t *testing.T) {
	t.Setenv("WEATHERBIT_API_KEY", "test-key")
	t.Setenv("DEFAULT_CITY", "")
	dir := t.TempDir()
	yaml := `location:
  city: "São Paulo"
  country: "BR"
chart:
  hours_window: 48
`
	if err := os.WriteFile(dir+"/config.yaml", []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config.yaml: %v", err)
	}
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DefaultCity != "São Paulo" {
		t.Errorf("DefaultCity = %q, want São Paulo (from file)", cfg.DefaultCity)
	}
	if cfg.HoursWindow != 48 {
		t.Errorf("HoursWindow = %d, want 48 (from file)", cfg.HoursWindow)
	}

	// Environment wins over the file.
	t.Setenv("DEFAULT_CITY", "Niterói")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultCity != "Niterói" {
		t.Errorf("DefaultCity = %q, want Niterói (env wins)", cfg.DefaultCity)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
