package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when no Weatherbit credential is configured.
// Collection cannot proceed without it; callers decide whether that is fatal.
var ErrMissingAPIKey = errors.New("WEATHERBIT_API_KEY is not set")

// Config holds service configuration loaded from an optional YAML file,
// a .env file, and the environment. Environment wins over the file.
type Config struct {
	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration

	DefaultCity    string
	DefaultCountry string
	Lang           string
	Units          string

	DBPath     string
	ServerPort string
	LogLevel   string

	// HoursWindow bounds the chart renderer's range query.
	HoursWindow int

	CollectRateRPS   int
	CollectRateBurst int

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Location struct {
		City    string `yaml:"city"`
		Country string `yaml:"country"`
		Lang    string `yaml:"lang"`
		Units   string `yaml:"units"`
	} `yaml:"location"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Chart struct {
		HoursWindow int `yaml:"hours_window"`
	} `yaml:"chart"`

	Collect struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"collect"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

// Load reads config.yaml (if present in the working directory), then .env,
// then the environment. The API key only ever comes from the environment or
// .env, never from the YAML file.
func Load() (*Config, error) {
	// .env is optional; a missing file is the normal case in production.
	_ = godotenv.Load()

	var fc fileConfig
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config.yaml")
	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	cfg.WeatherAPIKey = os.Getenv("WEATHERBIT_API_KEY")
	if cfg.WeatherAPIKey == "" {
		return nil, ErrMissingAPIKey
	}

	cfg.WeatherAPIURL = firstNonEmpty(os.Getenv("WEATHERBIT_API_URL"), fc.WeatherAPI.URL, "https://api.weatherbit.io/v2.0/current")
	cfg.WeatherAPITimeout = parseDuration(firstNonEmpty(os.Getenv("WEATHERBIT_API_TIMEOUT"), fc.WeatherAPI.Timeout), 20*time.Second)

	cfg.DefaultCity = firstNonEmpty(os.Getenv("DEFAULT_CITY"), fc.Location.City, "Rio de Janeiro")
	cfg.DefaultCountry = firstNonEmpty(os.Getenv("DEFAULT_COUNTRY"), fc.Location.Country, "BR")
	cfg.Lang = firstNonEmpty(os.Getenv("WEATHER_LANG"), fc.Location.Lang, "pt")
	cfg.Units = firstNonEmpty(os.Getenv("WEATHER_UNITS"), fc.Location.Units, "M")

	cfg.DBPath = firstNonEmpty(os.Getenv("DB_PATH"), fc.Store.Path, "./data/weather.db")
	cfg.ServerPort = firstNonEmpty(os.Getenv("PORT"), fc.Server.Port, "8080")
	cfg.LogLevel = firstNonEmpty(os.Getenv("LOG_LEVEL"), fc.Logging.Level, "info")

	cfg.HoursWindow = getenvInt("HOURS_WINDOW", fc.Chart.HoursWindow)
	if cfg.HoursWindow <= 0 {
		cfg.HoursWindow = 168
	}

	cfg.CollectRateRPS = getenvInt("COLLECT_RATE_RPS", fc.Collect.RateLimitRPS)
	if cfg.CollectRateRPS <= 0 {
		cfg.CollectRateRPS = 1
	}
	cfg.CollectRateBurst = getenvInt("COLLECT_RATE_BURST", fc.Collect.RateLimitBurst)
	if cfg.CollectRateBurst <= 0 {
		cfg.CollectRateBurst = 5
	}

	cfg.ShutdownTimeout = parseDuration(firstNonEmpty(os.Getenv("SHUTDOWN_TIMEOUT"), fc.Shutdown.Timeout), 30*time.Second)

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is not positive.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func getenvInt(key string, fileVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fileVal
}
