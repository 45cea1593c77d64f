package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/climareal/clima-service/internal/chart"
	"github.com/climareal/clima-service/internal/client"
	"github.com/climareal/clima-service/internal/models"
	"github.com/climareal/clima-service/internal/observability"
	"github.com/climareal/clima-service/internal/service"
	"github.com/climareal/clima-service/internal/store"
)

// Defaults are applied when a request omits city/country or the chart window.
type Defaults struct {
	City        string
	Country     string
	HoursWindow int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	collector *service.Collector
	store     store.Store
	defaults  Defaults
	logger    *zap.Logger
}

// NewHandler returns a new Handler.
func NewHandler(collector *service.Collector, st store.Store, defaults Defaults, logger *zap.Logger) *Handler {
	return &Handler{
		collector: collector,
		store:     st,
		defaults:  defaults,
		logger:    logger,
	}
}

// NewRouter assembles the service router. The limiter guards /collect only;
// it protects the provider quota, not the read paths. Nil disables it.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	router.HandleFunc("/latest", h.GetLatest).Methods("GET")
	router.HandleFunc("/weather", h.GetWeather).Methods("GET")
	router.HandleFunc("/chart/{metric}", h.GetChart).Methods("GET")

	collectRouter := router.PathPrefix("/collect").Subrouter()
	collectRouter.Use(RateLimitMiddleware(limiter))
	collectRouter.HandleFunc("", h.PostCollect).Methods("POST")

	return router
}

type collectResponse struct {
	City     string `json:"city"`
	TsUTC    int64  `json:"ts_utc"`
	TsISOUTC string `json:"ts_iso_utc"`
	Inserted bool   `json:"inserted"`
}

// PostCollect handles POST /collect?city=&country=. Fetches one observation
// from the provider and persists it; reports whether it was a new row or an
// idempotent duplicate.
func (h *Handler) PostCollect(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if city == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", "city is required")
		return
	}
	country := queryDefault(r, "country", h.defaults.Country)

	result, err := h.collector.Collect(r.Context(), city, country)
	if err != nil {
		writeCollectError(w, r, err)
		return
	}

	obs := result.Observation
	writeJSON(w, http.StatusOK, collectResponse{
		City:     obs.CityName + "-" + obs.CountryCode,
		TsUTC:    obs.TsUTC,
		TsISOUTC: obs.Time().Format(time.RFC3339),
		Inserted: result.Inserted,
	})
}

// GetLatest handles GET /latest?city=&country=. Returns the newest stored
// observation or 404 when none exists.
func (h *Handler) GetLatest(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if city == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", "city is required")
		return
	}
	country := queryDefault(r, "country", h.defaults.Country)

	rows, err := h.collector.Latest(r.Context(), city, country, 1)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if len(rows) == 0 {
		writeError(w, r, http.StatusNotFound, "NO_DATA", "no observations for this city")
		return
	}

	writeJSON(w, http.StatusOK, rows[0])
}

type rangeResponse struct {
	Count int                  `json:"count"`
	Data  []models.Observation `json:"data"`
}

// GetWeather handles GET /weather?city=&country=&start=&end=. start/end are
// inclusive epoch-second bounds; omitting one leaves that side unbounded.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if city == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", "city is required")
		return
	}
	country := queryDefault(r, "country", h.defaults.Country)

	start, err := optionalEpoch(r, "start")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BOUND", "start must be epoch seconds")
		return
	}
	end, err := optionalEpoch(r, "end")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BOUND", "end must be epoch seconds")
		return
	}

	rows, err := h.collector.Range(r.Context(), city, country, start, end)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rangeResponse{Count: len(rows), Data: rows})
}

// GetChart handles GET /chart/{metric}?city=&country=&hours=. Renders a PNG
// of daily means over the trailing window.
func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	metric, err := chart.ParseMetric(mux.Vars(r)["metric"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_METRIC", err.Error())
		return
	}

	city := queryDefault(r, "city", h.defaults.City)
	country := queryDefault(r, "country", h.defaults.Country)

	hours := h.defaults.HoursWindow
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "INVALID_WINDOW", "hours must be a positive integer")
			return
		}
		hours = n
	}

	rows, err := h.collector.Window(r.Context(), city, country, time.Duration(hours)*time.Hour)
	if err != nil {
		observability.ChartRendersTotal.WithLabelValues(string(metric), "error").Inc()
		writeError(w, r, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := chart.Render(w, metric, rows, city+"-"+country); err != nil {
		if err == chart.ErrNoData {
			observability.ChartRendersTotal.WithLabelValues(string(metric), "no_data").Inc()
			writeError(w, r, http.StatusNotFound, "NO_DATA", "no observations to plot; run a collection first")
			return
		}
		observability.ChartRendersTotal.WithLabelValues(string(metric), "error").Inc()
		if logger := observability.LoggerFromContext(r.Context()); logger != nil {
			logger.Error("chart render", zap.Error(err))
		}
		return
	}
	observability.ChartRendersTotal.WithLabelValues(string(metric), "success").Inc()
}

// GetHealth handles GET /health. Degraded when the store is unreachable.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	statusCode := http.StatusOK
	checks := map[string]string{"store": "healthy"}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
		checks["store"] = "unhealthy"
	}

	writeJSON(w, statusCode, map[string]any{
		"status":    status,
		"service":   "clima-service",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func queryDefault(r *http.Request, key, def string) string {
	if v := strings.TrimSpace(r.URL.Query().Get(key)); v != "" {
		return v
	}
	return def
}

func optionalEpoch(r *http.Request, key string) (*int64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func writeCollectError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case isProviderError(err):
		writeError(w, r, http.StatusBadGateway, "PROVIDER_ERROR", err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "STORE_ERROR", err.Error())
	}
}

func isProviderError(err error) bool {
	return errors.Is(err, client.ErrProvider) || errors.Is(err, client.ErrInvalidAPIKey)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID, _ = v.(string)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}
