package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/climareal/clima-service/internal/client"
	"github.com/climareal/clima-service/internal/config"
	httphandler "github.com/climareal/clima-service/internal/http"
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

	weatherClient, err := client.NewWeatherbitClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}
	defer func() { _ = st.Close() }()
	logger.Info("store opened", zap.String("path", cfg.DBPath))

	collector := service.NewCollector(weatherClient, st, cfg.Lang, cfg.Units)

	limiter := rate.NewLimiter(rate.Limit(cfg.CollectRateRPS), cfg.CollectRateBurst)
	handler := httphandler.NewHandler(collector, st, httphandler.Defaults{
		City:        cfg.DefaultCity,
		Country:     cfg.DefaultCountry,
		HoursWindow: cfg.HoursWindow,
	}, logger)
	router := httphandler.NewRouter(handler, logger, limiter)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
