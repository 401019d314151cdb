package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hmemcore/hmem/internal/api"
	"github.com/hmemcore/hmem/internal/config"
	"github.com/hmemcore/hmem/internal/engine"
	"github.com/hmemcore/hmem/internal/tuning"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfgManager, err := config.NewManager(os.Getenv("HMEM_CONFIG_FILE"), logger)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := cfgManager.Watch(ctx); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}

	metrics := tuning.NewMetrics(prometheus.DefaultRegisterer)

	// No host recall/workspace/web collaborators are wired at process
	// start — a host agent linking this as a sidecar supplies that
	// context per request through the active-retrieval endpoint's own
	// body, since the engine has no way to reach into a host's own tool
	// surface from inside this process.
	eng, err := engine.New(cfg, logger, engine.Deps{Metrics: metrics})
	if err != nil {
		logger.Error("failed to initialize engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	router := api.NewRouter(eng, eng.Recorder(), cfg.JWTSigningKey, cfg.RateLimitRPM, cfg.RateLimitBurst, logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stopCronWeekly := startWeeklyCron(ctx, eng, logger)
	defer stopCronWeekly()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("hmem server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

// startWeeklyCron runs the engine's maintenance pass once at startup and
// then every 7 days, since this process has no external cron scheduler of
// its own. Returns a stop function that cancels the loop.
func startWeeklyCron(ctx context.Context, eng *engine.Engine, logger *slog.Logger) func() {
	loopCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(7 * 24 * time.Hour)
		defer ticker.Stop()

		runOnce := func() {
			if err := eng.CronWeekly(loopCtx); err != nil {
				logger.Error("cron_weekly failed", "error", err)
			} else {
				logger.Info("cron_weekly complete")
			}
		}

		runOnce()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				runOnce()
			}
		}
	}()
	return cancel
}
