package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/expatdesk/docvault/internal/adapters/http"
	"github.com/expatdesk/docvault/internal/bootstrap"
	"github.com/expatdesk/docvault/internal/config"
	"github.com/expatdesk/docvault/internal/observability/logging"
	"github.com/expatdesk/docvault/internal/observability/metrics"
)

func main() {
	cfg := config.Load()

	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(app.IngestUC, app.QueryUC, httpadapter.Options{
		SimilarityThreshold: cfg.SimilarityThreshold,
		MaxUploadBytes:      int64(cfg.MaxUploadMB) << 20,
		RateLimitRPS:        cfg.APIRateLimitRPS,
		RateLimitBurst:      cfg.APIRateLimitBurst,
		Metrics:             metrics.NewHTTPServerMetrics("api"),
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
