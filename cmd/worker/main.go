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

	"github.com/expatdesk/docvault/internal/bootstrap"
	"github.com/expatdesk/docvault/internal/config"
	"github.com/expatdesk/docvault/internal/observability/logging"
	"github.com/expatdesk/docvault/internal/observability/metrics"
)

func main() {
	cfg := config.Load()

	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app.ProcessUC.SetObserver(pipelineObserver{m: workerMetrics})
	metricsServer := startMetricsServer(cfg.WorkerMetricsPort, workerMetrics, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if cfg.RemindersEnabled {
		if err := app.ReminderDispatcher.Start(ctx, cfg.ReminderSchedule); err != nil {
			logger.Error("reminder dispatcher failed to start", "error", err)
			os.Exit(1)
		}
		logger.Info("reminder dispatcher started", "schedule", cfg.ReminderSchedule)
	}

	processTimeout := time.Duration(cfg.ProcessTimeoutSeconds) * time.Second

	logger.Info("worker subscribing", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeDocumentUploaded(ctx, func(msgCtx context.Context, documentID string) error {
		workerMetrics.StartDocument()
		start := time.Now()

		processCtx, cancel := context.WithTimeout(msgCtx, processTimeout)
		defer cancel()

		processErr := app.ProcessUC.ProcessByID(processCtx, documentID)
		workerMetrics.FinishDocument("worker", time.Since(start), processErr)
		if processErr != nil {
			logger.Error("document processing failed", "document_id", documentID, "error", processErr)
		}
		return processErr
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("subscription failed", "error", err)
		os.Exit(1)
	}

	logger.Info("worker stopped")
}

// pipelineObserver feeds processing telemetry into the worker metric set.
type pipelineObserver struct {
	m *metrics.WorkerMetrics
}

func (o pipelineObserver) ObserveQueueLag(lag time.Duration) {
	o.m.ObserveQueueLag("worker", lag)
}

func (o pipelineObserver) RecordVersionLink() {
	o.m.RecordVersionLink("worker")
}

func (o pipelineObserver) RecordRemindersDerived(count int) {
	o.m.RecordRemindersDerived("worker", count)
}

func startMetricsServer(port string, m *metrics.WorkerMetrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return server
}
