package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qprlabs/kpi-engine/internal/bootstrap"
	"github.com/qprlabs/kpi-engine/internal/config"
	"github.com/qprlabs/kpi-engine/internal/observability/logging"
	"github.com/qprlabs/kpi-engine/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	go func() {
		slog.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := http.ListenAndServe(":"+cfg.WorkerMetricsPort, workerMetrics.Handler()); err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server error", "error", err)
		}
	}()

	slog.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeAnalysisStaged(ctx, func(handlerCtx context.Context, analysisID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		start := time.Now()
		if analysis, err := app.Analyses.GetByID(processCtx, analysisID); err == nil {
			workerMetrics.ObserveQueueLag("worker", start.Sub(analysis.CreatedAt))
		}

		workerMetrics.StartAnalysis()
		processErr := app.ProcessUC.ProcessByID(processCtx, analysisID)
		workerMetrics.FinishAnalysis("worker", time.Since(start), processErr)

		if processErr == nil {
			if staged, err := app.Activities.ListByAnalysis(processCtx, analysisID); err == nil {
				workerMetrics.ObserveStagedActivities("worker", len(staged))
			}
		}
		return processErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
