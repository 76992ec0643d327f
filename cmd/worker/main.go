package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/document-ocr-service/internal/bootstrap"
	"github.com/kirillkom/document-ocr-service/internal/config"
	"github.com/kirillkom/document-ocr-service/internal/infrastructure/resilience"
	"github.com/kirillkom/document-ocr-service/internal/observability/logging"
	"github.com/kirillkom/document-ocr-service/internal/observability/metrics"
)

const serviceName = "ocr-worker"

// runClassifier retries every run failure except context cancellation; a
// whole-run retry re-reads all state from the database and the disk, so
// re-execution after any error is safe.
func runClassifier(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

// pipelineMetrics adapts WorkerMetrics to the pipeline observer contract.
type pipelineMetrics struct {
	m *metrics.WorkerMetrics
}

func (p pipelineMetrics) ObserveBatch(engine string, duration time.Duration, err error) {
	p.m.ObserveBatch(serviceName, engine, duration, err)
}

func (p pipelineMetrics) ObserveFanInWait(wait time.Duration) {
	p.m.ObserveFanInWait(serviceName, wait)
}

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app.ProcessUC.SetObserver(pipelineMetrics{m: workerMetrics})

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:        ":" + cfg.WorkerMetricsPort,
		Handler:     metricsMux,
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeRunSubmitted(ctx, func(handlerCtx context.Context, runID string) error {
		return handleRun(handlerCtx, app, workerMetrics, runID)
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

// handleRun executes one submitted run under the whole-run retry policy and
// settles the run as failed once the attempts are exhausted.
func handleRun(ctx context.Context, app *bootstrap.App, workerMetrics *metrics.WorkerMetrics, runID string) error {
	if report, err := app.StatusUC.StatusByRunID(ctx, runID); err == nil {
		workerMetrics.ObserveQueueLag(serviceName, time.Since(report.CreatedAt))
	}

	workerMetrics.StartRun()
	start := time.Now()

	err := app.RunExecutor.Execute(ctx, "run.process", func(execCtx context.Context) error {
		return app.ProcessUC.ProcessRun(execCtx, runID)
	}, runClassifier)
	workerMetrics.FinishRun(serviceName, time.Since(start), err)
	if err == nil {
		return nil
	}

	slog.Error("run attempts exhausted", "run_id", runID, "error", err)
	if markErr := app.ProcessUC.MarkRunFailed(ctx, runID, err); markErr != nil {
		slog.Error("mark run failed", "run_id", runID, "error", markErr)
	}
	return err
}
