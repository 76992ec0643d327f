package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	runsInFlight  prometheus.Gauge
	queueLag      *prometheus.HistogramVec
	batchTotal    *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	fanInWait     *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocr",
			Subsystem: "worker",
			Name:      "runs_total",
			Help:      "Total processed OCR runs by status.",
		},
		[]string{"service", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ocr",
			Subsystem: "worker",
			Name:      "run_duration_seconds",
			Help:      "Whole-run processing duration in seconds by status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		},
		[]string{"service", "status"},
	)
	runsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ocr",
			Subsystem: "worker",
			Name:      "runs_in_flight",
			Help:      "Number of in-flight OCR runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ocr",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between run submission and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	batchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocr",
			Subsystem: "worker",
			Name:      "batch_ocr_total",
			Help:      "Total OCR batch executions by engine and status.",
		},
		[]string{"service", "engine", "status"},
	)
	batchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ocr",
			Subsystem: "worker",
			Name:      "batch_ocr_duration_seconds",
			Help:      "Per-batch OCR duration in seconds by engine.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"service", "engine"},
	)
	fanInWait := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ocr",
			Subsystem: "worker",
			Name:      "fan_in_wait_seconds",
			Help:      "Time the merger spends waiting for the last batch.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"service"},
	)

	registry.MustRegister(runsTotal, runDuration, runsInFlight, queueLag, batchTotal, batchDuration, fanInWait)

	return &WorkerMetrics{
		registry:      registry,
		runsTotal:     runsTotal,
		runDuration:   runDuration,
		runsInFlight:  runsInFlight,
		queueLag:      queueLag,
		batchTotal:    batchTotal,
		batchDuration: batchDuration,
		fanInWait:     fanInWait,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartRun() {
	m.runsInFlight.Inc()
}

func (m *WorkerMetrics) FinishRun(service string, duration time.Duration, err error) {
	m.runsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.runsTotal.WithLabelValues(service, status).Inc()
	m.runDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) ObserveBatch(service, engine string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.batchTotal.WithLabelValues(service, engine, status).Inc()
	m.batchDuration.WithLabelValues(service, engine).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveFanInWait(service string, wait time.Duration) {
	if wait < 0 {
		return
	}
	m.fanInWait.WithLabelValues(service).Observe(wait.Seconds())
}
