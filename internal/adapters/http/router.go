package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
	"github.com/kirillkom/document-ocr-service/internal/core/ports"
	"github.com/kirillkom/document-ocr-service/internal/observability/metrics"
)

const (
	serviceName = "ocr-api"

	backpressureMaxInFlight = 64
	backpressureWait        = 2 * time.Second
)

// Router wires the public HTTP surface of the OCR service: submission,
// status, artifact download and the run history export.
type Router struct {
	submitter ports.RunSubmitter
	status    ports.StatusReader
	resolver  ports.ArtifactResolver
	reporter  ports.RunReportExporter
	metrics   *metrics.HTTPServerMetrics

	rateLimitRPS   float64
	rateLimitBurst int
}

func NewRouter(
	submitter ports.RunSubmitter,
	status ports.StatusReader,
	resolver ports.ArtifactResolver,
	reporter ports.RunReportExporter,
	httpMetrics *metrics.HTTPServerMetrics,
	rateLimitRPS float64,
	rateLimitBurst int,
) *Router {
	return &Router{
		submitter:      submitter,
		status:         status,
		resolver:       resolver,
		reporter:       reporter,
		metrics:        httpMetrics,
		rateLimitRPS:   rateLimitRPS,
		rateLimitBurst: rateLimitBurst,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", rt.handleHealth)
	mux.HandleFunc("POST /v1/ocr/submit", rt.handleSubmit)
	mux.HandleFunc("GET /v1/ocr/status", rt.handleStatus)
	mux.HandleFunc("GET /v1/ocr/download/{file_id}", rt.handleDownload)
	mux.HandleFunc("GET /v1/ocr/runs/export", rt.handleExport)
	mux.Handle("GET /metrics", rt.metrics.Handler())

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, backpressureMaxInFlight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitRequest struct {
	FileID    string `json:"file_id"`
	OCROption string `json:"ocr_option"`
}

func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rt.metrics.RecordSubmission(serviceName, "rejected")
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "decode submit request", err))
		return
	}

	option := domain.OptionBasic
	if strings.TrimSpace(req.OCROption) != "" {
		parsed, err := domain.ParseOCROption(req.OCROption)
		if err != nil {
			rt.metrics.RecordSubmission(serviceName, "rejected")
			writeError(w, err)
			return
		}
		option = parsed
	}

	result, err := rt.submitter.Submit(r.Context(), req.FileID, option)
	if err != nil {
		rt.metrics.RecordSubmission(serviceName, "rejected")
		writeError(w, err)
		return
	}

	if result.AlreadyProcessed {
		rt.metrics.RecordSubmission(serviceName, "already_processed")
		writeJSON(w, http.StatusOK, result)
		return
	}
	rt.metrics.RecordSubmission(serviceName, "accepted")
	writeJSON(w, http.StatusAccepted, result)
}

func (rt *Router) handleStatus(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.URL.Query().Get("run_id"))
	fileID := strings.TrimSpace(r.URL.Query().Get("file_id"))

	var (
		report *domain.StatusReport
		err    error
	)
	switch {
	case runID != "":
		report, err = rt.status.StatusByRunID(r.Context(), runID)
	case fileID != "":
		report, err = rt.status.StatusByFileID(r.Context(), fileID)
	default:
		err = domain.WrapError(domain.ErrInvalidInput, "status query",
			errors.New("either run_id or file_id is required"))
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) handleDownload(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("file_id")

	kind := domain.ArtifactOCRPDF
	if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
		parsed, err := domain.ParseArtifactKind(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		kind = parsed
	}

	path, filename, err := rt.resolver.Resolve(r.Context(), fileID, kind)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, path)
}

func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := rt.reporter.ExportXLSX(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	filename := "ocr-runs-" + time.Now().UTC().Format("2006-01-02") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Error("write export response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		slog.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encode response", "error", err)
	}
}
