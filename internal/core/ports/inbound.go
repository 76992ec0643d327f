package ports

import (
	"context"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
)

// RunSubmitter is the inbound contract for OCR run submission. Submission is
// asynchronous and idempotent: existing final artifacts short-circuit.
type RunSubmitter interface {
	Submit(ctx context.Context, fileID string, option domain.OCROption) (*domain.SubmitResult, error)
}

// RunProcessor executes one whole OCR run; invoked by the queue worker.
type RunProcessor interface {
	ProcessRun(ctx context.Context, runID string) error
}

// StatusReader builds the status document for a run or a source file.
type StatusReader interface {
	StatusByRunID(ctx context.Context, runID string) (*domain.StatusReport, error)
	StatusByFileID(ctx context.Context, fileID string) (*domain.StatusReport, error)
}

// ArtifactResolver locates a downloadable artifact on disk.
type ArtifactResolver interface {
	Resolve(ctx context.Context, fileID string, kind domain.ArtifactKind) (path, filename string, err error)
}

// RunReportExporter renders the run history as a spreadsheet.
type RunReportExporter interface {
	ExportXLSX(ctx context.Context) ([]byte, error)
}
