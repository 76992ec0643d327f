package ports

import (
	"context"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
)

// RunRepository persists run state.
type RunRepository interface {
	Create(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id string) (*domain.Run, error)
	UpdateStatus(ctx context.Context, id string, status domain.RunStatus, errMessage string) error
	ListRecent(ctx context.Context, limit int) ([]domain.Run, error)
}

// OCRFileRepository persists per-(file, option) processing records and the
// registry responses for their derived artifacts.
type OCRFileRepository interface {
	// GetOrCreate enforces the at-most-one-active-record-per-pair rule:
	// it inserts rec unless a record for (rec.FileID, rec.Option) already
	// exists, and returns the surviving record either way.
	GetOrCreate(ctx context.Context, rec *domain.OCRFile) (*domain.OCRFile, error)
	GetByRunID(ctx context.Context, runID string) (*domain.OCRFile, error)
	GetByFile(ctx context.Context, fileID string, option domain.OCROption) (*domain.OCRFile, error)
	UpdateStatus(ctx context.Context, id string, status domain.FileStatus) error
	SetMergedArtifact(ctx context.Context, id, ocrPath string, failedBatches int, missingTextPages string) error
	SetFormattedDocx(ctx context.Context, id, path string) error
	SetRawDocx(ctx context.Context, id, path string) error
	SaveRegisteredOutput(ctx context.Context, runID string, rf domain.RegisteredFile) error
	ListRegisteredOutputs(ctx context.Context, runID string) ([]domain.RegisteredFile, error)
}

// MessageQueue distributes submitted runs across worker processes.
type MessageQueue interface {
	PublishRunSubmitted(ctx context.Context, runID string) error
	SubscribeRunSubmitted(ctx context.Context, handler func(context.Context, string) error) error
}

// FileRegistry is the external file-tracking service. It resolves uploaded
// files and assigns durable identifiers to every derived artifact.
type FileRegistry interface {
	Lookup(ctx context.Context, fileID string) (*domain.SourceFile, error)
	Register(ctx context.Context, runID, path string, kind domain.ArtifactKind) (domain.RegisteredFile, error)
}

// PDFToolkit wraps the PDF page-tree operations the pipeline needs.
type PDFToolkit interface {
	// Validate reports ErrNotPDF when path is not parseable as a PDF.
	Validate(path string) error
	PageCount(path string) (int, error)
	ExtractPages(src, dst string, r domain.PageRange) error
	Merge(srcs []string, dst string) error
	// Bookmarks returns the flattened outline; a document without an
	// outline yields an empty list, not an error.
	Bookmarks(path string) ([]domain.Bookmark, error)
	// WriteBookmarks replaces the outline of path, always rewriting the
	// whole container (never an incremental save).
	WriteBookmarks(path string, bookmarks []domain.Bookmark) error
}

// OCREngine turns one PDF into a text-searchable PDF. Implementations are
// stateless and safe to re-run against the same input; they overwrite their
// own prior output.
type OCREngine interface {
	Name() string
	Run(ctx context.Context, inPath, outPath string) error
}

// DocumentConverter is the external PDF-to-DOCX conversion engine.
// An unconfigured converter reports Available() == false and the formatted
// rendition is skipped, which is not a failure.
type DocumentConverter interface {
	Available() bool
	ConvertToDocx(ctx context.Context, pdfPath, docxPath string) error
}

// RawDocxWriter derives the plain-text DOCX from the formatted one.
type RawDocxWriter interface {
	StripToRaw(formattedPath, rawPath string) error
}

// TextVerifier counts pages carrying an extractable text layer, used to
// surface silent OCR degradation in run metadata.
type TextVerifier interface {
	PagesWithText(path string) (withText, total int, err error)
}

// ArtifactStore owns the on-disk layout <base>/<file>/ocr/<option>/{tmp,final}.
type ArtifactStore interface {
	TmpDir(loc domain.ArtifactLocation) (string, error)
	NewBatchInputPath(loc domain.ArtifactLocation) (string, error)
	// NewBatchOutputPath encodes r into the filename so the page range of
	// an orphaned output can be recovered after a crash.
	NewBatchOutputPath(loc domain.ArtifactLocation, r domain.PageRange) (string, error)
	// ListBatchOutputs returns OCR'd batch files under the location's tmp
	// dir with their page ranges, ordered by ascending start page. When
	// that dir holds none but the sibling option's does (layout drift from
	// a prior partial run), the sibling's files are returned with
	// altLayout set.
	ListBatchOutputs(loc domain.ArtifactLocation) (batches []domain.RecoveredBatch, altLayout bool, err error)
	// PromoteFinal moves a tmp artifact into final/ under name.
	PromoteFinal(loc domain.ArtifactLocation, tmpPath, name string) (string, error)
	// ExistingFinalPDF reports a previously merged OCR PDF, if any.
	ExistingFinalPDF(loc domain.ArtifactLocation) (path string, ok bool, err error)
	FinalDir(loc domain.ArtifactLocation) (string, error)
	CleanupTmp(loc domain.ArtifactLocation) error
}

// RunReportBuilder renders runs into a spreadsheet.
type RunReportBuilder interface {
	BuildXLSX(runs []domain.Run) ([]byte, error)
}
