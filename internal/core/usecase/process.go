package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
	"github.com/kirillkom/document-ocr-service/internal/core/ports"
)

// PipelineObserver receives stage-level timing signals. The worker binary
// plugs its metrics in here; everything else runs with the no-op.
type PipelineObserver interface {
	ObserveBatch(engine string, duration time.Duration, err error)
	ObserveFanInWait(wait time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveBatch(string, time.Duration, error) {}
func (nopObserver) ObserveFanInWait(time.Duration)            {}

type ProcessRunUseCase struct {
	runs      ports.RunRepository
	files     ports.OCRFileRepository
	registry  ports.FileRegistry
	toolkit   ports.PDFToolkit
	engines   map[domain.OCROption]ports.OCREngine
	store     ports.ArtifactStore
	converter ports.DocumentConverter
	rawWriter ports.RawDocxWriter
	verifier  ports.TextVerifier

	batchSize   int
	maxParallel int
	observer    PipelineObserver
}

func NewProcessRunUseCase(
	runs ports.RunRepository,
	files ports.OCRFileRepository,
	registry ports.FileRegistry,
	toolkit ports.PDFToolkit,
	engines map[domain.OCROption]ports.OCREngine,
	store ports.ArtifactStore,
	converter ports.DocumentConverter,
	rawWriter ports.RawDocxWriter,
	verifier ports.TextVerifier,
	batchSize int,
	maxParallel int,
) *ProcessRunUseCase {
	if batchSize <= 0 {
		batchSize = 10
	}
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &ProcessRunUseCase{
		runs:        runs,
		files:       files,
		registry:    registry,
		toolkit:     toolkit,
		engines:     engines,
		store:       store,
		converter:   converter,
		rawWriter:   rawWriter,
		verifier:    verifier,
		batchSize:   batchSize,
		maxParallel: maxParallel,
		observer:    nopObserver{},
	}
}

func (uc *ProcessRunUseCase) SetObserver(observer PipelineObserver) {
	if observer != nil {
		uc.observer = observer
	}
}

// ProcessRun executes one full attempt of an OCR run. The caller owns retry:
// a returned error leaves the run in processing so a later attempt can pick
// it up; MarkRunFailed settles the record once attempts are exhausted.
func (uc *ProcessRunUseCase) ProcessRun(ctx context.Context, runID string) error {
	run, err := uc.runs.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("fetch run by id: %w", err)
	}
	if run.Status.Terminal() {
		slog.Info("run already settled, skipping", "run_id", runID, "status", string(run.Status))
		return nil
	}
	if run.Status == domain.RunPending {
		if err := uc.transitionRun(ctx, run, domain.RunProcessing, ""); err != nil {
			return err
		}
	}

	rec, err := uc.ensureFileRecord(ctx, run)
	if err != nil {
		return err
	}

	source, err := uc.registry.Lookup(ctx, run.FileID)
	if err != nil {
		return fmt.Errorf("resolve source file: %w", err)
	}

	loc := domain.ArtifactLocation{RunID: run.ID, FileID: run.FileID, Option: run.Option}

	// A prior attempt may already have produced the final PDF.
	if finalPath, ok, err := uc.store.ExistingFinalPDF(loc); err == nil && ok {
		slog.Info("final artifact already present, skipping ocr",
			"run_id", run.ID, "path", finalPath)
		return uc.settleMerged(ctx, run, rec, loc, finalPath, 0, "")
	}

	// Non-PDF input completes the run without OCR instead of failing it.
	if err := uc.toolkit.Validate(source.Path); err != nil {
		if domain.IsKind(err, domain.ErrNotPDF) {
			return uc.completeSkipped(ctx, run, rec)
		}
		return fmt.Errorf("validate source pdf: %w", err)
	}

	bookmarks := uc.loadBookmarks(run.ID, source.Path)

	batches, totalPages, err := uc.burst(ctx, source.Path, loc)
	if err != nil {
		return err
	}

	engine, ok := uc.engines[run.Option]
	if !ok {
		return domain.WrapError(domain.ErrInvalidInput, "select ocr engine",
			fmt.Errorf("no engine for option %q", string(run.Option)))
	}

	results := uc.runBatches(ctx, engine, loc, batches)

	finalPath, failedBatches, missingPages, err := uc.merge(loc, totalPages, bookmarks, results)
	if err != nil {
		return err
	}

	if err := uc.settleMerged(ctx, run, rec, loc, finalPath, failedBatches, missingPages); err != nil {
		return err
	}
	return nil
}

// MarkRunFailed settles a run after the caller has exhausted its attempts.
// A run that already reached a terminal status is left alone.
func (uc *ProcessRunUseCase) MarkRunFailed(ctx context.Context, runID string, cause error) error {
	msg := "processing failed"
	if cause != nil {
		msg = cause.Error()
	}
	run, err := uc.runs.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("fetch run by id: %w", err)
	}
	if run.Status.Terminal() {
		slog.Info("run already settled, not marking failed",
			"run_id", runID, "status", string(run.Status))
		return nil
	}
	if err := uc.transitionRun(ctx, run, domain.RunFailed, msg); err != nil {
		return err
	}
	if rec, err := uc.files.GetByRunID(ctx, runID); err == nil && rec.Status.CanTransition(domain.FileFailed) {
		if err := uc.transitionFile(ctx, rec, domain.FileFailed); err != nil {
			return err
		}
	}
	return nil
}

// transitionRun guards the run state machine: an illegal move surfaces as
// ErrStateConflict instead of silently overwriting a settled record.
func (uc *ProcessRunUseCase) transitionRun(ctx context.Context, run *domain.Run, to domain.RunStatus, message string) error {
	if !run.Status.CanTransition(to) {
		return domain.WrapError(domain.ErrStateConflict, "transition run",
			fmt.Errorf("%s cannot move to %s", string(run.Status), string(to)))
	}
	if err := uc.runs.UpdateStatus(ctx, run.ID, to, message); err != nil {
		return fmt.Errorf("set status=%s: %w", string(to), err)
	}
	run.Status = to
	return nil
}

func (uc *ProcessRunUseCase) transitionFile(ctx context.Context, rec *domain.OCRFile, to domain.FileStatus) error {
	if !rec.Status.CanTransition(to) {
		return domain.WrapError(domain.ErrStateConflict, "transition ocr file",
			fmt.Errorf("%s cannot move to %s", string(rec.Status), string(to)))
	}
	if err := uc.files.UpdateStatus(ctx, rec.ID, to); err != nil {
		return fmt.Errorf("set file status=%s: %w", string(to), err)
	}
	rec.Status = to
	return nil
}

func (uc *ProcessRunUseCase) ensureFileRecord(ctx context.Context, run *domain.Run) (*domain.OCRFile, error) {
	now := time.Now().UTC()
	rec, err := uc.files.GetOrCreate(ctx, &domain.OCRFile{
		ID:        uuid.NewString(),
		RunID:     run.ID,
		FileID:    run.FileID,
		Option:    run.Option,
		Status:    domain.FileProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure ocr file record: %w", err)
	}
	return rec, nil
}

func (uc *ProcessRunUseCase) completeSkipped(ctx context.Context, run *domain.Run, rec *domain.OCRFile) error {
	const msg = "OCR skipped, not a PDF"
	if rec.Status.CanTransition(domain.FileCompleted) {
		if err := uc.transitionFile(ctx, rec, domain.FileCompleted); err != nil {
			return err
		}
	}
	if err := uc.transitionRun(ctx, run, domain.RunCompleted, msg); err != nil {
		return err
	}
	slog.Info("run completed without ocr", "run_id", run.ID, "reason", msg)
	return nil
}

// loadBookmarks never fails the run: a document whose outline cannot be read
// is processed without bookmarks.
func (uc *ProcessRunUseCase) loadBookmarks(runID, path string) []domain.Bookmark {
	bookmarks, err := uc.toolkit.Bookmarks(path)
	if err != nil {
		slog.Warn("bookmark extraction failed, continuing without outline",
			"run_id", runID, "error", err)
		return nil
	}
	return bookmarks
}

// burst splits the source into page-range batch PDFs under the run's tmp dir.
func (uc *ProcessRunUseCase) burst(_ context.Context, srcPath string, loc domain.ArtifactLocation) ([]domain.Batch, int, error) {
	totalPages, err := uc.toolkit.PageCount(srcPath)
	if err != nil {
		return nil, 0, fmt.Errorf("count source pages: %w", err)
	}
	if totalPages <= 0 {
		return nil, 0, domain.WrapError(domain.ErrInvalidInput, "burst pdf", errors.New("document has no pages"))
	}

	ranges := domain.SplitPages(totalPages, uc.batchSize)
	batches := make([]domain.Batch, 0, len(ranges))
	for _, r := range ranges {
		path, err := uc.store.NewBatchInputPath(loc)
		if err != nil {
			return nil, 0, fmt.Errorf("allocate batch path: %w", err)
		}
		if err := uc.toolkit.ExtractPages(srcPath, path, r); err != nil {
			return nil, 0, fmt.Errorf("extract pages %s: %w", r.String(), err)
		}
		batches = append(batches, domain.Batch{Range: r, Path: path})
	}
	return batches, totalPages, nil
}

func (uc *ProcessRunUseCase) settleMerged(
	ctx context.Context,
	run *domain.Run,
	rec *domain.OCRFile,
	loc domain.ArtifactLocation,
	finalPath string,
	failedBatches int,
	missingPages string,
) error {
	if err := uc.files.SetMergedArtifact(ctx, rec.ID, finalPath, failedBatches, missingPages); err != nil {
		return fmt.Errorf("persist merged artifact: %w", err)
	}
	if rec.Status == domain.FileProcessing {
		if err := uc.transitionFile(ctx, rec, domain.FileProcessed); err != nil {
			return err
		}
	}

	rendered := uc.render(ctx, run, rec, loc, finalPath)

	uc.register(ctx, run.ID, finalPath, domain.ArtifactOCRPDF)
	if rendered.formattedPath != "" {
		uc.register(ctx, run.ID, rendered.formattedPath, domain.ArtifactFormattedDocx)
	}
	if rendered.rawPath != "" {
		uc.register(ctx, run.ID, rendered.rawPath, domain.ArtifactRawDocx)
	}

	if rec.Status.CanTransition(domain.FileCompleted) {
		if err := uc.transitionFile(ctx, rec, domain.FileCompleted); err != nil {
			return err
		}
	}
	if err := uc.transitionRun(ctx, run, domain.RunCompleted, ""); err != nil {
		return err
	}
	return nil
}

// register failures degrade to a warning: the artifact exists on disk and the
// run should not fail because the registry briefly does not answer.
func (uc *ProcessRunUseCase) register(ctx context.Context, runID, path string, kind domain.ArtifactKind) {
	registered, err := uc.registry.Register(ctx, runID, path, kind)
	if err != nil {
		slog.Warn("artifact registration failed",
			"run_id", runID, "kind", string(kind), "path", path, "error", err)
		return
	}
	if err := uc.files.SaveRegisteredOutput(ctx, runID, registered); err != nil {
		slog.Warn("saving registered output failed",
			"run_id", runID, "kind", string(kind), "error", err)
	}
}
