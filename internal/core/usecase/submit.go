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

type SubmitRunUseCase struct {
	runs     ports.RunRepository
	files    ports.OCRFileRepository
	registry ports.FileRegistry
	store    ports.ArtifactStore
	queue    ports.MessageQueue
}

func NewSubmitRunUseCase(
	runs ports.RunRepository,
	files ports.OCRFileRepository,
	registry ports.FileRegistry,
	store ports.ArtifactStore,
	queue ports.MessageQueue,
) *SubmitRunUseCase {
	return &SubmitRunUseCase{
		runs:     runs,
		files:    files,
		registry: registry,
		store:    store,
		queue:    queue,
	}
}

// Submit accepts an OCR request, records a pending run and hands it to the
// queue. Files whose final OCR PDF already exists short-circuit without
// enqueueing anything.
func (uc *SubmitRunUseCase) Submit(ctx context.Context, fileID string, option domain.OCROption) (*domain.SubmitResult, error) {
	if fileID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit run", errors.New("empty file id"))
	}

	if _, err := uc.registry.Lookup(ctx, fileID); err != nil {
		return nil, fmt.Errorf("resolve source file: %w", err)
	}

	loc := domain.ArtifactLocation{FileID: fileID, Option: option}
	if finalPath, ok, err := uc.store.ExistingFinalPDF(loc); err == nil && ok {
		result := &domain.SubmitResult{
			Status:           domain.RunCompleted,
			Message:          "file already processed",
			AlreadyProcessed: true,
		}
		rec, recErr := uc.files.GetByFile(ctx, fileID, option)
		switch {
		case recErr == nil:
			result.RunID = rec.RunID
		case domain.IsKind(recErr, domain.ErrFileNotFound):
			// The artifact outlived its database rows. Rebuild them so the
			// response carries a run id that status and download resolve.
			runID, restoreErr := uc.restoreCompletedRecords(ctx, fileID, option, finalPath)
			if restoreErr != nil {
				return nil, restoreErr
			}
			result.RunID = runID
		default:
			return nil, fmt.Errorf("resolve prior run: %w", recErr)
		}
		return result, nil
	}

	now := time.Now().UTC()
	run := &domain.Run{
		ID:        uuid.NewString(),
		FileID:    fileID,
		Option:    option,
		Status:    domain.RunPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	if err := uc.queue.PublishRunSubmitted(ctx, run.ID); err != nil {
		if failErr := uc.runs.UpdateStatus(ctx, run.ID, domain.RunFailed, "enqueue failed: "+err.Error()); failErr != nil {
			return nil, fmt.Errorf("publish run event: %w; mark failed status: %v", err, failErr)
		}
		return nil, fmt.Errorf("publish run event: %w", err)
	}

	return &domain.SubmitResult{
		RunID:  run.ID,
		Status: domain.RunPending,
	}, nil
}

func (uc *SubmitRunUseCase) restoreCompletedRecords(
	ctx context.Context,
	fileID string,
	option domain.OCROption,
	finalPath string,
) (string, error) {
	now := time.Now().UTC()
	run := &domain.Run{
		ID:        uuid.NewString(),
		FileID:    fileID,
		Option:    option,
		Status:    domain.RunCompleted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.runs.Create(ctx, run); err != nil {
		return "", fmt.Errorf("restore run record: %w", err)
	}
	if _, err := uc.files.GetOrCreate(ctx, &domain.OCRFile{
		ID:        uuid.NewString(),
		RunID:     run.ID,
		FileID:    fileID,
		Option:    option,
		Status:    domain.FileCompleted,
		OCRPath:   finalPath,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		// The run record alone is enough for the response; the file row is
		// queryability, not correctness.
		slog.Warn("restoring ocr file record failed",
			"run_id", run.ID, "file_id", fileID, "error", err)
	}
	slog.Info("restored records for orphaned final artifact",
		"run_id", run.ID, "file_id", fileID, "path", finalPath)
	return run.ID, nil
}
