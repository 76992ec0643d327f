package usecase

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
	"github.com/kirillkom/document-ocr-service/internal/core/ports"
)

// pathUnavailable is the documented placeholder for artifacts that were never
// produced, so a caller can tell "OCR complete, DOCX unavailable" apart from a
// hard failure.
const pathUnavailable = "N/A"

func pathOrUnavailable(path string) string {
	if path == "" {
		return pathUnavailable
	}
	return path
}

type StatusUseCase struct {
	runs     ports.RunRepository
	files    ports.OCRFileRepository
	registry ports.FileRegistry
}

func NewStatusUseCase(
	runs ports.RunRepository,
	files ports.OCRFileRepository,
	registry ports.FileRegistry,
) *StatusUseCase {
	return &StatusUseCase{
		runs:     runs,
		files:    files,
		registry: registry,
	}
}

func (uc *StatusUseCase) StatusByRunID(ctx context.Context, runID string) (*domain.StatusReport, error) {
	run, err := uc.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("fetch run by id: %w", err)
	}

	report := &domain.StatusReport{
		RunID:             run.ID,
		FileID:            run.FileID,
		Option:            run.Option,
		Status:            run.Status,
		ErrorMessage:      run.ErrorMessage,
		OriginalFilePath:  pathUnavailable,
		OCRFilePath:       pathUnavailable,
		FormattedDocxPath: pathUnavailable,
		RawDocxPath:       pathUnavailable,
		RegisteredOutputs: []domain.RegisteredFile{},
		CreatedAt:         run.CreatedAt,
		UpdatedAt:         run.UpdatedAt,
	}

	// The file record and the registry enrich the report; their absence never
	// hides the run state itself.
	if rec, err := uc.files.GetByRunID(ctx, runID); err == nil {
		report.OCRFilePath = pathOrUnavailable(rec.OCRPath)
		report.FormattedDocxPath = pathOrUnavailable(rec.FormattedDocxPath)
		report.RawDocxPath = pathOrUnavailable(rec.RawDocxPath)
		report.FailedBatches = rec.FailedBatches
		report.MissingTextPages = rec.MissingTextPages
	}
	if source, err := uc.registry.Lookup(ctx, run.FileID); err == nil {
		report.OriginalFilePath = source.Path
	}
	if outputs, err := uc.files.ListRegisteredOutputs(ctx, runID); err == nil && len(outputs) > 0 {
		report.RegisteredOutputs = outputs
	}
	return report, nil
}

func (uc *StatusUseCase) StatusByFileID(ctx context.Context, fileID string) (*domain.StatusReport, error) {
	rec, err := uc.latestFileRecord(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return uc.StatusByRunID(ctx, rec.RunID)
}

// latestFileRecord resolves the most recently touched record across both OCR
// options for a source file.
func (uc *StatusUseCase) latestFileRecord(ctx context.Context, fileID string) (*domain.OCRFile, error) {
	var latest *domain.OCRFile
	for _, option := range []domain.OCROption{domain.OptionBasic, domain.OptionAdvanced} {
		rec, err := uc.files.GetByFile(ctx, fileID, option)
		if err != nil {
			if domain.IsKind(err, domain.ErrFileNotFound) {
				continue
			}
			return nil, fmt.Errorf("fetch ocr file: %w", err)
		}
		if latest == nil || rec.UpdatedAt.After(latest.UpdatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, domain.WrapError(domain.ErrFileNotFound, "status by file", errNoRecord(fileID))
	}
	return latest, nil
}

type errNoRecord string

func (e errNoRecord) Error() string {
	return "no ocr record for file: " + string(e)
}

// Resolve locates a downloadable artifact for a source file.
func (uc *StatusUseCase) Resolve(ctx context.Context, fileID string, kind domain.ArtifactKind) (string, string, error) {
	if kind == domain.ArtifactOriginal {
		source, err := uc.registry.Lookup(ctx, fileID)
		if err != nil {
			return "", "", fmt.Errorf("resolve source file: %w", err)
		}
		return source.Path, source.Filename, nil
	}

	rec, err := uc.latestFileRecord(ctx, fileID)
	if err != nil {
		return "", "", err
	}

	var path string
	switch kind {
	case domain.ArtifactOCRPDF:
		path = rec.OCRPath
	case domain.ArtifactFormattedDocx:
		path = rec.FormattedDocxPath
	case domain.ArtifactRawDocx:
		path = rec.RawDocxPath
	default:
		return "", "", domain.WrapError(domain.ErrInvalidInput, "resolve artifact", errInvalidKindRequest(kind))
	}
	if path == "" {
		return "", "", domain.WrapError(domain.ErrArtifactNotFound, "resolve artifact", errMissingArtifact(kind))
	}
	return path, filepath.Base(path), nil
}

type errInvalidKindRequest domain.ArtifactKind

func (e errInvalidKindRequest) Error() string {
	return "unsupported artifact kind: " + string(e)
}

type errMissingArtifact domain.ArtifactKind

func (e errMissingArtifact) Error() string {
	return "artifact not produced: " + string(e)
}
