package usecase

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
)

type renditions struct {
	formattedPath string
	rawPath       string
}

// render produces the DOCX renditions next to the merged PDF. Renditions are
// best-effort: an unavailable or failing converter skips them without
// touching the run outcome, and the raw document exists only when the
// formatted one does.
func (uc *ProcessRunUseCase) render(
	ctx context.Context,
	run *domain.Run,
	rec *domain.OCRFile,
	loc domain.ArtifactLocation,
	ocrPDFPath string,
) renditions {
	if uc.converter == nil || !uc.converter.Available() {
		slog.Info("docx converter not configured, skipping renditions", "run_id", run.ID)
		return renditions{}
	}

	finalDir, err := uc.store.FinalDir(loc)
	if err != nil {
		slog.Warn("resolving final dir for renditions failed", "run_id", run.ID, "error", err)
		return renditions{}
	}

	formattedPath := filepath.Join(finalDir, "doc-"+uuid.NewString()+".docx")
	if err := uc.converter.ConvertToDocx(ctx, ocrPDFPath, formattedPath); err != nil {
		if domain.IsKind(err, domain.ErrConverterUnavailable) {
			slog.Info("docx converter unavailable, skipping renditions", "run_id", run.ID, "error", err)
		} else {
			slog.Warn("docx conversion failed, skipping renditions", "run_id", run.ID, "error", err)
		}
		return renditions{}
	}
	if err := uc.files.SetFormattedDocx(ctx, rec.ID, formattedPath); err != nil {
		slog.Warn("persisting formatted docx path failed", "run_id", run.ID, "error", err)
	}

	out := renditions{formattedPath: formattedPath}

	rawPath := filepath.Join(finalDir, "raw-"+uuid.NewString()+".docx")
	if uc.rawWriter == nil {
		return out
	}
	if err := uc.rawWriter.StripToRaw(formattedPath, rawPath); err != nil {
		slog.Warn("raw docx derivation failed", "run_id", run.ID, "error", err)
		return out
	}
	if err := uc.files.SetRawDocx(ctx, rec.ID, rawPath); err != nil {
		slog.Warn("persisting raw docx path failed", "run_id", run.ID, "error", err)
	}
	out.rawPath = rawPath
	return out
}
