package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
)

// merge is the fan-in barrier: it waits on nothing (the caller already
// collected every result), sorts the surviving batches by start page, merges
// them, reattaches the outline and promotes the result into final/.
// Partial batch failures degrade to run metadata; only zero survivors fail.
func (uc *ProcessRunUseCase) merge(
	loc domain.ArtifactLocation,
	totalPages int,
	bookmarks []domain.Bookmark,
	results []domain.BatchResult,
) (finalPath string, failedBatches int, missingPages string, err error) {
	successes := make([]domain.BatchResult, 0, len(results))
	for _, result := range results {
		if result.Failed() {
			failedBatches++
			slog.Warn("ocr batch failed, pages will lack a text layer",
				"run_id", loc.RunID,
				"pages", result.Batch.Range.String(),
				"error", result.Err,
			)
			continue
		}
		successes = append(successes, result)
	}
	missingPages = domain.MissingTextPages(results)

	domain.SortResultsByStartPage(successes)
	sources := make([]string, 0, len(successes))
	for _, result := range successes {
		sources = append(sources, result.OCRPath)
	}

	if len(sources) == 0 {
		// A prior attempt may have OCR'd the batches and crashed before
		// merging; recover its outputs from disk before giving up.
		recovered, altLayout, listErr := uc.store.ListBatchOutputs(loc)
		if listErr != nil {
			return "", 0, "", fmt.Errorf("list batch outputs: %w", listErr)
		}
		if len(recovered) == 0 {
			return "", 0, "", domain.WrapError(domain.ErrTemporary, "merge batches", errors.New("no OCR batches found"))
		}
		if altLayout {
			slog.Warn("recovered batch outputs from sibling option layout", "run_id", loc.RunID)
		}

		// Page order comes from the ranges encoded in the recovered
		// filenames, never from listing order.
		domain.SortRecoveredByStartPage(recovered)
		recoveredRanges := make(map[string]bool, len(recovered))
		for _, rb := range recovered {
			sources = append(sources, rb.Path)
			recoveredRanges[rb.Range.String()] = true
		}

		// Batches the prior attempt already OCR'd are not failures; only
		// ranges no output covers stay in the degradation metadata.
		var unrecovered []domain.BatchResult
		for _, res := range results {
			if res.Failed() && !recoveredRanges[res.Batch.Range.String()] {
				unrecovered = append(unrecovered, res)
			}
		}
		failedBatches = len(unrecovered)
		missingPages = domain.MissingTextPages(unrecovered)
	}

	tmpDir, err := uc.store.TmpDir(loc)
	if err != nil {
		return "", 0, "", fmt.Errorf("resolve tmp dir: %w", err)
	}
	mergedPath := filepath.Join(tmpDir, "merged-"+uuid.NewString()+".pdf")
	if err := uc.toolkit.Merge(sources, mergedPath); err != nil {
		return "", 0, "", fmt.Errorf("merge ocr batches: %w", err)
	}

	uc.reattachBookmarks(loc.RunID, mergedPath, totalPages, bookmarks)
	uc.verifyTextLayer(loc.RunID, mergedPath)

	finalName := "ocr-" + uuid.NewString() + ".pdf"
	finalPath, err = uc.store.PromoteFinal(loc, mergedPath, finalName)
	if err != nil {
		return "", 0, "", fmt.Errorf("promote merged pdf: %w", err)
	}

	// The tmp tree is removed only now that final/ holds the merged PDF.
	if err := uc.store.CleanupTmp(loc); err != nil {
		slog.Warn("tmp cleanup failed", "run_id", loc.RunID, "error", err)
	}

	return finalPath, failedBatches, missingPages, nil
}

// reattachBookmarks degrades gracefully: a merged PDF without its outline is
// still a valid deliverable.
func (uc *ProcessRunUseCase) reattachBookmarks(runID, mergedPath string, totalPages int, bookmarks []domain.Bookmark) {
	if len(bookmarks) == 0 {
		return
	}
	projected := domain.ProjectBookmarks(bookmarks, 1, totalPages)
	if len(projected) == 0 {
		return
	}
	if err := uc.toolkit.WriteBookmarks(mergedPath, projected); err != nil {
		slog.Warn("bookmark reattachment failed, delivering without outline",
			"run_id", runID, "error", err)
	}
}

func (uc *ProcessRunUseCase) verifyTextLayer(runID, path string) {
	if uc.verifier == nil {
		return
	}
	withText, total, err := uc.verifier.PagesWithText(path)
	if err != nil {
		slog.Warn("text layer verification failed", "run_id", runID, "error", err)
		return
	}
	if withText < total {
		slog.Warn("merged pdf has pages without extractable text",
			"run_id", runID, "pages_with_text", withText, "total_pages", total)
	}
}
