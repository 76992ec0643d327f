package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
	"github.com/kirillkom/document-ocr-service/internal/core/ports"
)

// runBatches fans the batches out across a bounded pool of OCR workers and
// collects every result. A failed batch never cancels its siblings: partial
// output is still worth merging, so this is a plain wait group with a results
// channel rather than a fail-fast group.
func (uc *ProcessRunUseCase) runBatches(
	ctx context.Context,
	engine ports.OCREngine,
	loc domain.ArtifactLocation,
	batches []domain.Batch,
) []domain.BatchResult {
	sem := make(chan struct{}, uc.maxParallel)
	results := make(chan domain.BatchResult, len(batches))

	var wg sync.WaitGroup
	for _, batch := range batches {
		wg.Add(1)
		go func(batch domain.Batch) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- domain.BatchResult{Batch: batch, Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			start := time.Now()
			ocrPath, err := uc.runOneBatch(ctx, engine, loc, batch)
			uc.observer.ObserveBatch(engine.Name(), time.Since(start), err)
			results <- domain.BatchResult{Batch: batch, OCRPath: ocrPath, Err: err}
		}(batch)
	}

	waitStart := time.Now()
	wg.Wait()
	uc.observer.ObserveFanInWait(time.Since(waitStart))
	close(results)

	collected := make([]domain.BatchResult, 0, len(batches))
	for result := range results {
		collected = append(collected, result)
	}
	return collected
}

func (uc *ProcessRunUseCase) runOneBatch(
	ctx context.Context,
	engine ports.OCREngine,
	loc domain.ArtifactLocation,
	batch domain.Batch,
) (string, error) {
	outPath, err := uc.store.NewBatchOutputPath(loc, batch.Range)
	if err != nil {
		return "", fmt.Errorf("allocate batch output: %w", err)
	}
	if err := engine.Run(ctx, batch.Path, outPath); err != nil {
		return "", fmt.Errorf("ocr batch %s: %w", batch.Range.String(), err)
	}
	return outPath, nil
}
