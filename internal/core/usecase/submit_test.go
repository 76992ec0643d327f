package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
)

func newSubmitFixture(t *testing.T) (*SubmitRunUseCase, *fakeRunRepo, *fakeFileRepo, *fakeStore, *fakeQueue) {
	t.Helper()
	runs := newFakeRunRepo()
	files := newFakeFileRepo()
	registry := &fakeRegistry{files: map[string]domain.SourceFile{
		"f-1": {ID: "f-1", Filename: "scan.pdf", Path: "/uploads/scan.pdf"},
	}}
	store := newFakeStore(t.TempDir())
	queue := &fakeQueue{}
	return NewSubmitRunUseCase(runs, files, registry, store, queue), runs, files, store, queue
}

func TestSubmitCreatesPendingRunAndPublishes(t *testing.T) {
	uc, runs, _, _, queue := newSubmitFixture(t)

	result, err := uc.Submit(context.Background(), "f-1", domain.OptionBasic)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if result.RunID == "" || result.Status != domain.RunPending {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.AlreadyProcessed {
		t.Fatal("fresh submission reported as already processed")
	}

	run, err := runs.GetByID(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("run not persisted: %v", err)
	}
	if run.FileID != "f-1" || run.Option != domain.OptionBasic {
		t.Fatalf("unexpected run: %+v", run)
	}
	if len(queue.published) != 1 || queue.published[0] != result.RunID {
		t.Fatalf("published = %v", queue.published)
	}
}

func TestSubmitShortCircuitsOnExistingFinalArtifact(t *testing.T) {
	uc, _, files, store, queue := newSubmitFixture(t)

	loc := domain.ArtifactLocation{FileID: "f-1", Option: domain.OptionBasic}
	dir, err := store.FinalDir(loc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ocr-prior.pdf"), []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	if _, err := files.GetOrCreate(context.Background(), &domain.OCRFile{
		ID: "of-1", RunID: "r-prior", FileID: "f-1", Option: domain.OptionBasic,
		Status: domain.FileCompleted, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatal(err)
	}

	result, err := uc.Submit(context.Background(), "f-1", domain.OptionBasic)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !result.AlreadyProcessed || result.Status != domain.RunCompleted {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.RunID != "r-prior" {
		t.Fatalf("run id = %q, want the prior run", result.RunID)
	}
	if len(queue.published) != 0 {
		t.Fatalf("published %v for an already processed file", queue.published)
	}
}

func TestSubmitRestoresRecordForOrphanedArtifact(t *testing.T) {
	uc, runs, files, store, queue := newSubmitFixture(t)

	// Final PDF on disk, but its database rows are gone.
	loc := domain.ArtifactLocation{FileID: "f-1", Option: domain.OptionBasic}
	dir, err := store.FinalDir(loc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ocr-prior.pdf"), []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := uc.Submit(context.Background(), "f-1", domain.OptionBasic)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !result.AlreadyProcessed || result.Status != domain.RunCompleted {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.RunID == "" {
		t.Fatal("short-circuit returned an empty run id")
	}

	run, err := runs.GetByID(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("restored run not persisted: %v", err)
	}
	if run.Status != domain.RunCompleted {
		t.Fatalf("restored run status = %s, want completed", run.Status)
	}
	rec, err := files.GetByFile(context.Background(), "f-1", domain.OptionBasic)
	if err != nil {
		t.Fatalf("restored file record not persisted: %v", err)
	}
	if rec.Status != domain.FileCompleted || filepath.Base(rec.OCRPath) != "ocr-prior.pdf" {
		t.Fatalf("restored file record = %+v", rec)
	}
	if len(queue.published) != 0 {
		t.Fatalf("published %v for an already processed file", queue.published)
	}
}

func TestSubmitRejectsEmptyFileID(t *testing.T) {
	uc, _, _, _, _ := newSubmitFixture(t)
	_, err := uc.Submit(context.Background(), "", domain.OptionBasic)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("Submit() error = %v, want invalid-input kind", err)
	}
}

func TestSubmitPropagatesUnknownFile(t *testing.T) {
	uc, _, _, _, _ := newSubmitFixture(t)
	_, err := uc.Submit(context.Background(), "missing", domain.OptionBasic)
	if !domain.IsKind(err, domain.ErrFileNotFound) {
		t.Fatalf("Submit() error = %v, want file-not-found kind", err)
	}
}

func TestSubmitMarksRunFailedWhenPublishFails(t *testing.T) {
	uc, runs, _, _, queue := newSubmitFixture(t)
	queue.publishErr = errors.New("nats down")

	_, err := uc.Submit(context.Background(), "f-1", domain.OptionBasic)
	if err == nil {
		t.Fatal("Submit() succeeded despite publish failure")
	}

	recent, _ := runs.ListRecent(context.Background(), 10)
	if len(recent) != 1 {
		t.Fatalf("expected 1 run, got %d", len(recent))
	}
	if recent[0].Status != domain.RunFailed {
		t.Fatalf("run status = %s, want failed", recent[0].Status)
	}
}
