package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
)

func TestRunRepositoryGetByIDMapsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewRunRepository(db)
	mock.ExpectQuery("FROM ocr_runs").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "file_id", "ocr_option", "status", "error_message", "created_at", "updated_at"}))

	_, err = repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrRunNotFound) {
		t.Fatalf("GetByID() error = %v, want run-not-found kind", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRunRepositoryGetByIDScansRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewRunRepository(db)
	rows := sqlmock.NewRows([]string{"id", "file_id", "ocr_option", "status", "error_message", "created_at", "updated_at"}).
		AddRow("r-1", "f-1", string(domain.OptionBasic), string(domain.RunProcessing), "", time.Now(), time.Now())
	mock.ExpectQuery("FROM ocr_runs").
		WithArgs("r-1").
		WillReturnRows(rows)

	run, err := repo.GetByID(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if run.Option != domain.OptionBasic || run.Status != domain.RunProcessing {
		t.Fatalf("unexpected run: %+v", run)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRunRepositoryUpdateStatusReturnsNotFoundWhenNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewRunRepository(db)
	mock.ExpectExec("UPDATE ocr_runs").
		WithArgs("missing", string(domain.RunFailed), "boom", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateStatus(context.Background(), "missing", domain.RunFailed, "boom")
	if !domain.IsKind(err, domain.ErrRunNotFound) {
		t.Fatalf("UpdateStatus() error = %v, want run-not-found kind", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRunRepositoryListRecentScansAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewRunRepository(db)
	rows := sqlmock.NewRows([]string{"id", "file_id", "ocr_option", "status", "error_message", "created_at", "updated_at"}).
		AddRow("r-2", "f-2", string(domain.OptionAdvanced), string(domain.RunCompleted), "", time.Now(), time.Now()).
		AddRow("r-1", "f-1", string(domain.OptionBasic), string(domain.RunFailed), "no OCR batches found", time.Now(), time.Now())
	mock.ExpectQuery("FROM ocr_runs").
		WithArgs(50).
		WillReturnRows(rows)

	runs, err := repo.ListRecent(context.Background(), 50)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[1].ErrorMessage != "no OCR batches found" {
		t.Fatalf("unexpected error message: %q", runs[1].ErrorMessage)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
