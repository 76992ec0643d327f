package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
)

type fakeReportBuilder struct {
	got []domain.Run
	err error
}

func (b *fakeReportBuilder) BuildXLSX(runs []domain.Run) ([]byte, error) {
	b.got = runs
	if b.err != nil {
		return nil, b.err
	}
	return []byte("xlsx"), nil
}

func TestExportXLSXFeedsRecentRuns(t *testing.T) {
	runs := newFakeRunRepo()
	now := time.Now().UTC()
	for _, id := range []string{"r-1", "r-2"} {
		if err := runs.Create(context.Background(), &domain.Run{
			ID: id, FileID: "f-1", Option: domain.OptionBasic,
			Status: domain.RunCompleted, CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			t.Fatal(err)
		}
	}
	builder := &fakeReportBuilder{}
	uc := NewRunReportUseCase(runs, builder)

	data, err := uc.ExportXLSX(context.Background())
	if err != nil {
		t.Fatalf("ExportXLSX() error = %v", err)
	}
	if string(data) != "xlsx" {
		t.Fatalf("unexpected payload: %q", data)
	}
	if len(builder.got) != 2 {
		t.Fatalf("builder received %d runs, want 2", len(builder.got))
	}
}

func TestExportXLSXPropagatesBuilderFailure(t *testing.T) {
	uc := NewRunReportUseCase(newFakeRunRepo(), &fakeReportBuilder{err: errors.New("style error")})
	if _, err := uc.ExportXLSX(context.Background()); err == nil {
		t.Fatal("ExportXLSX() succeeded, want error")
	}
}
