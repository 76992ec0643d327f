package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/document-ocr-service/internal/core/ports"
)

const reportRunLimit = 500

type RunReportUseCase struct {
	runs    ports.RunRepository
	builder ports.RunReportBuilder
}

func NewRunReportUseCase(runs ports.RunRepository, builder ports.RunReportBuilder) *RunReportUseCase {
	return &RunReportUseCase{runs: runs, builder: builder}
}

func (uc *RunReportUseCase) ExportXLSX(ctx context.Context) ([]byte, error) {
	runs, err := uc.runs.ListRecent(ctx, reportRunLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}
	data, err := uc.builder.BuildXLSX(runs)
	if err != nil {
		return nil, fmt.Errorf("build run report: %w", err)
	}
	return data, nil
}
