package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/document-ocr-service/internal/config"
	"github.com/kirillkom/document-ocr-service/internal/core/domain"
	"github.com/kirillkom/document-ocr-service/internal/core/ports"
	"github.com/kirillkom/document-ocr-service/internal/core/usecase"
	"github.com/kirillkom/document-ocr-service/internal/infrastructure/artifacts"
	"github.com/kirillkom/document-ocr-service/internal/infrastructure/convert"
	"github.com/kirillkom/document-ocr-service/internal/infrastructure/docx"
	"github.com/kirillkom/document-ocr-service/internal/infrastructure/engine"
	"github.com/kirillkom/document-ocr-service/internal/infrastructure/engine/ocrmypdf"
	"github.com/kirillkom/document-ocr-service/internal/infrastructure/engine/rasterocr"
	"github.com/kirillkom/document-ocr-service/internal/infrastructure/pdf/pdfcpukit"
	"github.com/kirillkom/document-ocr-service/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-ocr-service/internal/infrastructure/registry"
	"github.com/kirillkom/document-ocr-service/internal/infrastructure/report"
	"github.com/kirillkom/document-ocr-service/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/document-ocr-service/internal/infrastructure/resilience"
	"github.com/kirillkom/document-ocr-service/internal/infrastructure/textcheck"
)

type App struct {
	Config config.Config

	Queue ports.MessageQueue

	SubmitUC  ports.RunSubmitter
	ProcessUC *usecase.ProcessRunUseCase
	StatusUC  *usecase.StatusUseCase
	ReportUC  ports.RunReportExporter

	// RunExecutor drives whole-run retry in the worker.
	RunExecutor *resilience.Executor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	runRepo := postgres.NewRunRepository(db)
	if err := runRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	fileRepo := postgres.NewOCRFileRepository(db)

	store, err := artifacts.New(cfg.ArtifactBasePath)
	if err != nil {
		return nil, fmt.Errorf("init artifact store: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	clientExecutor := resilience.NewExecutor(resilience.DefaultConfig())
	runExecutor := resilience.NewExecutor(resilience.RunRetryConfig(
		cfg.RunRetryAttempts,
		time.Duration(cfg.RunRetryBackoffSeconds)*time.Second,
	))

	registryClient := registry.New(cfg.RegistryURL, clientExecutor)
	converter := convert.New(cfg.ConverterURL, clientExecutor)

	toolkit := pdfcpukit.New()
	runner := engine.ExecRunner{}
	engines := map[domain.OCROption]ports.OCREngine{
		domain.OptionBasic:    ocrmypdf.New(runner, cfg.OCRMyPDFBin),
		domain.OptionAdvanced: rasterocr.New(runner, toolkit, cfg.PdftoppmBin, cfg.TesseractBin, cfg.RasterDPI),
	}

	submitUC := usecase.NewSubmitRunUseCase(runRepo, fileRepo, registryClient, store, queue)
	processUC := usecase.NewProcessRunUseCase(
		runRepo, fileRepo, registryClient, toolkit, engines, store,
		converter, docx.NewRawWriter(), textcheck.NewVerifier(),
		cfg.BatchSize, cfg.MaxParallelBatches,
	)
	statusUC := usecase.NewStatusUseCase(runRepo, fileRepo, registryClient)
	reportUC := usecase.NewRunReportUseCase(runRepo, report.NewXLSXBuilder())

	return &App{
		Config: cfg,
		Queue:  queue,

		SubmitUC:  submitUC,
		ProcessUC: processUC,
		StatusUC:  statusUC,
		ReportUC:  reportUC,

		RunExecutor: runExecutor,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
