package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qprlabs/kpi-engine/internal/config"
	"github.com/qprlabs/kpi-engine/internal/core/ports"
	"github.com/qprlabs/kpi-engine/internal/core/usecase"
	"github.com/qprlabs/kpi-engine/internal/infrastructure/authz"
	"github.com/qprlabs/kpi-engine/internal/infrastructure/classifier/remote"
	"github.com/qprlabs/kpi-engine/internal/infrastructure/extractor"
	"github.com/qprlabs/kpi-engine/internal/infrastructure/extractor/pdfreport"
	"github.com/qprlabs/kpi-engine/internal/infrastructure/extractor/plaintext"
	"github.com/qprlabs/kpi-engine/internal/infrastructure/plan/excel"
	"github.com/qprlabs/kpi-engine/internal/infrastructure/plan/seed"
	"github.com/qprlabs/kpi-engine/internal/infrastructure/queue/nats"
	"github.com/qprlabs/kpi-engine/internal/infrastructure/repository/postgres"
	"github.com/qprlabs/kpi-engine/internal/infrastructure/resilience"
	"github.com/qprlabs/kpi-engine/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue      ports.MessageQueue
	Analyses   ports.AnalysisStore
	Activities ports.ActivityStore

	IngestUC   ports.ReportIngestor
	ProcessUC  ports.AnalysisProcessor
	ApprovalUC ports.ApprovalService
	RollupUC   ports.AggregateReader
	DraftUC    *usecase.EditDraftUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	analyses := postgres.NewAnalysisRepository(db)
	activities := postgres.NewActivityRepository(db)
	ledger := postgres.NewLedgerRepository(db)
	overrides := postgres.NewOverrideRepository(db)

	catalog, err := excel.Load(cfg.PlanWorkbookPath)
	if err != nil {
		return nil, fmt.Errorf("load plan workbook: %w", err)
	}
	applied, err := seed.ApplyFile(ctx, cfg.OverrideSeedPath, overrides)
	if err != nil {
		return nil, fmt.Errorf("seed target overrides: %w", err)
	}
	if applied > 0 {
		slog.Info("target overrides seeded", "count", applied)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	classifier := remote.New(
		cfg.ClassifierURL,
		cfg.ClassifierModel,
		time.Duration(cfg.ClassifierTimeoutSeconds)*time.Second,
		executor,
	)

	texts := extractor.NewRouter(
		pdfreport.NewExtractor(storage),
		plaintext.NewExtractor(storage),
	)

	authorizer := authz.NewStaticAuthorizer(cfg.ApproverTokens)

	resolveUC := usecase.NewResolveTargetUseCase(catalog, overrides)
	ingestUC := usecase.NewIngestReportUseCase(analyses, storage, queue)
	processUC := usecase.NewExtractActivitiesUseCase(analyses, activities, texts, classifier, resolveUC)
	approvalUC := usecase.NewApproveAnalysisUseCase(analyses, ledger, resolveUC, authorizer)
	rollupUC := usecase.NewRollupUseCase(ledger, resolveUC)
	draftUC := usecase.NewEditDraftUseCase(analyses, activities)

	return &App{
		Config: cfg,

		Queue:      queue,
		Analyses:   analyses,
		Activities: activities,

		IngestUC:   ingestUC,
		ProcessUC:  processUC,
		ApprovalUC: approvalUC,
		RollupUC:   rollupUC,
		DraftUC:    draftUC,

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
