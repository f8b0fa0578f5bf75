package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/harborview/backoffice/internal/app"
	"github.com/harborview/backoffice/internal/catalog"
	"github.com/harborview/backoffice/internal/email"
	"github.com/harborview/backoffice/internal/ingest"
	"github.com/harborview/backoffice/internal/ledger"
	"github.com/harborview/backoffice/internal/mapping"
	"github.com/harborview/backoffice/internal/match"
	"github.com/harborview/backoffice/internal/platform/db"
	"github.com/harborview/backoffice/internal/suppliers"
	"github.com/harborview/backoffice/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var source email.Source
	if cfg.GmailCredentialsFile != "" {
		source, err = email.NewGmailSource(ctx, cfg.GmailCredentialsFile, cfg.GmailTokenFile)
		if err != nil {
			logger.Error("gmail source", slog.Any("error", err))
			os.Exit(1)
		}
	}

	matcher := match.NewEngine(match.Config{DefaultVariantMarker: cfg.DefaultVariantMarker})
	catalogService := catalog.NewService(catalog.NewRepository(pool))
	mappingService := mapping.NewService(mapping.NewPGRepository(pool), logger)
	supplierRepo := suppliers.NewPGRepository(pool)
	ledgerService := ledger.NewService(ledger.NewRepository(pool), catalogService, logger)
	ingestRepo := ingest.NewPGRepository(pool)
	invoiceService := ingest.NewInvoiceService(source, supplierRepo, mappingService,
		catalogService, ledgerService, ingestRepo, matcher, logger)

	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskMappingPrune, Handler: jobs.NewMappingPruneHandler(mappingService, logger)},
		{Type: jobs.TaskLedgerIntegrity, Handler: jobs.NewLedgerIntegrityHandler(pool, logger)},
	}
	cron := []jobs.CronRegistration{
		{Spec: "0 3 * * *", Task: jobs.NewMappingPruneTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		{Spec: "30 3 * * 0", Task: jobs.NewLedgerIntegrityTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
	}

	if source != nil {
		handlers = append(handlers, jobs.TaskHandler{
			Type:    jobs.TaskEmailPoll,
			Handler: jobs.NewEmailPollHandler(source, invoiceService, cfg.NotificationQuery, logger),
		})
		pollPayload, err := json.Marshal(jobs.EmailPollPayload{MaxMessages: 10})
		if err != nil {
			logger.Error("build poll payload", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{
			Spec:    "*/15 * * * *",
			Task:    asynq.NewTask(jobs.TaskEmailPoll, pollPayload),
			Options: []asynq.Option{asynq.MaxRetry(2)},
		})
	} else {
		logger.Warn("gmail not configured, email polling disabled")
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  handlers,
		Cron:      cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
