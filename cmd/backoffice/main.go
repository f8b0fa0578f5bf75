package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/harborview/backoffice/internal/app"
	"github.com/harborview/backoffice/internal/catalog"
	"github.com/harborview/backoffice/internal/email"
	"github.com/harborview/backoffice/internal/ingest"
	"github.com/harborview/backoffice/internal/ledger"
	"github.com/harborview/backoffice/internal/mapping"
	"github.com/harborview/backoffice/internal/match"
	"github.com/harborview/backoffice/internal/platform/cache"
	"github.com/harborview/backoffice/internal/platform/db"
	"github.com/harborview/backoffice/internal/statement"
	"github.com/harborview/backoffice/internal/suppliers"
	"github.com/harborview/backoffice/jobs"
)

func loadAliasRules(path string, logger *slog.Logger) []match.AliasRule {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("alias rules file unreadable", slog.String("path", path), slog.Any("error", err))
		return nil
	}
	var rules []match.AliasRule
	if err := json.Unmarshal(data, &rules); err != nil {
		logger.Warn("alias rules file invalid", slog.String("path", path), slog.Any("error", err))
		return nil
	}
	return rules
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// Redis is an accelerator here, not a dependency: with no client
	// the mapping cache falls through to the database.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, mapping cache disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	var source email.Source
	if cfg.GmailCredentialsFile != "" {
		source, err = email.NewGmailSource(ctx, cfg.GmailCredentialsFile, cfg.GmailTokenFile)
		if err != nil {
			logger.Error("gmail source", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Warn("gmail not configured, email import disabled")
	}

	matcher := match.NewEngine(match.Config{
		AliasRules:           loadAliasRules(cfg.MatchAliasRulesFile, logger),
		DefaultVariantMarker: cfg.DefaultVariantMarker,
	})

	catalogService := catalog.NewService(catalog.NewRepository(dbpool))
	mappingService := mapping.NewService(mapping.NewPGRepository(dbpool), logger)
	mappingCache := mapping.NewCache(redisClient, cfg.MappingCacheTTL)
	supplierRepo := suppliers.NewPGRepository(dbpool)

	ledgerService := ledger.NewService(ledger.NewRepository(dbpool), catalogService, logger)

	ingestRepo := ingest.NewPGRepository(dbpool)
	parser := statement.NewParser(statement.Config{CardHolderOverrides: cfg.CardHolderOverrides})
	statementService := ingest.NewStatementService(parser, ingestRepo, mappingService,
		catalogService, matcher, logger)
	invoiceService := ingest.NewInvoiceService(source, supplierRepo, mappingService,
		catalogService, ledgerService, ingestRepo, matcher, logger)

	ingestHandler := ingest.NewHandler(statementService, invoiceService, logger)
	mappingHandler := mapping.NewHandler(mappingService, mappingCache, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		IngestHandler:  ingestHandler,
		MappingHandler: mappingHandler,
		JobHandler:     jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
