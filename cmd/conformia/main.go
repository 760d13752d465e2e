package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/conformia/conformia/internal/app"
	"github.com/conformia/conformia/internal/audit"
	audithttp "github.com/conformia/conformia/internal/audit/http"
	"github.com/conformia/conformia/internal/auth"
	"github.com/conformia/conformia/internal/evidence"
	"github.com/conformia/conformia/internal/norms"
	"github.com/conformia/conformia/internal/notify"
	"github.com/conformia/conformia/internal/observability"
	"github.com/conformia/conformia/internal/platform/cache"
	"github.com/conformia/conformia/internal/platform/db"
	"github.com/conformia/conformia/internal/obligations"
	"github.com/conformia/conformia/internal/plans"
	"github.com/conformia/conformia/internal/rbac"
	"github.com/conformia/conformia/internal/shared"
	"github.com/conformia/conformia/internal/units"
	"github.com/conformia/conformia/internal/users"
	"github.com/conformia/conformia/jobs"
	"github.com/conformia/conformia/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "conformia_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	validate := validator.New()

	usersRepo := users.NewRepository(dbpool)
	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(usersRepo, authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager, validate)

	auditLogger := shared.NewAuditLogger(dbpool)
	historyRecorder := shared.NewHistoryRecorder(dbpool, logger)

	evaluator := rbac.NewEvaluator(rbac.DefaultMatrix())
	rbacMiddleware := rbac.Middleware{Evaluator: evaluator, Logger: logger}

	metrics := observability.NewMetrics()

	asynqClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("create asynq client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	notifier := notify.NewQueueNotifier(dbpool, asynqClient.Raw(), logger)

	obligationsRepo := obligations.NewRepository(dbpool)
	obligationsService := obligations.NewService(obligationsRepo, evaluator, auditLogger, notifier, logger)

	evidenceRepo := evidence.NewRepository(dbpool)
	evidenceService := evidence.NewService(evidenceRepo, obligationsService, evaluator, historyRecorder, auditLogger, notifier, metrics, logger)

	plansRepo := plans.NewRepository(dbpool)
	plansService := plans.NewService(plansRepo, obligationsService, evaluator, historyRecorder, auditLogger, notifier, metrics, logger)

	normsRepo := norms.NewRepository(dbpool)
	normsService := norms.NewService(normsRepo, obligationsService, evaluator, auditLogger, logger)

	unitsRepo := units.NewRepository(dbpool)
	unitsService := units.NewService(unitsRepo, evaluator, auditLogger, logger)

	usersService := users.NewService(usersRepo, evaluator, auditLogger, logger)

	reportClient := report.NewClient(cfg.GotenbergURL)
	renderer := report.NewRenderer()
	summaryService := report.NewSummaryService(report.NewSummaryRepository(dbpool))
	reportHandler := report.NewHandler(logger, summaryService, renderer, reportClient, evaluator)

	auditService := audit.NewService(audit.NewRepository(dbpool))
	auditExporter := audit.NewExporter(report.NewPDFBridge(reportClient, renderer))
	auditHandler := audithttp.NewHandler(logger, auditService, auditExporter, evaluator)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		Users:              usersRepo,
		AuthHandler:        authHandler,
		NormsHandler:       norms.NewHandler(logger, normsService, validate, rbacMiddleware),
		UnitsHandler:       units.NewHandler(logger, unitsService, validate, rbacMiddleware),
		UsersHandler:       users.NewHandler(logger, usersService, validate, rbacMiddleware),
		ObligationsHandler: obligations.NewHandler(logger, obligationsService, validate, rbacMiddleware),
		EvidenceHandler:    evidence.NewHandler(logger, evidenceService, validate, rbacMiddleware),
		PlansHandler:       plans.NewHandler(logger, plansService, validate, rbacMiddleware),
		AuditHandler:       auditHandler,
		ReportHandler:      reportHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
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
