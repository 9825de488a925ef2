package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/defense-jury-api/api/swagger"
	"github.com/noah-isme/defense-jury-api/internal/handler"
	"github.com/noah-isme/defense-jury-api/internal/middleware"
	"github.com/noah-isme/defense-jury-api/internal/models"
	"github.com/noah-isme/defense-jury-api/internal/repository"
	"github.com/noah-isme/defense-jury-api/internal/service"
	"github.com/noah-isme/defense-jury-api/pkg/cache"
	"github.com/noah-isme/defense-jury-api/pkg/config"
	"github.com/noah-isme/defense-jury-api/pkg/database"
	"github.com/noah-isme/defense-jury-api/pkg/export"
	"github.com/noah-isme/defense-jury-api/pkg/jobs"
	"github.com/noah-isme/defense-jury-api/pkg/library"
	"github.com/noah-isme/defense-jury-api/pkg/logger"
	"github.com/noah-isme/defense-jury-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/defense-jury-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/defense-jury-api/pkg/middleware/requestid"
	"github.com/noah-isme/defense-jury-api/pkg/storage"
)

// @title Defense Jury API
// @version 1.0.0
// @description Jury scheduling and verdict consensus for thesis defenses
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()
	tx := database.NewTransactor(db, nil)

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, proposals stay in process memory", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	policyFile, err := config.LoadJuryPolicy(cfg.Jury.PolicyFile)
	if err != nil {
		logr.Fatal("failed to load jury policy", zap.Error(err))
	}
	policy, err := service.NewSchedulingPolicy(cfg.Jury, policyFile)
	if err != nil {
		logr.Fatal("invalid jury configuration", zap.Error(err))
	}

	sessionRepo := repository.NewDefenseSessionRepository(db)
	candidateRepo := repository.NewCandidateRepository(db)
	evaluatorRepo := repository.NewEvaluatorRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	sittingRepo := repository.NewSittingRepository(db)
	verdictRepo := repository.NewVerdictRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	ticketRepo := repository.NewRevisionTicketRepository(db)
	submissionRepo := repository.NewLibrarySubmissionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	proposalRepo := repository.NewProposalCacheRepository(redisClient, "", logr)

	metricsSvc := service.NewMetricsService()
	proposalCache := service.NewProposalCache(proposalRepo, metricsSvc, cfg.Jury.ProposalTTL, logr, redisClient != nil)
	authSvc := service.NewAuthService(service.AuthConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	}, logr)

	archiveStore, err := storage.NewLocalStorage(cfg.Archives.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare archive storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Archives.SignedURLSecret, cfg.Archives.SignedURLTTL)

	sittingSvc := service.NewSittingService(sessionRepo, sittingRepo, verdictRepo, roomRepo, candidateRepo, evaluatorRepo, logr)
	sessionSvc := service.NewSessionService(sessionRepo, tx, auditRepo, nil, logr)
	exportSvc := service.NewExportService(sessionRepo, sittingSvc, policy.Location, logr, export.NewCSVExporter(export.WithBOM()), export.NewPDFExporter())
	archiveSvc := service.NewArchiveService(verdictRepo, sittingRepo, sessionRepo, roomRepo, candidateRepo, evaluatorRepo, documentRepo,
		archiveStore, signer, export.NewVerdictRenderer(cfg.Archives.Institution), logr,
		service.ArchiveServiceConfig{APIPrefix: cfg.APIPrefix})

	mux := jobs.NewMux()
	queue := jobs.NewQueue("verdict-effects", mux.Dispatch, jobs.QueueConfig{
		Workers:    cfg.Verdicts.WorkerConcurrency,
		BufferSize: 256,
		MaxRetries: cfg.Verdicts.WorkerRetries,
		RetryDelay: cfg.Verdicts.RetryDelay,
		Logger:     logr,
		OnExhausted: func(job jobs.Job, err error) {
			logr.Error("verdict effect abandoned", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Error(err))
		},
	})

	var submitter service.LibrarySubmitter
	if cfg.Library.BaseURL != "" {
		client, err := library.NewClient(cfg.Library.BaseURL, cfg.Library.APIKey, cfg.Library.Timeout)
		if err != nil {
			logr.Fatal("invalid library configuration", zap.Error(err))
		}
		submitter = client
	}

	effects := service.NewVerdictEffects(service.VerdictEffectsDeps{
		Queue:       queue,
		Candidates:  candidateRepo,
		Evaluators:  evaluatorRepo,
		Documents:   documentRepo,
		Tickets:     ticketRepo,
		Submissions: submissionRepo,
		Library:     submitter,
		Mailer:      mailer.New(cfg.Mailer),
		Archiver:    archiveSvc,
		Metrics:     metricsSvc,
		Logger:      logr,
	})
	effects.Register(mux)

	jurySvc := service.NewJuryService(sessionRepo, candidateRepo, evaluatorRepo, roomRepo, sittingRepo, tx, proposalCache, auditRepo, metricsSvc, nil, logr,
		service.JuryServiceConfig{Policy: policy, ProposalTTL: cfg.Jury.ProposalTTL})
	overrideSvc := service.NewSittingOverrideService(sessionRepo, candidateRepo, evaluatorRepo, roomRepo, sittingRepo, verdictRepo, tx, auditRepo, metricsSvc, nil, logr, policy)
	verdictSvc := service.NewVerdictService(verdictRepo, sittingRepo, candidateRepo, tx, service.NewMentionScale(policyFile.MentionBands), effects, auditRepo, metricsSvc, nil, logr)

	sessionHandler := handler.NewSessionHandler(sessionSvc)
	juryHandler := handler.NewJuryHandler(jurySvc, overrideSvc)
	sittingHandler := handler.NewSittingHandler(sittingSvc, exportSvc)
	verdictHandler := handler.NewVerdictHandler(verdictSvc)
	archiveHandler := handler.NewArchiveHandler(archiveSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db, proposalRepo)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins, corsmiddleware.WithMaxAge(cfg.CORS.MaxAge)))
	r.Use(middleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	api.GET("/verdicts/documents/:token",
		middleware.OptionalJWT(authSvc),
		middleware.Audit(auditRepo, "DOWNLOAD", "verdict_document"),
		archiveHandler.Download,
	)

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))

	operators := secured.Group("")
	operators.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleCommission))
	{
		operators.GET("/metrics/summary", metricsHandler.Snapshot)

		operators.POST("/sessions", sessionHandler.Create)
		operators.POST("/sessions/:id/activate", sessionHandler.Activate)

		operators.POST("/jury/proposals", juryHandler.Generate)
		operators.GET("/jury/proposals/:batchId", juryHandler.GetProposal)
		operators.POST("/jury/proposals/:batchId/confirm", juryHandler.Confirm)

		operators.POST("/sittings/swap", juryHandler.Swap)
		operators.PATCH("/sittings/:id/members", juryHandler.EditMembers)
		operators.GET("/sessions/:id/sittings/export", sittingHandler.Export)
	}

	readers := secured.Group("")
	readers.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleCommission, models.RoleEvaluator))
	{
		readers.GET("/sessions", sessionHandler.List)
		readers.GET("/sessions/:id", sessionHandler.Get)
		readers.GET("/sessions/:id/sittings", sittingHandler.ListBySession)
		readers.GET("/sittings/:id", sittingHandler.Detail)
		readers.GET("/sittings/:id/verdict", verdictHandler.GetBySitting)
		readers.GET("/verdicts/:id/document",
			middleware.Audit(auditRepo, "LINK", "verdict_document"),
			archiveHandler.DocumentURL,
		)
	}

	evaluators := secured.Group("")
	evaluators.Use(middleware.RequireRoles(models.RoleEvaluator))
	{
		evaluators.POST("/sittings/:id/verdict", verdictHandler.Create)
		evaluators.PUT("/verdicts/:id", verdictHandler.Update)
		evaluators.POST("/verdicts/:id/submit", verdictHandler.Submit)
		evaluators.POST("/verdicts/:id/approvals", verdictHandler.Approve)
		evaluators.DELETE("/verdicts/:id", verdictHandler.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue.Start(ctx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	queue.Stop()
}
