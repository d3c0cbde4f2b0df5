package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	disputeapp "github.com/streamcart/backend/internal/application/dispute"
	ledgerapp "github.com/streamcart/backend/internal/application/ledger"
	payoutapp "github.com/streamcart/backend/internal/application/payout"
	policyapp "github.com/streamcart/backend/internal/application/policy"
	reconapp "github.com/streamcart/backend/internal/application/recon"
	"github.com/streamcart/backend/internal/domain/policy"
	"github.com/streamcart/backend/internal/domain/recon"
	"github.com/streamcart/backend/internal/infrastructure/cache"
	"github.com/streamcart/backend/internal/infrastructure/config"
	"github.com/streamcart/backend/internal/infrastructure/logger"
	"github.com/streamcart/backend/internal/infrastructure/payment"
	"github.com/streamcart/backend/internal/infrastructure/persistence"
	"github.com/streamcart/backend/internal/infrastructure/risk"
	"github.com/streamcart/backend/internal/infrastructure/scheduler"
	"github.com/streamcart/backend/internal/infrastructure/storage"
	"github.com/streamcart/backend/internal/infrastructure/telemetry"
	"github.com/streamcart/backend/internal/interfaces/http/handler"
	"github.com/streamcart/backend/internal/interfaces/http/middleware"
	"github.com/streamcart/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//	@title			StreamCart Financial Core API
//	@version		1.0
//	@description	Financial integrity backend for live-shopping commerce: double-entry ledger, reconciliation, payouts, disputes, and policy governance.

//	@contact.name	API Support
//	@contact.url	https://github.com/streamcart/backend

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting StreamCart Financial Core",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.Open(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize OpenTelemetry tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Ship logs to the collector alongside stdout
	logsProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logs provider", zap.Error(err))
	}
	defer func() {
		if err := logsProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down logs provider", zap.Error(err))
		}
	}()
	log = telemetry.AttachOTELCore(log, logsProvider, cfg.Telemetry.ServiceName, zapcore.InfoLevel)

	// Initialize OpenTelemetry metrics
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Register database query tracing (otelgorm)
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		}, log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	// Register query metrics and pool stats collection
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DBMetricsConfig{
		Enabled:            cfg.Telemetry.Enabled,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		log.Warn("Failed to register database metrics", zap.Error(err))
	}
	if dbMetrics != nil {
		dbMetrics.StartPoolStatsCollection(context.Background())
		defer dbMetrics.Stop()
	}

	// Start continuous profiling (no-op when disabled)
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiler.Enabled,
		ServerAddress:     cfg.Profiler.ServerAddress,
		ApplicationName:   cfg.App.Name,
		ProfileCPU:        true,
		ProfileAllocSpace: true,
		ProfileInuseSpace: true,
		ProfileGoroutines: true,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	// Initialize repositories
	accountRepo := persistence.NewGormAccountRepository(db.DB)
	txnRepo := persistence.NewGormTransactionRepository(db.DB)
	idemStore := persistence.NewGormIdempotencyStore(db.DB)
	approvalRepo := persistence.NewGormApprovalRepository(db.DB)
	incidentRepo := persistence.NewGormIncidentRepository(db.DB)
	payoutRepo := persistence.NewGormPayoutRepository(db.DB)
	disputeRepo := persistence.NewGormDisputeRepository(db.DB)
	packRepo := persistence.NewGormEvidencePackRepository(db.DB)
	externalTxnRepo := persistence.NewGormExternalTransactionRepository(db.DB)
	matchRepo := persistence.NewGormMatchRepository(db.DB)
	discrepancyRepo := persistence.NewGormDiscrepancyRepository(db.DB)

	// Policy repository, optionally fronted by an in-process cache with
	// cross-instance invalidation over Redis Pub/Sub
	var policyRepo policy.Repository = persistence.NewGormPolicyRepository(db.DB)
	if cfg.Policy.CacheTTL > 0 {
		cachedPolicies := cache.NewCachedPolicyRepository(policyRepo, cfg.Policy.CacheTTL)
		policyRepo = cachedPolicies

		redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		invalidator := cache.NewRedisPolicyInvalidator(redisAddr, cfg.Redis.Password, cfg.Redis.DB, log)
		defer func() {
			if err := invalidator.Close(); err != nil {
				log.Error("Error closing policy invalidator", zap.Error(err))
			}
		}()
		go func() {
			err := invalidator.Subscribe(context.Background(), func(msg cache.PolicyUpdateMessage) {
				log.Debug("Invalidating policy cache", zap.String("policy", msg.PolicyName))
				cachedPolicies.Invalidate()
			})
			if err != nil {
				log.Warn("Policy invalidation subscriber stopped", zap.Error(err))
			}
		}()
		log.Info("Policy cache enabled", zap.Duration("ttl", cfg.Policy.CacheTTL))
	}

	// Initialize application services
	governor := policyapp.NewGovernor(policyRepo, approvalRepo, incidentRepo, cfg.Policy.ApprovalTTL, log)
	policyAdmin := policyapp.NewAdmin(policyRepo, approvalRepo, incidentRepo, log)
	if err := policyAdmin.EnsureBuiltinPolicies(context.Background(), policyapp.BuiltinConfig{
		ApprovalAmountCents: cfg.Policy.ApprovalAmountCents,
		MaxRiskScore:        cfg.Policy.MaxRiskScore,
	}); err != nil {
		log.Fatal("Failed to seed built-in policies", zap.Error(err))
	}
	ledgerService := ledgerapp.NewService(accountRepo, txnRepo, idemStore, governor, log)

	matcherCfg := recon.DefaultMatcherConfig()
	matcherCfg.WindowDays = cfg.Recon.WindowDays
	matcherCfg.MinConfidence = cfg.Recon.MinConfidence
	reconService := reconapp.NewService(externalTxnRepo, matchRepo, discrepancyRepo, txnRepo, matcherCfg, log)

	scorerCfg := risk.DefaultHeuristicScorerConfig()
	scorerCfg.BaseScore = cfg.Payout.DefaultRiskScore
	scorer := risk.NewHeuristicScorer(scorerCfg)

	rail, err := payment.NewHTTPRail(cfg.Rail)
	if err != nil {
		log.Fatal("Failed to configure payment rail", zap.Error(err))
	}
	payoutService := payoutapp.NewService(
		payoutRepo,
		accountRepo,
		txnRepo,
		ledgerService,
		governor,
		reconService,
		scorer,
		rail,
		payoutapp.Config{
			CashAccountCode:      cfg.Payout.CashAccountCode,
			CreatorAccountPrefix: cfg.Payout.CreatorAccountPrefix,
		},
		log,
	)

	// Webhook event dedup, backed by Redis with an in-memory fallback
	deduper, err := cache.NewEventDeduperFactory(cfg.Redis, cache.WithLogger(log)).CreateDeduper()
	if err != nil {
		log.Fatal("Failed to create event deduper", zap.Error(err))
	}

	// Evidence object storage
	var evidenceStorage disputeapp.EvidenceStorage
	switch cfg.Storage.Provider {
	case "s3":
		evidenceStorage, err = storage.NewS3EvidenceStorage(&cfg.Storage)
		if err != nil {
			log.Fatal("Failed to configure evidence storage", zap.Error(err))
		}
		log.Info("Evidence storage configured",
			zap.String("provider", "s3"),
			zap.String("bucket", cfg.Storage.Bucket),
		)
	default:
		evidenceStorage = storage.NewInMemoryEvidenceStorage()
		if cfg.App.Env == "production" {
			log.Warn("Using in-memory evidence storage in production; evidence will not survive restarts")
		}
	}

	submitter, err := payment.NewHTTPSubmitter(cfg.Dispute)
	if err != nil {
		log.Fatal("Failed to configure dispute provider client", zap.Error(err))
	}
	disputeService := disputeapp.NewService(disputeRepo, packRepo, txnRepo, governor, deduper, evidenceStorage, submitter, log)

	// Background sweeps: recon matching and aging plus dispute deadline warnings
	sweepExecutor := scheduler.NewFinanceSweepExecutor(reconService, disputeService, scheduler.FinanceSweepConfig{
		BatchLimit:      cfg.Recon.BatchLimit,
		MaxUnmatchedAge: cfg.Recon.MaxUnmatchedAge,
		DeadlineWarning: cfg.Dispute.DeadlineWarning,
	}, log)
	sweeper := scheduler.NewSweeper(scheduler.DefaultSweeperConfig(), sweepExecutor, log)
	if err := sweeper.Start(context.Background()); err != nil {
		log.Fatal("Failed to start sweep scheduler", zap.Error(err))
	}
	sweepTrigger := scheduler.NewIntervalTrigger(scheduler.IntervalTriggerConfig{
		ReconInterval:   cfg.Recon.SweepInterval,
		DisputeInterval: cfg.Dispute.SweepInterval,
	}, sweeper, log)
	if err := sweepTrigger.Start(context.Background()); err != nil {
		log.Fatal("Failed to start sweep trigger", zap.Error(err))
	}

	// Initialize HTTP handlers
	ledgerHandler := handler.NewLedgerHandler(ledgerService)
	payoutHandler := handler.NewPayoutHandler(payoutService)
	reconHandler := handler.NewReconHandler(reconService)
	disputeHandler := handler.NewDisputeHandler(disputeService)
	policyHandler := handler.NewPolicyHandler(policyAdmin, governor)
	systemHandler := handler.NewSystemHandler(cfg.App.Name, cfg.App.Env)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	// 8. Channel - Extract acting channel and user
	// 9. Tracing, metrics, and profiling labels
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Channel and acting user extraction
	engine.Use(middleware.Channel())

	// Tracing, metrics, and profiling labels
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		ServiceName:   cfg.Telemetry.ServiceName,
		Enabled:       cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.ProfilingWithConfig(middleware.ProfilingConfig{
		Enabled:   cfg.Profiler.Enabled,
		SkipPaths: []string{"/health"},
	}))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Provider webhook endpoints (no channel context required)
	// These endpoints are called directly by external dispute providers
	webhookGroup := engine.Group("/api/v1/webhooks")
	webhookGroup.POST("/disputes/:provider", disputeHandler.Ingest)

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Ledger domain (accounts, double-entry transactions)
	ledgerRoutes := router.NewDomainGroup("ledger", "/ledger")
	ledgerRoutes.POST("/accounts", ledgerHandler.CreateAccount)
	ledgerRoutes.GET("/accounts", ledgerHandler.ListAccounts)
	ledgerRoutes.GET("/accounts/:id", ledgerHandler.GetAccount)
	ledgerRoutes.GET("/accounts/:id/balance", ledgerHandler.GetBalance)
	ledgerRoutes.POST("/accounts/:id/deactivate", ledgerHandler.DeactivateAccount)
	ledgerRoutes.POST("/transactions", ledgerHandler.PostTransaction)
	ledgerRoutes.GET("/transactions", ledgerHandler.ListTransactions)
	ledgerRoutes.GET("/transactions/:id", ledgerHandler.GetTransaction)
	ledgerRoutes.POST("/transactions/:id/reverse", ledgerHandler.ReverseTransaction)

	// Payout domain (draft, approval gating, dispatch)
	payoutRoutes := router.NewDomainGroup("payout", "/payouts")
	payoutRoutes.POST("", payoutHandler.Create)
	payoutRoutes.GET("", payoutHandler.List)
	payoutRoutes.GET("/:id", payoutHandler.GetByID)
	payoutRoutes.POST("/:id/submit", payoutHandler.Submit)
	payoutRoutes.POST("/:id/resume", payoutHandler.Resume)
	payoutRoutes.POST("/:id/process", payoutHandler.Process)
	payoutRoutes.POST("/:id/retry", payoutHandler.Retry)
	payoutRoutes.POST("/:id/cancel", payoutHandler.Cancel)
	payoutRoutes.POST("/:id/holds", payoutHandler.ApplyHold)
	payoutRoutes.POST("/:id/holds/:hold_id/release", payoutHandler.ReleaseHold)

	// Reconciliation domain (external feeds, matching, discrepancies)
	reconRoutes := router.NewDomainGroup("recon", "/recon")
	reconRoutes.POST("/external-transactions", reconHandler.RecordExternalTransaction)
	reconRoutes.GET("/external-transactions", reconHandler.ListExternalTransactions)
	reconRoutes.POST("/external-transactions/imports", reconHandler.ImportSettlementFile)
	reconRoutes.POST("/external-transactions/:id/match", reconHandler.ManualMatch)
	reconRoutes.POST("/runs", reconHandler.RunMatching)
	reconRoutes.POST("/sweeps", reconHandler.SweepAging)
	reconRoutes.GET("/discrepancies", reconHandler.ListDiscrepancies)
	reconRoutes.POST("/discrepancies/:id/resolve", reconHandler.ResolveDiscrepancy)

	// Dispute domain (cases, evidence, provider submission)
	disputeRoutes := router.NewDomainGroup("dispute", "/disputes")
	disputeRoutes.GET("", disputeHandler.List)
	disputeRoutes.GET("/:id", disputeHandler.GetByID)
	disputeRoutes.POST("/:id/evidence", disputeHandler.BuildEvidence)
	disputeRoutes.GET("/:id/evidence", disputeHandler.GetEvidencePack)
	disputeRoutes.POST("/:id/submit", disputeHandler.Submit)
	disputeRoutes.POST("/:id/resolve", disputeHandler.Resolve)
	disputeRoutes.POST("/:id/close", disputeHandler.Close)
	disputeRoutes.POST("/:id/cancel", disputeHandler.Cancel)
	disputeRoutes.POST("/sweeps", disputeHandler.SweepDeadlines)

	// Policy governance (policies, approvals, incidents)
	policyRoutes := router.NewDomainGroup("policy", "/policies")
	policyRoutes.POST("", policyHandler.Create)
	policyRoutes.GET("", policyHandler.List)
	policyRoutes.GET("/:id", policyHandler.GetByID)
	policyRoutes.PUT("/:id/rules", policyHandler.UpdateRules)
	policyRoutes.POST("/:id/activate", policyHandler.Activate)
	policyRoutes.POST("/:id/deactivate", policyHandler.Deactivate)

	approvalRoutes := router.NewDomainGroup("approval", "/approvals")
	approvalRoutes.GET("", policyHandler.ListApprovals)
	approvalRoutes.POST("/:id/grant", policyHandler.GrantApproval)
	approvalRoutes.POST("/:id/reject", policyHandler.RejectApproval)

	incidentRoutes := router.NewDomainGroup("incident", "/incidents")
	incidentRoutes.GET("", policyHandler.ListIncidents)
	incidentRoutes.POST("/:id/acknowledge", policyHandler.AcknowledgeIncident)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	// Register all domain groups
	r.Register(ledgerRoutes).
		Register(payoutRoutes).
		Register(reconRoutes).
		Register(disputeRoutes).
		Register(policyRoutes).
		Register(approvalRoutes).
		Register(incidentRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sweepTrigger.Stop(ctx); err != nil {
		log.Warn("Sweep trigger did not stop cleanly", zap.Error(err))
	}
	if err := sweeper.Stop(ctx); err != nil {
		log.Warn("Sweep scheduler did not stop cleanly", zap.Error(err))
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(c.Request.Context()); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		body := gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		}
		if pool, err := db.Stats(); err == nil {
			body["pool"] = pool
		}
		c.JSON(http.StatusOK, body)
	}
}
