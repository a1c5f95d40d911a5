package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	accountingapp "github.com/erp/setoff/internal/application/accounting"
	settlementapp "github.com/erp/setoff/internal/application/settlement"
	"github.com/erp/setoff/internal/domain/accounting"
	"github.com/erp/setoff/internal/infrastructure/cache"
	"github.com/erp/setoff/internal/infrastructure/config"
	"github.com/erp/setoff/internal/infrastructure/event"
	"github.com/erp/setoff/internal/infrastructure/logger"
	"github.com/erp/setoff/internal/infrastructure/persistence"
	"github.com/erp/setoff/internal/infrastructure/telemetry"
	"github.com/erp/setoff/internal/interfaces/http/handler"
	"github.com/erp/setoff/internal/interfaces/http/middleware"
	"github.com/erp/setoff/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//	@title			Setoff API
//	@version		1.0
//	@description	收付款核销与记账引擎 - 财务核销、预收预付与总账凭证服务

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
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Setoff",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Statement-level spans hang off the request spans otelgin opens
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled: cfg.Telemetry.Enabled,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	// Redis backs the shared chart-of-accounts cache. The engine still
	// runs without it, each instance just rebuilds its own tree.
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Warn("Redis unreachable, account tree cache runs local-only", zap.Error(err))
		} else {
			log.Info("Redis connected successfully", zap.String("addr", cfg.Redis.Addr()))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing redis client", zap.Error(err))
			}
		}()
	}

	// Initialize repositories
	sourceLineRepo := persistence.NewGormSourceLineRepository(db.DB)
	creditRepo := persistence.NewGormPrepaymentCreditRepository(db.DB)
	documentRepo := persistence.NewGormSettlementDocumentRepository(db.DB)
	journalEntryRepo := persistence.NewGormJournalEntryRepository(db.DB)
	accountRepo := persistence.NewGormAccountItemRepository(db.DB)
	uow := persistence.NewGormUnitOfWork(db.DB)

	// Posting rules resolve account codes through the cached tree
	accountMapping := accounting.AccountMapping{
		accounting.RoleCashBank:           cfg.Accounts.CashBank,
		accounting.RoleAccountsReceivable: cfg.Accounts.AccountsReceivable,
		accounting.RoleAccountsPayable:    cfg.Accounts.AccountsPayable,
		accounting.RoleCustomerPrepayment: cfg.Accounts.CustomerPrepayment,
		accounting.RoleSupplierAdvance:    cfg.Accounts.SupplierAdvance,
		accounting.RoleSalesAllowance:     cfg.Accounts.SalesAllowance,
		accounting.RolePurchaseAllowance:  cfg.Accounts.PurchaseAllowance,
		accounting.RoleInventory:          cfg.Accounts.Inventory,
		accounting.RoleSalesRevenue:       cfg.Accounts.SalesRevenue,
	}
	treeCache := cache.NewAccountTreeCache(accountRepo, redisClient, accountMapping,
		cache.WithTreeTTL(cfg.Accounts.TreeCacheTTL),
		cache.WithTreeLogger(log),
	)
	if err := treeCache.StartInvalidationSubscription(context.Background()); err != nil {
		log.Fatal("Failed to start account cache invalidation subscription", zap.Error(err))
	}
	defer func() {
		if err := treeCache.Close(); err != nil {
			log.Error("Error closing account tree cache", zap.Error(err))
		}
	}()

	// Initialize event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)

	auditHandler := settlementapp.NewAuditLogHandler(log)
	eventBus.Subscribe(auditHandler, auditHandler.EventTypes()...)
	log.Info("Event handlers registered",
		zap.Strings("audit_events", auditHandler.EventTypes()),
	)

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Initialize application services
	setoffService := settlementapp.NewSetoffService(uow, treeCache, eventBus, log)
	prepaymentService := settlementapp.NewPrepaymentService(uow, treeCache, eventBus, log)
	accrualService := settlementapp.NewAccrualService(uow, treeCache, eventBus, log)
	reversalService := settlementapp.NewReversalService(uow, eventBus, log)
	queryService := settlementapp.NewQueryService(sourceLineRepo, creditRepo, documentRepo)
	accountService := accountingapp.NewAccountService(accountRepo, treeCache, log)
	ledgerQueryService := accountingapp.NewLedgerQueryService(journalEntryRepo)

	// Initialize HTTP handlers
	settlementHandler := handler.NewSettlementHandler(
		setoffService,
		prepaymentService,
		accrualService,
		reversalService,
		queryService,
	)
	ledgerHandler := handler.NewLedgerHandler(ledgerQueryService, reversalService)
	accountHandler := handler.NewAccountHandler(accountService)
	systemHandler := handler.NewSystemHandler(db)

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
	// 4. Tracing - OpenTelemetry spans
	// 5. Security - Add security headers
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.Tracing(), middleware.SpanEnrichment())
	}
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, redisClient))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Settlement domain (settle, documents, lines, credits)
	settlementRoutes := router.NewDomainGroup("settlement", "/settlement")
	settlementRoutes.POST("/settle", settlementHandler.Settle)
	settlementRoutes.POST("/preview-fifo", settlementHandler.PreviewFIFO)
	settlementRoutes.GET("/documents", settlementHandler.ListDocuments)
	settlementRoutes.GET("/documents/number/:number", settlementHandler.GetDocumentByNumber)
	settlementRoutes.GET("/documents/:id", settlementHandler.GetDocument)
	settlementRoutes.POST("/documents/:id/reverse", settlementHandler.ReverseDocument)
	settlementRoutes.POST("/lines", settlementHandler.RecordAccrual)
	settlementRoutes.GET("/lines", settlementHandler.ListOpenLines)
	settlementRoutes.GET("/lines/:kind/:line_id/outstanding", settlementHandler.GetOutstanding)
	settlementRoutes.POST("/credits", settlementHandler.IssuePrepayment)
	settlementRoutes.GET("/credits", settlementHandler.ListAvailableCredits)

	// Ledger domain (journal entries, trial balance)
	ledgerRoutes := router.NewDomainGroup("ledger", "/ledger")
	ledgerRoutes.GET("/entries", ledgerHandler.ListEntries)
	ledgerRoutes.GET("/entries/number/:number", ledgerHandler.GetEntryByNumber)
	ledgerRoutes.GET("/entries/:id", ledgerHandler.GetEntry)
	ledgerRoutes.POST("/entries/:id/reverse", ledgerHandler.ReverseEntry)
	ledgerRoutes.GET("/documents/:id/entries", ledgerHandler.ListEntriesForDocument)
	ledgerRoutes.GET("/trial-balance/:period", ledgerHandler.GetTrialBalance)

	// Chart of accounts
	accountRoutes := router.NewDomainGroup("accounts", "/accounts")
	accountRoutes.POST("", accountHandler.CreateAccount)
	accountRoutes.GET("", accountHandler.ListAccounts)
	accountRoutes.GET("/tree", accountHandler.GetTree)
	accountRoutes.GET("/:code", accountHandler.GetAccount)
	accountRoutes.PUT("/:code/name", accountHandler.RenameAccount)
	accountRoutes.POST("/:code/disable", accountHandler.DisableAccount)
	accountRoutes.DELETE("/:code", accountHandler.DeleteAccount)

	// System routes
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	systemRoutes.GET("/db-stats", systemHandler.GetDBStats)

	r.Register(settlementRoutes).
		Register(ledgerRoutes).
		Register(accountRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

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

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler reports database and redis connectivity
func healthHandler(db *persistence.Database, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)

		status := http.StatusOK
		body := gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		}

		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["database"] = "error"
		}

		if redisClient != nil {
			body["redis"] = "ok"
			if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
				reqLog.Warn("Redis health check failed", zap.Error(err))
				body["redis"] = "error"
			}
		}

		c.JSON(status, body)
	}
}
