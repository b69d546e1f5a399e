package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	contactapp "github.com/crm/backend/internal/application/contact"
	proposalapp "github.com/crm/backend/internal/application/proposal"
	"github.com/crm/backend/internal/infrastructure/auth"
	"github.com/crm/backend/internal/infrastructure/cache"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/encryption"
	"github.com/crm/backend/internal/infrastructure/event"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/migration"
	"github.com/crm/backend/internal/infrastructure/persistence"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/crm/backend/internal/interfaces/http/handler"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/crm/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := setupTelemetry(ctx, cfg, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log := tel.logs.Bridge(baseLog, logger.ParseLevel(cfg.Telemetry.LogsLevel))
	defer func() { _ = log.Sync() }()

	log.Info("Starting CRM backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithHiddenParams(cfg.App.IsProduction()),
	)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	if err := instrumentDatabase(cfg, db, tel, log); err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := migrateUp(cfg.Database, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	enc, err := newEncryptionService(cfg.Encryption, tel, log)
	if err != nil {
		log.Fatal("Failed to initialize encryption", zap.Error(err))
	}

	contactRepo := persistence.NewGormContactRepository(db.DB, enc, cfg.Encryption.ContactFields, log)
	proposalRepo := persistence.NewGormProposalRepository(db.DB)

	auditStore := event.NewAuditStore(db.DB)
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewAuditHandler(auditStore))

	contactService := contactapp.NewContactService(contactRepo, log)
	contactService.SetEventPublisher(bus)
	proposalService := proposalapp.NewProposalService(proposalRepo, contactRepo, enc, log)
	proposalService.SetEventPublisher(bus)

	var redisClient *redis.Client
	if cfg.Idempotency.Backend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = redisClient.Close() }()
	}

	var blacklist auth.TokenBlacklist = auth.NewInMemoryTokenBlacklist()
	if redisClient != nil {
		blacklist = auth.NewRedisTokenBlacklist(redisClient)
	}
	jwtService := auth.NewJWTService(cfg.JWT)

	var idempotency gin.HandlerFunc
	if cfg.Idempotency.Enabled {
		store, err := cache.NewIdempotencyStoreFactory(cfg.Idempotency.Backend, cfg.Redis,
			cache.WithLogger(log),
			cache.WithInMemoryFallback(!cfg.App.IsProduction()),
		).CreateStore(ctx)
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
		defer func() { _ = store.Close() }()
		idempotency = middleware.Idempotency(middleware.IdempotencyConfig{
			Store:  store,
			Sealer: enc,
			TTL:    cfg.Idempotency.TTL,
			Logger: log,
		})
	}

	engine, err := newEngine(cfg, tel, log)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	var rateLimit gin.HandlerFunc
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		go limiter.Run(ctx)
		rateLimit = middleware.RateLimit(limiter)
	}

	router.Setup(engine, router.Handlers{
		Contact:  handler.NewContactHandler(contactService, log),
		Proposal: handler.NewProposalHandler(proposalService, log),
		Security: handler.NewSecurityHandler(enc, log),
		Audit:    handler.NewAuditHandler(auditStore, log),
		Auth:     handler.NewAuthHandler(blacklist, log),
		System:   handler.NewSystemHandler(enc, db, version, log),
	}, router.Middleware{
		Authenticate: middleware.JWTAuth(middleware.JWTConfig{
			JWTService: jwtService,
			Blacklist:  blacklist,
			Logger:     log,
		}),
		RateLimit:      rateLimit,
		SpanAttributes: middleware.SpanAttributes(),
		Idempotency:    idempotency,
	}, log)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	tel.shutdown(shutdownCtx, baseLog)

	log.Info("Server exited gracefully")
}

// newEngine builds the gin engine with the global middleware chain
func newEngine(cfg *config.Config, tel *telemetryStack, log *zap.Logger) (*gin.Engine, error) {
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	httpMetrics, err := middleware.HTTPMetrics(tel.meter)
	if err != nil {
		return nil, err
	}

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.SecureHeaders(cfg.App.IsProduction()),
		middleware.CORS(cors),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Tracing(cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled),
		httpMetrics,
	)
	return engine, nil
}

func newEncryptionService(cfg config.EncryptionConfig, tel *telemetryStack, log *zap.Logger) (*encryption.Service, error) {
	keyring, err := encryption.NewKeyring(cfg.KeyID, cfg.Secrets(), encryption.DefaultKDFParams())
	if err != nil {
		return nil, err
	}
	cryptoMetrics, err := telemetry.NewCryptoMetrics(tel.meter)
	if err != nil {
		return nil, err
	}
	if cfg.DevFallback {
		log.Warn("Encryption is running on the development fallback; sealed data is not confidential")
	}
	return encryption.NewService(keyring, encryption.Config{
		Algorithm:        cfg.Algorithm,
		AllowDevFallback: cfg.DevFallback,
		Debug:            cfg.Debug,
	}, log, encryption.WithMetrics(cryptoMetrics))
}

func instrumentDatabase(cfg *config.Config, db *persistence.Database, tel *telemetryStack, log *zap.Logger) error {
	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log)
	if err := tracing.Register(db.DB); err != nil {
		return err
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	dbMetrics, err := telemetry.NewDBMetrics(tel.meter, sqlDB)
	if err != nil {
		return err
	}
	return dbMetrics.Register(db.DB)
}

// migrateUp runs the embedded migrations on a dedicated connection;
// closing the migrator also closes the *sql.DB it was given.
func migrateUp(cfg config.DatabaseConfig, log *zap.Logger) error {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return err
	}
	m, err := migration.NewEmbedded(sqlDB, log)
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up()
}
