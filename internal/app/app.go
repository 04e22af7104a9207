package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"directory-admin-service/internal/config"
	"directory-admin-service/internal/domain"
	"directory-admin-service/internal/http/handler"
	"directory-admin-service/internal/http/middleware"
	"directory-admin-service/internal/http/router"
	"directory-admin-service/internal/observability"
	"directory-admin-service/internal/repository"
	"directory-admin-service/internal/security"
	"directory-admin-service/internal/service"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// App is the assembled service: configuration, storage handles, the HTTP
// server, and the telemetry runtime that needs flushing on shutdown.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *gorm.DB
	Redis         *redis.Client
	Server        *http.Server
	Observability *observability.Runtime

	Users       *service.UserService
	Sessions    *service.SessionService
	Tokens      *service.TokenService
	Permissions *service.PermissionService
	Directory   *service.DirectoryService
}

// New wires the whole dependency graph from configuration. An empty
// DATABASE_DSN falls back to an in-process sqlite file, which keeps dev
// and the CLI tools runnable without postgres.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	runtime, err := observability.InitRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var redisClient *redis.Client
	cache := service.PermissionCacheStore(service.NewInMemoryPermissionCacheStore())
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, using in-memory permission cache", "addr", cfg.RedisAddr, "error", err)
		} else {
			cache = service.NewRedisPermissionCacheStore(redisClient, "dir_perm")
		}
	}

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	permRepo := repository.NewPermissionRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	locationRepo := repository.NewLocationRepository(db)

	hasher := security.NewPasswordHasher(cfg.BcryptCost)
	opaque := security.NewOpaqueTokens(cfg.TokenSecret)
	codec := security.NewSessionCodec(cfg.SessionSecret, cfg.SessionTTL)

	users := service.NewUserService(userRepo, hasher, logger)
	sessions := service.NewSessionService(userRepo, sessionRepo, hasher, codec, cfg.SessionTTL, logger)
	tokens := service.NewTokenService(opaque, userRepo, tokenRepo,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.RefreshRenewalThreshold, logger)
	permissions := service.NewPermissionService(userRepo, permRepo, cache, logger)
	directory := service.NewDirectoryService(departmentRepo, locationRepo, logger)
	resolver := service.NewCachedPermissionResolver(cache, permRepo, cfg.PermissionCacheTTL)

	exempt := middleware.NewExemptPaths(cfg.ExemptPaths...)
	authDeps := middleware.AuthDeps{
		Exempt:          exempt,
		Codec:           codec,
		Sessions:        sessions,
		Tokens:          tokens,
		Scheme:          cfg.AuthHeaderScheme,
		AdminPathPrefix: cfg.AdminPathPrefix,
		AdminLoginPath:  cfg.AdminLoginPath,
		Logger:          logger,
	}

	authHandler := handler.NewAuthHandler(users, sessions, tokens, logger)
	adminHandler := handler.NewAdminHandler(sessions, users, permissions, cfg.SessionTTL, cfg.AdminLoginPath, logger)
	directoryHandler := handler.NewDirectoryHandler(directory, logger)

	mux := router.New(router.Dependencies{
		Config:    cfg,
		Logger:    logger,
		Auth:      authDeps,
		Resolver:  resolver,
		AuthH:     authHandler,
		AdminH:    adminHandler,
		DirH:      directoryHandler,
		Telemetry: cfg.OTELTracesEnabled,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            db,
		Redis:         redisClient,
		Server:        server,
		Observability: runtime,
		Users:         users,
		Sessions:      sessions,
		Tokens:        tokens,
		Permissions:   permissions,
		Directory:     directory,
	}, nil
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}
	if cfg.DatabaseDSN == "" {
		return gorm.Open(sqlite.Open("directory-admin.db"), gormCfg)
	}
	return gorm.Open(postgres.Open(cfg.DatabaseDSN), gormCfg)
}

// Migrate creates or updates every table the service owns.
func (a *App) Migrate(ctx context.Context) error {
	return a.DB.WithContext(ctx).AutoMigrate(
		&domain.User{},
		&domain.Permission{},
		&domain.Token{},
		&domain.BlacklistToken{},
		&domain.Session{},
		&domain.Department{},
		&domain.Location{},
	)
}

// Run serves until the context is cancelled, then drains connections and
// flushes telemetry.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.Logger.Info("shutting down")
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if a.Redis != nil {
			if err := a.Redis.Close(); err != nil {
				a.Logger.Warn("close redis", "error", err)
			}
		}
		return a.Observability.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
