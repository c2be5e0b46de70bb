package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/expense-tracker/internal/auth"
	"github.com/BradenHooton/expense-tracker/internal/background"
	"github.com/BradenHooton/expense-tracker/internal/cache"
	"github.com/BradenHooton/expense-tracker/internal/config"
	"github.com/BradenHooton/expense-tracker/internal/database"
	"github.com/BradenHooton/expense-tracker/internal/handlers"
	"github.com/BradenHooton/expense-tracker/internal/metrics"
	middlewareCustom "github.com/BradenHooton/expense-tracker/internal/middleware"
	"github.com/BradenHooton/expense-tracker/internal/repositories"
	"github.com/BradenHooton/expense-tracker/internal/routes"
	"github.com/BradenHooton/expense-tracker/internal/services"
	pkgauth "github.com/BradenHooton/expense-tracker/pkg/auth"
	pkghttp "github.com/BradenHooton/expense-tracker/pkg/http"
	pkglogger "github.com/BradenHooton/expense-tracker/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger, level); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped gracefully")
}

func run(logger *slog.Logger, level *slog.LevelVar) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level.Set(logLevel(cfg.Server.LogLevel))
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
	}

	appMetrics := metrics.New(prometheus.DefaultRegisterer)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)
	categoryRepo := repositories.NewCategoryRepository(db)
	expenseRepo := repositories.NewExpenseRepository(db)

	// Login guard
	guard := services.NewLoginGuard(loginAttemptRepo, services.LoginGuardConfig{
		FailedAttemptsThreshold: cfg.LoginGuard.FailedAttemptsThreshold,
		AttemptWindow:           cfg.LoginGuard.AttemptWindow,
		BlockDuration:           cfg.LoginGuard.BlockDuration,
	}, logger)
	guard.SetMetrics(appMetrics)

	redisClient, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		// The attempt log is authoritative; run without the cache
		logger.Warn("block cache disabled", slog.Any("error", err))
	} else if redisClient != nil {
		defer redisClient.Close()
		guard.SetBlockCache(cache.NewBlockCache(redisClient, cfg.Redis.Namespace))
		logger.Info("block cache enabled", slog.String("addr", cfg.Redis.Addr))
	}

	cleanupManager := background.NewCleanupManager(
		loginAttemptRepo,
		cfg.LoginGuard.AttemptRetention,
		cfg.LoginGuard.CleanupInterval,
		logger,
		appMetrics,
	)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})
	auditLogger := pkglogger.NewAuditLogger(logger)

	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	// Initialize services
	authService := services.NewAuthService(
		userRepo,
		guard,
		tokenManager,
		pkgauth.NewPasswordHasher(pkgauth.BcryptCost),
		timingDelay,
		logger,
		auditLogger,
	)
	userService := services.NewUserService(userRepo, logger)
	categoryService := services.NewCategoryService(categoryRepo, logger)
	expenseService := services.NewExpenseService(expenseRepo, categoryRepo, logger)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(cfg.Server.AllowedOrigins))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, routes.Handlers{
		Health:   handlers.NewHealthHandler(db),
		Auth:     handlers.NewAuthHandler(authService, ipConfig, logger),
		User:     handlers.NewUserHandler(userService),
		Category: handlers.NewCategoryHandler(categoryService),
		Expense:  handlers.NewExpenseHandler(expenseService),
		Metrics:  promhttp.Handler(),
	}, tokenManager, cfg.Server.APIRequestsPerMinute)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cleanupManager.Start(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		cleanupManager.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
