package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/task-service/internal/api/http"
	"github.com/spec-kit/task-service/internal/api/http/handlers"
	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/config"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/observability"
	"github.com/spec-kit/task-service/internal/persistence"
	"github.com/spec-kit/task-service/internal/repository"
	"github.com/spec-kit/task-service/internal/service"
	"github.com/spec-kit/task-service/internal/worker"
	"github.com/spec-kit/task-service/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, migrations.Files, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var (
		userRepo repository.UserRepository
		taskRepo repository.TaskRepository
	)
	if pg.Enabled() {
		userRepo = repository.NewUserRepository(pg.Pool)
		taskRepo = repository.NewTaskRepository(pg.Pool)
	} else {
		store := repository.NewMemoryStore()
		userRepo = store.Users()
		taskRepo = store.Tasks()
	}

	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	codec := auth.NewTokenCodec(auth.TokenConfig{
		Secret: []byte(cfg.Auth.JWTSecret),
		TTL:    cfg.Auth.TokenTTL(),
	})

	if err := service.BootstrapAdmin(ctx, userRepo, hasher, service.AdminAccount{
		Email:    cfg.Auth.BootstrapAdminEmail,
		Username: cfg.Auth.BootstrapAdminName,
		Password: cfg.Auth.BootstrapAdminPassword,
	}, logger); err != nil {
		logger.Fatal("failed to bootstrap admin", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	service.NewNotificationService(dispatcher, logger, cfg.Notification).RegisterHandlers()

	var quotes service.Quoter
	if cfg.Quote.Enabled {
		quotes = service.NewQuoteService(cfg.Quote, service.NewRedisQuoteCache(redis.Client), logger)
	}

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo: userRepo,
		Hasher:   hasher,
		Tokens:   codec,
		Logger:   logger,
	})
	userService := service.NewUserService(userRepo, hasher, logger)
	taskService := service.NewTaskService(service.TaskDependencies{
		TaskRepo:   taskRepo,
		UserRepo:   userRepo,
		Quotes:     quotes,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	metrics := observability.NewMetrics("task_service")
	app := httptransport.NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:        handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:          handlers.NewAuthHandler(authService),
		Users:         handlers.NewUsersHandler(userService),
		Tasks:         handlers.NewTasksHandler(taskService),
		Authenticator: auth.NewRequestAuthenticator(codec, time.Now, logger),
		Metrics:       metrics,
	})

	var notifier *worker.OverdueNotifier
	if cfg.Notification.OverdueEnabled {
		notifier = worker.NewOverdueNotifier(taskRepo, dispatcher, time.Now, logger)
		if err := notifier.Start(cfg.Notification.OverdueSchedule); err != nil {
			logger.Fatal("invalid overdue schedule", zap.Error(err))
		}
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if notifier != nil {
		notifier.Stop()
	}
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
