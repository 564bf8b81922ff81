package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/incident-service/internal/api/http"
	"github.com/spec-kit/incident-service/internal/api/http/handlers"
	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/config"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/observability"
	"github.com/spec-kit/incident-service/internal/persistence"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/internal/service"
	"github.com/spec-kit/incident-service/internal/sla"
	"github.com/spec-kit/incident-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	incidentRepo := repository.NewIncidentRepository(pool)
	workLogRepo := repository.NewWorkLogRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	registrationRepo := repository.NewRegistrationRequestRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	policy := buildSLAPolicy(cfg.SLA)

	incidentService := service.NewIncidentService(service.IncidentDependencies{
		IncidentRepo:   incidentRepo,
		WorkLogRepo:    workLogRepo,
		CommentRepo:    commentRepo,
		AttachmentRepo: attachmentRepo,
		UserRepo:       userRepo,
		Dispatcher:     dispatcher,
		Policy:         policy,
	})
	assignmentService := service.NewAssignmentService(incidentRepo, userRepo)
	analyticsService := service.NewAnalyticsService(service.AnalyticsDependencies{
		IncidentRepo: incidentRepo,
		UserRepo:     userRepo,
		Policy:       policy,
		Cache:        redis.ClientHandle(),
		CacheTTL:     cfg.SLA.CacheTTL(),
		Logger:       logger,
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:         userRepo,
		RegistrationRepo: registrationRepo,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(authService, assignmentService),
		Incidents:      handlers.NewIncidentsHandler(incidentService),
		Analytics:      handlers.NewAnalyticsHandler(analyticsService, assignmentService),
		AuthMiddleware: authMiddleware,
	})

	var slaWatcher *worker.SLAWatcher
	if cfg.Worker.Enabled && pool != nil {
		slaWatcher = worker.NewSLAWatcher(cfg.Worker, incidentRepo, dispatcher, logger)
		if err := slaWatcher.Start(); err != nil {
			logger.Fatal("failed to start sla watcher", zap.Error(err))
		}
	}

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if slaWatcher != nil {
		slaWatcher.Stop()
	}
	_ = app.Shutdown()
}

func buildSLAPolicy(cfg config.SLAConfig) sla.Policy {
	policy := sla.DefaultPolicy()
	if cfg.CriticalHours > 0 {
		policy.ResolutionTargets[domain.SeverityCritical] = time.Duration(cfg.CriticalHours) * time.Hour
	}
	if cfg.HighHours > 0 {
		policy.ResolutionTargets[domain.SeverityHigh] = time.Duration(cfg.HighHours) * time.Hour
	}
	if cfg.MediumHours > 0 {
		policy.ResolutionTargets[domain.SeverityMedium] = time.Duration(cfg.MediumHours) * time.Hour
	}
	if cfg.LowHours > 0 {
		policy.ResolutionTargets[domain.SeverityLow] = time.Duration(cfg.LowHours) * time.Hour
	}
	if cfg.AtRiskWindowMinute > 0 {
		policy.AtRiskWindow = cfg.AtRiskWindow()
	}
	return policy
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
