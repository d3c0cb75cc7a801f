package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/maplebear/saf-portal/internal/api/http"
	"github.com/maplebear/saf-portal/internal/api/http/handlers"
	"github.com/maplebear/saf-portal/internal/auth"
	"github.com/maplebear/saf-portal/internal/config"
	"github.com/maplebear/saf-portal/internal/events"
	"github.com/maplebear/saf-portal/internal/observability"
	"github.com/maplebear/saf-portal/internal/persistence"
	"github.com/maplebear/saf-portal/internal/repository"
	"github.com/maplebear/saf-portal/internal/service"
	"github.com/maplebear/saf-portal/internal/sla"
	"github.com/maplebear/saf-portal/internal/worker"
)

type flags struct {
	envFiles     []string
	addr         string
	usersFile    string
	hashPassword string
	bcryptCost   int
}

func parseFlags() flags {
	var f flags
	pflag.StringSliceVar(&f.envFiles, "env-file", nil, "dotenv file(s) to load before reading the environment")
	pflag.StringVar(&f.addr, "addr", "", "listen address, overrides APP_HOST and APP_PORT")
	pflag.StringVar(&f.usersFile, "users-file", "", "YAML users file, overrides AUTH_USERS_FILE")
	pflag.StringVar(&f.hashPassword, "hash-password", "", "print the bcrypt hash of the given password and exit")
	pflag.IntVar(&f.bcryptCost, "bcrypt-cost", 12, "bcrypt cost used by --hash-password")
	pflag.Parse()
	return f
}

func main() {
	f := parseFlags()

	if f.hashPassword != "" {
		hash, err := auth.HashPassword(f.hashPassword, f.bcryptCost)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load(f.envFiles...)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if f.addr != "" {
		host, port, err := net.SplitHostPort(f.addr)
		if err != nil {
			log.Fatalf("invalid --addr: %v", err)
		}
		cfg.App.Host, cfg.App.Port = host, port
	}
	if f.usersFile != "" {
		cfg.Auth.UsersFile = f.usersFile
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots, closeStore := openSnapshotStore(ctx, cfg, logger)
	defer closeStore()

	userRepo, err := repository.LoadUsersFile(cfg.Auth.UsersFile)
	if err != nil {
		logger.Fatal("failed to load users file", zap.String("path", cfg.Auth.UsersFile), zap.Error(err))
	}

	ticketRepo := repository.NewTicketRepository(snapshots, logger)
	auditRepo := repository.NewAuditRepository(snapshots, logger)
	notificationRepo := repository.NewNotificationRepository(snapshots, logger)
	evaluationRepo := repository.NewEvaluationRepository(snapshots, logger)
	for name, load := range map[string]func(context.Context) error{
		repository.TicketsKey:       ticketRepo.Load,
		repository.AuditKey:         auditRepo.Load,
		repository.NotificationsKey: notificationRepo.Load,
		repository.EvaluationsKey:   evaluationRepo.Load,
	} {
		if err := load(ctx); err != nil {
			logger.Fatal("failed to load store", zap.String("key", name), zap.Error(err))
		}
	}

	dispatcher := events.NewInMemoryDispatcher(logger)

	auditService := service.NewAuditService(service.AuditDependencies{
		AuditRepo:  auditRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		Audit:      auditService,
		Dispatcher: dispatcher,
		Policy:     sla.Policy{AttentionDays: cfg.SLA.AttentionDays, CriticalDays: cfg.SLA.CriticalDays},
		Logger:     logger,
	})
	coordinatorService := service.NewCoordinatorService(service.CoordinatorDependencies{
		NotificationRepo: notificationRepo,
		EvaluationRepo:   evaluationRepo,
		Linker:           ticketService,
		Lister:           ticketService,
		Dispatcher:       dispatcher,
		Retention:        cfg.SLA.Retention(),
		Logger:           logger,
	})
	approvalService := service.NewApprovalService(service.ApprovalDependencies{
		Audit:       auditService,
		Tickets:     ticketService,
		Coordinator: coordinatorService,
		Logger:      logger,
	})
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:     userRepo,
		TokenManager: tokens,
		Logger:       logger,
	})

	metrics := observability.NewMetrics()
	sinks := []worker.Sink{metrics}
	if len(cfg.Kafka.Brokers) > 0 {
		forwarder := events.NewKafkaForwarder(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic), logger)
		defer forwarder.Close() //nolint:errcheck
		sinks = append(sinks, forwarder)
		logger.Info("kafka forwarding enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.EventsTopic))
	}
	if cfg.PubNub.Enabled() {
		publisher := events.NewPubNubPublisher(cfg.PubNub.PublishKey, cfg.PubNub.SubscribeKey, cfg.PubNub.UserID)
		sinks = append(sinks, events.NewBroadcaster(publisher, logger))
		logger.Info("pubnub broadcasting enabled")
	}
	worker.StartNotificationWorker(dispatcher, service.NewNotificationService(dispatcher, coordinatorService, logger), sinks...)

	slaWorker := worker.NewSLAWorker(worker.SLAWorkerDependencies{
		Tickets:  ticketService,
		Notifier: coordinatorService,
		Gauges:   metrics,
		Interval: cfg.SLA.SweepInterval(),
		Logger:   logger,
	})
	go slaWorker.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, cfg.Storage.Backend, snapshots),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Notifications:  handlers.NewNotificationsHandler(coordinatorService),
		Coordinator:    handlers.NewCoordinatorHandler(coordinatorService, ticketService, auditService, nil),
		Audit:          handlers.NewAuditHandler(auditService, approvalService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, userRepo),
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
}

// openSnapshotStore selects the configured backend and returns a matching closer.
func openSnapshotStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (persistence.SnapshotStore, func()) {
	switch cfg.Storage.Backend {
	case config.StorageRedis:
		redis := persistence.NewRedis(cfg.Redis, logger)
		if err := redis.Ping(ctx); err != nil {
			logger.Fatal("failed to reach redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		return redis, redis.Close
	case config.StoragePostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		return pg, pg.Close
	default:
		logger.Warn("using in-memory snapshots; data is lost on restart")
		return persistence.NewMemorySnapshots(), func() {}
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
