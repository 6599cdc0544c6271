package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/trade-desk/internal/api/http"
	"github.com/spec-kit/trade-desk/internal/api/http/handlers"
	"github.com/spec-kit/trade-desk/internal/auth"
	"github.com/spec-kit/trade-desk/internal/board"
	"github.com/spec-kit/trade-desk/internal/config"
	"github.com/spec-kit/trade-desk/internal/events"
	"github.com/spec-kit/trade-desk/internal/observability"
	"github.com/spec-kit/trade-desk/internal/persistence"
	"github.com/spec-kit/trade-desk/internal/realtime"
	"github.com/spec-kit/trade-desk/internal/repository"
	"github.com/spec-kit/trade-desk/internal/service"
	"github.com/spec-kit/trade-desk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
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

	if cfg.Postgres.RunMigrations && pg.Enabled() {
		if err := persistence.RunMigrations(cfg.Postgres.DSN, "up", logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	cache := persistence.NewRedis(cfg.Redis, logger)
	defer cache.Close()

	var (
		ticketRepo  repository.TicketRepository
		messageRepo repository.MessageRepository
	)
	if pg.Enabled() {
		ticketRepo = repository.NewTicketRepository(pg.SQLDB())
		messageRepo = repository.NewMessageRepository(pg.SQLDB())
	} else {
		store := repository.NewMemoryStore()
		ticketRepo = store.Tickets()
		messageRepo = store.Messages()
	}

	var sessions auth.SessionStore
	switch {
	case !cfg.Auth.SessionCacheEnabled:
	case cache.Enabled():
		sessions = auth.NewRedisSessionStore(cache.Client, cfg.Auth.SessionCachePrefix)
	default:
		sessions = auth.NewMemorySessionStore()
	}

	if cfg.Auth.UsesDevSecret() {
		logger.Warn("AUTH_SESSION_SECRET not set; signing sessions with the development secret")
	}

	privileges := auth.NewPrivileges(cfg.Auth.TraderIDs)
	if privileges.Empty() {
		logger.Warn("TRADER_IDS is empty; no identity will hold trader privilege")
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	channel := realtime.NewChannel(realtime.Options{
		MaxBacklog: cfg.Realtime.MaxBacklog,
		Logger:     logger.Named("realtime"),
		Observer:   metrics,
	})
	defer channel.Close()
	locks := service.NewTicketLocks()

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Sessions:   sessions,
		Privileges: privileges,
		Logger:     logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:           ticketRepo,
		Dispatcher:           dispatcher,
		Channel:              channel,
		Locks:                locks,
		Recorder:             metrics,
		Logger:               logger,
		CloseStreamsOnDelete: cfg.Realtime.CloseOnTicketGone,
	})
	messageService := service.NewMessageService(service.MessageDependencies{
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		Dispatcher:  dispatcher,
		Channel:     channel,
		Locks:       locks,
		Recorder:    metrics,
		Logger:      logger,
	})

	dashboard := board.New(logger.Named("board"))
	if err := dashboard.Load(ctx, ticketRepo, messageRepo); err != nil {
		logger.Fatal("failed to load dashboard", zap.Error(err))
	}
	dashboard.Register(dispatcher)

	workers := worker.Start(dispatcher, service.NewNotificationService(dispatcher, logger, cfg.Notification),
		messageService, metrics, cfg.AutoReply, logger)
	defer workers.Stop()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthDeps := map[string]handlers.Pinger{"postgres": pg, "redis": cache}
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, healthDeps),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, messageService),
		Stream:         handlers.NewStreamHandler(messageService, logger, cfg.Realtime.Heartbeat(), cfg.Realtime.StreamBufferSize),
		TraderTickets:  handlers.NewTraderTicketsHandler(ticketService, dashboard),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), sessions, privileges, logger),
		Metrics:        metrics,
		WriteLimiter:   httptransport.NewIdentityRateLimiter(cfg.RateLimit.MessagesPerSecond, cfg.RateLimit.Burst, metrics.RecordRateLimited),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	channel.CloseAll()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
