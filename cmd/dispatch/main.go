package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/chatfloor/dispatch/internal/assignment"
	"github.com/chatfloor/dispatch/internal/balance"
	"github.com/chatfloor/dispatch/internal/cache"
	"github.com/chatfloor/dispatch/internal/clock"
	"github.com/chatfloor/dispatch/internal/config"
	"github.com/chatfloor/dispatch/internal/conflict"
	"github.com/chatfloor/dispatch/internal/db"
	dbsqlc "github.com/chatfloor/dispatch/internal/db/sqlc"
	"github.com/chatfloor/dispatch/internal/events"
	"github.com/chatfloor/dispatch/internal/handlers"
	"github.com/chatfloor/dispatch/internal/lock"
	"github.com/chatfloor/dispatch/internal/logger"
	"github.com/chatfloor/dispatch/internal/maintenance"
	"github.com/chatfloor/dispatch/internal/queue"
	"github.com/chatfloor/dispatch/internal/server"
	"github.com/chatfloor/dispatch/internal/timer"
)

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideClock() clock.Clock {
	return clock.System()
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideDBQueries(conn *pgxpool.Pool) *dbsqlc.Queries {
	return dbsqlc.New(conn)
}

func provideBus(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (events.Bus, error) {
	if cfg.AMQP.URL == "" {
		log.Warn("amqp url not configured, events stay in memory")
		return events.NewMemoryBus(), nil
	}
	bus, err := events.NewAMQPBus(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		return nil, fmt.Errorf("connect amqp: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return bus.Close()
		},
	})
	return bus, nil
}

func provideLockService(log *slog.Logger, pool *pgxpool.Pool, queries *dbsqlc.Queries, clk clock.Clock, bus events.Bus) *lock.Service {
	return lock.NewService(log, pool, queries, cache.New[string](clk), clk, bus)
}

func provideTimerService(log *slog.Logger, cfg config.Config, clk clock.Clock, bus events.Bus, locks *lock.Service) *timer.Service {
	return timer.NewService(log, clk, bus, locks, nil,
		cfg.Dispatch.InactivityThreshold(), cfg.Dispatch.WarningThreshold())
}

func provideAssignmentService(log *slog.Logger, cfg config.Config, pool *pgxpool.Pool, queries *dbsqlc.Queries, locks *lock.Service, timers *timer.Service, bus events.Bus, clk clock.Clock) *assignment.Service {
	return assignment.NewService(log, pool, queries, locks, timers, bus, clk, cfg.Dispatch.LockTTL())
}

func provideQueueService(log *slog.Logger, cfg config.Config, pool *pgxpool.Pool, queries *dbsqlc.Queries, assignments *assignment.Service, bus events.Bus, clk clock.Clock) *queue.Service {
	return queue.NewService(log, pool, queries, assignments, bus, clk,
		cfg.Dispatch.MinWaitMinutes, cfg.Dispatch.MaxWaitMinutes)
}

func provideBalanceService(log *slog.Logger, cfg config.Config, queries *dbsqlc.Queries, assignments *assignment.Service, clk clock.Clock) *balance.Service {
	return balance.NewService(log, queries, assignments, cache.New[time.Time](clk), clk,
		cfg.Dispatch.ScoreBase, cfg.Dispatch.ScorePerConversation, cfg.Dispatch.ImbalanceThreshold,
		cfg.Dispatch.RebalanceCooldown(), cfg.Dispatch.ContinuityWindow())
}

func provideConflictService(log *slog.Logger, pool *pgxpool.Pool, queries *dbsqlc.Queries, assignments *assignment.Service, waitQueue *queue.Service, bus events.Bus, clk clock.Clock) *conflict.Service {
	return conflict.NewService(log, pool, queries, assignments, waitQueue, bus, clk)
}

func provideMaintenanceService(log *slog.Logger, cfg config.Config, timers *timer.Service, assignments *assignment.Service, waitQueue *queue.Service, balancer *balance.Service, resolver *conflict.Service, locks *lock.Service) *maintenance.Service {
	return maintenance.NewService(log, cfg.Dispatch, timers, assignments, waitQueue, balancer, resolver, locks)
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

type serverParams struct {
	fx.In

	Logger   *slog.Logger
	Config   config.Config
	Handlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Handlers...)
}

func wireTimerChecker(timers *timer.Service, assignments *assignment.Service) {
	timers.SetChecker(assignments)
}

func startMaintenance(lc fx.Lifecycle, svc *maintenance.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return svc.Start()
		},
		OnStop: func(ctx context.Context) error {
			svc.Stop()
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil { // block until server is stopped
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

func main() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideClock,
			provideDBConn,
			provideDBQueries,
			provideBus,

			provideLockService,
			provideTimerService,
			provideAssignmentService,
			provideQueueService,
			provideBalanceService,
			provideConflictService,
			provideMaintenanceService,

			provideServerHandler(handlers.NewHealthHandler),
			provideServerHandler(handlers.NewWorkerHandler),
			provideServerHandler(handlers.NewAssignmentHandler),
			provideServerHandler(handlers.NewQueueHandler),
			provideServerHandler(handlers.NewClientHandler),
			provideServerHandler(handlers.NewBalanceHandler),
			provideServerHandler(handlers.NewLockHandler),
			provideServerHandler(handlers.NewMaintenanceHandler),

			provideServer,
		),
		fx.Invoke(
			wireTimerChecker,
			startMaintenance,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}
