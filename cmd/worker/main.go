// Package main is the gamification engine worker.
//
// The worker scores completed workouts (from Redis pub/sub or the HTTP API),
// keeps streaks, badges and ranks current, records celebration notifications
// and serves probes and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/powlax/gamification-engine/config"
	"github.com/powlax/gamification-engine/internal/application/command"
	"github.com/powlax/gamification-engine/internal/application/eventhandler"
	"github.com/powlax/gamification-engine/internal/application/query"
	"github.com/powlax/gamification-engine/internal/domain/badge"
	"github.com/powlax/gamification-engine/internal/domain/ledger"
	"github.com/powlax/gamification-engine/internal/domain/notification"
	"github.com/powlax/gamification-engine/internal/domain/rank"
	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/internal/domain/streak"
	"github.com/powlax/gamification-engine/internal/infrastructure/locking"
	"github.com/powlax/gamification-engine/internal/infrastructure/messaging"
	"github.com/powlax/gamification-engine/internal/infrastructure/metrics"
	"github.com/powlax/gamification-engine/internal/infrastructure/persistence/memory"
	"github.com/powlax/gamification-engine/internal/infrastructure/persistence/postgres"
	rediscache "github.com/powlax/gamification-engine/internal/infrastructure/persistence/redis"
	"github.com/powlax/gamification-engine/internal/infrastructure/scheduler"
	"github.com/powlax/gamification-engine/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/powlax/gamification-engine/internal/interface/http"
	"github.com/powlax/gamification-engine/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// stores groups the persistence ports the engine needs.
type stores struct {
	streaks      streak.Repository
	ledger       ledger.Repository
	badges       badge.Repository
	ranks        rank.Repository
	catalog      rediscache.CatalogSource
	healthChecks map[string]jobs.Check
	close        func()
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting gamification engine worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
		"postgres", cfg.UsesPostgres(),
		"redis", cfg.Redis.Enabled,
	)
	for _, f := range cfg.Features.Snapshot() {
		log.Debug("feature flag", "name", f.Name, "enabled", f.Enabled)
	}

	seed, err := loadBadgeSeed(cfg.Engine.BadgeCatalogFile)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. METRICS
	// ─────────────────────────────────────────────────────────────────────────
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	engineMetrics, err := metrics.NewEngine(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. PERSISTENCE (PostgreSQL, or memory when no database is configured)
	// ─────────────────────────────────────────────────────────────────────────
	st, err := openStores(ctx, cfg, seed, log)
	if err != nil {
		return err
	}
	defer st.close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional): lease lock, catalog cache, feed, pub/sub
	// ─────────────────────────────────────────────────────────────────────────
	var (
		cache        *rediscache.Cache
		catalogCache *rediscache.CatalogCache
		feed         notification.Store = memory.NewNotificationFeed(cfg.Engine.NotificationFeedSize)
		badgeCatalog badge.Catalog      = st.catalog
		rankCatalog  rank.Catalog       = st.catalog
	)
	keyed := locking.NewKeyedMutex()
	var locker command.UserLocker = keyed

	if cfg.Redis.Enabled {
		cache, err = rediscache.NewCache(rediscache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   rediscache.DefaultConfig().MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer cache.Close()
		log.Info("redis connection established")

		catalogCache = rediscache.NewCatalogCache(cache, st.catalog, rediscache.TTLCatalog, log)
		badgeCatalog, rankCatalog = catalogCache, catalogCache
		feed = rediscache.NewNotificationFeed(cache, cfg.Engine.NotificationFeedSize)
		st.healthChecks["redis"] = cache.Ping

		if cfg.Features.IsEnabled(config.FeatureDistributedLock) {
			lease := rediscache.NewLeaseLock(cache.Client(), rediscache.LeaseLockConfig{
				TTL:    cfg.Engine.LockTTL,
				Logger: log,
			})
			// The in-process mutex queues local callers so only one of them
			// polls Redis at a time.
			locker = locking.Chain{keyed, lease}
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	busConfig.Observer = engineMetrics
	localBus := messaging.NewInMemoryEventBus(busConfig)

	var bus shared.EventBus = localBus
	if cache != nil {
		breaker := circuitbreaker.RedisPublishBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		})
		bus = messaging.NewFanoutEventBus(localBus, cache, func(t shared.EventType) string {
			return rediscache.PubSubChannel(string(t))
		}, log).WithBreaker(breaker)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = localBus.Close()
	}()

	celebrations := eventhandler.NewCelebrationsHandler(feed, log, eventhandler.CelebrationsConfig{
		NotifyStreakBroken: cfg.Features.IsEnabled(config.FeatureNotifyStreakBroken),
	})
	if err := celebrations.Register(bus); err != nil {
		return fmt.Errorf("failed to register celebrations: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ENGINE
	// ─────────────────────────────────────────────────────────────────────────
	policy := streak.Policy{
		MaxFreezes:         cfg.Engine.MaxFreezes,
		FreezeCooldownDays: cfg.Engine.FreezeCooldownDays,
		FreezesEnabled:     cfg.Features.IsEnabled(config.FeatureStreakFreezes),
	}

	streaks := command.NewStreakManager(st.streaks, bus, command.StreakManagerConfig{
		Policy:           policy,
		Location:         cfg.App.Location,
		ConflictAttempts: cfg.Engine.ConflictAttempts,
		Metrics:          engineMetrics,
		Logger:           log,
	})
	badges := command.NewBadgeEngine(badgeCatalog, st.badges, st.ledger, st.streaks, bus, command.BadgeEngineConfig{
		Metrics: engineMetrics,
		Logger:  log,
	})
	ranks := command.NewRankProgression(rankCatalog, st.ranks, bus, command.RankProgressionConfig{
		ConflictAttempts: cfg.Engine.ConflictAttempts,
		Metrics:          engineMetrics,
		Logger:           log,
	})
	workouts := command.NewCompleteWorkoutHandler(streaks, badges, ranks, st.ledger, locker, bus, command.CompleteWorkoutConfig{
		FirstTodayBonus:  cfg.Features.IsEnabled(config.FeatureFirstTodayBonus),
		MilestoneBonus:   cfg.Features.IsEnabled(config.FeatureStreakMilestoneBonus),
		ConflictAttempts: cfg.Engine.ConflictAttempts,
		Metrics:          engineMetrics,
		Logger:           log,
	})

	status := query.NewGetGamificationStatusHandler(st.streaks, st.ledger, st.badges, badgeCatalog, st.ranks, rankCatalog,
		query.GamificationStatusConfig{Policy: policy, Location: cfg.App.Location})
	preview := query.NewPreviewWorkoutPointsHandler(st.streaks, policy, cfg.App.Location)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	health := jobs.NewDependencyHealthJob(engineMetrics, log)
	for name, check := range st.healthChecks {
		health.Add(name, check)
	}

	sched, err := scheduler.New(scheduler.Config{
		Logger:     log,
		Location:   cfg.App.Location,
		JobTimeout: cfg.Scheduler.JobTimeout,
		Observer:   engineMetrics,
	})
	if err != nil {
		return err
	}
	if cfg.Scheduler.Enabled {
		if err := sched.Every(health, cfg.Scheduler.HealthCheckInterval); err != nil {
			return err
		}
		if catalogCache != nil {
			if err := sched.Every(jobs.NewCatalogRefreshJob(catalogCache, log), cfg.Scheduler.CatalogRefreshInterval); err != nil {
				return err
			}
		}
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				log.Warn("scheduler stop failed", "error", err)
			}
		}()
	}
	if cfg.Scheduler.Enabled {
		_, err = sched.RunNow(ctx, health.Name())
	} else {
		err = health.Run(ctx)
	}
	if err != nil {
		log.Warn("initial health check failed", "error", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. RUN: HTTP API + Redis intake until a signal arrives
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	var server *httpapi.Server
	if cfg.Observability.HTTPEnabled {
		httpCfg := httpapi.DefaultConfig()
		httpCfg.Addr = cfg.Observability.HTTPAddr
		httpCfg.FirstTodayBonus = cfg.Features.IsEnabled(config.FeatureFirstTodayBonus)
		server = httpapi.NewServer(httpCfg, httpapi.Dependencies{
			Status:        status,
			Preview:       preview,
			Workouts:      workouts,
			Notifications: feed,
			Readiness:     health,
			Jobs:          sched,
			Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			Logger:        log,
		})
		g.Go(server.Start)
	}

	if cache != nil {
		intake := rediscache.NewWorkoutIntake(cache, workouts, cfg.Engine.EventTimeout, log)
		g.Go(func() error { return intake.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

		if server == nil {
			return nil
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Info("gamification engine worker is running")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func openStores(ctx context.Context, cfg *config.Config, seed []badge.Definition, log *slog.Logger) (*stores, error) {
	if !cfg.UsesPostgres() {
		log.Warn("DATABASE_URL not set, using the in-memory store; state is lost on exit")
		store := memory.NewStore()
		return &stores{
			streaks:      store,
			ledger:       store,
			badges:       store,
			ranks:        store.Ranks(),
			catalog:      memory.NewCatalog(seed, nil),
			healthChecks: map[string]jobs.Check{},
			close:        func() {},
		}, nil
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	pgCfg.MinConns = int32(cfg.Database.MinConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	log.Info("connecting to database...")
	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date", "applied", applied)
	}

	catalog := postgres.NewCatalogRepository(conn)
	for _, d := range seed {
		if err := catalog.UpsertBadgeDefinition(ctx, d); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to seed badge %q: %w", d.Key, err)
		}
	}
	if len(seed) > 0 {
		log.Info("badge catalog seeded", "badges", len(seed))
	}

	return &stores{
		streaks:      postgres.NewStreakRepository(conn),
		ledger:       postgres.NewLedgerRepository(conn),
		badges:       postgres.NewBadgeRepository(conn),
		ranks:        postgres.NewRankRepository(conn),
		catalog:      catalog,
		healthChecks: map[string]jobs.Check{"postgres": conn.Ping},
		close: func() {
			log.Info("closing database connection...")
			conn.Close()
		},
	}, nil
}

func loadBadgeSeed(path string) ([]badge.Definition, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open badge catalog: %w", err)
	}
	defer f.Close()

	defs, err := badge.DecodeCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read badge catalog %s: %w", path, err)
	}
	return defs, nil
}

// setupLogger configures structured logging.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Observability.LogLevel)}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler).With("service", cfg.App.Name)
	slog.SetDefault(log)
	return log
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
