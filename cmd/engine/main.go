// Package main - точка входа движка достижений.
//
// Движок принимает поведенческие события (сообщения, привязки игроков,
// клановые войны), прогоняет их через очередь с дедупликацией и оценивает
// правила каталога достижений. Завершения публикуются на шину и
// возвращаются в очередь синтетическими событиями, чтобы работали цепочки
// достижений.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: каталог, прогресс, профили, таблица лидеров
// - Application: evaluator, commands, queries, обработчики событий
// - Infrastructure: очередь, диспетчер, Postgres, Redis, планировщик
// - Interface: REST API
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	// Application layer
	"github.com/clanhub/achievement-engine/internal/application/command"
	"github.com/clanhub/achievement-engine/internal/application/eventhandler"
	"github.com/clanhub/achievement-engine/internal/application/evaluator"
	"github.com/clanhub/achievement-engine/internal/application/query"

	// Domain layer
	"github.com/clanhub/achievement-engine/internal/domain/achievement"
	"github.com/clanhub/achievement-engine/internal/domain/leaderboard"
	"github.com/clanhub/achievement-engine/internal/domain/profile"

	// Infrastructure layer
	"github.com/clanhub/achievement-engine/internal/infrastructure/messaging"
	"github.com/clanhub/achievement-engine/internal/infrastructure/persistence/postgres"
	"github.com/clanhub/achievement-engine/internal/infrastructure/persistence/redis"
	"github.com/clanhub/achievement-engine/internal/infrastructure/scheduler"
	"github.com/clanhub/achievement-engine/internal/infrastructure/scheduler/jobs"

	// Interface layer
	httpserver "github.com/clanhub/achievement-engine/internal/interface/http"
	"github.com/clanhub/achievement-engine/internal/interface/http/handlers"

	// Packages
	"github.com/clanhub/achievement-engine/config"
	"github.com/clanhub/achievement-engine/pkg/logger"
	"github.com/clanhub/achievement-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	rollback := flag.Bool("rollback", false, "откатить последнюю миграцию и выйти")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *rollback {
		if err := rollbackMigration(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "rollback failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// rollbackMigration откатывает последнюю применённую миграцию. Отдельный
// режим запуска для операторов, движок при этом не стартует.
func rollbackMigration(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var dbConn *postgres.Connection
	if cfg.Database.URL != "" {
		dbConn, err = postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	} else {
		dbConn, err = postgres.NewConnection(ctx, postgres.DefaultConfig())
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	return postgres.NewMigrator(dbConn).Rollback(ctx)
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ И ТАЙМЗОНЫ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting achievement engine",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	// Календарные границы (сутки, недели, стрики) считаются в одной таймзоне
	// на весь движок.
	timeutil.Location = cfg.App.Location

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	var dbConn *postgres.Connection
	if cfg.Database.URL != "" {
		dbConn, err = postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	} else {
		dbConn, err = postgres.NewConnection(ctx, postgres.DefaultConfig())
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	status, err := migrator.Status(ctx)
	if err != nil {
		log.Warn("failed to get migration status", "error", err)
	} else {
		appliedCount := 0
		for _, m := range status {
			if m.IsApplied {
				appliedCount++
			}
		}
		log.Info("migrations completed", "applied", appliedCount, "total", len(status))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var leaderboardCache *redis.LeaderboardCache
	var profileCache *redis.ProfileCache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			// Движок полностью работоспособен без Redis, чтения идут в Postgres.
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			if cfg.Features.IsEnabled(config.FeatureLeaderboardCache, nil) {
				leaderboardCache = redis.NewLeaderboardCache(redisCache, log)
			}
			profileCache = redis.NewProfileCache(redisCache, log)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ И КАТАЛОГА
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	progressRepo := postgres.NewProgressRepository(dbConn)
	historyRepo := postgres.NewRewardHistoryRepository(dbConn)
	eventLogRepo := postgres.NewEventLogRepository(dbConn)
	leaderboardRepo := postgres.NewLeaderboardRepository(dbConn)
	catalogRepo := postgres.NewCatalogRepository(dbConn)
	txManager := postgres.NewTxManager(dbConn)

	var profileRepo profile.Repository = postgres.NewProfileRepository(dbConn)
	if profileCache != nil {
		profileRepo = redis.NewCachedProfileRepository(profileRepo, profileCache)
	}

	catalog, err := achievement.NewSystemCatalog()
	if err != nil {
		return fmt.Errorf("failed to build achievement catalog: %w", err)
	}
	log.Info("achievement catalog loaded", "size", catalog.Size())

	// Каталог версионируется в коде; в базу он сохраняется для отчётов и
	// внешних читателей.
	if err := catalogRepo.SaveAll(ctx, catalog.All()); err != nil {
		log.Warn("failed to persist achievement catalog", "error", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ОЧЕРЕДЬ, ШИНА СОБЫТИЙ И ДИСПЕТЧЕР
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event pipeline...")

	queue := messaging.NewQueue(messaging.QueueConfig{
		Capacity:    cfg.Engine.QueueCapacity,
		DedupWindow: cfg.Engine.DedupWindow,
		DedupTTL:    cfg.Engine.DedupTTL,
		Logger:      log,
	})
	defer queue.Close()

	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	eval := evaluator.New(catalog)

	dispatcher := messaging.NewDispatcher(messaging.DispatcherConfig{
		Queue:        queue,
		Evaluator:    eval,
		Enricher:     messaging.NewEnricher(log),
		Bus:          eventBus,
		ProgressRepo: progressRepo,
		ProfileRepo:  profileRepo,
		EventLog:     eventLogRepo,
		DequeueWait:  cfg.Engine.DequeueWait,
		Logger:       log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 8. РЕГИСТРАЦИЯ ОБРАБОТЧИКОВ ДОМЕННЫХ СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("registering event handlers...")

	var profileInvalidator eventhandler.ProfileInvalidator
	if profileCache != nil {
		profileInvalidator = profileCache
	}
	var leaderboardInvalidator eventhandler.LeaderboardInvalidator
	if leaderboardCache != nil {
		leaderboardInvalidator = leaderboardCache
	}

	completedHandler := eventhandler.NewOnAchievementCompletedHandler(
		profileInvalidator, log, eventhandler.DefaultAchievementCompletedConfig())
	claimedHandler := eventhandler.NewOnRewardsClaimedHandler(
		leaderboardInvalidator, profileInvalidator, log, eventhandler.DefaultRewardsClaimedConfig())

	if err := eventBus.Subscribe(completedHandler.EventType(), completedHandler.Handle); err != nil {
		return fmt.Errorf("failed to subscribe completion handler: %w", err)
	}
	if err := eventBus.Subscribe(claimedHandler.EventType(), claimedHandler.Handle); err != nil {
		return fmt.Errorf("failed to subscribe claim handler: %w", err)
	}
	if cfg.Features.IsEnabled(config.FeatureProfileLevelUpEvents, nil) {
		levelUpHandler := eventhandler.NewOnLevelUpHandler(log, eventhandler.DefaultLevelUpConfig())
		if err := eventBus.Subscribe(levelUpHandler.EventType(), levelUpHandler.Handle); err != nil {
			return fmt.Errorf("failed to subscribe level-up handler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. APPLICATION LAYER (Commands, Queries)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	trackEventCmd := command.NewTrackEventHandler(queue)
	syncStatsCmd := command.NewSyncUserStatsHandler(queue)
	claimRewardsCmd := command.NewClaimRewardsHandler(
		catalog, progressRepo, profileRepo, historyRepo, txManager, eventBus, log)
	recheckCmd := command.NewRecheckAchievementsHandler(
		eval, progressRepo, profileRepo, queue, eventBus, log)

	var lbCache leaderboard.Cache
	if leaderboardCache != nil {
		lbCache = leaderboardCache
	}
	progressQuery := query.NewGetProgressHandler(catalog, progressRepo)
	allProgressQuery := query.NewGetAllProgressHandler(catalog, progressRepo)
	profileQuery := query.NewGetProfileHandler(profileRepo, historyRepo)
	summaryQuery := query.NewGetSummaryHandler(catalog, progressRepo, profileRepo)
	leaderboardQuery := query.NewGetLeaderboardHandler(leaderboardRepo, lbCache)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. ПЛАНИРОВЩИК ФОНОВЫХ ЗАДАЧ
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		log.Info("initializing scheduler...")

		sched = scheduler.NewScheduler(scheduler.SchedulerConfig{
			Logger:        log,
			Timezone:      cfg.App.Location,
			EnableMetrics: true,
		})

		sweepJob := jobs.NewSweepDedupJob(queue, log)
		if err := sched.Register(sweepJob, scheduler.NewIntervalSchedule(cfg.Scheduler.SweepInterval)); err != nil {
			return fmt.Errorf("failed to register sweep job: %w", err)
		}
		if lbCache != nil {
			// Без Redis перестраивать нечего.
			rebuildJob := jobs.NewRebuildLeaderboardJob(
				leaderboardRepo, lbCache, log, jobs.DefaultRebuildLeaderboardConfig())
			rebuildSchedule := scheduler.NewIntervalSchedule(cfg.Scheduler.RebuildLeaderboardInterval).WithJitter(30 * time.Second)
			if err := sched.Register(rebuildJob, rebuildSchedule); err != nil {
				return fmt.Errorf("failed to register leaderboard rebuild job: %w", err)
			}
		}
		if cfg.Features.IsEnabled(config.FeatureEventsDailyActivity, nil) {
			dailyCron, err := scheduler.ParseCronExpression(cfg.Scheduler.DailyActivityCron)
			if err != nil {
				return fmt.Errorf("invalid daily activity cron: %w", err)
			}
			dailyJob := jobs.NewDailyActivityJob(
				eventLogRepo, queue, log, jobs.DefaultDailyActivityConfig())
			if err := sched.Register(dailyJob, dailyCron); err != nil {
				return fmt.Errorf("failed to register daily activity job: %w", err)
			}
		}
		if cfg.Features.IsEnabled(config.FeatureEventsWeeklySummary, nil) {
			weeklyCron, err := scheduler.ParseCronExpression(cfg.Scheduler.WeeklySummaryCron)
			if err != nil {
				return fmt.Errorf("invalid weekly summary cron: %w", err)
			}
			weeklyJob := jobs.NewWeeklySummaryJob(
				eventLogRepo, queue, log, jobs.DefaultWeeklySummaryConfig())
			if err := sched.Register(weeklyJob, weeklyCron); err != nil {
				return fmt.Errorf("failed to register weekly summary job: %w", err)
			}
		}
	} else {
		log.Info("scheduler disabled by configuration")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	healthChecker.AddCheck("queue", handlers.NewQueueCheck(queue, cfg.Engine.QueueCapacity))
	if redisCache != nil {
		// Redis опционален: деградируем, но остаёмся в ротации.
		healthChecker.AddOptionalCheck("cache", handlers.NewCacheCheck(redisCache))
	}

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.EnableCORS = cfg.HTTP.EnableCORS
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpConfig.APIKeyHeader = cfg.HTTP.APIKeyHeader
	httpConfig.APIKeys = cfg.HTTP.APIKeys

	httpServer := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		TrackEventHandler:          trackEventCmd,
		ClaimRewardsHandler:        claimRewardsCmd,
		RecheckAchievementsHandler: recheckCmd,
		SyncUserStatsHandler:       syncStatsCmd,
		GetProgressHandler:         progressQuery,
		GetAllProgressHandler:      allProgressQuery,
		GetProfileHandler:          profileQuery,
		GetSummaryHandler:          summaryQuery,
		GetLeaderboardHandler:      leaderboardQuery,
		Logger:                     setupHTTPLogger(cfg),
		HealthChecker:              healthChecker,
		StatsSource:                queue,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 12. ЗАПУСК СЕРВИСОВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting services...")

	pipelineCtx, stopPipeline := context.WithCancel(ctx)
	defer stopPipeline()

	dispatcher.Start(pipelineCtx)

	if sched != nil {
		if err := sched.Start(pipelineCtx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "address", httpServer.Address())
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 13. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("achievement engine is running",
		"http_address", httpServer.Address(),
		"queue_capacity", cfg.Engine.QueueCapacity,
		"scheduler_enabled", cfg.Scheduler.Enabled,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		log.Error("service error", "error", err)
		return err
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error

	// 1. Перестаём принимать новые события.
	log.Info("stopping HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		shutdownErr = err
	}

	// 2. Останавливаем планировщик, чтобы он не подкладывал синтетику.
	if sched != nil {
		log.Info("stopping scheduler...")
		if err := sched.Stop(); err != nil {
			log.Error("failed to stop scheduler gracefully", "error", err)
			shutdownErr = err
		}
	}

	// 3. Гасим диспетчер и ждём, пока он дообработает текущее событие.
	log.Info("stopping dispatcher...")
	stopPipeline()
	dispatcher.Wait()

	// 4. Очередь, шина и база закроются через defer.

	if shutdownErr != nil {
		log.Warn("shutdown completed with errors")
	} else {
		log.Info("shutdown completed successfully")
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slogLevel(cfg.Observability.LogLevel),
	}

	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	if strings.EqualFold(cfg.Observability.LogFormat, "text") {
		// Текстовый формат для development (лучше читается)
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		// JSON формат для production (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// slogLevel переводит строку конфигурации в уровень slog.
func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupHTTPLogger настраивает логгер HTTP-слоя.
func setupHTTPLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	switch strings.ToLower(cfg.Observability.LogLevel) {
	case "debug":
		opts.Level = logger.LevelDebug
	case "warn":
		opts.Level = logger.LevelWarn
	case "error":
		opts.Level = logger.LevelError
	}
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts)
}
