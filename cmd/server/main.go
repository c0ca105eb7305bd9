// Package main - точка входа сервиса учёта посещаемости стажёров.
//
// Сервер отвечает за:
// - HTTP API для отметок прихода и ухода
// - Админские операции с ростером и историей
// - Периодическое перечитывание документа из GitHub
//
// Документ data/attendance.json хранится в репозитории GitHub. Если GitHub
// недоступен, записи уходят в резервное хранилище (файл, Redis или Postgres).
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
	"time"

	"github.com/exportstafft-ui/intern-attendance/config"
	"github.com/exportstafft-ui/intern-attendance/internal/application/command"
	"github.com/exportstafft-ui/intern-attendance/internal/application/query"
	"github.com/exportstafft-ui/intern-attendance/internal/domain/attendance"
	"github.com/exportstafft-ui/intern-attendance/internal/infrastructure/external/github"
	"github.com/exportstafft-ui/intern-attendance/internal/infrastructure/persistence/document"
	"github.com/exportstafft-ui/intern-attendance/internal/infrastructure/persistence/file"
	"github.com/exportstafft-ui/intern-attendance/internal/infrastructure/persistence/postgres"
	"github.com/exportstafft-ui/intern-attendance/internal/infrastructure/persistence/redis"
	"github.com/exportstafft-ui/intern-attendance/internal/infrastructure/scheduler"
	"github.com/exportstafft-ui/intern-attendance/internal/infrastructure/scheduler/jobs"
	"github.com/exportstafft-ui/intern-attendance/internal/infrastructure/service"
	httpserver "github.com/exportstafft-ui/intern-attendance/internal/interface/http"
	"github.com/exportstafft-ui/intern-attendance/internal/interface/http/handlers"
	"github.com/exportstafft-ui/intern-attendance/pkg/circuitbreaker"
	"github.com/exportstafft-ui/intern-attendance/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
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
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ И ЧАСОВОГО ПОЯСА
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)

	loc, err := timeutil.LoadLocation(cfg.App.Timezone)
	if err != nil {
		return err
	}
	timeutil.SetLocation(loc)

	log.Info("starting intern attendance server",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", loc.String(),
		"late_after", cfg.Policy.Policy.String(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. РЕЗЕРВНОЕ ХРАНИЛИЩЕ
	// ─────────────────────────────────────────────────────────────────────────
	fallback, closeFallback, err := openFallback(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open fallback store: %w", err)
	}
	defer closeFallback()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. УДАЛЁННОЕ ХРАНИЛИЩЕ (GitHub contents API)
	// ─────────────────────────────────────────────────────────────────────────
	var contents service.ContentsClient = service.OfflineContentsClient{}
	if cfg.RemoteEnabled() {
		ghConfig := github.DefaultClientConfig(cfg.GitHub.Owner, cfg.GitHub.Repo)
		ghConfig.BaseURL = cfg.GitHub.BaseURL
		ghConfig.Branch = cfg.GitHub.Branch
		ghConfig.Token = cfg.GitHub.Token
		ghConfig.Timeout = cfg.GitHub.RequestTimeout
		ghConfig.MaxAttempts = cfg.GitHub.MaxRetries
		ghConfig.Logger = log
		ghConfig.Debug = cfg.App.Debug
		contents = github.NewClient(ghConfig)

		if cfg.GitHub.Token == "" {
			log.Warn("GITHUB_TOKEN is empty, writes will land in the fallback store")
		}
	} else {
		log.Warn("no GitHub repository configured, running on the fallback store only",
			"driver", cfg.Storage.FallbackDriver)
	}

	storeConfig := service.DefaultDocumentStoreConfig()
	storeConfig.StaleWriteAttempts = cfg.GitHub.StaleWriteAttempts
	storeConfig.BreakerFailureThreshold = cfg.GitHub.CircuitBreakerThreshold
	storeConfig.BreakerOpenTimeout = cfg.GitHub.CircuitBreakerTimeout
	storeConfig.Logger = log
	store := service.NewDocumentStoreAdapter(contents, fallback, storeConfig)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ЗАГРУЗКА ДОКУМЕНТА
	// ─────────────────────────────────────────────────────────────────────────
	repo := document.NewAttendanceRepository(store, fallback, document.Config{
		Path:   cfg.Storage.Path,
		Logger: log,
	})

	data, source, err := repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load attendance: %w", err)
	}
	log.Info("attendance loaded",
		"source", source,
		"interns", len(data.Interns),
		"records", len(data.Records),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. КОМАНДЫ И ЗАПРОСЫ
	// ─────────────────────────────────────────────────────────────────────────
	markHandler := command.NewMarkAttendanceHandler(repo, command.MarkAttendanceHandlerConfig{
		Policy: cfg.Policy.Policy,
		Logger: log,
	})
	rosterHandler := command.NewRosterHandler(repo, log)
	attendanceQuery := query.NewGetDailyAttendanceHandler(repo)

	// Если GitHub не ответил, настоящий список может лежать в репозитории:
	// заполнение по умолчанию затёрло бы его при следующей записи.
	if cfg.Roster.SeedDefaults && !repo.State().Seedable() {
		log.Warn("remote document unavailable, default roster not seeded")
	} else if cfg.Roster.SeedDefaults {
		seeded, err := rosterHandler.SeedDefaults(ctx)
		if err != nil {
			// Not fatal: the roster can still be filled from the admin page.
			log.Error("failed to seed default roster", "error", err)
		} else if seeded {
			log.Info("default roster installed")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	schedConfig := scheduler.DefaultSchedulerConfig()
	schedConfig.Logger = log
	schedConfig.JobTimeout = cfg.Scheduler.JobTimeout
	sched := scheduler.NewScheduler(schedConfig)
	sched.OnJobError(func(jobName string, err error) {
		log.Warn("scheduled job failed", "job", jobName, "error", err)
	})

	refreshJob := jobs.NewRefreshAttendanceJob(repo, log, cfg.GitHub.RequestTimeout)
	if err := sched.Register(refreshJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RefreshInterval)); err != nil {
		return fmt.Errorf("failed to register refresh job: %w", err)
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			_ = sched.Stop()
			runs, skipped := refreshJob.Runs()
			log.Info("refresh job stopped", "runs", runs, "skipped", skipped)
		}()
	} else {
		log.Info("scheduler disabled, document will only be reloaded on demand")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("fallback_store", handlers.NewPingCheck(fallback))
	health.AddCheck("attendance_loaded", func(ctx context.Context) error {
		if !repo.State().Loaded {
			return errors.New("attendance document not loaded")
		}
		return nil
	})
	if cfg.GitHub.RequestTimeout > 0 {
		health.SetTimeout(cfg.GitHub.RequestTimeout)
	}
	if cfg.RemoteEnabled() {
		health.AddOptionalCheck("github", handlers.NewPingCheck(store))
		health.AddOptionalCheck("github_breaker", func(ctx context.Context) error {
			if state := store.BreakerState(); state != circuitbreaker.StateClosed {
				return fmt.Errorf("circuit breaker is %s, writes go to the fallback store", state)
			}
			return nil
		})
	} else if cfg.IsProduction() {
		log.Warn("production instance without a GitHub repository")
	}
	if cfg.Scheduler.Enabled {
		health.AddOptionalCheck("refresh_job", func(ctx context.Context) error {
			last := refreshJob.LastRun()
			if last != nil && last.Error != "" {
				return errors.New(last.Error)
			}
			return nil
		})
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.EnableCORS = cfg.HTTP.EnableCORS
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpConfig.AdminUser = cfg.HTTP.AdminUser
	httpConfig.AdminPasswordHash = cfg.HTTP.AdminPasswordHash

	if httpConfig.AdminPasswordHash == "" {
		log.Warn("ADMIN_PASSWORD_HASH is empty, admin endpoints are open")
	}

	server := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		MarkAttendance: markHandler,
		Roster:         rosterHandler,
		Attendance:     attendanceQuery,
		Loader:         repo,
		Jobs:           sched,
		HealthChecker:  health,
		Logger:         log,
	})
	serverErr := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}

	// A write may still be in flight; give it the rest of the shutdown window.
	for repo.WriteInFlight() && shutdownCtx.Err() == nil {
		time.Sleep(50 * time.Millisecond)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// openFallback builds the configured fallback driver. The returned func
// releases its connections.
func openFallback(ctx context.Context, cfg *config.Config, log *slog.Logger) (attendance.FallbackStore, func(), error) {
	switch cfg.Storage.FallbackDriver {
	case config.FallbackRedis:
		log.Info("connecting to Redis...", "host", cfg.Redis.Host, "port", cfg.Redis.Port)
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

		store, err := redis.NewFallbackStore(redisCfg)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Redis connection established")
		return store, func() { _ = store.Close() }, nil

	case config.FallbackPostgres:
		log.Info("connecting to database...")
		settings := postgres.DefaultPoolSettings()
		settings.MaxConns = int32(cfg.Database.MaxConns)
		settings.MinConns = int32(cfg.Database.MinConns)
		settings.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		settings.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

		conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, settings)
		if err != nil {
			return nil, nil, err
		}
		migrator := postgres.NewMigrator(conn)
		if cfg.Database.AutoMigrate {
			log.Info("checking database migrations...")
			if err := migrator.Migrate(ctx); err != nil {
				conn.Close()
				return nil, nil, fmt.Errorf("migrations: %w", err)
			}
		}
		pending, err := migrator.Pending(ctx)
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		for _, mig := range pending {
			log.Warn("database migration not applied, fallback saves will fail",
				"version", mig.Version, "name", mig.Name)
		}
		log.Info("database connection established")
		return postgres.NewFallbackRepository(conn), conn.Close, nil

	default:
		store, err := file.NewFallbackStore(cfg.Storage.FileDir)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using file fallback store", "dir", store.Dir())
		return store, func() {}, nil
	}
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Observability.LogLevel),
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" {
		// JSON формат для production (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		// Текстовый формат для development (лучше читается)
		handler = slog.NewTextHandler(os.Stdout, opts)
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
