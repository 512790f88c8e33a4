package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/simplenotify/internal/api"
	"github.com/charlesng35/simplenotify/internal/app"
	"github.com/charlesng35/simplenotify/internal/app/maintenance"
	iauth "github.com/charlesng35/simplenotify/internal/auth"
	"github.com/charlesng35/simplenotify/internal/cache"
	"github.com/charlesng35/simplenotify/internal/database"
	"github.com/charlesng35/simplenotify/internal/middleware"
	"github.com/charlesng35/simplenotify/internal/monitoring"
	"github.com/charlesng35/simplenotify/internal/monitoring/checks"
	"github.com/charlesng35/simplenotify/internal/push"
	"github.com/charlesng35/simplenotify/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Redis      *cache.RedisClient
	Cache      cache.Store
	Monitoring *monitoring.Module
	Services   *api.Services
	Cleaner    *maintenance.Cleaner
	Router     *gin.Engine
}

// bootstrapRuntime initialises the database, cache, push client, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	stack.Cache = dbStore

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisClient(cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
			stack.Redis = nil
		} else {
			stack.Cache = stack.Redis
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	stack.Monitoring, err = monitoring.NewModule(monitoring.Options{})
	if err != nil {
		return nil, fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(stack.Monitoring)

	pushCfg := cfg.Push.ClientConfig()
	var sender push.Sender
	if pushCfg.Configured() {
		client, err := push.NewClient(pushCfg)
		if err != nil {
			return nil, fmt.Errorf("initialise push client: %w", err)
		}
		sender = client
	} else {
		log.Warn("push notifications disabled; set push.vapid credentials to enable delivery", zap.Error(pushCfg.Validate()))
	}

	stack.Services, err = api.BuildServices(stack.DB, stack.Cache, sender, pushCfg)
	if err != nil {
		return nil, err
	}

	registerHealthChecks(stack, cfg)

	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(stack.DB, dbStore,
			maintenance.WithCacheSchedule(cfg.Maintenance.CacheSchedule),
			maintenance.WithPreferencesSchedule(cfg.Maintenance.PreferencesSchedule),
		)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Router, err = api.NewRouter(jwtSvc, cfg, stack.Services, api.Options{
		RateStore:  middleware.NewRateStore(stack.Cache),
		Monitoring: stack.Monitoring,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	report := stack.Monitoring.Health().EvaluateReadiness(ctx)
	log.Info("initial readiness", zap.String("status", string(report.Status)))

	success = true
	return stack, nil
}

func registerHealthChecks(stack *runtimeStack, cfg *app.Config) {
	health := stack.Monitoring.Health()
	health.RegisterReadiness(checks.Database(stack.DB, 0))

	var pinger checks.RedisPinger
	if stack.Redis != nil {
		pinger = stack.Redis
	}
	health.RegisterReadiness(checks.Redis(pinger, cfg.Cache.Redis.Enabled, cfg.Cache.Redis.Timeout))
	health.RegisterReadiness(checks.Push(stack.Services.Dispatcher))

	if cfg.Maintenance.Enabled {
		health.RegisterReadiness(checks.Maintenance(0))
	}
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	driver := dbCfg.Driver
	if driver == "" {
		driver = "sqlite"
	}
	logger.WithModule("database").Info("database connected", zap.String("driver", driver))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
