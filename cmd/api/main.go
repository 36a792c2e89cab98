package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/aman-zulfiqar/minidex/internal/config"
	"github.com/aman-zulfiqar/minidex/internal/custody"
	"github.com/aman-zulfiqar/minidex/internal/events"
	"github.com/aman-zulfiqar/minidex/internal/pool"
	"github.com/aman-zulfiqar/minidex/internal/server"
	"github.com/aman-zulfiqar/minidex/internal/service"
	"github.com/aman-zulfiqar/minidex/internal/store"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the pool API server
// It wires storage, custody and event sinks, then serves HTTP with graceful shutdown
func main() {
	// Initialize structured logger with custom formatting
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	// Load and validate configuration from environment variables
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown (Ctrl+C, SIGTERM)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	programID, err := pool.ParseKey(cfg.ProgramID)
	if err != nil {
		logger.WithError(err).Fatal("invalid program id")
	}

	// Pool records and custody live in Redis when configured, otherwise in memory
	var (
		poolStore store.PoolStore = store.NewMemoryStore()
		ledger                    = custody.NewLedger(logger)
		sinks     []events.Sink
	)
	if cfg.RedisAddr != "" {
		rclient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   0, // Use default database for main application
		})
		if err := rclient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Fatal("failed to connect to Redis")
		}
		defer rclient.Close()

		rs, err := store.NewRedisStore(rclient)
		if err != nil {
			logger.WithError(err).Fatal("failed to create pool store")
		}
		poolStore = rs

		journal, err := custody.NewRedisJournal(rclient)
		if err != nil {
			logger.WithError(err).Fatal("failed to create custody journal")
		}
		if ledger, err = custody.OpenLedger(ctx, journal, logger); err != nil {
			logger.WithError(err).Fatal("failed to restore custody ledger")
		}

		pub, err := events.NewPublisher(rclient, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to create event publisher")
		}
		sinks = append(sinks, pub)
		logger.WithField("addr", cfg.RedisAddr).Info("using redis pool store and custody journal")
	} else {
		logger.Warn("REDIS_ADDR not set, pool records and balances are kept in memory")
	}

	// Optional ClickHouse archive of pool events
	if cfg.ClickHouseAddr != "" {
		ch, err := events.NewClickHouseSink(ctx, events.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			logger.WithError(err).Warn("clickhouse unavailable, events will not be archived")
		} else {
			defer ch.Close()
			if err := ch.EnsureSchema(ctx); err != nil {
				logger.WithError(err).Fatal("failed to create pool_events table")
			}
			sinks = append(sinks, ch)
		}
	}

	limits := service.DefaultLimits()
	limits.MaxPriceImpactBps = cfg.MaxPriceImpactBps
	limits.MaxSlippageBps = cfg.MaxSlippageBps
	for _, a := range cfg.AllowedAssets {
		asset, err := pool.ParseAsset(a)
		if err != nil {
			logger.WithError(err).Fatal("invalid allowed asset")
		}
		limits.AllowedAssets = append(limits.AllowedAssets, asset)
	}

	svc, err := service.New(service.Deps{
		Machine: pool.NewMachine(programID),
		Store:   poolStore,
		Custody: ledger,
		Sinks:   sinks,
		Logger:  logger,
	}, service.Config{
		DefaultFeeBps: cfg.DefaultFeeBps,
		Limits:        limits,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create pool service")
	}

	// Create the configured pools that are missing
	if cfg.BootstrapFile != "" {
		configs, err := service.LoadPoolConfigs(cfg.BootstrapFile)
		if err != nil {
			logger.WithError(err).Fatal("failed to load bootstrap pools")
		}
		n, err := svc.Bootstrap(ctx, configs)
		if err != nil {
			logger.WithError(err).Fatal("failed to bootstrap pools")
		}
		logger.WithFields(logrus.Fields{"created": n, "configured": len(configs)}).Info("bootstrap complete")
	}

	// Refuse to serve pools whose funds custody does not hold
	if err := svc.Reconcile(ctx); err != nil {
		logger.WithError(err).Fatal("pool records and custody disagree")
	}

	h := &server.Handlers{
		Service:        svc,
		DevMode:        cfg.DevMode,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger,
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:           cfg.APIAddr,
			DevMode:        cfg.DevMode,
			APIKey:         cfg.APIKey,
			RateLimitRPS:   cfg.RateLimitRPS,
			RateLimitBurst: cfg.RateLimitBurst,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	// Setup graceful shutdown in a separate goroutine
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithFields(logrus.Fields{
		"addr":       cfg.APIAddr,
		"program_id": programID,
		"dev_mode":   cfg.DevMode,
	}).Info("api server starting")
	if err := srv.Start(); err != nil {
		logger.WithError(err).Fatal("api server failed")
	}

	// Wait for server to be fully shut down
	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
