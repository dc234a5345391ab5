package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hongminglow/pawmart/internal/config"
	"github.com/hongminglow/pawmart/internal/http/handlers"
	"github.com/hongminglow/pawmart/internal/jobs"
	"github.com/hongminglow/pawmart/internal/otp"
	"github.com/hongminglow/pawmart/internal/server"
	postgres "github.com/hongminglow/pawmart/internal/storage/postgres"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	if envErr != nil {
		logger.Info("no .env file found; relying on existing environment")
	}

	ctx := context.Background()
	store, err := postgres.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("init database", zap.Error(err))
	}
	defer store.Close()

	checks := map[string]handlers.Pinger{"postgres": store}
	var codes otp.Codes = otp.NewMemoryCodes()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer rdb.Close()
		codes = otp.NewRedisCodes(rdb, "pawmart:otp")
		checks["redis"] = redisPinger{rdb}
	} else {
		logger.Warn("REDIS_ADDR not set; one-time codes are kept in memory")
	}

	sweeper := jobs.NewStaleOrders(store, cfg.PendingOrderTTL, logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("start jobs", zap.Error(err))
	}
	defer sweeper.Stop()

	srv := server.New(cfg, server.Deps{
		Store:  store,
		Codes:  codes,
		Logger: logger,
		Checks: checks,
	})

	go func() {
		logger.Info("PawMart API listening", zap.String("addr", cfg.HTTPAddress()))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("graceful shutdown error", zap.Error(err))
	}
}

func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		zcfg := zap.NewProductionConfig()
		if lvl, perr := zapcore.ParseLevel(level); perr == nil {
			zcfg.Level = zap.NewAtomicLevelAt(lvl)
		}
		logger, err = zcfg.Build()
	}
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }
