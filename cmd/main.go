package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"astrochat/backend/internal/api/handler"
	"astrochat/backend/internal/auth"
	"astrochat/backend/internal/chathub"
	"astrochat/backend/internal/config"
	"astrochat/backend/internal/consultation"
	"astrochat/backend/internal/logging"
	"astrochat/backend/internal/metrics"
	"astrochat/backend/internal/models"
	"astrochat/backend/internal/relay"
	"astrochat/backend/internal/storage"
	"astrochat/backend/internal/storage/memstore"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// backend is the storage a process runs on plus the hooks to release it.
type backend struct {
	store storage.Storage
	lease consultation.Lease
	close func(context.Context) error
}

func setupDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		s := memstore.New()
		for _, entry := range cfg.SeedUsers {
			parts := strings.SplitN(entry, ":", 3)
			if len(parts) != 3 {
				return nil, fmt.Errorf("invalid SEED_USERS entry %q, want id:name:role", entry)
			}
			s.PutUser(models.User{ID: parts[0], Name: parts[1], Role: parts[2], IsAvailable: true})
		}
		return &backend{store: s, lease: s, close: func(context.Context) error { return nil }}, nil
	}

	// 1. PostgreSQL
	db, err := storage.OpenPostgres(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	// 2. MongoDB
	mdb, err := storage.OpenMongo(ctx, cfg.MongoURL, cfg.MongoDatabase)
	if err != nil {
		return nil, err
	}

	// 3. Redis (необов'язковий: без нього лізинг завжди надається)
	var s *storage.Service
	if cfg.RedisAddr != "" {
		rdb, err := storage.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		s = storage.NewStorageService(db, mdb, rdb)
	} else {
		s = storage.NewStorageService(db, mdb, nil)
	}

	// 4. Міграції
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}

	logger.Info("database connections established, migrations complete")
	return &backend{store: s, lease: s, close: s.Close}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting consultation backend", zap.String("storage", cfg.StorageDriver))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Ініціалізація залежностей
	deps, err := setupDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to set up storage", zap.Error(err))
	}

	clk := clock.New()
	m := metrics.New(prometheus.DefaultRegisterer)

	// 2. Hub, relay та broker (hub є notifier для обох)
	hub := chathub.NewManagerService(chathub.NewSendLimiter(cfg.SendRateLimit, cfg.SendRateBurst, clk), logger, m)
	msgRelay := relay.New(deps.store, hub, clk, logger, m)
	broker := consultation.NewBroker(deps.store, hub, clk, logger, m)
	hub.Attach(msgRelay, broker)

	// 3. Фоновий sweeper
	sweeper := consultation.NewSweeper(broker, deps.lease, clk, cfg.SweepInterval, logger)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(ctx)
	}()

	// 4. Налаштування Gin та роутингу
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewHandler(hub, msgRelay, broker, auth.NewVerifier(cfg.JWTSecret, deps.store, clk), cfg.AllowedOrigins, logger)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        h.Routes(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
		}
		stop()
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	hub.Shutdown(shutdownCtx)
	<-sweepDone
	err = multierr.Append(err, deps.close(shutdownCtx))
	if err != nil {
		logger.Error("shutdown finished with errors", zap.Error(err))
		return
	}
	logger.Info("shutdown complete")
}
