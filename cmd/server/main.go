package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"foodmed/config"
	"foodmed/internal/database"
	"foodmed/internal/events"
	"foodmed/internal/handler"
	"foodmed/internal/logger"
	"foodmed/internal/repository"
	"foodmed/internal/router"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger config is part of what failed to load
		zap.NewExample().Fatal("config", zap.Error(err))
	}
	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := repository.NewClock()
	var (
		store    router.Store
		lastSeen handler.LastSeenReader
		sinks    []events.Sink
		cleanup  []func()
	)

	switch cfg.Database.Driver {
	case config.DriverMongo:
		cli, db, err := database.NewMongo(ctx, &cfg.Mongo)
		if err != nil {
			log.Fatal("mongo", zap.Error(err))
		}
		cleanup = append(cleanup, func() { _ = cli.Disconnect(context.Background()) })
		repo := repository.NewMongoMessageRepository(db, clock)
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Fatal("mongo indexes", zap.Error(err))
		}
		store = repo
		log.Info("message store ready", zap.String("driver", "mongo"), zap.String("database", cfg.Mongo.Database))
	default:
		db, err := database.NewDB(&cfg.Database)
		if err != nil {
			log.Fatal("database", zap.Error(err))
		}
		if err := database.AutoMigrate(db); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
		presenceRepo := repository.NewPresenceRepository(db)
		if err := presenceRepo.ResetOnline(ctx); err != nil {
			log.Warn("reset presence", zap.Error(err))
		}
		sinks = append(sinks, events.NewPresenceStore(presenceRepo))
		lastSeen = presenceRepo
		store = repository.NewMessageRepository(db, clock)
		log.Info("message store ready", zap.String("driver", "mysql"))
	}

	if cfg.Redis.Addr != "" {
		rdb, err := database.NewRedis(ctx, &cfg.Redis)
		if err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		cleanup = append(cleanup, func() { _ = rdb.Close() })
		mirror := events.NewRedisPresence(rdb, cfg.Redis.NodeID)
		if err := mirror.Reset(ctx); err != nil {
			log.Warn("reset redis presence", zap.Error(err))
		}
		sinks = append(sinks, mirror)
		log.Info("presence mirror enabled", zap.String("addr", cfg.Redis.Addr), zap.String("node", cfg.Redis.NodeID))
	}

	if cfg.NATS.URL != "" {
		nc, err := events.Connect(&cfg.NATS, "foodmed-chat-"+cfg.Redis.NodeID)
		if err != nil {
			log.Fatal("nats", zap.Error(err))
		}
		cleanup = append(cleanup, func() { _ = nc.Drain() })
		sinks = append(sinks, events.NewNATSSink(nc, cfg.NATS.Subject))
		log.Info("event publishing enabled", zap.String("url", cfg.NATS.URL), zap.String("subject", cfg.NATS.Subject))
	}

	bus := events.NewBus(1024, log.Named("events"), sinks...)
	bus.Start(ctx)

	engine, hub := router.Setup(ctx, cfg, router.Deps{Store: store, LastSeen: lastSeen, Publisher: bus}, log)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info("chat server listening", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	hub.CloseAll()
	waitForDisconnects(shutdownCtx, hub.ClientCount)
	bus.Close()
	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}
	log.Info("server stopped", zap.Uint64("dropped_events", bus.Dropped()))
}

// waitForDisconnects gives read pumps a moment to detach their sessions so
// the final presence transitions reach the event sinks.
func waitForDisconnects(ctx context.Context, count func() int) {
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for count() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}
