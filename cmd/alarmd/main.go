package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"alarm-tracker-backend/config"
	"alarm-tracker-backend/internal/alarm"
	"alarm-tracker-backend/internal/api"
	"alarm-tracker-backend/internal/db"
	"alarm-tracker-backend/internal/events"
	"alarm-tracker-backend/internal/logging"
	"alarm-tracker-backend/internal/metrics"
	"alarm-tracker-backend/internal/mq"
	"alarm-tracker-backend/internal/notification"
	"alarm-tracker-backend/internal/simulation"
	"alarm-tracker-backend/internal/snapshot"
	"alarm-tracker-backend/internal/store"
	"alarm-tracker-backend/internal/tracker"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "alarm-tracker")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath), zap.String("mode", cfg.Tracker.Mode))

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = newRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	// Database: required in remote mode, optional otherwise (push subscriptions).
	var appStore store.Store
	if cfg.Database.DSN != "" {
		gormDB, err := db.Init(&cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to initialize database", zap.Error(err))
		}
		appStore = store.NewGormStore(gormDB)
		logger.Info("data store initialized", zap.String("driver", cfg.Database.Driver))
	}

	var (
		backend tracker.Backend
		snap    *snapshot.Store
	)
	switch cfg.Tracker.Mode {
	case config.ModeRemote:
		seeded, err := appStore.SeedDefaults(ctx, alarm.Initialize(cfg.Tracker.AlarmCount, time.Now().UTC()))
		if err != nil {
			logger.Fatal("failed to seed alarms", zap.Error(err))
		}
		if seeded > 0 {
			logger.Info("seeded default alarms", zap.Int64("count", seeded))
		}
		backend = tracker.NewRemoteBackend(appStore)
	default:
		blobs, err := newBlobStore(cfg, redisClient)
		if err != nil {
			logger.Fatal("failed to open snapshot storage", zap.Error(err))
		}
		snap = snapshot.New(blobs, cfg.Snapshot.Key, cfg.Tracker.AlarmCount, logger)
		local := tracker.NewLocalBackend(ctx, snap, time.Now().UTC())
		if appStore != nil {
			if err := local.MirrorTo(ctx, appStore); err != nil {
				logger.Fatal("failed to mirror alarms to the database", zap.Error(err))
			}
		}
		backend = local
	}

	hub := events.NewHub()
	if cfg.Events.RedisRelay {
		relay := events.NewRedisRelay(redisClient, cfg.Events.Channel, logger)
		if err := relay.Start(ctx, hub); err != nil {
			logger.Fatal("failed to start event relay", zap.Error(err))
		}
		hub.SetRelay(relay, func(err error) {
			logger.Warn("failed to relay event", zap.Error(err))
		})
	}

	// Notification channels
	var channels []notification.Channel
	if cfg.Notification.Email.Enabled && cfg.Notification.Email.APIKey != "" {
		email, err := notification.NewEmailChannel(cfg.Notification.Email, logger)
		if err != nil {
			logger.Fatal("failed to configure email", zap.Error(err))
		}
		channels = append(channels, email)
	}
	var webpushOptions *webpush.Options
	if cfg.Notification.Push.PublicKey != "" && cfg.Notification.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Notification.Push.PublicKey,
			VAPIDPrivateKey: cfg.Notification.Push.PrivateKey,
			Subscriber:      cfg.Notification.Push.Subject,
			TTL:             cfg.Notification.Push.TTL,
		}
		if appStore != nil {
			channels = append(channels, notification.NewPushChannel(appStore, webpushOptions, logger))
		} else {
			logger.Warn("push keys configured without a database; push notifications disabled")
		}
	}
	if cfg.Notification.AMQPURL != "" {
		publisher, err := mq.NewPublisher(ctx, cfg.Notification.AMQPURL, logger)
		if err != nil {
			logger.Fatal("failed to connect to message broker", zap.Error(err))
		}
		defer publisher.Close()
		channels = append(channels, notification.NewQueueChannel(publisher))
	}

	opts := []tracker.Option{tracker.WithEvents(hub), tracker.WithLogger(logger)}
	var pool *notification.WorkerPool
	if len(channels) > 0 {
		pool = notification.NewWorkerPool(cfg.Notification.WorkerPoolSize, cfg.Notification.QueueSize, logger, channels...)
		pool.Start(ctx)
		opts = append(opts, tracker.WithNotifier(pool))
		logger.Info("notification workers started", zap.Strings("channels", pool.Channels()))
	} else {
		logger.Warn("no notification channels configured")
	}
	svc := tracker.New(backend, opts...)

	var sim *simulation.Simulator
	if snap != nil {
		sim = simulation.New(ctx, svc, snap, cfg.Simulation.Interval, logger)
		go sim.Run(ctx)
	}

	handler := api.NewHandler(api.Deps{
		Service:       svc,
		Store:         appStore,
		Hub:           hub,
		Simulator:     sim,
		WebPush:       webpushOptions,
		WebhookSecret: cfg.Webhook.Secret,
		Location:      cfg.Tracker.Location,
		Logger:        logger,
	})
	router := api.NewRouter(handler, cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server Shutdown", zap.Error(err))
	}
	cancel()
	if pool != nil {
		pool.Wait()
	}

	logger.Info("server gracefully stopped")
}

func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func newBlobStore(cfg *config.Config, client *redis.Client) (snapshot.BlobStore, error) {
	switch cfg.Snapshot.Backend {
	case config.SnapshotFile:
		return snapshot.NewFileBlobs(cfg.Snapshot.Dir)
	case config.SnapshotRedis:
		return snapshot.NewRedisBlobs(client), nil
	default:
		return snapshot.NewMemoryBlobs(), nil
	}
}
