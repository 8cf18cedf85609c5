package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"pressline.sync/internal/adapters/api"
	archive_pg "pressline.sync/internal/adapters/archive/pg"
	"pressline.sync/internal/adapters/fanout"
	http_handler "pressline.sync/internal/adapters/handler/http"
	"pressline.sync/internal/config"
	"pressline.sync/internal/core/logger"
	"pressline.sync/internal/core/services"
	"pressline.sync/internal/core/tracing"
	"pressline.sync/internal/mirror"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Initialize structured logger
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting Pressline dashboard relay", "version", "0.1.0")

	// Initialize tracing
	if cfg.EnableTracing {
		shutdownTracing, err := tracing.Init(cfg.ServiceName, cfg.OTLPEndpoint)
		if err != nil {
			logger.Error("Failed to initialize tracing", "error", err)
		} else {
			logger.Info("Tracing initialized", "endpoint", cfg.OTLPEndpoint)
			defer func() {
				if err := shutdownTracing(context.Background()); err != nil {
					logger.Error("Failed to shutdown tracing", "error", err)
				}
			}()
		}
	}

	// Derive the push endpoint from the REST base unless set explicitly
	wsURL := cfg.WSURL
	if wsURL == "" {
		wsURL, err = mirror.DeriveWSURL(cfg.BackendURL + "/api/ws")
		if err != nil {
			logger.Error("Failed to derive websocket URL", "error", err)
			log.Fatalf("failed to derive websocket url: %v", err)
		}
	}

	snapshotter := api.NewClient(cfg.BackendURL, 0)

	client := mirror.New(mirror.Config{
		WSURL:                wsURL,
		HeartbeatInterval:    cfg.HeartbeatInterval,
		ReconnectInterval:    cfg.ReconnectInterval,
		DisableAutoReconnect: !cfg.AutoReconnect,
		PollHealthy:          cfg.PollHealthy,
		PollDegraded:         cfg.PollDegraded,
		PageSize:             cfg.PageSize,
		WindowSize:           cfg.WindowSize,
		RecentJobs:           cfg.RecentJobs,
		Observer: mirror.Observer{
			FrameDecoded: http_handler.RecordFrameDecoded,
			FrameDropped: http_handler.RecordFrameDropped,
			StateChanged: http_handler.SetConnectionState,
		},
	}, snapshotter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional fanout and archive consumers, each on its own subscription
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		pub, err := fanout.NewRedisPublisher(cfg.RedisURL)
		if err != nil {
			logger.Error("Failed to init redis fanout", "error", err)
		} else {
			redisClient = pub.Client()
			go pub.Run(ctx, client.Updates())
			logger.Info("Redis fanout started")
		}
	}

	if cfg.MQTTBroker != "" {
		pub, err := fanout.NewMQTTPublisher(cfg.MQTTBroker)
		if err != nil {
			logger.Error("Failed to init MQTT fanout", "error", err)
		} else {
			go pub.Run(ctx, client.Updates())
			logger.Info("MQTT fanout started")
		}
	}

	var archiveDB *gorm.DB
	var archive *archive_pg.Archive
	if cfg.ArchiveDSN != "" {
		archive, err = archive_pg.NewArchive(cfg.ArchiveDSN)
		if err != nil {
			logger.Error("Failed to init job archive", "error", err)
			log.Fatalf("failed to init job archive: %v", err)
		}
		archiveDB = archive.DB()
		go archive.Run(ctx, client.Updates())
		logger.Info("Job archive started")
	}

	healthService := services.NewHealthService(client.ConnectionState, snapshotter, archiveDB, redisClient, "0.1.0")

	hub := http_handler.NewHub()
	go hub.Run()
	go hub.UpdateConsumer(ctx, client.Updates())

	client.Start(ctx)

	var httpServer *http_handler.Server
	if archive != nil {
		httpServer = http_handler.NewServer(client, healthService, hub, archive)
	} else {
		httpServer = http_handler.NewServer(client, healthService, hub, nil)
	}

	go func() {
		logger.Info("HTTP Server starting", "port", cfg.HTTPPort)
		if err := httpServer.Run(":" + cfg.HTTPPort); err != nil {
			logger.Error("HTTP server failed", "error", err)
			log.Fatalf("failed to serve http: %v", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")
	client.Stop()
	cancel()
}
