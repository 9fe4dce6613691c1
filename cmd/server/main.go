package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	http_handler "agentmarket.ledger/internal/adapters/handler/http"
	"agentmarket.ledger/internal/adapters/handler/mqtt"
	"agentmarket.ledger/internal/adapters/repository/pg"
	redis_stream "agentmarket.ledger/internal/adapters/stream/redis"
	"agentmarket.ledger/internal/config"
	"agentmarket.ledger/internal/core/logger"
	"agentmarket.ledger/internal/core/services"
	"agentmarket.ledger/internal/core/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Initialize structured logger
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting Agent Market Ledger", "version", "0.1.0")

	// Initialize tracing
	var shutdownTracing func(context.Context) error
	if cfg.EnableTracing {
		shutdownTracing, err = tracing.Init(cfg.ServiceName, cfg.OTLPEndpoint)
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

	// Initialize adapters
	store, err := pg.NewStore(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to init postgres", "error", err)
		log.Fatalf("failed to init postgres: %v", err)
	}

	publisher, redisClient, err := redis_stream.NewPublisher(cfg.RedisURL)
	if err != nil {
		logger.Error("Failed to init redis", "error", err)
		log.Fatalf("failed to init redis: %v", err)
	}
	feed := redis_stream.NewFeed(redisClient, cfg.FeedSize)

	// Event publishing goes through a breaker so a Redis outage cannot stall
	// settled operations.
	events := services.NewGuardedPublisher(publisher)

	// Initialize domain services
	registryService := services.NewRegistryService(store, events, cfg.BaseReputation)
	hiringService := services.NewHiringService(store, events, feed, cfg.TreasuryAddress, cfg.FeeBps, cfg.ReputationGain)
	statsService := services.NewStatsService(store)
	accountService := services.NewAccountService(store)
	healthService := services.NewHealthService(store.DB(), redisClient, "0.1.0")

	// WebSocket hub relays the event stream to browsers
	hub := http_handler.NewHub(events)
	go hub.Run()
	go hub.EventConsumer(context.Background())

	// MQTT bridge for headless agents
	if cfg.EnableMQTT {
		mqttPublisher, err := mqtt.NewPublisher(events, cfg.MQTTBroker)
		if err != nil {
			logger.Error("Failed to init MQTT publisher", "error", err)
		} else {
			mqttPublisher.Start(context.Background())
			defer mqttPublisher.Close()
			logger.Info("MQTT Publisher started")
		}
	}

	// Sample the protocol counters into Prometheus gauges
	sampler := services.NewStatsSampler(store, cfg.TreasuryAddress, http_handler.SetMarketGauges)
	samplerCtx, stopSampler := context.WithCancel(context.Background())
	defer stopSampler()
	go sampler.Start(samplerCtx)

	httpServer := http_handler.NewServer(
		registryService,
		hiringService,
		statsService,
		accountService,
		healthService,
		feed,
		hub,
	)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down gracefully...")
		stopSampler()
		if shutdownTracing != nil {
			shutdownTracing(context.Background())
		}
		os.Exit(0)
	}()

	logger.Info("HTTP Server starting", "port", cfg.HTTPPort)
	if err := httpServer.Run(":" + cfg.HTTPPort); err != nil {
		logger.Error("HTTP server failed", "error", err)
		log.Fatalf("failed to serve http: %v", err)
	}
}
