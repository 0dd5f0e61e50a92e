package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-relay/configs"
	"chat-relay/internal/api"
	"chat-relay/internal/auth"
	"chat-relay/internal/blob"
	"chat-relay/internal/events"
	"chat-relay/internal/presence"
	"chat-relay/internal/relay"
	"chat-relay/internal/store"
)

func main() {
	cfg := configs.Load()

	slog.Info("starting chat relay")

	db, err := store.NewMySQLConnection(cfg.MySQLUser, cfg.MySQLPassword, cfg.MySQLHost, cfg.MySQLPort, cfg.MySQLDB)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	userStore := store.NewUserStore(db)
	messageStore := store.NewMessageStore(db)

	// Presence mirror is optional; the in-process registry is authoritative.
	var sink relay.PresenceSink
	if cfg.RedisURL != "" {
		tracker, err := presence.NewTracker(cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer tracker.Close()
		sink = tracker
	}

	// Attachments land in MinIO when configured, otherwise in a local
	// directory. Either way they resolve under /uploads by storage name.
	var blobs blob.Store
	if cfg.MinIOEndpoint != "" {
		blobs, err = blob.NewMinIOStore(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket)
	} else {
		blobs, err = blob.NewFSStore(cfg.UploadsDir)
	}
	if err != nil {
		slog.Error("failed to open blob store", "error", err)
		os.Exit(1)
	}

	var publisher relay.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			slog.Error("failed to connect to Kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	logger := slog.Default()
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpire)

	registry := relay.NewRegistry(logger, sink)
	ingestor := relay.NewIngestor(blobs)
	msgRouter := relay.NewRouter(registry, messageStore, ingestor, publisher, logger)
	binder := relay.NewBinder(tokens)
	wsHandler := relay.NewHandler(registry, msgRouter, binder, relay.HeartbeatConfig{
		Interval: cfg.HeartbeatInterval,
		Timeout:  cfg.HeartbeatTimeout,
	}, logger)

	authService := auth.NewService(userStore, tokens)
	authHandler := auth.NewHandler(authService, tokens)
	historyHandler := api.NewHistoryHandler(messageStore, userStore, tokens)

	router := api.NewRouter(authHandler, historyHandler, wsHandler, api.NewAttachmentHandler(blobs))
	router.SetupRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router.GetEngine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	registry.Stop()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped")
}
