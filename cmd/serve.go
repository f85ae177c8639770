package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mistake-service/internal/config"
	mongodb "mistake-service/internal/database/mongo"
	redisdb "mistake-service/internal/database/redis"
	"mistake-service/internal/event"
	"mistake-service/internal/middleware"
	"mistake-service/internal/repository"
	"mistake-service/internal/server"
	"mistake-service/internal/service"
	"mistake-service/pkg/discovery"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the feedback consumer",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}

		client, db, err := mongodb.Connect(cfg.MongoDB, log)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer mongodb.Disconnect(client, log)

		mistakeRepo := repository.NewMistakeRepository(db)
		sessionRepo := repository.NewSessionRepository(db)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := createIndexes(ctx, mistakeRepo, sessionRepo); err != nil {
			log.WithError(err).Warn("failed to create database indexes")
		}
		cancel()

		publisher, err := event.NewEventPublisher(cfg.RabbitMQ.URI, cfg.RabbitMQ.EventsExchange, log)
		if err != nil {
			log.WithError(err).Warn("failed to initialize event publisher, continuing without events")
			publisher, _ = event.NewEventPublisher("", cfg.RabbitMQ.EventsExchange, log)
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				log.WithError(err).Error("error closing event publisher")
			}
		}()

		tracker := service.NewMistakeTracker(mistakeRepo, publisher, trackerConfig(cfg), log)
		sessions := service.NewPracticeSessionService(tracker, sessionRepo, publisher, log)

		var dedup event.DedupStore
		if rdb := redisdb.NewClient(cfg.Redis, log); rdb != nil {
			dedup = event.NewRedisDedup(rdb, cfg.Redis.DedupTTL)
			defer rdb.Close()
		}

		consumer, err := event.NewFeedbackConsumer(cfg.RabbitMQ.URI, event.ConsumerConfig{
			Exchange: cfg.RabbitMQ.FeedbackExchange,
			Queue:    cfg.RabbitMQ.FeedbackQueue,
			Prefetch: cfg.RabbitMQ.Prefetch,
		}, tracker, dedup, log)
		if err != nil {
			log.WithError(err).Warn("failed to initialize feedback consumer")
		} else if err := consumer.Start(); err != nil {
			log.WithError(err).Warn("failed to start feedback consumer")
			consumer.Close()
		} else {
			defer consumer.Close()
		}

		srv := server.New(cfg.Server, server.Dependencies{
			Mistakes: tracker,
			Sessions: sessions,
			Verifier: middleware.NewJWTVerifier(cfg.Auth.JWTSecret),
			Healthy: func(ctx context.Context) bool {
				return mongodb.IsConnected(ctx, client)
			},
		}, log)

		if cfg.Consul.Enabled {
			registry := registerService(cfg, log)
			if registry != nil {
				defer func() {
					if err := registry.Deregister(); err != nil {
						log.WithError(err).Warn("consul deregistration failed")
					}
				}()
			}
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			log.Infof("received signal: %s, shutting down", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.WithError(err).Error("error shutting down HTTP server")
			}
			return nil
		case err := <-errCh:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func registerService(cfg *config.Config, log *logrus.Logger) *discovery.ServiceRegistry {
	registry, err := discovery.NewServiceRegistry(cfg, log)
	if err != nil {
		log.WithError(err).Warn("service discovery init failed")
		return nil
	}
	if err := registry.Register(); err != nil {
		log.WithError(err).Warn("consul registration failed")
		return nil
	}
	return registry
}

func createIndexes(ctx context.Context, mistakes *repository.MistakeRepository, sessions *repository.SessionRepository) error {
	if err := mistakes.InitializeIndexes(ctx); err != nil {
		return err
	}
	return sessions.InitializeIndexes(ctx)
}
