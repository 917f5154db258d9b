// Package main 遥测事件消费者入口（telemetry-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"nut-chat-api/internal/application/chat"
	"nut-chat-api/internal/config"
	"nut-chat-api/internal/infrastructure/messaging"
	"nut-chat-api/internal/infrastructure/persistence/redis"
	"nut-chat-api/pkg/logger"
	"nut-chat-api/pkg/metrics"
	"nut-chat-api/pkg/tracer"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "telemetry-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", err)
	}
	defer func() { _ = redisClient.Close() }()

	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:       messaging.StreamChatTelemetry,
		Group:        messaging.ConsumerGroupTelemetry,
		ConsumerName: hostnameConsumerName(),
		BlockTimeout: cfg.Messaging.RedisStream.BlockTimeout,
		RetryLimit:   cfg.Messaging.RedisStream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    cfg.Messaging.RedisStream.RetryBackoff.Initial,
			Max:        cfg.Messaging.RedisStream.RetryBackoff.Max,
			Multiplier: cfg.Messaging.RedisStream.RetryBackoff.Multiplier,
		},
	})

	consumer.RegisterHandler(chat.EventFirstResponseTimeout, func(ctx context.Context, msg *messaging.Message) error {
		var event messaging.TelemetryEvent
		if err := msg.UnmarshalPayload(&event); err != nil {
			metrics.TelemetryEventsProcessed.WithLabelValues(msg.Type, "error").Inc()
			return err
		}

		logger.Warn(ctx, "首响应超时",
			"chat_id", event.ChatID,
			"mode", event.Fields["mode"],
			"timeout", event.Fields["timeout"],
		)
		metrics.TelemetryEventsProcessed.WithLabelValues(msg.Type, "ok").Inc()
		return nil
	})

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}

	go consumer.MonitorDLQ(ctx, 100)

	log := logger.FromContext(ctx)
	log.Info("telemetry-worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("telemetry-worker shutting down")
	consumer.Stop()
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
