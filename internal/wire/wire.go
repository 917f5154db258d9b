// Package wire 提供依赖装配
package wire

import (
	"nut-chat-api/internal/application/chat"
	"nut-chat-api/internal/application/prompt"
	"nut-chat-api/internal/config"
	"nut-chat-api/internal/domain/repository"
	"nut-chat-api/internal/infrastructure/messaging"
	"nut-chat-api/internal/infrastructure/nut"
	"nut-chat-api/internal/infrastructure/persistence/postgres"
	"nut-chat-api/internal/infrastructure/persistence/redis"
	"nut-chat-api/internal/interfaces/http/handler"
	"nut-chat-api/internal/interfaces/http/router"
)

// InitializeApp 装配整个应用
// 返回路由器与资源清理函数，装配失败时已打开的连接会被关闭
func InitializeApp(cfg *config.Config) (*router.Router, func(), error) {
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		_ = pgClient.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = redisClient.Close()
		_ = pgClient.Close()
	}

	nutClient := nut.NewClient(&cfg.Nut)

	// 分发器：去重与游标存储按功能开关装配
	dispatcherOpts := chat.DispatcherOptions{
		ShortPollInterval: cfg.Chat.ShortPollInterval,
		StreamIdleTimeout: cfg.Nut.StreamIdleTimeout,
		LastSeen:          redis.NewLastSeenStore(redisClient, cfg.Chat.SeenTTL),
	}
	if cfg.Features.Dedup.Enabled {
		dispatcherOpts.Deduper = redis.NewSeenSet(redisClient, cfg.Chat.SeenTTL)
	}
	dispatcher := chat.NewDispatcher(nutClient, dispatcherOpts)

	// 遥测生产者
	maxLen := cfg.Messaging.RedisStream.MaxLen
	producer := messaging.NewProducer(redisClient.Redis(), int64(maxLen))
	telemetry := messaging.NewTelemetryProducer(producer)

	sessionManager := chat.NewSessionManager(nutClient, dispatcher, chat.SessionManagerOptions{
		FirstResponseTimeout: cfg.Chat.FirstResponseTimeout,
		Telemetry:            telemetry,
	})

	listener := chat.NewListener(nutClient, chat.BackoffPolicy{
		Interval: cfg.Chat.ListenRetryDelay,
	}, cfg.Nut.StreamIdleTimeout)

	// 落库仓储：未开启记录功能时保持 nil，记录器按仓储为 nil 跳过
	var (
		sessionRepo  repository.ChatSessionRepository
		turnRepo     repository.ChatTurnRepository
		responseRepo repository.ChatResponseRepository
	)
	if cfg.Features.Recording.Enabled {
		sessionRepo = postgres.NewChatSessionRepository(pgClient)
		turnRepo = postgres.NewChatTurnRepository(pgClient)
		responseRepo = postgres.NewChatResponseRepository(pgClient)
	}
	recorder := chat.NewRecorder(sessionRepo, turnRepo, responseRepo)

	injector := prompt.NewInjector()

	handlers := router.Handlers{
		Health: handler.NewHealthHandler(pgClient, redisClient),
		Prompt: handler.NewPromptHandler(injector, cfg.Prompt.WorkDir, redis.NewCache(redisClient)),
		Chat:   handler.NewChatHandler(sessionManager, dispatcher, listener, recorder, responseRepo),
	}

	r := router.New(cfg, handlers, redis.NewRateLimiter(redisClient))
	return r, cleanup, nil
}
