package chat

import (
	"context"
	"time"

	"nut-chat-api/internal/domain/entity"
	"nut-chat-api/pkg/logger"
)

// BackoffPolicy 重连退避策略
// 目前是固定间隔，抽成显式策略是为了让测试能注入极短间隔
type BackoffPolicy struct {
	Interval time.Duration
}

const defaultListenRetryDelay = 5 * time.Second

// Next 返回下一次重连前的等待时长
func (p BackoffPolicy) Next() time.Duration {
	if p.Interval <= 0 {
		return defaultListenRetryDelay
	}
	return p.Interval
}

// Listener 在途响应监听器
// 用于页面重新附着到已派发的轮次，生命周期与页面视图等长
type Listener struct {
	rpc         RPC
	backoff     BackoffPolicy
	idleTimeout time.Duration
}

// NewListener 创建监听器
func NewListener(rpc RPC, backoff BackoffPolicy, idleTimeout time.Duration) *Listener {
	return &Listener{rpc: rpc, backoff: backoff, idleTimeout: idleTimeout}
}

// listenParams 监听请求载荷
type listenParams struct {
	ChatID string `json:"chat_id"`
}

// Listen 监听对话的在途响应
//
// 长轮询断开后按退避策略无限重连，错误只记录不上抛；
// 这是对已派发轮次的尽力续接，放弃等于丢响应。仅当流正常
// 结束或 ctx 取消时返回。
func (l *Listener) Listen(ctx context.Context, chatID string, onResponse entity.ResponseCallback) error {
	for {
		err := l.rpc.Stream(ctx, methodListenResponses, listenParams{ChatID: chatID}, l.idleTimeout,
			func(resp *entity.ChatResponse) error {
				onResponse(resp)
				return nil
			})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Warn(ctx, "监听连接断开，稍后重连",
			"chat_id", chatID,
			"retry_in", l.backoff.Next().String(),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.backoff.Next()):
		}
	}
}
