// Package chat 实现对话轮次的分发与响应回收
//
// 一次发送由两条并发路径组成：长轮询流式连接逐行接收响应，
// 固定间隔的短轮询兜底补取流式路径漏掉的响应。两条路径可能
// 重复送达同一响应，整体送达语义为 at-least-once。
package chat

import (
	"context"
	"sync"
	"time"

	"nut-chat-api/internal/domain/entity"
	"nut-chat-api/internal/infrastructure/nut"
	apperrors "nut-chat-api/pkg/errors"
	"nut-chat-api/pkg/logger"
	"nut-chat-api/pkg/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("chat")

// 后端方法名
const (
	methodStartChat       = "start-chat"
	methodSendChatMessage = "send-chat-message"
	methodFinishChat      = "finish-chat"
	methodGetAppResponses = "get-app-responses"
	methodListenResponses = "listen-app-responses"
)

// RPC 后端调用入口，由 nut.Client 实现
type RPC interface {
	Call(ctx context.Context, method string, params any, out any) error
	Stream(ctx context.Context, method string, params any, idleTimeout time.Duration, onLine nut.LineHandler) error
}

// Deduper 按响应 ID 的尽力去重
// Seen 返回 true 表示该响应已送达过。去重只是锦上添花，
// 任何错误都不阻断送达，at-least-once 语义保持不变。
type Deduper interface {
	Seen(ctx context.Context, chatID, responseID string) (bool, error)
}

// LastSeenStore 最后送达时间的持久化，用于跨进程续传短轮询游标
type LastSeenStore interface {
	GetLastSeen(ctx context.Context, chatID string) (time.Time, error)
	SetLastSeen(ctx context.Context, chatID string, t time.Time) error
}

// DispatcherOptions 分发器可选配置
type DispatcherOptions struct {
	// ShortPollInterval 短轮询间隔，零值取 10s
	ShortPollInterval time.Duration
	// StreamIdleTimeout 流式连接静默上限，0 表示不限制
	StreamIdleTimeout time.Duration
	// Deduper 可选的响应去重器
	Deduper Deduper
	// LastSeen 可选的游标存储
	LastSeen LastSeenStore
}

const defaultShortPollInterval = 10 * time.Second

// Dispatcher 对话轮次分发器
type Dispatcher struct {
	rpc  RPC
	opts DispatcherOptions
}

// NewDispatcher 创建分发器
func NewDispatcher(rpc RPC, opts DispatcherOptions) *Dispatcher {
	if opts.ShortPollInterval <= 0 {
		opts.ShortPollInterval = defaultShortPollInterval
	}
	return &Dispatcher{rpc: rpc, opts: opts}
}

// SendChatMessage 发送一个对话轮次并回收响应
//
// 没有活跃对话 ID 时立即失败。出站消息先按发送规则过滤，
// 内部记录类消息不会出现在载荷里。onResponse 会被调用零到
// 多次；两条路径之间不保证顺序，同一响应可能送达两次。
// 短轮询计时器在操作结束时无条件停止；长轮询返回后无论成败
// 都会追加一次兜底补取。
func (d *Dispatcher) SendChatMessage(
	ctx context.Context,
	chatID string,
	mode entity.ChatMode,
	messages []entity.Message,
	references []entity.Reference,
	onResponse entity.ResponseCallback,
) error {
	ctx, span := tracer.Start(ctx, "chat.SendChatMessage",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("chat.mode", string(mode)),
		))
	defer span.End()

	if chatID == "" {
		err := apperrors.New(apperrors.CodeNoActiveChat, "no active chat")
		span.RecordError(err)
		return err
	}

	start := time.Now()
	turn := entity.NewChatTurn(chatID, mode, messages, references)
	state := d.newTurnState(ctx, chatID, onResponse)

	pollCtx, stopPoll := context.WithCancel(ctx)
	defer stopPoll()

	g, gctx := errgroup.WithContext(ctx)

	// 长轮询流式路径
	g.Go(func() error {
		defer stopPoll()

		streamErr := d.rpc.Stream(gctx, methodSendChatMessage, turn, d.opts.StreamIdleTimeout,
			func(resp *entity.ChatResponse) error {
				state.deliver(resp, "stream")
				return nil
			})

		// 兜底补取：不论流式路径成败都执行一次
		d.fetchSince(ctx, state)

		return streamErr
	})

	// 短轮询兜底路径
	g.Go(func() error {
		ticker := time.NewTicker(d.opts.ShortPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				return nil
			case <-ticker.C:
				d.fetchSince(pollCtx, state)
			}
		}
	})

	err := g.Wait()

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
	}
	metrics.ChatDispatchTotal.WithLabelValues(string(mode), status).Inc()
	metrics.ChatDispatchDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())

	return err
}

// FetchResponses 拉取指定时间之后的响应列表
// 供短轮询代理接口透传后端使用
func (d *Dispatcher) FetchResponses(ctx context.Context, chatID string, since time.Time) ([]entity.ChatResponse, error) {
	var responses []entity.ChatResponse
	params := getAppResponsesParams{ChatID: chatID, Since: since}
	if err := d.rpc.Call(ctx, methodGetAppResponses, params, &responses); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeBackendError, "failed to fetch responses")
	}
	return responses, nil
}

// turnState 一次轮次的送达状态
type turnState struct {
	chatID     string
	onResponse entity.ResponseCallback
	deduper    Deduper
	store      LastSeenStore

	mu       sync.Mutex
	lastSeen time.Time
}

// newTurnState 初始化轮次状态，游标从持久化存储续传
func (d *Dispatcher) newTurnState(ctx context.Context, chatID string, onResponse entity.ResponseCallback) *turnState {
	st := &turnState{
		chatID:     chatID,
		onResponse: onResponse,
		deduper:    d.opts.Deduper,
		store:      d.opts.LastSeen,
	}
	if st.store != nil {
		if t, err := st.store.GetLastSeen(ctx, chatID); err == nil {
			st.lastSeen = t
		}
	}
	return st
}

// deliver 向调用方送达一个响应单元
func (st *turnState) deliver(resp *entity.ChatResponse, path string) {
	st.advance(resp.Time)

	if st.deduper != nil && resp.ID != "" {
		seen, err := st.deduper.Seen(context.Background(), st.chatID, resp.ID)
		if err == nil && seen {
			metrics.ChatResponsesDeduped.Inc()
			return
		}
	}

	metrics.ChatResponsesDelivered.WithLabelValues(path).Inc()
	st.onResponse(resp)
}

// advance 推进短轮询游标
func (st *turnState) advance(t time.Time) {
	st.mu.Lock()
	moved := t.After(st.lastSeen)
	if moved {
		st.lastSeen = t
	}
	st.mu.Unlock()

	if moved && st.store != nil {
		// 游标持久化尽力而为，失败只意味着重启后多补取一些
		_ = st.store.SetLastSeen(context.Background(), st.chatID, t)
	}
}

// since 读取当前游标
func (st *turnState) since() time.Time {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lastSeen
}

// getAppResponsesParams 短轮询请求载荷
type getAppResponsesParams struct {
	ChatID string    `json:"chat_id"`
	Since  time.Time `json:"since"`
}

// fetchSince 拉取游标之后的全部响应并重放
// 拉取失败只记录日志，短轮询是兜底路径，不把错误上抛
func (d *Dispatcher) fetchSince(ctx context.Context, st *turnState) {
	var responses []entity.ChatResponse
	params := getAppResponsesParams{ChatID: st.chatID, Since: st.since()}

	if err := d.rpc.Call(ctx, methodGetAppResponses, params, &responses); err != nil {
		if ctx.Err() == nil {
			logger.Warn(ctx, "短轮询补取失败", "chat_id", st.chatID, "error", err)
		}
		return
	}

	for i := range responses {
		st.deliver(&responses[i], "poll")
	}
}
