package chat

import (
	"context"
	"sync"
	"time"

	"nut-chat-api/internal/domain/entity"
	apperrors "nut-chat-api/pkg/errors"
	"nut-chat-api/pkg/logger"
	"nut-chat-api/pkg/metrics"
)

// TelemetrySink 遥测事件出口，由消息队列生产者实现
type TelemetrySink interface {
	Publish(ctx context.Context, event string, fields map[string]any) error
}

// EventFirstResponseTimeout 看门狗超时事件名
const EventFirstResponseTimeout = "chat.first_response_timeout"

const defaultFirstResponseTimeout = 20 * time.Second

// SessionManagerOptions 会话管理器配置
type SessionManagerOptions struct {
	// FirstResponseTimeout 首响应看门狗阈值，零值取 20s
	FirstResponseTimeout time.Duration
	// Telemetry 可选的遥测出口
	Telemetry TelemetrySink
}

// SessionManager 会话管理器
// 全局至多持有一个活跃会话，新会话启动前先销毁旧会话
type SessionManager struct {
	rpc        RPC
	dispatcher *Dispatcher
	opts       SessionManagerOptions

	mu      sync.Mutex
	current *Session
}

// NewSessionManager 创建会话管理器
func NewSessionManager(rpc RPC, dispatcher *Dispatcher, opts SessionManagerOptions) *SessionManager {
	if opts.FirstResponseTimeout <= 0 {
		opts.FirstResponseTimeout = defaultFirstResponseTimeout
	}
	return &SessionManager{rpc: rpc, dispatcher: dispatcher, opts: opts}
}

// StartNew 启动新会话
// 旧会话存在时先行销毁，保证至多一个活跃会话的不变量
func (m *SessionManager) StartNew(ctx context.Context) *Session {
	m.mu.Lock()
	prev := m.current
	m.current = nil
	m.mu.Unlock()

	if prev != nil {
		prev.Destroy(ctx)
	}

	s := newSession(m.rpc, m.dispatcher, m.opts)

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	metrics.ActiveChatSessions.Inc()
	return s
}

// Current 返回当前活跃会话，没有则返回 nil
func (m *SessionManager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// DestroyCurrent 销毁当前活跃会话
func (m *SessionManager) DestroyCurrent(ctx context.Context) {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()

	if s != nil {
		s.Destroy(ctx)
	}
}

// SessionState 会话状态机
type SessionState string

const (
	SessionIdle     SessionState = "idle"
	SessionStarting SessionState = "starting"
	SessionSending  SessionState = "sending"
	SessionFinished SessionState = "finished"
)

// Unsubscribe 订阅句柄，调用即退订；可重复调用
type Unsubscribe func()

// Session 一次受管对话会话
//
// 状态沿 Idle -> Starting -> Sending -> Finished 单向推进。
// Starting 阶段向后端注册并取得对话 ID，Sending 阶段运行轮次
// 分发，轮次结束后全部订阅被无条件移除。
type Session struct {
	rpc        RPC
	dispatcher *Dispatcher
	opts       SessionManagerOptions

	mu        sync.Mutex
	state     SessionState
	chatID    string
	destroyed bool
	cancel    context.CancelFunc

	nextSubID int
	partSubs  map[int]entity.ResponseCallback
	titleSubs map[int]entity.ResponseCallback
	statSubs  map[int]entity.ResponseCallback
}

func newSession(rpc RPC, dispatcher *Dispatcher, opts SessionManagerOptions) *Session {
	return &Session{
		rpc:        rpc,
		dispatcher: dispatcher,
		opts:       opts,
		state:      SessionIdle,
		partSubs:   make(map[int]entity.ResponseCallback),
		titleSubs:  make(map[int]entity.ResponseCallback),
		statSubs:   make(map[int]entity.ResponseCallback),
	}
}

// State 返回当前状态
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ChatID 返回后端分配的对话 ID，Starting 之前为空
func (s *Session) ChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

// OnResponsePart 订阅文本响应片段
func (s *Session) OnResponsePart(fn entity.ResponseCallback) Unsubscribe {
	return s.subscribe(s.partSubs, fn)
}

// OnTitle 订阅标题响应
func (s *Session) OnTitle(fn entity.ResponseCallback) Unsubscribe {
	return s.subscribe(s.titleSubs, fn)
}

// OnStatus 订阅状态响应
func (s *Session) OnStatus(fn entity.ResponseCallback) Unsubscribe {
	return s.subscribe(s.statSubs, fn)
}

func (s *Session) subscribe(subs map[int]entity.ResponseCallback, fn entity.ResponseCallback) Unsubscribe {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	subs[id] = fn

	return func() {
		s.mu.Lock()
		delete(subs, id)
		s.mu.Unlock()
	}
}

// dispatch 按响应类型分发给对应的订阅者
func (s *Session) dispatch(resp *entity.ChatResponse) {
	s.mu.Lock()
	var targets []entity.ResponseCallback
	switch resp.Kind {
	case entity.ResponseKindText:
		targets = callbackList(s.partSubs)
	case entity.ResponseKindTitle:
		targets = callbackList(s.titleSubs)
	case entity.ResponseKindStatus, entity.ResponseKindError:
		targets = callbackList(s.statSubs)
	}
	s.mu.Unlock()

	for _, fn := range targets {
		fn(resp)
	}
}

func callbackList(subs map[int]entity.ResponseCallback) []entity.ResponseCallback {
	out := make([]entity.ResponseCallback, 0, len(subs))
	for _, fn := range subs {
		out = append(out, fn)
	}
	return out
}

// clearSubscriptions 移除全部订阅
func (s *Session) clearSubscriptions() {
	s.mu.Lock()
	s.partSubs = make(map[int]entity.ResponseCallback)
	s.titleSubs = make(map[int]entity.ResponseCallback)
	s.statSubs = make(map[int]entity.ResponseCallback)
	s.mu.Unlock()
}

// startChatParams 会话注册载荷
type startChatParams struct {
	Mode entity.ChatMode `json:"mode"`
}

// startChatResult 会话注册结果
type startChatResult struct {
	ChatID string `json:"chat_id"`
}

// Start 提前完成会话注册并返回对话 ID
// 已注册的会话直接返回现有 ID
func (s *Session) Start(ctx context.Context, mode entity.ChatMode) (string, error) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return "", apperrors.New(apperrors.CodeSessionDestroyed, "session already destroyed")
	}
	if s.chatID != "" {
		chatID := s.chatID
		s.mu.Unlock()
		return chatID, nil
	}
	s.state = SessionStarting
	s.mu.Unlock()

	var result startChatResult
	if err := s.rpc.Call(ctx, methodStartChat, startChatParams{Mode: mode}, &result); err != nil {
		s.mu.Lock()
		s.state = SessionIdle
		s.mu.Unlock()
		return "", apperrors.Wrap(err, apperrors.CodeBackendError, "failed to register chat")
	}

	s.mu.Lock()
	s.chatID = result.ChatID
	s.state = SessionIdle
	s.mu.Unlock()
	return result.ChatID, nil
}

// SendMessage 发送一个对话轮次
//
// Idle 状态先向后端注册取得对话 ID。轮次结束后会话进入
// Finished，订阅被无条件清空。首响应看门狗超时只发遥测，
// 不中断请求。
func (s *Session) SendMessage(
	ctx context.Context,
	mode entity.ChatMode,
	messages []entity.Message,
	references []entity.Reference,
) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return apperrors.New(apperrors.CodeSessionDestroyed, "session already destroyed")
	}
	if s.state == SessionSending || s.state == SessionStarting {
		s.mu.Unlock()
		return apperrors.New(apperrors.CodeDispatchFailed, "session is busy with another turn")
	}

	sendCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = SessionStarting
	chatID := s.chatID
	s.mu.Unlock()

	defer cancel()

	if chatID == "" {
		var result startChatResult
		if err := s.rpc.Call(sendCtx, methodStartChat, startChatParams{Mode: mode}, &result); err != nil {
			s.finishTurn()
			return apperrors.Wrap(err, apperrors.CodeBackendError, "failed to register chat")
		}
		chatID = result.ChatID

		s.mu.Lock()
		s.chatID = chatID
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.state = SessionSending
	s.mu.Unlock()

	// 首响应看门狗：超时只记录遥测，从不中断请求
	var firstOnce sync.Once
	watchdog := time.AfterFunc(s.opts.FirstResponseTimeout, func() {
		metrics.ChatFirstResponseTimeouts.Inc()
		s.emitTimeoutTelemetry(chatID, mode)
	})
	defer watchdog.Stop()

	err := s.dispatcher.SendChatMessage(sendCtx, chatID, mode, messages, references,
		func(resp *entity.ChatResponse) {
			firstOnce.Do(func() { watchdog.Stop() })
			s.dispatch(resp)
		})

	s.finishTurn()
	return err
}

// finishTurn 收尾：进入 Finished 并清空订阅
func (s *Session) finishTurn() {
	s.mu.Lock()
	s.state = SessionFinished
	s.cancel = nil
	s.mu.Unlock()

	s.clearSubscriptions()
}

// emitTimeoutTelemetry 发布首响应超时遥测事件
func (s *Session) emitTimeoutTelemetry(chatID string, mode entity.ChatMode) {
	if s.opts.Telemetry == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.opts.Telemetry.Publish(ctx, EventFirstResponseTimeout, map[string]any{
		"chat_id": chatID,
		"mode":    string(mode),
		"timeout": s.opts.FirstResponseTimeout.String(),
	})
	if err != nil {
		logger.Warn(ctx, "首响应超时遥测发布失败", "chat_id", chatID, "error", err)
	}
}

// Destroy 销毁会话，任意状态均可调用
//
// 取消在途轮次，并尽力通知后端终止对话。在途回调不保证
// 立即停止，关闭是尽力而为的。
func (s *Session) Destroy(ctx context.Context) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.state = SessionFinished
	cancel := s.cancel
	s.cancel = nil
	chatID := s.chatID
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.clearSubscriptions()

	if chatID != "" {
		params := map[string]string{"chat_id": chatID}
		if err := s.rpc.Call(ctx, methodFinishChat, params, nil); err != nil {
			logger.Warn(ctx, "后端对话终止失败", "chat_id", chatID, "error", err)
		}
	}

	metrics.ActiveChatSessions.Dec()
}
