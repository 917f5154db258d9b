package chat

import (
	"context"

	"nut-chat-api/internal/domain/entity"
	"nut-chat-api/internal/domain/repository"
	"nut-chat-api/pkg/logger"
)

// Recorder 对话记录器
//
// 把会话、轮次与响应落库供短轮询代理与历史查询使用。
// 记录是尽力而为的：任何落库失败都只记日志，绝不影响分发。
type Recorder struct {
	sessions  repository.ChatSessionRepository
	turns     repository.ChatTurnRepository
	responses repository.ChatResponseRepository
}

// NewRecorder 创建记录器，任一仓储为 nil 时对应记录被跳过
func NewRecorder(
	sessions repository.ChatSessionRepository,
	turns repository.ChatTurnRepository,
	responses repository.ChatResponseRepository,
) *Recorder {
	return &Recorder{sessions: sessions, turns: turns, responses: responses}
}

// RecordSession 记录新会话
func (r *Recorder) RecordSession(ctx context.Context, appID, chatID, userID string) {
	if r == nil || r.sessions == nil {
		return
	}
	if err := r.sessions.Create(ctx, entity.NewChatSession(appID, chatID, userID)); err != nil {
		logger.Warn(ctx, "会话落库失败", "chat_id", chatID, "error", err)
	}
}

// RecordState 记录会话状态变化
func (r *Recorder) RecordState(ctx context.Context, chatID string, state entity.SessionState) {
	if r == nil || r.sessions == nil {
		return
	}
	if err := r.sessions.UpdateState(ctx, chatID, state); err != nil {
		logger.Warn(ctx, "会话状态落库失败", "chat_id", chatID, "error", err)
	}
}

// RecordTurn 记录出站轮次
func (r *Recorder) RecordTurn(ctx context.Context, turn *entity.ChatTurn) {
	if r == nil || r.turns == nil {
		return
	}
	if err := r.turns.Create(ctx, entity.NewChatTurnRecord(turn)); err != nil {
		logger.Warn(ctx, "轮次落库失败", "chat_id", turn.ChatID, "error", err)
	}
}

// RecordResponse 记录收到的响应单元
func (r *Recorder) RecordResponse(ctx context.Context, resp *entity.ChatResponse) {
	if r == nil || r.responses == nil {
		return
	}
	if err := r.responses.Create(ctx, entity.NewChatResponseRecord(resp)); err != nil {
		logger.Warn(ctx, "响应落库失败", "chat_id", resp.ChatID, "error", err)
	}
}
