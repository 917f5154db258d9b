// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"nut-chat-api/internal/domain/entity"
)

// ChatSessionRepository 会话记录仓储
type ChatSessionRepository interface {
	Create(ctx context.Context, session *entity.ChatSession) error
	GetByChatID(ctx context.Context, chatID string) (*entity.ChatSession, error)
	UpdateState(ctx context.Context, chatID string, state entity.SessionState) error
	ListByApp(ctx context.Context, appID string, pagination Pagination) (*PagedResult[*entity.ChatSession], error)
}

// ChatTurnRepository 轮次记录仓储
type ChatTurnRepository interface {
	Create(ctx context.Context, turn *entity.ChatTurnRecord) error
	ListByChat(ctx context.Context, chatID string, pagination Pagination) (*PagedResult[*entity.ChatTurnRecord], error)
}

// ChatResponseRepository 响应记录仓储
type ChatResponseRepository interface {
	Create(ctx context.Context, resp *entity.ChatResponseRecord) error
	// ListByChatSince 返回指定时间之后的响应，升序；since 为零值时返回全部
	ListByChatSince(ctx context.Context, chatID string, since time.Time, pagination Pagination) (*PagedResult[*entity.ChatResponseRecord], error)
}
