// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"nut-chat-api/internal/domain/entity"
	"nut-chat-api/internal/domain/repository"
)

type ChatSessionRepository struct {
	client *Client
}

func NewChatSessionRepository(client *Client) *ChatSessionRepository {
	return &ChatSessionRepository{client: client}
}

func (r *ChatSessionRepository) Create(ctx context.Context, session *entity.ChatSession) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.Create")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Create(session).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chat session: %w", err)
	}
	return nil
}

func (r *ChatSessionRepository) GetByChatID(ctx context.Context, chatID string) (*entity.ChatSession, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.GetByChatID")
	defer span.End()

	var session entity.ChatSession
	if err := r.client.db.WithContext(ctx).First(&session, "chat_id = ?", chatID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chat session: %w", err)
	}
	return &session, nil
}

func (r *ChatSessionRepository) UpdateState(ctx context.Context, chatID string, state entity.SessionState) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.UpdateState")
	defer span.End()

	result := r.client.db.WithContext(ctx).
		Model(&entity.ChatSession{}).
		Where("chat_id = ?", chatID).
		Update("state", state)
	if result.Error != nil {
		span.RecordError(result.Error)
		return fmt.Errorf("failed to update chat session state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("chat session %s not found", chatID)
	}
	return nil
}

func (r *ChatSessionRepository) ListByApp(ctx context.Context, appID string, pagination repository.Pagination) (*repository.PagedResult[*entity.ChatSession], error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.ListByApp")
	defer span.End()

	query := r.client.db.WithContext(ctx).Model(&entity.ChatSession{}).Where("app_id = ?", appID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count chat sessions: %w", err)
	}

	var sessions []*entity.ChatSession
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&sessions).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chat sessions: %w", err)
	}

	return repository.NewPagedResult(sessions, total, pagination), nil
}
