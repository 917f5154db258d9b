package postgres

import (
	"context"
	"fmt"

	"nut-chat-api/internal/domain/entity"
	"nut-chat-api/internal/domain/repository"
)

type ChatTurnRepository struct {
	client *Client
}

func NewChatTurnRepository(client *Client) *ChatTurnRepository {
	return &ChatTurnRepository{client: client}
}

func (r *ChatTurnRepository) Create(ctx context.Context, turn *entity.ChatTurnRecord) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatTurnRepository.Create")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Create(turn).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chat turn: %w", err)
	}
	return nil
}

func (r *ChatTurnRepository) ListByChat(ctx context.Context, chatID string, pagination repository.Pagination) (*repository.PagedResult[*entity.ChatTurnRecord], error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatTurnRepository.ListByChat")
	defer span.End()

	query := r.client.db.WithContext(ctx).Model(&entity.ChatTurnRecord{}).Where("chat_id = ?", chatID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count chat turns: %w", err)
	}

	var turns []*entity.ChatTurnRecord
	if err := query.Order("created_at ASC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&turns).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chat turns: %w", err)
	}

	return repository.NewPagedResult(turns, total, pagination), nil
}
