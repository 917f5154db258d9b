package postgres

import (
	"context"
	"fmt"
	"time"

	"nut-chat-api/internal/domain/entity"
	"nut-chat-api/internal/domain/repository"
)

type ChatResponseRepository struct {
	client *Client
}

func NewChatResponseRepository(client *Client) *ChatResponseRepository {
	return &ChatResponseRepository{client: client}
}

func (r *ChatResponseRepository) Create(ctx context.Context, resp *entity.ChatResponseRecord) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatResponseRepository.Create")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Create(resp).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chat response: %w", err)
	}
	return nil
}

func (r *ChatResponseRepository) ListByChatSince(ctx context.Context, chatID string, since time.Time, pagination repository.Pagination) (*repository.PagedResult[*entity.ChatResponseRecord], error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatResponseRepository.ListByChatSince")
	defer span.End()

	query := r.client.db.WithContext(ctx).Model(&entity.ChatResponseRecord{}).Where("chat_id = ?", chatID)
	if !since.IsZero() {
		query = query.Where("time > ?", since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count chat responses: %w", err)
	}

	var responses []*entity.ChatResponseRecord
	if err := query.Order("time ASC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&responses).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chat responses: %w", err)
	}

	return repository.NewPagedResult(responses, total, pagination), nil
}
