// Package messaging 提供基于 Redis Streams 的遥测事件队列
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nut-chat-api/pkg/metrics"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// TelemetryEvent 遥测事件载荷
type TelemetryEvent struct {
	Event  string         `json:"event"`
	ChatID string         `json:"chat_id,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// TelemetryProducer 遥测事件出口
// 实现对话会话层的 TelemetrySink 接口
type TelemetryProducer struct {
	producer *Producer
}

// NewTelemetryProducer 创建遥测生产者
func NewTelemetryProducer(producer *Producer) *TelemetryProducer {
	return &TelemetryProducer{producer: producer}
}

// Publish 发布一个遥测事件
func (t *TelemetryProducer) Publish(ctx context.Context, event string, fields map[string]any) error {
	chatID, _ := fields["chat_id"].(string)

	msg, err := NewMessage(uuid.NewString(), event, chatID, TelemetryEvent{
		Event:  event,
		ChatID: chatID,
		Fields: fields,
	})
	if err != nil {
		metrics.TelemetryEventsPublished.WithLabelValues(event, "error").Inc()
		return err
	}

	if _, err := t.producer.Publish(ctx, StreamChatTelemetry, msg); err != nil {
		metrics.TelemetryEventsPublished.WithLabelValues(event, "error").Inc()
		return err
	}

	metrics.TelemetryEventsPublished.WithLabelValues(event, "ok").Inc()
	return nil
}
