package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// 对话响应送达状态的键格式
const (
	seenSetKeyFormat  = "chat:seen:%s"
	lastSeenKeyFormat = "chat:lastseen:%s"
)

// SeenSet 基于 Redis 集合的响应去重器
// 去重是尽力而为的：Redis 不可用时调用方照常送达
type SeenSet struct {
	client *Client
	ttl    time.Duration
}

// NewSeenSet 创建响应去重器
func NewSeenSet(client *Client, ttl time.Duration) *SeenSet {
	return &SeenSet{client: client, ttl: ttl}
}

// Seen 记录响应 ID 并返回其是否已出现过
func (s *SeenSet) Seen(ctx context.Context, chatID, responseID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "redis.SeenSet.Seen",
		trace.WithAttributes(attribute.String("chat.id", chatID)))
	defer span.End()

	key := fmt.Sprintf(seenSetKeyFormat, chatID)

	// SADD 与续期放进同一条流水线，减少一次往返
	pipe := s.client.rdb.Pipeline()
	added := pipe.SAdd(ctx, key, responseID)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return false, err
	}

	return added.Val() == 0, nil
}

// LastSeenStore 短轮询游标的 Redis 存储
// 记录每个对话最后送达响应的时间，进程重启后从这里续传
type LastSeenStore struct {
	client *Client
	ttl    time.Duration
}

// NewLastSeenStore 创建游标存储
func NewLastSeenStore(client *Client, ttl time.Duration) *LastSeenStore {
	return &LastSeenStore{client: client, ttl: ttl}
}

// GetLastSeen 读取游标，不存在时返回零值时间
func (s *LastSeenStore) GetLastSeen(ctx context.Context, chatID string) (time.Time, error) {
	val, err := s.client.Get(ctx, fmt.Sprintf(lastSeenKeyFormat, chatID))
	if err != nil {
		if IsNil(err) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}

	nanos, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt last-seen value for chat %s: %w", chatID, err)
	}
	return time.Unix(0, nanos), nil
}

// SetLastSeen 写入游标
func (s *LastSeenStore) SetLastSeen(ctx context.Context, chatID string, t time.Time) error {
	return s.client.Set(ctx, fmt.Sprintf(lastSeenKeyFormat, chatID), strconv.FormatInt(t.UnixNano(), 10), s.ttl)
}
