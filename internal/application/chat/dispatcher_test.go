package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nut-chat-api/internal/domain/entity"
	"nut-chat-api/internal/infrastructure/nut"
	apperrors "nut-chat-api/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRPC 可编程的后端桩
type fakeRPC struct {
	mu        sync.Mutex
	calls     []string
	lastTurn  *entity.ChatTurn
	callFn    func(ctx context.Context, method string, params any, out any) error
	streamFn  func(ctx context.Context, method string, params any, onLine nut.LineHandler) error
	pollBatch []entity.ChatResponse
}

func (f *fakeRPC) Call(ctx context.Context, method string, params any, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	f.mu.Unlock()

	if f.callFn != nil {
		return f.callFn(ctx, method, params, out)
	}
	if method == methodGetAppResponses {
		if responses, ok := out.(*[]entity.ChatResponse); ok {
			f.mu.Lock()
			*responses = append([]entity.ChatResponse(nil), f.pollBatch...)
			f.mu.Unlock()
		}
	}
	return nil
}

func (f *fakeRPC) Stream(ctx context.Context, method string, params any, idle time.Duration, onLine nut.LineHandler) error {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	if turn, ok := params.(*entity.ChatTurn); ok {
		f.lastTurn = turn
	}
	f.mu.Unlock()

	if f.streamFn != nil {
		return f.streamFn(ctx, method, params, onLine)
	}
	return nil
}

func (f *fakeRPC) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.calls {
		if m == method {
			n++
		}
	}
	return n
}

func textResponse(id string, at time.Time) *entity.ChatResponse {
	return &entity.ChatResponse{ID: id, ChatID: "c-1", Kind: entity.ResponseKindText, Time: at}
}

func TestSendChatMessage_FailsFastWithoutChatID(t *testing.T) {
	d := NewDispatcher(&fakeRPC{}, DispatcherOptions{})

	err := d.SendChatMessage(context.Background(), "", entity.ChatModeBuildApp, nil, nil,
		func(resp *entity.ChatResponse) {})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeNoActiveChat, appErr.Code)
}

func TestSendChatMessage_FiltersOutboundMessages(t *testing.T) {
	rpc := &fakeRPC{}
	d := NewDispatcher(rpc, DispatcherOptions{})

	messages := []entity.Message{
		{ID: "m-1", Role: entity.RoleUser, Content: entity.TextContent("hi")},
		{ID: "m-2", Role: entity.RoleAssistant, Category: entity.MessageCategoryInternalNote},
		{ID: "m-3", Role: entity.RoleAssistant, Category: entity.MessageCategoryUserResponse},
		{ID: "m-4", Role: entity.RoleAssistant, Category: entity.MessageCategoryStatus},
	}

	err := d.SendChatMessage(context.Background(), "c-1", entity.ChatModeBuildApp, messages, nil,
		func(resp *entity.ChatResponse) {})
	require.NoError(t, err)

	require.NotNil(t, rpc.lastTurn)
	var ids []string
	for _, m := range rpc.lastTurn.Messages {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"m-1", "m-3"}, ids)
}

func TestSendChatMessage_DeliversStreamResponses(t *testing.T) {
	now := time.Now()
	rpc := &fakeRPC{
		streamFn: func(ctx context.Context, method string, params any, onLine nut.LineHandler) error {
			require.NoError(t, onLine(textResponse("r-1", now)))
			require.NoError(t, onLine(textResponse("r-2", now.Add(time.Second))))
			return nil
		},
	}
	d := NewDispatcher(rpc, DispatcherOptions{})

	var got []string
	err := d.SendChatMessage(context.Background(), "c-1", entity.ChatModeBuildApp, nil, nil,
		func(resp *entity.ChatResponse) { got = append(got, resp.ID) })
	require.NoError(t, err)
	assert.Equal(t, []string{"r-1", "r-2"}, got)
}

func TestSendChatMessage_ShortPollReplaysMissed(t *testing.T) {
	now := time.Now()
	rpc := &fakeRPC{
		pollBatch: []entity.ChatResponse{*textResponse("missed-1", now)},
		streamFn: func(ctx context.Context, method string, params any, onLine nut.LineHandler) error {
			// 流式路径挂住足够长，让短轮询至少走一轮
			select {
			case <-time.After(80 * time.Millisecond):
			case <-ctx.Done():
			}
			return nil
		},
	}
	d := NewDispatcher(rpc, DispatcherOptions{ShortPollInterval: 20 * time.Millisecond})

	var mu sync.Mutex
	var got []string
	err := d.SendChatMessage(context.Background(), "c-1", entity.ChatModeBuildApp, nil, nil,
		func(resp *entity.ChatResponse) {
			mu.Lock()
			got = append(got, resp.ID)
			mu.Unlock()
		})
	require.NoError(t, err)
	assert.Contains(t, got, "missed-1")
	assert.GreaterOrEqual(t, rpc.callCount(methodGetAppResponses), 2, "期望轮询若干次加一次兜底补取")
}

func TestSendChatMessage_ShortPollStopsAfterReturn(t *testing.T) {
	rpc := &fakeRPC{
		streamFn: func(ctx context.Context, method string, params any, onLine nut.LineHandler) error {
			time.Sleep(50 * time.Millisecond)
			return nil
		},
	}
	d := NewDispatcher(rpc, DispatcherOptions{ShortPollInterval: 10 * time.Millisecond})

	err := d.SendChatMessage(context.Background(), "c-1", entity.ChatModeBuildApp, nil, nil,
		func(resp *entity.ChatResponse) {})
	require.NoError(t, err)

	after := rpc.callCount(methodGetAppResponses)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, rpc.callCount(methodGetAppResponses), "返回之后短轮询不得再触发")
}

func TestSendChatMessage_CleanupFetchRunsOnStreamFailure(t *testing.T) {
	streamErr := errors.New("stream broke")
	rpc := &fakeRPC{
		streamFn: func(ctx context.Context, method string, params any, onLine nut.LineHandler) error {
			return streamErr
		},
	}
	d := NewDispatcher(rpc, DispatcherOptions{ShortPollInterval: time.Hour})

	err := d.SendChatMessage(context.Background(), "c-1", entity.ChatModeBuildApp, nil, nil,
		func(resp *entity.ChatResponse) {})
	require.ErrorIs(t, err, streamErr)
	assert.Equal(t, 1, rpc.callCount(methodGetAppResponses), "流式失败后仍有一次兜底补取")
}

func TestSendChatMessage_NoDedupByDefault(t *testing.T) {
	now := time.Now()
	rpc := &fakeRPC{
		pollBatch: []entity.ChatResponse{*textResponse("r-1", now)},
		streamFn: func(ctx context.Context, method string, params any, onLine nut.LineHandler) error {
			return onLine(textResponse("r-1", now))
		},
	}
	d := NewDispatcher(rpc, DispatcherOptions{ShortPollInterval: time.Hour})

	var got []string
	err := d.SendChatMessage(context.Background(), "c-1", entity.ChatModeBuildApp, nil, nil,
		func(resp *entity.ChatResponse) { got = append(got, resp.ID) })
	require.NoError(t, err)

	// 流式一次加兜底补取一次，同一响应允许重复送达
	assert.Equal(t, []string{"r-1", "r-1"}, got)
}

// mapDeduper 内存去重桩
type mapDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *mapDeduper) Seen(ctx context.Context, chatID, responseID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := chatID + "/" + responseID
	if m.seen[key] {
		return true, nil
	}
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	m.seen[key] = true
	return false, nil
}

func TestSendChatMessage_DeduperSuppressesDuplicates(t *testing.T) {
	now := time.Now()
	rpc := &fakeRPC{
		pollBatch: []entity.ChatResponse{*textResponse("r-1", now)},
		streamFn: func(ctx context.Context, method string, params any, onLine nut.LineHandler) error {
			return onLine(textResponse("r-1", now))
		},
	}
	d := NewDispatcher(rpc, DispatcherOptions{
		ShortPollInterval: time.Hour,
		Deduper:           &mapDeduper{seen: make(map[string]bool)},
	})

	var got []string
	err := d.SendChatMessage(context.Background(), "c-1", entity.ChatModeBuildApp, nil, nil,
		func(resp *entity.ChatResponse) { got = append(got, resp.ID) })
	require.NoError(t, err)
	assert.Equal(t, []string{"r-1"}, got)
}

func TestSendChatMessage_AdvancesPollCursor(t *testing.T) {
	now := time.Now()
	var sinceSeen []time.Time
	rpc := &fakeRPC{}
	rpc.callFn = func(ctx context.Context, method string, params any, out any) error {
		if p, ok := params.(getAppResponsesParams); ok {
			sinceSeen = append(sinceSeen, p.Since)
		}
		return nil
	}
	rpc.streamFn = func(ctx context.Context, method string, params any, onLine nut.LineHandler) error {
		return onLine(textResponse("r-1", now))
	}
	d := NewDispatcher(rpc, DispatcherOptions{ShortPollInterval: time.Hour})

	err := d.SendChatMessage(context.Background(), "c-1", entity.ChatModeBuildApp, nil, nil,
		func(resp *entity.ChatResponse) {})
	require.NoError(t, err)

	// 兜底补取的游标应当已经推进到流式送达的时间
	require.Len(t, sinceSeen, 1)
	assert.True(t, sinceSeen[0].Equal(now))
}
