package chat

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"nut-chat-api/internal/domain/entity"
	"nut-chat-api/internal/infrastructure/nut"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListener_ReturnsOnCleanCompletion(t *testing.T) {
	rpc := &fakeRPC{
		streamFn: func(ctx context.Context, method string, params any, onLine nut.LineHandler) error {
			require.NoError(t, onLine(textResponse("r-1", time.Now())))
			return nil
		},
	}
	l := NewListener(rpc, BackoffPolicy{Interval: time.Millisecond}, 0)

	var got []string
	err := l.Listen(context.Background(), "c-1", func(resp *entity.ChatResponse) {
		got = append(got, resp.ID)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"r-1"}, got)
	assert.Equal(t, 1, rpc.callCount(methodListenResponses))
}

func TestListener_RetriesUntilSuccess(t *testing.T) {
	var attempts atomic.Int32
	rpc := &fakeRPC{
		streamFn: func(ctx context.Context, method string, params any, onLine nut.LineHandler) error {
			if attempts.Add(1) < 4 {
				return errors.New("connection dropped")
			}
			return nil
		},
	}
	l := NewListener(rpc, BackoffPolicy{Interval: time.Millisecond}, 0)

	err := l.Listen(context.Background(), "c-1", func(resp *entity.ChatResponse) {})
	require.NoError(t, err)
	assert.Equal(t, int32(4), attempts.Load())
}

func TestListener_StopsOnContextCancel(t *testing.T) {
	rpc := &fakeRPC{
		streamFn: func(ctx context.Context, method string, params any, onLine nut.LineHandler) error {
			return errors.New("always failing")
		},
	}
	l := NewListener(rpc, BackoffPolicy{Interval: 10 * time.Millisecond}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := l.Listen(ctx, "c-1", func(resp *entity.ChatResponse) {})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffPolicy_DefaultInterval(t *testing.T) {
	assert.Equal(t, 5*time.Second, BackoffPolicy{}.Next())
	assert.Equal(t, time.Second, BackoffPolicy{Interval: time.Second}.Next())
}
