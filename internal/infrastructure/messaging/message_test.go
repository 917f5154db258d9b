package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageCarriesPayload(t *testing.T) {
	msg, err := NewMessage("m-1", "chat.first_response_timeout", "c-1", TelemetryEvent{
		Event:  "chat.first_response_timeout",
		ChatID: "c-1",
		Fields: map[string]any{"timeout": "20s"},
	})
	require.NoError(t, err)

	assert.Equal(t, "m-1", msg.ID)
	assert.Equal(t, "c-1", msg.ChatID)
	assert.False(t, msg.CreatedAt.IsZero())

	var event TelemetryEvent
	require.NoError(t, msg.UnmarshalPayload(&event))
	assert.Equal(t, "c-1", event.ChatID)
	assert.Equal(t, "20s", event.Fields["timeout"])
}

func TestMessageMetadata(t *testing.T) {
	msg, err := NewMessage("m-2", "t", "c-1", nil)
	require.NoError(t, err)

	assert.Empty(t, msg.GetMetadata("request_id"))
	msg.SetMetadata("request_id", "req-9")
	assert.Equal(t, "req-9", msg.GetMetadata("request_id"))
}

func TestCalculateBackoff(t *testing.T) {
	cfg := BackoffConfig{
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 2.0,
	}

	assert.Equal(t, time.Second, cfg.CalculateBackoff(0))
	assert.Equal(t, 2*time.Second, cfg.CalculateBackoff(1))
	assert.Equal(t, 4*time.Second, cfg.CalculateBackoff(2))
	// 超出上限后封顶
	assert.Equal(t, 30*time.Second, cfg.CalculateBackoff(10))
}

func TestDLQStreamName(t *testing.T) {
	assert.Equal(t, "dlq:nut:chat:telemetry", StreamChatTelemetry.DLQStream())
}
