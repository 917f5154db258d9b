package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nut-chat-api/internal/application/prompt"
	"nut-chat-api/internal/interfaces/http/handler"
)

func TestPromptHandler_Generate(t *testing.T) {
	engine, _ := newTestRouter(&fakeBackend{})

	body := bytes.NewBufferString(`{
		"provider": "anthropic",
		"mode": "build",
		"intent": {"category": "fix-bug", "confidence": "high", "complexity": "simple"}
	}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/prompts/generate", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Content         string `json:"content"`
			EstimatedTokens int    `json:"estimated_tokens"`
			Verbosity       string `json:"verbosity"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.Content)
	assert.Greater(t, resp.Data.EstimatedTokens, 0)
	assert.Equal(t, "minimal", resp.Data.Verbosity)
}

func TestPromptHandler_GenerateRejectsMissingProvider(t *testing.T) {
	engine, _ := newTestRouter(&fakeBackend{})

	req := httptest.NewRequest(http.MethodPost, "/v1/prompts/generate", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// memPromptCache 以内存 map 模拟读穿透缓存
type memPromptCache struct {
	mu    sync.Mutex
	data  map[string][]byte
	loads int
}

func (m *memPromptCache) GetOrLoadSafe(_ context.Context, key string, _ time.Duration, loader func() (interface{}, error)) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.data[key]; ok {
		return b, nil
	}

	v, err := loader()
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	m.loads++
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = b
	return b, nil
}

func TestPromptHandler_GenerateCachesResult(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cache := &memPromptCache{}
	engine := gin.New()
	engine.POST("/v1/prompts/generate", handler.NewPromptHandler(prompt.NewInjector(), "", cache).Generate)

	payload := `{"provider": "openai", "mode": "build"}`
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/prompts/generate", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"content"`)
	}

	// 相同请求只触发一次生成
	assert.Equal(t, 1, cache.loads)
}

func TestPromptHandler_GenerateRejectsBadMode(t *testing.T) {
	engine, _ := newTestRouter(&fakeBackend{})

	body := bytes.NewBufferString(`{"provider": "openai", "mode": "observe"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/prompts/generate", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
