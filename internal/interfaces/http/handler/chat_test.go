package handler_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nut-chat-api/internal/application/chat"
	"nut-chat-api/internal/application/prompt"
	"nut-chat-api/internal/domain/entity"
	"nut-chat-api/internal/infrastructure/nut"
	"nut-chat-api/internal/interfaces/http/handler"
	"nut-chat-api/internal/interfaces/http/router"
)

// fakeBackend 以内存实现 chat.RPC，替代真实 nut 后端
type fakeBackend struct {
	mu        sync.Mutex
	calls     []string
	streamed  []entity.ChatResponse
	pollBatch []entity.ChatResponse
}

func (f *fakeBackend) Call(_ context.Context, method string, _ any, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	batch := f.pollBatch
	f.mu.Unlock()

	switch method {
	case "start-chat":
		return json.Unmarshal([]byte(`{"chat_id":"c-100"}`), out)
	case "get-app-responses":
		if p, ok := out.(*[]entity.ChatResponse); ok {
			*p = batch
		}
		return nil
	default:
		return nil
	}
}

func (f *fakeBackend) Stream(_ context.Context, method string, _ any, _ time.Duration, onLine nut.LineHandler) error {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	streamed := f.streamed
	f.mu.Unlock()

	for i := range streamed {
		if err := onLine(&streamed[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBackend) callCount(method string) int {
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

func newTestRouter(backend *fakeBackend) (*gin.Engine, *chat.SessionManager) {
	gin.SetMode(gin.TestMode)

	dispatcher := chat.NewDispatcher(backend, chat.DispatcherOptions{})
	manager := chat.NewSessionManager(backend, dispatcher, chat.SessionManagerOptions{})
	listener := chat.NewListener(backend, chat.BackoffPolicy{Interval: 10 * time.Millisecond}, 0)
	recorder := chat.NewRecorder(nil, nil, nil)

	h := handler.NewChatHandler(manager, dispatcher, listener, recorder, nil)

	engine := gin.New()
	router.RegisterV1Routes(engine.Group("/v1"), handler.NewPromptHandler(prompt.NewInjector(), "", nil), h)
	return engine, manager
}

func textResponse(id, chatID, text string, at time.Time) entity.ChatResponse {
	payload, _ := json.Marshal(map[string]string{"text": text})
	return entity.ChatResponse{
		ID:      id,
		ChatID:  chatID,
		Kind:    entity.ResponseKindText,
		Time:    at,
		Payload: payload,
	}
}

func TestChatHandler_CreateChat(t *testing.T) {
	backend := &fakeBackend{}
	engine, manager := newTestRouter(backend)

	body := bytes.NewBufferString(`{"app_id":"app-1","mode":"build-app"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chats", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"chat_id":"c-100"`)
	assert.Equal(t, 1, backend.callCount("start-chat"))

	session := manager.Current()
	require.NotNil(t, session)
	assert.Equal(t, "c-100", session.ChatID())
}

func TestChatHandler_CreateChatRequiresAppID(t *testing.T) {
	backend := &fakeBackend{}
	engine, _ := newTestRouter(backend)

	req := httptest.NewRequest(http.MethodPost, "/v1/chats", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, backend.callCount("start-chat"))
}

func TestChatHandler_GetResponsesPassThrough(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	backend := &fakeBackend{
		pollBatch: []entity.ChatResponse{
			textResponse("r-1", "c-100", "hello", now),
			textResponse("r-2", "c-100", "world", now.Add(time.Second)),
		},
	}
	engine, _ := newTestRouter(backend)

	req := httptest.NewRequest(http.MethodGet, "/v1/chats/c-100/responses", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"r-1"`)
	assert.Contains(t, w.Body.String(), `"id":"r-2"`)
	assert.Equal(t, 1, backend.callCount("get-app-responses"))
}

func TestChatHandler_GetResponsesRejectsBadSince(t *testing.T) {
	backend := &fakeBackend{}
	engine, _ := newTestRouter(backend)

	req := httptest.NewRequest(http.MethodGet, "/v1/chats/c-100/responses?since=yesterday", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_SendMessageStreamsSSE(t *testing.T) {
	now := time.Now().UTC()
	backend := &fakeBackend{
		streamed: []entity.ChatResponse{
			textResponse("r-1", "c-100", "part one", now),
			textResponse("r-2", "c-100", "part two", now.Add(time.Second)),
		},
	}
	engine, manager := newTestRouter(backend)

	// 先注册会话
	session := manager.StartNew(context.Background())
	_, err := session.Start(context.Background(), entity.ChatModeBuildApp)
	require.NoError(t, err)

	srv := httptest.NewServer(engine)
	defer srv.Close()

	body := strings.NewReader(`{"messages":[{"role":"user","text":"hi"}]}`)
	resp, err := http.Post(srv.URL+"/v1/chats/c-100/messages", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	var events []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event:") {
			events = append(events, strings.TrimSpace(strings.TrimPrefix(line, "event:")))
		}
	}

	assert.Contains(t, events, "text")
	assert.Equal(t, "done", events[len(events)-1])
	assert.Equal(t, 1, backend.callCount("send-chat-message"))
}

func TestChatHandler_SendMessageUnknownChat(t *testing.T) {
	backend := &fakeBackend{}
	engine, _ := newTestRouter(backend)

	body := bytes.NewBufferString(`{"messages":[{"role":"user","text":"hi"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chats/c-missing/messages", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, backend.callCount("send-chat-message"))
}

func TestChatHandler_ListenStreamsUntilCompletion(t *testing.T) {
	now := time.Now().UTC()
	backend := &fakeBackend{
		streamed: []entity.ChatResponse{
			textResponse("r-9", "c-100", "late part", now),
		},
	}
	engine, _ := newTestRouter(backend)

	srv := httptest.NewServer(engine)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/chats/c-100/listen")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw := new(bytes.Buffer)
	_, _ = raw.ReadFrom(resp.Body)
	assert.Contains(t, raw.String(), `"id":"r-9"`)
	assert.Contains(t, raw.String(), "event:done")
	assert.Equal(t, 1, backend.callCount("listen-app-responses"))
}

func TestChatHandler_DeleteChat(t *testing.T) {
	backend := &fakeBackend{}
	engine, manager := newTestRouter(backend)

	session := manager.StartNew(context.Background())
	_, err := session.Start(context.Background(), entity.ChatModeBuildApp)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/v1/chats/c-100", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, backend.callCount("finish-chat"))
	assert.Nil(t, manager.Current())
}

func TestChatHandler_DeleteUnknownChat(t *testing.T) {
	backend := &fakeBackend{}
	engine, _ := newTestRouter(backend)

	req := httptest.NewRequest(http.MethodDelete, "/v1/chats/c-unknown", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, backend.callCount("finish-chat"))
}
