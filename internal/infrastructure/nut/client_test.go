package nut

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nut-chat-api/internal/config"
	"nut-chat-api/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(&config.NutConfig{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		UserID:      "user-1",
		CallTimeout: 5 * time.Second,
	})
}

func TestClientCall(t *testing.T) {
	t.Run("携带方法路径与认证头", func(t *testing.T) {
		var gotPath, gotUser, gotAuth, gotContentType string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotUser = r.Header.Get("x-user-id")
			gotAuth = r.Header.Get("Authorization")
			gotContentType = r.Header.Get("Content-Type")
			fmt.Fprint(w, `{"chat_id":"c-1"}`)
		}))
		defer srv.Close()

		var out struct {
			ChatID string `json:"chat_id"`
		}
		err := newTestClient(srv.URL).Call(context.Background(), "start-chat", map[string]string{"mode": "build-app"}, &out)
		require.NoError(t, err)

		assert.Equal(t, "/nut/start-chat", gotPath)
		assert.Equal(t, "user-1", gotUser)
		assert.Equal(t, "Bearer test-key", gotAuth)
		assert.Equal(t, "application/json", gotContentType)
		assert.Equal(t, "c-1", out.ChatID)
	})

	t.Run("非 2xx 返回 RPCError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		}))
		defer srv.Close()

		err := newTestClient(srv.URL).Call(context.Background(), "finish-chat", nil, nil)
		require.Error(t, err)

		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, "finish-chat", rpcErr.Method)
		assert.Equal(t, http.StatusBadGateway, rpcErr.Status)
		assert.Contains(t, rpcErr.Body, "boom")
	})

	t.Run("out 为 nil 时丢弃响应体", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"ignored":true}`)
		}))
		defer srv.Close()

		assert.NoError(t, newTestClient(srv.URL).Call(context.Background(), "finish-chat", nil, nil))
	})
}

func TestClientStream(t *testing.T) {
	t.Run("逐行解码并跳过畸形行", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `{"id":"r-1","chat_id":"c-1","kind":"text"}`)
			fmt.Fprintln(w, `this is not json`)
			fmt.Fprintln(w, ``)
			fmt.Fprintln(w, `{"id":"r-2","chat_id":"c-1","kind":"status"}`)
		}))
		defer srv.Close()

		var got []string
		err := newTestClient(srv.URL).Stream(context.Background(), "send-chat-message", nil, 0,
			func(resp *entity.ChatResponse) error {
				got = append(got, resp.ID)
				return nil
			})
		require.NoError(t, err)
		assert.Equal(t, []string{"r-1", "r-2"}, got)
	})

	t.Run("末尾无换行的残余行也会送达", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `{"id":"r-1","chat_id":"c-1","kind":"text"}`)
			fmt.Fprint(w, `{"id":"r-2","chat_id":"c-1","kind":"text"}`)
		}))
		defer srv.Close()

		var got []string
		err := newTestClient(srv.URL).Stream(context.Background(), "send-chat-message", nil, 0,
			func(resp *entity.ChatResponse) error {
				got = append(got, resp.ID)
				return nil
			})
		require.NoError(t, err)
		assert.Equal(t, []string{"r-1", "r-2"}, got)
	})

	t.Run("回调返回错误时中止流", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			flusher := w.(http.Flusher)
			for i := 0; i < 100; i++ {
				fmt.Fprintf(w, `{"id":"r-%d","chat_id":"c-1","kind":"text"}`+"\n", i)
				flusher.Flush()
			}
		}))
		defer srv.Close()

		wantErr := errors.New("stop here")
		count := 0
		err := newTestClient(srv.URL).Stream(context.Background(), "send-chat-message", nil, 0,
			func(resp *entity.ChatResponse) error {
				count++
				if count == 3 {
					return wantErr
				}
				return nil
			})
		require.ErrorIs(t, err, wantErr)
		assert.Equal(t, 3, count)
	})

	t.Run("上游取消时返回 context 错误", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `{"id":"r-1","chat_id":"c-1","kind":"text"}`)
			w.(http.Flusher).Flush()
			<-release
		}))
		defer srv.Close()
		defer close(release)

		ctx, cancel := context.WithCancel(context.Background())
		err := newTestClient(srv.URL).Stream(ctx, "listen-app-responses", nil, 0,
			func(resp *entity.ChatResponse) error {
				cancel()
				return nil
			})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("非 2xx 返回 RPCError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		err := newTestClient(srv.URL).Stream(context.Background(), "listen-app-responses", nil, 0,
			func(resp *entity.ChatResponse) error { return nil })

		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, http.StatusServiceUnavailable, rpcErr.Status)
	})

	t.Run("静默超过空闲阈值时中止", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `{"id":"r-1","chat_id":"c-1","kind":"text"}`)
			w.(http.Flusher).Flush()
			<-release
		}))
		defer srv.Close()
		defer close(release)

		start := time.Now()
		err := newTestClient(srv.URL).Stream(context.Background(), "listen-app-responses", nil, 50*time.Millisecond,
			func(resp *entity.ChatResponse) error { return nil })
		require.Error(t, err)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestClientStream_PayloadDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"id":"r-1","chat_id":"c-1","kind":"text","payload":{"text":"hello"}}`)
	}))
	defer srv.Close()

	var payload json.RawMessage
	err := newTestClient(srv.URL).Stream(context.Background(), "send-chat-message", nil, 0,
		func(resp *entity.ChatResponse) error {
			payload = resp.Payload
			return nil
		})
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hello"}`, string(payload))
}
