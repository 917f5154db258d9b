// Package nut 封装对后端 RPC 服务的 HTTP 访问
//
// 后端把所有方法统一暴露为 POST /nut/<method>，一元调用返回 JSON，
// 流式调用返回逐行 JSON（NDJSON）。本包提供一元与流式两种客户端入口。
package nut

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nut-chat-api/internal/config"
	"nut-chat-api/pkg/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("nut")

// RPCError 后端返回非 2xx 时的错误
type RPCError struct {
	Method string
	Status int
	Body   string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("nut rpc %s failed with status %d: %s", e.Method, e.Status, e.Body)
}

// Client 后端 RPC 客户端
type Client struct {
	baseURL    string
	apiKey     string
	userID     string
	httpClient *http.Client
}

// NewClient 创建后端 RPC 客户端
// 流式请求的超时由上游 context 控制，客户端本身不设总超时
func NewClient(cfg *config.NutConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		userID:  cfg.UserID,
		httpClient: &http.Client{
			// 仅约束连接建立与响应头，正文读取可长时间持续
			Transport: &http.Transport{
				ResponseHeaderTimeout: cfg.CallTimeout,
			},
		},
	}
}

// Call 发起一元 RPC 调用，结果解码到 out
// out 为 nil 时丢弃响应体
func (c *Client) Call(ctx context.Context, method string, params any, out any) error {
	ctx, span := tracer.Start(ctx, "nut.Call",
		trace.WithAttributes(attribute.String("nut.method", method)))
	defer span.End()

	start := time.Now()

	resp, err := c.post(ctx, method, params)
	if err != nil {
		span.RecordError(err)
		metrics.NutRPCTotal.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("nut rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		rpcErr := &RPCError{Method: method, Status: resp.StatusCode, Body: string(body)}
		span.RecordError(rpcErr)
		metrics.NutRPCTotal.WithLabelValues(method, "error").Inc()
		return rpcErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			span.RecordError(err)
			metrics.NutRPCTotal.WithLabelValues(method, "error").Inc()
			return fmt.Errorf("nut rpc %s: decode response: %w", method, err)
		}
	}

	metrics.NutRPCTotal.WithLabelValues(method, "ok").Inc()
	metrics.NutRPCDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	return nil
}

func (c *Client) post(ctx context.Context, method string, params any) (*http.Response, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/nut/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-user-id", c.userID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	return c.httpClient.Do(req)
}
