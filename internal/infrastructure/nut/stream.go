package nut

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"nut-chat-api/internal/domain/entity"
	"nut-chat-api/pkg/logger"
	"nut-chat-api/pkg/metrics"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// 流式响应单行上限，超长行直接判定为畸形
const maxStreamLineBytes = 1 << 20

// LineHandler 处理流中解码出的一条响应
// 返回错误时中止整个流
type LineHandler func(resp *entity.ChatResponse) error

// Stream 发起流式 RPC 调用，逐行解码 NDJSON 响应
//
// 畸形行记录日志与指标后跳过，不中断流。连接结束时缓冲区里
// 未换行的残余内容作为最后一行处理。idleTimeout 大于零时，
// 两行之间的静默超过该时长会中止连接。
func (c *Client) Stream(ctx context.Context, method string, params any, idleTimeout time.Duration, onLine LineHandler) error {
	ctx, span := tracer.Start(ctx, "nut.Stream",
		trace.WithAttributes(attribute.String("nut.method", method)))
	defer span.End()

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resp, err := c.post(streamCtx, method, params)
	if err != nil {
		span.RecordError(err)
		metrics.NutRPCTotal.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("nut stream %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		rpcErr := &RPCError{Method: method, Status: resp.StatusCode, Body: string(body)}
		span.RecordError(rpcErr)
		metrics.NutRPCTotal.WithLabelValues(method, "error").Inc()
		return rpcErr
	}

	// 静默看门狗：每收到一行重置，超时取消底层连接
	var watchdog *time.Timer
	if idleTimeout > 0 {
		watchdog = time.AfterFunc(idleTimeout, cancel)
		defer watchdog.Stop()
	}

	lines := 0
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxStreamLineBytes)

	for scanner.Scan() {
		if watchdog != nil {
			watchdog.Reset(idleTimeout)
		}
		if err := c.handleLine(ctx, method, scanner.Text(), onLine); err != nil {
			span.RecordError(err)
			return err
		}
		lines++
	}

	if err := scanner.Err(); err != nil {
		// 上游主动取消不算失败
		if ctx.Err() != nil {
			return ctx.Err()
		}
		span.RecordError(err)
		metrics.NutRPCTotal.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("nut stream %s: read: %w", method, err)
	}

	span.SetAttributes(attribute.Int("nut.stream_lines", lines))
	metrics.NutRPCTotal.WithLabelValues(method, "ok").Inc()
	return ctx.Err()
}

// handleLine 解码并分发单行，畸形行跳过
func (c *Client) handleLine(ctx context.Context, method, line string, onLine LineHandler) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var chatResp entity.ChatResponse
	if err := json.Unmarshal([]byte(line), &chatResp); err != nil {
		metrics.NutStreamLines.WithLabelValues(method, "malformed").Inc()
		logger.Warn(ctx, "丢弃流中的畸形行",
			"method", method,
			"error", err,
			"line_bytes", len(line),
		)
		return nil
	}

	metrics.NutStreamLines.WithLabelValues(method, "ok").Inc()
	return onLine(&chatResp)
}
