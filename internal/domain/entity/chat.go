// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"time"
)

// ChatMode 对话模式枚举
type ChatMode string

const (
	ChatModeBuildApp   ChatMode = "build-app"
	ChatModeDiscovery  ChatMode = "discovery"
	ChatModeDevelopApp ChatMode = "develop-app"
	ChatModeDiscuss    ChatMode = "discuss"
)

// Reference 界面元素引用
// 记录用户在预览中指向的元素选择器与鼠标坐标
type Reference struct {
	Selector string `json:"selector"`
	X        *int   `json:"x,omitempty"`
	Y        *int   `json:"y,omitempty"`
}

// ChatTurn 一次对话轮次
// 发送后不可变，每次发送重新构造
type ChatTurn struct {
	ChatID      string          `json:"chat_id"`
	Mode        ChatMode        `json:"mode"`
	Messages    []Message       `json:"messages"`
	References  []Reference     `json:"references,omitempty"`
	SessionData json.RawMessage `json:"session_data,omitempty"`
}

// NewChatTurn 构造对话轮次，出站消息列表已按发送规则过滤
func NewChatTurn(chatID string, mode ChatMode, messages []Message, references []Reference) *ChatTurn {
	return &ChatTurn{
		ChatID:     chatID,
		Mode:       mode,
		Messages:   FilterSendable(messages),
		References: references,
	}
}

// ResponseKind 响应单元类型
type ResponseKind string

const (
	ResponseKindText   ResponseKind = "text"
	ResponseKindTitle  ResponseKind = "title"
	ResponseKindStatus ResponseKind = "status"
	ResponseKindError  ResponseKind = "error"
)

// ChatResponse 后端返回的单个响应单元
// 同一响应可能经由流式与轮询两条路径各送达一次，消费方按响应 ID 幂等处理
type ChatResponse struct {
	ID      string          `json:"id"`
	ChatID  string          `json:"chat_id"`
	Kind    ResponseKind    `json:"kind"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ResponseCallback 响应回调
// 对一次轮次可能被调用零次或多次；送达语义为 at-least-once
type ResponseCallback func(resp *ChatResponse)
