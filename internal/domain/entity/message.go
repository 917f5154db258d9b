// Package entity 定义领域实体
package entity

import (
	"time"
)

// Role 对话角色枚举
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageCategory 消息分类
// 分类决定消息是否展示给用户，以及是否随对话轮次发送给后端
type MessageCategory string

const (
	// MessageCategoryNone 普通消息，无附加分类
	MessageCategoryNone MessageCategory = ""
	// MessageCategoryDiscoveryRating 需求探索阶段的评分回复
	MessageCategoryDiscoveryRating MessageCategory = "discovery-rating"
	// MessageCategoryDiscoveryResponse 需求探索阶段的助手回复
	MessageCategoryDiscoveryResponse MessageCategory = "discovery-response"
	// MessageCategoryUserResponse 面向用户展示的助手回复
	MessageCategoryUserResponse MessageCategory = "user-response"
	// MessageCategoryInternalNote 内部记录消息，永远不发送给后端
	MessageCategoryInternalNote MessageCategory = "internal-note"
	// MessageCategoryStatus 状态类消息，仅用于界面展示
	MessageCategoryStatus MessageCategory = "status"
)

// ContentKind 消息内容类型
type ContentKind string

const (
	ContentKindText  ContentKind = "text"
	ContentKindImage ContentKind = "image"
)

// MessageContent 消息内容（文本或图片载荷）
type MessageContent struct {
	Kind ContentKind `json:"kind"`
	// Text 文本内容，Kind 为 text 时有效
	Text string `json:"text,omitempty"`
	// MimeType 图片 MIME 类型，Kind 为 image 时有效
	MimeType string `json:"mime_type,omitempty"`
	// DataURL 图片 data URL，Kind 为 image 时有效
	DataURL string `json:"data_url,omitempty"`
}

// TextContent 构造文本内容
func TextContent(text string) MessageContent {
	return MessageContent{Kind: ContentKindText, Text: text}
}

// ImageContent 构造图片内容
func ImageContent(mimeType, dataURL string) MessageContent {
	return MessageContent{Kind: ContentKindImage, MimeType: mimeType, DataURL: dataURL}
}

// Message 一条对话消息
// 只追加，创建后不再修改
type Message struct {
	ID        string          `json:"id"`
	Role      Role            `json:"role"`
	Content   MessageContent  `json:"content"`
	Category  MessageCategory `json:"category,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Sendable 判断消息是否允许发送给后端
// 用户消息始终发送；助手消息仅在分类标记为面向用户的回复时发送
func (m *Message) Sendable() bool {
	if m.Role == RoleUser {
		return true
	}
	switch m.Category {
	case MessageCategoryDiscoveryRating, MessageCategoryDiscoveryResponse, MessageCategoryUserResponse:
		return true
	default:
		return false
	}
}

// FilterSendable 过滤出允许发送给后端的消息子集
// 内部记录类消息永远不会出现在出站载荷中
func FilterSendable(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Sendable() {
			out = append(out, m)
		}
	}
	return out
}
