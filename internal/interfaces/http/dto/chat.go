// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"encoding/json"
	"time"

	"nut-chat-api/internal/domain/entity"
)

// CreateChatRequest 创建会话请求
type CreateChatRequest struct {
	AppID string `json:"app_id" binding:"required"`
	Mode  string `json:"mode,omitempty"`
}

// ChatSessionResponse 会话响应
type ChatSessionResponse struct {
	ChatID    string `json:"chat_id"`
	AppID     string `json:"app_id"`
	State     string `json:"state"`
	CreatedAt string `json:"created_at"`
}

// MessageRequest 入站消息
type MessageRequest struct {
	Role     string `json:"role" binding:"required,oneof=system user assistant"`
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	DataURL  string `json:"data_url,omitempty"`
	Category string `json:"category,omitempty"`
}

// ReferenceRequest 界面元素引用
type ReferenceRequest struct {
	Selector string `json:"selector" binding:"required"`
	X        *int   `json:"x,omitempty"`
	Y        *int   `json:"y,omitempty"`
}

// SendMessageRequest 发送轮次请求
type SendMessageRequest struct {
	Mode       string             `json:"mode,omitempty"`
	Messages   []MessageRequest   `json:"messages" binding:"required,min=1,dive"`
	References []ReferenceRequest `json:"references,omitempty"`
}

// ToMessages 转换为领域消息列表
func (r *SendMessageRequest) ToMessages() []entity.Message {
	out := make([]entity.Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		content := entity.TextContent(m.Text)
		if m.DataURL != "" {
			content = entity.ImageContent(m.MimeType, m.DataURL)
		}
		out = append(out, entity.Message{
			Role:      entity.Role(m.Role),
			Content:   content,
			Category:  entity.MessageCategory(m.Category),
			CreatedAt: time.Now(),
		})
	}
	return out
}

// ToReferences 转换为领域引用列表
func (r *SendMessageRequest) ToReferences() []entity.Reference {
	out := make([]entity.Reference, 0, len(r.References))
	for _, ref := range r.References {
		out = append(out, entity.Reference{Selector: ref.Selector, X: ref.X, Y: ref.Y})
	}
	return out
}

// ChatResponseItem 单个响应单元
type ChatResponseItem struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Time    string          `json:"time"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// FromChatResponse 由领域响应构造
func FromChatResponse(resp *entity.ChatResponse) *ChatResponseItem {
	return &ChatResponseItem{
		ID:      resp.ID,
		Kind:    string(resp.Kind),
		Time:    resp.Time.Format(time.RFC3339Nano),
		Payload: resp.Payload,
	}
}

// ChatResponseListResponse 响应列表
type ChatResponseListResponse struct {
	Responses []*ChatResponseItem `json:"responses"`
}
