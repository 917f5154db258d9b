// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// SessionState 会话状态机取值
type SessionState string

const (
	SessionStateIdle     SessionState = "idle"
	SessionStateStarting SessionState = "starting"
	SessionStateSending  SessionState = "sending"
	SessionStateFinished SessionState = "finished"
)

// ChatSession 对话会话落库记录
type ChatSession struct {
	ID        string       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AppID     string       `json:"app_id" gorm:"type:varchar(64);index;not null"`
	ChatID    string       `json:"chat_id" gorm:"type:varchar(64);uniqueIndex;not null"`
	UserID    string       `json:"user_id" gorm:"type:varchar(64);index"`
	State     SessionState `json:"state" gorm:"type:varchar(16);not null;default:'idle'"`
	CreatedAt time.Time    `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"autoUpdateTime"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// NewChatSession 创建会话记录
func NewChatSession(appID, chatID, userID string) *ChatSession {
	now := time.Now()
	return &ChatSession{
		AppID:     appID,
		ChatID:    chatID,
		UserID:    userID,
		State:     SessionStateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ChatTurnRecord 已发送轮次的落库记录
type ChatTurnRecord struct {
	ID           string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatID       string          `json:"chat_id" gorm:"type:varchar(64);index;not null"`
	Mode         ChatMode        `json:"mode" gorm:"type:varchar(32);not null"`
	MessageCount int             `json:"message_count" gorm:"not null"`
	References   pq.StringArray  `json:"references,omitempty" gorm:"type:text[]"`
	Payload      json.RawMessage `json:"payload,omitempty" gorm:"type:jsonb"`
	CreatedAt    time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (ChatTurnRecord) TableName() string {
	return "chat_turns"
}

// NewChatTurnRecord 由出站轮次构造落库记录
func NewChatTurnRecord(turn *ChatTurn) *ChatTurnRecord {
	refs := make(pq.StringArray, 0, len(turn.References))
	for _, r := range turn.References {
		refs = append(refs, r.Selector)
	}
	payload, _ := json.Marshal(turn)
	return &ChatTurnRecord{
		ChatID:       turn.ChatID,
		Mode:         turn.Mode,
		MessageCount: len(turn.Messages),
		References:   refs,
		Payload:      payload,
		CreatedAt:    time.Now(),
	}
}

// ChatResponseRecord 已接收响应的落库记录
type ChatResponseRecord struct {
	ID         string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ResponseID string          `json:"response_id" gorm:"type:varchar(64);index;not null"`
	ChatID     string          `json:"chat_id" gorm:"type:varchar(64);index;not null"`
	Kind       ResponseKind    `json:"kind" gorm:"type:varchar(16);not null"`
	Time       time.Time       `json:"time" gorm:"index;not null"`
	Payload    json.RawMessage `json:"payload,omitempty" gorm:"type:jsonb"`
	CreatedAt  time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (ChatResponseRecord) TableName() string {
	return "chat_responses"
}

// NewChatResponseRecord 由响应单元构造落库记录
func NewChatResponseRecord(resp *ChatResponse) *ChatResponseRecord {
	return &ChatResponseRecord{
		ResponseID: resp.ID,
		ChatID:     resp.ChatID,
		Kind:       resp.Kind,
		Time:       resp.Time,
		Payload:    resp.Payload,
		CreatedAt:  time.Now(),
	}
}
