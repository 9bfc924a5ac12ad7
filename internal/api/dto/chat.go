package dto

import "time"

// StartChatReq 访客发起会话
type StartChatReq struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone" binding:"required"`
	Subject string `json:"subject"`
}

type StartChatResp struct {
	ConversationID uint64 `json:"conversation_id"`
	Token          string `json:"token"`
	Reused         bool   `json:"reused"` // 命中已开启会话时为 true
}

// SendMessageReq 访客发消息，token 即持有凭证
type SendMessageReq struct {
	Token string `json:"token" binding:"required"`
	Body  string `json:"body" binding:"required"`
}

type SendMessageResp struct {
	MessageID      uint64    `json:"message_id"`
	ConversationID uint64    `json:"conversation_id"`
	Token          string    `json:"token"`
	Continued      bool      `json:"continued"` // 原会话已关闭、消息落入续开的新会话
	CreatedAt      time.Time `json:"created_at"`
}

// MessageDTO 消息明细
type MessageDTO struct {
	ID           uint64    `json:"id"`
	Direction    int8      `json:"direction"`
	SenderName   string    `json:"sender_name"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
	FromCustomer bool      `json:"from_customer"`
}

// PollResp 长轮询的四种归宿之一：有消息 / 空超时 / 已关闭 / （错误走统一响应）
type PollResp struct {
	Messages   []MessageDTO `json:"messages"`
	Cursor     uint64       `json:"cursor"`
	Closed     bool         `json:"closed"`
	PeerTyping bool         `json:"peer_typing"`
}

// SessionResp 聊天窗口引导数据
type SessionResp struct {
	ConversationID uint64       `json:"conversation_id"`
	Token          string       `json:"token"`
	Subject        string       `json:"subject"`
	IsOpen         bool         `json:"is_open"`
	CreatedAt      time.Time    `json:"created_at"`
	ClosedAt       *time.Time   `json:"closed_at,omitempty"`
	Messages       []MessageDTO `json:"messages"`
	Cursor         uint64       `json:"cursor"`
	CanRate        bool         `json:"can_rate"`
	Rating         *RatingDTO   `json:"rating,omitempty"`
}

type TypingReq struct {
	Token  string `json:"token" binding:"required"`
	Active bool   `json:"active"`
}

// RateReq 会话关闭后的满意度评分
type RateReq struct {
	Token  string `json:"token" binding:"required"`
	Score  int8   `json:"score" binding:"required" validate:"min=1,max=5"`
	Reason string `json:"reason"`
}

type RatingDTO struct {
	Score     int8      `json:"score"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
