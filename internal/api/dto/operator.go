package dto

import "time"

type OperatorSendReq struct {
	ConversationID uint64 `json:"conversation_id" binding:"required"`
	Body           string `json:"body" binding:"required"`
}

type OperatorSendResp struct {
	MessageID uint64    `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationViewResp 坐席打开会话时的完整视图，打开即认领未读
type ConversationViewResp struct {
	ConversationID uint64       `json:"conversation_id"`
	Subject        string       `json:"subject"`
	ContactName    string       `json:"contact_name"`
	ContactPhone   string       `json:"contact_phone"`
	IsOpen         bool         `json:"is_open"`
	AssignedToID   uint64       `json:"assigned_to_id"`
	CreatedAt      time.Time    `json:"created_at"`
	ClosedAt       *time.Time   `json:"closed_at,omitempty"`
	Messages       []MessageDTO `json:"messages"`
	Cursor         uint64       `json:"cursor"`
	Rating         *RatingDTO   `json:"rating,omitempty"`
	Audits         []AuditDTO   `json:"audits"`
}

// AuditDTO 会话操作流水，最近的在前
type AuditDTO struct {
	Action     string    `json:"action"`
	OperatorID uint64    `json:"operator_id"`
	Metadata   string    `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type OperatorTypingReq struct {
	ConversationID uint64 `json:"conversation_id" binding:"required"`
	Active         bool   `json:"active"`
}

type HeartbeatReq struct {
	ActiveConversationID uint64 `json:"active_conversation_id"`
}

type HeartbeatResp struct {
	OnlineOperators int   `json:"online_operators"`
	UnreadTotal     int64 `json:"unread_total"`
}

// PushDebugResp 推送链路自检
type PushDebugResp struct {
	Enabled           bool   `json:"enabled"`
	VAPIDConfigured   bool   `json:"vapid_configured"`
	ActiveEndpoints   int64  `json:"active_endpoints"`
	TotalEndpoints    int64  `json:"total_endpoints"`
	MyActiveEndpoints int64  `json:"my_active_endpoints"`
	LastError         string `json:"last_error"`
	OpenPolls         int64  `json:"open_polls"`
	LastPollLatencyMs int64  `json:"last_poll_latency_ms"`
}
