package dto

import "time"

// QueueItemDTO 队列行，wait 与 tier 由排序器计算后填充
type QueueItemDTO struct {
	ConversationID uint64     `json:"conversation_id"`
	Subject        string     `json:"subject"`
	ContactName    string     `json:"contact_name"`
	CreatedAt      time.Time  `json:"created_at"`
	UnreadCount    int        `json:"unread_count"`
	OldestUnreadAt *time.Time `json:"oldest_unread_at,omitempty"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
	LastMessageID  uint64     `json:"last_message_id"`
	AssignedToID   uint64     `json:"assigned_to_id"`
	Mine           bool       `json:"mine"`
	WaitSeconds    int64      `json:"wait_seconds"`
	Tier           string     `json:"tier"`
}

type QueueSummaryDTO struct {
	TotalOpen      int   `json:"total_open"`
	NeedingReply   int   `json:"needing_reply"`
	Critical       int   `json:"critical"`
	Mine           int   `json:"mine"`
	AvgWaitSeconds int64 `json:"avg_wait_seconds"`
}

type QueueResp struct {
	Items       []QueueItemDTO  `json:"items"`
	Summary     QueueSummaryDTO `json:"summary"`
	Fingerprint string          `json:"fingerprint"`
}

// QueuePollResp 看板长轮询只回变更信号，明细由随后的 queue 拉取
type QueuePollResp struct {
	Changed     bool   `json:"changed"`
	Fingerprint string `json:"fingerprint"`
}
