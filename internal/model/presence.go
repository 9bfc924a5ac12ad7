package model

import "time"

// OperatorPresence 客服在线踪迹。"在线"永远由 last_seen 推导，不落布尔
type OperatorPresence struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	OperatorID      uint64    `gorm:"uniqueIndex;not null" json:"operatorId"`
	LastSeenAt      time.Time `gorm:"index" json:"lastSeenAt"`
	ActiveSessionID uint64    `gorm:"not null;default:0" json:"activeSessionId"` // 正在查看的会话，0 表示无
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (OperatorPresence) TableName() string { return "support_operator_presences" }
