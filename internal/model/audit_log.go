package model

import "time"

// AuditLog 追加式审计流水，系统里唯一的"何时发生过什么"的持久记录
type AuditLog struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	OperatorID     uint64    `gorm:"index;not null;default:0" json:"operatorId"` // 推送结果记订阅归属人
	Action         string    `gorm:"index;type:varchar(32);not null" json:"action"`
	ConversationID uint64    `gorm:"index;not null;default:0" json:"conversationId"`
	IP             string    `gorm:"type:varchar(64)" json:"ip"`
	UserAgent      string    `gorm:"type:varchar(512)" json:"userAgent"`
	Metadata       string    `gorm:"type:json" json:"metadata"` // JSON 文本，写入后不再变更
	CreatedAt      time.Time `gorm:"index" json:"createdAt"`
}

func (AuditLog) TableName() string { return "support_audit_logs" }
