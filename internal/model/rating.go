package model

import "time"

// Rating 关闭后的满意度评分，一个会话至多一条
type Rating struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64    `gorm:"uniqueIndex;not null" json:"conversationId"`
	AgentID        uint64    `gorm:"index;not null;default:0" json:"agentId"`
	Score          int8      `gorm:"not null" json:"score"` // 1~5
	Reason         string    `gorm:"type:text" json:"reason"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (Rating) TableName() string { return "support_ratings" }
