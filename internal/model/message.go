package model

import "time"

// Message 会话消息，自增主键即增量拉取的游标
type Message struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64    `gorm:"index:idx_conv_read;not null" json:"conversationId"`
	Direction      int8      `gorm:"not null" json:"direction"` // 1-客户, 2-客服
	SenderID       uint64    `gorm:"not null;default:0" json:"senderId"`
	SenderName     string    `gorm:"type:varchar(255)" json:"senderName"`
	Body           string    `gorm:"type:text;not null" json:"body"`
	Read           bool      `gorm:"column:is_read;index:idx_conv_read;not null;default:false" json:"read"` // 仅客户方向有意义
	CreatedAt      time.Time `json:"createdAt"`
}

func (Message) TableName() string { return "support_messages" }
