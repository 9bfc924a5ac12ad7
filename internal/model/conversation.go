package model

import "time"

// Conversation 客服会话主表
type Conversation struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Token     string `gorm:"uniqueIndex;type:varchar(64);not null" json:"token"` // 匿名访客凭此恢复会话
	ContactID uint64 `gorm:"index;not null;default:0" json:"contactId"`
	Subject   string `gorm:"type:varchar(255)" json:"subject"`
	IsOpen    bool   `gorm:"index;not null;default:true" json:"isOpen"`

	// assigned_to 是 SLA 与推送排除的权威归属；operator/closed_by 仅作历史元数据
	AssignedToID uint64 `gorm:"index;not null;default:0" json:"assignedToId"`
	OperatorID   uint64 `gorm:"not null;default:0" json:"operatorId"` // 首位应答者
	ClosedByID   uint64 `gorm:"not null;default:0" json:"closedById"`

	CreatedAt time.Time  `json:"createdAt"`
	ClosedAt  *time.Time `json:"closedAt"`

	Contact SupportContact `gorm:"foreignKey:ContactID;references:ID" json:"contact"`
}

func (Conversation) TableName() string { return "support_conversations" }

// ConversationQueueRow 排队查询的标注结果，虚拟列仅读不写
type ConversationQueueRow struct {
	Conversation
	UnreadCount    int64      `gorm:"->" json:"unreadCount"`
	OldestUnreadAt *time.Time `gorm:"->" json:"oldestUnreadAt"`
	LastMessageAt  *time.Time `gorm:"->" json:"lastMessageAt"`
	LastMessageID  uint64     `gorm:"->" json:"lastMessageId"`
	LastDirection  int8       `gorm:"->" json:"lastDirection"`
	ContactName    string     `gorm:"->" json:"contactName"`
}
