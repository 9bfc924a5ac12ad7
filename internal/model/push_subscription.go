package model

import "time"

// PushSubscription 客服端 Web Push 订阅，(operator, endpoint) 唯一。
// 端点永久失效只置 inactive 不删行，同端点重订阅即复活
type PushSubscription struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	OperatorID uint64    `gorm:"uniqueIndex:idx_op_endpoint;index" json:"operatorId"`
	Endpoint   string    `gorm:"uniqueIndex:idx_op_endpoint,length:255;type:varchar(500);not null" json:"endpoint"`
	P256dh     string    `gorm:"type:varchar(512);not null" json:"p256dh"`
	Auth       string    `gorm:"type:varchar(255);not null" json:"auth"`
	IsActive   bool      `gorm:"index;not null;default:true" json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (PushSubscription) TableName() string { return "support_push_subscriptions" }
