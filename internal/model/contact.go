package model

import "time"

// SupportContact 客服联系人，按归一化手机号去重
type SupportContact struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint64    `gorm:"index;not null;default:0" json:"userId"` // 关联的注册用户，0 表示匿名
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	Phone      string    `gorm:"uniqueIndex;type:varchar(20);not null" json:"phone"`
	LastSeenAt time.Time `gorm:"index" json:"lastSeenAt"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (SupportContact) TableName() string { return "support_contacts" }
