package repository

import (
	"Helpdesk/internal/model"
	"context"
	"time"

	"gorm.io/gorm"
)

type ContactRepo interface {
	GetByPhone(ctx context.Context, phone string) (*model.SupportContact, error)
	Create(ctx context.Context, contact *model.SupportContact) error
	Touch(ctx context.Context, contactID uint64, name string) error
}

type contactRepoImpl struct {
	db *gorm.DB
}

func NewContactRepo(db *gorm.DB) ContactRepo {
	return &contactRepoImpl{db: db}
}

func (s *contactRepoImpl) GetByPhone(ctx context.Context, phone string) (*model.SupportContact, error) {
	var contact model.SupportContact
	err := s.db.WithContext(ctx).Where("phone = ?", phone).First(&contact).Error
	return &contact, err
}

func (s *contactRepoImpl) Create(ctx context.Context, contact *model.SupportContact) error {
	return s.db.WithContext(ctx).Create(contact).Error
}

// Touch 每次与联系人交互都刷新 last_seen，顺带纠正称呼
func (s *contactRepoImpl) Touch(ctx context.Context, contactID uint64, name string) error {
	updates := map[string]interface{}{"last_seen_at": time.Now()}
	if name != "" {
		updates["name"] = name
	}
	return s.db.WithContext(ctx).Model(&model.SupportContact{}).
		Where("id = ?", contactID).
		Updates(updates).Error
}
