package repository

import (
	"Helpdesk/internal/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PushSubscriptionRepo interface {
	Upsert(ctx context.Context, sub *model.PushSubscription) (created bool, err error)
	Deactivate(ctx context.Context, operatorID uint64, endpoint string) (int64, error)
	DeactivateByID(ctx context.Context, subID uint64) error
	ActiveForOperators(ctx context.Context, operatorIDs []uint64) ([]*model.PushSubscription, error)
	CountActive(ctx context.Context) (int64, error)
	CountActiveByOperator(ctx context.Context, operatorID uint64) (int64, error)
	CountAll(ctx context.Context) (int64, error)
}

type pushSubscriptionRepoImpl struct {
	db *gorm.DB
}

func NewPushSubscriptionRepo(db *gorm.DB) PushSubscriptionRepo {
	return &pushSubscriptionRepoImpl{db: db}
}

// Upsert (operator, endpoint) 冲突即同端点重订阅：更新密钥并复活
func (s *pushSubscriptionRepoImpl) Upsert(ctx context.Context, sub *model.PushSubscription) (bool, error) {
	var existing model.PushSubscription
	err := s.db.WithContext(ctx).
		Where("operator_id = ? AND endpoint = ?", sub.OperatorID, sub.Endpoint).
		First(&existing).Error
	created := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !created {
		return false, err
	}

	sub.IsActive = true
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "operator_id"}, {Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "is_active", "updated_at"}),
	}).Create(sub).Error
	return created, err
}

// Deactivate 注销订阅；endpoint 为空时注销该客服的全部订阅
func (s *pushSubscriptionRepoImpl) Deactivate(ctx context.Context, operatorID uint64, endpoint string) (int64, error) {
	q := s.db.WithContext(ctx).Model(&model.PushSubscription{}).
		Where("operator_id = ? AND is_active = ?", operatorID, true)
	if endpoint != "" {
		q = q.Where("endpoint = ?", endpoint)
	}
	res := q.Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

// DeactivateByID 传输层报告端点永久失效时调用，只置位不删行
func (s *pushSubscriptionRepoImpl) DeactivateByID(ctx context.Context, subID uint64) error {
	return s.db.WithContext(ctx).Model(&model.PushSubscription{}).
		Where("id = ?", subID).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()}).Error
}

func (s *pushSubscriptionRepoImpl) ActiveForOperators(ctx context.Context, operatorIDs []uint64) ([]*model.PushSubscription, error) {
	if len(operatorIDs) == 0 {
		return nil, nil
	}
	var subs []*model.PushSubscription
	err := s.db.WithContext(ctx).
		Where("operator_id IN ? AND is_active = ?", operatorIDs, true).
		Find(&subs).Error
	return subs, err
}

func (s *pushSubscriptionRepoImpl) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.PushSubscription{}).
		Where("is_active = ?", true).
		Count(&count).Error
	return count, err
}

func (s *pushSubscriptionRepoImpl) CountActiveByOperator(ctx context.Context, operatorID uint64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.PushSubscription{}).
		Where("operator_id = ? AND is_active = ?", operatorID, true).
		Count(&count).Error
	return count, err
}

func (s *pushSubscriptionRepoImpl) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.PushSubscription{}).Count(&count).Error
	return count, err
}
