package repository

import (
	"Helpdesk/internal/model"
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PresenceRepo interface {
	Upsert(ctx context.Context, operatorID, activeSessionID uint64) error
	TouchSeen(ctx context.Context, operatorID uint64) error
	Get(ctx context.Context, operatorID uint64) (*model.OperatorPresence, error)
	OnlineSince(ctx context.Context, cutoff time.Time) ([]*model.OperatorPresence, error)
}

type presenceRepoImpl struct {
	db *gorm.DB
}

func NewPresenceRepo(db *gorm.DB) PresenceRepo {
	return &presenceRepoImpl{db: db}
}

// Upsert 单行写入：按 operator_id 冲突时刷新 last_seen 与正在查看的会话
func (s *presenceRepoImpl) Upsert(ctx context.Context, operatorID, activeSessionID uint64) error {
	presence := &model.OperatorPresence{
		OperatorID:      operatorID,
		LastSeenAt:      time.Now(),
		ActiveSessionID: activeSessionID,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "operator_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen_at", "active_session_id", "updated_at"}),
	}).Create(presence).Error
}

// TouchSeen 只刷新 last_seen，不动正在查看的会话
func (s *presenceRepoImpl) TouchSeen(ctx context.Context, operatorID uint64) error {
	presence := &model.OperatorPresence{
		OperatorID: operatorID,
		LastSeenAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "operator_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen_at", "updated_at"}),
	}).Create(presence).Error
}

func (s *presenceRepoImpl) Get(ctx context.Context, operatorID uint64) (*model.OperatorPresence, error) {
	var presence model.OperatorPresence
	err := s.db.WithContext(ctx).Where("operator_id = ?", operatorID).First(&presence).Error
	return &presence, err
}

// OnlineSince 在线是推导值：last_seen 落在滚动窗口内即在线
func (s *presenceRepoImpl) OnlineSince(ctx context.Context, cutoff time.Time) ([]*model.OperatorPresence, error) {
	var presences []*model.OperatorPresence
	err := s.db.WithContext(ctx).
		Where("last_seen_at >= ?", cutoff).
		Find(&presences).Error
	return presences, err
}
