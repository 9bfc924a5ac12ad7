package repository

import (
	"Helpdesk/internal/model"
	"context"

	"gorm.io/gorm"
)

type RatingRepo interface {
	Create(ctx context.Context, rating *model.Rating) error
	GetByConversation(ctx context.Context, convID uint64) (*model.Rating, error)
}

type ratingRepoImpl struct {
	db *gorm.DB
}

func NewRatingRepo(db *gorm.DB) RatingRepo {
	return &ratingRepoImpl{db: db}
}

func (s *ratingRepoImpl) Create(ctx context.Context, rating *model.Rating) error {
	return s.db.WithContext(ctx).Create(rating).Error
}

func (s *ratingRepoImpl) GetByConversation(ctx context.Context, convID uint64) (*model.Rating, error) {
	var rating model.Rating
	err := s.db.WithContext(ctx).Where("conversation_id = ?", convID).First(&rating).Error
	return &rating, err
}
