package repository

import (
	"context"

	"rewardsystem/internal/model"

	"gorm.io/gorm"
)

type PostbackRepository struct {
	db *gorm.DB
}

func NewPostbackRepository(db *gorm.DB) *PostbackRepository {
	return &PostbackRepository{db: db}
}

// Create 落一条回调审计记录，独立于计费事务，先落地后处理
func (r *PostbackRepository) Create(ctx context.Context, record *model.AdPostback) error {
	return r.db.WithContext(ctx).Create(record).Error
}
