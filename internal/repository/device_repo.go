package repository

import (
	"context"
	"time"

	"rewardsystem/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Touch 记录设备与账号的关联，已存在则只刷新最后出现时间
func (r *DeviceRepository) Touch(ctx context.Context, deviceID string, userID int64, now time.Time) error {
	link := &model.DeviceAccount{
		DeviceID:    deviceID,
		UserID:      userID,
		FirstSeenAt: now,
		LastSeenAt:  now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_seen_at"}),
		}).
		Create(link).Error
}

// CountAccounts 同一设备上出现过的不同账号数
func (r *DeviceRepository) CountAccounts(ctx context.Context, deviceID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.DeviceAccount{}).
		Where("device_id = ?", deviceID).
		Distinct("user_id").
		Count(&count).Error
	return count, err
}
