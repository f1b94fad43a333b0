package service

import (
	"context"
	"time"

	"rewardsystem/internal/repository"

	"gorm.io/gorm"
)

// DeviceService 设备-账号关联统计
// 只做计数旁路，不影响计费
type DeviceService struct {
	deviceRepo *repository.DeviceRepository
}

func NewDeviceService(db *gorm.DB) *DeviceService {
	return &DeviceService{
		deviceRepo: repository.NewDeviceRepository(db),
	}
}

type AccountCheckResult struct {
	MultipleAccounts bool  `json:"multiple_accounts"`
	AccountCount     int64 `json:"account_count"`
}

// Check 登记设备与账号的关联并返回该设备上的账号数
func (s *DeviceService) Check(ctx context.Context, deviceID string, userID int64) (*AccountCheckResult, error) {
	if err := s.deviceRepo.Touch(ctx, deviceID, userID, time.Now()); err != nil {
		return nil, err
	}

	count, err := s.deviceRepo.CountAccounts(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	return &AccountCheckResult{
		MultipleAccounts: count > 1,
		AccountCount:     count,
	}, nil
}
