package service

import (
	"context"
	"testing"
	"time"

	"rewardsystem/internal/model"

	"github.com/stretchr/testify/require"
)

func TestGetProfileAutoRegisters(t *testing.T) {
	db := newServiceTestDB(t)
	cfg := newTestConfig()
	svc := NewAccountService(db, cfg)
	ctx := context.Background()

	profile, err := svc.GetProfile(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, int64(42), profile.UserID)
	require.Equal(t, "user_42", profile.Username)
	require.Zero(t, profile.Balance)
	require.Equal(t, cfg.Business.DailyLimit, profile.DailyLimit)

	// 再取不重复建档
	again, err := svc.GetProfile(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, profile.UserID, again.UserID)

	var count int64
	require.NoError(t, db.Model(&model.User{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestGetProfileExistingUser(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewAccountService(db, newTestConfig())

	seedUser(t, db, &model.User{ID: 1, Username: "abel", Balance: 1900, AdsWatched: 10, DailyAds: 10})

	profile, err := svc.GetProfile(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "abel", profile.Username)
	require.Equal(t, 1.9, profile.Balance)
	require.Equal(t, int64(10), profile.AdsWatched)
	require.Equal(t, 10, profile.DailyAds)
}

func TestGetProfileRunsDayRollover(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewAccountService(db, newTestConfig())

	yesterday := model.DayStamp(time.Now().AddDate(0, 0, -1))
	seedUser(t, db, &model.User{ID: 1, DailyAds: 12, AdsWatched: 40, DailyStamp: yesterday})

	profile, err := svc.GetProfile(context.Background(), 1)
	require.NoError(t, err)
	require.Zero(t, profile.DailyAds)
	require.Equal(t, int64(40), profile.AdsWatched)
}

func TestDeviceCheck(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewDeviceService(db)
	ctx := context.Background()

	result, err := svc.Check(ctx, "device-a", 1)
	require.NoError(t, err)
	require.False(t, result.MultipleAccounts)
	require.Equal(t, int64(1), result.AccountCount)

	// 同一设备同一账号重复上报不涨计数
	result, err = svc.Check(ctx, "device-a", 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), result.AccountCount)

	// 第二个账号出现则标记多账号
	result, err = svc.Check(ctx, "device-a", 2)
	require.NoError(t, err)
	require.True(t, result.MultipleAccounts)
	require.Equal(t, int64(2), result.AccountCount)

	// 不同设备互不影响
	result, err = svc.Check(ctx, "device-b", 1)
	require.NoError(t, err)
	require.False(t, result.MultipleAccounts)
}
