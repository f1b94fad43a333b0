package repository

import (
	"context"
	"testing"
	"time"

	"rewardsystem/internal/model"
	"rewardsystem/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newUserRepoForTest(t *testing.T) (*UserRepository, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t, &model.User{})
	return NewUserRepository(db), db
}

func TestGetOrCreate(t *testing.T) {
	repo, db := newUserRepoForTest(t)
	ctx := context.Background()

	user, err := repo.GetOrCreate(ctx, 7, "user_7")
	require.NoError(t, err)
	require.Equal(t, int64(7), user.ID)
	require.Equal(t, "user_7", user.Username)
	require.Equal(t, model.DayStamp(time.Now()), user.DailyStamp)

	// 幂等：已存在时返回原行，不覆盖
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", 7).Update("balance", 500).Error)
	user, err = repo.GetOrCreate(ctx, 7, "other_name")
	require.NoError(t, err)
	require.Equal(t, "user_7", user.Username)
	require.Equal(t, int64(500), user.Balance)
}

func TestRefreshDaily(t *testing.T) {
	repo, db := newUserRepoForTest(t)
	ctx := context.Background()
	today := model.DayStamp(time.Now())
	yesterday := model.DayStamp(time.Now().AddDate(0, 0, -1))

	require.NoError(t, db.Create(&model.User{
		ID: 1, Username: "u", DailyAds: 9, AdsWatched: 30, DailyStamp: yesterday,
	}).Error)

	user, err := repo.RefreshDaily(ctx, nil, 1, today)
	require.NoError(t, err)
	require.Equal(t, today, user.DailyStamp)
	require.Zero(t, user.DailyAds)
	require.Equal(t, int64(30), user.AdsWatched, "日切只清当日计数")

	// 当天重复执行无副作用
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", 1).Update("daily_ads", 3).Error)
	user, err = repo.RefreshDaily(ctx, nil, 1, today)
	require.NoError(t, err)
	require.Equal(t, 3, user.DailyAds)
}

func TestApplyCreditRespectsDailyCap(t *testing.T) {
	repo, db := newUserRepoForTest(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.User{
		ID: 1, Username: "u", DailyAds: 2, DailyStamp: model.DayStamp(time.Now()),
	}).Error)

	require.NoError(t, repo.ApplyCredit(ctx, db, 1, 100, 3))

	user, err := repo.GetByID(ctx, nil, 1)
	require.NoError(t, err)
	require.Equal(t, int64(100), user.Balance)
	require.Equal(t, 3, user.DailyAds)
	require.Equal(t, 1, user.Version)

	// 额度打满后零行生效
	err = repo.ApplyCredit(ctx, db, 1, 100, 3)
	require.ErrorIs(t, err, ErrOptimisticLock)
}

func TestDeduct(t *testing.T) {
	repo, db := newUserRepoForTest(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.User{
		ID: 1, Username: "u", Balance: 6000, DailyStamp: model.DayStamp(time.Now()),
	}).Error)

	require.NoError(t, repo.Deduct(ctx, db, 1, 5000, 0))

	user, err := repo.GetByID(ctx, nil, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1000), user.Balance)
	require.Equal(t, 1, user.Version)

	// 余额不足和版本过期要能区分
	require.ErrorIs(t, repo.Deduct(ctx, db, 1, 5000, user.Version), ErrBalanceNotEnough)
	require.ErrorIs(t, repo.Deduct(ctx, db, 1, 1000, user.Version-1), ErrOptimisticLock)
}

func TestLockRow(t *testing.T) {
	repo, db := newUserRepoForTest(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.User{
		ID: 1, Username: "u", DailyStamp: model.DayStamp(time.Now()),
	}).Error)

	require.NoError(t, repo.LockRow(ctx, db, 1))
	require.NoError(t, repo.LockRow(ctx, db, 1))

	user, err := repo.GetByID(ctx, nil, 1)
	require.NoError(t, err)
	require.Equal(t, 2, user.Version)

	require.ErrorIs(t, repo.LockRow(ctx, db, 404), ErrUserNotFound)
}

func TestGetByIDNotFound(t *testing.T) {
	repo, _ := newUserRepoForTest(t)

	_, err := repo.GetByID(context.Background(), nil, 404)
	require.ErrorIs(t, err, ErrUserNotFound)
}
