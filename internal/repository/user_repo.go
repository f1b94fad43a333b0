package repository

import (
	"context"
	"errors"
	"time"

	"rewardsystem/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound     = errors.New("用户不存在")
	ErrBalanceNotEnough = errors.New("余额不足")
	ErrOptimisticLock   = errors.New("乐观锁冲突，请重试")
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, tx *gorm.DB, userID int64) (*model.User, error) {
	if tx == nil {
		tx = r.db
	}
	var user model.User
	err := tx.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetOrCreate(ctx context.Context, userID int64, username string) (*model.User, error) {
	user, err := r.GetByID(ctx, nil, userID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	newUser := &model.User{
		ID:         userID,
		Username:   username,
		DailyStamp: model.DayStamp(time.Now()),
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(newUser).Error
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, nil, userID)
}

// RefreshDaily 日切：日期戳不是今天则把当日计数清零
//
// 【关键点】必须和额度判断在同一事务里执行，
// 否则跨天瞬间可能用过期的当日计数多放行一次计费。
// 条件 UPDATE 本身幂等，并发重复执行无害
func (r *UserRepository) RefreshDaily(ctx context.Context, tx *gorm.DB, userID int64, today string) (*model.User, error) {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND daily_stamp <> ?", userID, today).
		Updates(map[string]interface{}{
			"daily_ads":   0,
			"daily_stamp": today,
		}).Error
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, tx, userID)
}

// LockRow 版本号自增抢占用户行的写锁
// 快照隔离下事务的普通读取可能漏看并发事务刚提交的行，
// 先在用户行上写一笔，后进事务在此排队，排到后的读取必然包含先提交者的插入
func (r *UserRepository) LockRow(ctx context.Context, tx *gorm.DB, userID int64) error {
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		UpdateColumn("version", gorm.Expr("version + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ApplyCredit 计费入账：余额、累计数、当日数一起加一
// WHERE 上带当日额度条件，超额时零行生效，由调用方回滚
func (r *UserRepository) ApplyCredit(ctx context.Context, tx *gorm.DB, userID int64, rewardMills int64, dailyLimit int) error {
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND daily_ads < ?", userID, dailyLimit).
		Updates(map[string]interface{}{
			"balance":     gorm.Expr("balance + ?", rewardMills),
			"ads_watched": gorm.Expr("ads_watched + 1"),
			"daily_ads":   gorm.Expr("daily_ads + 1"),
			"version":     gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	return nil
}

// Deduct 扣减余额，余额不足或版本不匹配时零行生效
func (r *UserRepository) Deduct(ctx context.Context, tx *gorm.DB, userID int64, amountMills int64, version int) error {
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND balance >= ? AND version = ?", userID, amountMills, version).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - ?", amountMills),
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		user, err := r.GetByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.Balance < amountMills {
			return ErrBalanceNotEnough
		}
		return ErrOptimisticLock
	}
	return nil
}
