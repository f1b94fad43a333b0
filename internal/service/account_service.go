package service

import (
	"context"
	"fmt"
	"time"

	"rewardsystem/internal/config"
	"rewardsystem/internal/model"
	"rewardsystem/internal/repository"
	"rewardsystem/pkg/money"

	"gorm.io/gorm"
)

type AccountService struct {
	db              *gorm.DB
	cfg             *config.Config
	userRepo        *repository.UserRepository
	transactionRepo *repository.TransactionRepository
}

func NewAccountService(db *gorm.DB, cfg *config.Config) *AccountService {
	return &AccountService{
		db:              db,
		cfg:             cfg,
		userRepo:        repository.NewUserRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

type Profile struct {
	UserID     int64   `json:"user_id"`
	Username   string  `json:"username"`
	Balance    float64 `json:"balance"`
	AdsWatched int64   `json:"ads_watched"`
	DailyAds   int     `json:"daily_ads"`
	DailyLimit int     `json:"daily_limit"`
}

// GetProfile 用户概要，不存在则建档，读前先做日切
func (s *AccountService) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	if _, err := s.userRepo.GetOrCreate(ctx, userID, fmt.Sprintf("user_%d", userID)); err != nil {
		return nil, err
	}

	user, err := s.userRepo.RefreshDaily(ctx, nil, userID, model.DayStamp(time.Now()))
	if err != nil {
		return nil, err
	}

	return &Profile{
		UserID:     user.ID,
		Username:   user.Username,
		Balance:    money.Float(user.Balance),
		AdsWatched: user.AdsWatched,
		DailyAds:   user.DailyAds,
		DailyLimit: s.cfg.Business.DailyLimit,
	}, nil
}

// TransactionItem 流水列表项
type TransactionItem struct {
	TransactionNo string  `json:"transaction_no"`
	RefNo         string  `json:"ref_no"`
	Amount        float64 `json:"amount"`
	Type          string  `json:"type"`
	BalanceAfter  float64 `json:"balance_after"`
	Remark        string  `json:"remark"`
	CreatedAt     string  `json:"created_at"`
}

// ListTransactions 用户余额流水，倒序分页
func (s *AccountService) ListTransactions(ctx context.Context, userID int64, page, pageSize int) ([]TransactionItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	records, total, err := s.transactionRepo.ListByUserID(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	out := make([]TransactionItem, 0, len(records))
	for _, r := range records {
		out = append(out, TransactionItem{
			TransactionNo: r.TransactionNo,
			RefNo:         r.RefNo,
			Amount:        money.Float(r.AmountMills),
			Type:          r.Type,
			BalanceAfter:  money.Float(r.BalanceAfter),
			Remark:        r.Remark,
			CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		})
	}
	return out, total, nil
}
