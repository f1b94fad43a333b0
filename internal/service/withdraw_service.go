package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"rewardsystem/internal/config"
	"rewardsystem/internal/infrastructure/lock"
	"rewardsystem/internal/model"
	"rewardsystem/internal/repository"
	"rewardsystem/pkg/idgen"
	"rewardsystem/pkg/money"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

var ErrBelowMinWithdraw = errors.New("低于最低提现金额")

type WithdrawService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	userRepo        *repository.UserRepository
	withdrawalRepo  *repository.WithdrawalRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewWithdrawService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *WithdrawService {
	return &WithdrawService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		userRepo:        repository.NewUserRepository(db),
		withdrawalRepo:  repository.NewWithdrawalRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type WithdrawRequest struct {
	UserID      int64
	Method      string
	Account     string
	AmountMills int64
}

type WithdrawResponse struct {
	WithdrawNo   string  `json:"withdraw_no"`
	Status       string  `json:"status"`
	Amount       float64 `json:"amount"`
	BalanceAfter float64 `json:"balance"`
}

// Withdraw 提交提现申请：校验下限与余额，扣减余额并落一条待处理记录
// 实际打款在系统之外，这里只做申请登记
func (s *WithdrawService) Withdraw(ctx context.Context, req *WithdrawRequest) (*WithdrawResponse, error) {
	if req.AmountMills < s.cfg.Business.MinWithdrawMills {
		return nil, ErrBelowMinWithdraw
	}

	withdrawNo := idgen.GenerateWithdrawNo()

	if s.redisClient != nil {
		withdrawLock := lock.NewWithdrawLock(s.redisClient, req.UserID, withdrawNo)
		if err := withdrawLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer withdrawLock.Unlock(ctx)
	}

	var balanceAfter int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		user, err := s.userRepo.RefreshDaily(ctx, tx, req.UserID, model.DayStamp(now))
		if err != nil {
			return err
		}
		if user.Balance < req.AmountMills {
			return repository.ErrBalanceNotEnough
		}

		if err := s.userRepo.Deduct(ctx, tx, req.UserID, req.AmountMills, user.Version); err != nil {
			return err
		}
		balanceAfter = user.Balance - req.AmountMills

		withdrawal := &model.Withdrawal{
			WithdrawNo:  withdrawNo,
			UserID:      req.UserID,
			Method:      req.Method,
			Account:     req.Account,
			AmountMills: req.AmountMills,
			Status:      model.WithdrawalStatusPending,
		}
		if err := s.withdrawalRepo.Create(ctx, tx, withdrawal); err != nil {
			return fmt.Errorf("创建提现申请失败: %w", err)
		}

		transaction := &model.AccountTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        req.UserID,
			RefNo:         withdrawNo,
			AmountMills:   -req.AmountMills,
			Type:          model.TransactionTypeWithdraw,
			BalanceBefore: user.Balance,
			BalanceAfter:  balanceAfter,
			Remark:        fmt.Sprintf("提现-%s-%s", req.Method, req.Account),
		}
		if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		msgPayload := map[string]interface{}{
			"withdraw_no": withdrawNo,
			"user_id":     req.UserID,
			"method":      req.Method,
			"amount":      money.Float(req.AmountMills),
			"status":      model.WithdrawalStatusPending,
			"created_at":  now.Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		outboxMsg := &model.OutboxMessage{
			MessageKey: withdrawNo,
			Topic:      s.cfg.Kafka.Topic.WithdrawRequest,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("提现申请已登记: withdrawNo=%s, userID=%d, amount=%d", withdrawNo, req.UserID, req.AmountMills)

	return &WithdrawResponse{
		WithdrawNo:   withdrawNo,
		Status:       model.WithdrawalStatusPending,
		Amount:       money.Float(req.AmountMills),
		BalanceAfter: money.Float(balanceAfter),
	}, nil
}

// WithdrawalItem 提现记录列表项
type WithdrawalItem struct {
	WithdrawNo string  `json:"withdraw_no"`
	Method     string  `json:"method"`
	Account    string  `json:"account"`
	Amount     float64 `json:"amount"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
}

// History 用户提现记录，倒序分页
func (s *WithdrawService) History(ctx context.Context, userID int64, page, pageSize int) ([]WithdrawalItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	records, total, err := s.withdrawalRepo.ListByUserID(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	out := make([]WithdrawalItem, 0, len(records))
	for _, r := range records {
		out = append(out, WithdrawalItem{
			WithdrawNo: r.WithdrawNo,
			Method:     r.Method,
			Account:    r.Account,
			Amount:     money.Float(r.AmountMills),
			Status:     r.Status,
			CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		})
	}
	return out, total, nil
}
