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

// errDailyCapRace 额度余量在翻牌后被并发请求占掉，整个事务回滚
var errDailyCapRace = errors.New("当日额度竞争失败")

// CreditService 会话计费引擎
//
// 【关键点】整个系统唯一的计费入口
// 客户端轮询、模拟完成接口、广告商回调三路信号都汇到 AttemptCredit，
// 同一会话调用任意多次，最多计费一次
type CreditService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	sessionRepo     *repository.SessionRepository
	userRepo        *repository.UserRepository
	taskRunRepo     *repository.TaskRunRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewCreditService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *CreditService {
	return &CreditService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		sessionRepo:     repository.NewSessionRepository(db),
		userRepo:        repository.NewUserRepository(db),
		taskRunRepo:     repository.NewTaskRunRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

// AttemptCredit 尝试对会话计费，返回本次调用是否实际入账
//
// 算法（整体在一个事务里执行）：
//  1. 已计费 -> false，幂等空转
//  2. 已过期 -> false，不做任何修改
//  3. 日切（和额度判断同一事务，防止跨天用过期计数放行）
//  4. 当日额度已满 -> false
//  5. 翻计费牌（条件更新，并发下只有一个赢家）、
//     余额/累计/当日计数入账、冷却表 upsert、流水、outbox 消息
//  6. 一并提交
//
// 奖励和冷却一律用会话创建时冻结的快照值，任务目录中途变化不影响在途会话
func (s *CreditService) AttemptCredit(ctx context.Context, sessionID string) (bool, error) {
	// 快路径：已结算的会话不进锁不开事务
	session, err := s.sessionRepo.GetByID(ctx, nil, sessionID)
	if err != nil {
		return false, err
	}
	if session.Credited {
		return false, nil
	}

	// Redis 锁只为收敛同一会话多路信号的事务冲突，
	// 正确性由下面的条件更新保证，没配 Redis 时直接走事务
	if s.redisClient != nil {
		creditLock := lock.NewCreditLock(s.redisClient, sessionID)
		if err := creditLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return false, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer creditLock.Unlock(ctx)
	}

	creditedNow := false
	err = s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		session, err := s.sessionRepo.GetByID(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if session.Credited {
			return nil
		}
		if session.Expired(now) {
			return nil
		}

		user, err := s.userRepo.RefreshDaily(ctx, tx, session.UserID, model.DayStamp(now))
		if err != nil {
			return fmt.Errorf("日切失败: %w", err)
		}
		if user.DailyAds >= s.cfg.Business.DailyLimit {
			return nil
		}

		flipped, err := s.sessionRepo.MarkCredited(ctx, tx, sessionID, now)
		if err != nil {
			return fmt.Errorf("更新会话状态失败: %w", err)
		}
		if !flipped {
			// 并发赢家已经计费
			return nil
		}

		if err := s.userRepo.ApplyCredit(ctx, tx, session.UserID, session.RewardMills, s.cfg.Business.DailyLimit); err != nil {
			if errors.Is(err, repository.ErrOptimisticLock) {
				return errDailyCapRace
			}
			return fmt.Errorf("入账失败: %w", err)
		}

		nextAt := now.Add(time.Duration(session.CooldownSecs) * time.Second)
		if err := s.taskRunRepo.RecordSuccess(ctx, tx, session.UserID, session.TaskID, nextAt); err != nil {
			return fmt.Errorf("更新冷却失败: %w", err)
		}

		transaction := &model.AccountTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        session.UserID,
			RefNo:         session.ID,
			AmountMills:   session.RewardMills,
			Type:          model.TransactionTypeAdCredit,
			BalanceBefore: user.Balance,
			BalanceAfter:  user.Balance + session.RewardMills,
			Remark:        fmt.Sprintf("广告计费-%s", session.TaskTitle),
		}
		if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		msgPayload := map[string]interface{}{
			"session_id":  session.ID,
			"ymid":        session.Ymid,
			"user_id":     session.UserID,
			"task_id":     session.TaskID,
			"reward":      money.Float(session.RewardMills),
			"credited_at": now.Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		outboxMsg := &model.OutboxMessage{
			MessageKey: session.ID,
			Topic:      s.cfg.Kafka.Topic.AdCredited,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		creditedNow = true
		return nil
	})

	if errors.Is(err, errDailyCapRace) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if creditedNow {
		log.Printf("会话计费成功: sessionID=%s, userID=%d, reward=%d", sessionID, session.UserID, session.RewardMills)
	}
	return creditedNow, nil
}
