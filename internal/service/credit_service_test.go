package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"rewardsystem/internal/config"
	"rewardsystem/internal/model"
	"rewardsystem/internal/repository"
	"rewardsystem/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				AdCredited:      "reward.ad.credited",
				WithdrawRequest: "reward.withdraw.request",
			},
		},
		Business: config.BusinessConfig{
			DailyLimit:        15,
			MinWithdrawMills:  5000,
			SessionTTLMinutes: 20,
			MacroTaskCount:    2,
			MaxRetryCount:     5,
			AllowSimulate:     true,
		},
	}
}

func newServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.NewTestDB(t,
		&model.User{},
		&model.AdSession{},
		&model.TaskRun{},
		&model.AdPostback{},
		&model.Withdrawal{},
		&model.DeviceAccount{},
		&model.AccountTransaction{},
		&model.OutboxMessage{},
	)
}

func seedUser(t *testing.T, db *gorm.DB, user *model.User) *model.User {
	t.Helper()
	if user.Username == "" {
		user.Username = fmt.Sprintf("user_%d", user.ID)
	}
	if user.DailyStamp == "" {
		user.DailyStamp = model.DayStamp(time.Now())
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedSession(t *testing.T, db *gorm.DB, session *model.AdSession) *model.AdSession {
	t.Helper()
	now := time.Now()
	if session.ID == "" {
		session.ID = fmt.Sprintf("sess-%d-%d", session.UserID, session.TaskID)
	}
	if session.Ymid == "" {
		session.Ymid = fmt.Sprintf("u%d_t%d_%s", session.UserID, session.TaskID, session.ID)
	}
	if session.Status == "" {
		session.Status = model.SessionStatusCreated
	}
	if session.TaskTitle == "" {
		session.TaskTitle = "Web Visit 15s"
	}
	if session.TaskKind == "" {
		session.TaskKind = model.TaskKindWeb
	}
	if session.RewardMills == 0 {
		session.RewardMills = 100
	}
	if session.CooldownSecs == 0 {
		session.CooldownSecs = 15
	}
	if session.Provider == "" {
		session.Provider = "monetag"
	}
	if session.RequestVar == "" {
		session.RequestVar = fmt.Sprintf("task_%d", session.TaskID)
	}
	if session.ExpiresAt.IsZero() {
		session.ExpiresAt = now.Add(20 * time.Minute)
	}
	require.NoError(t, db.Create(session).Error)
	return session
}

func TestAttemptCreditHappyPath(t *testing.T) {
	db := newServiceTestDB(t)
	cfg := newTestConfig()
	svc := NewCreditService(db, nil, cfg)
	ctx := context.Background()

	seedUser(t, db, &model.User{ID: 1, Balance: 0})
	session := seedSession(t, db, &model.AdSession{UserID: 1, TaskID: 1, RewardMills: 100, CooldownSecs: 15})

	before := time.Now()
	creditedNow, err := svc.AttemptCredit(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, creditedNow)

	var user model.User
	require.NoError(t, db.First(&user, 1).Error)
	require.Equal(t, int64(100), user.Balance)
	require.Equal(t, int64(1), user.AdsWatched)
	require.Equal(t, 1, user.DailyAds)

	var got model.AdSession
	require.NoError(t, db.First(&got, "id = ?", session.ID).Error)
	require.True(t, got.Credited)
	require.Equal(t, model.SessionStatusVerified, got.Status)
	require.NotNil(t, got.CreditedAt)
	require.NotNil(t, got.CompletedAt)

	// 冷却落表：下次可开始时间 = 计费时刻 + 快照冷却秒数
	var run model.TaskRun
	require.NoError(t, db.First(&run, "user_id = ? AND task_id = ?", 1, 1).Error)
	require.False(t, run.NextAvailableAt.Before(before.Add(15*time.Second)))
	require.False(t, run.NextAvailableAt.After(time.Now().Add(15*time.Second)))

	// 流水与 outbox 消息各一条，同事务提交
	var txns []model.AccountTransaction
	require.NoError(t, db.Find(&txns).Error)
	require.Len(t, txns, 1)
	require.Equal(t, model.TransactionTypeAdCredit, txns[0].Type)
	require.Equal(t, int64(100), txns[0].AmountMills)
	require.Equal(t, int64(0), txns[0].BalanceBefore)
	require.Equal(t, int64(100), txns[0].BalanceAfter)
	require.Equal(t, session.ID, txns[0].RefNo)

	var msgs []model.OutboxMessage
	require.NoError(t, db.Find(&msgs).Error)
	require.Len(t, msgs, 1)
	require.Equal(t, cfg.Kafka.Topic.AdCredited, msgs[0].Topic)
	require.Equal(t, model.OutboxStatusPending, msgs[0].Status)
}

func TestAttemptCreditReplayIsNoop(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewCreditService(db, nil, newTestConfig())
	ctx := context.Background()

	seedUser(t, db, &model.User{ID: 1})
	session := seedSession(t, db, &model.AdSession{UserID: 1, TaskID: 2, RewardMills: 150})

	creditedNow, err := svc.AttemptCredit(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, creditedNow)

	// 同一会话再打多少次都只空转
	for i := 0; i < 5; i++ {
		creditedNow, err = svc.AttemptCredit(ctx, session.ID)
		require.NoError(t, err)
		require.False(t, creditedNow)
	}

	var user model.User
	require.NoError(t, db.First(&user, 1).Error)
	require.Equal(t, int64(150), user.Balance)
	require.Equal(t, int64(1), user.AdsWatched)

	var txnCount int64
	require.NoError(t, db.Model(&model.AccountTransaction{}).Count(&txnCount).Error)
	require.Equal(t, int64(1), txnCount)
}

func TestAttemptCreditConcurrentReplay(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewCreditService(db, nil, newTestConfig())

	seedUser(t, db, &model.User{ID: 1})
	session := seedSession(t, db, &model.AdSession{UserID: 1, TaskID: 1})

	type result struct {
		creditedNow bool
		err         error
	}
	const workers = 8
	results := make(chan result, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			creditedNow, err := svc.AttemptCredit(context.Background(), session.ID)
			results <- result{creditedNow: creditedNow, err: err}
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for r := range results {
		require.NoError(t, r.err)
		if r.creditedNow {
			winners++
		}
	}
	require.Equal(t, 1, winners, "并发重放只能有一个赢家")

	var user model.User
	require.NoError(t, db.First(&user, 1).Error)
	require.Equal(t, int64(100), user.Balance)
}

func TestAttemptCreditExpiredSession(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewCreditService(db, nil, newTestConfig())
	ctx := context.Background()

	seedUser(t, db, &model.User{ID: 1, Balance: 500})
	session := seedSession(t, db, &model.AdSession{
		UserID:    1,
		TaskID:    1,
		ExpiresAt: time.Now().Add(-1 * time.Minute),
	})

	creditedNow, err := svc.AttemptCredit(ctx, session.ID)
	require.NoError(t, err)
	require.False(t, creditedNow)

	var got model.AdSession
	require.NoError(t, db.First(&got, "id = ?", session.ID).Error)
	require.False(t, got.Credited)
	require.Equal(t, model.SessionStatusCreated, got.Status)

	var user model.User
	require.NoError(t, db.First(&user, 1).Error)
	require.Equal(t, int64(500), user.Balance)
}

func TestAttemptCreditMissingSession(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewCreditService(db, nil, newTestConfig())

	_, err := svc.AttemptCredit(context.Background(), "no-such-session")
	require.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestAttemptCreditDailyCap(t *testing.T) {
	db := newServiceTestDB(t)
	cfg := newTestConfig()
	cfg.Business.DailyLimit = 3
	svc := NewCreditService(db, nil, cfg)
	ctx := context.Background()

	seedUser(t, db, &model.User{ID: 1, DailyAds: 3, AdsWatched: 3})
	session := seedSession(t, db, &model.AdSession{UserID: 1, TaskID: 1})

	creditedNow, err := svc.AttemptCredit(ctx, session.ID)
	require.NoError(t, err)
	require.False(t, creditedNow)

	// 额度拒绝不消耗会话，之后还能计费
	var got model.AdSession
	require.NoError(t, db.First(&got, "id = ?", session.ID).Error)
	require.False(t, got.Credited)
}

func TestAttemptCreditDayRolloverResetsCap(t *testing.T) {
	db := newServiceTestDB(t)
	cfg := newTestConfig()
	cfg.Business.DailyLimit = 3
	svc := NewCreditService(db, nil, cfg)
	ctx := context.Background()

	// 昨天已打满额度，日切后当日计数清零、累计保留
	yesterday := model.DayStamp(time.Now().AddDate(0, 0, -1))
	seedUser(t, db, &model.User{ID: 1, DailyAds: 3, AdsWatched: 10, DailyStamp: yesterday})
	session := seedSession(t, db, &model.AdSession{UserID: 1, TaskID: 1, RewardMills: 100})

	creditedNow, err := svc.AttemptCredit(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, creditedNow)

	var user model.User
	require.NoError(t, db.First(&user, 1).Error)
	require.Equal(t, model.DayStamp(time.Now()), user.DailyStamp)
	require.Equal(t, 1, user.DailyAds)
	require.Equal(t, int64(11), user.AdsWatched)
	require.Equal(t, int64(100), user.Balance)
}

func TestAttemptCreditUsesFrozenSnapshot(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewCreditService(db, nil, newTestConfig())
	ctx := context.Background()

	seedUser(t, db, &model.User{ID: 1})
	// 会话上冻结的奖励和任何目录定义都不同，计费必须以快照为准
	session := seedSession(t, db, &model.AdSession{
		UserID:       1,
		TaskID:       999,
		RewardMills:  777,
		CooldownSecs: 90,
	})

	creditedNow, err := svc.AttemptCredit(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, creditedNow)

	var user model.User
	require.NoError(t, db.First(&user, 1).Error)
	require.Equal(t, int64(777), user.Balance)

	var run model.TaskRun
	require.NoError(t, db.First(&run, "user_id = ? AND task_id = ?", 1, 999).Error)
	require.True(t, run.NextAvailableAt.After(time.Now().Add(80*time.Second)))
}

func TestAttemptCreditClientDoneSessionKeepsCompletedAt(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewCreditService(db, nil, newTestConfig())
	ctx := context.Background()

	seedUser(t, db, &model.User{ID: 1})
	completed := time.Now().Add(-30 * time.Second)
	session := seedSession(t, db, &model.AdSession{
		UserID:      1,
		TaskID:      1,
		Status:      model.SessionStatusClientDone,
		CompletedAt: &completed,
	})

	creditedNow, err := svc.AttemptCredit(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, creditedNow)

	var got model.AdSession
	require.NoError(t, db.First(&got, "id = ?", session.ID).Error)
	require.Equal(t, model.SessionStatusVerified, got.Status)
	require.NotNil(t, got.CompletedAt)
	// 客户端已自报完成的时间不被计费覆盖
	require.WithinDuration(t, completed, *got.CompletedAt, time.Second)
}
