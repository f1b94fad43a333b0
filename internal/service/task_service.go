package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rewardsystem/internal/catalog"
	"rewardsystem/internal/config"
	"rewardsystem/internal/model"
	"rewardsystem/internal/repository"
	"rewardsystem/pkg/money"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrDailyLimitReached = errors.New("今日计费次数已达上限")

// CooldownError 冷却未到期的拒绝，携带剩余等待秒数
type CooldownError struct {
	RemainingSeconds int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("任务冷却中: %ds", e.RemainingSeconds)
}

type TaskService struct {
	db          *gorm.DB
	cfg         *config.Config
	resolver    *catalog.Resolver
	userRepo    *repository.UserRepository
	taskRunRepo *repository.TaskRunRepository
	sessionRepo *repository.SessionRepository
}

func NewTaskService(db *gorm.DB, cfg *config.Config) *TaskService {
	return &TaskService{
		db:          db,
		cfg:         cfg,
		resolver:    catalog.NewResolver(cfg.Business.MacroTaskCount),
		userRepo:    repository.NewUserRepository(db),
		taskRunRepo: repository.NewTaskRunRepository(db),
		sessionRepo: repository.NewSessionRepository(db),
	}
}

// TaskStatus 任务列表项：任务定义 + 该用户的冷却与活跃会话
type TaskStatus struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Reward           float64 `json:"reward"`
	Cooldown         int     `json:"cooldown"`
	Kind             string  `json:"kind"`
	Tier             string  `json:"tier"`
	RemainingSeconds int     `json:"remaining_seconds"`
	ActiveSessionID  string  `json:"active_session_id,omitempty"`
}

// ListTasks 用户当天可见的任务清单，带剩余冷却秒数和活跃会话
func (s *TaskService) ListTasks(ctx context.Context, userID int64) ([]TaskStatus, error) {
	now := time.Now()
	if _, err := s.userRepo.RefreshDaily(ctx, nil, userID, model.DayStamp(now)); err != nil {
		return nil, err
	}

	nextMap, err := s.taskRunRepo.MapByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	activeMap, err := s.sessionRepo.ActiveMapByUser(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	tasks := s.resolver.Resolve(userID, now)
	out := make([]TaskStatus, 0, len(tasks))
	for _, task := range tasks {
		remaining := 0
		if nextAt, ok := nextMap[task.ID]; ok && nextAt.After(now) {
			remaining = int(nextAt.Sub(now).Seconds())
		}
		out = append(out, TaskStatus{
			ID:               task.ID,
			Title:            task.Title,
			Reward:           money.Float(task.RewardMills),
			Cooldown:         task.CooldownSecs,
			Kind:             task.Kind,
			Tier:             task.Tier,
			RemainingSeconds: remaining,
			ActiveSessionID:  activeMap[task.ID],
		})
	}
	return out, nil
}

// StartTask 开始一次任务，通过校验后创建（或复用）广告会话
//
// 拒绝顺序：任务不存在 -> 当日额度 -> 冷却。
// 额度只在这里做准入即可，真正的硬闸在计费时再查一次
func (s *TaskService) StartTask(ctx context.Context, userID, taskID int64) (*model.AdSession, error) {
	now := time.Now()
	task, err := s.resolver.ByID(userID, now, taskID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.RefreshDaily(ctx, nil, userID, model.DayStamp(now))
	if err != nil {
		return nil, err
	}
	if user.DailyAds >= s.cfg.Business.DailyLimit {
		return nil, ErrDailyLimitReached
	}

	nextAt, err := s.taskRunRepo.GetNextAvailable(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if nextAt.After(now) {
		return nil, &CooldownError{RemainingSeconds: int(nextAt.Sub(now).Seconds())}
	}

	// 复用检查和创建放在同一事务里，同一 (用户, 任务) 的未过期会话不重复开。
	// 进事务先锁用户行：不锁的话快照隔离下两个并发开始
	// 会各自读到"无活跃会话"然后都插入，锁行让复用检查串行生效
	var session *model.AdSession
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.LockRow(ctx, tx, userID); err != nil {
			return err
		}

		existing, err := s.sessionRepo.GetActiveByUserAndTask(ctx, tx, userID, taskID, now)
		if err != nil {
			return err
		}
		if existing != nil {
			session = existing
			return nil
		}

		session = &model.AdSession{
			ID:           uuid.NewString(),
			Ymid:         newYmid(userID, taskID),
			UserID:       userID,
			TaskID:       task.ID,
			TaskTitle:    task.Title,
			TaskKind:     task.Kind,
			RewardMills:  task.RewardMills,
			CooldownSecs: task.CooldownSecs,
			Provider:     "monetag",
			Status:       model.SessionStatusCreated,
			RequestVar:   fmt.Sprintf("task_%d", task.ID),
			CreatedAt:    now,
			ExpiresAt:    now.Add(time.Duration(s.cfg.Business.SessionTTLMinutes) * time.Minute),
		}
		return s.sessionRepo.Create(ctx, tx, session)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// newYmid 广告商回调用的关联ID，带用户和任务前缀便于排查
func newYmid(userID, taskID int64) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("u%d_t%d_%s", userID, taskID, suffix)
}
