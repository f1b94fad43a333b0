package repository

import (
	"context"
	"errors"
	"time"

	"rewardsystem/internal/model"

	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("广告会话不存在")

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, tx *gorm.DB, session *model.AdSession) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(session).Error
}

func (r *SessionRepository) GetByID(ctx context.Context, tx *gorm.DB, sessionID string) (*model.AdSession, error) {
	if tx == nil {
		tx = r.db
	}
	var session model.AdSession
	err := tx.WithContext(ctx).Where("id = ?", sessionID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) GetByIDAndUser(ctx context.Context, sessionID string, userID int64) (*model.AdSession, error) {
	var session model.AdSession
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", sessionID, userID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) GetByYmid(ctx context.Context, ymid string) (*model.AdSession, error) {
	var session model.AdSession
	err := r.db.WithContext(ctx).Where("ymid = ?", ymid).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

// GetActiveByUserAndTask 查 (用户, 任务) 最新的未过期未终态会话，开始任务时复用
func (r *SessionRepository) GetActiveByUserAndTask(ctx context.Context, tx *gorm.DB, userID, taskID int64, now time.Time) (*model.AdSession, error) {
	if tx == nil {
		tx = r.db
	}
	var session model.AdSession
	err := tx.WithContext(ctx).
		Where("user_id = ? AND task_id = ? AND status IN ? AND expires_at > ?",
			userID, taskID,
			[]string{model.SessionStatusCreated, model.SessionStatusClientDone},
			now).
		Order("created_at DESC").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// ActiveMapByUser 用户全部活跃会话，按任务ID索引，任务列表页用
func (r *SessionRepository) ActiveMapByUser(ctx context.Context, userID int64, now time.Time) (map[int64]string, error) {
	var sessions []model.AdSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ? AND expires_at > ?",
			userID,
			[]string{model.SessionStatusCreated, model.SessionStatusClientDone},
			now).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	out := make(map[int64]string, len(sessions))
	for _, s := range sessions {
		out[s.TaskID] = s.ID
	}
	return out, nil
}

// MarkClientDone 客户端自报完成：仅 created 状态生效，其余状态零行生效（无声不回退）
func (r *SessionRepository) MarkClientDone(ctx context.Context, sessionID string, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.AdSession{}).
		Where("id = ? AND status = ?", sessionID, model.SessionStatusCreated).
		Updates(map[string]interface{}{
			"status":       model.SessionStatusClientDone,
			"completed_at": now,
		}).Error
}

// MarkCredited 计费翻牌：credited 从 false 置为 true 并进入终态
//
// 【关键点】WHERE credited = false 加 RowsAffected 检查是整个幂等保证的闸口：
// 两个并发计费尝试只有一个能翻到这一行，输家零行生效后整体回滚
func (r *SessionRepository) MarkCredited(ctx context.Context, tx *gorm.DB, sessionID string, now time.Time) (bool, error) {
	result := tx.WithContext(ctx).
		Model(&model.AdSession{}).
		Where("id = ? AND credited = ?", sessionID, false).
		Updates(map[string]interface{}{
			"credited":     true,
			"status":       model.SessionStatusVerified,
			"credited_at":  now,
			"completed_at": gorm.Expr("COALESCE(completed_at, ?)", now),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
