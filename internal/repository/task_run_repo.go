package repository

import (
	"context"
	"errors"
	"time"

	"rewardsystem/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TaskRunRepository struct {
	db *gorm.DB
}

func NewTaskRunRepository(db *gorm.DB) *TaskRunRepository {
	return &TaskRunRepository{db: db}
}

// GetNextAvailable 下次可开始时间，行不存在返回零值时间（从未做过）
func (r *TaskRunRepository) GetNextAvailable(ctx context.Context, userID, taskID int64) (time.Time, error) {
	var run model.TaskRun
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND task_id = ?", userID, taskID).
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return run.NextAvailableAt, nil
}

// MapByUser 一次取出用户全部冷却记录，任务列表页用
func (r *TaskRunRepository) MapByUser(ctx context.Context, userID int64) (map[int64]time.Time, error) {
	var runs []model.TaskRun
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&runs).Error
	if err != nil {
		return nil, err
	}

	out := make(map[int64]time.Time, len(runs))
	for _, run := range runs {
		out[run.TaskID] = run.NextAvailableAt
	}
	return out, nil
}

// RecordSuccess 计费成功后写入下次可开始时间
// upsert 语义：动态生成的大额任务首次计费时行还不存在
func (r *TaskRunRepository) RecordSuccess(ctx context.Context, tx *gorm.DB, userID, taskID int64, nextAvailableAt time.Time) error {
	if tx == nil {
		tx = r.db
	}
	run := &model.TaskRun{
		UserID:          userID,
		TaskID:          taskID,
		NextAvailableAt: nextAvailableAt,
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "task_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"next_available_at"}),
		}).
		Create(run).Error
}
