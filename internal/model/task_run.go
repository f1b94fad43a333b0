package model

import (
	"time"
)

// TaskRun 任务冷却表
// (user_id, task_id) 维度记录下次可开始时间，只在计费成功时更新
// 行不存在视为从未做过该任务（下次可开始时间为零值）
type TaskRun struct {
	UserID          int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	TaskID          int64     `gorm:"primaryKey;autoIncrement:false" json:"task_id"`
	NextAvailableAt time.Time `gorm:"not null" json:"next_available_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TaskRun) TableName() string {
	return "task_runs"
}
