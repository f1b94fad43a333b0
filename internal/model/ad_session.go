package model

import (
	"time"
)

const (
	SessionStatusCreated    = "created"     // 已创建，等待客户端播放广告
	SessionStatusClientDone = "client_done" // 客户端自报播放完成，等待广告商确认
	SessionStatusVerified   = "verified"    // 已确认并计费，终态
)

// ValidSessionTransitions 会话状态机
// 没有显式的过期状态，过期在读取/计费时按 expires_at 判断
var ValidSessionTransitions = map[string][]string{
	SessionStatusCreated:    {SessionStatusClientDone, SessionStatusVerified},
	SessionStatusClientDone: {SessionStatusVerified},
}

func CanSessionTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidSessionTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

const (
	TaskKindWeb   = "web"
	TaskKindVideo = "video"

	TaskTierMicro = "micro"
	TaskTierMacro = "macro"
)

// AdSession 广告会话表
// 一次观看尝试的完整生命周期记录，永不删除，兼做幂等与审计依据
//
// 【关键点】任务快照
// 创建会话时把任务的标题/类型/奖励/冷却冻结在行上，
// 计费永远用快照值，任务目录中途变价不影响进行中的会话
type AdSession struct {
	ID           string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Ymid         string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"ymid"` // 广告商回调的关联ID
	UserID       int64      `gorm:"index;not null" json:"user_id"`
	TaskID       int64      `gorm:"not null" json:"task_id"`
	TaskTitle    string     `gorm:"type:varchar(128);not null" json:"task_title"`
	TaskKind     string     `gorm:"type:varchar(16);not null" json:"task_kind"`
	RewardMills  int64      `gorm:"not null" json:"reward_mills"`
	CooldownSecs int        `gorm:"not null" json:"cooldown_secs"`
	Provider     string     `gorm:"type:varchar(32);not null" json:"provider"`
	Status       string     `gorm:"type:varchar(20);index;not null" json:"status"`
	Credited     bool       `gorm:"not null;default:false" json:"credited"` // 只会 false -> true，与 verified 状态同步
	RequestVar   string     `gorm:"type:varchar(64);not null" json:"request_var"`
	CreatedAt    time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	ExpiresAt    time.Time  `gorm:"not null" json:"expires_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	CreditedAt   *time.Time `json:"credited_at"`
}

func (AdSession) TableName() string {
	return "ad_sessions"
}

// Expired 过期判断，读取时惰性计算
func (s *AdSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
