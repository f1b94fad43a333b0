package model

import (
	"time"
)

// DeviceAccount 设备-账号关联表
// 用于统计同一设备上出现过多少个账号，核心计费逻辑不依赖它
type DeviceAccount struct {
	DeviceID    string    `gorm:"type:varchar(128);primaryKey" json:"device_id"`
	UserID      int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	FirstSeenAt time.Time `gorm:"not null" json:"first_seen_at"`
	LastSeenAt  time.Time `gorm:"not null" json:"last_seen_at"`
}

func (DeviceAccount) TableName() string {
	return "device_accounts"
}
