package model

import (
	"time"
)

// User 用户账户表
// 余额与计数只允许由计费引擎修改，每日计数由日切逻辑在同一事务内重置
type User struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	Username   string    `gorm:"type:varchar(64);not null" json:"username"`
	Balance    int64     `gorm:"not null;default:0" json:"balance"`     // 余额（毫，1元=1000毫），恒 >= 0
	AdsWatched int64     `gorm:"not null;default:0" json:"ads_watched"` // 累计计费广告数
	DailyAds   int       `gorm:"not null;default:0" json:"daily_ads"`   // 当日计费广告数
	DailyStamp string    `gorm:"type:varchar(10);not null" json:"daily_stamp"` // 上次日切的 UTC 日期，格式 2006-01-02
	Version    int       `gorm:"not null;default:0" json:"version"`            // 乐观锁版本号
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// DayStamp 统一的 UTC 日期戳格式
func DayStamp(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
