package model

import (
	"time"
)

// 广告商回调中表示有效观看的事件类型
const (
	RewardEventValued    = "valued"
	RewardEventRewarded  = "rewarded"
	RewardEventCompleted = "completed"
)

// QualifiesForCredit 判断回调事件是否触发计费
func QualifiesForCredit(rewardEventType string) bool {
	switch rewardEventType {
	case RewardEventValued, RewardEventRewarded, RewardEventCompleted:
		return true
	}
	return false
}

// AdPostback 广告商回调审计表
// 无论回调是否有效都原样落一条，只追加不修改，用于排查与对账
type AdPostback struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Ymid            string    `gorm:"type:varchar(64);index" json:"ymid"`
	EventType       string    `gorm:"type:varchar(32)" json:"event_type"`
	RewardEventType string    `gorm:"type:varchar(32)" json:"reward_event_type"`
	ZoneID          string    `gorm:"type:varchar(32)" json:"zone_id"`
	SubZoneID       string    `gorm:"type:varchar(32)" json:"sub_zone_id"`
	TelegramID      string    `gorm:"type:varchar(32)" json:"telegram_id"`
	RequestVar      string    `gorm:"type:varchar(64)" json:"request_var"`
	PayloadJSON     string    `gorm:"type:text;not null" json:"payload_json"` // 原始载荷全量留底
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AdPostback) TableName() string {
	return "ad_postbacks"
}
