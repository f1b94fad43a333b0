package model

import (
	"time"
)

const (
	WithdrawalStatusPending = "pending"
)

// Withdrawal 提现申请表
// 只追加，实际打款在系统之外处理
type Withdrawal struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WithdrawNo  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"withdraw_no"`
	UserID      int64     `gorm:"index;not null" json:"user_id"`
	Method      string    `gorm:"type:varchar(40);not null" json:"method"`
	Account     string    `gorm:"type:varchar(120);not null" json:"account"`
	AmountMills int64     `gorm:"not null" json:"amount_mills"`
	Status      string    `gorm:"type:varchar(20);index;not null" json:"status"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}
