package model

import (
	"time"
)

const (
	TransactionTypeAdCredit = "AD_CREDIT" // 广告计费入账
	TransactionTypeWithdraw = "WITHDRAW"  // 提现出账
)

// AccountTransaction 账户流水表
// 每一笔余额变动都落一条，只追加不修改，记录变动前后余额便于对账
type AccountTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	RefNo         string    `gorm:"type:varchar(64);index;not null" json:"ref_no"` // 关联的会话ID或提现单号
	AmountMills   int64     `gorm:"not null" json:"amount_mills"`                  // 正数入账，负数出账
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AccountTransaction) TableName() string {
	return "account_transactions"
}
