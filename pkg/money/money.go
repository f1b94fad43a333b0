package money

import (
	"github.com/shopspring/decimal"
)

// 余额内部一律用"毫"（千分之一元）的 int64 存取，
// 四舍五入到三位小数因此是精确的整数运算；
// 只在 API 边界用 decimal 做一次无损换算，避免 float64 的累计误差

var thousand = decimal.NewFromInt(1000)

// ToMills 小数金额转毫，四舍五入到三位小数
func ToMills(amount decimal.Decimal) int64 {
	return amount.Round(3).Mul(thousand).IntPart()
}

// FromMills 毫转小数金额
func FromMills(mills int64) decimal.Decimal {
	return decimal.NewFromInt(mills).Div(thousand)
}

// Float 毫转 float64，仅用于响应序列化
func Float(mills int64) float64 {
	f, _ := FromMills(mills).Float64()
	return f
}
