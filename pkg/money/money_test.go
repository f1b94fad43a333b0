package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestToMills(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"0.001", 1},
		{"0.1", 100},
		{"1.9", 1900},
		{"5", 5000},
		{"5.25", 5250},
		{"0.0004", 0},    // 第四位舍去
		{"0.0005", 1},    // 四舍五入
		{"123.4567", 123457},
	}
	for _, c := range cases {
		amount, err := decimal.NewFromString(c.in)
		require.NoError(t, err)
		require.Equal(t, c.want, ToMills(amount), "in=%s", c.in)
	}
}

func TestFromMillsRoundTrip(t *testing.T) {
	for _, mills := range []int64{0, 1, 100, 1900, 5250, 999999} {
		require.Equal(t, mills, ToMills(FromMills(mills)))
	}
}

func TestFloat(t *testing.T) {
	require.Equal(t, 0.1, Float(100))
	require.Equal(t, 1.9, Float(1900))
	require.Equal(t, 0.0, Float(0))
}
