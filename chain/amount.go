package chain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// USDT 等稳定币通常是 6 位小数
const DefaultTokenDecimals int32 = 6

// ToBaseUnits 十进制金额转为链上最小单位，多余的小数位直接截断
func ToBaseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}

func FromBaseUnits(units *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(units, -decimals)
}
