package precision

import "github.com/shopspring/decimal"

// RoundPrice 将价格对齐到 tick size 的整数倍。
// roundUp 为 true 时取不小于输入的最小 tick 倍数，否则取不大于输入的最大倍数。
// 全程使用十进制精确运算，避免二进制浮点在除回乘时产生偏移一个 tick 的误差。
func RoundPrice(price decimal.Decimal, constraints SymbolConstraints, roundUp bool) decimal.Decimal {
	if price.Sign() <= 0 || constraints.TickSize.Sign() <= 0 {
		return price
	}

	ticks := price.Div(constraints.TickSize)
	if roundUp {
		ticks = ticks.Ceil()
	} else {
		ticks = ticks.Floor()
	}

	return ticks.Mul(constraints.TickSize)
}

// RoundQuantity 将数量截断到合约数量精度。只向零截断，绝不放大请求数量。
func RoundQuantity(quantity decimal.Decimal, constraints SymbolConstraints) decimal.Decimal {
	precision := constraints.QuantityPrecision
	if precision < 0 {
		precision = 0
	}
	return quantity.Truncate(int32(precision))
}
