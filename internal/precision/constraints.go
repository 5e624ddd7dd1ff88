package precision

import "github.com/shopspring/decimal"

// SymbolConstraints 描述单个合约的数值约束，获取后不再变更。
type SymbolConstraints struct {
	Symbol            string
	TickSize          decimal.Decimal
	QuantityStep      decimal.Decimal
	MinNotional       decimal.Decimal
	PricePrecision    int
	QuantityPrecision int
}

// 元数据不可用时的兜底约束。宁可让交易所在下单时拒绝，
// 也不让调用方因元数据缺失而完全无法继续。
const (
	defaultPricePrecision    = 2
	defaultQuantityPrecision = 3
)

var (
	defaultTickSize    = decimal.RequireFromString("0.1")
	defaultMinNotional = decimal.RequireFromString("5.0")
)

// DefaultConstraints 返回指定合约的兜底约束。
func DefaultConstraints(symbol string) SymbolConstraints {
	return SymbolConstraints{
		Symbol:            symbol,
		TickSize:          defaultTickSize,
		QuantityStep:      stepFromPrecision(defaultQuantityPrecision),
		MinNotional:       defaultMinNotional,
		PricePrecision:    defaultPricePrecision,
		QuantityPrecision: defaultQuantityPrecision,
	}
}

func stepFromPrecision(precision int) decimal.Decimal {
	if precision < 0 {
		precision = 0
	}
	return decimal.New(1, -int32(precision))
}
