package app

import (
	"fmt"

	"github.com/shopspring/decimal"

	"futures-trader/internal/execution"
	"futures-trader/internal/precision"
)

// 交易所对限价单的价格偏离有软性限制，提交前把价格整形到可接受区间，
// 避免明显会被规则引擎拒绝的请求。marketPrice 不可用时跳过整形。

// shapeLimitPrice 按买卖方向收敛限价：
// 买单价格高于市场价上界时压到上界；卖单价格低于市场价下界时抬到下界并向上对齐 tick。
func shapeLimitPrice(side execution.Side, price, marketPrice decimal.Decimal, bandPct float64, constraints precision.SymbolConstraints) (decimal.Decimal, bool) {
	if marketPrice.Sign() <= 0 || bandPct <= 0 {
		return price, false
	}

	band := decimal.NewFromFloat(bandPct)

	switch side {
	case execution.SideBuy:
		maxBuy := marketPrice.Mul(decimal.NewFromInt(1).Add(band))
		if price.Cmp(maxBuy) > 0 {
			return maxBuy, true
		}
	case execution.SideSell:
		minSell := marketPrice.Mul(decimal.NewFromInt(1).Sub(band))
		if price.Cmp(minSell) < 0 {
			return precision.RoundPrice(minSell, constraints, true), true
		}
	}

	return price, false
}

// shapeGridBounds 对卖方向网格的价格区间做下界收敛。
// 上界也低于下界阈值时抬到阈值的 1.1 倍，保证调整后区间仍有宽度。
func shapeGridBounds(side execution.Side, lower, upper, marketPrice decimal.Decimal, bandPct float64, constraints precision.SymbolConstraints) (decimal.Decimal, decimal.Decimal, bool) {
	if side != execution.SideSell || marketPrice.Sign() <= 0 || bandPct <= 0 {
		return lower, upper, false
	}

	minSell := marketPrice.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(bandPct)))
	adjusted := false

	if lower.Cmp(minSell) < 0 {
		lower = precision.RoundPrice(minSell, constraints, true)
		adjusted = true
	}
	if upper.Cmp(minSell) < 0 {
		upper = precision.RoundPrice(minSell.Mul(decimal.NewFromFloat(1.1)), constraints, true)
		adjusted = true
	}

	return lower, upper, adjusted
}

// checkMinNotional 校验委托名义价值是否达到交易所下限。marketPrice 不可用时跳过。
func checkMinNotional(quantity, marketPrice decimal.Decimal, constraints precision.SymbolConstraints) error {
	if marketPrice.Sign() <= 0 || constraints.MinNotional.Sign() <= 0 {
		return nil
	}

	notional := quantity.Mul(marketPrice)
	if notional.Cmp(constraints.MinNotional) < 0 {
		return fmt.Errorf("委托名义价值 %s 低于交易所下限 %s USDT",
			notional.StringFixed(4), constraints.MinNotional.String())
	}
	return nil
}

// 终态委托无法撤销。
var terminalStatuses = map[string]struct{}{
	"FILLED":   {},
	"CANCELED": {},
	"EXPIRED":  {},
	"REJECTED": {},
}

func cancellable(status string) bool {
	_, terminal := terminalStatuses[status]
	return !terminal
}
