package app

import (
	"testing"

	"github.com/shopspring/decimal"

	"futures-trader/internal/execution"
	"futures-trader/internal/precision"
)

func btcConstraints() precision.SymbolConstraints {
	return precision.SymbolConstraints{
		Symbol:            "BTCUSDT",
		TickSize:          decimal.RequireFromString("0.01"),
		QuantityStep:      decimal.RequireFromString("0.001"),
		MinNotional:       decimal.RequireFromString("5.0"),
		PricePrecision:    2,
		QuantityPrecision: 3,
	}
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestShapeLimitPrice_BuyCappedAtUpperBand(t *testing.T) {
	price, adjusted := shapeLimitPrice(execution.SideBuy, d("110"), d("100"), 0.05, btcConstraints())

	if !adjusted {
		t.Fatalf("expected adjustment")
	}
	if price.String() != "105" {
		t.Errorf("price: got %s want 105", price.String())
	}
}

func TestShapeLimitPrice_SellFlooredAndRoundedUp(t *testing.T) {
	// 下界 100.333*0.95=95.31635，向上对齐 tick 后为 95.32。
	price, adjusted := shapeLimitPrice(execution.SideSell, d("90"), d("100.333"), 0.05, btcConstraints())

	if !adjusted {
		t.Fatalf("expected adjustment")
	}
	if price.String() != "95.32" {
		t.Errorf("price: got %s want 95.32", price.String())
	}
}

func TestShapeLimitPrice_InBandUnchanged(t *testing.T) {
	for _, side := range []execution.Side{execution.SideBuy, execution.SideSell} {
		price, adjusted := shapeLimitPrice(side, d("101"), d("100"), 0.05, btcConstraints())
		if adjusted {
			t.Errorf("side %s: unexpected adjustment", side)
		}
		if price.String() != "101" {
			t.Errorf("side %s: price %s want 101", side, price.String())
		}
	}
}

func TestShapeLimitPrice_SkippedWithoutMarketPrice(t *testing.T) {
	price, adjusted := shapeLimitPrice(execution.SideBuy, d("110"), decimal.Zero, 0.05, btcConstraints())
	if adjusted || price.String() != "110" {
		t.Errorf("expected passthrough, got %s adjusted=%v", price.String(), adjusted)
	}
}

func TestShapeGridBounds_SellLowerRaisedToBand(t *testing.T) {
	lower, upper, adjusted := shapeGridBounds(execution.SideSell, d("90"), d("98"), d("100"), 0.05, btcConstraints())

	if !adjusted {
		t.Fatalf("expected adjustment")
	}
	if lower.String() != "95" {
		t.Errorf("lower: got %s want 95", lower.String())
	}
	if upper.String() != "98" {
		t.Errorf("upper: got %s want 98", upper.String())
	}
}

func TestShapeGridBounds_SellUpperRaisedWithHeadroom(t *testing.T) {
	lower, upper, adjusted := shapeGridBounds(execution.SideSell, d("90"), d("93"), d("100"), 0.05, btcConstraints())

	if !adjusted {
		t.Fatalf("expected adjustment")
	}
	if lower.String() != "95" {
		t.Errorf("lower: got %s want 95", lower.String())
	}
	// 上界抬到下界阈值的1.1倍，保证调整后区间仍有宽度。
	if upper.String() != "104.5" {
		t.Errorf("upper: got %s want 104.5", upper.String())
	}
}

func TestShapeGridBounds_BuyUntouched(t *testing.T) {
	lower, upper, adjusted := shapeGridBounds(execution.SideBuy, d("50"), d("60"), d("100"), 0.05, btcConstraints())
	if adjusted {
		t.Fatalf("unexpected adjustment")
	}
	if lower.String() != "50" || upper.String() != "60" {
		t.Errorf("bounds changed: %s-%s", lower.String(), upper.String())
	}
}

func TestCheckMinNotional(t *testing.T) {
	constraints := btcConstraints()

	if err := checkMinNotional(d("0.001"), d("1000"), constraints); err == nil {
		t.Errorf("expected error for notional 1 < 5")
	}
	if err := checkMinNotional(d("0.01"), d("1000"), constraints); err != nil {
		t.Errorf("unexpected error for notional 10: %v", err)
	}
	// 市场价不可用时跳过校验。
	if err := checkMinNotional(d("0.001"), decimal.Zero, constraints); err != nil {
		t.Errorf("expected skip without market price: %v", err)
	}
}

func TestCancellable(t *testing.T) {
	for _, status := range []string{"FILLED", "CANCELED", "EXPIRED", "REJECTED"} {
		if cancellable(status) {
			t.Errorf("status %s should not be cancellable", status)
		}
	}
	for _, status := range []string{"NEW", "PARTIALLY_FILLED", ""} {
		if !cancellable(status) {
			t.Errorf("status %s should be cancellable", status)
		}
	}
}
