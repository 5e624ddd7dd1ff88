package precision

import (
	"testing"

	"github.com/shopspring/decimal"
)

func testConstraints(tick string, qtyPrecision int) SymbolConstraints {
	return SymbolConstraints{
		Symbol:            "BTCUSDT",
		TickSize:          decimal.RequireFromString(tick),
		QuantityStep:      stepFromPrecision(qtyPrecision),
		MinNotional:       decimal.RequireFromString("5.0"),
		PricePrecision:    2,
		QuantityPrecision: qtyPrecision,
	}
}

func TestRoundPrice_Directional(t *testing.T) {
	constraints := testConstraints("0.01", 3)
	price := decimal.RequireFromString("100.037")

	up := RoundPrice(price, constraints, true)
	if up.String() != "100.04" {
		t.Errorf("round up: got %s want 100.04", up.String())
	}

	down := RoundPrice(price, constraints, false)
	if down.String() != "100.03" {
		t.Errorf("round down: got %s want 100.03", down.String())
	}
}

func TestRoundPrice_ExactMultipleUnchanged(t *testing.T) {
	constraints := testConstraints("0.5", 3)
	price := decimal.RequireFromString("123.5")

	for _, roundUp := range []bool{true, false} {
		got := RoundPrice(price, constraints, roundUp)
		if !got.Equal(price) {
			t.Errorf("roundUp=%v: exact multiple changed: got %s want %s", roundUp, got.String(), price.String())
		}
	}
}

func TestRoundPrice_FloatHostileTick(t *testing.T) {
	// 0.1 在二进制浮点下不可精确表示，十进制运算必须返回恰好的 tick 倍数。
	constraints := testConstraints("0.1", 3)
	price := decimal.RequireFromString("2.3")

	got := RoundPrice(price, constraints, false)
	if !got.Equal(price) {
		t.Errorf("got %s want 2.3", got.String())
	}
	if !got.Mod(constraints.TickSize).IsZero() {
		t.Errorf("result %s is not a tick multiple", got.String())
	}
}

func TestRoundPrice_NonPositiveInputsPassThrough(t *testing.T) {
	constraints := testConstraints("0.01", 3)

	zero := RoundPrice(decimal.Zero, constraints, true)
	if !zero.IsZero() {
		t.Errorf("zero price: got %s", zero.String())
	}

	noTick := SymbolConstraints{Symbol: "X"}
	price := decimal.RequireFromString("10.123")
	if got := RoundPrice(price, noTick, true); !got.Equal(price) {
		t.Errorf("zero tick: got %s want passthrough", got.String())
	}
}

func TestRoundQuantity_TruncatesTowardZero(t *testing.T) {
	constraints := testConstraints("0.01", 3)

	cases := []struct {
		in   string
		want string
	}{
		{"0.123456", "0.123"},
		{"0.1239", "0.123"}, // 截断而非四舍五入
		{"1", "1"},
		{"0.0004", "0"},
	}

	for _, tc := range cases {
		got := RoundQuantity(decimal.RequireFromString(tc.in), constraints)
		if got.String() != tc.want {
			t.Errorf("RoundQuantity(%s): got %s want %s", tc.in, got.String(), tc.want)
		}
	}
}

func TestRoundQuantity_NeverIncreases(t *testing.T) {
	constraints := testConstraints("0.01", 2)

	inputs := []string{"0.999", "10.005", "0.01", "3.14159"}
	for _, in := range inputs {
		quantity := decimal.RequireFromString(in)
		got := RoundQuantity(quantity, constraints)
		if got.Cmp(quantity) > 0 {
			t.Errorf("RoundQuantity(%s) = %s exceeds input", in, got.String())
		}
	}
}

func TestDefaultConstraints(t *testing.T) {
	constraints := DefaultConstraints("ETHUSDT")

	if constraints.Symbol != "ETHUSDT" {
		t.Errorf("symbol: got %s", constraints.Symbol)
	}
	if constraints.TickSize.String() != "0.1" {
		t.Errorf("tick size: got %s want 0.1", constraints.TickSize.String())
	}
	if constraints.MinNotional.String() != "5" {
		t.Errorf("min notional: got %s want 5", constraints.MinNotional.String())
	}
	if constraints.PricePrecision != 2 || constraints.QuantityPrecision != 3 {
		t.Errorf("precision: got %d/%d want 2/3", constraints.PricePrecision, constraints.QuantityPrecision)
	}
	if constraints.QuantityStep.String() != "0.001" {
		t.Errorf("quantity step: got %s want 0.001", constraints.QuantityStep.String())
	}
}
