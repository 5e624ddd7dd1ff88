package strategy

import (
	"errors"
	"testing"
	"time"

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

func TestBuildTWAPPlan_SplitsEvenly(t *testing.T) {
	plan, err := BuildTWAPPlan(TWAPParams{
		Symbol:          "BTCUSDT",
		Side:            execution.SideBuy,
		TotalQuantity:   decimal.RequireFromString("1.0"),
		DurationMinutes: 2,
		NumOrders:       4,
	}, btcConstraints())
	if err != nil {
		t.Fatalf("BuildTWAPPlan returned error: %v", err)
	}

	if plan.Kind != PlanTWAP {
		t.Errorf("kind: got %s", plan.Kind)
	}
	if len(plan.Legs) != 4 {
		t.Fatalf("legs: got %d want 4", len(plan.Legs))
	}
	if plan.Pacing != 30*time.Second {
		t.Errorf("pacing: got %v want 30s", plan.Pacing)
	}

	for i, leg := range plan.Legs {
		if leg.Index != i {
			t.Errorf("leg %d: index %d", i, leg.Index)
		}
		if leg.Intent.Kind != execution.KindMarket {
			t.Errorf("leg %d: kind %s", i, leg.Intent.Kind)
		}
		if leg.Intent.Quantity.String() != "0.25" {
			t.Errorf("leg %d: quantity %s want 0.25", i, leg.Intent.Quantity.String())
		}
		if leg.State != LegPending {
			t.Errorf("leg %d: state %d", i, leg.State)
		}
	}
}

func TestBuildTWAPPlan_TruncatesLegQuantity(t *testing.T) {
	plan, err := BuildTWAPPlan(TWAPParams{
		Symbol:          "BTCUSDT",
		Side:            execution.SideSell,
		TotalQuantity:   decimal.RequireFromString("1.0"),
		DurationMinutes: 10,
		NumOrders:       3,
	}, btcConstraints())
	if err != nil {
		t.Fatalf("BuildTWAPPlan returned error: %v", err)
	}

	// 1.0/3 按精度3截断为 0.333，不四舍五入。
	if got := plan.Legs[0].Intent.Quantity.String(); got != "0.333" {
		t.Errorf("leg quantity: got %s want 0.333", got)
	}
}

func TestBuildTWAPPlan_SingleLegDegenerates(t *testing.T) {
	plan, err := BuildTWAPPlan(TWAPParams{
		Symbol:          "BTCUSDT",
		Side:            execution.SideBuy,
		TotalQuantity:   decimal.RequireFromString("0.5"),
		DurationMinutes: 5,
		NumOrders:       1,
	}, btcConstraints())
	if err != nil {
		t.Fatalf("BuildTWAPPlan returned error: %v", err)
	}

	if len(plan.Legs) != 1 {
		t.Fatalf("legs: got %d want 1", len(plan.Legs))
	}
	if plan.Legs[0].Intent.Quantity.String() != "0.5" {
		t.Errorf("quantity: got %s want 0.5", plan.Legs[0].Intent.Quantity.String())
	}
}

func TestBuildTWAPPlan_Preconditions(t *testing.T) {
	cases := []struct {
		name   string
		params TWAPParams
	}{
		{"zero orders", TWAPParams{Symbol: "BTCUSDT", TotalQuantity: decimal.NewFromInt(1), NumOrders: 0}},
		{"negative duration", TWAPParams{Symbol: "BTCUSDT", TotalQuantity: decimal.NewFromInt(1), NumOrders: 2, DurationMinutes: -1}},
		{"zero quantity", TWAPParams{Symbol: "BTCUSDT", NumOrders: 2, DurationMinutes: 5}},
		{"dust quantity", TWAPParams{Symbol: "BTCUSDT", TotalQuantity: decimal.RequireFromString("0.001"), NumOrders: 10, DurationMinutes: 5}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := BuildTWAPPlan(tc.params, btcConstraints()); !errors.Is(err, ErrPrecondition) {
				t.Fatalf("expected ErrPrecondition, got %v", err)
			}
		})
	}
}

func TestBuildGridPlan_ArithmeticLadder(t *testing.T) {
	plan, err := BuildGridPlan(GridParams{
		Symbol:        "BTCUSDT",
		Side:          execution.SideBuy,
		TotalQuantity: decimal.RequireFromString("0.9"),
		LowerPrice:    decimal.RequireFromString("100"),
		UpperPrice:    decimal.RequireFromString("110"),
		NumGrids:      3,
		PaceDelay:     200 * time.Millisecond,
	}, btcConstraints())
	if err != nil {
		t.Fatalf("BuildGridPlan returned error: %v", err)
	}

	if plan.Kind != PlanGrid {
		t.Errorf("kind: got %s", plan.Kind)
	}
	if plan.Pacing != 200*time.Millisecond {
		t.Errorf("pacing: got %v want 200ms", plan.Pacing)
	}

	wantPrices := []string{"100", "105", "110"}
	if len(plan.Legs) != len(wantPrices) {
		t.Fatalf("legs: got %d want %d", len(plan.Legs), len(wantPrices))
	}
	for i, leg := range plan.Legs {
		if leg.Intent.Kind != execution.KindLimit {
			t.Errorf("leg %d: kind %s", i, leg.Intent.Kind)
		}
		if got := leg.Intent.Price.String(); got != wantPrices[i] {
			t.Errorf("leg %d: price %s want %s", i, got, wantPrices[i])
		}
		if leg.Intent.Quantity.String() != "0.3" {
			t.Errorf("leg %d: quantity %s want 0.3", i, leg.Intent.Quantity.String())
		}
	}
}

func TestBuildGridPlan_LastLegHitsUpperBoundExactly(t *testing.T) {
	// 除不尽的步长不能让端点漂移。
	plan, err := BuildGridPlan(GridParams{
		Symbol:        "BTCUSDT",
		Side:          execution.SideSell,
		TotalQuantity: decimal.RequireFromString("1"),
		LowerPrice:    decimal.RequireFromString("100"),
		UpperPrice:    decimal.RequireFromString("101"),
		NumGrids:      7,
	}, btcConstraints())
	if err != nil {
		t.Fatalf("BuildGridPlan returned error: %v", err)
	}

	last := plan.Legs[len(plan.Legs)-1]
	if last.Intent.Price.String() != "101" {
		t.Errorf("last leg price: got %s want 101", last.Intent.Price.String())
	}

	prev := decimal.Zero
	for i, leg := range plan.Legs {
		price := leg.Intent.Price
		if price.Cmp(prev) <= 0 {
			t.Fatalf("leg %d: ladder not strictly increasing (%s after %s)", i, price.String(), prev.String())
		}
		if !price.Mod(decimal.RequireFromString("0.01")).IsZero() {
			t.Errorf("leg %d: price %s not aligned to tick", i, price.String())
		}
		prev = price
	}
}

func TestBuildGridPlan_Preconditions(t *testing.T) {
	base := GridParams{
		Symbol:        "BTCUSDT",
		Side:          execution.SideBuy,
		TotalQuantity: decimal.NewFromInt(1),
		LowerPrice:    decimal.RequireFromString("100"),
		UpperPrice:    decimal.RequireFromString("110"),
		NumGrids:      3,
	}

	tooFew := base
	tooFew.NumGrids = 1
	if _, err := BuildGridPlan(tooFew, btcConstraints()); !errors.Is(err, ErrPrecondition) {
		t.Errorf("num_grids=1: expected ErrPrecondition, got %v", err)
	}

	inverted := base
	inverted.LowerPrice = decimal.RequireFromString("110")
	inverted.UpperPrice = decimal.RequireFromString("100")
	if _, err := BuildGridPlan(inverted, btcConstraints()); !errors.Is(err, ErrPrecondition) {
		t.Errorf("inverted bounds: expected ErrPrecondition, got %v", err)
	}

	equal := base
	equal.UpperPrice = equal.LowerPrice
	if _, err := BuildGridPlan(equal, btcConstraints()); !errors.Is(err, ErrPrecondition) {
		t.Errorf("equal bounds: expected ErrPrecondition, got %v", err)
	}

	zeroQty := base
	zeroQty.TotalQuantity = decimal.Zero
	if _, err := BuildGridPlan(zeroQty, btcConstraints()); !errors.Is(err, ErrPrecondition) {
		t.Errorf("zero quantity: expected ErrPrecondition, got %v", err)
	}
}
