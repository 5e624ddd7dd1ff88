package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"futures-trader/internal/config"
	"futures-trader/internal/execution"
	"futures-trader/internal/store"
	"futures-trader/internal/strategy"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	sqliteStore, err := store.NewSQLite(config.DatabaseConfig{
		InMemory:     true,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	t.Cleanup(func() { _ = sqliteStore.Close() })

	service, err := NewService(sqliteStore, nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return service
}

func countEvents(t *testing.T, service *Service, eventType EventType) int {
	t.Helper()

	var count int
	err := service.db.QueryRow(
		`SELECT COUNT(*) FROM trade_events WHERE event_type = ?`, string(eventType),
	).Scan(&count)
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return count
}

func TestServiceRecord_PersistsEvent(t *testing.T) {
	service := newTestService(t)

	err := service.Record(context.Background(), Event{
		Type:      EventError,
		Timestamp: time.Now().UTC(),
		Payload:   ErrorPayload{Message: "测试事件"},
	})
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	if got := countEvents(t, service, EventError); got != 1 {
		t.Errorf("event count: got %d want 1", got)
	}
}

func TestServiceObserver_RecordsLegLifecycle(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	plan := &strategy.Plan{
		Kind:   strategy.PlanTWAP,
		Symbol: "BTCUSDT",
		Legs: []strategy.Leg{
			{
				Index: 0,
				Intent: execution.OrderIntent{
					Symbol:   "BTCUSDT",
					Side:     execution.SideBuy,
					Kind:     execution.KindMarket,
					Quantity: decimal.RequireFromString("0.25"),
				},
			},
		},
	}
	leg := &plan.Legs[0]

	service.LegAttempted(ctx, plan, leg)

	leg.Result = execution.OrderResult{Success: true, VenueOrderID: 42, Status: "NEW"}
	service.LegSucceeded(ctx, plan, leg)

	leg.Result = execution.Failure(execution.ErrorKindVenueRejected, "rejected")
	service.LegFailed(ctx, plan, leg)

	service.RunCompleted(ctx, plan, strategy.Report{
		Kind:      strategy.PlanTWAP,
		Symbol:    "BTCUSDT",
		Total:     1,
		Attempted: 1,
		Succeeded: 1,
	})

	if got := countEvents(t, service, EventLegAttempted); got != 1 {
		t.Errorf("attempted events: got %d want 1", got)
	}
	if got := countEvents(t, service, EventLegSucceeded); got != 1 {
		t.Errorf("succeeded events: got %d want 1", got)
	}
	if got := countEvents(t, service, EventLegFailed); got != 1 {
		t.Errorf("failed events: got %d want 1", got)
	}
	if got := countEvents(t, service, EventStrategyReport); got != 1 {
		t.Errorf("report events: got %d want 1", got)
	}
}

func TestServiceRunCompleted_PersistsAfterCancellation(t *testing.T) {
	service := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// 被取消的策略执行恰恰最需要留下最终汇总。
	service.RunCompleted(ctx, &strategy.Plan{Kind: strategy.PlanTWAP, Symbol: "BTCUSDT"}, strategy.Report{
		Kind:      strategy.PlanTWAP,
		Symbol:    "BTCUSDT",
		Total:     5,
		Attempted: 2,
		Succeeded: 2,
		Cancelled: true,
	})

	if got := countEvents(t, service, EventStrategyReport); got != 1 {
		t.Errorf("report events after cancellation: got %d want 1", got)
	}
}

func TestServiceRecordOrderResult(t *testing.T) {
	service := newTestService(t)

	service.RecordOrderResult(context.Background(),
		execution.OrderIntent{
			Symbol:   "BTCUSDT",
			Side:     execution.SideSell,
			Kind:     execution.KindLimit,
			Quantity: decimal.RequireFromString("0.5"),
			Price:    decimal.RequireFromString("101.5"),
		},
		execution.OrderResult{Success: true, VenueOrderID: 7, Status: "NEW"},
	)

	if got := countEvents(t, service, EventOrderResult); got != 1 {
		t.Errorf("order result events: got %d want 1", got)
	}
}
