package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"futures-trader/internal/execution"
	"futures-trader/internal/store"
	"futures-trader/internal/strategy"
)

// Service 将腿级事件与执行结果持久化为会话内审计记录。
// 核心逻辑从不回读这些记录，它只是宿主侧接入的事件落盘。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService 初始化监控服务，创建所需表结构。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("monitor: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:     store.DB(),
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS trade_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trade_events_type ON trade_events(event_type);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("monitor: 初始化表失败: %w", err)
	}
	return nil
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("monitor: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO trade_events (event_type, payload, created_at) VALUES (?, ?, ?)`,
		string(event.Type), string(payload), event.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("monitor: 写入事件失败: %w", err)
	}

	return nil
}

// LegAttempted 实现 strategy.Observer。
func (s *Service) LegAttempted(ctx context.Context, plan *strategy.Plan, leg *strategy.Leg) {
	s.recordLeg(ctx, EventLegAttempted, plan, leg)
}

// LegSucceeded 实现 strategy.Observer。
func (s *Service) LegSucceeded(ctx context.Context, plan *strategy.Plan, leg *strategy.Leg) {
	s.recordLeg(ctx, EventLegSucceeded, plan, leg)
}

// LegFailed 实现 strategy.Observer。
func (s *Service) LegFailed(ctx context.Context, plan *strategy.Plan, leg *strategy.Leg) {
	s.recordLeg(ctx, EventLegFailed, plan, leg)
}

// RunCompleted 实现 strategy.Observer。
// 取消的策略执行同样要落盘最终汇总，写入脱离运行上下文的取消链。
func (s *Service) RunCompleted(ctx context.Context, plan *strategy.Plan, report strategy.Report) {
	if err := s.Record(context.WithoutCancel(ctx), Event{
		Type:      EventStrategyReport,
		Timestamp: time.Now().UTC(),
		Payload: ReportPayload{
			Strategy:  string(report.Kind),
			Symbol:    report.Symbol,
			Side:      string(report.Side),
			Total:     report.Total,
			Attempted: report.Attempted,
			Succeeded: report.Succeeded,
			Cancelled: report.Cancelled,
		},
	}); err != nil {
		s.logger.Warn("记录策略汇总事件失败", zap.Error(err))
	}
}

// RecordOrderResult 记录单笔直接下单的结果。
func (s *Service) RecordOrderResult(ctx context.Context, intent execution.OrderIntent, result execution.OrderResult) {
	payload := OrderResultPayload{
		Symbol:      intent.Symbol,
		Side:        string(intent.Side),
		Kind:        string(intent.Kind),
		Quantity:    intent.Quantity.String(),
		Success:     result.Success,
		OrderID:     result.VenueOrderID,
		Status:      result.Status,
		ErrorKind:   string(result.ErrorKind),
		ErrorDetail: result.ErrorDetail,
	}
	if intent.Price.Sign() > 0 {
		payload.Price = intent.Price.String()
	}
	if intent.StopPrice.Sign() > 0 {
		payload.StopPrice = intent.StopPrice.String()
	}

	if err := s.Record(ctx, Event{
		Type:      EventOrderResult,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); err != nil {
		s.logger.Warn("记录下单结果事件失败", zap.Error(err))
	}
}

// RecordError 记录运行期错误。
func (s *Service) RecordError(ctx context.Context, message string, cause error, fields map[string]interface{}) {
	payload := ErrorPayload{
		Message: message,
		Fields:  fields,
	}
	if cause != nil {
		payload.Error = cause.Error()
	}

	if err := s.Record(ctx, Event{
		Type:      EventError,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); err != nil {
		s.logger.Warn("记录错误事件失败", zap.Error(err))
	}
}

func (s *Service) recordLeg(ctx context.Context, eventType EventType, plan *strategy.Plan, leg *strategy.Leg) {
	payload := LegPayload{
		Strategy: string(plan.Kind),
		Symbol:   plan.Symbol,
		Side:     string(leg.Intent.Side),
		Kind:     string(leg.Intent.Kind),
		LegIndex: leg.Index,
		LegTotal: len(plan.Legs),
		Quantity: leg.Intent.Quantity.String(),
	}
	if leg.Intent.Price.Sign() > 0 {
		payload.Price = leg.Intent.Price.String()
	}
	if eventType != EventLegAttempted {
		payload.OrderID = leg.Result.VenueOrderID
		payload.Status = leg.Result.Status
		payload.ErrorKind = string(leg.Result.ErrorKind)
		payload.ErrorDetail = leg.Result.ErrorDetail
	}

	if err := s.Record(ctx, Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); err != nil {
		s.logger.Warn("记录策略腿事件失败",
			zap.String("event", string(eventType)),
			zap.Error(err),
		)
	}
}
