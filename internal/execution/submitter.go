package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-trader/internal/exchange"
	"futures-trader/internal/precision"
)

// 交易所要求下单请求携带的确认时间窗口，用于容忍本地与撮合服务器之间的时钟偏差。
const defaultRecvWindow = 60 * time.Second

type venueClient interface {
	CreateOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderAck, error)
}

type constraintsProvider interface {
	Constraints(ctx context.Context, symbol string) precision.SymbolConstraints
}

// Submitter 将单笔 OrderIntent 归一化后提交给交易所，并把结果映射为统一的 OrderResult。
// 本组件内不做任何重试，一次 Submit 至多发起一次交易所调用。
type Submitter struct {
	client     venueClient
	resolver   constraintsProvider
	logger     *zap.Logger
	recvWindow time.Duration
}

// NewSubmitter 创建下单器。recvWindow 不合法时使用默认 60 秒。
func NewSubmitter(client venueClient, resolver constraintsProvider, recvWindow time.Duration, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recvWindow <= 0 {
		recvWindow = defaultRecvWindow
	}
	return &Submitter{
		client:     client,
		resolver:   resolver,
		logger:     logger,
		recvWindow: recvWindow,
	}
}

// Submit 提交一笔委托。任何失败都以带错误类别的 OrderResult 返回，不抛出异常式错误。
func (s *Submitter) Submit(ctx context.Context, intent OrderIntent) OrderResult {
	constraints := s.resolver.Constraints(ctx, intent.Symbol)

	quantity := precision.RoundQuantity(intent.Quantity, constraints)
	if quantity.Sign() <= 0 {
		return Failure(ErrorKindPrecondition,
			fmt.Sprintf("数量 %s 按精度 %d 截断后为零", intent.Quantity.String(), constraints.QuantityPrecision))
	}

	req := exchange.OrderRequest{
		Symbol:     intent.Symbol,
		Side:       strings.ToLower(string(intent.Side)),
		Quantity:   quantity.InexactFloat64(),
		RecvWindow: s.recvWindow,
	}

	switch intent.Kind {
	case KindMarket:
		req.Type = exchange.OrderTypeMarket
	case KindLimit:
		// 限价价格向上取整到 tick，使调整后的价格偏向满足约束而不是低于约束。
		price := precision.RoundPrice(intent.Price, constraints, true)
		if price.Sign() <= 0 {
			return Failure(ErrorKindPrecondition, "限价单需要正的价格")
		}
		req.Type = exchange.OrderTypeLimit
		req.Price = price.InexactFloat64()
		req.TimeInForce = intent.TimeInForce
	case KindStopLimit:
		// 触发价与限价统一向下对齐 tick，不做方向性偏置。
		stop := precision.RoundPrice(intent.StopPrice, constraints, false)
		price := precision.RoundPrice(intent.Price, constraints, false)
		if stop.Sign() <= 0 || price.Sign() <= 0 {
			return Failure(ErrorKindPrecondition, "止损限价单需要正的触发价与限价")
		}
		req.Type = exchange.OrderTypeStopLimit
		req.Price = price.InexactFloat64()
		req.StopPrice = stop.InexactFloat64()
	default:
		return Failure(ErrorKindPrecondition, fmt.Sprintf("不支持的委托类型 %q", intent.Kind))
	}

	s.logger.Debug("提交委托",
		zap.String("symbol", intent.Symbol),
		zap.String("side", string(intent.Side)),
		zap.String("kind", string(intent.Kind)),
		zap.Float64("quantity", req.Quantity),
		zap.Float64("price", req.Price),
		zap.Float64("stop_price", req.StopPrice),
	)

	ack, err := s.client.CreateOrder(ctx, req)
	if err != nil {
		result := resultFromError(err)
		s.logger.Warn("委托被拒绝或提交失败",
			zap.String("symbol", intent.Symbol),
			zap.String("kind", string(intent.Kind)),
			zap.String("error_kind", string(result.ErrorKind)),
			zap.String("detail", result.ErrorDetail),
		)
		return result
	}

	s.logger.Info("委托提交成功",
		zap.String("symbol", intent.Symbol),
		zap.String("side", string(intent.Side)),
		zap.String("kind", string(intent.Kind)),
		zap.Int64("order_id", ack.OrderID),
		zap.String("status", ack.Status),
	)

	return OrderResult{
		Success:        true,
		VenueOrderID:   ack.OrderID,
		Status:         ack.Status,
		FilledQuantity: decimal.NewFromFloat(ack.ExecutedQty),
	}
}

func resultFromError(err error) OrderResult {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Failure(ErrorKindTransportFailure, err.Error())
	case exchange.IsVenueRejection(err):
		return Failure(ErrorKindVenueRejected, err.Error())
	default:
		return Failure(ErrorKindTransportFailure, err.Error())
	}
}
