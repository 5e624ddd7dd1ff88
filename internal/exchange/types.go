package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType 为统一后的委托类型。
type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStopLimit OrderType = "stop_limit"
)

// SymbolInfo 描述单个合约的交易规则元数据。
type SymbolInfo struct {
	Symbol            string
	PricePrecision    int
	QuantityPrecision int
	TickSize          decimal.Decimal
	StepSize          decimal.Decimal
	MinNotional       decimal.Decimal
}

// OrderRequest 为发往交易所的原始委托参数，价格数量已完成精度归一化。
type OrderRequest struct {
	Symbol      string
	Side        string // buy | sell
	Type        OrderType
	Quantity    float64
	Price       float64
	StopPrice   float64
	TimeInForce string
	RecvWindow  time.Duration
}

// OrderAck 为交易所对下单请求的确认。
type OrderAck struct {
	OrderID     int64
	Symbol      string
	Status      string
	ExecutedQty float64
	AvgPrice    float64
}

// OrderRecord 为交易所返回的委托记录。
type OrderRecord struct {
	OrderID     int64
	Symbol      string
	Side        string
	Type        string
	Status      string
	Price       float64
	StopPrice   float64
	OrigQty     float64
	ExecutedQty float64
}

// AssetBalance 为账户单一资产余额。
type AssetBalance struct {
	Asset     string
	Total     float64
	Available float64
}
