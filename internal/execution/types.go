package execution

import (
	"github.com/shopspring/decimal"
)

// Side 表示下单方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Kind 表示委托类型。
type Kind string

const (
	KindMarket    Kind = "MARKET"
	KindLimit     Kind = "LIMIT"
	KindStopLimit Kind = "STOP_LIMIT"
)

// ErrorKind 标记一次下单失败的错误类别。
type ErrorKind string

const (
	// ErrorKindVenueRejected 表示交易所规则引擎拒单，不会自动重试。
	ErrorKindVenueRejected ErrorKind = "VENUE_REJECTED"
	// ErrorKindTransportFailure 表示网络超时或响应异常，同样交由调用方决定。
	ErrorKindTransportFailure ErrorKind = "TRANSPORT_FAILURE"
	// ErrorKindPrecondition 表示参数在本地校验阶段即不合法，未发起任何交易所调用。
	ErrorKindPrecondition ErrorKind = "PRECONDITION_VIOLATION"
)

// OrderIntent 描述一笔待提交的原子委托，创建后不再修改。
type OrderIntent struct {
	Symbol      string
	Side        Side
	Kind        Kind
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	StopPrice   decimal.Decimal
	TimeInForce string
}

// OrderResult 为一次提交的最终结果，产生后不再变更。
type OrderResult struct {
	Success        bool
	VenueOrderID   int64
	Status         string
	FilledQuantity decimal.Decimal
	ErrorKind      ErrorKind
	ErrorDetail    string
}

// Failure 构造一个失败结果。
func Failure(kind ErrorKind, detail string) OrderResult {
	return OrderResult{
		Success:     false,
		ErrorKind:   kind,
		ErrorDetail: detail,
	}
}
