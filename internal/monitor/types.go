package monitor

import "time"

// EventType 标记监控事件类别。
type EventType string

const (
	EventLegAttempted   EventType = "leg_attempted"
	EventLegSucceeded   EventType = "leg_succeeded"
	EventLegFailed      EventType = "leg_failed"
	EventStrategyReport EventType = "strategy_report"
	EventOrderResult    EventType = "order_result"
	EventError          EventType = "error"
)

// Event 为单条监控记录。
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   interface{}
}

// LegPayload 记录策略单腿的提交情况。
type LegPayload struct {
	Strategy    string `json:"strategy"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Kind        string `json:"kind"`
	LegIndex    int    `json:"leg_index"`
	LegTotal    int    `json:"leg_total"`
	Quantity    string `json:"quantity"`
	Price       string `json:"price,omitempty"`
	OrderID     int64  `json:"order_id,omitempty"`
	Status      string `json:"status,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	ErrorDetail string `json:"error_detail,omitempty"`
}

// ReportPayload 记录一次策略执行的汇总。
type ReportPayload struct {
	Strategy  string `json:"strategy"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Total     int    `json:"total"`
	Attempted int    `json:"attempted"`
	Succeeded int    `json:"succeeded"`
	Cancelled bool   `json:"cancelled"`
}

// OrderResultPayload 记录单笔直接下单的结果。
type OrderResultPayload struct {
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Kind        string `json:"kind"`
	Quantity    string `json:"quantity"`
	Price       string `json:"price,omitempty"`
	StopPrice   string `json:"stop_price,omitempty"`
	Success     bool   `json:"success"`
	OrderID     int64  `json:"order_id,omitempty"`
	Status      string `json:"status,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	ErrorDetail string `json:"error_detail,omitempty"`
}

// ErrorPayload 记录运行期错误。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}
