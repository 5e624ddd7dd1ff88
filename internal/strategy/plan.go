package strategy

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"futures-trader/internal/execution"
	"futures-trader/internal/precision"
)

// ErrPrecondition 表示策略参数不满足前置条件，未发起任何交易所调用。
var ErrPrecondition = errors.New("策略参数不合法")

// PlanKind 标记策略种类。
type PlanKind string

const (
	PlanTWAP PlanKind = "TWAP"
	PlanGrid PlanKind = "GRID"
)

// LegState 为单腿状态机。
type LegState int

const (
	LegPending LegState = iota
	LegInFlight
	LegDone
	LegFailed
)

// Leg 为策略中的一笔原子委托及其执行状态。
type Leg struct {
	Index  int
	Intent execution.OrderIntent
	State  LegState
	Result execution.OrderResult
}

// Plan 为一次策略执行的完整腿序列。构建后腿的意图不再变化，
// 调度器只推进各腿的状态与结果。
type Plan struct {
	Kind   PlanKind
	Symbol string
	Side   execution.Side
	Legs   []Leg
	// Pacing 为相邻两腿提交之间的等待时长，最后一腿之后不等待。
	Pacing time.Duration
}

// TWAPParams 描述时间加权拆单策略的输入。
type TWAPParams struct {
	Symbol          string
	Side            execution.Side
	TotalQuantity   decimal.Decimal
	DurationMinutes int
	NumOrders       int
}

// BuildTWAPPlan 把总量拆成 NumOrders 笔等量市价腿，均匀分布在给定时长内。
// NumOrders 为 1 时退化为立即执行的单笔市价单。
func BuildTWAPPlan(params TWAPParams, constraints precision.SymbolConstraints) (*Plan, error) {
	if params.NumOrders < 1 {
		return nil, fmt.Errorf("%w: num_orders=%d 必须不小于1", ErrPrecondition, params.NumOrders)
	}
	if params.DurationMinutes < 0 {
		return nil, fmt.Errorf("%w: duration_minutes=%d 不能为负", ErrPrecondition, params.DurationMinutes)
	}
	if params.TotalQuantity.Sign() <= 0 {
		return nil, fmt.Errorf("%w: total_quantity 必须大于0", ErrPrecondition)
	}

	legQuantity := precision.RoundQuantity(
		params.TotalQuantity.Div(decimal.NewFromInt(int64(params.NumOrders))),
		constraints,
	)
	if legQuantity.Sign() <= 0 {
		return nil, fmt.Errorf("%w: 总量 %s 拆成 %d 笔后单笔数量为零",
			ErrPrecondition, params.TotalQuantity.String(), params.NumOrders)
	}

	interval := time.Duration(float64(params.DurationMinutes) * 60 / float64(params.NumOrders) * float64(time.Second))

	legs := make([]Leg, params.NumOrders)
	for i := range legs {
		legs[i] = Leg{
			Index: i,
			Intent: execution.OrderIntent{
				Symbol:   params.Symbol,
				Side:     params.Side,
				Kind:     execution.KindMarket,
				Quantity: legQuantity,
			},
		}
	}

	return &Plan{
		Kind:   PlanTWAP,
		Symbol: params.Symbol,
		Side:   params.Side,
		Legs:   legs,
		Pacing: interval,
	}, nil
}

// GridParams 描述网格策略的输入。价格边界须由调用方先行校验与调整。
type GridParams struct {
	Symbol        string
	Side          execution.Side
	TotalQuantity decimal.Decimal
	LowerPrice    decimal.Decimal
	UpperPrice    decimal.Decimal
	NumGrids      int
	// PaceDelay 为相邻网格腿之间的固定节流间隔，防止触发交易所限频。
	PaceDelay time.Duration
}

// BuildGridPlan 在 [LowerPrice, UpperPrice] 上构造等差价格阶梯，
// 每一档挂一笔等量限价腿。阶梯价向下对齐 tick，不向交易所最小值偏置。
func BuildGridPlan(params GridParams, constraints precision.SymbolConstraints) (*Plan, error) {
	if params.NumGrids < 2 {
		return nil, fmt.Errorf("%w: num_grids=%d 必须不小于2", ErrPrecondition, params.NumGrids)
	}
	if params.LowerPrice.Sign() <= 0 || params.LowerPrice.Cmp(params.UpperPrice) >= 0 {
		return nil, fmt.Errorf("%w: 要求 0 < lower_price(%s) < upper_price(%s)",
			ErrPrecondition, params.LowerPrice.String(), params.UpperPrice.String())
	}
	if params.TotalQuantity.Sign() <= 0 {
		return nil, fmt.Errorf("%w: total_quantity 必须大于0", ErrPrecondition)
	}

	legQuantity := precision.RoundQuantity(
		params.TotalQuantity.Div(decimal.NewFromInt(int64(params.NumGrids))),
		constraints,
	)
	if legQuantity.Sign() <= 0 {
		return nil, fmt.Errorf("%w: 总量 %s 拆成 %d 档后单档数量为零",
			ErrPrecondition, params.TotalQuantity.String(), params.NumGrids)
	}

	step := params.UpperPrice.Sub(params.LowerPrice).
		Div(decimal.NewFromInt(int64(params.NumGrids - 1)))

	legs := make([]Leg, params.NumGrids)
	for i := range legs {
		price := params.LowerPrice.Add(step.Mul(decimal.NewFromInt(int64(i))))
		if i == params.NumGrids-1 {
			// 阶梯端点必须精确落在边界上，避免除法余数造成漂移。
			price = params.UpperPrice
		}

		legs[i] = Leg{
			Index: i,
			Intent: execution.OrderIntent{
				Symbol:   params.Symbol,
				Side:     params.Side,
				Kind:     execution.KindLimit,
				Quantity: legQuantity,
				Price:    precision.RoundPrice(price, constraints, false),
			},
		}
	}

	return &Plan{
		Kind:   PlanGrid,
		Symbol: params.Symbol,
		Side:   params.Side,
		Legs:   legs,
		Pacing: params.PaceDelay,
	}, nil
}
