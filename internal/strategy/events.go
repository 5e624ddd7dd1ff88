package strategy

import "context"

// Observer 接收策略执行过程中的腿级事件。
// 核心只负责发出事件，展示与落盘由宿主注入的实现决定。
type Observer interface {
	LegAttempted(ctx context.Context, plan *Plan, leg *Leg)
	LegSucceeded(ctx context.Context, plan *Plan, leg *Leg)
	LegFailed(ctx context.Context, plan *Plan, leg *Leg)
	RunCompleted(ctx context.Context, plan *Plan, report Report)
}

// NopObserver 忽略全部事件。
type NopObserver struct{}

func (NopObserver) LegAttempted(context.Context, *Plan, *Leg)   {}
func (NopObserver) LegSucceeded(context.Context, *Plan, *Leg)   {}
func (NopObserver) LegFailed(context.Context, *Plan, *Leg)      {}
func (NopObserver) RunCompleted(context.Context, *Plan, Report) {}

type multiObserver []Observer

// CombineObservers 将多个观察者合并为一个，事件按注册顺序分发。
func CombineObservers(observers ...Observer) Observer {
	filtered := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return filtered
}

func (m multiObserver) LegAttempted(ctx context.Context, plan *Plan, leg *Leg) {
	for _, o := range m {
		o.LegAttempted(ctx, plan, leg)
	}
}

func (m multiObserver) LegSucceeded(ctx context.Context, plan *Plan, leg *Leg) {
	for _, o := range m {
		o.LegSucceeded(ctx, plan, leg)
	}
}

func (m multiObserver) LegFailed(ctx context.Context, plan *Plan, leg *Leg) {
	for _, o := range m {
		o.LegFailed(ctx, plan, leg)
	}
}

func (m multiObserver) RunCompleted(ctx context.Context, plan *Plan, report Report) {
	for _, o := range m {
		o.RunCompleted(ctx, plan, report)
	}
}
