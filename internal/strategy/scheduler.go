package strategy

import (
	"context"
	"time"

	"go.uber.org/zap"

	"futures-trader/internal/execution"
)

// RunState 为一次策略执行的整体状态。
type RunState int

const (
	RunRunning RunState = iota
	RunCompleted
)

type orderSubmitter interface {
	Submit(ctx context.Context, intent execution.OrderIntent) execution.OrderResult
}

// Report 汇总一次策略执行的结果。单腿失败不会中断后续腿，
// 因此 Succeeded 可能小于 Attempted；取消时 Attempted 可能小于 Total。
type Report struct {
	Kind       PlanKind
	Symbol     string
	Side       execution.Side
	State      RunState
	Total      int
	Attempted  int
	Succeeded  int
	Cancelled  bool
	Results    []execution.OrderResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Scheduler 按计划顺序驱动各腿提交，并在腿间执行节奏等待。
// 单次执行内严格串行；不同策略执行之间互不共享可变状态。
type Scheduler struct {
	submitter orderSubmitter
	clock     Clock
	observer  Observer
	logger    *zap.Logger
}

// NewScheduler 创建调度器。clock 为空时使用系统时钟，observer 为空时丢弃事件。
func NewScheduler(submitter orderSubmitter, clock Clock, observer Observer, logger *zap.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if observer == nil {
		observer = NopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		submitter: submitter,
		clock:     clock,
		observer:  observer,
		logger:    logger,
	}
}

// Run 顺序执行计划中的全部腿。每次腿提交前与每次节奏等待中都有协作式取消点；
// 取消不回滚已提交的腿，报告会带上已完成的腿数。
func (s *Scheduler) Run(ctx context.Context, plan *Plan) (Report, error) {
	report := Report{
		Kind:      plan.Kind,
		Symbol:    plan.Symbol,
		Side:      plan.Side,
		State:     RunRunning,
		Total:     len(plan.Legs),
		Results:   make([]execution.OrderResult, 0, len(plan.Legs)),
		StartedAt: s.clock.Now(),
	}

	for i := range plan.Legs {
		leg := &plan.Legs[i]

		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}

		leg.State = LegInFlight
		s.observer.LegAttempted(ctx, plan, leg)
		s.logger.Info("提交策略腿",
			zap.String("strategy", string(plan.Kind)),
			zap.String("symbol", plan.Symbol),
			zap.Int("leg", leg.Index+1),
			zap.Int("total", report.Total),
		)

		result := s.submitter.Submit(ctx, leg.Intent)
		leg.Result = result
		report.Attempted++
		report.Results = append(report.Results, result)

		if result.Success {
			leg.State = LegDone
			report.Succeeded++
			s.observer.LegSucceeded(ctx, plan, leg)
		} else {
			leg.State = LegFailed
			s.observer.LegFailed(ctx, plan, leg)
			s.logger.Warn("策略腿执行失败，继续后续腿",
				zap.String("strategy", string(plan.Kind)),
				zap.Int("leg", leg.Index+1),
				zap.String("error_kind", string(result.ErrorKind)),
				zap.String("detail", result.ErrorDetail),
			)
		}

		if i < len(plan.Legs)-1 && plan.Pacing > 0 {
			if err := s.clock.Wait(ctx, plan.Pacing); err != nil {
				report.Cancelled = true
				break
			}
		}
	}

	report.State = RunCompleted
	report.FinishedAt = s.clock.Now()
	s.observer.RunCompleted(ctx, plan, report)

	s.logger.Info("策略执行结束",
		zap.String("strategy", string(plan.Kind)),
		zap.String("symbol", plan.Symbol),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("total", report.Total),
		zap.Bool("cancelled", report.Cancelled),
	)

	if report.Cancelled {
		return report, ctx.Err()
	}
	return report, nil
}
