package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"futures-trader/internal/config"
	"futures-trader/internal/exchange"
	"futures-trader/internal/execution"
	"futures-trader/internal/monitor"
	"futures-trader/internal/precision"
	"futures-trader/internal/store"
	"futures-trader/internal/strategy"
)

type orchestrator struct {
	client    *exchange.Client
	resolver  *precision.Resolver
	submitter *execution.Submitter
	scheduler *strategy.Scheduler
	monitor   *monitor.Service
	execCfg   config.ExecutionConfig
	logger    *zap.Logger
}

func newOrchestrator(cfg *config.Config, logger *zap.Logger, store *store.Store) (*orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := exchange.NewClient(cfg.Exchange, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化交易所客户端失败: %w", err)
	}

	monitorSvc, err := monitor.NewService(store, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化监控服务失败: %w", err)
	}

	resolver := precision.NewResolver(client, logger)
	submitter := execution.NewSubmitter(client, resolver, cfg.Execution.RecvWindow, logger)
	scheduler := strategy.NewScheduler(submitter, strategy.SystemClock{},
		strategy.CombineObservers(monitorSvc), logger)

	return &orchestrator{
		client:    client,
		resolver:  resolver,
		submitter: submitter,
		scheduler: scheduler,
		monitor:   monitorSvc,
		execCfg:   cfg.Execution,
		logger:    logger,
	}, nil
}

// RunJobs 并发执行配置中的全部任务，每个任务独立一个 goroutine，
// 任务内部严格串行。单个任务失败只记录不影响其他任务；
// 上下文取消时各任务在自身取消点停止。
func (o *orchestrator) RunJobs(ctx context.Context, jobs []config.JobConfig) error {
	if len(jobs) == 0 {
		o.logger.Info("未配置任何任务，直接退出")
		return nil
	}

	prices := o.preflight(ctx, jobs)

	group, groupCtx := errgroup.WithContext(ctx)
	for i := range jobs {
		job := &jobs[i]
		index := i
		symbol := strings.ToUpper(job.Symbol)

		group.Go(func() error {
			o.logger.Info("开始执行任务",
				zap.Int("job", index+1),
				zap.Int("total", len(jobs)),
				zap.String("type", job.Type),
				zap.String("symbol", symbol),
			)

			if err := o.runJob(groupCtx, job, prices[symbol]); err != nil {
				if ctxErr := groupCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				// 任务失败不取消兄弟任务，只落盘并继续。
				o.monitor.RecordError(groupCtx, "任务执行失败", err, map[string]interface{}{
					"job":    index + 1,
					"type":   job.Type,
					"symbol": symbol,
				})
				o.logger.Error("任务执行失败",
					zap.Int("job", index+1),
					zap.String("type", job.Type),
					zap.Error(err),
				)
			}
			return nil
		})
	}

	return group.Wait()
}

// preflight 并发校验任务涉及的合约并抓取最新价，供价格整形与名义价值校验使用。
// 单个合约失败只降级跳过整形，不阻塞任务执行。
func (o *orchestrator) preflight(ctx context.Context, jobs []config.JobConfig) map[string]decimal.Decimal {
	symbols := make(map[string]struct{}, len(jobs))
	for i := range jobs {
		symbols[strings.ToUpper(jobs[i].Symbol)] = struct{}{}
	}

	var mu sync.Mutex
	prices := make(map[string]decimal.Decimal, len(symbols))

	group, groupCtx := errgroup.WithContext(ctx)
	for symbol := range symbols {
		group.Go(func() error {
			if !o.client.ValidateSymbol(groupCtx, symbol) {
				o.logger.Warn("合约校验未通过，跳过行情预取", zap.String("symbol", symbol))
				return nil
			}

			price, err := o.client.FetchPrice(groupCtx, symbol)
			if err != nil {
				o.logger.Warn("获取最新价失败，价格整形将被跳过",
					zap.String("symbol", symbol),
					zap.Error(err),
				)
				return nil
			}

			mu.Lock()
			prices[symbol] = decimal.NewFromFloat(price)
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	return prices
}

func (o *orchestrator) runJob(ctx context.Context, job *config.JobConfig, marketPrice decimal.Decimal) error {
	symbol := strings.ToUpper(job.Symbol)

	if job.Type == config.JobTypeCancel {
		_, err := o.CancelOrder(ctx, symbol, job.OrderID)
		return err
	}

	side := execution.Side(strings.ToUpper(job.Side))
	quantity := decimal.NewFromFloat(job.Quantity)
	constraints := o.resolver.Constraints(ctx, symbol)

	if err := checkMinNotional(quantity, marketPrice, constraints); err != nil {
		return err
	}

	switch job.Type {
	case config.JobTypeMarket:
		return o.submitDirect(ctx, execution.OrderIntent{
			Symbol:   symbol,
			Side:     side,
			Kind:     execution.KindMarket,
			Quantity: quantity,
		})

	case config.JobTypeLimit:
		price := decimal.NewFromFloat(job.Price)
		price, adjusted := shapeLimitPrice(side, price, marketPrice, o.execCfg.PriceBandPct, constraints)
		if adjusted {
			o.logger.Warn("限价超出允许区间，已调整",
				zap.String("symbol", symbol),
				zap.String("side", string(side)),
				zap.String("adjusted_price", price.String()),
			)
		}
		return o.submitDirect(ctx, execution.OrderIntent{
			Symbol:      symbol,
			Side:        side,
			Kind:        execution.KindLimit,
			Quantity:    quantity,
			Price:       price,
			TimeInForce: job.TimeInForce,
		})

	case config.JobTypeStopLimit:
		return o.submitDirect(ctx, execution.OrderIntent{
			Symbol:    symbol,
			Side:      side,
			Kind:      execution.KindStopLimit,
			Quantity:  quantity,
			Price:     decimal.NewFromFloat(job.Price),
			StopPrice: decimal.NewFromFloat(job.StopPrice),
		})

	case config.JobTypeTWAP:
		plan, err := strategy.BuildTWAPPlan(strategy.TWAPParams{
			Symbol:          symbol,
			Side:            side,
			TotalQuantity:   quantity,
			DurationMinutes: job.DurationMinutes,
			NumOrders:       job.NumOrders,
		}, constraints)
		if err != nil {
			return err
		}
		_, err = o.scheduler.Run(ctx, plan)
		return err

	case config.JobTypeGrid:
		lower := decimal.NewFromFloat(job.LowerPrice)
		upper := decimal.NewFromFloat(job.UpperPrice)
		lower, upper, adjusted := shapeGridBounds(side, lower, upper, marketPrice, o.execCfg.PriceBandPct, constraints)
		if adjusted {
			o.logger.Warn("网格价格区间超出允许范围，已调整",
				zap.String("symbol", symbol),
				zap.String("lower", lower.String()),
				zap.String("upper", upper.String()),
			)
		}

		plan, err := strategy.BuildGridPlan(strategy.GridParams{
			Symbol:        symbol,
			Side:          side,
			TotalQuantity: quantity,
			LowerPrice:    lower,
			UpperPrice:    upper,
			NumGrids:      job.NumGrids,
			PaceDelay:     o.execCfg.GridPaceDelay,
		}, constraints)
		if err != nil {
			return err
		}
		_, err = o.scheduler.Run(ctx, plan)
		return err

	default:
		return fmt.Errorf("未知任务类型 %q", job.Type)
	}
}

func (o *orchestrator) submitDirect(ctx context.Context, intent execution.OrderIntent) error {
	result := o.submitter.Submit(ctx, intent)
	o.monitor.RecordOrderResult(ctx, intent, result)

	if !result.Success {
		return fmt.Errorf("委托失败 [%s]: %s", result.ErrorKind, result.ErrorDetail)
	}
	return nil
}

// CancelOrder 撤销委托，先查询状态避免对终态委托发起无效撤销。
func (o *orchestrator) CancelOrder(ctx context.Context, symbol string, orderID int64) (exchange.OrderRecord, error) {
	symbol = strings.ToUpper(symbol)

	record, err := o.client.FetchOrder(ctx, symbol, orderID)
	if err != nil {
		return exchange.OrderRecord{}, fmt.Errorf("查询委托状态失败: %w", err)
	}
	if !cancellable(record.Status) {
		return record, fmt.Errorf("委托处于终态 %s，无法撤销", record.Status)
	}

	cancelled, err := o.client.CancelOrder(ctx, symbol, orderID, o.execCfg.RecvWindow)
	if err != nil {
		return exchange.OrderRecord{}, err
	}

	o.logger.Info("委托已撤销",
		zap.String("symbol", symbol),
		zap.Int64("order_id", orderID),
	)
	return cancelled, nil
}
