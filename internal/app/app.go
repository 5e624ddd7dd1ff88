package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"futures-trader/internal/config"
	"futures-trader/internal/store"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 执行配置中的全部任务后退出。任务之间顺序执行，
// 收到退出信号时在当前任务的取消点停止，已提交的委托不回滚。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("交易系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("exchange", a.cfg.Exchange.Name),
		zap.Bool("sandbox", a.cfg.Exchange.UseSandbox),
		zap.Int("jobs", len(a.cfg.Jobs)),
	)

	orch, err := newOrchestrator(a.cfg, a.logger, a.store)
	if err != nil {
		return err
	}

	a.logBalances(ctx, orch)

	if err := orch.RunJobs(ctx, a.cfg.Jobs); err != nil {
		return err
	}

	a.logOpenOrders(ctx, orch)
	return nil
}

// logBalances 在任务执行前打印账户资产快照，便于事后核对成交。
func (a *App) logBalances(ctx context.Context, orch *orchestrator) {
	balances, err := orch.client.FetchBalances(ctx)
	if err != nil {
		a.logger.Warn("获取账户余额失败", zap.Error(err))
		return
	}

	for _, balance := range balances {
		a.logger.Info("账户资产",
			zap.String("asset", balance.Asset),
			zap.Float64("total", balance.Total),
			zap.Float64("available", balance.Available),
		)
	}
}

// logOpenOrders 在任务完成后打印各合约的未成交委托。
func (a *App) logOpenOrders(ctx context.Context, orch *orchestrator) {
	seen := make(map[string]struct{}, len(a.cfg.Jobs))
	for i := range a.cfg.Jobs {
		symbol := strings.ToUpper(a.cfg.Jobs[i].Symbol)
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}

		orders, err := orch.client.FetchOpenOrders(ctx, symbol)
		if err != nil {
			a.logger.Warn("获取未成交委托失败",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
			continue
		}

		for _, order := range orders {
			a.logger.Info("未成交委托",
				zap.String("symbol", order.Symbol),
				zap.Int64("order_id", order.OrderID),
				zap.String("side", order.Side),
				zap.String("type", order.Type),
				zap.String("status", order.Status),
				zap.Float64("price", order.Price),
				zap.Float64("orig_qty", order.OrigQty),
				zap.Float64("executed_qty", order.ExecutedQty),
			)
		}
	}
}
