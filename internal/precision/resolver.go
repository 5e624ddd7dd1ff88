package precision

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"futures-trader/internal/exchange"
)

type metadataSource interface {
	FetchSymbolInfo(ctx context.Context, symbol string) (exchange.SymbolInfo, error)
}

// Resolver 从交易所元数据推导每个合约的数值约束，并在进程内缓存。
// 缓存一经写入只读不改，可被多个策略并发读取。
type Resolver struct {
	source metadataSource
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]SymbolConstraints
}

// NewResolver 创建约束解析器。
func NewResolver(source metadataSource, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		source: source,
		logger: logger,
		cache:  make(map[string]SymbolConstraints),
	}
}

// Constraints 返回合约约束。元数据不可用或合约缺失时返回兜底默认值，
// 默认值不进入缓存，待元数据恢复后仍可取得真实约束。
func (r *Resolver) Constraints(ctx context.Context, symbol string) SymbolConstraints {
	key := strings.ToUpper(strings.TrimSpace(symbol))

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	info, err := r.source.FetchSymbolInfo(ctx, key)
	if err != nil {
		r.logger.Warn("获取合约元数据失败，使用默认约束",
			zap.String("symbol", key),
			zap.Error(err),
		)
		return DefaultConstraints(key)
	}

	constraints := constraintsFromInfo(key, info)

	r.mu.Lock()
	if existing, ok := r.cache[key]; ok {
		constraints = existing
	} else {
		r.cache[key] = constraints
	}
	r.mu.Unlock()

	return constraints
}

func constraintsFromInfo(symbol string, info exchange.SymbolInfo) SymbolConstraints {
	constraints := SymbolConstraints{
		Symbol:            symbol,
		TickSize:          info.TickSize,
		QuantityStep:      info.StepSize,
		MinNotional:       info.MinNotional,
		PricePrecision:    info.PricePrecision,
		QuantityPrecision: info.QuantityPrecision,
	}

	if constraints.PricePrecision <= 0 {
		constraints.PricePrecision = defaultPricePrecision
	}
	if constraints.QuantityPrecision <= 0 {
		constraints.QuantityPrecision = defaultQuantityPrecision
	}
	if constraints.TickSize.Sign() <= 0 {
		constraints.TickSize = defaultTickSize
	}
	if constraints.QuantityStep.Sign() <= 0 {
		constraints.QuantityStep = stepFromPrecision(constraints.QuantityPrecision)
	}
	if constraints.MinNotional.Sign() <= 0 {
		constraints.MinNotional = defaultMinNotional
	}

	return constraints
}
