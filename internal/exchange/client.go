package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-trader/internal/config"
)

// Client 封装 ccxt 的 Binance USDⓈ-M 合约客户端。
// 行情与元数据调用带重试机制；下单调用不重试，保证至多一次语义。
type Client struct {
	cfg      config.ExchangeConfig
	logger   *zap.Logger
	exchange *ccxt.Binanceusdm

	marketsMu     sync.Mutex
	marketsLoaded bool
}

// NewClient 构造 Binance USDⓈ-M 客户端。
func NewClient(cfg config.ExchangeConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
		"options": map[string]interface{}{
			"adjustForTimeDifference": true,
			"defaultType":             "future",
		},
	}

	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}

	ex := ccxt.NewBinanceusdm(userConfig)
	if cfg.UseSandbox {
		ex.SetSandboxMode(true)
	}

	return &Client{
		cfg:      cfg,
		logger:   logger,
		exchange: ex,
	}, nil
}

// FetchSymbolInfo 返回指定合约的交易规则元数据。
// 合约符号与交易所规范符号做大小写不敏感的精确匹配。
func (c *Client) FetchSymbolInfo(ctx context.Context, symbol string) (SymbolInfo, error) {
	if err := c.ensureMarketsLoaded(ctx); err != nil {
		return SymbolInfo{}, err
	}

	canonical := strings.ToUpper(strings.TrimSpace(symbol))
	raw := c.exchange.Market(canonical)
	market, ok := raw.(map[string]interface{})
	if !ok || market == nil {
		return SymbolInfo{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	return parseSymbolInfo(canonical, market), nil
}

// ValidateSymbol 检查合约是否存在于交易所元数据中。
func (c *Client) ValidateSymbol(ctx context.Context, symbol string) bool {
	_, err := c.FetchSymbolInfo(ctx, symbol)
	return err == nil
}

// FetchPrice 获取合约最新成交价。
func (c *Client) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	var price float64

	err := c.callWithRetry(ctx, "fetch_ticker", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}

		ticker, err := c.exchange.FetchTicker(strings.ToUpper(symbol))
		if err != nil {
			return err
		}

		price = priceFromTicker(ticker)
		if price <= 0 {
			return fmt.Errorf("行情返回价格无效: %s", symbol)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return price, nil
}

// CreateOrder 提交一笔委托。不做任何重试，失败直接返回交易所错误。
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (OrderAck, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return OrderAck{}, ctxErr
	}
	if err := c.ensureMarketsLoaded(ctx); err != nil {
		return OrderAck{}, err
	}

	symbol := strings.ToUpper(req.Symbol)
	side := strings.ToLower(req.Side)
	params, buildErr := buildOrderParams(req)
	if buildErr != nil {
		return OrderAck{}, buildErr
	}

	var (
		order ccxt.Order
		err   error
	)

	switch req.Type {
	case OrderTypeMarket:
		order, err = c.exchange.CreateMarketOrder(symbol, side, req.Quantity,
			ccxt.WithCreateMarketOrderParams(params))
	case OrderTypeLimit:
		order, err = c.exchange.CreateLimitOrder(symbol, side, req.Quantity, req.Price,
			ccxt.WithCreateLimitOrderParams(params))
	case OrderTypeStopLimit:
		order, err = c.exchange.CreateOrder(symbol, "limit", side, req.Quantity,
			ccxt.WithCreateOrderPrice(req.Price),
			ccxt.WithCreateOrderParams(params))
	}

	if err != nil {
		return OrderAck{}, err
	}

	return ackFromOrder(symbol, order), nil
}

// buildOrderParams 把统一请求映射为 ccxt 下单附加参数。
func buildOrderParams(req OrderRequest) (map[string]interface{}, error) {
	params := map[string]interface{}{
		"recvWindow": recvWindowMillis(req.RecvWindow),
	}

	switch req.Type {
	case OrderTypeMarket:
	case OrderTypeLimit:
		tif := req.TimeInForce
		if tif == "" {
			tif = "GTC"
		}
		params["timeInForce"] = tif
	case OrderTypeStopLimit:
		// 止损限价单统一使用 GTC，与交易所对触发单的要求保持一致。
		params["timeInForce"] = "GTC"
		params["stopPrice"] = req.StopPrice
	default:
		return nil, fmt.Errorf("不支持的订单类型 %q", req.Type)
	}

	return params, nil
}

// CancelOrder 撤销指定委托。
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64, recvWindow time.Duration) (OrderRecord, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return OrderRecord{}, ctxErr
	}
	if err := c.ensureMarketsLoaded(ctx); err != nil {
		return OrderRecord{}, err
	}

	order, err := c.exchange.CancelOrder(strconv.FormatInt(orderID, 10),
		ccxt.WithCancelOrderSymbol(strings.ToUpper(symbol)),
		ccxt.WithCancelOrderParams(map[string]interface{}{
			"recvWindow": recvWindowMillis(recvWindow),
		}))
	if err != nil {
		return OrderRecord{}, err
	}

	return recordFromOrder(order), nil
}

// FetchOpenOrders 获取未成交委托，symbol 为空时返回全部。
func (c *Client) FetchOpenOrders(ctx context.Context, symbol string) ([]OrderRecord, error) {
	var raw []ccxt.Order

	err := c.callWithRetry(ctx, "fetch_open_orders", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}

		var opts []ccxt.FetchOpenOrdersOptions
		if symbol != "" {
			opts = append(opts, ccxt.WithFetchOpenOrdersSymbol(strings.ToUpper(symbol)))
		}

		orders, err := c.exchange.FetchOpenOrders(opts...)
		if err != nil {
			return err
		}
		raw = orders
		return nil
	})
	if err != nil {
		return nil, err
	}

	records := make([]OrderRecord, 0, len(raw))
	for _, order := range raw {
		records = append(records, recordFromOrder(order))
	}
	return records, nil
}

// FetchOrder 查询单笔委托状态。
func (c *Client) FetchOrder(ctx context.Context, symbol string, orderID int64) (OrderRecord, error) {
	var record OrderRecord

	err := c.callWithRetry(ctx, "fetch_order", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}

		order, err := c.exchange.FetchOrder(strconv.FormatInt(orderID, 10),
			ccxt.WithFetchOrderSymbol(strings.ToUpper(symbol)))
		if err != nil {
			return err
		}
		record = recordFromOrder(order)
		return nil
	})
	if err != nil {
		return OrderRecord{}, err
	}

	return record, nil
}

// FetchBalances 获取账户各资产余额。
func (c *Client) FetchBalances(ctx context.Context) ([]AssetBalance, error) {
	var balances ccxt.Balances

	err := c.callWithRetry(ctx, "fetch_balance", func() error {
		result, err := c.exchange.FetchBalance()
		if err != nil {
			return err
		}
		balances = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	assets := make([]AssetBalance, 0, len(balances.Total))
	for code, total := range balances.Total {
		if total == nil || *total == 0 {
			continue
		}
		entry := AssetBalance{Asset: code, Total: *total}
		if balances.Free != nil {
			if free, ok := balances.Free[code]; ok && free != nil {
				entry.Available = *free
			}
		}
		assets = append(assets, entry)
	}
	return assets, nil
}

func (c *Client) ensureMarketsLoaded(ctx context.Context) error {
	c.marketsMu.Lock()
	defer c.marketsMu.Unlock()

	if c.marketsLoaded {
		return nil
	}

	loadErr := c.callWithRetry(ctx, "load_markets", func() error {
		_, err := c.exchange.LoadMarkets()
		return err
	})
	if loadErr != nil {
		return loadErr
	}

	c.marketsLoaded = true
	c.logger.Info("已完成市场元数据加载", zap.String("exchange", c.cfg.Name))
	return nil
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := c.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("交易所调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		normalizedErr, retry := c.classifyError(err)

		if errors.Is(normalizedErr, ErrMaintenance) {
			c.logger.Warn("交易所维护中",
				zap.String("operation", operation),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		if !retry || attempt >= c.cfg.Retry.MaxAttempts {
			c.logger.Error("交易所调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}

		c.logger.Warn("交易所调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(normalizedErr),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func (c *Client) classifyError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) && ccxtErr.Type == ccxt.OnMaintenanceErrType {
		message := strings.TrimSpace(ccxtErr.Message)
		if message == "" {
			message = "exchange under maintenance"
		}
		return fmt.Errorf("%w: %s", ErrMaintenance, message), false
	}

	// 可重试的错误类别统一由 errors.go 判定，避免两处清单漂移。
	if IsRetryable(err) {
		return err, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return err, true
	}

	return err, false
}

func recvWindowMillis(window time.Duration) int64 {
	if window <= 0 {
		window = 60 * time.Second
	}
	return window.Milliseconds()
}

func parseSymbolInfo(symbol string, market map[string]interface{}) SymbolInfo {
	info := SymbolInfo{Symbol: symbol}

	raw, _ := market["info"].(map[string]interface{})
	if raw != nil {
		info.PricePrecision = int(parseNumeric(raw["pricePrecision"]))
		info.QuantityPrecision = int(parseNumeric(raw["quantityPrecision"]))

		if filters, ok := raw["filters"].([]interface{}); ok {
			for _, item := range filters {
				filter, ok := item.(map[string]interface{})
				if !ok {
					continue
				}
				switch asString(filter["filterType"]) {
				case "PRICE_FILTER":
					info.TickSize = parseDecimal(filter["tickSize"])
				case "LOT_SIZE":
					info.StepSize = parseDecimal(filter["stepSize"])
				case "MIN_NOTIONAL":
					info.MinNotional = parseDecimal(filter["notional"])
				}
			}
		}
	}

	// ccxt 统一字段作为原始 filters 缺失时的兜底。
	if info.TickSize.IsZero() {
		if prec, ok := market["precision"].(map[string]interface{}); ok {
			info.TickSize = parseDecimal(prec["price"])
			if info.StepSize.IsZero() {
				info.StepSize = parseDecimal(prec["amount"])
			}
		}
	}
	if info.MinNotional.IsZero() {
		if limits, ok := market["limits"].(map[string]interface{}); ok {
			if cost, ok := limits["cost"].(map[string]interface{}); ok {
				info.MinNotional = parseDecimal(cost["min"])
			}
		}
	}

	return info
}

func priceFromTicker(ticker ccxt.Ticker) float64 {
	if ticker.Last != nil && *ticker.Last > 0 {
		return *ticker.Last
	}
	if ticker.Close != nil && *ticker.Close > 0 {
		return *ticker.Close
	}
	if ticker.Info != nil {
		if v := parseNumeric(ticker.Info["lastPrice"]); v > 0 {
			return v
		}
		if v := parseNumeric(ticker.Info["price"]); v > 0 {
			return v
		}
	}
	return 0
}

func ackFromOrder(symbol string, order ccxt.Order) OrderAck {
	ack := OrderAck{
		OrderID:     orderIDFrom(order),
		Symbol:      symbol,
		Status:      derefString(order.Status),
		ExecutedQty: derefFloat(order.Filled),
		AvgPrice:    derefFloat(order.Average),
	}
	if order.Info != nil {
		if ack.Status == "" {
			ack.Status = asString(order.Info["status"])
		}
		if ack.ExecutedQty == 0 {
			ack.ExecutedQty = parseNumeric(order.Info["executedQty"])
		}
		if ack.AvgPrice == 0 {
			ack.AvgPrice = parseNumeric(order.Info["avgPrice"])
		}
	}
	return ack
}

func recordFromOrder(order ccxt.Order) OrderRecord {
	record := OrderRecord{
		OrderID:     orderIDFrom(order),
		Symbol:      derefString(order.Symbol),
		Side:        strings.ToUpper(derefString(order.Side)),
		Type:        strings.ToUpper(derefString(order.Type)),
		Status:      derefString(order.Status),
		Price:       derefFloat(order.Price),
		OrigQty:     derefFloat(order.Amount),
		ExecutedQty: derefFloat(order.Filled),
	}
	if order.Info != nil {
		if record.Status == "" {
			record.Status = asString(order.Info["status"])
		}
		if record.StopPrice == 0 {
			record.StopPrice = parseNumeric(order.Info["stopPrice"])
		}
		if record.OrigQty == 0 {
			record.OrigQty = parseNumeric(order.Info["origQty"])
		}
	}
	return record
}

func orderIDFrom(order ccxt.Order) int64 {
	if order.Id != nil {
		if id, err := strconv.ParseInt(strings.TrimSpace(*order.Id), 10, 64); err == nil {
			return id
		}
	}
	if order.Info != nil {
		return int64(parseNumeric(order.Info["orderId"]))
	}
	return 0
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func asString(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

func parseDecimal(value interface{}) decimal.Decimal {
	switch v := value.(type) {
	case string:
		if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	}
	return decimal.Zero
}

func parseNumeric(value interface{}) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		return v
	case *float64:
		if v != nil {
			return *v
		}
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return 0
}
