package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Jobs      []JobConfig     `mapstructure:"jobs"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ExchangeConfig 描述交易所连接信息。
type ExchangeConfig struct {
	Name       string      `mapstructure:"name"`
	APIKey     string      `mapstructure:"api_key"`
	APISecret  string      `mapstructure:"api_secret"`
	UseSandbox bool        `mapstructure:"use_sandbox"`
	Retry      RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制行情与元数据调用的重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// ExecutionConfig 控制下单行为。
type ExecutionConfig struct {
	RecvWindow    time.Duration `mapstructure:"recv_window"`
	GridPaceDelay time.Duration `mapstructure:"grid_pace_delay"`
	PriceBandPct  float64       `mapstructure:"price_band_pct"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// JobConfig 描述一次待执行的下单任务，可以是单笔订单或多腿策略。
type JobConfig struct {
	Type            string  `mapstructure:"type"`
	Symbol          string  `mapstructure:"symbol"`
	Side            string  `mapstructure:"side"`
	Quantity        float64 `mapstructure:"quantity"`
	Price           float64 `mapstructure:"price"`
	StopPrice       float64 `mapstructure:"stop_price"`
	TimeInForce     string  `mapstructure:"time_in_force"`
	DurationMinutes int     `mapstructure:"duration_minutes"`
	NumOrders       int     `mapstructure:"num_orders"`
	LowerPrice      float64 `mapstructure:"lower_price"`
	UpperPrice      float64 `mapstructure:"upper_price"`
	NumGrids        int     `mapstructure:"num_grids"`
	OrderID         int64   `mapstructure:"order_id"`
}

// 支持的任务类型。
const (
	JobTypeMarket    = "market"
	JobTypeLimit     = "limit"
	JobTypeStopLimit = "stop_limit"
	JobTypeTWAP      = "twap"
	JobTypeGrid      = "grid"
	JobTypeCancel    = "cancel"
)

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Exchange.Name == "" {
		err = multierr.Append(err, errors.New("exchange.name 不能为空"))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}
	if c.Execution.RecvWindow <= 0 {
		err = multierr.Append(err, errors.New("execution.recv_window 必须大于0"))
	}
	if c.Execution.GridPaceDelay < 0 {
		err = multierr.Append(err, errors.New("execution.grid_pace_delay 不能为负"))
	}
	if c.Execution.PriceBandPct < 0 || c.Execution.PriceBandPct > 0.5 {
		err = multierr.Append(err, errors.New("execution.price_band_pct 应位于[0,0.5]"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	for i := range c.Jobs {
		if jobErr := c.Jobs[i].validate(); jobErr != nil {
			err = multierr.Append(err, fmt.Errorf("jobs[%d]: %w", i, jobErr))
		}
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}

func (j *JobConfig) validate() error {
	var err error

	if j.Symbol == "" {
		err = multierr.Append(err, errors.New("symbol 不能为空"))
	}

	// 撤单任务不涉及方向与数量。
	if j.Type == JobTypeCancel {
		if j.OrderID <= 0 {
			err = multierr.Append(err, errors.New("cancel 任务需要正的 order_id"))
		}
		return err
	}

	side := strings.ToUpper(j.Side)
	if side != "BUY" && side != "SELL" {
		err = multierr.Append(err, errors.New("side 必须为 BUY 或 SELL"))
	}
	if j.Quantity <= 0 {
		err = multierr.Append(err, errors.New("quantity 必须大于0"))
	}

	switch j.Type {
	case JobTypeMarket:
	case JobTypeLimit:
		if j.Price <= 0 {
			err = multierr.Append(err, errors.New("limit 任务需要正的 price"))
		}
	case JobTypeStopLimit:
		if j.Price <= 0 || j.StopPrice <= 0 {
			err = multierr.Append(err, errors.New("stop_limit 任务需要正的 price 与 stop_price"))
		}
	case JobTypeTWAP:
		if j.NumOrders < 1 {
			err = multierr.Append(err, errors.New("twap 任务 num_orders 必须不小于1"))
		}
		if j.DurationMinutes < 0 {
			err = multierr.Append(err, errors.New("twap 任务 duration_minutes 不能为负"))
		}
	case JobTypeGrid:
		if j.NumGrids < 2 {
			err = multierr.Append(err, errors.New("grid 任务 num_grids 必须不小于2"))
		}
		if j.LowerPrice <= 0 || j.UpperPrice <= 0 || j.LowerPrice >= j.UpperPrice {
			err = multierr.Append(err, errors.New("grid 任务要求 0 < lower_price < upper_price"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("未知任务类型 %q", j.Type))
	}

	return err
}
