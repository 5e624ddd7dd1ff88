package strategy

import (
	"context"
	"time"
)

// Clock 抽象调度等待，便于测试中注入虚拟时钟而不依赖真实墙钟。
type Clock interface {
	Now() time.Time
	// Wait 阻塞 d 时长，期间上下文取消则立即返回其错误。
	Wait(ctx context.Context, d time.Duration) error
}

// SystemClock 基于真实时间实现 Clock。
type SystemClock struct{}

// Now 返回当前 UTC 时间。
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Wait 等待指定时长，可被上下文取消打断。
func (SystemClock) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
