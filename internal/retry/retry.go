// Package retry provides the two latency-control primitives of the read
// path: a bounded exponential-backoff executor and a deadline guard that
// races an in-flight operation against a timer.
package retry

import (
	"context"
	"time"
)

// Executor 以指数退避重试一个易失败操作。退避是确定性的（无抖动），
// 第 n 次失败后休眠 min(BaseDelay<<n, MaxDelay)，最后一次失败后不再休眠。
type Executor struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// sleep 可在测试中替换，生产路径始终使用 context 感知的定时器。
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor 构造执行器，参数非法时回退到保守默认值。
func NewExecutor(maxRetries int, baseDelay, maxDelay time.Duration) Executor {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	return Executor{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		MaxDelay:   maxDelay,
		sleep:      sleepContext,
	}
}

// Do 执行 op，失败时按 shouldRetry 判定是否重试。永久失败与重试耗尽
// 都立即向上传播原始错误。总尝试次数至多为 MaxRetries+1。
func Do[T any](ctx context.Context, e Executor, shouldRetry func(error) bool, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	sleep := e.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt <= e.MaxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if shouldRetry != nil && !shouldRetry(err) {
			return zero, err
		}
		if attempt == e.MaxRetries {
			break
		}
		if err := sleep(ctx, e.delay(attempt)); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

// delay 计算第 attempt 次失败后的退避时长。
func (e Executor) delay(attempt int) time.Duration {
	d := e.BaseDelay << attempt
	if d <= 0 || d > e.MaxDelay {
		return e.MaxDelay
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
