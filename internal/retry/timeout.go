package retry

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout 是所有超时错误的匹配目标，boundary 层据此映射 504。
var ErrTimeout = errors.New("operation timed out")

// TimeoutError 携带超时现场信息，errors.Is(err, ErrTimeout) 成立。
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.After)
}

// Is 让 TimeoutError 匹配 ErrTimeout 哨兵。
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Await 让调用方在 timeout 内等待 done 关闭，超时则放弃等待并返回
// TimeoutError。被放弃的操作不会被打断：它的最终结果由持有方消费
//（写入缓存），这里只保证调用方不会二次完成、定时器不泄漏。
func Await[T any](timeout time.Duration, op string, done <-chan struct{}, result func() (T, error)) (T, error) {
	var zero T

	if timeout <= 0 {
		<-done
		return result()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return result()
	case <-timer.C:
		return zero, &TimeoutError{Op: op, After: timeout}
	}
}
