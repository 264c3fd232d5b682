// Package flight tracks in-flight aggregate fetches per cache key so that
// concurrent callers for the same key share one upstream fetch.
package flight

import (
	"context"
	"fmt"
	"sync"

	"github.com/catalog-edge/catalog-edge/internal/catalog"
)

// Flight 是一次进行中的聚合抓取。所有等待者通过 Done/Result
// 观察到同一个最终结果或同一个错误。
type Flight struct {
	done chan struct{}
	agg  *catalog.Aggregate
	err  error
}

// Done 在抓取尘埃落定后关闭。
func (f *Flight) Done() <-chan struct{} {
	return f.done
}

// Result 返回抓取结果。只应在 Done 关闭后读取。
func (f *Flight) Result() (*catalog.Aggregate, error) {
	return f.agg, f.err
}

// Coalescer 维护 key → Flight 的注册表。检查与创建在同一把
// 注册表锁下完成，保证任一时刻每个 key 至多一个 Flight。
type Coalescer struct {
	mu      sync.Mutex
	flights map[string]*Flight
}

// NewCoalescer 构造空注册表。
func NewCoalescer() *Coalescer {
	return &Coalescer{flights: make(map[string]*Flight)}
}

// Lookup 返回 key 当前的 Flight（若存在）。
func (c *Coalescer) Lookup(key string) (*Flight, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fl, ok := c.flights[key]
	return fl, ok
}

// Coalesce 返回 key 的共享 Flight：已有则直接复用，否则创建并在
// 独立 goroutine 中执行 fn。fn 运行在与调用方解耦的 context 上，
// 调用方超时离场不会取消共享抓取，后到的结果仍会被持有方消费。
// 注册项在 fn 尘埃落定（含 panic）后先移除、再关闭 done，保证同一
// key 的新 Flight 只能在旧的完全退场后创建。
func (c *Coalescer) Coalesce(ctx context.Context, key string, fn func(ctx context.Context) (*catalog.Aggregate, error)) *Flight {
	c.mu.Lock()
	if fl, ok := c.flights[key]; ok {
		c.mu.Unlock()
		return fl
	}

	fl := &Flight{done: make(chan struct{})}
	c.flights[key] = fl
	c.mu.Unlock()

	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				fl.err = fmt.Errorf("aggregate fetch panicked: %v", recovered)
			}
			c.mu.Lock()
			if c.flights[key] == fl {
				delete(c.flights, key)
			}
			c.mu.Unlock()
			close(fl.done)
		}()
		fl.agg, fl.err = fn(context.WithoutCancel(ctx))
	}()

	return fl
}

// InFlight 返回当前进行中的抓取数量，供诊断接口使用。
func (c *Coalescer) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.flights)
}

// Clear 丢弃全部注册项。进行中的抓取仍会跑完，但不再被后续请求复用。
func (c *Coalescer) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flights = make(map[string]*Flight)
}
