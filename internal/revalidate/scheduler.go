// Package revalidate refreshes stale cache entries in the background so
// stale reads never block on the document store.
package revalidate

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/smallnest/chanx"

	"github.com/catalog-edge/catalog-edge/internal/catalog"
	"github.com/catalog-edge/catalog-edge/internal/flight"
)

// LoadFunc 执行一次完整的聚合抓取并在成功时写入缓存。
// 由进程入口注入，调度器本身不关心缓存细节。
type LoadFunc func(ctx context.Context, key catalog.Key) (*catalog.Aggregate, error)

// Scheduler 把待刷新的键投进无界队列，由固定数量的 worker 消费。
// worker 数量即后台刷新并发上限，避免慢源被刷新流量压垮。
type Scheduler struct {
	flights *flight.Coalescer
	load    LoadFunc
	logger  *logrus.Logger
	queue   *chanx.UnboundedChan[catalog.Key]

	mu      sync.Mutex
	pending map[string]struct{}
	closed  bool

	wg sync.WaitGroup
}

// NewScheduler 启动 workers 个后台消费者。workers 小于 1 时按 1 处理。
func NewScheduler(flights *flight.Coalescer, load LoadFunc, logger *logrus.Logger, workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler{
		flights: flights,
		load:    load,
		logger:  logger,
		queue:   chanx.NewUnboundedChan[catalog.Key](context.Background(), 16),
		pending: make(map[string]struct{}),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Schedule 请求后台刷新 key。已有同 key 的进行中抓取或排队刷新时是 no-op，
// 调用方永远不会被阻塞。
func (s *Scheduler) Schedule(key catalog.Key) {
	cacheKey := key.String()
	if _, ok := s.flights.Lookup(cacheKey); ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, ok := s.pending[cacheKey]; ok {
		return
	}
	s.pending[cacheKey] = struct{}{}

	// 入队必须在锁内完成：closed 检查和 Close 对 queue.In 的关闭
	// 靠同一把锁定序，否则并发关闭时这里会写已关闭的 channel。
	// 无界队列的 In 端永不阻塞，持锁发送不会拖住其他调用方。
	s.queue.In <- key
}

// Close 停止接收新任务并等待 worker 退场。已入队的刷新会被跑完。
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.queue.In)
	s.wg.Wait()
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for key := range s.queue.Out {
		s.refresh(key)
	}
}

// refresh 执行一次后台刷新。失败只记日志：既不向任何调用方抛错，
// 也不触碰既有的 stale 条目，下一次 stale 读取会再次触发刷新。
func (s *Scheduler) refresh(key catalog.Key) {
	cacheKey := key.String()

	// pending 标记要等刷新尘埃落定后才摘除，摘早了会让同 key 的
	// stale 读在 worker 启动窗口内重复排队。
	defer func() {
		s.mu.Lock()
		delete(s.pending, cacheKey)
		s.mu.Unlock()
	}()

	if _, ok := s.flights.Lookup(cacheKey); ok {
		return
	}

	fl := s.flights.Coalesce(context.Background(), cacheKey, func(ctx context.Context) (*catalog.Aggregate, error) {
		return s.load(ctx, key)
	})
	<-fl.Done()

	if _, err := fl.Result(); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"action": "revalidate_failed",
			"key":    cacheKey,
		}).Warn("background revalidation failed, keeping stale entry")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"action": "revalidate_done",
		"key":    cacheKey,
	}).Debug("background revalidation completed")
}
