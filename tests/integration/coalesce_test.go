package integration

import (
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
)

// 并发打同一个冷 key 时只应有一次上游抓取，其余请求共享同一结果。
func TestConcurrentMissesCoalesceToSingleFetch(t *testing.T) {
	f := newEdgeFixture(t, fixtureOptions{})
	f.stub.SetProductDelay(150 * time.Millisecond)

	const waiters = 12
	provenances := make([]string, waiters)
	statuses := make([]int, waiters)

	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			resp := f.get(t, detailTarget)
			statuses[idx] = resp.StatusCode
			provenances[idx] = resp.Header.Get("X-Catalog-Provenance")
			resp.Body.Close()
		}(i)
	}
	wg.Wait()

	freshCount := 0
	for i := 0; i < waiters; i++ {
		if statuses[i] != fiber.StatusOK {
			t.Fatalf("请求 %d 失败: %d", i, statuses[i])
		}
		switch provenances[i] {
		case "fresh":
			freshCount++
		case "dedupe", "cache":
		default:
			t.Fatalf("请求 %d 出现意外来源标记 %q", i, provenances[i])
		}
	}
	if freshCount > 1 {
		t.Fatalf("最多一个请求应标记 fresh，得到 %d", freshCount)
	}
	if hits := f.stub.CountPath("/products/p100"); hits != 1 {
		t.Fatalf("上游主实体抓取应合并为一次，得到 %d", hits)
	}
}

// 上游持续失败时，等待同一航班的请求拿到同一个错误结论。
func TestCoalescedFailureSharedByWaiters(t *testing.T) {
	f := newEdgeFixture(t, fixtureOptions{})
	f.stub.SetProductFail(true)
	f.stub.SetProductDelay(50 * time.Millisecond)

	const waiters = 6
	statuses := make([]int, waiters)

	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			resp := f.get(t, detailTarget)
			statuses[idx] = resp.StatusCode
			resp.Body.Close()
		}(i)
	}
	wg.Wait()

	for i, status := range statuses {
		if status != fiber.StatusBadGateway {
			t.Fatalf("请求 %d 期望 502，得到 %d", i, status)
		}
	}
}
