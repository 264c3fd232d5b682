package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
)

const detailTarget = "http://edge.local/v1/products/product_p100"

// 覆盖完整的新鲜度生命周期：miss 抓取、命中返回、过期后 stale 立即响应
// 并由后台刷新把条目拉回 Fresh。
func TestDetailFreshnessLifecycle(t *testing.T) {
	f := newEdgeFixture(t, fixtureOptions{
		freshTTL: 120 * time.Millisecond,
		staleTTL: 10 * time.Second,
	})

	// 首次请求走完整抓取。
	resp := f.get(t, detailTarget)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("期望 200，得到 %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Catalog-Provenance"); got != "fresh" {
		t.Fatalf("首次请求应为 fresh，得到 %s", got)
	}
	if cc := resp.Header.Get("Cache-Control"); cc == "" {
		t.Fatalf("缺少 Cache-Control 头")
	}
	body := decodeBody(t, resp)
	product, _ := body["product"].(map[string]any)
	if product == nil || product["name"] != "蓝牙耳机" {
		t.Fatalf("主实体缺失或内容不符: %v", body["product"])
	}

	// 新鲜期内命中缓存，不再触达上游。
	resp2 := f.get(t, detailTarget)
	if got := resp2.Header.Get("X-Catalog-Provenance"); got != "cache" {
		t.Fatalf("第二次请求应命中缓存，得到 %s", got)
	}
	resp2.Body.Close()
	if hits := f.stub.CountPath("/products/p100"); hits != 1 {
		t.Fatalf("上游主实体应只被抓取一次，得到 %d", hits)
	}

	// 等过新鲜期：旧值立即返回，同时后台刷新。
	f.stub.RenameProduct("蓝牙耳机 v2")
	time.Sleep(180 * time.Millisecond)

	resp3 := f.get(t, detailTarget)
	if got := resp3.Header.Get("X-Catalog-Provenance"); got != "stale" {
		t.Fatalf("过期后应返回 stale，得到 %s", got)
	}
	stale := decodeBody(t, resp3)
	staleProduct, _ := stale["product"].(map[string]any)
	if staleProduct["name"] != "蓝牙耳机" {
		t.Fatalf("stale 响应应是旧值，得到 %v", staleProduct["name"])
	}

	// 等后台刷新落库后，下一次命中应是新值。
	waitFor(t, time.Second, func() bool {
		return f.stub.CountPath("/products/p100") >= 2
	})
	waitFor(t, time.Second, func() bool {
		resp := f.get(t, detailTarget)
		if resp.Header.Get("X-Catalog-Provenance") != "cache" {
			resp.Body.Close()
			return false
		}
		body := decodeBody(t, resp)
		product, _ := body["product"].(map[string]any)
		return product["name"] == "蓝牙耳机 v2"
	})
}

func TestDetailNotFoundPassesThrough(t *testing.T) {
	f := newEdgeFixture(t, fixtureOptions{})

	resp := f.get(t, "http://edge.local/v1/products/product_missing")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("期望 404，得到 %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != "product_not_found" {
		t.Fatalf("错误类别不符: %v", body["error"])
	}
	// 不存在是确定性结论，重试不应放大上游压力。
	if hits := f.stub.CountPath("/products/missing"); hits != 1 {
		t.Fatalf("404 不应触发重试，得到 %d 次抓取", hits)
	}
}

func TestListingEquivalentQueriesShareCache(t *testing.T) {
	f := newEdgeFixture(t, fixtureOptions{})

	resp := f.get(t, "http://edge.local/v1/products?category=Cat-Audio&brands=acme,Beta")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("期望 200，得到 %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	items, _ := body["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("期望 2 条结果，得到 %d", len(items))
	}
	if body["provenance"] != "fresh" {
		t.Fatalf("首次列表请求应为 fresh，得到 %v", body["provenance"])
	}

	// 大小写与品牌顺序不同的等价查询应命中同一条目。
	resp2 := f.get(t, "http://edge.local/v1/products?category=cat-audio&brands=beta,ACME")
	if got := resp2.Header.Get("X-Catalog-Provenance"); got != "cache" {
		t.Fatalf("等价查询应命中缓存，得到 %s", got)
	}
	resp2.Body.Close()
	if hits := f.stub.CountPath("/products"); hits != 1 {
		t.Fatalf("上游查询应只执行一次，得到 %d", hits)
	}
}

func TestInvalidProductIDRejected(t *testing.T) {
	f := newEdgeFixture(t, fixtureOptions{})

	resp := f.get(t, "http://edge.local/v1/products/%20")
	if resp.StatusCode != fiber.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		t.Fatalf("空白 id 应被拒绝，得到 %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// waitFor 轮询直到条件成立或超时。
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("等待条件超时")
}
