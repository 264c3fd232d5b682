package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/catalog-edge/catalog-edge/internal/catalog"
)

// storeStub 模拟后端文档存储的 REST 接口，供集成测试复用。
// 每个端点的命中次数与故障开关都可以在测试里独立控制。
type storeStub struct {
	server *httptest.Server
	URL    string

	mu           sync.Mutex
	requests     []RecordedRequest
	productDelay time.Duration
	reviewsFail  bool
	productFail  bool
	product      catalog.Product
}

// RecordedRequest 捕获每次请求的方法与路径，便于断言读路径的合流行为。
type RecordedRequest struct {
	Method string
	Path   string
}

func newStoreStub(t *testing.T) *storeStub {
	t.Helper()

	stub := &storeStub{
		product: catalog.Product{
			ID:         "p100",
			Name:       "蓝牙耳机",
			Brand:      "acme",
			CategoryID: "cat-audio",
			SellerID:   "s7",
			Price:      decimal.RequireFromString("129.90"),
			Currency:   "CNY",
			RelatedIDs: []string{"p101", "p102"},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/products/", stub.handleProductTree)
	mux.HandleFunc("/products", stub.handleQuery)
	mux.HandleFunc("/sellers/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, catalog.Seller{ID: "s7", Name: "Acme 官方店", Rating: 4.6})
	})
	mux.HandleFunc("/inventory/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, catalog.Inventory{InStock: true, Quantity: 42})
	})
	mux.HandleFunc("/categories/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, catalog.Category{ID: "cat-audio", Name: "音频设备"})
	})

	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.record(r)
		mux.ServeHTTP(w, r)
	}))
	stub.URL = stub.server.URL
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *storeStub) handleProductTree(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/products/count":
		writeJSON(w, map[string]int{"total": 2})
	case path == "/products/facets":
		writeJSON(w, map[string]map[string]int{"counts": {"acme": 2}})
	case path == "/products/batch":
		writeJSON(w, map[string][]catalog.Product{"items": {{ID: "p101", Name: "耳机壳"}}})
	case strings.HasSuffix(path, "/reviews"):
		s.mu.Lock()
		fail := s.reviewsFail
		s.mu.Unlock()
		if fail {
			http.Error(w, "reviews backend down", http.StatusInternalServerError)
			return
		}
		writeJSON(w, catalog.ReviewSummary{
			Average: 4.2,
			Count:   17,
			Recent:  []catalog.Review{{ID: "r1", Author: "momo", Rating: 5}},
		})
	default:
		s.mu.Lock()
		delay := s.productDelay
		fail := s.productFail
		product := s.product
		s.mu.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}
		if fail {
			http.Error(w, "primary backend down", http.StatusBadGateway)
			return
		}
		if strings.TrimPrefix(path, "/products/") != product.ID {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, product)
	}
}

func (s *storeStub) handleQuery(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	product := s.product
	s.mu.Unlock()
	writeJSON(w, map[string][]catalog.Product{
		"items": {product, {ID: "p101", Name: "耳机壳", Brand: "acme"}},
	})
}

func (s *storeStub) record(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, RecordedRequest{Method: r.Method, Path: r.URL.Path})
}

// CountPath 统计指定路径被请求的次数。
func (s *storeStub) CountPath(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, req := range s.requests {
		if req.Path == path {
			count++
		}
	}
	return count
}

// SetReviewsFail 控制评价端点是否返回 500。
func (s *storeStub) SetReviewsFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviewsFail = fail
}

// SetProductDelay 给主实体端点注入延迟，用于模拟慢上游。
func (s *storeStub) SetProductDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.productDelay = d
}

// SetProductFail 控制主实体端点是否返回 502。
func (s *storeStub) SetProductFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.productFail = fail
}

// RenameProduct 更新库存商品名，模拟上游数据变化。
func (s *storeStub) RenameProduct(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.product.Name = name
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
