package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/catalog-edge/catalog-edge/internal/cache"
	"github.com/catalog-edge/catalog-edge/internal/fetch"
	"github.com/catalog-edge/catalog-edge/internal/flight"
	"github.com/catalog-edge/catalog-edge/internal/readpath"
	"github.com/catalog-edge/catalog-edge/internal/retry"
	"github.com/catalog-edge/catalog-edge/internal/revalidate"
	"github.com/catalog-edge/catalog-edge/internal/server"
	"github.com/catalog-edge/catalog-edge/internal/server/routes"
	"github.com/catalog-edge/catalog-edge/internal/source"
)

// edgeFixture 按 main.run 的装配顺序搭出完整读路径，
// 只是把文档存储换成 stub、TTL 换成测试友好的毫秒级。
type edgeFixture struct {
	app   *fiber.App
	store *cache.Store
	stub  *storeStub
}

type fixtureOptions struct {
	freshTTL     time.Duration
	staleTTL     time.Duration
	fetchTimeout time.Duration
}

func newEdgeFixture(t *testing.T, opts fixtureOptions) *edgeFixture {
	t.Helper()

	if opts.freshTTL == 0 {
		opts.freshTTL = 30 * time.Second
	}
	if opts.staleTTL == 0 {
		opts.staleTTL = 5 * time.Minute
	}
	if opts.fetchTimeout == 0 {
		opts.fetchTimeout = 3 * time.Second
	}

	stub := newStoreStub(t)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	docStore, err := source.NewHTTPStore(stub.URL, nil)
	if err != nil {
		t.Fatalf("store client error: %v", err)
	}

	cacheStore := cache.NewStore(cache.Options{
		FreshTTL:   opts.freshTTL,
		StaleTTL:   opts.staleTTL,
		MaxEntries: 128,
	})
	flights := flight.NewCoalescer()
	exec := retry.NewExecutor(2, 10*time.Millisecond, 50*time.Millisecond)
	registry := fetch.NewRegistry(docStore, exec, logger, fetch.Options{})

	handler := readpath.NewHandler(logger, cacheStore, flights, registry, nil, opts.fetchTimeout)
	scheduler := revalidate.NewScheduler(flights, handler.Load, logger, 2)
	handler.SetRevalidator(scheduler)
	t.Cleanup(scheduler.Close)

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Handler:    handler,
		ListenPort: 5000,
	})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}
	routes.RegisterCacheRoutes(app, cacheStore, flights)

	return &edgeFixture{app: app, store: cacheStore, stub: stub}
}

func (f *edgeFixture) get(t *testing.T, target string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return payload
}
