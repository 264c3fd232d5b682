// Package readpath implements the boundary of the aggregator: it decides,
// per request, between serving cached data, joining an in-flight fetch,
// serving stale data while revalidating in the background, and starting a
// fresh coalesced fetch.
package readpath

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/catalog-edge/catalog-edge/internal/cache"
	"github.com/catalog-edge/catalog-edge/internal/catalog"
	"github.com/catalog-edge/catalog-edge/internal/fetch"
	"github.com/catalog-edge/catalog-edge/internal/flight"
	"github.com/catalog-edge/catalog-edge/internal/logging"
	"github.com/catalog-edge/catalog-edge/internal/retry"
)

// Provenance 标记响应出自哪条路径，透出为响应字段与头部，方便观测与测试。
const (
	ProvenanceCache  = "cache"
	ProvenanceStale  = "stale"
	ProvenanceDedupe = "dedupe"
	ProvenanceFresh  = "fresh"
)

// Revalidator 是 handler 对后台刷新调度器的最小依赖面。
type Revalidator interface {
	Schedule(key catalog.Key)
}

// Handler 持有读路径的全部协作者，按固定决策顺序响应聚合请求。
type Handler struct {
	logger       *logrus.Logger
	cache        *cache.Store
	flights      *flight.Coalescer
	fetchers     *fetch.Registry
	revalidator  Revalidator
	fetchTimeout time.Duration
}

// NewHandler 构造 boundary handler。fetchTimeout<=0 表示不设上限。
func NewHandler(logger *logrus.Logger, store *cache.Store, flights *flight.Coalescer, fetchers *fetch.Registry, revalidator Revalidator, fetchTimeout time.Duration) *Handler {
	return &Handler{
		logger:       logger,
		cache:        store,
		flights:      flights,
		fetchers:     fetchers,
		revalidator:  revalidator,
		fetchTimeout: fetchTimeout,
	}
}

// SetRevalidator 在调度器构造完成后回填依赖。调度器的抓取函数就是
// 本 handler 的 Load，两者互相引用，只能二段装配。
func (h *Handler) SetRevalidator(r Revalidator) {
	h.revalidator = r
}

// Load 执行一次完整抓取并在成功时写缓存。缓存写入发生在共享抓取
// 内部：即使发起它的调用方已经超时离场，结果仍会落盘给下一个请求。
func (h *Handler) Load(ctx context.Context, key catalog.Key) (*catalog.Aggregate, error) {
	agg, err := h.fetchers.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	h.cache.Put(key.String(), agg)
	return agg, nil
}

// HandleDetail 响应 GET /v1/products/:id。
func (h *Handler) HandleDetail(c fiber.Ctx) error {
	key, err := catalog.DetailKey(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_product_id"})
	}
	return h.respond(c, key)
}

// HandleListing 响应 GET /v1/products。
func (h *Handler) HandleListing(c fiber.Ctx) error {
	key := catalog.ListingKey(parseListingQuery(c))
	return h.respond(c, key)
}

// parseListingQuery 把查询串映射为 ListingQuery，归一化交给 catalog 层。
func parseListingQuery(c fiber.Ctx) catalog.ListingQuery {
	q := catalog.ListingQuery{
		Category: c.Query("category"),
		Sort:     c.Query("sort"),
		Page:     fiber.Query[int](c, "page"),
		PageSize: fiber.Query[int](c, "size"),
	}
	if brands := c.Query("brands"); brands != "" {
		q.Brands = strings.Split(brands, ",")
	}
	return q
}

// respond 执行固定的四步决策顺序。
func (h *Handler) respond(c fiber.Ctx, key catalog.Key) error {
	started := time.Now()
	cacheKey := key.String()

	if agg, fr, ok := h.cache.Get(cacheKey); ok {
		if fr == cache.Fresh {
			return h.serve(c, key, agg, ProvenanceCache, started)
		}
		// stale：同 key 已有抓取在途时直接端出旧数据，不等待；
		// 否则触发一次后台刷新再端出旧数据。两条路都不碰网络。
		if _, inFlight := h.flights.Lookup(cacheKey); !inFlight && h.revalidator != nil {
			h.revalidator.Schedule(key)
		}
		return h.serve(c, key, agg, ProvenanceStale, started)
	}

	if fl, ok := h.flights.Lookup(cacheKey); ok {
		agg, err := retry.Await(h.fetchTimeout, "aggregate fetch", fl.Done(), fl.Result)
		if err != nil {
			return h.serveError(c, key, err, started)
		}
		return h.serve(c, key, agg, ProvenanceDedupe, started)
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	fl := h.flights.Coalesce(ctx, cacheKey, func(ctx context.Context) (*catalog.Aggregate, error) {
		return h.Load(ctx, key)
	})
	agg, err := retry.Await(h.fetchTimeout, "aggregate fetch", fl.Done(), fl.Result)
	if err != nil {
		return h.serveError(c, key, err, started)
	}
	return h.serve(c, key, agg, ProvenanceFresh, started)
}

func (h *Handler) serve(c fiber.Ctx, key catalog.Key, agg *catalog.Aggregate, provenance string, started time.Time) error {
	h.setCacheHeaders(c, provenance)
	h.logResult(key, provenance, fiber.StatusOK, started, nil)

	switch agg.Kind {
	case catalog.KindListing:
		return c.Status(fiber.StatusOK).JSON(listingPayload(agg, provenance))
	default:
		return c.Status(fiber.StatusOK).JSON(detailPayload(agg, provenance))
	}
}

// serveError 把内部错误折叠成固定的一小组对外类别。
func (h *Handler) serveError(c fiber.Ctx, key catalog.Key, err error, started time.Time) error {
	status := fiber.StatusBadGateway
	kind := "catalog_unavailable"
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		status = fiber.StatusNotFound
		kind = "product_not_found"
	case errors.Is(err, retry.ErrTimeout):
		status = fiber.StatusGatewayTimeout
		kind = "upstream_timeout"
	}

	h.logResult(key, "", status, started, err)
	return c.Status(status).JSON(fiber.Map{"error": kind})
}

// setCacheHeaders 向传输层透出新鲜期与 stale-while-revalidate 提示。
func (h *Handler) setCacheHeaders(c fiber.Ctx, provenance string) {
	freshSeconds := int(h.cache.FreshTTL() / time.Second)
	swrSeconds := int((h.cache.StaleTTL() - h.cache.FreshTTL()) / time.Second)
	c.Set("Cache-Control", fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", freshSeconds, swrSeconds))
	c.Set("X-Catalog-Provenance", provenance)
}

func (h *Handler) logResult(key catalog.Key, provenance string, status int, started time.Time, err error) {
	fields := logging.AggregateFields(key.String(), string(key.Kind), provenance)
	fields["action"] = "aggregate_request"
	fields["status"] = status
	fields["duration_ms"] = time.Since(started).Milliseconds()
	if provenance == "" {
		delete(fields, "provenance")
	}
	entry := h.logger.WithFields(fields)
	if err != nil {
		entry.WithError(err).Warn("aggregate request failed")
		return
	}
	entry.Info("aggregate request served")
}
