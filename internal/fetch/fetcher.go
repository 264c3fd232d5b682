// Package fetch orchestrates the expensive fetch-and-aggregate operation:
// one primary lookup against the document store, then the secondary facets
// in parallel, each individually fault-isolated.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/catalog-edge/catalog-edge/internal/catalog"
	"github.com/catalog-edge/catalog-edge/internal/retry"
	"github.com/catalog-edge/catalog-edge/internal/source"
)

// Fetcher 是按 key 抓取一个聚合的能力。detail 与 listing 各有一个实现。
type Fetcher interface {
	Fetch(ctx context.Context, key catalog.Key) (*catalog.Aggregate, error)
}

// Options 控制次级 facet 的采样规模。
type Options struct {
	ReviewSampleSize int
	RelatedLimit     int
}

// Registry 把聚合类型映射到对应的 Fetcher，handler 与后台刷新共用。
type Registry struct {
	fetchers map[catalog.Kind]Fetcher
}

// NewRegistry 用共享依赖构造两类 fetcher。
func NewRegistry(store source.Store, exec retry.Executor, logger *logrus.Logger, opts Options) *Registry {
	if opts.ReviewSampleSize <= 0 {
		opts.ReviewSampleSize = 5
	}
	if opts.RelatedLimit <= 0 {
		opts.RelatedLimit = 8
	}
	return &Registry{
		fetchers: map[catalog.Kind]Fetcher{
			catalog.KindDetail:  &detailFetcher{store: store, exec: exec, logger: logger, opts: opts},
			catalog.KindListing: &listingFetcher{store: store, exec: exec, logger: logger},
		},
	}
}

// Fetch 分发到 key 对应类型的 fetcher。
func (r *Registry) Fetch(ctx context.Context, key catalog.Key) (*catalog.Aggregate, error) {
	fetcher, ok := r.fetchers[key.Kind]
	if !ok {
		return nil, fmt.Errorf("no fetcher registered for kind %s", key.Kind)
	}
	return fetcher.Fetch(ctx, key)
}

// isRetryable 把 not found 视为永久失败，其余（含网络错误）视为瞬时。
// 调用方主动取消时也停止重试。
func isRetryable(err error) bool {
	if errors.Is(err, source.ErrNotFound) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// detailFetcher 组装单品聚合：商品主体 + 卖家/评价/关联/库存四个 facet。
type detailFetcher struct {
	store  source.Store
	exec   retry.Executor
	logger *logrus.Logger
	opts   Options
}

func (f *detailFetcher) Fetch(ctx context.Context, key catalog.Key) (*catalog.Aggregate, error) {
	started := time.Now()

	// 主实体查询走重试器；不存在是永久失败，整个聚合立即失败。
	product, err := retry.Do(ctx, f.exec, isRetryable, func(ctx context.Context) (*catalog.Product, error) {
		return f.store.GetProduct(ctx, key.ProductID)
	})
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return nil, fmt.Errorf("product %s: %w", key.ProductID, catalog.ErrNotFound)
		}
		return nil, fmt.Errorf("fetch product %s: %w", key.ProductID, err)
	}
	primaryDone := time.Now()

	// facet 默认值：集合保持空而非 nil，boundary 层不需要补洞。
	detail := &catalog.Detail{
		Product: product,
		Reviews: catalog.ReviewSummary{Recent: []catalog.Review{}},
		Related: []catalog.Product{},
	}

	// 次级 facet 并发执行。facet 的参数全部派生自主实体，
	// 任意单个 facet 失败只记日志并落默认值，不影响聚合成功。
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if product.SellerID == "" {
			return nil
		}
		seller, err := f.store.GetSeller(gctx, product.SellerID)
		if err != nil {
			f.logFacetDegraded(key, "seller", err)
			return nil
		}
		detail.Seller = seller
		return nil
	})
	g.Go(func() error {
		summary, err := f.store.ListReviews(gctx, product.ID, f.opts.ReviewSampleSize)
		if err != nil {
			f.logFacetDegraded(key, "reviews", err)
			return nil
		}
		if summary.Recent == nil {
			summary.Recent = []catalog.Review{}
		}
		detail.Reviews = *summary
		return nil
	})
	g.Go(func() error {
		ids := product.RelatedIDs
		if len(ids) == 0 {
			return nil
		}
		if len(ids) > f.opts.RelatedLimit {
			ids = ids[:f.opts.RelatedLimit]
		}
		related, err := f.store.GetProductsByIDs(gctx, ids)
		if err != nil {
			f.logFacetDegraded(key, "related", err)
			return nil
		}
		if related != nil {
			detail.Related = related
		}
		return nil
	})
	g.Go(func() error {
		inventory, err := f.store.GetInventory(gctx, product.ID)
		if err != nil {
			f.logFacetDegraded(key, "inventory", err)
			return nil
		}
		detail.Inventory = inventory
		return nil
	})
	_ = g.Wait()
	finished := time.Now()

	return &catalog.Aggregate{
		Kind:    catalog.KindDetail,
		Detail:  detail,
		Timings: timings(started, primaryDone, finished),
	}, nil
}

func (f *detailFetcher) logFacetDegraded(key catalog.Key, facet string, err error) {
	f.logger.WithError(err).WithFields(logrus.Fields{
		"action": "facet_degraded",
		"key":    key.String(),
		"facet":  facet,
	}).Warn("facet fetch failed, serving default")
}

// listingFetcher 组装列表聚合：一页商品 + 总数/分面计数/分类元数据。
type listingFetcher struct {
	store  source.Store
	exec   retry.Executor
	logger *logrus.Logger
}

func (f *listingFetcher) Fetch(ctx context.Context, key catalog.Key) (*catalog.Aggregate, error) {
	started := time.Now()
	query := key.Query

	// 列表的主查询同样走重试器；空页是合法结果，不算 not found。
	items, err := retry.Do(ctx, f.exec, isRetryable, func(ctx context.Context) ([]catalog.Product, error) {
		return f.store.QueryProducts(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	primaryDone := time.Now()

	listing := &catalog.Listing{
		Items:       items,
		FacetCounts: map[string]int{},
		Page:        query.Page,
		PageSize:    query.PageSize,
	}
	if listing.Items == nil {
		listing.Items = []catalog.Product{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := f.store.CountProducts(gctx, query)
		if err != nil {
			f.logFacetDegraded(key, "total", err)
			// 退化时用当前页长度兜底，保证字段有意义。
			listing.Total = len(listing.Items)
			return nil
		}
		listing.Total = total
		return nil
	})
	g.Go(func() error {
		counts, err := f.store.FacetCounts(gctx, query)
		if err != nil {
			f.logFacetDegraded(key, "facet_counts", err)
			return nil
		}
		if counts != nil {
			listing.FacetCounts = counts
		}
		return nil
	})
	g.Go(func() error {
		if query.Category == "" {
			return nil
		}
		category, err := f.store.GetCategory(gctx, query.Category)
		if err != nil {
			f.logFacetDegraded(key, "category", err)
			return nil
		}
		listing.Category = category
		return nil
	})
	_ = g.Wait()
	finished := time.Now()

	return &catalog.Aggregate{
		Kind:    catalog.KindListing,
		Listing: listing,
		Timings: timings(started, primaryDone, finished),
	}, nil
}

func (f *listingFetcher) logFacetDegraded(key catalog.Key, facet string, err error) {
	f.logger.WithError(err).WithFields(logrus.Fields{
		"action": "facet_degraded",
		"key":    key.String(),
		"facet":  facet,
	}).Warn("facet fetch failed, serving default")
}

func timings(started, primaryDone, finished time.Time) catalog.Timings {
	return catalog.Timings{
		PrimaryMs:  primaryDone.Sub(started).Milliseconds(),
		ParallelMs: finished.Sub(primaryDone).Milliseconds(),
		TotalMs:    finished.Sub(started).Milliseconds(),
	}
}
