// Package source 定义读路径对后端文档存储的唯一依赖面。
// 聚合层只通过这些函数签名消费存储，不关心其查询语言或索引实现。
package source

import (
	"context"
	"errors"

	"github.com/catalog-edge/catalog-edge/internal/catalog"
)

// ErrNotFound 表示目标文档不存在。主实体查询收到它视为永久失败。
var ErrNotFound = errors.New("document not found")

// Store 是文档存储暴露给聚合层的能力集合。
// 每个方法对应一次独立的慢查询，次级 facet 方法失败时由调用方降级。
type Store interface {
	// GetProduct 返回单个商品文档，不存在时返回 ErrNotFound。
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)

	// QueryProducts 返回满足查询条件的一页商品。空页是合法结果。
	QueryProducts(ctx context.Context, q catalog.ListingQuery) ([]catalog.Product, error)

	// CountProducts 返回满足查询条件的商品总数。
	CountProducts(ctx context.Context, q catalog.ListingQuery) (int, error)

	// FacetCounts 返回按分类统计的命中数。
	FacetCounts(ctx context.Context, q catalog.ListingQuery) (map[string]int, error)

	// GetCategory 返回分类元数据，不存在时返回 ErrNotFound。
	GetCategory(ctx context.Context, id string) (*catalog.Category, error)

	// GetSeller 返回卖家文档，不存在时返回 ErrNotFound。
	GetSeller(ctx context.Context, id string) (*catalog.Seller, error)

	// ListReviews 返回商品最近的评价样本及总体统计。
	ListReviews(ctx context.Context, productID string, limit int) (*catalog.ReviewSummary, error)

	// GetInventory 返回商品库存状态。
	GetInventory(ctx context.Context, productID string) (*catalog.Inventory, error)

	// GetProductsByIDs 批量解析关联商品，忽略不存在的 id。
	GetProductsByIDs(ctx context.Context, ids []string) ([]catalog.Product, error)
}
