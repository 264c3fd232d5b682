package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product 是聚合的主实体，所有次级 facet 的参数都从它派生。
type Product struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Brand      string          `json:"brand,omitempty"`
	CategoryID string          `json:"category_id,omitempty"`
	SellerID   string          `json:"seller_id,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency,omitempty"`
	RelatedIDs []string        `json:"related_ids,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at,omitzero"`
}

// Seller 描述商品归属的卖家信息，属于可降级 facet。
type Seller struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
}

// Review 是单条评价，detail 聚合只携带最近若干条样本。
type Review struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// ReviewSummary 聚合评价 facet：均分 + 总数 + 最近样本。
type ReviewSummary struct {
	Average float64  `json:"average"`
	Count   int      `json:"count"`
	Recent  []Review `json:"recent"`
}

// Inventory 描述库存 facet。
type Inventory struct {
	InStock  bool `json:"in_stock"`
	Quantity int  `json:"quantity"`
}

// Category 是列表聚合在带分类过滤时解析出的分类元数据。
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Detail 是单品聚合：主实体 + 固定的一组次级 facet。
// 每个 facet 都允许为空，缺失是合法的终态而非错误。
type Detail struct {
	Product   *Product      `json:"product"`
	Seller    *Seller       `json:"seller"`
	Reviews   ReviewSummary `json:"reviews"`
	Related   []Product     `json:"related"`
	Inventory *Inventory    `json:"inventory"`
}

// Listing 是列表聚合：一页查询结果 + 计数类 facet。
type Listing struct {
	Items       []Product      `json:"items"`
	Total       int            `json:"total"`
	FacetCounts map[string]int `json:"facet_counts"`
	Category    *Category      `json:"category"`
	Page        int            `json:"page"`
	PageSize    int            `json:"page_size"`
}

// Timings 记录一次聚合抓取的分阶段耗时，随响应透出方便定位慢源。
type Timings struct {
	PrimaryMs  int64 `json:"primary_ms"`
	ParallelMs int64 `json:"parallel_ms"`
	TotalMs    int64 `json:"total_ms"`
}

// Kind 区分两类聚合。
type Kind string

const (
	KindDetail  Kind = "detail"
	KindListing Kind = "listing"
)

// Aggregate 是缓存与请求通道共用的聚合载体，Detail/Listing 二选一。
type Aggregate struct {
	Kind    Kind
	Detail  *Detail
	Listing *Listing
	Timings Timings
}
