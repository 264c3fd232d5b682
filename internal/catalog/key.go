package catalog

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// 历史数据里商品 id 带有固定前缀，归一化时统一剥掉，
// 保证 "product_123" 与 "123" 命中同一条缓存。
const productIDPrefix = "product_"

const (
	defaultPage     = 1
	defaultPageSize = 24
	maxPageSize     = 100
)

// ListingQuery 描述列表聚合的查询参数，归一化后参与缓存键派生。
type ListingQuery struct {
	Category string
	Brands   []string
	Sort     string
	Page     int
	PageSize int
}

// Key 唯一标识一次聚合请求，等价请求必须派生出字节一致的键。
type Key struct {
	Kind      Kind
	ProductID string
	Query     ListingQuery

	cacheKey string
}

// NormalizeProductID 去除空白与历史前缀，返回归一化后的商品 id。
func NormalizeProductID(raw string) string {
	id := strings.TrimSpace(raw)
	id = strings.TrimPrefix(id, productIDPrefix)
	return id
}

// NormalizeQuery 对查询参数做顺序无关的归一化：
// 分类/排序字段小写，品牌列表去重后排序，分页参数回填默认并收敛上限。
func NormalizeQuery(q ListingQuery) ListingQuery {
	out := ListingQuery{
		Category: strings.ToLower(strings.TrimSpace(q.Category)),
		Sort:     strings.ToLower(strings.TrimSpace(q.Sort)),
		Page:     q.Page,
		PageSize: q.PageSize,
	}

	if len(q.Brands) > 0 {
		seen := make(map[string]struct{}, len(q.Brands))
		for _, brand := range q.Brands {
			b := strings.ToLower(strings.TrimSpace(brand))
			if b == "" {
				continue
			}
			if _, ok := seen[b]; ok {
				continue
			}
			seen[b] = struct{}{}
			out.Brands = append(out.Brands, b)
		}
		sort.Strings(out.Brands)
	}

	if out.Page < 1 {
		out.Page = defaultPage
	}
	if out.PageSize <= 0 {
		out.PageSize = defaultPageSize
	}
	if out.PageSize > maxPageSize {
		out.PageSize = maxPageSize
	}
	return out
}

// DetailKey 构造单品聚合键。id 归一化后为空时返回 ErrInvalidKey。
func DetailKey(rawID string) (Key, error) {
	id := NormalizeProductID(rawID)
	if id == "" {
		return Key{}, ErrInvalidKey
	}
	return Key{
		Kind:      KindDetail,
		ProductID: id,
		cacheKey:  "detail:" + id,
	}, nil
}

// ListingKey 构造列表聚合键。键值对先归一化再拼 canonical 串，
// 最后取 SHA-1 摘要，保持键长度与参数数量无关。
func ListingKey(q ListingQuery) Key {
	normalized := NormalizeQuery(q)
	canonical := canonicalQuery(normalized)
	sum := sha1.Sum([]byte(canonical))
	return Key{
		Kind:     KindListing,
		Query:    normalized,
		cacheKey: "listing:" + hex.EncodeToString(sum[:]),
	}
}

// String 返回缓存键，等价请求字节一致。
func (k Key) String() string {
	return k.cacheKey
}

// canonicalQuery 按固定字段顺序输出查询的规范串，品牌已在归一化时排序。
func canonicalQuery(q ListingQuery) string {
	return fmt.Sprintf("category=%s&brands=%s&sort=%s&page=%d&size=%d",
		q.Category, strings.Join(q.Brands, ","), q.Sort, q.Page, q.PageSize)
}
