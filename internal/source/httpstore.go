package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/catalog-edge/catalog-edge/internal/catalog"
)

// HTTPStore 通过文档存储的 REST 接口实现 Store，整站复用同一个 http.Client。
type HTTPStore struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPStore 解析 baseURL 并构造客户端。client 为 nil 时退回 http.DefaultClient。
func NewHTTPStore(baseURL string, client *http.Client) (*HTTPStore, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("store base url required")
	}
	base, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse store base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("store base url must be absolute: %s", trimmed)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPStore{base: base, client: client}, nil
}

func (s *HTTPStore) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	var product catalog.Product
	if err := s.getJSON(ctx, "/products/"+url.PathEscape(id), nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *HTTPStore) QueryProducts(ctx context.Context, q catalog.ListingQuery) ([]catalog.Product, error) {
	var payload struct {
		Items []catalog.Product `json:"items"`
	}
	if err := s.getJSON(ctx, "/products", queryValues(q, true), &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

func (s *HTTPStore) CountProducts(ctx context.Context, q catalog.ListingQuery) (int, error) {
	var payload struct {
		Total int `json:"total"`
	}
	if err := s.getJSON(ctx, "/products/count", queryValues(q, false), &payload); err != nil {
		return 0, err
	}
	return payload.Total, nil
}

func (s *HTTPStore) FacetCounts(ctx context.Context, q catalog.ListingQuery) (map[string]int, error) {
	var payload struct {
		Counts map[string]int `json:"counts"`
	}
	if err := s.getJSON(ctx, "/products/facets", queryValues(q, false), &payload); err != nil {
		return nil, err
	}
	return payload.Counts, nil
}

func (s *HTTPStore) GetCategory(ctx context.Context, id string) (*catalog.Category, error) {
	var category catalog.Category
	if err := s.getJSON(ctx, "/categories/"+url.PathEscape(id), nil, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *HTTPStore) GetSeller(ctx context.Context, id string) (*catalog.Seller, error) {
	var seller catalog.Seller
	if err := s.getJSON(ctx, "/sellers/"+url.PathEscape(id), nil, &seller); err != nil {
		return nil, err
	}
	return &seller, nil
}

func (s *HTTPStore) ListReviews(ctx context.Context, productID string, limit int) (*catalog.ReviewSummary, error) {
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var summary catalog.ReviewSummary
	if err := s.getJSON(ctx, "/products/"+url.PathEscape(productID)+"/reviews", values, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *HTTPStore) GetInventory(ctx context.Context, productID string) (*catalog.Inventory, error) {
	var inventory catalog.Inventory
	if err := s.getJSON(ctx, "/inventory/"+url.PathEscape(productID), nil, &inventory); err != nil {
		return nil, err
	}
	return &inventory, nil
}

func (s *HTTPStore) GetProductsByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	values := url.Values{}
	values.Set("ids", strings.Join(ids, ","))
	var payload struct {
		Items []catalog.Product `json:"items"`
	}
	if err := s.getJSON(ctx, "/products/batch", values, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// getJSON 执行一次 GET 并解码 JSON 响应。404 统一映射为 ErrNotFound，
// 其余非 2xx 状态作为瞬时错误上抛，交给上层的重试器处理。
func (s *HTTPStore) getJSON(ctx context.Context, path string, values url.Values, out any) error {
	target := *s.base
	target.Path = strings.TrimRight(target.Path, "/") + path
	if values != nil {
		target.RawQuery = values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("build store request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("store request %s: %w", path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("store responded %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode store response %s: %w", path, err)
	}
	return nil
}

// queryValues 将归一化查询转换为 REST 查询串。withPaging 区分
// 取页接口与计数接口：计数不关心分页参数。
func queryValues(q catalog.ListingQuery, withPaging bool) url.Values {
	values := url.Values{}
	if q.Category != "" {
		values.Set("category", q.Category)
	}
	if len(q.Brands) > 0 {
		values.Set("brands", strings.Join(q.Brands, ","))
	}
	if q.Sort != "" {
		values.Set("sort", q.Sort)
	}
	if withPaging {
		values.Set("page", strconv.Itoa(q.Page))
		values.Set("size", strconv.Itoa(q.PageSize))
	}
	return values
}
