package readpath

import "github.com/catalog-edge/catalog-edge/internal/catalog"

// 响应体始终是完整良构的 JSON：集合字段保持空数组/空对象而非 null，
// 下游 UI 不需要为"半个聚合"做特判。

type detailResponse struct {
	Product    *catalog.Product      `json:"product"`
	Seller     *catalog.Seller       `json:"seller"`
	Reviews    catalog.ReviewSummary `json:"reviews"`
	Related    []catalog.Product     `json:"related"`
	Inventory  *catalog.Inventory    `json:"inventory"`
	Provenance string                `json:"provenance"`
	Timings    catalog.Timings       `json:"timings"`
}

type listingResponse struct {
	Items       []catalog.Product `json:"items"`
	Total       int               `json:"total"`
	FacetCounts map[string]int    `json:"facet_counts"`
	Category    *catalog.Category `json:"category"`
	Page        int               `json:"page"`
	PageSize    int               `json:"page_size"`
	Provenance  string            `json:"provenance"`
	Timings     catalog.Timings   `json:"timings"`
}

func detailPayload(agg *catalog.Aggregate, provenance string) detailResponse {
	resp := detailResponse{
		Provenance: provenance,
		Timings:    agg.Timings,
		Related:    []catalog.Product{},
	}
	resp.Reviews.Recent = []catalog.Review{}
	if agg.Detail != nil {
		resp.Product = agg.Detail.Product
		resp.Seller = agg.Detail.Seller
		resp.Inventory = agg.Detail.Inventory
		resp.Reviews = agg.Detail.Reviews
		if resp.Reviews.Recent == nil {
			resp.Reviews.Recent = []catalog.Review{}
		}
		if agg.Detail.Related != nil {
			resp.Related = agg.Detail.Related
		}
	}
	return resp
}

func listingPayload(agg *catalog.Aggregate, provenance string) listingResponse {
	resp := listingResponse{
		Provenance:  provenance,
		Timings:     agg.Timings,
		Items:       []catalog.Product{},
		FacetCounts: map[string]int{},
	}
	if agg.Listing != nil {
		if agg.Listing.Items != nil {
			resp.Items = agg.Listing.Items
		}
		if agg.Listing.FacetCounts != nil {
			resp.FacetCounts = agg.Listing.FacetCounts
		}
		resp.Total = agg.Listing.Total
		resp.Category = agg.Listing.Category
		resp.Page = agg.Listing.Page
		resp.PageSize = agg.Listing.PageSize
	}
	return resp
}
