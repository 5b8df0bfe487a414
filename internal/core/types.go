package core

import "time"

// Product is the internal shape of a catalog entity returned by the
// upstream commerce API.
type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Handle      string    `json:"handle"`
	Vendor      string    `json:"vendor,omitempty"`
	ProductType string    `json:"product_type,omitempty"`
	Status      string    `json:"status,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProductEdge pairs a product with the opaque cursor that addresses it
// in the upstream's pagination scheme.
type ProductEdge struct {
	Cursor  string  `json:"cursor"`
	Product Product `json:"product"`
}

// ProductPage is an ordered page of product edges.
type ProductPage struct {
	Edges       []ProductEdge `json:"edges"`
	HasNextPage bool          `json:"has_next_page"`
}

// NextCursor returns the cursor of the last edge, or empty when the
// page has no edges.
func (p *ProductPage) NextCursor() string {
	if p == nil || len(p.Edges) == 0 {
		return ""
	}
	return p.Edges[len(p.Edges)-1].Cursor
}

// BucketState captures the shared token bucket budget persisted in the
// state store. Points stay within [0, max] and LastRefill is
// non-decreasing across writes from a correctly ordered caller.
type BucketState struct {
	Points     float64   `json:"points"`
	LastRefill time.Time `json:"last_refill"`
}

// MetricSample is a single latency observation in a rolling window.
type MetricSample struct {
	ResponseTimeMs int64     `json:"response_time_ms"`
	Timestamp      time.Time `json:"timestamp"`
}

// EndpointStats aggregates the local endpoint latency window.
type EndpointStats struct {
	AverageMs  int64 `json:"average_ms"`
	MaxMs      int64 `json:"max_ms"`
	MinMs      int64 `json:"min_ms"`
	TotalCalls int64 `json:"total_calls"`
}

// UpstreamStats aggregates the upstream call latency window.
type UpstreamStats struct {
	AverageMs  int64 `json:"average_ms"`
	TotalCalls int64 `json:"total_calls"`
}

// MetricsSnapshot is derived on every read from the currently retained
// samples and counters. It is never stored.
type MetricsSnapshot struct {
	Endpoint EndpointStats `json:"endpoint"`
	Upstream UpstreamStats `json:"upstream"`
}
