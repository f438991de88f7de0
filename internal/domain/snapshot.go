package domain

import "time"

// Metric names for aggregate counters. Each metric carries its own source;
// vendor-side counts and local-mirror counts are never merged into one number.
const (
	MetricPendingOrders = "orders_pending"
	MetricCatalogSize   = "catalog_size"
)

// Scope selects what an aggregate covers: a single shop ID or ScopeAll.
type Scope string

const ScopeAll Scope = "ALL"

// AggregateSnapshot is a cached cross-shop counter. Approx is true whenever
// any contributing computation stopped on a page or time budget, or a shop
// contributed zero because its credentials were unusable.
type AggregateSnapshot struct {
	Metric    string           `json:"metric" bson:"metric"`
	Scope     Scope            `json:"scope" bson:"scope"`
	Total     int64            `json:"total" bson:"total"`
	Approx    bool             `json:"approx" bson:"approx"`
	ByStatus  map[string]int64 `json:"by_status,omitempty" bson:"by_status,omitempty"`
	ShopError map[string]string `json:"shop_errors,omitempty" bson:"shop_errors,omitempty"`
	UpdatedAt time.Time        `json:"updated_at" bson:"updated_at"`
}
