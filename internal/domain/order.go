package domain

import (
	"encoding/json"
	"time"
)

// Order statuses mirrored from the vendor. The engine treats the status as an
// opaque string except where it filters pending work.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

// OrderRecord is the local mirror of one vendor order, keyed by
// (ShopID, ExternalID). Upserts are last-write-wins; records are never
// deleted by the sync engine.
type OrderRecord struct {
	ExternalID string          `json:"external_id" bson:"external_id"`
	ShopID     string          `json:"shop_id" bson:"shop_id"`
	Status     string          `json:"status" bson:"status"`
	CreatedAt  time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" bson:"updated_at"`
	Raw        json.RawMessage `json:"-" bson:"raw,omitempty"`
}

// orderWire is the tolerant decode shape for a vendor order item.
// Vendors disagree on the id field name, so both are accepted.
type orderWire struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// DecodeOrder parses one vendor list item into an OrderRecord for shopID.
// The full payload is retained in Raw so later consumers can read vendor
// fields the mirror does not model.
func DecodeOrder(shopID string, item json.RawMessage) (OrderRecord, error) {
	var w orderWire
	if err := json.Unmarshal(item, &w); err != nil {
		return OrderRecord{}, err
	}
	id := w.ExternalID
	if id == "" {
		id = w.ID
	}
	return OrderRecord{
		ExternalID: id,
		ShopID:     shopID,
		Status:     w.Status,
		CreatedAt:  w.CreatedAt,
		UpdatedAt:  w.UpdatedAt,
		Raw:        item,
	}, nil
}
