package domain

import "time"

// SyncCursor is the per-shop watermark: orders updated at or before
// UpdatedAfter are known to be mirrored locally. It only ever moves forward,
// and only to an updatedAt actually observed in a completed batch.
type SyncCursor struct {
	ShopID       string    `json:"shop_id" bson:"shop_id"`
	UpdatedAfter time.Time `json:"updated_after" bson:"updated_after"`
}

// Advance returns the cursor moved to maxSeen if that is later than the
// current watermark; otherwise the cursor is returned unchanged.
func (c SyncCursor) Advance(maxSeen time.Time) SyncCursor {
	if maxSeen.After(c.UpdatedAfter) {
		c.UpdatedAfter = maxSeen
	}
	return c
}

// ShopSyncResult summarizes one shop's incremental sync run.
type ShopSyncResult struct {
	RunID     string     `json:"run_id"`
	ShopID    string     `json:"shop_id"`
	Processed int        `json:"processed"`
	Upserted  int        `json:"upserted"`
	Cursor    SyncCursor `json:"cursor"`
	Truncated bool       `json:"truncated,omitempty"`
	Error     string     `json:"error,omitempty"`
}
