package models

import (
	"time"

	"gorm.io/gorm"
)

// TradeOrder is one row per order reported by the ESI order history feed.
// Rows are immutable after ingestion except for the Exhausted flag, which
// the matching engine flips false -> true exactly once.
type TradeOrder struct {
	gorm.Model
	OrderID         int64     `gorm:"uniqueIndex;not null" json:"order_id"`
	TraderID        int64     `gorm:"index:idx_trader_type;index:idx_trader_issued;index:idx_trader_state;index:idx_trader_exhausted;not null" json:"trader_id"`
	TypeID          int32     `gorm:"index:idx_trader_type" json:"type_id"`
	IsBuyOrder      bool      `json:"is_buy_order"`
	IssuedAt        time.Time `gorm:"index:idx_trader_issued" json:"issued_at"`
	Price           float64   `json:"price"`
	VolumeTotal     int64     `json:"volume_total"`
	VolumeRemain    int64     `json:"volume_remain"`
	VolumeEffective int64     `json:"volume_effective"` // volume_total - volume_remain, fixed at ingestion
	LocationID      int64     `json:"location_id"`
	RegionID        int64     `json:"region_id"`
	State           string    `gorm:"index:idx_trader_state" json:"state"`
	Exhausted       bool      `gorm:"index:idx_trader_exhausted;default:false" json:"exhausted"`
}
