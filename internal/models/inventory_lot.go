package models

import (
	"time"

	"gorm.io/gorm"
)

// InventoryLot is a discrete quantity of an item acquired at one price and
// time. The matching engine creates a lot from a filled buy order, shrinks
// its quantity as sell orders consume it, and deletes it when it reaches
// zero. A lot is never created with zero quantity.
type InventoryLot struct {
	gorm.Model
	TraderID        int64     `gorm:"index:idx_lot_trader_type;not null" json:"trader_id"`
	TypeID          int32     `gorm:"index:idx_lot_trader_type" json:"type_id"`
	Quantity        int64     `gorm:"not null" json:"quantity"`
	PurchasePrice   float64   `json:"purchase_price"`
	PurchaseOrderID int64     `json:"purchase_order_id"`
	PurchaseDate    time.Time `gorm:"index" json:"purchase_date"`
	AcquisitionFee  float64   `json:"acquisition_fee"`
}
