package models

import (
	"time"

	"gorm.io/gorm"
)

// ProfitRecord is one append-only allocation of a sell order against an
// inventory lot. SourceLotOrderID is nil when the sale had no matching
// inventory (stock acquired before tracking began).
type ProfitRecord struct {
	gorm.Model
	TraderID            int64     `gorm:"index:idx_profit_trader_type;index:idx_profit_trader_date;not null" json:"trader_id"`
	TypeID              int32     `gorm:"index:idx_profit_trader_type" json:"type_id"`
	SellOrderID         int64     `json:"sell_order_id"`
	SellDate            time.Time `gorm:"index:idx_profit_trader_date" json:"sell_date"`
	Quantity            int64     `json:"quantity"`
	PurchasePrice       float64   `json:"purchase_price"`
	SellPrice           float64   `json:"sell_price"`
	AcquisitionFeeShare float64   `json:"acquisition_fee_share"`
	DisposalFee         float64   `json:"disposal_fee"`
	Tax                 float64   `json:"tax"`
	GrossProfit         float64   `json:"gross_profit"`
	NetProfit           float64   `json:"net_profit"`
	SourceLotOrderID    *int64    `json:"source_lot_order_id"`
}
