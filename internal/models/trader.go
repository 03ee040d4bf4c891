package models

import (
	"time"

	"gorm.io/gorm"
)

// Trader is an EVE character whose order history is tracked, along with its
// SSO tokens and trading fee settings. The fee percentages are passed
// explicitly into each matching run; changing them affects only future runs.
type Trader struct {
	gorm.Model
	TraderID      int64     `gorm:"uniqueIndex;not null" json:"trader_id"`
	Name          string    `json:"name"`
	AccessToken   string    `json:"-"`
	RefreshToken  string    `json:"-"`
	TokenExpiry   time.Time `json:"token_expiry"`
	BrokerFeeBuy  float64   `gorm:"default:3.00" json:"broker_fee_buy"`
	BrokerFeeSell float64   `gorm:"default:3.00" json:"broker_fee_sell"`
	SalesTax      float64   `gorm:"default:7.50" json:"sales_tax"`
}
