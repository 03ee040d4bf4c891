// Package fees implements the marketplace fee and tax arithmetic. All three
// charges share one shape: price * quantity * rate / 100. Intermediate math
// runs on decimals at full precision; amounts are rounded to ISK cents only
// when they are about to be persisted.
package fees

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// AcquisitionFee is the broker fee charged when a buy order fills.
func AcquisitionFee(price float64, quantity int64, ratePercent float64) decimal.Decimal {
	return charge(price, quantity, ratePercent)
}

// DisposalFee is the broker fee charged when a sell order fills.
func DisposalFee(price float64, quantity int64, ratePercent float64) decimal.Decimal {
	return charge(price, quantity, ratePercent)
}

// Tax is the sales tax charged on sell revenue.
func Tax(price float64, quantity int64, ratePercent float64) decimal.Decimal {
	return charge(price, quantity, ratePercent)
}

func charge(price float64, quantity int64, ratePercent float64) decimal.Decimal {
	return decimal.NewFromFloat(price).
		Mul(decimal.NewFromInt(quantity)).
		Mul(decimal.NewFromFloat(ratePercent)).
		Div(hundred)
}

// RoundISK rounds an amount to ISK precision (2 decimal places) for storage.
func RoundISK(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
