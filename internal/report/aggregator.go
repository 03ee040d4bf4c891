// Package report provides read-only aggregations over the order ledger and
// profit records for the display layer. Queries return empty collections,
// never errors, for traders with no data, and read a point-in-time snapshot
// that may race an in-flight matching run.
package report

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MonthlyRow is one calendar month of trading activity.
type MonthlyRow struct {
	Month      string  `json:"month"` // "2006-01"
	BuyOrders  int64   `json:"buy_orders"`
	SellOrders int64   `json:"sell_orders"`
	Revenue    float64 `json:"revenue"`
	FeesAndTax float64 `json:"fees_and_tax"`
	NetProfit  float64 `json:"net_profit"`
}

// DailyRow is one calendar day of trading activity.
type DailyRow struct {
	Day        string  `json:"day"` // "2006-01-02"
	BuyOrders  int64   `json:"buy_orders"`
	SellOrders int64   `json:"sell_orders"`
	Revenue    float64 `json:"revenue"`
	FeesAndTax float64 `json:"fees_and_tax"`
	NetProfit  float64 `json:"net_profit"`
}

// ItemRow is the per-item breakdown over a date range.
type ItemRow struct {
	TypeID       int32   `json:"type_id"`
	ItemName     string  `json:"item_name"`
	BuyOrders    int64   `json:"buy_orders"`
	SellOrders   int64   `json:"sell_orders"`
	QuantitySold int64   `json:"quantity_sold"`
	Revenue      float64 `json:"revenue"`
	FeesAndTax   float64 `json:"fees_and_tax"`
	NetProfit    float64 `json:"net_profit"`
}

// Aggregator runs the reporting queries.
type Aggregator struct {
	logger *zap.Logger
	db     *gorm.DB
}

// NewAggregator creates a new reporting aggregator.
func NewAggregator(logger *zap.Logger, db *gorm.DB) *Aggregator {
	return &Aggregator{logger: logger, db: db}
}

// ByMonth returns the trader's monthly totals, most recent month first.
func (a *Aggregator) ByMonth(traderID int64) ([]MonthlyRow, error) {
	rows := make([]MonthlyRow, 0)

	err := a.db.Raw(`
		SELECT strftime('%Y-%m', sell_date) AS month,
		       COUNT(DISTINCT sell_order_id) AS sell_orders,
		       ROUND(SUM(quantity * sell_price), 2) AS revenue,
		       ROUND(SUM(acquisition_fee_share + disposal_fee + tax), 2) AS fees_and_tax,
		       ROUND(SUM(net_profit), 2) AS net_profit
		FROM profit_records
		WHERE trader_id = ? AND deleted_at IS NULL
		GROUP BY month
		ORDER BY month DESC`, traderID).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by month: %w", err)
	}

	type countRow struct {
		Bucket string
		N      int64
	}
	var buys []countRow
	err = a.db.Raw(`
		SELECT strftime('%Y-%m', issued_at) AS bucket,
		       COUNT(DISTINCT order_id) AS n
		FROM trade_orders
		WHERE trader_id = ? AND is_buy_order = 1 AND deleted_at IS NULL
		GROUP BY bucket`, traderID).Scan(&buys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count buy orders by month: %w", err)
	}

	byMonth := make(map[string]int64, len(buys))
	for _, b := range buys {
		byMonth[b.Bucket] = b.N
	}
	for i := range rows {
		rows[i].BuyOrders = byMonth[rows[i].Month]
	}

	return rows, nil
}

// ByDay returns the trader's daily totals over the inclusive [from, to]
// range, most recent day first.
func (a *Aggregator) ByDay(traderID int64, from, to time.Time) ([]DailyRow, error) {
	rows := make([]DailyRow, 0)

	err := a.db.Raw(`
		SELECT strftime('%Y-%m-%d', sell_date) AS day,
		       COUNT(DISTINCT sell_order_id) AS sell_orders,
		       ROUND(SUM(quantity * sell_price), 2) AS revenue,
		       ROUND(SUM(acquisition_fee_share + disposal_fee + tax), 2) AS fees_and_tax,
		       ROUND(SUM(net_profit), 2) AS net_profit
		FROM profit_records
		WHERE trader_id = ? AND deleted_at IS NULL
		  AND DATE(sell_date) BETWEEN DATE(?) AND DATE(?)
		GROUP BY day
		ORDER BY day DESC`, traderID, from, to).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by day: %w", err)
	}

	type countRow struct {
		Bucket string
		N      int64
	}
	var buys []countRow
	err = a.db.Raw(`
		SELECT strftime('%Y-%m-%d', issued_at) AS bucket,
		       COUNT(DISTINCT order_id) AS n
		FROM trade_orders
		WHERE trader_id = ? AND is_buy_order = 1 AND deleted_at IS NULL
		  AND DATE(issued_at) BETWEEN DATE(?) AND DATE(?)
		GROUP BY bucket`, traderID, from, to).Scan(&buys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count buy orders by day: %w", err)
	}

	byDay := make(map[string]int64, len(buys))
	for _, b := range buys {
		byDay[b.Bucket] = b.N
	}
	for i := range rows {
		rows[i].BuyOrders = byDay[rows[i].Day]
	}

	return rows, nil
}

// ByItem returns the trader's per-item totals over the inclusive [from, to]
// range, most profitable item first. Item names come from the static
// catalog; unknown type ids keep an empty name.
func (a *Aggregator) ByItem(traderID int64, from, to time.Time) ([]ItemRow, error) {
	rows := make([]ItemRow, 0)

	err := a.db.Raw(`
		SELECT p.type_id AS type_id,
		       COALESCE(it.name, '') AS item_name,
		       COUNT(DISTINCT p.sell_order_id) AS sell_orders,
		       SUM(p.quantity) AS quantity_sold,
		       ROUND(SUM(p.quantity * p.sell_price), 2) AS revenue,
		       ROUND(SUM(p.acquisition_fee_share + p.disposal_fee + p.tax), 2) AS fees_and_tax,
		       ROUND(SUM(p.net_profit), 2) AS net_profit
		FROM profit_records p
		LEFT JOIN item_types it ON it.type_id = p.type_id AND it.deleted_at IS NULL
		WHERE p.trader_id = ? AND p.deleted_at IS NULL
		  AND DATE(p.sell_date) BETWEEN DATE(?) AND DATE(?)
		GROUP BY p.type_id, it.name
		ORDER BY net_profit DESC`, traderID, from, to).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by item: %w", err)
	}

	type countRow struct {
		TypeID int32
		N      int64
	}
	var buys []countRow
	err = a.db.Raw(`
		SELECT type_id, COUNT(DISTINCT order_id) AS n
		FROM trade_orders
		WHERE trader_id = ? AND is_buy_order = 1 AND deleted_at IS NULL
		  AND DATE(issued_at) BETWEEN DATE(?) AND DATE(?)
		GROUP BY type_id`, traderID, from, to).Scan(&buys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count buy orders by item: %w", err)
	}

	byType := make(map[int32]int64, len(buys))
	for _, b := range buys {
		byType[b.TypeID] = b.N
	}
	for i := range rows {
		rows[i].BuyOrders = byType[rows[i].TypeID]
	}

	return rows, nil
}
