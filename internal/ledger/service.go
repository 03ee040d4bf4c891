package ledger

import (
	"context"
	"fmt"
	"sync"

	"eve-trade-ledger/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RunResult reports what one matching run did.
type RunResult struct {
	BuyOrdersProcessed       int   `json:"buy_orders_processed"`
	SellOrdersProcessed      int   `json:"sell_orders_processed"`
	ItemsAddedToInventory    int64 `json:"items_added_to_inventory"`
	ItemsSold                int64 `json:"items_sold"`
	ItemsSoldWithoutPurchase int64 `json:"items_sold_without_purchase"`
}

// Service runs the FIFO matching engine against the persistent ledger.
type Service struct {
	logger *zap.Logger
	db     *gorm.DB
	locks  sync.Map // trader id -> *sync.Mutex
}

// NewService creates a new matching service.
func NewService(logger *zap.Logger, db *gorm.DB) *Service {
	return &Service{logger: logger, db: db}
}

// lockFor returns the per-trader mutex, creating it on first use. Two
// concurrent runs for the same trader could double-consume a lot, so runs
// are serialized per trader; independent traders proceed in parallel.
func (s *Service) lockFor(traderID int64) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(traderID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ProcessUnmatchedOrders consumes every unexhausted order for the trader in
// global issued-time order, maintaining inventory lots and emitting profit
// records. The whole run commits atomically: on any failure the transaction
// rolls back and the source orders stay unexhausted, so a retry reprocesses
// them from scratch.
func (s *Service) ProcessUnmatchedOrders(ctx context.Context, traderID int64, rates Rates) (RunResult, error) {
	mu := s.lockFor(traderID)
	mu.Lock()
	defer mu.Unlock()

	log := s.logger.With(
		zap.Int64("trader_id", traderID),
		zap.String("run_id", uuid.NewString()),
	)

	var result RunResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var orders []models.TradeOrder
		// Global temporal order across all types: a sell must never match a
		// lot that did not yet exist at its issue time.
		err := tx.Where("trader_id = ? AND exhausted = ?", traderID, false).
			Order("issued_at ASC, id ASC").
			Find(&orders).Error
		if err != nil {
			return fmt.Errorf("failed to load unmatched orders: %w", err)
		}
		if len(orders) == 0 {
			return nil
		}

		var dbLots []models.InventoryLot
		err = tx.Where("trader_id = ?", traderID).
			Order("purchase_date ASC, id ASC").
			Find(&dbLots).Error
		if err != nil {
			return fmt.Errorf("failed to load inventory lots: %w", err)
		}

		open := make([]Lot, len(dbLots))
		originalQty := make(map[uint]int64, len(dbLots))
		for i, l := range dbLots {
			open[i] = Lot{
				StoreID:         l.ID,
				TypeID:          l.TypeID,
				Quantity:        l.Quantity,
				PurchasePrice:   l.PurchasePrice,
				PurchaseOrderID: l.PurchaseOrderID,
				PurchaseDate:    l.PurchaseDate,
				AcquisitionFee:  l.AcquisitionFee,
			}
			originalQty[l.ID] = l.Quantity
		}

		matcher := NewMatcher(rates, open)
		var profits []models.ProfitRecord
		orderIDs := make([]uint, 0, len(orders))

		for _, o := range orders {
			order := Order{
				OrderID:         o.OrderID,
				TypeID:          o.TypeID,
				IsBuyOrder:      o.IsBuyOrder,
				IssuedAt:        o.IssuedAt,
				Price:           o.Price,
				VolumeEffective: o.VolumeEffective,
			}

			if o.IsBuyOrder {
				if lot := matcher.ProcessBuy(order); lot != nil {
					result.BuyOrdersProcessed++
					result.ItemsAddedToInventory += lot.Quantity
				}
			} else {
				allocations := matcher.ProcessSell(order)
				if len(allocations) > 0 {
					result.SellOrdersProcessed++
				}
				for _, a := range allocations {
					if a.SourceLotOrderID != nil {
						result.ItemsSold += a.Quantity
					} else {
						result.ItemsSoldWithoutPurchase += a.Quantity
					}
					profits = append(profits, models.ProfitRecord{
						TraderID:            traderID,
						TypeID:              a.TypeID,
						SellOrderID:         a.SellOrderID,
						SellDate:            a.SellDate,
						Quantity:            a.Quantity,
						PurchasePrice:       a.PurchasePrice,
						SellPrice:           a.SellPrice,
						AcquisitionFeeShare: a.AcquisitionFeeShare,
						DisposalFee:         a.DisposalFee,
						Tax:                 a.Tax,
						GrossProfit:         a.GrossProfit,
						NetProfit:           a.NetProfit,
						SourceLotOrderID:    a.SourceLotOrderID,
					})
				}
			}

			// Every visited order is retired exactly once, including the
			// never-filled ones with zero effective volume.
			orderIDs = append(orderIDs, o.ID)
		}

		if err := s.persistLots(tx, traderID, matcher, originalQty); err != nil {
			return err
		}

		if len(profits) > 0 {
			if err := tx.Create(&profits).Error; err != nil {
				return fmt.Errorf("failed to insert profit records: %w", err)
			}
		}

		err = tx.Model(&models.TradeOrder{}).
			Where("id IN ?", orderIDs).
			Update("exhausted", true).Error
		if err != nil {
			return fmt.Errorf("failed to mark orders exhausted: %w", err)
		}

		return nil
	})
	if err != nil {
		return RunResult{}, fmt.Errorf("matching run failed: %w", err)
	}

	log.Info("Matching run completed",
		zap.Int("buy_orders_processed", result.BuyOrdersProcessed),
		zap.Int("sell_orders_processed", result.SellOrdersProcessed),
		zap.Int64("items_added_to_inventory", result.ItemsAddedToInventory),
		zap.Int64("items_sold", result.ItemsSold),
		zap.Int64("items_sold_without_purchase", result.ItemsSoldWithoutPurchase))

	return result, nil
}

// persistLots writes the matcher's final lot state back: new lots created,
// shrunk lots updated, fully consumed lots deleted. Lots created and fully
// consumed within the same run never touch storage.
func (s *Service) persistLots(tx *gorm.DB, traderID int64, matcher *Matcher, originalQty map[uint]int64) error {
	for _, lot := range matcher.OpenLots() {
		if lot.StoreID == 0 {
			row := models.InventoryLot{
				TraderID:        traderID,
				TypeID:          lot.TypeID,
				Quantity:        lot.Quantity,
				PurchasePrice:   lot.PurchasePrice,
				PurchaseOrderID: lot.PurchaseOrderID,
				PurchaseDate:    lot.PurchaseDate,
				AcquisitionFee:  lot.AcquisitionFee,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to create inventory lot: %w", err)
			}
			continue
		}

		if lot.Quantity != originalQty[lot.StoreID] {
			err := tx.Model(&models.InventoryLot{}).
				Where("id = ?", lot.StoreID).
				Update("quantity", lot.Quantity).Error
			if err != nil {
				return fmt.Errorf("failed to update inventory lot %d: %w", lot.StoreID, err)
			}
		}
	}

	for _, lot := range matcher.ConsumedLots() {
		if lot.StoreID == 0 {
			continue
		}
		if err := tx.Unscoped().Delete(&models.InventoryLot{}, lot.StoreID).Error; err != nil {
			return fmt.Errorf("failed to delete consumed lot %d: %w", lot.StoreID, err)
		}
	}

	return nil
}
