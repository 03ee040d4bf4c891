// Package ingest pulls a character's paginated order history from ESI and
// lands it in the order ledger. Ingestion is idempotent: rows are keyed by
// the feed-assigned order_id and inserted with insert-or-ignore, so a rerun
// over the same pages is a no-op and a failed run can simply be retried.
package ingest

import (
	"context"
	"fmt"

	"eve-trade-ledger/internal/esi"
	"eve-trade-ledger/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Summary reports what one ingestion run did.
type Summary struct {
	Pages     int `json:"pages"`
	Fetched   int `json:"fetched"`
	Inserted  int `json:"inserted"`
	Skipped   int `json:"skipped"`
	Malformed int `json:"malformed"`
}

// Service is the ingestion pipeline.
type Service struct {
	logger *zap.Logger
	db     *gorm.DB
	client esi.ClientInterface
}

// NewService creates a new ingestion service.
func NewService(logger *zap.Logger, db *gorm.DB, client esi.ClientInterface) *Service {
	return &Service{logger: logger, db: db, client: client}
}

// Run fetches every available history page for the trader and persists the
// orders. A transient feed error aborts the current page but keeps everything
// already persisted; the returned Summary covers the completed pages and the
// caller may rerun to resume.
func (s *Service) Run(ctx context.Context, traderID int64, accessToken string) (Summary, error) {
	var summary Summary
	page := 1

	for {
		s.logger.Debug("Fetching orders history page",
			zap.Int64("trader_id", traderID), zap.Int("page", page))

		orders, hasMore, err := s.client.OrdersHistory(ctx, traderID, accessToken, page)
		if err != nil {
			return summary, fmt.Errorf("ingestion aborted at page %d: %w", page, err)
		}
		if len(orders) == 0 {
			break
		}

		summary.Pages++
		summary.Fetched += len(orders)

		rows := make([]models.TradeOrder, 0, len(orders))
		for _, dto := range orders {
			if err := validate(dto); err != nil {
				summary.Malformed++
				s.logger.Warn("Skipping malformed order record",
					zap.Int64("order_id", dto.OrderID), zap.Error(err))
				continue
			}
			rows = append(rows, toModel(traderID, dto))
		}

		inserted, skipped, err := s.persist(rows)
		if err != nil {
			return summary, fmt.Errorf("failed to persist page %d: %w", page, err)
		}
		summary.Inserted += inserted
		summary.Skipped += skipped

		s.logger.Info("Ingested orders history page",
			zap.Int64("trader_id", traderID),
			zap.Int("page", page),
			zap.Int("inserted", inserted),
			zap.Int("skipped", skipped))

		if !hasMore {
			break
		}
		page++
	}

	s.logger.Info("Ingestion completed",
		zap.Int64("trader_id", traderID),
		zap.Int("pages", summary.Pages),
		zap.Int("fetched", summary.Fetched),
		zap.Int("inserted", summary.Inserted),
		zap.Int("skipped", summary.Skipped),
		zap.Int("malformed", summary.Malformed))

	return summary, nil
}

// persist inserts the rows with insert-or-ignore on order_id and reports how
// many were new versus already present.
func (s *Service) persist(rows []models.TradeOrder) (inserted, skipped int, err error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}

	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoNothing: true,
	}).Create(&rows)
	if result.Error != nil {
		return 0, 0, result.Error
	}

	inserted = int(result.RowsAffected)
	return inserted, len(rows) - inserted, nil
}

func validate(dto esi.OrderDTO) error {
	switch {
	case dto.OrderID <= 0:
		return fmt.Errorf("invalid order_id %d", dto.OrderID)
	case dto.Issued.IsZero():
		return fmt.Errorf("missing issued timestamp")
	case dto.Price < 0:
		return fmt.Errorf("negative price %f", dto.Price)
	case dto.VolumeTotal < 0:
		return fmt.Errorf("negative volume_total %d", dto.VolumeTotal)
	case dto.VolumeRemain < 0 || dto.VolumeRemain > dto.VolumeTotal:
		return fmt.Errorf("volume_remain %d outside [0, %d]", dto.VolumeRemain, dto.VolumeTotal)
	}
	return nil
}

func toModel(traderID int64, dto esi.OrderDTO) models.TradeOrder {
	return models.TradeOrder{
		OrderID:         dto.OrderID,
		TraderID:        traderID,
		TypeID:          dto.TypeID,
		IsBuyOrder:      dto.IsBuyOrder,
		IssuedAt:        dto.Issued,
		Price:           dto.Price,
		VolumeTotal:     dto.VolumeTotal,
		VolumeRemain:    dto.VolumeRemain,
		VolumeEffective: dto.VolumeTotal - dto.VolumeRemain,
		LocationID:      dto.LocationID,
		RegionID:        dto.RegionID,
		State:           dto.State,
	}
}
