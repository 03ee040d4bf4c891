package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eve-trade-ledger/internal/catalog"
	"eve-trade-ledger/internal/config"
	"eve-trade-ledger/internal/database"
	"eve-trade-ledger/internal/esi"
	"eve-trade-ledger/internal/ingest"
	"eve-trade-ledger/internal/ledger"
	"eve-trade-ledger/internal/logger"
	"eve-trade-ledger/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	importCatalog := flag.Bool("catalog", false, "import the static item catalog before processing")
	configPath := flag.String("config", "./configs", "directory containing config.yml")
	flag.Parse()

	// Load application configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	client := esi.NewClient(&cfg.ESI, log)

	// Stop issuing further requests on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *importCatalog {
		importer := catalog.NewImporter(log, db, cfg.Catalog.TypesURL)
		if _, err := importer.Run(ctx); err != nil {
			log.Fatal("Catalog import failed", zap.Error(err))
		}
	}

	trader, err := loadTrader(db, &cfg.Trading)
	if err != nil {
		log.Fatal("Failed to load trader", zap.Error(err))
	}

	token, err := ensureToken(ctx, db, client, trader)
	if err != nil {
		log.Fatal("Failed to obtain access token", zap.Error(err))
	}

	ingestSvc := ingest.NewService(log, db, client)
	summary, err := ingestSvc.Run(ctx, trader.TraderID, token)
	if err != nil {
		// Prior pages are already persisted and ingestion is idempotent, so
		// matching can proceed; rerun later to pick up the missing pages.
		log.Warn("Ingestion ended early, rerun to resume", zap.Error(err))
	}
	log.Info("Ingestion summary",
		zap.Int("pages", summary.Pages),
		zap.Int("inserted", summary.Inserted),
		zap.Int("skipped", summary.Skipped),
		zap.Int("malformed", summary.Malformed))

	matchSvc := ledger.NewService(log, db)
	result, err := matchSvc.ProcessUnmatchedOrders(ctx, trader.TraderID, ledger.Rates{
		AcquisitionFeePercent: trader.BrokerFeeBuy,
		DisposalFeePercent:    trader.BrokerFeeSell,
		TaxPercent:            trader.SalesTax,
	})
	if err != nil {
		log.Fatal("Matching run failed", zap.Error(err))
	}

	log.Info("Run complete",
		zap.Int("buy_orders_processed", result.BuyOrdersProcessed),
		zap.Int("sell_orders_processed", result.SellOrdersProcessed),
		zap.Int64("items_added_to_inventory", result.ItemsAddedToInventory),
		zap.Int64("items_sold", result.ItemsSold),
		zap.Int64("items_sold_without_purchase", result.ItemsSoldWithoutPurchase))
}

// loadTrader fetches the configured trader row, creating it with the
// configured fee defaults on first run.
func loadTrader(db *gorm.DB, cfg *config.Trading) (*models.Trader, error) {
	if cfg.TraderID == 0 {
		return nil, errors.New("trading.trader_id is not configured")
	}

	trader := models.Trader{
		TraderID:      cfg.TraderID,
		BrokerFeeBuy:  cfg.BrokerFeeBuy,
		BrokerFeeSell: cfg.BrokerFeeSell,
		SalesTax:      cfg.SalesTax,
	}
	err := db.FirstOrCreate(&trader, models.Trader{TraderID: cfg.TraderID}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load trader %d: %w", cfg.TraderID, err)
	}
	return &trader, nil
}

// ensureToken returns a valid access token, refreshing and persisting it if
// the stored one is missing or expired.
func ensureToken(ctx context.Context, db *gorm.DB, client esi.ClientInterface, trader *models.Trader) (string, error) {
	if trader.AccessToken != "" && time.Now().Before(trader.TokenExpiry) {
		return trader.AccessToken, nil
	}

	if trader.RefreshToken == "" {
		return "", errors.New("no refresh token stored, log the character in first")
	}

	token, err := client.RefreshToken(ctx, trader.RefreshToken)
	if err != nil {
		return "", err
	}

	trader.AccessToken = token.AccessToken
	trader.TokenExpiry = token.TokenExpiry
	err = db.Model(trader).Updates(map[string]interface{}{
		"access_token": token.AccessToken,
		"token_expiry": token.TokenExpiry,
	}).Error
	if err != nil {
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	return token.AccessToken, nil
}
