package main

import (
	"fmt"
	"net/http"
	"os"

	"eve-trade-ledger/internal/config"
	"eve-trade-ledger/internal/database"
	"eve-trade-ledger/internal/logger"
	"eve-trade-ledger/internal/report"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
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

	// Connect to the database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	aggregator := report.NewAggregator(log, db)
	apiHandler := NewAPIHandler(log, aggregator, cfg.Trading.TraderID)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", apiHandler.StatusHandler)
	mux.HandleFunc("/api/reports/monthly", apiHandler.MonthlyHandler)
	mux.HandleFunc("/api/reports/daily", apiHandler.DailyHandler)
	mux.HandleFunc("/api/reports/items", apiHandler.ItemsHandler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting report server", zap.String("address", addr))

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal("Report server failed", zap.Error(err))
	}
}
