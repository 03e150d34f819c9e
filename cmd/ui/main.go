package main

import (
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"quant-trade-bot-go/internal/config"
	"quant-trade-bot-go/internal/database"
	"quant-trade-bot-go/internal/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger, "ui")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Connect to the journal the trader writes
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting web server", zap.String("address", addr))

	if err := http.ListenAndServe(addr, newMux(NewAPIHandler(log, db))); err != nil {
		log.Fatal("Web server failed", zap.Error(err))
	}
}

func newMux(apiHandler *APIHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", apiHandler.StatusHandler)
	mux.HandleFunc("/api/intents", apiHandler.IntentsHandler)
	mux.HandleFunc("/api/decisions", apiHandler.DecisionsHandler)
	mux.HandleFunc("/api/statistics", apiHandler.StatisticsHandler)
	return mux
}
