package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"quant-trade-bot-go/internal/binance"
	"quant-trade-bot-go/internal/config"
	"quant-trade-bot-go/internal/database"
	"quant-trade-bot-go/internal/logger"
	"quant-trade-bot-go/internal/trader"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Logger, "trader")
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded",
		zap.String("strategy", cfg.Trading.Strategy),
		zap.Bool("futures", cfg.Binance.Futures),
		zap.Bool("dry_run", cfg.Trading.DryRun))

	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	restClient := binance.NewRestClient(&cfg.Binance, log)
	if _, err := restClient.GetServerTime(ctx); err != nil {
		log.Fatal("Failed to connect to Binance API", zap.Error(err))
	}
	log.Info("Successfully connected to Binance API.")

	strategy, err := trader.NewStrategy(&cfg, log)
	if err != nil {
		log.Fatal("Failed to create strategy", zap.Error(err))
	}

	var stream *binance.BookTickerStream
	if cfg.Binance.Stream {
		symbols := make([]string, 0, len(strategy.Pairs()))
		for _, p := range strategy.Pairs() {
			symbols = append(symbols, p.Symbol())
		}
		stream = binance.NewBookTickerStream(symbols, cfg.Binance.Testnet, cfg.Binance.Futures, log)
		go stream.Run(ctx)
	}

	exchange := binance.NewExchange(restClient, stream, cfg.Binance.Futures, log)
	if err := exchange.LoadRules(ctx); err != nil {
		log.Fatal("Failed to load exchange rules", zap.Error(err))
	}

	tradeEngine := trader.NewEngine(log, &cfg, exchange, db, strategy)
	apiServer := trader.NewAPIServer(tradeEngine, log)
	apiServer.Start()

	if err := tradeEngine.Run(ctx); err != nil {
		log.Error("Trading engine stopped with error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server", zap.Error(err))
	}

	log.Info("Bot has been shut down.")
}
