package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AROMARkom/oil/internal/bot"
	"github.com/AROMARkom/oil/internal/broker"
	"github.com/AROMARkom/oil/internal/config"
)

func main() {
	// A missing .env is fine, credentials can come from the real environment.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("Failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	var data broker.MarketData
	var exec broker.Execution

	switch cfg.Mode {
	case config.ModeBinance:
		bn := broker.NewBinance(cfg.Binance.APIKey, cfg.Binance.SecretKey)
		data = bn
		exec = bn
	case config.ModePaper:
		// Paper trading still reads live market data, unauthenticated.
		bn := broker.NewBinance("", "")
		data = bn
		exec = broker.NewPaper(bn, cfg.Symbol, cfg.Paper.InitialBalance)
	}

	// Entries go through the safety wrapper in every mode.
	exec = broker.NewSafeExecution(exec, 3, cfg.PollInterval()/2)

	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, nil); err != nil {
				slog.Error("Metrics server stopped", "error", err)
			}
		}()
		slog.Info("Serving metrics", "addr", addr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := bot.New(cfg, data, exec)

	// SIGUSR1 clears the sticky total-drawdown halt after operator review.
	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	go func() {
		for range usr1 {
			b.ResetTotalHalt()
		}
	}()

	slog.Info("Starting", "symbol", cfg.Symbol, "mode", cfg.Mode)
	if err := b.Run(ctx); err != nil {
		slog.Error("Bot stopped", "error", err)
		os.Exit(1)
	}
}
