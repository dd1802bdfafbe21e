package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradehook/internal/api"
	"tradehook/internal/bot"
	"tradehook/internal/config"
	"tradehook/internal/exchange"
	"tradehook/internal/ledger"
	"tradehook/internal/notify"
	"tradehook/pkg/utils"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	defer log.Sync()

	mode := "live"
	if cfg.Exchange.UseTestnet {
		mode = "testnet"
	}
	log.Info("starting tradehook",
		utils.String("mode", mode),
		utils.Int("leverage", cfg.Trading.Leverage),
		utils.Float64("trade_amount", cfg.Trading.TradeAmount),
		utils.Int("max_active_trades", cfg.Trading.MaxActiveTrades),
	)

	// Биржа
	client := exchange.NewBinance(cfg.Exchange.APIKey(), cfg.Exchange.SecretKey(), cfg.Exchange.UseTestnet)
	defer exchange.CloseGlobalClient()

	// Реестр сделок
	led := ledger.New()

	// Уведомления: Telegram если настроен, иначе лог
	var sender notify.Sender
	if cfg.Telegram.Enabled() {
		tg, err := notify.NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			log.Fatal("telegram init failed", utils.Err(err))
		}
		sender = tg
		log.Info("telegram notifications enabled", utils.Int64("chat_id", cfg.Telegram.ChatID))
	} else {
		sender = notify.NewLogSender(log)
		log.Warn("telegram not configured, notifications go to log")
	}
	notifier := notify.NewService(sender, led.ActiveCount, cfg.Trading.Leverage, cfg.Trading.TradeAmount, log)

	// Торговый движок
	engine := bot.NewEngine(cfg, client, led, notifier, log)

	// Дневной отчёт в "торговую полночь"
	summaryCtx, stopSummary := context.WithCancel(context.Background())
	go notifier.RunDailySummary(summaryCtx, cfg.Telegram.SummaryUTCOffset)

	// HTTP сервер
	router := api.SetupRoutes(&api.Dependencies{Engine: engine, Trades: led})
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("http server listening", utils.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", utils.Err(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", utils.Err(err))
	}

	stopSummary()
	engine.Close()

	log.Info("server exited")
}
