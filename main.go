package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vinted-monitor/config"
	"vinted-monitor/fuzzy"
	"vinted-monitor/httpserver"
	"vinted-monitor/notify"
	"vinted-monitor/scraper/vinted"
	"vinted-monitor/services"
	"vinted-monitor/storage"
	"vinted-monitor/utils"
	"vinted-monitor/valuation"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(utils.ParseLevel(cfg.LogLevel))

	logger.Info("=== Vinted monitor starting ===")
	logger.Info("Config: items/query: %d | concurrency: %d | rate: %dms | interval: %v | fuzzy: %d",
		cfg.ItemsPerQuery, cfg.MaxConcurrency, cfg.RateLimitMs, cfg.ScrapeInterval(), cfg.FuzzyThreshold)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewPostgresStore(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		logger.Error("Make sure Docker is running: docker compose up -d")
		os.Exit(1)
	}
	defer store.Close()

	var journal storage.NotificationWriter
	if cfg.CSVOutputPath != "" {
		csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
		if err != nil {
			logger.Error("Failed to create CSV writer: %v", err)
			os.Exit(1)
		}
		defer csvWriter.Close()
		journal = csvWriter
	}

	tmpl, err := services.ParseMessageTemplate(cfg.MessageTemplate)
	if err != nil {
		logger.Error("Invalid MESSAGE_TEMPLATE: %v", err)
		os.Exit(1)
	}

	if cfg.EbayAppID == "" {
		logger.Warn("EBAY_APP_ID is not set; valuations will have no comps")
	}
	fetcher := valuation.NewEbayFetcher(valuation.EbayConfig{
		AppID:             cfg.EbayAppID,
		DefaultGlobalID:   cfg.EbayGlobalID,
		Timeout:           cfg.EbayTimeout(),
		RequestsPerSecond: cfg.EbayRPS,
	}, logger)
	engine := valuation.NewEngine(fetcher, valuation.Options{
		SoldLimit:            cfg.SoldCompLimit,
		ActiveLimit:          cfg.ActiveListingLimit,
		LowVarianceThreshold: cfg.LowVarianceThreshold,
	}, logger)

	client := vinted.New(vinted.Config{
		BaseURL:    cfg.VintedBaseURL,
		ChromeBin:  cfg.ChromeBin,
		MaxRetries: cfg.MaxRetries,
	}, logger)
	if err := client.Start(ctx); err != nil {
		logger.Error("Failed to start browser session: %v", err)
		os.Exit(1)
	}
	defer client.Close()

	queries := services.NewQueryService(store, fuzzy.NewExpander(cfg.MaxVariants), cfg.EnableVariants, logger)
	allowlist := services.NewAllowlistService(store)
	reports := services.NewReportService(logger)

	var notifier services.Notifier = notify.NewLogNotifier(logger)
	if cfg.TelegramBotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			logger.Error("Failed to connect to Telegram: %v", err)
			os.Exit(1)
		}
		logger.Info("Telegram bot authorized as @%s", bot.Self.UserName)
		notifier = notify.NewTelegramNotifier(bot, cfg.TelegramChatID, logger)

		router := notify.NewCommandRouter(bot, cfg.TelegramChatID, queries, allowlist, logger)
		go func() {
			if err := router.Run(ctx); err != nil {
				logger.Error("Telegram command loop stopped: %v", err)
			}
		}()
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN is not set; alerts are written to the log")
	}

	processor := services.NewItemProcessor(services.ProcessorDeps{
		Store:     store,
		Countries: client,
		Matcher:   fuzzy.NewMatcher(float64(cfg.FuzzyThreshold)),
		Valuator:  engine,
		Notifier:  notifier,
		Journal:   journal,
		Template:  tmpl,
		Logger:    logger,
	})

	monitor := services.NewMonitor(services.MonitorConfig{
		ItemsPerQuery:  cfg.ItemsPerQuery,
		NewItemMaxAge:  cfg.NewItemMaxAge(),
		ScrapeInterval: cfg.ScrapeInterval(),
		DrainInterval:  cfg.QueueDrainInterval(),
		MaxConcurrency: cfg.MaxConcurrency,
		RateLimitMs:    cfg.RateLimitMs,
	}, store, client, services.NewCleaner(logger), processor, reports, logger)

	if cfg.HTTPAddr != "" {
		srv := httpserver.New(cfg.HTTPAddr, store, reports, logger)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP shutdown: %v", err)
			}
		}()
	}

	if err := monitor.Run(ctx); err != nil {
		logger.Error("Monitor stopped: %v", err)
	}
	logger.Info("=== Vinted monitor stopped ===")
}
