package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hyperalpha/arena/internal/agent"
	"github.com/hyperalpha/arena/internal/config"
	"github.com/hyperalpha/arena/internal/database"
	"github.com/hyperalpha/arena/internal/hyperliquid"
	"github.com/hyperalpha/arena/internal/keyvault"
	"github.com/hyperalpha/arena/internal/market"
	"github.com/hyperalpha/arena/internal/model"
	"github.com/hyperalpha/arena/internal/news"
	"github.com/hyperalpha/arena/internal/prompt"
	"github.com/hyperalpha/arena/internal/server"
	"github.com/hyperalpha/arena/internal/snapshot"
	"github.com/hyperalpha/arena/internal/store"
	"github.com/hyperalpha/arena/internal/strategy"
	"github.com/hyperalpha/arena/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/arena.local.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger.Info("starting arena-server",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"environment", cfg.Hyperliquid.Environment,
		"http_addr", cfg.HTTP.Addr,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Key vault
	vault, err := keyvault.Open(cfg.Keys.EncryptionKeyFile)
	if err != nil {
		logger.Error("failed to open key vault", "error", err)
		os.Exit(1)
	}

	// Databases
	pools, err := database.NewPools(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pools.Close()

	if err := pools.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// Repositories
	accounts := store.NewAccountStore(pools.Arena)
	strategies := store.NewStrategyStore(pools.Arena)
	sampling := store.NewSamplingStore(pools.Arena, model.SamplingConfig{
		IntervalSeconds: int(cfg.Market.SamplingInterval / time.Second),
		WindowSize:      cfg.Market.SamplingWindow,
	})
	prompts := store.NewPromptStore(pools.Arena)
	trades := store.NewTradeStore(pools.Arena)
	positions := store.NewPositionStore(pools.Arena)
	chat := store.NewChatStore(pools.Arena)
	syslogs := store.NewSystemLogStore(pools.Arena)
	symbols := store.NewSymbolStore(pools.Arena)
	klineStore := store.NewKlineStore(pools.Arena)
	snapshots := store.NewSnapshotStore(pools.Snapshots)

	if err := prompts.SeedBuiltins(ctx); err != nil {
		logger.Error("failed to seed builtin prompts", "error", err)
		os.Exit(1)
	}

	// Batch writers and the system event logger
	writerCfg := store.WriterConfig{
		BatchSize:     cfg.Writers.BatchSize,
		FlushInterval: cfg.Writers.FlushInterval,
	}
	bufSize := cfg.Writers.BufferSize
	if bufSize <= 0 {
		bufSize = 1024
	}

	logBuf := store.NewBuffer[model.SystemLog](bufSize)
	logWriter := store.NewLogWriter(writerCfg, logBuf, pools.Arena, logger)
	if err := logWriter.Start(ctx); err != nil {
		logger.Error("failed to start log writer", "error", err)
		os.Exit(1)
	}
	defer stopComponent(logWriter.Stop, logger, "log writer")
	events := store.NewEventLogger(logBuf, "server")

	// Klines persist only from mainnet feeds.
	var klineBuf *store.Buffer[model.Kline]
	if cfg.Hyperliquid.Environment == "mainnet" {
		klineBuf = store.NewBuffer[model.Kline](bufSize)
		klineWriter := store.NewKlineWriter(writerCfg, klineBuf, pools.Arena, logger)
		if err := klineWriter.Start(ctx); err != nil {
			logger.Error("failed to start kline writer", "error", err)
			os.Exit(1)
		}
		defer stopComponent(klineWriter.Stop, logger, "kline writer")
	}

	// Exchange client and market data
	hlClient := hyperliquid.NewClient(
		cfg.Hyperliquid.RestURL,
		hyperliquid.WithLogger(logger),
		hyperliquid.WithTimeout(cfg.Hyperliquid.Timeout),
		hyperliquid.WithRetries(cfg.Hyperliquid.MaxRetries, time.Second),
	)

	prices := market.NewPriceCache(hlClient, cfg.Market.PriceCacheTTL, logger)
	catalog := market.NewCatalog(hlClient, cfg.Market.SymbolRefreshInterval, logger)
	if err := catalog.Start(ctx); err != nil {
		logger.Error("failed to start symbol catalog", "error", err)
		os.Exit(1)
	}
	defer stopComponent(catalog.Stop, logger, "catalog")

	// Sampling cadence comes from the DB row, falling back to config.
	samplingCfg, err := sampling.Get(ctx)
	if err != nil {
		logger.Error("failed to load sampling config", "error", err)
		os.Exit(1)
	}
	sampler := market.NewSampler(prices,
		time.Duration(samplingCfg.IntervalSeconds)*time.Second,
		samplingCfg.WindowSize, logger)
	sampler.SetEvents(events.WithSource("market"))
	if selected, err := symbols.Selected(ctx); err == nil && len(selected) > 0 {
		sampler.SetSymbols(selected)
	}
	if err := sampler.Start(ctx); err != nil {
		logger.Error("failed to start sampler", "error", err)
		os.Exit(1)
	}
	defer stopComponent(sampler.Stop, logger, "sampler")

	klines := market.NewKlineService(hlClient, klineBuf, logger)

	// Live price feed
	ws := hyperliquid.NewWSManager(hyperliquid.WSConfig{
		URL:                  cfg.Hyperliquid.WSURL,
		HeartbeatInterval:    cfg.Hyperliquid.HeartbeatInterval,
		ReconnectBaseDelay:   cfg.Hyperliquid.ReconnectBaseDelay,
		MaxReconnectAttempts: cfg.Hyperliquid.MaxReconnectAttempts,
	}, logger)
	ws.SetEvents(events.WithSource("websocket"))
	if err := ws.Start(ctx); err != nil {
		logger.Error("failed to start websocket", "error", err)
		os.Exit(1)
	}
	defer stopComponent(ws.Stop, logger, "websocket")

	err = ws.Subscribe(hyperliquid.Subscription{Type: hyperliquid.SubAllMids},
		func(msg hyperliquid.WSMessage) {
			var data hyperliquid.AllMidsData
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				logger.Warn("decode allMids failed", "error", err)
				return
			}
			prices.UpdateFromMids(data.Mids)
		})
	if err != nil {
		logger.Error("failed to subscribe to mids", "error", err)
		os.Exit(1)
	}

	// Live candles feed the kline writer on mainnet.
	if klineBuf != nil {
		selected, err := symbols.Selected(ctx)
		if err != nil {
			logger.Warn("load watchlist for candle feeds failed", "error", err)
		}
		for _, coin := range selected {
			sub := hyperliquid.Subscription{
				Type:     hyperliquid.SubCandle,
				Coin:     coin,
				Interval: "1m",
			}
			if err := ws.Subscribe(sub, func(msg hyperliquid.WSMessage) {
				var c hyperliquid.Candle
				if err := json.Unmarshal(msg.Data, &c); err != nil {
					logger.Warn("decode candle failed", "error", err)
					return
				}
				klineBuf.Send(market.ConvertCandle(c))
			}); err != nil {
				logger.Warn("candle subscribe failed", "coin", coin, "error", err)
			}
		}
	}

	// Dashboard hub
	hub := server.NewHub(logger)
	defer stopComponent(hub.Stop, logger, "hub")

	// News (optional)
	var headlines agent.NewsSource
	if cfg.News.Enabled {
		collector := news.NewCollector(news.Config{
			SourceURL: cfg.News.SourceURL,
			Selector:  cfg.News.Selector,
			Interval:  cfg.News.Interval,
			Headless:  cfg.News.Headless,
			MaxItems:  cfg.News.MaxItems,
		}, logger)
		if err := collector.Start(ctx); err != nil {
			logger.Warn("news collector disabled", "error", err)
		} else {
			headlines = collector
			defer stopComponent(collector.Stop, logger, "news")
		}
	}

	// Decision pipeline and strategy manager
	renderer := prompt.NewRenderer(catalog, klines, logger)
	pipeline := agent.NewPipeline(agent.PipelineDeps{
		Accounts:  accounts,
		Prompts:   prompts,
		Trades:    trades,
		Positions: positions,
		Chat:      chat,
		Vault:     vault,
		HL:        hlClient,
		Prices:    prices,
		Sampler:   sampler,
		Catalog:   catalog,
		Renderer:  renderer,
		News:      headlines,
		Hub:       hub,
		Events:    events.WithSource("agent"),
		Model: agent.ModelDefaults{
			BaseURL:     cfg.Model.BaseURL,
			APIKey:      cfg.Model.APIKey,
			Name:        cfg.Model.Model,
			Timeout:     cfg.Model.Timeout,
			Temperature: cfg.Model.Temperature,
		},
	}, logger)

	manager := strategy.NewManager(strategy.ManagerConfig{
		RefreshInterval: cfg.Strategy.RefreshInterval,
	}, strategies, sampler, pipeline, events.WithSource("strategy"), logger)
	if err := manager.Start(ctx); err != nil {
		logger.Error("failed to start strategy manager", "error", err)
		os.Exit(1)
	}
	defer stopComponent(manager.Stop, logger, "strategy manager")

	// Equity snapshots
	collector := snapshot.NewCollector(snapshot.Config{
		Interval:          cfg.Snapshot.Interval,
		Concurrency:       cfg.Snapshot.Concurrency,
		BroadcastInterval: cfg.Snapshot.BroadcastInterval,
	}, accounts, hlClient, snapshots, hub, logger)
	if err := collector.Start(ctx); err != nil {
		logger.Error("failed to start snapshot collector", "error", err)
		os.Exit(1)
	}
	defer stopComponent(collector.Stop, logger, "snapshot collector")

	// API server
	handler := &server.Handler{
		Auth:       server.NewAuthService(store.NewUserStore(pools.Arena), cfg.HTTP.JWTSecret),
		Accounts:   accounts,
		Strategies: strategies,
		Sampling:   sampling,
		Prompts:    prompts,
		Trades:     trades,
		Positions:  positions,
		Chat:       chat,
		Logs:       syslogs,
		Symbols:    symbols,
		Snapshots:  snapshots,
		Vault:      vault,
		Catalog:    catalog,
		Prices:     prices,
		Sampler:    sampler,
		Klines:     klines,
		KlineRows:  klineStore,
		HL:         hlClient,
		Strategy:   manager,
		Hub:        hub,
		Logger:     logger,
	}
	api := server.NewServer(cfg.HTTP.Addr, handler.Router(cfg.HTTP.AllowedOrigins), logger)
	if err := api.Start(ctx); err != nil {
		logger.Error("failed to start api server", "error", err)
		os.Exit(1)
	}

	events.Info("arena server started (%s)", cfg.Hyperliquid.Environment)
	logger.Info("arena running",
		"instance_id", cfg.Instance.ID,
		"addr", cfg.HTTP.Addr,
	)

	select {
	case <-ctx.Done():
	case err := <-api.Err():
		logger.Error("api server failed", "error", err)
		cancel()
	}

	logger.Info("shutting down...")

	stopComponent(api.Stop, logger, "api server")

	// The rest stops via defers in reverse start order; the writers
	// were registered first so they drain last.
	defer logger.Info("arena stopped")
}

// stopComponent stops one component with its own shutdown deadline.
func stopComponent(stop func(context.Context) error, logger *slog.Logger, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("component stop failed", "component", name, "error", err)
	}
}
