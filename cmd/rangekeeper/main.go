package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/rangekeeper/rangekeeper/config"
	"github.com/rangekeeper/rangekeeper/internal/adapters/notify"
	"github.com/rangekeeper/rangekeeper/internal/adapters/onchain"
	"github.com/rangekeeper/rangekeeper/internal/adapters/pricefeed"
	"github.com/rangekeeper/rangekeeper/internal/adapters/storage"
	"github.com/rangekeeper/rangekeeper/internal/core"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "initialize every pool, process one price tick each, then exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("rangekeeper starting",
		"config", *configPath,
		"pools", len(cfg.Pools),
		"once", *once,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	chain, err := onchain.NewClient(ctx, cfg.Wallet.RPCURL, cfg.Wallet.PrivateKeyHex)
	if err != nil {
		slog.Error("failed to connect to chain", "err", err, "rpc_url", cfg.Wallet.RPCURL)
		os.Exit(1)
	}
	defer chain.Close()

	readOnlyEth, err := ethclient.DialContext(ctx, cfg.Wallet.RPCURL)
	if err != nil {
		slog.Error("failed to open read-only rpc connection", "err", err)
		os.Exit(1)
	}
	defer readOnlyEth.Close()

	notifier := notify.NewConsole()

	var wg sync.WaitGroup
	for _, poolCfg := range cfg.Pools {
		poolCfg := poolCfg
		engine := buildEngine(chain, store, notifier, poolCfg)

		if err := engine.Initialize(ctx); err != nil {
			slog.Error("failed to initialize engine", "pool", poolCfg.PoolID, "err", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			runPool(ctx, engine, readOnlyEth, poolCfg, cfg.PricefeedInterval(), *once)
		}()
	}

	wg.Wait()
	slog.Info("rangekeeper stopped cleanly")
}

// buildEngine wires one pool's collaborators and constructs its engine.
func buildEngine(chain *onchain.Client, store *storage.SQLiteStorage, notifier *notify.Console, poolCfg config.PoolConfig) *core.Engine {
	collaborators := core.Collaborators{
		NftManager:  onchain.NewNftManager(chain, poolCfg.NftManager),
		Router:      onchain.NewSwapRouterClient(chain, poolCfg.SwapRouter, poolCfg.PoolAddress, poolCfg.Token0, poolCfg.Decimals0, poolCfg.Decimals1),
		GasOracle:   onchain.NewGasOracle(chain),
		Persistence: store,
		History:     store,
		Notifier:    notifier,
		Health:      store,
		Balances:    onchain.NewBalances(chain),
	}
	return core.NewEngine(poolCfg.ToCore(), collaborators)
}

// runPool subscribes poolCfg's price feed and drives its engine from
// every tick until ctx is done. In -once mode it processes exactly one
// tick then returns.
func runPool(ctx context.Context, engine *core.Engine, eth *ethclient.Client, poolCfg config.PoolConfig, interval time.Duration, once bool) {
	poller := pricefeed.NewPoller(eth, poolCfg.PoolAddress, interval)
	ticks, err := poller.Subscribe(ctx)
	if err != nil {
		slog.Error("failed to subscribe to price feed", "pool", poolCfg.PoolID, "err", err)
		return
	}

	for tick := range ticks {
		engine.OnPriceTick(ctx, tick)
		if once {
			return
		}
	}
}

// setupLogger installs the process-wide slog handler from cfg, mirroring
// the teacher's setupLogger.
func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
