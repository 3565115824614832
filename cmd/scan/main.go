package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/arbscan/flash-searcher/internal/chain"
	"github.com/arbscan/flash-searcher/internal/config"
	"github.com/arbscan/flash-searcher/internal/executor"
	"github.com/arbscan/flash-searcher/internal/scanner"
	"github.com/arbscan/flash-searcher/internal/storage"
	"github.com/arbscan/flash-searcher/internal/venue"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	live := flag.Bool("live", false, "submit real transactions (overrides dry_run)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *live {
		cfg.Trade.DryRun = false
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if !cfg.Trade.DryRun && !confirmLive() {
		fmt.Println("aborted")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	net := cfg.ActiveNetwork()
	client, err := chain.Dial(ctx, net.RPC, net.ChainID)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", cfg.Network, err)
	}
	defer client.Close()

	quoters := make([]venue.Quoter, 0, len(net.Routers))
	routers := make(map[string]common.Address, len(net.Routers))
	for _, r := range net.Routers {
		q, err := venue.NewRouterQuoter(client, r.Name, common.HexToAddress(r.Address), r.FeeBps)
		if err != nil {
			log.Fatalf("failed to set up %s quoter: %v", r.Name, err)
		}
		quoters = append(quoters, q)
		routers[r.Name] = common.HexToAddress(r.Address)
	}

	var cache *storage.TokenCache
	if cfg.Cache.Path != "" {
		cache, err = storage.NewTokenCache(cfg.Cache.Path)
		if err != nil {
			logger.Warn("token cache unavailable, using on-chain lookups only", "error", err)
		} else {
			defer cache.Close()
		}
	}
	resolver, err := venue.NewMetaResolver(client, cache, logger)
	if err != nil {
		log.Fatalf("failed to set up token resolver: %v", err)
	}

	borrow := cfg.TokenAddress(cfg.Trade.TokenBorrow)
	inter := cfg.TokenAddress(cfg.Trade.TokenIntermediate)
	borrowMeta, err := resolver.Resolve(ctx, borrow)
	if err != nil {
		log.Fatalf("failed to resolve %s: %v", cfg.Trade.TokenBorrow, err)
	}
	interMeta, err := resolver.Resolve(ctx, inter)
	if err != nil {
		log.Fatalf("failed to resolve %s: %v", cfg.Trade.TokenIntermediate, err)
	}

	var sink *storage.Sink
	if cfg.Database.URL != "" {
		sink, err = storage.NewSink(ctx, cfg.Database.URL, logger)
		if err != nil {
			logger.Warn("metrics database unavailable, running without persistence", "error", err)
		} else {
			defer sink.Close()
			if err := sink.Migrate(ctx); err != nil {
				log.Fatalf("failed to migrate metrics schema: %v", err)
			}
		}
	}

	var gateway scanner.Gateway
	if net.Contract != "" {
		gw, err := executor.New(client, common.HexToAddress(net.Contract),
			os.Getenv("PRIVATE_KEY"), cfg.Trade.GasLimit, cfg.Trade.DryRun, logger)
		if err != nil {
			log.Fatalf("failed to set up executor: %v", err)
		}
		gateway = gw
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		log.Fatalf("invalid trade parameters: %v", err)
	}

	banner(ctx, cfg, client, gateway, borrowMeta.Symbol, interMeta.Symbol)

	s := scanner.New(scanner.Config{
		Interval:          cfg.Trade.ScanInterval,
		Live:              !cfg.Trade.DryRun,
		TokenBorrow:       borrow,
		TokenIntermediate: inter,
		BorrowSymbol:      borrowMeta.Symbol,
		BorrowDecimals:    int32(borrowMeta.Decimals),
		InterDecimals:     int32(interMeta.Decimals),
		Routers:           routers,
		Engine:            engineCfg,
	}, quoters, metricsOrNil(sink), gateway, logger)

	if err := s.Run(ctx); err != nil {
		log.Fatalf("scan loop failed: %v", err)
	}

	if sink != nil {
		printShutdownStats(sink)
	}
}

// metricsOrNil avoids the typed-nil interface trap when no sink is configured.
func metricsOrNil(sink *storage.Sink) scanner.Metrics {
	if sink == nil {
		return nil
	}
	return sink
}

// confirmLive requires an explicit CONFIRM before spending real funds.
func confirmLive() bool {
	fmt.Println("!!! LIVE MODE: real transactions will be submitted !!!")
	fmt.Print("type CONFIRM to continue: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == "CONFIRM"
}

func banner(ctx context.Context, cfg config.Config, client *chain.Client, gateway scanner.Gateway, borrowSymbol, interSymbol string) {
	mode := "DRY RUN"
	if !cfg.Trade.DryRun {
		mode = "LIVE"
	}
	fmt.Println("==============================================")
	fmt.Println("  flash-searcher arbitrage scanner")
	fmt.Println("==============================================")
	fmt.Printf("  network:   %s (chain %d)\n", cfg.Network, client.ChainID())
	fmt.Printf("  pair:      %s -> %s -> %s\n", borrowSymbol, interSymbol, borrowSymbol)
	fmt.Printf("  borrow:    %s %s\n", cfg.Trade.BorrowAmount, borrowSymbol)
	for _, r := range cfg.ActiveNetwork().Routers {
		fmt.Printf("  router:    %-14s %s\n", r.Name, r.Address)
	}
	fmt.Printf("  interval:  %s\n", cfg.Trade.ScanInterval)
	fmt.Printf("  mode:      %s\n", mode)
	if gw, ok := gateway.(*executor.Gateway); ok && !cfg.Trade.DryRun {
		fmt.Printf("  wallet:    %s\n", gw.From().Hex())
		if bal, err := client.BalanceAt(ctx, gw.From(), nil); err == nil {
			fmt.Printf("  balance:   %s BNB\n", decimal.NewFromBigInt(bal, -18).StringFixed(4))
		}
	}
	fmt.Println("==============================================")
	fmt.Println()
}

func printShutdownStats(sink *storage.Sink) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := sink.Statistics(ctx, 24*time.Hour)
	if err != nil {
		return
	}
	fmt.Println("\nlast 24h:")
	fmt.Printf("  scans:         %d (%d price changes)\n", stats.TotalScans, stats.PriceChanges)
	fmt.Printf("  opportunities: %d\n", stats.TotalOpportunities)
	fmt.Printf("  net profit:    %s\n", stats.TotalNetProfit)
}
