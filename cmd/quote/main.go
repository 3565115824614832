package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/arbscan/flash-searcher/internal/chain"
	"github.com/arbscan/flash-searcher/internal/config"
	"github.com/arbscan/flash-searcher/internal/engine"
	"github.com/arbscan/flash-searcher/internal/venue"
)

// one-shot quote matrix: fetch every venue once, run the evaluation and
// print all pairwise simulations, profitable or not
func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	net := cfg.ActiveNetwork()
	client, err := chain.Dial(ctx, net.RPC, net.ChainID)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", cfg.Network, err)
	}
	defer client.Close()

	var quoters []venue.Quoter
	for _, r := range net.Routers {
		q, err := venue.NewRouterQuoter(client, r.Name, common.HexToAddress(r.Address), r.FeeBps)
		if err != nil {
			log.Fatalf("failed to set up %s quoter: %v", r.Name, err)
		}
		quoters = append(quoters, q)
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		log.Fatalf("invalid trade parameters: %v", err)
	}

	resolver, err := venue.NewMetaResolver(client, nil, logger)
	if err != nil {
		log.Fatalf("failed to set up token resolver: %v", err)
	}
	borrowMeta, err := resolver.Resolve(ctx, cfg.TokenAddress(cfg.Trade.TokenBorrow))
	if err != nil {
		log.Fatalf("failed to resolve %s: %v", cfg.Trade.TokenBorrow, err)
	}
	interMeta, err := resolver.Resolve(ctx, cfg.TokenAddress(cfg.Trade.TokenIntermediate))
	if err != nil {
		log.Fatalf("failed to resolve %s: %v", cfg.Trade.TokenIntermediate, err)
	}
	borrowAmt := func(x *big.Int) string {
		return decimal.NewFromBigInt(x, -int32(borrowMeta.Decimals)).StringFixed(6)
	}
	interAmt := func(x *big.Int) string {
		return decimal.NewFromBigInt(x, -int32(interMeta.Decimals)).StringFixed(6)
	}

	path := []common.Address{
		cfg.TokenAddress(cfg.Trade.TokenBorrow),
		cfg.TokenAddress(cfg.Trade.TokenIntermediate),
	}
	quotes := venue.FetchQuotes(ctx, quoters, engineCfg.BorrowAmount, path, logger)
	if len(quotes) == 0 {
		log.Fatal("no venue returned a quote")
	}

	result, err := engine.Evaluate(quotes, engineCfg)
	if err != nil {
		log.Fatalf("evaluation failed: %v", err)
	}

	fmt.Printf("quotes for %s %s -> %s:\n", cfg.Trade.BorrowAmount,
		borrowMeta.Symbol, interMeta.Symbol)
	for _, q := range quotes {
		fmt.Printf("  %-14s %s (fee %d bps)\n", q.Venue, interAmt(q.AmountOut), q.FeeBps)
	}

	fmt.Printf("\n%-14s %-14s %14s %14s %10s\n", "BUY", "SELL", "GROSS", "NET", "SPREAD")
	for _, sim := range result.Simulations {
		fmt.Printf("%-14s %-14s %14s %14s %9.4f%%\n",
			sim.BuyVenue, sim.SellVenue, borrowAmt(sim.GrossProfit), borrowAmt(sim.NetProfit),
			sim.SpreadBps/100)
	}

	if result.Opportunity == nil {
		fmt.Println("\nno profitable opportunity at current prices")
		return
	}
	opp := result.Opportunity
	fmt.Printf("\nbest: buy %s, sell %s, net %s %s\n",
		opp.BuyVenue, opp.SellVenue, borrowAmt(opp.NetProfit), borrowMeta.Symbol)
}
