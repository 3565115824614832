package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arbscan/flash-searcher/internal/chain"
	"github.com/arbscan/flash-searcher/internal/engine"
	"github.com/arbscan/flash-searcher/internal/scanner"
	"github.com/arbscan/flash-searcher/internal/venue"
)

// demo mode: two simulated constant-product pools with drifting reserves,
// no RPC and no database. Lets you watch the detection loop find
// opportunities without touching a chain.
func main() {
	interval := flag.Duration("interval", time.Second, "scan interval")
	driftBps := flag.Int64("drift", 30, "max reserve drift per scan, basis points")
	seed := flag.Int64("seed", time.Now().UnixNano(), "rng seed for reserve drift")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	// ~600 BUSD per WBNB on both pools, with slightly different depth so
	// drift opens spreads quickly
	wbnb := new(big.Int).Mul(big.NewInt(10_000), big.NewInt(1e18))
	busdA := new(big.Int).Mul(big.NewInt(6_000_000), big.NewInt(1e18))
	busdB := new(big.Int).Mul(big.NewInt(6_012_000), big.NewInt(1e18))

	pancake, err := venue.NewSimVenue("pancakeswap", 25, wbnb, busdA, *driftBps, *seed)
	if err != nil {
		log.Fatalf("failed to build pool: %v", err)
	}
	biswap, err := venue.NewSimVenue("biswap", 10, wbnb, busdB, *driftBps, *seed+1)
	if err != nil {
		log.Fatalf("failed to build pool: %v", err)
	}

	borrow := new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18))

	fmt.Println("==============================================")
	fmt.Println("  flash-searcher demo (simulated pools)")
	fmt.Println("==============================================")
	fmt.Printf("  borrow:   10 WBNB\n")
	fmt.Printf("  drift:    %d bps per scan\n", *driftBps)
	fmt.Printf("  interval: %s\n", *interval)
	fmt.Println("==============================================")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := scanner.New(scanner.Config{
		Interval:          *interval,
		Live:              false,
		TokenBorrow:       chain.WBNBAddress,
		TokenIntermediate: chain.BUSDAddress,
		BorrowSymbol:      "WBNB",
		BorrowDecimals:    18,
		InterDecimals:     18,
		Engine: engine.Config{
			BorrowAmount: borrow,
			MinProfit:    new(big.Int).Div(big.NewInt(1e18), big.NewInt(1000)),
			BorrowFeeBps: 9,
			FixedCost:    new(big.Int).Div(big.NewInt(1e18), big.NewInt(2000)),
		},
	}, []venue.Quoter{pancake, biswap}, nil, nil, logger)

	if err := s.Run(ctx); err != nil {
		log.Fatalf("demo loop failed: %v", err)
	}
}
