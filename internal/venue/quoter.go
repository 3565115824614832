package venue

import (
	"context"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arbscan/flash-searcher/internal/engine"
)

// Quoter answers the canonical borrow-sized quote for one liquidity source.
type Quoter interface {
	Name() string
	FeeBps() int64
	// Quote returns the output amount for amountIn swapped along path, in
	// the output token's smallest units.
	Quote(ctx context.Context, amountIn *big.Int, path []common.Address) (*big.Int, error)
}

// FetchQuotes queries every venue concurrently and joins before returning,
// so quotes from different venues are captured as close to simultaneously
// as the RPC allows. Failed venues are logged and dropped from the result;
// the caller degrades to whatever subset survived.
//
// Result order follows the quoters slice, which keeps the engine's
// tie-break reproducible across scans.
func FetchQuotes(ctx context.Context, quoters []Quoter, amountIn *big.Int, path []common.Address, logger *slog.Logger) []engine.VenueQuote {
	type result struct {
		out *big.Int
		err error
	}
	results := make([]result, len(quoters))

	var wg sync.WaitGroup
	for i, q := range quoters {
		wg.Add(1)
		go func(i int, q Quoter) {
			defer wg.Done()
			out, err := q.Quote(ctx, amountIn, path)
			results[i] = result{out: out, err: err}
		}(i, q)
	}
	wg.Wait()

	quotes := make([]engine.VenueQuote, 0, len(quoters))
	for i, r := range results {
		if r.err != nil {
			logger.Warn("quote failed", "venue", quoters[i].Name(), "error", r.err)
			continue
		}
		quotes = append(quotes, engine.VenueQuote{
			Venue:     quoters[i].Name(),
			AmountOut: r.out,
			FeeBps:    quoters[i].FeeBps(),
		})
	}
	return quotes
}
