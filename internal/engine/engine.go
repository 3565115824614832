package engine

import (
	"fmt"
	"math/big"
)

const bpsDenom = 10_000

// Config carries the static trade parameters. Amounts are smallest units of
// the borrow token.
type Config struct {
	BorrowAmount *big.Int
	// MinProfit is a strict lower bound: net profit must exceed it for a
	// simulation to count as an opportunity.
	MinProfit    *big.Int
	BorrowFeeBps int64
	FixedCost    *big.Int
	// MinSpreadBps gates opportunity selection only; simulations below the
	// spread floor are still recorded. Zero disables the filter.
	MinSpreadBps float64
}

// Validate reports configuration errors. These are fatal at startup; the
// scan loop must not start with a config that fails here.
func (c Config) Validate() error {
	if c.BorrowAmount == nil || c.BorrowAmount.Sign() <= 0 {
		return fmt.Errorf("borrow amount must be positive")
	}
	if c.MinProfit == nil {
		return fmt.Errorf("min profit threshold is required")
	}
	if c.BorrowFeeBps < 0 || c.BorrowFeeBps >= bpsDenom {
		return fmt.Errorf("borrow fee %d bps out of range [0, %d)", c.BorrowFeeBps, bpsDenom)
	}
	if c.FixedCost == nil || c.FixedCost.Sign() < 0 {
		return fmt.Errorf("fixed execution cost must be non-negative")
	}
	if c.MinSpreadBps < 0 {
		return fmt.Errorf("min spread must be non-negative")
	}
	return nil
}

// Evaluate runs every ordered venue pair through the round-trip model and
// selects the most profitable simulation that clears the threshold. Ties
// keep the first pair encountered, iterating buy-venue outer and sell-venue
// inner over the quote slice order, so results are reproducible for a given
// quote ordering.
//
// Fewer than two usable quotes yields an empty result with a nil error: a
// venue dropping out of a scan is expected, not exceptional. The only error
// path is a malformed Config.
func Evaluate(quotes []VenueQuote, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	usable := make([]VenueQuote, 0, len(quotes))
	for _, q := range quotes {
		if q.AmountOut == nil || q.AmountOut.Sign() <= 0 {
			continue
		}
		usable = append(usable, q)
	}
	if len(usable) < 2 {
		return Result{}, nil
	}

	borrowFee := new(big.Int).Mul(cfg.BorrowAmount, big.NewInt(cfg.BorrowFeeBps))
	borrowFee.Div(borrowFee, big.NewInt(bpsDenom))

	sims := make([]TradeSimulation, 0, len(usable)*(len(usable)-1))
	var best *TradeSimulation
	for i, buy := range usable {
		for j, sell := range usable {
			if i == j {
				continue
			}
			sim := simulate(buy, sell, cfg, borrowFee)
			sims = append(sims, sim)

			if sim.NetProfit.Cmp(cfg.MinProfit) <= 0 {
				continue
			}
			if cfg.MinSpreadBps > 0 && sim.SpreadBps < cfg.MinSpreadBps {
				continue
			}
			if best == nil || sim.NetProfit.Cmp(best.NetProfit) > 0 {
				picked := sim
				best = &picked
			}
		}
	}

	return Result{Simulations: sims, Opportunity: best}, nil
}

// simulate prices one round trip. The buy leg takes the venue's quoted
// output for the borrow amount; the sell leg is linearized from the sell
// venue's quote for the same canonical size (final = inter * borrow /
// sellQuote). Integer floor division throughout, matching on-chain
// arithmetic: rounding always works against the trade.
func simulate(buy, sell VenueQuote, cfg Config, borrowFee *big.Int) TradeSimulation {
	inter := feeHaircut(buy.AmountOut, buy.FeeBps)

	final := new(big.Int).Mul(inter, cfg.BorrowAmount)
	final.Div(final, sell.AmountOut)
	final = feeHaircut(final, sell.FeeBps)

	gross := new(big.Int).Sub(final, cfg.BorrowAmount)
	net := new(big.Int).Sub(gross, borrowFee)
	net.Sub(net, cfg.FixedCost)

	return TradeSimulation{
		BuyVenue:           buy.Venue,
		SellVenue:          sell.Venue,
		BorrowAmount:       new(big.Int).Set(cfg.BorrowAmount),
		IntermediateAmount: inter,
		FinalAmount:        final,
		GrossProfit:        gross,
		BorrowFee:          new(big.Int).Set(borrowFee),
		FixedCost:          new(big.Int).Set(cfg.FixedCost),
		NetProfit:          net,
		SpreadBps:          spreadBps(buy.AmountOut, sell.AmountOut),
	}
}

// feeHaircut applies a proportional fee as floor(amount * (10000-bps) / 10000).
func feeHaircut(amount *big.Int, feeBps int64) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(bpsDenom-feeBps))
	return out.Div(out, big.NewInt(bpsDenom))
}

// spreadBps compares the raw quoted rates of the two venues. Rates are
// inversely proportional to the quoted output for a fixed input, so the
// sell-over-buy rate gap reduces to buyOut/sellOut - 1. Float is fine here;
// the figure is for display and the pre-filter, never for profit math.
func spreadBps(buyOut, sellOut *big.Int) float64 {
	b, _ := new(big.Float).SetInt(buyOut).Float64()
	s, _ := new(big.Float).SetInt(sellOut).Float64()
	if s == 0 {
		return 0
	}
	return (b/s - 1) * bpsDenom
}
