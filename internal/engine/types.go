package engine

import (
	"math/big"
	"time"
)

// VenueQuote is one venue's answer for the canonical borrow-sized quote,
// captured at a single scan instant. AmountOut is the intermediate token
// received for Config.BorrowAmount, in smallest units.
type VenueQuote struct {
	Venue     string
	AmountOut *big.Int
	FeeBps    int64
}

// TradeSimulation is the evaluated outcome of one ordered (buy, sell) venue
// pair for a borrow -> buy -> sell -> repay round trip. All amounts are
// smallest units of the borrow token unless noted. Never mutated after
// construction.
type TradeSimulation struct {
	BuyVenue  string
	SellVenue string

	BorrowAmount       *big.Int
	IntermediateAmount *big.Int // intermediate token units
	FinalAmount        *big.Int

	GrossProfit *big.Int
	BorrowFee   *big.Int
	FixedCost   *big.Int
	NetProfit   *big.Int

	// SpreadBps is the buy/sell rate gap in basis points. Informational
	// only; profit decisions run on the integer amounts above.
	SpreadBps float64
}

// Result is the full evaluation of one quote set: every ordered pair plus
// the best simulation clearing the threshold, or nil when none does.
type Result struct {
	Simulations []TradeSimulation
	Opportunity *TradeSimulation
}

// ScanSnapshot aggregates one scan cycle for reporting and persistence.
type ScanSnapshot struct {
	Timestamp   time.Time
	Quotes      []VenueQuote
	Simulations []TradeSimulation
	Opportunity *TradeSimulation
}
