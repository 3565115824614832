package scanner

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/arbscan/flash-searcher/internal/engine"
)

// reporter formats scan output for the console. Decimal conversion happens
// here and only here; everything upstream stays in integer smallest units.
type reporter struct {
	borrowSymbol   string
	borrowDecimals int32
	interDecimals  int32
}

func newReporter(borrowSymbol string, borrowDecimals, interDecimals int32) *reporter {
	return &reporter{
		borrowSymbol:   borrowSymbol,
		borrowDecimals: borrowDecimals,
		interDecimals:  interDecimals,
	}
}

func (r *reporter) baseAmount(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return decimal.NewFromBigInt(x, -r.borrowDecimals).StringFixed(6)
}

func (r *reporter) interAmount(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return decimal.NewFromBigInt(x, -r.interDecimals).StringFixed(6)
}

// statusLine prints one line per cycle whether or not anything changed, so
// a quiet market still shows the loop is alive.
func (r *reporter) statusLine(snap engine.ScanSnapshot, scan int, changed bool) {
	var parts []string
	for _, q := range snap.Quotes {
		parts = append(parts, fmt.Sprintf("%s=%s", q.Venue, r.interAmount(q.AmountOut)))
	}
	marker := " "
	if changed {
		marker = "*"
	}
	fmt.Printf("[%s] scan %d%s %s spread=%.4f%%\n",
		snap.Timestamp.Format("15:04:05"), scan, marker,
		strings.Join(parts, " "), bestSpreadPct(snap.Simulations))
}

func (r *reporter) opportunity(opp *engine.TradeSimulation, count int) {
	fmt.Printf("\n>>> OPPORTUNITY #%d: buy %s / sell %s\n", count, opp.BuyVenue, opp.SellVenue)
	fmt.Printf("    borrow  %s %s\n", r.baseAmount(opp.BorrowAmount), r.borrowSymbol)
	fmt.Printf("    gross   %s %s\n", r.baseAmount(opp.GrossProfit), r.borrowSymbol)
	fmt.Printf("    fees    %s borrow + %s fixed\n", r.baseAmount(opp.BorrowFee), r.baseAmount(opp.FixedCost))
	fmt.Printf("    net     %s %s (spread %.4f%%)\n\n",
		r.baseAmount(opp.NetProfit), r.borrowSymbol, opp.SpreadBps/100)
}
