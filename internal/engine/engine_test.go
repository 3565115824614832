package engine

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad number literal: " + s)
	}
	return v
}

func baseConfig() Config {
	return Config{
		BorrowAmount: big.NewInt(1_000_000),
		MinProfit:    big.NewInt(0),
		BorrowFeeBps: 0,
		FixedCost:    big.NewInt(0),
	}
}

// Two venues quoting 600 and 602.5 BUSD per WBNB for a 1000 BUSD borrow,
// venue fees 0.25% and 0.10%, fixed cost 0.08 BUSD. The cheaper venue must
// be the buy side and every intermediate figure is exact integer floor math.
func TestEvaluateWorkedScenario(t *testing.T) {
	cfg := Config{
		BorrowAmount: wei("1000000000000000000000"), // 1000 BUSD
		MinProfit:    wei("10000000000000000"),      // 0.01 BUSD
		BorrowFeeBps: 0,
		FixedCost:    wei("80000000000000000"), // 0.08 BUSD
	}
	quotes := []VenueQuote{
		{Venue: "pancakeswap", AmountOut: wei("1666666666666666666"), FeeBps: 25}, // 600 BUSD/WBNB
		{Venue: "biswap", AmountOut: wei("1659751037344398340"), FeeBps: 10},      // 602.5 BUSD/WBNB
	}

	res, err := Evaluate(quotes, cfg)
	require.NoError(t, err)
	require.Len(t, res.Simulations, 2)
	require.NotNil(t, res.Opportunity)

	opp := res.Opportunity
	assert.Equal(t, "pancakeswap", opp.BuyVenue)
	assert.Equal(t, "biswap", opp.SellVenue)
	assert.Equal(t, wei("1662499999999999999"), opp.IntermediateAmount)
	assert.Equal(t, wei("1000654593749999999547"), opp.FinalAmount)
	assert.Equal(t, wei("654593749999999547"), opp.GrossProfit)
	assert.Equal(t, wei("574593749999999547"), opp.NetProfit)

	// the reverse direction must have been recorded and be a loss
	var reverse *TradeSimulation
	for i := range res.Simulations {
		if res.Simulations[i].BuyVenue == "biswap" {
			reverse = &res.Simulations[i]
		}
	}
	require.NotNil(t, reverse)
	assert.Negative(t, reverse.NetProfit.Sign())
}

// With exactly two venues, the opportunity must always buy on the venue with
// the lower effective price (larger quoted output), never the reverse.
func TestEvaluateDirection(t *testing.T) {
	cfg := baseConfig()
	cases := []struct {
		name         string
		outA, outB   int64
		expectedBuy  string
		expectedSell string
	}{
		{"a cheaper", 2_000_000, 1_900_000, "a", "b"},
		{"b cheaper", 1_900_000, 2_000_000, "b", "a"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			quotes := []VenueQuote{
				{Venue: "a", AmountOut: big.NewInt(tc.outA)},
				{Venue: "b", AmountOut: big.NewInt(tc.outB)},
			}
			res, err := Evaluate(quotes, cfg)
			require.NoError(t, err)
			require.NotNil(t, res.Opportunity)
			assert.Equal(t, tc.expectedBuy, res.Opportunity.BuyVenue)
			assert.Equal(t, tc.expectedSell, res.Opportunity.SellVenue)
		})
	}
}

func TestEvaluateNetProfitMonotonicity(t *testing.T) {
	quotes := []VenueQuote{
		{Venue: "a", AmountOut: big.NewInt(2_000_000)},
		{Venue: "b", AmountOut: big.NewInt(1_900_000)},
	}

	net := func(cfg Config) *big.Int {
		res, err := Evaluate(quotes, cfg)
		require.NoError(t, err)
		require.NotNil(t, res.Opportunity)
		return res.Opportunity.NetProfit
	}

	t.Run("fixed cost", func(t *testing.T) {
		cheap := baseConfig()
		costly := baseConfig()
		costly.FixedCost = big.NewInt(500)
		assert.Equal(t, 1, net(cheap).Cmp(net(costly)))
	})

	t.Run("borrow fee", func(t *testing.T) {
		cheap := baseConfig()
		costly := baseConfig()
		costly.BorrowFeeBps = 9
		assert.Equal(t, 1, net(cheap).Cmp(net(costly)))
	})
}

func TestEvaluateIdempotent(t *testing.T) {
	cfg := baseConfig()
	cfg.BorrowFeeBps = 9
	cfg.FixedCost = big.NewInt(42)
	quotes := []VenueQuote{
		{Venue: "a", AmountOut: big.NewInt(2_000_000), FeeBps: 25},
		{Venue: "b", AmountOut: big.NewInt(1_900_000), FeeBps: 10},
		{Venue: "c", AmountOut: big.NewInt(1_950_000), FeeBps: 30},
	}

	first, err := Evaluate(quotes, cfg)
	require.NoError(t, err)
	second, err := Evaluate(quotes, cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Simulations, second.Simulations)
	assert.Equal(t, first.Opportunity, second.Opportunity)
}

func TestEvaluateInsufficientQuotes(t *testing.T) {
	cfg := baseConfig()

	for _, quotes := range [][]VenueQuote{
		nil,
		{},
		{{Venue: "solo", AmountOut: big.NewInt(1_000_000)}},
		// a failed venue reported as a zero quote does not count
		{{Venue: "a", AmountOut: big.NewInt(1_000_000)}, {Venue: "b", AmountOut: big.NewInt(0)}},
	} {
		res, err := Evaluate(quotes, cfg)
		require.NoError(t, err)
		assert.Empty(t, res.Simulations)
		assert.Nil(t, res.Opportunity)
	}
}

// The threshold is an exclusive lower bound: net profit exactly equal to
// MinProfit selects nothing.
func TestEvaluateThresholdIsExclusive(t *testing.T) {
	cfg := baseConfig()
	quotes := []VenueQuote{
		{Venue: "a", AmountOut: big.NewInt(2_000_000)},
		{Venue: "b", AmountOut: big.NewInt(1_900_000)},
	}

	res, err := Evaluate(quotes, cfg)
	require.NoError(t, err)
	require.NotNil(t, res.Opportunity)

	cfg.MinProfit = new(big.Int).Set(res.Opportunity.NetProfit)
	res, err = Evaluate(quotes, cfg)
	require.NoError(t, err)
	assert.Nil(t, res.Opportunity, "net profit equal to the threshold must not qualify")

	cfg.MinProfit.Sub(cfg.MinProfit, big.NewInt(1))
	res, err = Evaluate(quotes, cfg)
	require.NoError(t, err)
	assert.NotNil(t, res.Opportunity)
}

// Identical prices on every venue leave nothing but the fixed cost: every
// simulation nets exactly -FixedCost and no opportunity exists for any
// non-negative threshold.
func TestEvaluateIdenticalPrices(t *testing.T) {
	cfg := baseConfig()
	cfg.FixedCost = big.NewInt(80)
	quotes := []VenueQuote{
		{Venue: "a", AmountOut: big.NewInt(1_234_567)},
		{Venue: "b", AmountOut: big.NewInt(1_234_567)},
	}

	res, err := Evaluate(quotes, cfg)
	require.NoError(t, err)
	require.Len(t, res.Simulations, 2)
	for _, sim := range res.Simulations {
		assert.Equal(t, big.NewInt(-80), sim.NetProfit)
	}
	assert.Nil(t, res.Opportunity)
}

// Two venues with identical quotes against a third produce two simulations
// with the same net profit; the first in iteration order must win.
func TestEvaluateTieKeepsFirst(t *testing.T) {
	cfg := baseConfig()
	quotes := []VenueQuote{
		{Venue: "a", AmountOut: big.NewInt(1_000_000)},
		{Venue: "b", AmountOut: big.NewInt(1_000_000)},
		{Venue: "c", AmountOut: big.NewInt(900_000)},
	}

	res, err := Evaluate(quotes, cfg)
	require.NoError(t, err)
	require.NotNil(t, res.Opportunity)
	assert.Equal(t, "a", res.Opportunity.BuyVenue)
	assert.Equal(t, "c", res.Opportunity.SellVenue)
}

func TestEvaluateSpreadPreFilter(t *testing.T) {
	cfg := baseConfig()
	quotes := []VenueQuote{
		{Venue: "a", AmountOut: big.NewInt(2_000_000)},
		{Venue: "b", AmountOut: big.NewInt(1_999_000)}, // ~5 bps apart
	}

	res, err := Evaluate(quotes, cfg)
	require.NoError(t, err)
	require.NotNil(t, res.Opportunity)

	cfg.MinSpreadBps = 50
	res, err = Evaluate(quotes, cfg)
	require.NoError(t, err)
	assert.Len(t, res.Simulations, 2, "filtered pairs are still recorded")
	assert.Nil(t, res.Opportunity)
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"nil borrow", func(c *Config) { c.BorrowAmount = nil }},
		{"zero borrow", func(c *Config) { c.BorrowAmount = big.NewInt(0) }},
		{"negative borrow", func(c *Config) { c.BorrowAmount = big.NewInt(-5) }},
		{"nil min profit", func(c *Config) { c.MinProfit = nil }},
		{"negative borrow fee", func(c *Config) { c.BorrowFeeBps = -1 }},
		{"borrow fee too high", func(c *Config) { c.BorrowFeeBps = 10_000 }},
		{"nil fixed cost", func(c *Config) { c.FixedCost = nil }},
		{"negative fixed cost", func(c *Config) { c.FixedCost = big.NewInt(-1) }},
		{"negative spread floor", func(c *Config) { c.MinSpreadBps = -0.5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())

			_, err := Evaluate([]VenueQuote{
				{Venue: "a", AmountOut: big.NewInt(1)},
				{Venue: "b", AmountOut: big.NewInt(1)},
			}, cfg)
			assert.Error(t, err)
		})
	}

	assert.NoError(t, baseConfig().Validate())
}
