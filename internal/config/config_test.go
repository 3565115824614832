package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
network: bsc_mainnet

networks:
  bsc_mainnet:
    rpc: https://bsc-dataseed1.binance.org
    chain_id: 56
    contract: "0x0fe261aeE0d1C4DFdDee4102E82Dd425999065F4"
    routers:
      - name: pancakeswap
        address: "0x10ED43C718714eb63d5aA57B78B54704E256024E"
        fee_bps: 0
      - name: biswap
        address: "0x3a6d8cA21D1CF76F653A67577FA0D27453350dD8"
        fee_bps: 0
    tokens:
      WBNB: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"
      BUSD: "0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56"

trade:
  token_borrow: BUSD
  token_intermediate: WBNB
  borrow_amount: "1000000000000000000000"
  min_profit: "10000000000000000"
  borrow_fee_bps: 9
  fixed_cost: "80000000000000000"
  min_spread_bps: 5
  scan_interval: 3s
  dry_run: true

database:
  url: ""

cache:
  path: data/tokens.db
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))
	return dir
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "bsc_mainnet", cfg.Network)
	assert.Equal(t, int64(56), cfg.ActiveNetwork().ChainID)
	assert.Len(t, cfg.ActiveNetwork().Routers, 2)
	assert.Equal(t, "pancakeswap", cfg.ActiveNetwork().Routers[0].Name)
	assert.Equal(t, 3*time.Second, cfg.Trade.ScanInterval)

	ecfg, err := cfg.EngineConfig()
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("1000000000000000000000", 10)
	assert.Equal(t, want, ecfg.BorrowAmount)
	assert.Equal(t, int64(9), ecfg.BorrowFeeBps)
	assert.Equal(t, 5.0, ecfg.MinSpreadBps)
}

func TestLoadDefaults(t *testing.T) {
	yaml := validYAML
	cfg, err := Load(writeConfig(t, yaml))
	require.NoError(t, err)
	assert.True(t, cfg.Trade.DryRun)
	assert.Equal(t, uint64(500_000), cfg.Trade.GasLimit)
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown network", func(c *Config) { c.Network = "mars" }},
		{"no routers", func(c *Config) {
			n := c.Networks[c.Network]
			n.Routers = nil
			c.Networks[c.Network] = n
		}},
		{"duplicate routers", func(c *Config) {
			n := c.Networks[c.Network]
			n.Routers = append(n.Routers, n.Routers[0])
			c.Networks[c.Network] = n
		}},
		{"bad router address", func(c *Config) {
			n := c.Networks[c.Network]
			n.Routers[0].Address = "0x123"
			c.Networks[c.Network] = n
		}},
		{"missing token", func(c *Config) { c.Trade.TokenBorrow = "DOGE" }},
		{"bad contract address", func(c *Config) {
			n := c.Networks[c.Network]
			n.Contract = "not-an-address"
			c.Networks[c.Network] = n
		}},
		{"live without contract", func(c *Config) {
			n := c.Networks[c.Network]
			n.Contract = ""
			c.Networks[c.Network] = n
			c.Trade.DryRun = false
		}},
		{"same tokens", func(c *Config) { c.Trade.TokenIntermediate = c.Trade.TokenBorrow }},
		{"zero borrow", func(c *Config) { c.Trade.BorrowAmount = "0" }},
		{"garbage amount", func(c *Config) { c.Trade.BorrowAmount = "1.5e18" }},
		{"missing min profit", func(c *Config) { c.Trade.MinProfit = "" }},
		{"negative interval", func(c *Config) { c.Trade.ScanInterval = -time.Second }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, validYAML))
			require.NoError(t, err)
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}
