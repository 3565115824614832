package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/arbscan/flash-searcher/internal/engine"
)

// Config stores all configuration for the bot. Values are read by viper
// from config.yaml, with environment variables (and a .env file) taking
// precedence for deployment-specific overrides like RPC_URL and
// DATABASE_URL. Secrets (PRIVATE_KEY) stay in the environment only.
type Config struct {
	Network  string             `mapstructure:"network"`
	Networks map[string]Network `mapstructure:"networks"`
	Trade    Trade              `mapstructure:"trade"`
	Database Database           `mapstructure:"database"`
	Cache    Cache              `mapstructure:"cache"`
}

// Network is one deployment target's fixed catalogue: RPC endpoint, the
// flash-loan contract, and the venue/token address tables. Loaded once at
// startup and treated as immutable.
type Network struct {
	RPC      string            `mapstructure:"rpc"`
	ChainID  int64             `mapstructure:"chain_id"`
	Contract string            `mapstructure:"contract"`
	Routers  []Router          `mapstructure:"routers"`
	Tokens   map[string]string `mapstructure:"tokens"`
}

// Router is one V2-style venue. Declaration order fixes the engine's
// evaluation and tie-break order.
type Router struct {
	Name    string `mapstructure:"name"`
	Address string `mapstructure:"address"`
	FeeBps  int64  `mapstructure:"fee_bps"`
}

// Trade defines the arbitrage parameters. Amounts are smallest-unit
// decimal strings so 18-decimal values survive YAML intact.
type Trade struct {
	TokenBorrow       string        `mapstructure:"token_borrow"`
	TokenIntermediate string        `mapstructure:"token_intermediate"`
	BorrowAmount      string        `mapstructure:"borrow_amount"`
	MinProfit         string        `mapstructure:"min_profit"`
	BorrowFeeBps      int64         `mapstructure:"borrow_fee_bps"`
	FixedCost         string        `mapstructure:"fixed_cost"`
	MinSpreadBps      float64       `mapstructure:"min_spread_bps"`
	ScanInterval      time.Duration `mapstructure:"scan_interval"`
	DryRun            bool          `mapstructure:"dry_run"`
	GasLimit          uint64        `mapstructure:"gas_limit"`
}

type Database struct {
	// URL is the postgres DSN; empty disables metrics logging entirely.
	URL string `mapstructure:"url"`
}

type Cache struct {
	// Path to the sqlite token metadata cache; empty disables it.
	Path string `mapstructure:"path"`
}

// Load reads configuration from config.yaml in path, the environment and
// an optional .env file, then validates it.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("trade.scan_interval", 2*time.Second)
	v.SetDefault("trade.gas_limit", 500_000)
	v.SetDefault("trade.dry_run", true)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if env := v.GetString("network"); env != "" {
		cfg.Network = env
	}
	if rpc := v.GetString("rpc_url"); rpc != "" {
		if net, ok := cfg.Networks[cfg.Network]; ok {
			net.RPC = rpc
			cfg.Networks[cfg.Network] = net
		}
	}
	if dsn := v.GetString("database_url"); dsn != "" {
		cfg.Database.URL = dsn
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the startup rules: a misconfigured bot must never
// enter the scan loop.
func (c Config) Validate() error {
	net, ok := c.Networks[c.Network]
	if !ok {
		return fmt.Errorf("unknown network %q", c.Network)
	}
	if net.RPC == "" {
		return fmt.Errorf("network %s: rpc url is required", c.Network)
	}
	if len(net.Routers) < 1 {
		return fmt.Errorf("network %s: at least one router is required", c.Network)
	}
	seen := make(map[string]bool, len(net.Routers))
	for _, r := range net.Routers {
		if r.Name == "" {
			return fmt.Errorf("network %s: router with empty name", c.Network)
		}
		if seen[r.Name] {
			return fmt.Errorf("network %s: duplicate router %q", c.Network, r.Name)
		}
		seen[r.Name] = true
		if !common.IsHexAddress(r.Address) {
			return fmt.Errorf("router %s: bad address %q", r.Name, r.Address)
		}
		if r.FeeBps < 0 || r.FeeBps >= 10_000 {
			return fmt.Errorf("router %s: fee %d bps out of range", r.Name, r.FeeBps)
		}
	}

	for _, symbol := range []string{c.Trade.TokenBorrow, c.Trade.TokenIntermediate} {
		addr, ok := net.Tokens[symbol]
		if !ok {
			return fmt.Errorf("network %s: no address for token %q", c.Network, symbol)
		}
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("token %s: bad address %q", symbol, addr)
		}
	}
	if c.Trade.TokenBorrow == c.Trade.TokenIntermediate {
		return fmt.Errorf("borrow and intermediate tokens must differ")
	}

	if net.Contract != "" && !common.IsHexAddress(net.Contract) {
		return fmt.Errorf("network %s: bad arbitrage contract address %q", c.Network, net.Contract)
	}
	// scan-only deployments may omit the contract, live trading cannot
	if !c.Trade.DryRun && net.Contract == "" {
		return fmt.Errorf("network %s: live mode requires an arbitrage contract address", c.Network)
	}

	if c.Trade.ScanInterval <= 0 {
		return fmt.Errorf("scan interval must be positive")
	}

	// amounts must parse; the engine re-validates ranges
	if _, err := c.EngineConfig(); err != nil {
		return err
	}
	return nil
}

// ActiveNetwork returns the selected network's catalogue.
func (c Config) ActiveNetwork() Network {
	return c.Networks[c.Network]
}

// EngineConfig converts the trade parameters into the engine's typed form.
func (c Config) EngineConfig() (engine.Config, error) {
	borrow, err := parseAmount(c.Trade.BorrowAmount, "borrow_amount")
	if err != nil {
		return engine.Config{}, err
	}
	minProfit, err := parseAmount(c.Trade.MinProfit, "min_profit")
	if err != nil {
		return engine.Config{}, err
	}
	fixedCost, err := parseAmount(c.Trade.FixedCost, "fixed_cost")
	if err != nil {
		return engine.Config{}, err
	}

	cfg := engine.Config{
		BorrowAmount: borrow,
		MinProfit:    minProfit,
		BorrowFeeBps: c.Trade.BorrowFeeBps,
		FixedCost:    fixedCost,
		MinSpreadBps: c.Trade.MinSpreadBps,
	}
	if err := cfg.Validate(); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}

// TokenAddress resolves a configured token symbol; Validate guarantees
// presence for the trade tokens.
func (c Config) TokenAddress(symbol string) common.Address {
	return common.HexToAddress(c.ActiveNetwork().Tokens[symbol])
}

func parseAmount(s, field string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%s: bad integer amount %q", field, s)
	}
	return v, nil
}
