package venue

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/arbscan/flash-searcher/internal/chain"
	"github.com/arbscan/flash-searcher/internal/storage"
)

var _ Caller = (*chain.Client)(nil)

const erc20ABI = `[
	{
		"constant": true,
		"inputs": [],
		"name": "symbol",
		"outputs": [{"internalType": "string", "name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// TokenMeta is the display metadata for one ERC20 token.
type TokenMeta struct {
	Symbol   string
	Decimals uint8
}

// Caller is the chain surface the resolver needs; *chain.Client satisfies it.
type Caller interface {
	ChainID() *big.Int
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// MetaResolver looks up token metadata through an LRU memo backed by the
// persistent sqlite cache, falling through to on-chain calls on a cold
// start. The sqlite cache may be nil (memo-only operation); a broken cache
// degrades to on-chain lookups, it never fails a resolve.
type MetaResolver struct {
	client Caller
	cache  *storage.TokenCache
	memo   *lru.Cache[common.Address, TokenMeta]
	abi    abi.ABI
	logger *slog.Logger
}

func NewMetaResolver(client Caller, cache *storage.TokenCache, logger *slog.Logger) (*MetaResolver, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 ABI: %w", err)
	}

	memo, err := lru.New[common.Address, TokenMeta](128)
	if err != nil {
		return nil, fmt.Errorf("create meta memo: %w", err)
	}

	return &MetaResolver{
		client: client,
		cache:  cache,
		memo:   memo,
		abi:    parsed,
		logger: logger,
	}, nil
}

func (m *MetaResolver) Resolve(ctx context.Context, token common.Address) (TokenMeta, error) {
	if meta, ok := m.memo.Get(token); ok {
		return meta, nil
	}

	if m.cache != nil {
		if symbol, decimals, ok := m.cache.Get(m.client.ChainID().Int64(), token); ok {
			meta := TokenMeta{Symbol: symbol, Decimals: decimals}
			m.memo.Add(token, meta)
			return meta, nil
		}
	}

	meta, err := m.fetch(ctx, token)
	if err != nil {
		return TokenMeta{}, err
	}

	m.memo.Add(token, meta)
	if m.cache != nil {
		if err := m.cache.Put(m.client.ChainID().Int64(), token, meta.Symbol, meta.Decimals); err != nil {
			// the cache only saves future lookups; the resolve succeeded
			m.logger.Warn("failed to cache token meta", "token", token.Hex(), "error", err)
		}
	}
	return meta, nil
}

func (m *MetaResolver) fetch(ctx context.Context, token common.Address) (TokenMeta, error) {
	symRaw, err := m.call(ctx, token, "symbol")
	if err != nil {
		return TokenMeta{}, fmt.Errorf("fetch symbol: %w", err)
	}
	symbol, ok := symRaw.(string)
	if !ok {
		return TokenMeta{}, fmt.Errorf("symbol type assertion failed")
	}

	decRaw, err := m.call(ctx, token, "decimals")
	if err != nil {
		return TokenMeta{}, fmt.Errorf("fetch decimals: %w", err)
	}
	decimals, ok := decRaw.(uint8)
	if !ok {
		return TokenMeta{}, fmt.Errorf("decimals type assertion failed")
	}

	return TokenMeta{Symbol: symbol, Decimals: decimals}, nil
}

func (m *MetaResolver) call(ctx context.Context, token common.Address, method string) (any, error) {
	data, err := m.abi.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &token, Data: data}
	raw, err := m.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	unpacked, err := m.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(unpacked) < 1 {
		return nil, fmt.Errorf("empty %s result", method)
	}
	return unpacked[0], nil
}
