package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client wraps an RPC connection to one EVM network. The chain id is fetched
// once at dial time and checked against the configured network so a wrong
// RPC URL fails at startup instead of producing quotes from the wrong chain.
type Client struct {
	rpc     *ethclient.Client
	chainID *big.Int
}

func Dial(ctx context.Context, rpcURL string, wantChainID int64) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url is empty")
	}

	rpc, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}

	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		rpc.Close()
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	if wantChainID != 0 && chainID.Int64() != wantChainID {
		rpc.Close()
		return nil, fmt.Errorf("chain id mismatch: node reports %s, config expects %d", chainID, wantChainID)
	}

	return &Client{rpc: rpc, chainID: chainID}, nil
}

func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.rpc.CallContract(ctx, msg, blockNumber)
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.rpc.SuggestGasPrice(ctx)
}

func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.rpc.PendingNonceAt(ctx, account)
}

func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.rpc.SendTransaction(ctx, tx)
}

func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return c.rpc.TransactionReceipt(ctx, txHash)
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return c.rpc.BalanceAt(ctx, account, blockNumber)
}
