package venue

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/arbscan/flash-searcher/internal/chain"
)

// Router ABI, getAmountsOut is the only function we need
const routerV2ABI = `[
	{
		"constant": true,
		"inputs": [
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "address[]", "name": "path", "type": "address[]"}
		],
		"name": "getAmountsOut",
		"outputs": [
			{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}
		],
		"payable": false,
		"stateMutability": "view",
		"type": "function"
	}
]`

// RouterQuoter reads quotes from a Uniswap V2 style router contract. The
// router's getAmountsOut already applies the pool's LP fee and slippage for
// the queried size, so these venues are configured with fee_bps 0 unless
// the deployment charges an extra haircut on top.
type RouterQuoter struct {
	name    string
	feeBps  int64
	address common.Address
	abi     abi.ABI
	client  *chain.Client
}

func NewRouterQuoter(client *chain.Client, name string, address common.Address, feeBps int64) (*RouterQuoter, error) {
	parsed, err := abi.JSON(strings.NewReader(routerV2ABI))
	if err != nil {
		return nil, fmt.Errorf("parse router ABI: %w", err)
	}

	return &RouterQuoter{
		name:    name,
		feeBps:  feeBps,
		address: address,
		abi:     parsed,
		client:  client,
	}, nil
}

func (r *RouterQuoter) Name() string {
	return r.name
}

func (r *RouterQuoter) FeeBps() int64 {
	return r.feeBps
}

func (r *RouterQuoter) Address() common.Address {
	return r.address
}

func (r *RouterQuoter) Quote(ctx context.Context, amountIn *big.Int, path []common.Address) (*big.Int, error) {
	data, err := r.abi.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("pack getAmountsOut: %w", err)
	}

	msg := ethereum.CallMsg{
		To:   &r.address,
		Data: data,
	}

	raw, err := r.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s router: %w", r.name, err)
	}

	unpacked, err := r.abi.Unpack("getAmountsOut", raw)
	if err != nil {
		return nil, fmt.Errorf("unpack amounts: %w", err)
	}
	if len(unpacked) < 1 {
		return nil, fmt.Errorf("unexpected unpack result length: %d", len(unpacked))
	}

	amounts, ok := unpacked[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("amounts type assertion failed")
	}
	if len(amounts) == 0 {
		return nil, fmt.Errorf("router returned empty amounts")
	}

	return amounts[len(amounts)-1], nil
}
