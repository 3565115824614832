package executor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/arbscan/flash-searcher/internal/chain"
)

// FlashLoanArbitrage contract ABI - only the function we need
const arbitrageABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "tokenBorrow", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"},
			{"internalType": "bool", "name": "isBase", "type": "bool"},
			{"internalType": "address", "name": "buyRouter", "type": "address"},
			{"internalType": "address", "name": "sellRouter", "type": "address"},
			{"internalType": "address[]", "name": "pathBuy", "type": "address[]"},
			{"internalType": "address[]", "name": "pathSell", "type": "address[]"},
			{"internalType": "uint256", "name": "minProfit", "type": "uint256"}
		],
		"name": "executeArbitrageV2",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

const receiptTimeout = 2 * time.Minute

// Status classifies the outcome of one execution attempt.
type Status string

const (
	StatusDryRun    Status = "dry-run"
	StatusConfirmed Status = "confirmed"
	StatusReverted  Status = "reverted"
	StatusTimeout   Status = "timeout"
)

// Trade is a fully-formed arbitrage ready for the flash-loan contract: the
// scan loop resolves venues to router addresses before handing it over.
// MinProfit is enforced on-chain, so a quote that decays between scan and
// inclusion reverts instead of executing at a loss.
type Trade struct {
	TokenBorrow  common.Address
	BorrowAmount *big.Int
	IsBase       bool
	BuyRouter    common.Address
	SellRouter   common.Address
	PathBuy      []common.Address
	PathSell     []common.Address
	MinProfit    *big.Int
}

// Result reports one execution attempt.
type Result struct {
	Status  Status
	TxHash  common.Hash
	GasUsed uint64
}

// Gateway submits arbitrage trades through the deployed FlashLoanArbitrage
// contract. In dry-run mode it logs the would-be trade and never touches
// the network.
type Gateway struct {
	client   *chain.Client
	contract common.Address
	abi      abi.ABI
	key      *ecdsa.PrivateKey
	from     common.Address
	gasLimit uint64
	dryRun   bool
	logger   *slog.Logger
}

func New(client *chain.Client, contract common.Address, privateKeyHex string, gasLimit uint64, dryRun bool, logger *slog.Logger) (*Gateway, error) {
	parsed, err := abi.JSON(strings.NewReader(arbitrageABI))
	if err != nil {
		return nil, fmt.Errorf("parse arbitrage ABI: %w", err)
	}

	g := &Gateway{
		client:   client,
		contract: contract,
		abi:      parsed,
		gasLimit: gasLimit,
		dryRun:   dryRun,
		logger:   logger,
	}

	if !dryRun {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		g.key = key
		g.from = crypto.PubkeyToAddress(key.PublicKey)
	}

	return g, nil
}

// From returns the signing wallet address; zero in dry-run mode.
func (g *Gateway) From() common.Address {
	return g.from
}

// BuildCalldata packs the executeArbitrageV2 call.
func (g *Gateway) BuildCalldata(trade Trade) ([]byte, error) {
	data, err := g.abi.Pack("executeArbitrageV2",
		trade.TokenBorrow,
		trade.BorrowAmount,
		trade.IsBase,
		trade.BuyRouter,
		trade.SellRouter,
		trade.PathBuy,
		trade.PathSell,
		trade.MinProfit,
	)
	if err != nil {
		return nil, fmt.Errorf("pack executeArbitrageV2: %w", err)
	}
	return data, nil
}

// Execute submits one trade and waits for its receipt. Failures classify
// rather than propagate: the scan loop treats every outcome as a report,
// never as a reason to stop.
func (g *Gateway) Execute(ctx context.Context, trade Trade) (Result, error) {
	if g.dryRun {
		g.logger.Info("dry run, would execute arbitrage",
			"buy_router", trade.BuyRouter.Hex(),
			"sell_router", trade.SellRouter.Hex(),
			"borrow", trade.BorrowAmount.String(),
			"min_profit", trade.MinProfit.String(),
		)
		return Result{Status: StatusDryRun}, nil
	}

	data, err := g.BuildCalldata(trade)
	if err != nil {
		return Result{}, err
	}

	nonce, err := g.client.PendingNonceAt(ctx, g.from)
	if err != nil {
		return Result{}, fmt.Errorf("fetch nonce: %w", err)
	}

	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &g.contract,
		Value:    big.NewInt(0),
		Gas:      g.gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signer := types.LatestSignerForChainID(g.client.ChainID())
	signed, err := types.SignTx(tx, signer, g.key)
	if err != nil {
		return Result{}, fmt.Errorf("sign tx: %w", err)
	}

	if err := g.client.SendTransaction(ctx, signed); err != nil {
		return Result{}, fmt.Errorf("send tx: %w", err)
	}

	hash := signed.Hash()
	g.logger.Info("transaction sent", "tx", hash.Hex())

	receipt, err := g.waitMined(ctx, hash)
	if err != nil {
		return Result{Status: StatusTimeout, TxHash: hash}, nil
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return Result{Status: StatusReverted, TxHash: hash, GasUsed: receipt.GasUsed}, nil
	}

	return Result{Status: StatusConfirmed, TxHash: hash, GasUsed: receipt.GasUsed}, nil
}

func (g *Gateway) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := g.client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
