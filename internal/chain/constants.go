package chain

import (
	"github.com/ethereum/go-ethereum/common"
)

// Token addresses on BSC mainnet.
var (
	WBNBAddress = common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c")
	BUSDAddress = common.HexToAddress("0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56")
	USDTAddress = common.HexToAddress("0x55d398326f99059fF775485246999027B3197955")
)

// V2 router addresses on BSC mainnet.
var (
	PancakeswapRouter = common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E")
	BiswapRouter      = common.HexToAddress("0x3a6d8cA21D1CF76F653A67577FA0D27453350dD8")
)

const (
	WBNBDecimals = 18
	BUSDDecimals = 18
	USDTDecimals = 18
)

const (
	BSCMainnetChainID = 56
	BSCTestnetChainID = 97
)
