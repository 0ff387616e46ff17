package txsend

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Minimal ABIs: just enough of the token and market surfaces to encode the
// two calls this tool makes.
const erc20ABIJSON = `[
  {"inputs":[
    {"internalType":"address","name":"spender","type":"address"},
    {"internalType":"uint256","name":"value","type":"uint256"}
  ],"name":"approve","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

const marketABIJSON = `[
  {"inputs":[
    {"internalType":"uint256","name":"investmentAmount","type":"uint256"},
    {"internalType":"uint256","name":"outcomeIndex","type":"uint256"},
    {"internalType":"uint256","name":"minOutcomeTokensToBuy","type":"uint256"}
  ],"name":"buy","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

var (
	erc20ABI  = mustABI(erc20ABIJSON)
	marketABI = mustABI(marketABIJSON)
)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("txsend: parse abi: %v", err))
	}
	return parsed
}

// BuildApprove encodes approve(spender, amount) against the token as an
// unsigned legacy transaction. Pure: no network, deterministic for equal
// inputs, value always zero.
func BuildApprove(token, spender common.Address, amount *big.Int, nonce uint64, gasPrice *big.Int, gasLimit uint64) (*types.Transaction, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("approve amount required")
	}

	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	return types.NewTransaction(nonce, token, new(big.Int), gasLimit, gasPrice, data), nil
}

// BuildBuy encodes buy(investmentAmount, outcomeIndex, minOutcomeTokensToBuy)
// against the market as an unsigned legacy transaction. minTokens is the
// slippage floor the caller configured; nil means zero (accept any fill).
func BuildBuy(market common.Address, investment *big.Int, outcomeIndex int, minTokens *big.Int, nonce uint64, gasPrice *big.Int, gasLimit uint64) (*types.Transaction, error) {
	if investment == nil || investment.Sign() <= 0 {
		return nil, fmt.Errorf("investment amount required")
	}
	if outcomeIndex < 0 {
		return nil, fmt.Errorf("outcome index %d out of range", outcomeIndex)
	}
	if minTokens == nil {
		minTokens = new(big.Int)
	}

	data, err := marketABI.Pack("buy", investment, big.NewInt(int64(outcomeIndex)), minTokens)
	if err != nil {
		return nil, fmt.Errorf("pack buy: %w", err)
	}
	return types.NewTransaction(nonce, market, new(big.Int), gasLimit, gasPrice, data), nil
}

// Sign signs an intent with the account key under EIP-155 replay protection
// for the given chain.
func Sign(tx *types.Transaction, key *ecdsa.PrivateKey, chainID *big.Int) (*types.Transaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if key == nil {
		return nil, fmt.Errorf("signing key required")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id required")
	}

	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	return signed, nil
}
