package baseutil

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Base mainnet chain id and its native USDC, the investment token the batch
// tool spends by default.
const (
	ChainID           = 8453
	USDCTokenDecimals = 6
)

var USDCTokenAddress = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")

var (
	erc20BalanceOfSelector = crypto.Keccak256([]byte("balanceOf(address)"))[:4]
	erc20AllowanceSelector = crypto.Keccak256([]byte("allowance(address,address)"))[:4]
)

var (
	maxUint256         = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	allowanceThreshold = new(big.Int).Rsh(maxUint256, 1)
)

// MaxUint256 returns the approve-everything sentinel. Callers get a copy;
// big.Int is mutable and these values end up in transaction calldata.
func MaxUint256() *big.Int {
	return new(big.Int).Set(maxUint256)
}

// AllowanceThreshold returns the high-water mark above which an existing
// allowance counts as sufficient: half of max(uint256), so max approvals
// survive a long tail of purchases before anyone needs to re-approve.
func AllowanceThreshold() *big.Int {
	return new(big.Int).Set(allowanceThreshold)
}

// BalanceOf reads the ERC20 token balance of owner.
func BalanceOf(ctx context.Context, caller ethereum.ContractCaller, token, owner common.Address) (*big.Int, error) {
	if (owner == common.Address{}) {
		return nil, fmt.Errorf("owner address missing")
	}

	data := make([]byte, 0, 4+32)
	data = append(data, erc20BalanceOfSelector...)
	data = append(data, common.LeftPadBytes(owner.Bytes(), 32)...)

	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf(%s): %w", owner.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("balanceOf(%s): empty result", owner.Hex())
	}
	return new(big.Int).SetBytes(out), nil
}

// Allowance reads the ERC20 allowance granted by owner to spender.
func Allowance(ctx context.Context, caller ethereum.ContractCaller, token, owner, spender common.Address) (*big.Int, error) {
	if (owner == common.Address{}) || (spender == common.Address{}) {
		return nil, fmt.Errorf("owner or spender address missing")
	}

	data := make([]byte, 0, 4+32+32)
	data = append(data, erc20AllowanceSelector...)
	data = append(data, common.LeftPadBytes(owner.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(spender.Bytes(), 32)...)

	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("allowance(%s,%s): %w", owner.Hex(), spender.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("allowance(%s,%s): empty result", owner.Hex(), spender.Hex())
	}
	return new(big.Int).SetBytes(out), nil
}
