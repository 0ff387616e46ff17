package txsend

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	testToken  = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	testMarket = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func TestBuildApprove(t *testing.T) {
	amount := big.NewInt(1_000_000)
	gasPrice := big.NewInt(7)

	tx, err := BuildApprove(testToken, testMarket, amount, 3, gasPrice, 120000)
	if err != nil {
		t.Fatalf("BuildApprove: %v", err)
	}

	if tx.To() == nil || *tx.To() != testToken {
		t.Fatalf("to = %v, want %s", tx.To(), testToken)
	}
	if tx.Nonce() != 3 || tx.Gas() != 120000 {
		t.Fatalf("nonce/gas = %d/%d", tx.Nonce(), tx.Gas())
	}
	if tx.GasPrice().Cmp(gasPrice) != 0 {
		t.Fatalf("gasPrice = %s", tx.GasPrice())
	}
	if tx.Value().Sign() != 0 {
		t.Fatalf("value = %s, want 0", tx.Value())
	}

	want := crypto.Keccak256([]byte("approve(address,uint256)"))[:4]
	want = append(want, common.LeftPadBytes(testMarket.Bytes(), 32)...)
	want = append(want, common.LeftPadBytes(amount.Bytes(), 32)...)
	if !bytes.Equal(tx.Data(), want) {
		t.Fatalf("calldata = %x, want %x", tx.Data(), want)
	}
}

func TestBuildBuy(t *testing.T) {
	investment := big.NewInt(100000)
	minTokens := big.NewInt(42)
	gasPrice := big.NewInt(9)

	tx, err := BuildBuy(testMarket, investment, 1, minTokens, 7, gasPrice, 250000)
	if err != nil {
		t.Fatalf("BuildBuy: %v", err)
	}

	if tx.To() == nil || *tx.To() != testMarket {
		t.Fatalf("to = %v, want %s", tx.To(), testMarket)
	}
	if tx.Value().Sign() != 0 {
		t.Fatalf("value = %s, want 0", tx.Value())
	}

	want := crypto.Keccak256([]byte("buy(uint256,uint256,uint256)"))[:4]
	want = append(want, common.LeftPadBytes(investment.Bytes(), 32)...)
	want = append(want, common.LeftPadBytes(big.NewInt(1).Bytes(), 32)...)
	want = append(want, common.LeftPadBytes(minTokens.Bytes(), 32)...)
	if !bytes.Equal(tx.Data(), want) {
		t.Fatalf("calldata = %x, want %x", tx.Data(), want)
	}
}

func TestBuildBuy_NilMinTokensMeansZero(t *testing.T) {
	tx, err := BuildBuy(testMarket, big.NewInt(1), 0, nil, 0, big.NewInt(1), 250000)
	if err != nil {
		t.Fatalf("BuildBuy: %v", err)
	}
	data := tx.Data()
	if len(data) != 4+3*32 {
		t.Fatalf("calldata length = %d", len(data))
	}
	minWord := data[4+2*32:]
	if new(big.Int).SetBytes(minWord).Sign() != 0 {
		t.Fatalf("min tokens word = %x, want zero", minWord)
	}
}

func TestBuildBuy_RejectsBadInputs(t *testing.T) {
	if _, err := BuildBuy(testMarket, nil, 0, nil, 0, big.NewInt(1), 1); err == nil {
		t.Fatalf("expected err for nil investment")
	}
	if _, err := BuildBuy(testMarket, big.NewInt(0), 0, nil, 0, big.NewInt(1), 1); err == nil {
		t.Fatalf("expected err for zero investment")
	}
	if _, err := BuildBuy(testMarket, big.NewInt(1), -1, nil, 0, big.NewInt(1), 1); err == nil {
		t.Fatalf("expected err for negative outcome")
	}
}

func TestSign_RecoversSender(t *testing.T) {
	key, err := crypto.HexToECDSA("0000000000000000000000000000000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("HexToECDSA: %v", err)
	}
	want := crypto.PubkeyToAddress(key.PublicKey)
	chainID := big.NewInt(8453)

	tx, err := BuildApprove(testToken, testMarket, big.NewInt(1), 0, big.NewInt(1), 120000)
	if err != nil {
		t.Fatalf("BuildApprove: %v", err)
	}

	signed, err := Sign(tx, key, chainID)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if signed.ChainId().Cmp(chainID) != 0 {
		t.Fatalf("chain id = %s, want %s", signed.ChainId(), chainID)
	}

	from, err := types.Sender(types.NewEIP155Signer(chainID), signed)
	if err != nil {
		t.Fatalf("Sender: %v", err)
	}
	if from != want {
		t.Fatalf("recovered sender = %s, want %s", from, want)
	}
}

func TestSign_RejectsMissingInputs(t *testing.T) {
	key, _ := crypto.HexToECDSA("0000000000000000000000000000000000000000000000000000000000000001")
	tx, _ := BuildApprove(testToken, testMarket, big.NewInt(1), 0, big.NewInt(1), 1)

	if _, err := Sign(nil, key, big.NewInt(1)); err == nil {
		t.Fatalf("expected err for nil tx")
	}
	if _, err := Sign(tx, nil, big.NewInt(1)); err == nil {
		t.Fatalf("expected err for nil key")
	}
	if _, err := Sign(tx, key, nil); err == nil {
		t.Fatalf("expected err for nil chain id")
	}
}
