package batchbuy

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Defaults mirror the knobs the tool has always run with against Base.
const (
	DefaultWorkers         = 24
	DefaultSendRetries     = 2
	DefaultRetryDelay      = 5 * time.Second
	DefaultThinkTime       = 800 * time.Millisecond
	DefaultReceiptTimeout  = 5 * time.Second
	DefaultReceiptPoll     = 3 * time.Second
	DefaultGasLimitApprove = 120_000
	DefaultGasLimitBuy     = 250_000
)

// TargetGroup is an ordered list of market contracts under one oracle
// symbol. Groups, and the markets inside each group, are visited in exactly
// the order supplied; nothing here re-sorts them.
type TargetGroup struct {
	Symbol   string
	OracleID int
	Markets  []common.Address
}

// Config carries everything a run needs beyond the accounts and targets.
type Config struct {
	ChainID int64

	Token         common.Address
	TokenDecimals int

	// Buy parameters. Investment is in the token's smallest unit; MinTokens
	// is the minOutcomeTokensToBuy slippage floor (nil means zero).
	Investment   *big.Int
	OutcomeIndex int
	MinTokens    *big.Int

	Approve        bool
	Buy            bool
	CheckAllowance bool
	MaxAllowance   bool

	// Nonce-advance policy. WaitApprove advances an approval's nonce only
	// after a confirmed receipt; WaitBuy applies the same rule to buys.
	// The historical defaults are asymmetric: approvals wait, buys advance
	// immediately after a successful send.
	WaitApprove bool
	WaitBuy     bool

	Workers int
	Proxies []string

	SendRetries    int
	RetryDelay     time.Duration
	ThinkTime      time.Duration
	ReceiptTimeout time.Duration
	ReceiptPoll    time.Duration

	GasLimitApprove uint64
	GasLimitBuy     uint64
}

// Validate rejects configs that cannot produce a meaningful run.
func (c *Config) Validate() error {
	if c.ChainID <= 0 {
		return fmt.Errorf("chain id required")
	}
	if (c.Token == common.Address{}) {
		return fmt.Errorf("token address required")
	}
	if c.TokenDecimals < 0 || c.TokenDecimals > 77 {
		return fmt.Errorf("token decimals %d out of range", c.TokenDecimals)
	}
	if !c.Approve && !c.Buy {
		return fmt.Errorf("both approve and buy disabled; nothing to do")
	}
	if c.Buy {
		if c.Investment == nil || c.Investment.Sign() <= 0 {
			return fmt.Errorf("positive investment amount required when buys are enabled")
		}
		if c.OutcomeIndex < 0 {
			return fmt.Errorf("outcome index %d out of range", c.OutcomeIndex)
		}
		if c.MinTokens != nil && c.MinTokens.Sign() < 0 {
			return fmt.Errorf("min tokens must not be negative")
		}
	}
	return nil
}

func (c *Config) normalize() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.SendRetries <= 0 {
		c.SendRetries = DefaultSendRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.ReceiptTimeout <= 0 {
		c.ReceiptTimeout = DefaultReceiptTimeout
	}
	if c.ReceiptPoll <= 0 {
		c.ReceiptPoll = DefaultReceiptPoll
	}
	if c.GasLimitApprove == 0 {
		c.GasLimitApprove = DefaultGasLimitApprove
	}
	if c.GasLimitBuy == 0 {
		c.GasLimitBuy = DefaultGasLimitBuy
	}
}
