package txsend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrSendExhausted marks a submission that failed on every allowed attempt.
// Fatal only to the step that tried to send; the per-account run continues.
var ErrSendExhausted = errors.New("transaction send retries exhausted")

// TxSender is the slice of the RPC client the pipeline submits through.
// *ethclient.Client satisfies it.
type TxSender interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// ReceiptReader is the slice of the RPC client inclusion polling reads from.
// *ethclient.Client satisfies it.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// sendJitter spreads retries out so parallel workers hitting the same
// rate-limited endpoint don't resubmit in lockstep. Overridable in tests.
var sendJitter = func() time.Duration {
	return rand.N(time.Second)
}

// SendWithRetry submits a signed transaction up to tries times. Every retry
// resubmits the same signed payload: the nonce was fixed when the intent was
// built and must not change here. Between attempts it waits
// attempt*baseDelay plus jitter. After exhaustion the last error is returned
// wrapped in ErrSendExhausted.
func SendWithRetry(ctx context.Context, sender TxSender, tx *types.Transaction, tries int, baseDelay time.Duration) (common.Hash, error) {
	if tx == nil {
		return common.Hash{}, fmt.Errorf("transaction required")
	}
	if tries <= 0 {
		tries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= tries; attempt++ {
		err := sender.SendTransaction(ctx, tx)
		if err == nil {
			return tx.Hash(), nil
		}
		lastErr = err

		if attempt == tries {
			break
		}
		wait := time.Duration(attempt)*baseDelay + sendJitter()
		log.Printf("[warn] send failed (%d/%d), retrying in %s: %v", attempt, tries, wait.Round(100*time.Millisecond), err)
		select {
		case <-ctx.Done():
			return common.Hash{}, ctx.Err()
		case <-time.After(wait):
		}
	}

	return common.Hash{}, fmt.Errorf("%w after %d attempts: %v", ErrSendExhausted, tries, lastErr)
}

// Inclusion is the outcome of waiting for a transaction to land. The
// unconfirmed case is a value, not an error: a timed-out poll window says
// nothing about whether the transaction will eventually mine.
type Inclusion int

const (
	InclusionUnconfirmed Inclusion = iota
	InclusionConfirmed
	InclusionReverted
)

func (i Inclusion) String() string {
	switch i {
	case InclusionConfirmed:
		return "confirmed"
	case InclusionReverted:
		return "reverted"
	default:
		return "unconfirmed"
	}
}

// WaitForInclusion polls for a mined receipt until timeout. A mined receipt
// with success status yields InclusionConfirmed, a mined failure yields
// InclusionReverted, and anything else (still pending, transient read errors,
// window elapsed) yields InclusionUnconfirmed.
func WaitForInclusion(ctx context.Context, reader ReceiptReader, hash common.Hash, timeout, poll time.Duration) Inclusion {
	if poll <= 0 {
		poll = time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		receipt, err := reader.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				return InclusionConfirmed
			}
			return InclusionReverted
		}

		select {
		case <-ctx.Done():
			return InclusionUnconfirmed
		case <-ticker.C:
		}
	}
}
