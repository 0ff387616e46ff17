package batchbuy

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"math/rand/v2"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ldf8476235/limitless/internal/audit"
	"github.com/ldf8476235/limitless/internal/baseutil"
	"github.com/ldf8476235/limitless/internal/chainrpc"
	"github.com/ldf8476235/limitless/internal/ethutil"
	"github.com/ldf8476235/limitless/internal/txsend"
)

// Backend is the slice of an RPC client one worker drives.
// *ethclient.Client satisfies it.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// DialFunc opens the backend one account will use for its whole run.
// proxyURL is empty for direct egress.
type DialFunc func(ctx context.Context, proxyURL string) (Backend, error)

// WorkerResult is one account's tally. A Failed result means the account
// could not start (its nonce never resolved); per-target errors inside a
// run are logged and skipped without failing the account.
type WorkerResult struct {
	Address         common.Address
	ApprovesSent    int
	BuysSent        int
	ApprovesSkipped int
	Failed          bool
}

// settleDelay is the short pause taken after a failed approve or buy step
// before the worker moves on. Overridden in tests.
var settleDelay = 500 * time.Millisecond

type worker struct {
	cfg     Config
	acct    ethutil.Account
	groups  []TargetGroup
	backend Backend
	proxy   string
	audit   *audit.Log
	rng     *rand.Rand

	nonce uint64
	res   WorkerResult
}

func newWorker(cfg Config, acct ethutil.Account, groups []TargetGroup, backend Backend, proxy string, auditLog *audit.Log) *worker {
	return &worker{
		cfg:     cfg,
		acct:    acct,
		groups:  groups,
		backend: backend,
		proxy:   proxy,
		audit:   auditLog,
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(time.Now().UnixNano()>>1))),
	}
}

// run walks every market of every group once. The only early return is a
// failed nonce fetch; everything after that is log-and-continue.
func (w *worker) run(ctx context.Context) WorkerResult {
	w.res = WorkerResult{Address: w.acct.Address}

	nonce, err := w.backend.PendingNonceAt(ctx, w.acct.Address)
	if err != nil {
		w.res.Failed = true
		w.logf("nonce fetch failed (proxy=%s): %v", chainrpc.ProxyLabel(w.proxy), err)
		w.record(audit.Event{Stage: audit.StageNonce, Err: err.Error()})
		return w.res
	}
	w.nonce = nonce
	w.logf("start nonce=%d proxy=%s", nonce, chainrpc.ProxyLabel(w.proxy))

loop:
	for _, group := range w.groups {
		for _, market := range group.Markets {
			select {
			case <-ctx.Done():
				w.logf("interrupted: %v", ctx.Err())
				break loop
			default:
			}
			w.runTarget(ctx, market)
		}
	}

	w.logf("done approves=%d buys=%d skipped=%d", w.res.ApprovesSent, w.res.BuysSent, w.res.ApprovesSkipped)
	w.record(audit.Event{
		Stage: audit.StageResult,
		Note:  fmt.Sprintf("approves=%d buys=%d skipped=%d", w.res.ApprovesSent, w.res.BuysSent, w.res.ApprovesSkipped),
	})
	return w.res
}

func (w *worker) runTarget(ctx context.Context, market common.Address) {
	balance, err := baseutil.BalanceOf(ctx, w.backend, w.cfg.Token, w.acct.Address)
	if err != nil {
		w.logf("balance read failed, skipping %s: %v", market.Hex(), err)
		w.record(audit.Event{Stage: audit.StageBalance, Market: market.Hex(), Err: err.Error()})
		return
	}
	if w.cfg.Investment != nil && balance.Cmp(w.cfg.Investment) < 0 {
		w.logf("balance %s below %s, skipping %s",
			ethutil.FormatUnits(balance, w.cfg.TokenDecimals),
			ethutil.FormatUnits(w.cfg.Investment, w.cfg.TokenDecimals),
			market.Hex())
		w.record(audit.Event{Stage: audit.StageBalance, Market: market.Hex(), Note: "insufficient"})
		return
	}

	if w.cfg.Approve {
		w.approveStep(ctx, market)
	}
	if w.cfg.Buy {
		w.buyStep(ctx, market)
	}
}

// approveStep submits an allowance grant for one market. Failures do not
// stop the buy step that follows; the caller always proceeds.
func (w *worker) approveStep(ctx context.Context, market common.Address) {
	if w.cfg.CheckAllowance {
		current, err := baseutil.Allowance(ctx, w.backend, w.cfg.Token, w.acct.Address, market)
		switch {
		case err != nil:
			// A failed read means "approve anyway", never "give up".
			w.logf("allowance query failed for %s, approving anyway: %v", market.Hex(), err)
			w.record(audit.Event{Stage: audit.StageAllowance, Market: market.Hex(), Err: err.Error()})
		case current.Cmp(baseutil.AllowanceThreshold()) >= 0:
			w.res.ApprovesSkipped++
			w.logf("allowance sufficient for %s, approve skipped", market.Hex())
			w.record(audit.Event{Stage: audit.StageAllowance, Market: market.Hex(), Note: "sufficient"})
			return
		}
	}

	amount := baseutil.AllowanceThreshold()
	if w.cfg.MaxAllowance {
		amount = baseutil.MaxUint256()
	}

	gasPrice, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		w.logf("approve gas price fetch failed for %s: %v", market.Hex(), err)
		w.record(audit.Event{Stage: audit.StageApprove, Market: market.Hex(), Err: err.Error()})
		w.settle(ctx)
		return
	}

	tx, err := txsend.BuildApprove(w.cfg.Token, market, amount, w.nonce, gasPrice, w.cfg.GasLimitApprove)
	if err == nil {
		tx, err = txsend.Sign(tx, w.acct.Key, big.NewInt(w.cfg.ChainID))
	}
	if err != nil {
		w.logf("approve build failed for %s: %v", market.Hex(), err)
		w.record(audit.Event{Stage: audit.StageApprove, Market: market.Hex(), Err: err.Error()})
		return
	}

	hash, err := txsend.SendWithRetry(ctx, w.backend, tx, w.cfg.SendRetries, w.cfg.RetryDelay)
	if err != nil {
		w.logf("approve send failed for %s: %v", market.Hex(), err)
		w.record(audit.Event{Stage: audit.StageApprove, Market: market.Hex(), Nonce: audit.Nonce(w.nonce), Err: err.Error()})
		w.settle(ctx)
		return
	}
	w.logf("approve sent %s -> %s nonce=%d", hash.Hex(), market.Hex(), w.nonce)

	if !w.cfg.WaitApprove {
		w.record(audit.Event{Stage: audit.StageApprove, Market: market.Hex(), TxHash: hash.Hex(), Nonce: audit.Nonce(w.nonce), Note: "sent"})
		w.nonce++
		w.res.ApprovesSent++
		return
	}

	inc := txsend.WaitForInclusion(ctx, w.backend, hash, w.cfg.ReceiptTimeout, w.cfg.ReceiptPoll)
	w.record(audit.Event{Stage: audit.StageApprove, Market: market.Hex(), TxHash: hash.Hex(), Nonce: audit.Nonce(w.nonce), Note: inc.String()})
	switch inc {
	case txsend.InclusionConfirmed:
		w.nonce++
		w.res.ApprovesSent++
	case txsend.InclusionReverted:
		w.logf("approve reverted %s, nonce withheld", hash.Hex())
	default:
		// Unconfirmed within the window. The nonce stays put: the next send
		// reuses it, replacing the approval if it never lands.
		w.logf("approve unconfirmed %s, nonce withheld", hash.Hex())
	}
}

func (w *worker) buyStep(ctx context.Context, market common.Address) {
	gasPrice, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		w.logf("buy gas price fetch failed for %s: %v", market.Hex(), err)
		w.record(audit.Event{Stage: audit.StageBuy, Market: market.Hex(), Err: err.Error()})
		w.settle(ctx)
		return
	}

	tx, err := txsend.BuildBuy(market, w.cfg.Investment, w.cfg.OutcomeIndex, w.cfg.MinTokens, w.nonce, gasPrice, w.cfg.GasLimitBuy)
	if err == nil {
		tx, err = txsend.Sign(tx, w.acct.Key, big.NewInt(w.cfg.ChainID))
	}
	if err != nil {
		w.logf("buy build failed for %s: %v", market.Hex(), err)
		w.record(audit.Event{Stage: audit.StageBuy, Market: market.Hex(), Err: err.Error()})
		return
	}

	hash, err := txsend.SendWithRetry(ctx, w.backend, tx, w.cfg.SendRetries, w.cfg.RetryDelay)
	if err != nil {
		w.logf("buy send failed for %s: %v", market.Hex(), err)
		w.record(audit.Event{Stage: audit.StageBuy, Market: market.Hex(), Nonce: audit.Nonce(w.nonce), Err: err.Error()})
		w.settle(ctx)
		return
	}
	w.logf("buy sent %s -> %s invest=%s outcome=%d nonce=%d",
		hash.Hex(), market.Hex(),
		ethutil.FormatUnits(w.cfg.Investment, w.cfg.TokenDecimals),
		w.cfg.OutcomeIndex, w.nonce)

	if w.cfg.WaitBuy {
		inc := txsend.WaitForInclusion(ctx, w.backend, hash, w.cfg.ReceiptTimeout, w.cfg.ReceiptPoll)
		w.record(audit.Event{Stage: audit.StageBuy, Market: market.Hex(), TxHash: hash.Hex(), Nonce: audit.Nonce(w.nonce), Note: inc.String()})
		if inc == txsend.InclusionConfirmed {
			w.nonce++
			w.res.BuysSent++
		} else {
			w.logf("buy not confirmed %s (%s), nonce withheld", hash.Hex(), inc)
		}
	} else {
		w.record(audit.Event{Stage: audit.StageBuy, Market: market.Hex(), TxHash: hash.Hex(), Nonce: audit.Nonce(w.nonce), Note: "sent"})
		w.nonce++
		w.res.BuysSent++
	}

	w.think(ctx)
}

// think pauses between consecutive buys so a burst of wallets does not hit
// the endpoint in lockstep. Jitter adds up to half the base pause.
func (w *worker) think(ctx context.Context) {
	if w.cfg.ThinkTime <= 0 {
		return
	}
	d := w.cfg.ThinkTime + time.Duration(w.rng.Int64N(int64(w.cfg.ThinkTime/2)+1))
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (w *worker) settle(ctx context.Context) {
	if settleDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(settleDelay):
	}
}

func (w *worker) record(ev audit.Event) {
	ev.Account = w.acct.Address.Hex()
	if err := w.audit.Record(ev); err != nil {
		log.Printf("[warn] audit write failed: %v", err)
	}
}

func (w *worker) logf(format string, args ...any) {
	log.Printf("[%s] "+format, append([]any{w.acct.Address.Hex()[:8]}, args...)...)
}
