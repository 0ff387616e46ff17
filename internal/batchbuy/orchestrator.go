package batchbuy

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/ldf8476235/limitless/internal/audit"
	"github.com/ldf8476235/limitless/internal/ethutil"
)

// Summary aggregates every completed worker. Faulted counts accounts whose
// task never produced a result (dial failure or panic); those contribute
// nothing to the totals.
type Summary struct {
	Accounts      int
	Faulted       int
	Failed        int
	TotalApproves int
	TotalBuys     int
	TotalSkipped  int
	Results       []WorkerResult
}

// ProxyFor maps the 1-based account position onto the proxy list,
// wrapping around when there are more accounts than proxies. An empty
// list means direct egress for everyone.
func ProxyFor(index int, proxies []string) string {
	if len(proxies) == 0 || index < 1 {
		return ""
	}
	return proxies[(index-1)%len(proxies)]
}

// Run fans the per-account pipeline out over a bounded pool and blocks
// until every account has been attempted. Pool width is min(cfg.Workers,
// len(accounts)). A panicking or undialable task is counted as faulted and
// never takes the rest of the run down.
func Run(ctx context.Context, cfg Config, accounts []ethutil.Account, groups []TargetGroup, dial DialFunc, auditLog *audit.Log) Summary {
	cfg.normalize()

	width := cfg.Workers
	if len(accounts) < width {
		width = len(accounts)
	}
	if width < 1 {
		width = 1
	}
	log.Printf("[info] dispatching %d wallets (pool=%d proxies=%d targets=%d)",
		len(accounts), width, len(cfg.Proxies), countMarkets(groups))

	sem := make(chan struct{}, width)
	results := make(chan WorkerResult, len(accounts))
	var faults atomic.Int64
	var wg sync.WaitGroup

	for i, acct := range accounts {
		wg.Add(1)
		go func(index int, acct ethutil.Account) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					faults.Add(1)
					log.Printf("[warn] wallet %s task panicked: %v", acct.Address.Hex(), r)
				}
			}()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				faults.Add(1)
				return
			}
			defer func() { <-sem }()

			proxy := ProxyFor(index, cfg.Proxies)
			backend, err := dial(ctx, proxy)
			if err != nil {
				faults.Add(1)
				log.Printf("[warn] wallet %s: %v", acct.Address.Hex(), err)
				_ = auditLog.Record(audit.Event{Account: acct.Address.Hex(), Stage: audit.StageConnect, Err: err.Error()})
				return
			}
			if c, ok := backend.(interface{ Close() }); ok {
				defer c.Close()
			}

			results <- newWorker(cfg, acct, groups, backend, proxy, auditLog).run(ctx)
		}(i+1, acct)
	}

	wg.Wait()
	close(results)

	var sum Summary
	for r := range results {
		sum.Accounts++
		if r.Failed {
			sum.Failed++
		}
		sum.TotalApproves += r.ApprovesSent
		sum.TotalBuys += r.BuysSent
		sum.TotalSkipped += r.ApprovesSkipped
		sum.Results = append(sum.Results, r)
	}
	sum.Faulted = int(faults.Load())
	return sum
}

func countMarkets(groups []TargetGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.Markets)
	}
	return n
}
