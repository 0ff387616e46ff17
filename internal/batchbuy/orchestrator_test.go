package batchbuy

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ldf8476235/limitless/internal/ethutil"
)

func testAccounts(t *testing.T, n int) []ethutil.Account {
	t.Helper()
	out := make([]ethutil.Account, n)
	for i := range out {
		out[i] = testAccount(t, fmt.Sprintf("%064x", i+1))
	}
	return out
}

func TestProxyForRotation(t *testing.T) {
	proxies := []string{"http://p0:8080", "http://p1:8080"}

	want := []string{"http://p0:8080", "http://p1:8080", "http://p0:8080", "http://p1:8080", "http://p0:8080"}
	for i, w := range want {
		if got := ProxyFor(i+1, proxies); got != w {
			t.Errorf("ProxyFor(%d) = %q, want %q", i+1, got, w)
		}
	}

	if got := ProxyFor(3, nil); got != "" {
		t.Errorf("ProxyFor with no proxies = %q, want direct", got)
	}
	if got := ProxyFor(0, proxies); got != "" {
		t.Errorf("ProxyFor(0) = %q, want direct for out-of-range index", got)
	}
}

type concTracker struct {
	mu   sync.Mutex
	cur  int
	high int
}

func (c *concTracker) enter() {
	c.mu.Lock()
	c.cur++
	if c.cur > c.high {
		c.high = c.cur
	}
	c.mu.Unlock()
}

func (c *concTracker) exit() {
	c.mu.Lock()
	c.cur--
	c.mu.Unlock()
}

func TestRunBoundsPoolWidth(t *testing.T) {
	var tracker concTracker

	dial := func(context.Context, string) (Backend, error) {
		backend := newFakeBackend()
		backend.nonceHook = func() {
			tracker.enter()
			time.Sleep(20 * time.Millisecond)
			tracker.exit()
		}
		return backend, nil
	}

	cfg := testConfig()
	cfg.Workers = 2

	sum := Run(context.Background(), cfg, testAccounts(t, 3), nil, dial, nil)
	if sum.Accounts != 3 {
		t.Fatalf("Accounts = %d, want all 3 attempted", sum.Accounts)
	}
	if tracker.high > 2 {
		t.Errorf("observed %d concurrent workers, want at most 2", tracker.high)
	}
}

func TestRunDialFailureExcludedFromTotals(t *testing.T) {
	dial := func(_ context.Context, proxy string) (Backend, error) {
		if proxy == "http://bad:8080" {
			return nil, fmt.Errorf("proxyconnect tcp: connection refused")
		}
		return newFakeBackend(), nil
	}

	cfg := testConfig()
	cfg.Proxies = []string{"http://a:8080", "http://bad:8080", "http://c:8080"}

	sum := Run(context.Background(), cfg, testAccounts(t, 3), oneMarket(), dial, nil)
	if sum.Faulted != 1 {
		t.Fatalf("Faulted = %d, want 1", sum.Faulted)
	}
	if sum.Accounts != 2 {
		t.Fatalf("Accounts = %d, want 2 completed results", sum.Accounts)
	}
	if sum.TotalApproves != 2 || sum.TotalBuys != 2 {
		t.Errorf("totals = %d approves / %d buys, want 2 / 2 from the reachable wallets", sum.TotalApproves, sum.TotalBuys)
	}
}

func TestRunRecoversPanickedTask(t *testing.T) {
	var dials atomic.Int64

	dial := func(context.Context, string) (Backend, error) {
		backend := newFakeBackend()
		if dials.Add(1) == 1 {
			backend.nonceHook = func() { panic("boom") }
		}
		return backend, nil
	}

	sum := Run(context.Background(), testConfig(), testAccounts(t, 3), oneMarket(), dial, nil)
	if sum.Faulted != 1 {
		t.Fatalf("Faulted = %d, want the panicked task counted once", sum.Faulted)
	}
	if sum.Accounts != 2 {
		t.Fatalf("Accounts = %d, want the survivors to finish", sum.Accounts)
	}
}

func TestRunCountsFailedAccounts(t *testing.T) {
	var dials atomic.Int64

	dial := func(context.Context, string) (Backend, error) {
		backend := newFakeBackend()
		if dials.Add(1) == 1 {
			backend.nonceErr = fmt.Errorf("429 too many requests")
		}
		return backend, nil
	}

	sum := Run(context.Background(), testConfig(), testAccounts(t, 3), oneMarket(), dial, nil)
	if sum.Accounts != 3 {
		t.Fatalf("Accounts = %d, want failed account still reported", sum.Accounts)
	}
	if sum.Failed != 1 {
		t.Errorf("Failed = %d, want 1", sum.Failed)
	}
	if sum.TotalApproves != 2 || sum.TotalBuys != 2 {
		t.Errorf("totals = %d approves / %d buys, want 2 / 2", sum.TotalApproves, sum.TotalBuys)
	}
}

type closableBackend struct {
	*fakeBackend
	closed *atomic.Int64
}

func (c *closableBackend) Close() { c.closed.Add(1) }

func TestRunClosesBackends(t *testing.T) {
	var closed atomic.Int64

	dial := func(context.Context, string) (Backend, error) {
		return &closableBackend{fakeBackend: newFakeBackend(), closed: &closed}, nil
	}

	sum := Run(context.Background(), testConfig(), testAccounts(t, 2), oneMarket(), dial, nil)
	if sum.Accounts != 2 {
		t.Fatalf("Accounts = %d, want 2", sum.Accounts)
	}
	if got := closed.Load(); got != 2 {
		t.Errorf("Close called %d times, want once per wallet", got)
	}
}

func TestRunAggregatesResults(t *testing.T) {
	dial := func(context.Context, string) (Backend, error) {
		return newFakeBackend(), nil
	}

	groups := oneMarket()
	accounts := testAccounts(t, 2)

	sum := Run(context.Background(), testConfig(), accounts, groups, dial, nil)
	if len(sum.Results) != 2 {
		t.Fatalf("Results = %d entries, want 2", len(sum.Results))
	}

	seen := map[string]bool{}
	for _, r := range sum.Results {
		seen[r.Address.Hex()] = true
		if r.ApprovesSent != 1 || r.BuysSent != 1 {
			t.Errorf("result %s = %#v, want 1 approve and 1 buy", r.Address.Hex(), r)
		}
	}
	for _, acct := range accounts {
		if !seen[acct.Address.Hex()] {
			t.Errorf("no result for wallet %s", acct.Address.Hex())
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate on sane config: %v", err)
	}

	bad := testConfig()
	bad.Investment = nil
	if err := bad.Validate(); err == nil {
		t.Error("want error when buys are enabled without an investment amount")
	}

	bad = testConfig()
	bad.Approve = false
	bad.Buy = false
	if err := bad.Validate(); err == nil {
		t.Error("want error when both steps are disabled")
	}

	bad = testConfig()
	bad.OutcomeIndex = -1
	if err := bad.Validate(); err == nil {
		t.Error("want error for negative outcome index")
	}
}
