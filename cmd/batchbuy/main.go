package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ldf8476235/limitless/internal/audit"
	"github.com/ldf8476235/limitless/internal/baseutil"
	"github.com/ldf8476235/limitless/internal/batchbuy"
	"github.com/ldf8476235/limitless/internal/chainrpc"
	"github.com/ldf8476235/limitless/internal/dotenv"
	"github.com/ldf8476235/limitless/internal/ethutil"
	"github.com/ldf8476235/limitless/internal/prophet"
	"github.com/ldf8476235/limitless/internal/report"
)

const (
	defaultRPCURL    = "https://mainnet.base.org"
	defaultKeysFile  = "private_keys.txt"
	defaultProxyFile = "proxies.txt"

	// Price oracle ids of the hourly prophet markets, straight from the
	// Limitless API.
	defaultOracleMap = "SOL=59,BNB=61,ETH=58,DOGE=60,XRP=62"
)

type oraclePair struct {
	symbol string
	id     int
}

type args struct {
	rpcURL  string
	chainID int64

	keysFile  string
	proxyFile string

	token         common.Address
	tokenDecimals int

	marketsCSV string
	oracles    []oraclePair
	selectCSV  string
	frequency  string
	apiURL     string

	amount    *big.Int
	outcome   int
	minTokens *big.Int

	approve        bool
	buy            bool
	checkAllowance bool
	maxAllowance   bool
	waitApprove    bool
	waitBuy        bool

	workers        int
	sendRetries    int
	retryDelay     time.Duration
	thinkTime      time.Duration
	receiptTimeout time.Duration
	receiptPoll    time.Duration
	gasApprove     uint64
	gasBuy         uint64

	auditFile  string
	reportFile string
	yes        bool
}

func parseArgs() (args, error) {
	var rpcFlag string
	var chainFlag int64
	var keysFlag string
	var proxiesFlag string
	var tokenFlag string
	var decimalsFlag int

	var marketsFlag string
	var oraclesFlag string
	var selectFlag string
	var frequencyFlag string
	var apiFlag string

	var amountFlag string
	var outcomeFlag int
	var minTokensFlag string

	var approveFlag bool
	var buyFlag bool
	var checkAllowanceFlag bool
	var maxAllowanceFlag bool
	var waitApproveFlag bool
	var waitBuyFlag bool

	var workersFlag int
	var sendRetriesFlag int
	var retryDelayFlag time.Duration
	var thinkTimeFlag time.Duration
	var receiptTimeoutFlag time.Duration
	var receiptPollFlag time.Duration
	var gasApproveFlag uint64
	var gasBuyFlag uint64

	var auditFlag string
	var reportFlag string
	var yesFlag bool

	flag.StringVar(&rpcFlag, "rpc", "", "Chain RPC endpoint (default https://mainnet.base.org)")
	flag.Int64Var(&chainFlag, "chain-id", baseutil.ChainID, "Chain id used for EIP-155 signing")
	flag.StringVar(&keysFlag, "keys", "", "Private keys file, one hex key per line (default private_keys.txt)")
	flag.StringVar(&proxiesFlag, "proxies", "", "Proxy URLs file, one per line; optional (default proxies.txt)")
	flag.StringVar(&tokenFlag, "token", "", "ERC20 token spent on buys (default Base USDC)")
	flag.IntVar(&decimalsFlag, "token-decimals", baseutil.USDCTokenDecimals, "Decimals of the spend token")

	flag.StringVar(&marketsFlag, "markets", "", "Market contract addresses (comma separated); skips discovery")
	flag.StringVar(&oraclesFlag, "oracles", defaultOracleMap, "Symbol=priceOracleId pairs for discovery")
	flag.StringVar(&selectFlag, "select", "", "Symbols to trade, e.g. ETH,SOL (required unless -markets)")
	flag.StringVar(&frequencyFlag, "frequency", prophet.DefaultFrequency, "Prophet market cadence to discover")
	flag.StringVar(&apiFlag, "api", "", "Limitless API base URL (default https://api.limitless.exchange)")

	flag.StringVar(&amountFlag, "amount", "1", "Buy amount per market in token units, e.g. 2.5")
	flag.IntVar(&outcomeFlag, "outcome", 0, "Outcome index to buy: 0 (up) or 1 (down)")
	flag.StringVar(&minTokensFlag, "min-tokens", "0", "Slippage floor in outcome-token base units")

	flag.BoolVar(&approveFlag, "approve", true, "Grant the token allowance before buying")
	flag.BoolVar(&buyFlag, "buy", true, "Submit the buy call")
	flag.BoolVar(&checkAllowanceFlag, "check-allowance", true, "Skip the approval when the existing allowance is already sufficient")
	flag.BoolVar(&maxAllowanceFlag, "max-allowance", true, "Approve max(uint256) instead of the sufficiency threshold")
	flag.BoolVar(&waitApproveFlag, "wait-approve", true, "Advance an approval's nonce only on a confirmed receipt")
	flag.BoolVar(&waitBuyFlag, "wait-buy", false, "Advance a buy's nonce only on a confirmed receipt (default: fire and forget)")

	flag.IntVar(&workersFlag, "workers", batchbuy.DefaultWorkers, "Max wallets in flight at once")
	flag.IntVar(&sendRetriesFlag, "send-retries", batchbuy.DefaultSendRetries, "Send attempts per transaction")
	flag.DurationVar(&retryDelayFlag, "retry-delay", batchbuy.DefaultRetryDelay, "Base wait between send attempts (scaled per attempt, plus jitter)")
	flag.DurationVar(&thinkTimeFlag, "think-time", batchbuy.DefaultThinkTime, "Pause after each buy (0 disables)")
	flag.DurationVar(&receiptTimeoutFlag, "receipt-timeout", batchbuy.DefaultReceiptTimeout, "How long to wait for a receipt before treating a tx as unconfirmed")
	flag.DurationVar(&receiptPollFlag, "receipt-poll", batchbuy.DefaultReceiptPoll, "Receipt polling interval")
	flag.Uint64Var(&gasApproveFlag, "gas-approve", batchbuy.DefaultGasLimitApprove, "Gas limit for approvals")
	flag.Uint64Var(&gasBuyFlag, "gas-buy", batchbuy.DefaultGasLimitBuy, "Gas limit for buys")

	flag.StringVar(&auditFlag, "audit", "", "Optional JSONL audit log path")
	flag.StringVar(&reportFlag, "report", "", "Optional run report path (JSON)")
	flag.BoolVar(&yesFlag, "yes", false, "Skip the confirmation prompt")

	flag.Parse()

	rpcURL := strings.TrimSpace(firstNonEmpty(rpcFlag, os.Getenv("LIMITLESS_RPC_URL"), defaultRPCURL))
	if !strings.HasPrefix(rpcURL, "http://") && !strings.HasPrefix(rpcURL, "https://") {
		return args{}, fmt.Errorf("rpc must start with http:// or https:// (got %q)", rpcURL)
	}
	if chainFlag <= 0 {
		return args{}, fmt.Errorf("chain-id must be > 0")
	}

	keysFile := strings.TrimSpace(firstNonEmpty(keysFlag, os.Getenv("LIMITLESS_KEYS_FILE"), defaultKeysFile))
	proxyFile := strings.TrimSpace(firstNonEmpty(proxiesFlag, os.Getenv("LIMITLESS_PROXIES_FILE"), defaultProxyFile))

	tokenHex := strings.TrimSpace(firstNonEmpty(tokenFlag, os.Getenv("LIMITLESS_TOKEN"), baseutil.USDCTokenAddress.Hex()))
	if !common.IsHexAddress(tokenHex) {
		return args{}, fmt.Errorf("invalid token address %q", tokenHex)
	}
	if decimalsFlag < 0 || decimalsFlag > 77 {
		return args{}, fmt.Errorf("token-decimals %d out of range", decimalsFlag)
	}

	marketsCSV := strings.TrimSpace(firstNonEmpty(marketsFlag, os.Getenv("LIMITLESS_MARKETS")))
	selectCSV := strings.TrimSpace(firstNonEmpty(selectFlag, os.Getenv("LIMITLESS_SELECT")))
	if marketsCSV == "" && selectCSV == "" {
		return args{}, fmt.Errorf("nothing to trade: pass -markets or -select")
	}

	oracles, err := parseOracles(firstNonEmpty(oraclesFlag, os.Getenv("LIMITLESS_ORACLES"), defaultOracleMap))
	if err != nil {
		return args{}, err
	}

	frequency := strings.TrimSpace(frequencyFlag)
	apiURL := strings.TrimSpace(firstNonEmpty(apiFlag, os.Getenv("LIMITLESS_API_URL")))

	if !approveFlag && !buyFlag {
		return args{}, fmt.Errorf("both -approve=false and -buy=false leave nothing to do")
	}

	amountStr := strings.TrimSpace(firstNonEmpty(amountFlag, os.Getenv("LIMITLESS_AMOUNT"), "1"))
	var amount *big.Int
	if buyFlag {
		amount, err = ethutil.ToSmallestUnit(amountStr, decimalsFlag)
		if err != nil {
			return args{}, fmt.Errorf("invalid -amount: %w", err)
		}
		if amount.Sign() <= 0 {
			return args{}, fmt.Errorf("-amount must be > 0")
		}
	}
	if outcomeFlag != 0 && outcomeFlag != 1 {
		return args{}, fmt.Errorf("outcome must be 0 (up) or 1 (down)")
	}
	minTokens := new(big.Int)
	if s := strings.TrimSpace(minTokensFlag); s != "" {
		if _, ok := minTokens.SetString(s, 10); !ok || minTokens.Sign() < 0 {
			return args{}, fmt.Errorf("invalid -min-tokens %q", minTokensFlag)
		}
	}

	if workersFlag <= 0 {
		return args{}, fmt.Errorf("workers must be > 0")
	}
	if sendRetriesFlag <= 0 {
		return args{}, fmt.Errorf("send-retries must be > 0")
	}
	if retryDelayFlag <= 0 || receiptTimeoutFlag <= 0 || receiptPollFlag <= 0 {
		return args{}, fmt.Errorf("retry-delay, receipt-timeout and receipt-poll must be > 0")
	}
	if thinkTimeFlag < 0 {
		return args{}, fmt.Errorf("think-time must be >= 0")
	}
	if gasApproveFlag == 0 || gasBuyFlag == 0 {
		return args{}, fmt.Errorf("gas limits must be > 0")
	}

	return args{
		rpcURL:         rpcURL,
		chainID:        chainFlag,
		keysFile:       keysFile,
		proxyFile:      proxyFile,
		token:          common.HexToAddress(tokenHex),
		tokenDecimals:  decimalsFlag,
		marketsCSV:     marketsCSV,
		oracles:        oracles,
		selectCSV:      selectCSV,
		frequency:      frequency,
		apiURL:         apiURL,
		amount:         amount,
		outcome:        outcomeFlag,
		minTokens:      minTokens,
		approve:        approveFlag,
		buy:            buyFlag,
		checkAllowance: checkAllowanceFlag,
		maxAllowance:   maxAllowanceFlag,
		waitApprove:    waitApproveFlag,
		waitBuy:        waitBuyFlag,
		workers:        workersFlag,
		sendRetries:    sendRetriesFlag,
		retryDelay:     retryDelayFlag,
		thinkTime:      thinkTimeFlag,
		receiptTimeout: receiptTimeoutFlag,
		receiptPoll:    receiptPollFlag,
		gasApprove:     gasApproveFlag,
		gasBuy:         gasBuyFlag,
		auditFile:      strings.TrimSpace(firstNonEmpty(auditFlag, os.Getenv("LIMITLESS_AUDIT_FILE"))),
		reportFile:     strings.TrimSpace(firstNonEmpty(reportFlag, os.Getenv("LIMITLESS_REPORT_FILE"))),
		yes:            yesFlag,
	}, nil
}

func main() {
	log.SetFlags(0)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	parsed, err := parseArgs()
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	accounts, err := ethutil.LoadPrivateKeys(parsed.keysFile)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	if len(accounts) == 0 {
		log.Fatalf("[fatal] no usable keys in %s", parsed.keysFile)
	}

	proxies, err := ethutil.LoadProxies(parsed.proxyFile)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	groups, err := resolveTargets(ctx, parsed)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	printPlan(parsed, accounts, proxies, groups)

	if !parsed.yes && !confirmRun() {
		log.Printf("[info] aborted")
		return
	}

	cfg := batchbuy.Config{
		ChainID:         parsed.chainID,
		Token:           parsed.token,
		TokenDecimals:   parsed.tokenDecimals,
		Investment:      parsed.amount,
		OutcomeIndex:    parsed.outcome,
		MinTokens:       parsed.minTokens,
		Approve:         parsed.approve,
		Buy:             parsed.buy,
		CheckAllowance:  parsed.checkAllowance,
		MaxAllowance:    parsed.maxAllowance,
		WaitApprove:     parsed.waitApprove,
		WaitBuy:         parsed.waitBuy,
		Workers:         parsed.workers,
		Proxies:         proxies,
		SendRetries:     parsed.sendRetries,
		RetryDelay:      parsed.retryDelay,
		ThinkTime:       parsed.thinkTime,
		ReceiptTimeout:  parsed.receiptTimeout,
		ReceiptPoll:     parsed.receiptPoll,
		GasLimitApprove: parsed.gasApprove,
		GasLimitBuy:     parsed.gasBuy,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	dial := func(ctx context.Context, proxyURL string) (batchbuy.Backend, error) {
		client, err := chainrpc.Dial(ctx, parsed.rpcURL, proxyURL)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	auditLog := audit.Open(parsed.auditFile)

	started := time.Now()
	sum := batchbuy.Run(ctx, cfg, accounts, groups, dial, auditLog)
	finished := time.Now()

	if err := auditLog.Close(); err != nil {
		log.Printf("[warn] close audit log: %v", err)
	}

	printSummary(sum, finished.Sub(started))

	if parsed.reportFile != "" {
		if err := report.Write(parsed.reportFile, buildReport(parsed, sum, accounts, proxies, groups, started, finished)); err != nil {
			log.Printf("[warn] write report: %v", err)
		} else {
			log.Printf("[info] report written to %s", parsed.reportFile)
		}
	}

	if sum.Accounts == 0 || sum.Failed+sum.Faulted >= len(accounts) {
		os.Exit(1)
	}
}

// resolveTargets turns -markets or -select into the ordered target groups of
// this run. Direct -markets skips discovery entirely.
func resolveTargets(ctx context.Context, parsed args) ([]batchbuy.TargetGroup, error) {
	if parsed.marketsCSV != "" {
		addrs, err := ethutil.ParseAddressList(parsed.marketsCSV)
		if err != nil {
			return nil, fmt.Errorf("invalid -markets: %w", err)
		}
		if len(addrs) == 0 {
			return nil, fmt.Errorf("no market addresses in -markets")
		}
		return []batchbuy.TargetGroup{{Symbol: "direct", Markets: addrs}}, nil
	}

	symbols := splitCSV(parsed.selectCSV)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols in -select")
	}

	client, err := prophet.NewClient(parsed.apiURL)
	if err != nil {
		return nil, err
	}

	var groups []batchbuy.TargetGroup
	for _, sym := range symbols {
		sym = strings.ToUpper(sym)
		id, ok := oracleFor(parsed.oracles, sym)
		if !ok {
			return nil, fmt.Errorf("no oracle id configured for symbol %s (see -oracles)", sym)
		}

		market, err := client.HourlyMarket(ctx, id, parsed.frequency)
		if err != nil {
			return nil, fmt.Errorf("discover %s market: %w", sym, err)
		}
		log.Printf("[info] %s -> %s (%s)", sym, market.Address.Hex(), market.Title)

		groups = append(groups, batchbuy.TargetGroup{
			Symbol:   sym,
			OracleID: id,
			Markets:  []common.Address{market.Address},
		})
	}
	return groups, nil
}

func parseOracles(raw string) ([]oraclePair, error) {
	var out []oraclePair
	for _, part := range splitCSV(raw) {
		sym, idStr, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid -oracles entry %q (want SYMBOL=id)", part)
		}
		id, err := strconv.Atoi(strings.TrimSpace(idStr))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid oracle id in %q", part)
		}
		out = append(out, oraclePair{symbol: strings.ToUpper(strings.TrimSpace(sym)), id: id})
	}
	return out, nil
}

func oracleFor(oracles []oraclePair, symbol string) (int, bool) {
	for _, o := range oracles {
		if o.symbol == symbol {
			return o.id, true
		}
	}
	return 0, false
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printPlan(parsed args, accounts []ethutil.Account, proxies []string, groups []batchbuy.TargetGroup) {
	log.Printf("Limitless batch approve/buy on Base")
	log.Printf("[cfg] rpc=%s chain=%d", parsed.rpcURL, parsed.chainID)
	log.Printf("[cfg] token=%s decimals=%d", parsed.token.Hex(), parsed.tokenDecimals)
	if parsed.buy {
		log.Printf("[cfg] amount=%s outcome=%d min-tokens=%s",
			ethutil.FormatUnits(parsed.amount, parsed.tokenDecimals), parsed.outcome, parsed.minTokens)
	}
	log.Printf("[cfg] approve=%v buy=%v check-allowance=%v max-allowance=%v",
		parsed.approve, parsed.buy, parsed.checkAllowance, parsed.maxAllowance)
	log.Printf("[cfg] wait-approve=%v wait-buy=%v send-retries=%d retry-delay=%s think-time=%s",
		parsed.waitApprove, parsed.waitBuy, parsed.sendRetries, parsed.retryDelay, parsed.thinkTime)
	log.Printf("[cfg] wallets=%d proxies=%d workers=%d", len(accounts), len(proxies), parsed.workers)

	for _, g := range groups {
		if g.OracleID > 0 {
			log.Printf("[cfg] target %s (oracle=%d): %s", g.Symbol, g.OracleID, ethutil.JoinHex(g.Markets))
		} else {
			log.Printf("[cfg] target %s: %s", g.Symbol, ethutil.JoinHex(g.Markets))
		}
	}
}

func confirmRun() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Proceed with live transactions? [y/N]: ")

	input, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	}
	return false
}

func printSummary(sum batchbuy.Summary, elapsed time.Duration) {
	log.Printf("[sum] wallets=%d failed=%d faulted=%d", sum.Accounts, sum.Failed, sum.Faulted)
	log.Printf("[sum] approvals=%d buys=%d skipped=%d elapsed=%s",
		sum.TotalApproves, sum.TotalBuys, sum.TotalSkipped, elapsed.Round(time.Second))
	for _, r := range sum.Results {
		if r.Failed {
			log.Printf("[sum] %s failed before its first transaction", r.Address.Hex())
		}
	}
}

func buildReport(parsed args, sum batchbuy.Summary, accounts []ethutil.Account, proxies []string, groups []batchbuy.TargetGroup, started, finished time.Time) report.Run {
	var markets []string
	for _, g := range groups {
		for _, m := range g.Markets {
			markets = append(markets, m.Hex())
		}
	}

	investment := ""
	if parsed.amount != nil {
		investment = ethutil.FormatUnits(parsed.amount, parsed.tokenDecimals)
	}

	run := report.Run{
		StartedAt:     started.UTC(),
		FinishedAt:    finished.UTC(),
		RPC:           parsed.rpcURL,
		ChainID:       parsed.chainID,
		Token:         parsed.token.Hex(),
		Markets:       markets,
		Investment:    investment,
		OutcomeIndex:  parsed.outcome,
		Wallets:       len(accounts),
		Proxies:       len(proxies),
		TotalApproves: sum.TotalApproves,
		TotalBuys:     sum.TotalBuys,
		TotalSkipped:  sum.TotalSkipped,
		Failed:        sum.Failed,
		Faulted:       sum.Faulted,
	}
	for _, r := range sum.Results {
		run.Accounts = append(run.Accounts, report.AccountResult{
			Address:  r.Address.Hex(),
			Approves: r.ApprovesSent,
			Buys:     r.BuysSent,
			Skipped:  r.ApprovesSkipped,
			Failed:   r.Failed,
		})
	}
	return run
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
