package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ldf8476235/limitless/internal/chainrpc"
	"github.com/ldf8476235/limitless/internal/dotenv"
	"github.com/ldf8476235/limitless/internal/ethutil"
)

type probeResult struct {
	proxy   string
	elapsed time.Duration
	err     error
}

func main() {
	log.SetFlags(0)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	var rpcFlag string
	var proxiesFlag string
	var timeoutFlag time.Duration
	var concurrencyFlag int

	flag.StringVar(&rpcFlag, "rpc", "", "Chain RPC endpoint to probe through each proxy (default https://mainnet.base.org)")
	flag.StringVar(&proxiesFlag, "proxies", "", "Proxy URLs file, one per line (default proxies.txt)")
	flag.DurationVar(&timeoutFlag, "timeout", 15*time.Second, "Per-proxy probe timeout")
	flag.IntVar(&concurrencyFlag, "concurrency", 8, "Probes in flight at once")
	flag.Parse()

	rpcURL := strings.TrimSpace(firstNonEmpty(rpcFlag, os.Getenv("LIMITLESS_RPC_URL"), "https://mainnet.base.org"))
	proxyFile := strings.TrimSpace(firstNonEmpty(proxiesFlag, os.Getenv("LIMITLESS_PROXIES_FILE"), "proxies.txt"))

	if timeoutFlag <= 0 {
		log.Fatalf("[fatal] timeout must be > 0")
	}
	if concurrencyFlag <= 0 {
		log.Fatalf("[fatal] concurrency must be > 0")
	}

	proxies, err := ethutil.LoadProxies(proxyFile)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	if len(proxies) == 0 {
		log.Fatalf("[fatal] no proxies in %s", proxyFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("[info] probing %d proxies against %s", len(proxies), rpcURL)

	results := make([]probeResult, len(proxies))
	sem := make(chan struct{}, concurrencyFlag)
	var wg sync.WaitGroup

	for i, proxy := range proxies {
		wg.Add(1)
		go func(i int, proxy string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			probeCtx, cancel := context.WithTimeout(ctx, timeoutFlag)
			defer cancel()

			started := time.Now()
			client, err := chainrpc.Dial(probeCtx, rpcURL, proxy)
			elapsed := time.Since(started)
			if err == nil {
				client.Close()
			}
			results[i] = probeResult{proxy: proxy, elapsed: elapsed, err: err}
		}(i, proxy)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		label := chainrpc.ProxyLabel(r.proxy)
		if r.err != nil {
			failed++
			fmt.Printf("FAIL  %-48s  %v\n", label, r.err)
			continue
		}
		fmt.Printf("OK    %-48s  %s\n", label, r.elapsed.Round(time.Millisecond))
	}

	fmt.Printf("%d/%d proxies reachable\n", len(proxies)-failed, len(proxies))
	if failed > 0 {
		os.Exit(1)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
