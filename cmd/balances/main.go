package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ldf8476235/limitless/internal/baseutil"
	"github.com/ldf8476235/limitless/internal/chainrpc"
	"github.com/ldf8476235/limitless/internal/dotenv"
	"github.com/ldf8476235/limitless/internal/ethutil"
)

const readTimeout = 12 * time.Second

func main() {
	log.SetFlags(0)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	var rpcFlag string
	var keysFlag string
	var tokenFlag string
	var decimalsFlag int
	var minFlag string

	flag.StringVar(&rpcFlag, "rpc", "", "Chain RPC endpoint (default https://mainnet.base.org)")
	flag.StringVar(&keysFlag, "keys", "", "Private keys file, one hex key per line (default private_keys.txt)")
	flag.StringVar(&tokenFlag, "token", "", "ERC20 token to read (default Base USDC)")
	flag.IntVar(&decimalsFlag, "token-decimals", baseutil.USDCTokenDecimals, "Decimals of the token")
	flag.StringVar(&minFlag, "min", "", "Mark wallets whose balance is below this amount, e.g. 2.5")
	flag.Parse()

	rpcURL := strings.TrimSpace(firstNonEmpty(rpcFlag, os.Getenv("LIMITLESS_RPC_URL"), "https://mainnet.base.org"))
	keysFile := strings.TrimSpace(firstNonEmpty(keysFlag, os.Getenv("LIMITLESS_KEYS_FILE"), "private_keys.txt"))

	tokenHex := strings.TrimSpace(firstNonEmpty(tokenFlag, os.Getenv("LIMITLESS_TOKEN"), baseutil.USDCTokenAddress.Hex()))
	if !common.IsHexAddress(tokenHex) {
		log.Fatalf("[fatal] invalid token address %q", tokenHex)
	}
	token := common.HexToAddress(tokenHex)

	var minimum *big.Int
	if strings.TrimSpace(minFlag) != "" {
		parsed, err := ethutil.ToSmallestUnit(minFlag, decimalsFlag)
		if err != nil {
			log.Fatalf("[fatal] invalid -min: %v", err)
		}
		minimum = parsed
	}

	accounts, err := ethutil.LoadPrivateKeys(keysFile)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	if len(accounts) == 0 {
		log.Fatalf("[fatal] no usable keys in %s", keysFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chainrpc.Dial(ctx, rpcURL, "")
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	defer client.Close()

	total := new(big.Int)
	low := 0
	readErrs := 0
	for i, acct := range accounts {
		readCtx, cancel := context.WithTimeout(ctx, readTimeout)
		balance, err := baseutil.BalanceOf(readCtx, client, token, acct.Address)
		cancel()
		if err != nil {
			readErrs++
			log.Printf("[warn] %s: %v", acct.Address.Hex(), err)
			continue
		}
		total.Add(total, balance)

		mark := ""
		if minimum != nil && balance.Cmp(minimum) < 0 {
			low++
			mark = "  LOW"
		}
		fmt.Printf("%3d  %s  %s%s\n", i+1, acct.Address.Hex(), ethutil.FormatUnits(balance, decimalsFlag), mark)
	}

	fmt.Printf("total: %s across %d wallets\n", ethutil.FormatUnits(total, decimalsFlag), len(accounts))
	if minimum != nil {
		fmt.Printf("below %s: %d\n", ethutil.FormatUnits(minimum, decimalsFlag), low)
	}
	if readErrs > 0 {
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
