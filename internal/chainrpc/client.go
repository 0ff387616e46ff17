package chainrpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// DefaultTimeout bounds every HTTP round-trip made through clients built
// here, the liveness probe included.
const DefaultTimeout = 30 * time.Second

// ErrUnreachable marks a dial or probe failure against the RPC endpoint.
// Callers branch on it to tell "this account's egress is dead" apart from
// in-flight errors.
var ErrUnreachable = errors.New("rpc endpoint unreachable")

// Dial connects to the chain RPC endpoint, optionally egressing through
// proxyURL, and verifies liveness with a single chain-id probe. No retry:
// the caller decides how to react to a dead endpoint or proxy.
func Dial(ctx context.Context, endpoint, proxyURL string) (*ethclient.Client, error) {
	httpClient, err := newHTTPClient(proxyURL)
	if err != nil {
		return nil, err
	}

	rc, err := rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s via %s: %v", ErrUnreachable, endpoint, ProxyLabel(proxyURL), err)
	}
	client := ethclient.NewClient(rc)

	probeCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()
	if _, err := client.ChainID(probeCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: probe %s via %s: %v", ErrUnreachable, endpoint, ProxyLabel(proxyURL), err)
	}

	return client, nil
}

// ProxyLabel renders a proxy URL for log lines: "direct" when unset, and
// never with credentials.
func ProxyLabel(proxyURL string) string {
	if proxyURL == "" {
		return "direct"
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return proxyURL
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return u.Redacted()
}

func newHTTPClient(proxyURL string) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 128
	transport.MaxIdleConnsPerHost = 64
	transport.IdleConnTimeout = 30 * time.Second

	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url %q: %w", proxyURL, err)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   DefaultTimeout,
	}, nil
}
