package prophet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const DefaultURL = "https://api.limitless.exchange"

// DefaultUserAgent mimics a browser UA to avoid Cloudflare 403s.
const DefaultUserAgent = "Mozilla/5.0"

// DefaultFrequency selects the hourly prophet markets, the only cadence the
// batch tool trades.
const DefaultFrequency = "hourly"

const defaultAttempts = 3

type Client struct {
	host       string
	httpClient *http.Client
	userAgent  string
	attempts   int
	retryWait  time.Duration
}

func NewClient(host string) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultURL
	}
	host = strings.TrimRight(host, "/")

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("prophet url parse %q: %w", host, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("prophet url must be http(s), got %q", host)
	}

	return &Client{
		host: host,
		httpClient: &http.Client{
			Timeout: 3 * time.Second,
		},
		userAgent: DefaultUserAgent,
		attempts:  defaultAttempts,
		retryWait: time.Second,
	}, nil
}

// Market is a resolved prophet market for one price oracle.
type Market struct {
	OracleID  int
	Frequency string
	Address   common.Address
	Title     string
}

type prophetEnvelope struct {
	Market prophetMarket `json:"market"`
}

type prophetMarket struct {
	Address string `json:"address"`
	Title   string `json:"title"`
}

// HourlyMarket resolves the current market contract for a price oracle id at
// the given frequency ("" means hourly). The endpoint is flaky under load, so
// the lookup makes up to three attempts with a linearly growing wait between
// them; the last error wins.
func (c *Client) HourlyMarket(ctx context.Context, oracleID int, frequency string) (Market, error) {
	if c == nil {
		return Market{}, fmt.Errorf("prophet client nil")
	}
	if oracleID <= 0 {
		return Market{}, fmt.Errorf("price oracle id required")
	}
	frequency = strings.TrimSpace(frequency)
	if frequency == "" {
		frequency = DefaultFrequency
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		m, err := c.fetchMarket(ctx, oracleID, frequency)
		if err == nil {
			return m, nil
		}
		lastErr = err

		if attempt < c.attempts {
			select {
			case <-ctx.Done():
				return Market{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.retryWait):
			}
		}
	}
	return Market{}, fmt.Errorf("prophet market id=%d: %w", oracleID, lastErr)
}

func (c *Client) fetchMarket(ctx context.Context, oracleID int, frequency string) (Market, error) {
	q := url.Values{}
	q.Set("priceOracleId", strconv.Itoa(oracleID))
	q.Set("frequency", frequency)
	endpoint := c.host + "/markets/prophet?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Market{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Market{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyLimit(resp.Body, 8<<10)
		return Market{}, fmt.Errorf("prophet %s: status=%d body=%q", endpoint, resp.StatusCode, body)
	}

	var env prophetEnvelope
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&env); err != nil {
		return Market{}, fmt.Errorf("prophet decode: %w", err)
	}

	addr := strings.TrimSpace(env.Market.Address)
	if !common.IsHexAddress(addr) {
		return Market{}, fmt.Errorf("prophet: market address %q for id=%d is not a hex address", addr, oracleID)
	}

	return Market{
		OracleID:  oracleID,
		Frequency: frequency,
		Address:   common.HexToAddress(addr),
		Title:     strings.TrimSpace(env.Market.Title),
	}, nil
}

func readBodyLimit(r io.Reader, max int64) string {
	if r == nil || max <= 0 {
		return ""
	}
	lr := &io.LimitedReader{R: r, N: max}
	b, _ := io.ReadAll(lr)
	return strings.TrimSpace(string(b))
}
