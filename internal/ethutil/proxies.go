package ethutil

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// LoadProxies reads one proxy URL per line from path, with the same line
// discipline as LoadPrivateKeys. Entries without a scheme default to http://.
// A missing file yields an empty list: proxies are optional and their absence
// means every account dials the RPC endpoint directly.
func LoadProxies(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open proxies file: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := stripLineComment(sc.Text())
		if line == "" {
			continue
		}

		norm, err := NormalizeProxyURL(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		out = append(out, norm)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan proxies file: %w", err)
	}

	return out, nil
}

// NormalizeProxyURL validates a proxy entry and returns it in canonical
// scheme://[user:pass@]host:port form.
func NormalizeProxyURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty proxy entry")
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse proxy url %q: %w", s, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("proxy url %q has no host", s)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return "", fmt.Errorf("proxy url %q: unsupported scheme %q", s, u.Scheme)
	}

	return u.String(), nil
}
