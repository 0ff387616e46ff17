package ethutil

import (
	"bufio"
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Account is a private key and its derived address. Each account is owned by
// exactly one worker for the duration of a run; nothing is persisted.
type Account struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// ParsePrivateKey accepts a hex-encoded secp256k1 key with or without the
// 0x prefix and derives its address.
func ParsePrivateKey(s string) (Account, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return Account{}, fmt.Errorf("empty private key")
	}

	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return Account{}, fmt.Errorf("parse private key: %w", err)
	}
	return Account{Key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// LoadPrivateKeys reads one key per line from path. Blank lines and lines
// starting with # or // are skipped; trailing #-comments on a key line are
// stripped. Order and multiplicity are preserved: the caller decides what a
// duplicate key means. A missing file is an error (keys are mandatory input).
func LoadPrivateKeys(path string) ([]Account, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keys file: %w", err)
	}
	defer f.Close()

	var out []Account
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := stripLineComment(sc.Text())
		if line == "" {
			continue
		}

		acct, err := ParsePrivateKey(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		out = append(out, acct)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan keys file: %w", err)
	}

	return out, nil
}

func stripLineComment(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
		return ""
	}

	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}

	if idx := strings.Index(line, "//"); idx >= 0 {
		// Treat // as a comment delimiter only if it starts the line or is
		// preceded by whitespace, so proxy URLs keep their scheme intact.
		if idx == 0 || line[idx-1] == ' ' || line[idx-1] == '\t' {
			line = strings.TrimSpace(line[:idx])
		}
	}

	return strings.TrimSpace(line)
}
