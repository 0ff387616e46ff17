package ethutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

const (
	testKey1 = "0000000000000000000000000000000000000000000000000000000000000001"
	testKey2 = "0000000000000000000000000000000000000000000000000000000000000002"
)

var (
	testAddr1 = common.HexToAddress("0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf")
	testAddr2 = common.HexToAddress("0x2B5AD5c4795c026514f8317c7a215E218DcCD6cF")
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParsePrivateKey(t *testing.T) {
	t.Run("with 0x prefix", func(t *testing.T) {
		acct, err := ParsePrivateKey("0x" + testKey1)
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if acct.Address != testAddr1 {
			t.Fatalf("address = %s, want %s", acct.Address, testAddr1)
		}
	})

	t.Run("without prefix", func(t *testing.T) {
		acct, err := ParsePrivateKey(testKey2)
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if acct.Address != testAddr2 {
			t.Fatalf("address = %s, want %s", acct.Address, testAddr2)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := ParsePrivateKey("0xzz"); err == nil {
			t.Fatalf("expected err")
		}
	})

	t.Run("empty", func(t *testing.T) {
		if _, err := ParsePrivateKey("  "); err == nil {
			t.Fatalf("expected err")
		}
	})
}

func TestLoadPrivateKeys(t *testing.T) {
	t.Run("mixed prefixes and comments", func(t *testing.T) {
		path := writeTempFile(t, "keys.txt", strings.Join([]string{
			"# funding wallets",
			"",
			"0x" + testKey1 + "  # main",
			testKey2,
			"// retired key below stays commented out",
		}, "\n"))

		accts, err := LoadPrivateKeys(path)
		if err != nil {
			t.Fatalf("LoadPrivateKeys: %v", err)
		}
		if len(accts) != 2 {
			t.Fatalf("expected 2 accounts, got %d: %#v", len(accts), accts)
		}
		if accts[0].Address != testAddr1 || accts[1].Address != testAddr2 {
			t.Fatalf("unexpected order: %s, %s", accts[0].Address, accts[1].Address)
		}
	})

	t.Run("duplicates preserved", func(t *testing.T) {
		path := writeTempFile(t, "keys.txt", testKey1+"\n"+testKey1+"\n")
		accts, err := LoadPrivateKeys(path)
		if err != nil {
			t.Fatalf("LoadPrivateKeys: %v", err)
		}
		if len(accts) != 2 {
			t.Fatalf("expected duplicates preserved, got %d", len(accts))
		}
	})

	t.Run("bad line names position", func(t *testing.T) {
		path := writeTempFile(t, "keys.txt", testKey1+"\nnot-a-key\n")
		_, err := LoadPrivateKeys(path)
		if err == nil {
			t.Fatalf("expected err")
		}
		if !strings.Contains(err.Error(), ":2:") {
			t.Fatalf("error should name line 2: %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadPrivateKeys(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
			t.Fatalf("expected err")
		}
	})
}
