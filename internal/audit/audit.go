package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Stages an event can belong to, one per step of the per-account pipeline.
const (
	StageConnect   = "connect"
	StageNonce     = "nonce"
	StageBalance   = "balance"
	StageAllowance = "allowance"
	StageApprove   = "approve"
	StageBuy       = "buy"
	StageResult    = "result"
)

// Event is one audit record: which account did what at which step, against
// which market, and how it went. Written as a single JSONL line.
type Event struct {
	Time    time.Time `json:"time"`
	Account string    `json:"account"`
	Stage   string    `json:"stage"`
	Market  string    `json:"market,omitempty"`
	TxHash  string    `json:"tx_hash,omitempty"`
	Nonce   *uint64   `json:"nonce,omitempty"`
	Note    string    `json:"note,omitempty"`
	Err     string    `json:"err,omitempty"`
}

// Nonce boxes a nonce for Event.Nonce.
func Nonce(v uint64) *uint64 {
	return &v
}

// Log appends audit events to a JSONL file. Safe for concurrent use by all
// workers of a run. A nil *Log discards everything, so callers don't have to
// branch on whether auditing is enabled.
type Log struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *bufio.Writer
}

// Open returns a Log appending to path, or nil when path is empty/blank
// (auditing disabled). The file is created lazily on the first record.
func Open(path string) *Log {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return &Log{path: path}
}

func (l *Log) ensureOpenLocked() error {
	if l.file != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	l.file = f
	l.w = bufio.NewWriterSize(f, 256*1024)
	return nil
}

// Record appends one event, stamping Time if the caller left it zero.
// Each record is flushed so a tail -f during a run sees steps live.
func (l *Log) Record(ev Event) error {
	if l == nil {
		return nil
	}
	if ev.Stage == "" {
		return fmt.Errorf("audit: event stage required")
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureOpenLocked(); err != nil {
		return err
	}

	if _, err := l.w.Write(b); err != nil {
		return err
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return err
	}
	return l.w.Flush()
}

// Close flushes buffered records and closes the file.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	if l.w != nil {
		if err := l.w.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if l.file != nil {
		if err := l.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.w = nil
	l.file = nil

	if firstErr != nil && errors.Is(firstErr, os.ErrClosed) {
		return nil
	}
	return firstErr
}
