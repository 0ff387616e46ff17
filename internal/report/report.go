package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Run is the final artifact of one batch invocation: the effective
// parameters, every account's result, and the totals. It is written once at
// the end of a run and never read back.
type Run struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	RPC          string   `json:"rpc"`
	ChainID      int64    `json:"chain_id"`
	Token        string   `json:"token"`
	Markets      []string `json:"markets"`
	Investment   string   `json:"investment"`
	OutcomeIndex int      `json:"outcome_index"`

	Wallets int `json:"wallets"`
	Proxies int `json:"proxies"`

	TotalApproves int `json:"total_approves"`
	TotalBuys     int `json:"total_buys"`
	TotalSkipped  int `json:"total_skipped"`
	Failed        int `json:"failed"`
	Faulted       int `json:"faulted"`

	Accounts []AccountResult `json:"accounts"`
}

// AccountResult is one wallet's slice of the run.
type AccountResult struct {
	Address  string `json:"address"`
	Approves int    `json:"approves"`
	Buys     int    `json:"buys"`
	Skipped  int    `json:"skipped"`
	Failed   bool   `json:"failed,omitempty"`
}

// Write renders the run report as indented JSON and lands it atomically via
// a tmp file and rename, so a crash mid-write never leaves a torn report.
// Empty path is a no-op (reporting disabled).
func Write(path string, run Run) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	b, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	b = append(b, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
