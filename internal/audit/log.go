// Package audit persists execution receipts as an append-only,
// hash-chained log, partitioned into one JSON Lines file per UTC day.
// The chain spans partitions: each day's first record links to the
// previous day's last hash, so the whole history verifies as one
// sequence. Nothing in this package can rewrite or delete a record.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/agentsh/guardian/pkg/types"
)

const partitionExt = ".jsonl"

// Log owns the append cursor for the receipt chain. Construct one per
// audit directory; there is no exported mutation besides Append.
type Log struct {
	dir    string
	logger *slog.Logger

	// now is swappable in tests to exercise day rollover.
	now func() time.Time
}

// New opens (creating if needed) the audit log rooted at dir.
func New(dir string, logger *slog.Logger) (*Log, error) {
	if dir == "" {
		return nil, fmt.Errorf("audit dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir audit dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{dir: dir, logger: logger, now: time.Now}, nil
}

// Dir returns the audit directory path.
func (l *Log) Dir() string { return l.dir }

// Entry holds the caller-supplied receipt fields; timestamps and chain
// fields are filled in by Append.
type Entry struct {
	Intent    types.Intent
	Command   string
	Decision  types.Decision
	Reason    string
	TokenID   *string
	ExpiresAt *string
}

// Append writes one receipt to the current day partition, linked to the
// chain head, and flushes it durably before returning. Every decision
// outcome gets a receipt; callers must treat an error here as a failure
// of the whole operation, not something to log and move on from.
func (l *Log) Append(ctx context.Context, e Entry) (types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return types.Receipt{}, err
	}

	prev, err := l.head()
	if err != nil {
		return types.Receipt{}, fmt.Errorf("load chain head: %w", err)
	}

	rec := types.Receipt{
		TS:        l.now().UTC().Format(time.RFC3339Nano),
		Intent:    e.Intent,
		Command:   e.Command,
		Decision:  e.Decision,
		Reason:    e.Reason,
		TokenID:   e.TokenID,
		ExpiresAt: e.ExpiresAt,
		PrevHash:  prev,
	}
	rec.Hash, err = ComputeHash(rec)
	if err != nil {
		return types.Receipt{}, err
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return types.Receipt{}, fmt.Errorf("marshal receipt: %w", err)
	}

	path := l.partitionPath(l.now())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return types.Receipt{}, fmt.Errorf("open partition: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return types.Receipt{}, fmt.Errorf("append receipt: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return types.Receipt{}, fmt.Errorf("sync partition: %w", err)
	}
	if err := f.Close(); err != nil {
		return types.Receipt{}, fmt.Errorf("close partition: %w", err)
	}

	l.logger.Debug("receipt appended",
		"decision", string(rec.Decision),
		"intent", string(rec.Intent),
		"hash", rec.Hash[:16])
	return rec, nil
}

// Tail returns up to n receipts, newest first, reading partitions from
// the most recent backwards.
func (l *Log) Tail(n int) ([]types.Receipt, error) {
	if n <= 0 {
		return nil, nil
	}
	files, err := l.partitions()
	if err != nil {
		return nil, err
	}

	var collected []types.Receipt
	for i := len(files) - 1; i >= 0 && len(collected) < n; i-- {
		recs, err := readPartition(files[i])
		if err != nil {
			return nil, err
		}
		for j := len(recs) - 1; j >= 0 && len(collected) < n; j-- {
			collected = append(collected, recs[j])
		}
	}
	return collected, nil
}

// head returns the hash of the most recent receipt across all
// partitions, or GenesisHash for an empty log.
func (l *Log) head() (string, error) {
	files, err := l.partitions()
	if err != nil {
		return "", err
	}
	for i := len(files) - 1; i >= 0; i-- {
		recs, err := readPartition(files[i])
		if err != nil {
			return "", err
		}
		if len(recs) > 0 {
			return recs[len(recs)-1].Hash, nil
		}
	}
	return GenesisHash, nil
}

func (l *Log) partitionPath(t time.Time) string {
	return filepath.Join(l.dir, t.UTC().Format("2006-01-02")+partitionExt)
}

// partitions lists day files sorted by name; dates sort chronologically.
func (l *Log) partitions() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read audit dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), partitionExt) {
			continue
		}
		files = append(files, filepath.Join(l.dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func readPartition(path string) ([]types.Receipt, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open partition: %w", err)
	}
	defer f.Close()

	var out []types.Receipt
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec types.Receipt
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("parse receipt in %s: %w", filepath.Base(path), err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan partition: %w", err)
	}
	return out, nil
}

// readPartitionRaw parses records as stored, preserving every field for
// hash recomputation during verification.
func readPartitionRaw(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open partition: %w", err)
	}
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			return nil, fmt.Errorf("parse record in %s: %w", filepath.Base(path), err)
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan partition: %w", err)
	}
	return out, nil
}
