package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/agentsh/guardian/pkg/types"
	"github.com/stretchr/testify/require"
)

func newLog(t *testing.T) *Log {
	t.Helper()
	l, err := New(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return l
}

func appendN(t *testing.T, l *Log, n int) []types.Receipt {
	t.Helper()
	out := make([]types.Receipt, 0, n)
	for i := 0; i < n; i++ {
		decision := types.DecisionAllowed
		if i%2 == 1 {
			decision = types.DecisionDenied
		}
		rec, err := l.Append(context.Background(), Entry{
			Intent:   types.IntentShellRun,
			Command:  "echo hello",
			Decision: decision,
			Reason:   "test",
		})
		require.NoError(t, err)
		out = append(out, rec)
	}
	return out
}

func TestVerifyEmptyLog(t *testing.T) {
	l := newLog(t)
	res, err := l.Verify()
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Equal(t, 0, res.RecordCount)
	require.Equal(t, -1, res.FirstBreak)
}

func TestAppendLinksChain(t *testing.T) {
	l := newLog(t)
	recs := appendN(t, l, 3)

	require.Equal(t, GenesisHash, recs[0].PrevHash)
	require.Equal(t, recs[0].Hash, recs[1].PrevHash)
	require.Equal(t, recs[1].Hash, recs[2].PrevHash)

	for _, r := range recs {
		h, err := ComputeHash(r)
		require.NoError(t, err)
		require.Equal(t, r.Hash, h)
	}

	res, err := l.Verify()
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Equal(t, 3, res.RecordCount)
}

func TestAppendRecordsDenials(t *testing.T) {
	l := newLog(t)
	rec, err := l.Append(context.Background(), Entry{
		Intent:   types.IntentFileDelete,
		Command:  "rm -rf /",
		Decision: types.DecisionDenied,
		Reason:   "BLOCKED: Destructive root deletion (rm -rf /)",
	})
	require.NoError(t, err)
	require.Equal(t, types.DecisionDenied, rec.Decision)
	require.Nil(t, rec.TokenID)

	tail, err := l.Tail(1)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	require.Equal(t, rec.Hash, tail[0].Hash)
}

func TestTokenFieldsRoundTrip(t *testing.T) {
	l := newLog(t)
	id := "tok-123"
	exp := time.Now().UTC().Format(time.RFC3339Nano)
	rec, err := l.Append(context.Background(), Entry{
		Intent:    types.IntentFileDelete,
		Command:   "rm -rf ./temp",
		Decision:  types.DecisionAllowed,
		Reason:    "token-authorized",
		TokenID:   &id,
		ExpiresAt: &exp,
	})
	require.NoError(t, err)

	tail, err := l.Tail(1)
	require.NoError(t, err)
	require.NotNil(t, tail[0].TokenID)
	require.Equal(t, id, *tail[0].TokenID)
	require.Equal(t, rec.Hash, tail[0].Hash)

	res, err := l.Verify()
	require.NoError(t, err)
	require.True(t, res.OK)
}

func TestVerifyDetectsTamperedField(t *testing.T) {
	l := newLog(t)
	appendN(t, l, 5)

	files, err := l.partitions()
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 5)

	// Rewrite record 2's command field.
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &rec))
	rec["command"] = "echo hellp"
	mutated, err := json.Marshal(rec)
	require.NoError(t, err)
	lines[2] = string(mutated)
	require.NoError(t, os.WriteFile(files[0], []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	res, err := l.Verify()
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Equal(t, 2, res.FirstBreak)
	require.Contains(t, res.Reason, "hash mismatch")
}

func TestVerifyDetectsRemovedRecord(t *testing.T) {
	l := newLog(t)
	appendN(t, l, 4)

	files, err := l.partitions()
	require.NoError(t, err)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")

	// Drop record 1; record 2's prev_hash no longer matches.
	lines = append(lines[:1], lines[2:]...)
	require.NoError(t, os.WriteFile(files[0], []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	res, err := l.Verify()
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Equal(t, 1, res.FirstBreak)
	require.Contains(t, res.Reason, "prev_hash mismatch")
}

func TestChainSpansDayPartitions(t *testing.T) {
	l := newLog(t)

	day1 := time.Date(2026, 8, 22, 23, 50, 0, 0, time.UTC)
	day2 := day1.Add(time.Hour) // crosses midnight into 2026-08-23

	l.now = func() time.Time { return day1 }
	first, err := l.Append(context.Background(), Entry{
		Intent: types.IntentShellRun, Command: "ls", Decision: types.DecisionAllowed, Reason: "ok",
	})
	require.NoError(t, err)

	l.now = func() time.Time { return day2 }
	second, err := l.Append(context.Background(), Entry{
		Intent: types.IntentShellRun, Command: "ls", Decision: types.DecisionAllowed, Reason: "ok",
	})
	require.NoError(t, err)

	files, err := l.partitions()
	require.NoError(t, err)
	require.Len(t, files, 2, "expected two day partitions")

	// Day 2's first record links to day 1's last hash, not genesis.
	require.Equal(t, first.Hash, second.PrevHash)

	res, err := l.Verify()
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Equal(t, 2, res.RecordCount)
}

func TestTailNewestFirst(t *testing.T) {
	l := newLog(t)
	recs := appendN(t, l, 5)

	tail, err := l.Tail(3)
	require.NoError(t, err)
	require.Len(t, tail, 3)
	require.Equal(t, recs[4].Hash, tail[0].Hash)
	require.Equal(t, recs[3].Hash, tail[1].Hash)
	require.Equal(t, recs[2].Hash, tail[2].Hash)

	// Asking for more than exists returns everything.
	all, err := l.Tail(100)
	require.NoError(t, err)
	require.Len(t, all, 5)
}
