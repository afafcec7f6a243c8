package audit

import (
	"fmt"
)

// VerifyResult reports the outcome of a full chain walk.
type VerifyResult struct {
	OK          bool
	RecordCount int
	// FirstBreak is the global index of the first record that fails
	// verification, -1 when the chain is intact.
	FirstBreak int
	// BrokenTS is the stored timestamp of the offending record, if any.
	BrokenTS string
	Reason   string
}

// Verify replays every partition in chronological order as one logical
// sequence, recomputing each record's hash and checking prev_hash
// linkage (including across day boundaries). It stops at the first
// mismatch rather than reporting past corruption. An empty log verifies
// clean with zero records.
func (l *Log) Verify() (VerifyResult, error) {
	files, err := l.partitions()
	if err != nil {
		return VerifyResult{}, err
	}

	prev := GenesisHash
	index := 0
	for _, path := range files {
		records, err := readPartitionRaw(path)
		if err != nil {
			return VerifyResult{}, err
		}
		for _, rec := range records {
			storedPrev, _ := rec["prev_hash"].(string)
			if storedPrev != prev {
				return broken(index, rec, fmt.Sprintf(
					"prev_hash mismatch at record %d: expected %s…, got %s…",
					index, short(prev), short(storedPrev))), nil
			}

			recomputed, err := hashCanonical(rec)
			if err != nil {
				return VerifyResult{}, err
			}
			storedHash, _ := rec["hash"].(string)
			if storedHash != recomputed {
				return broken(index, rec, fmt.Sprintf(
					"hash mismatch at record %d: expected %s…, got %s…",
					index, short(recomputed), short(storedHash))), nil
			}

			prev = storedHash
			index++
		}
	}

	return VerifyResult{OK: true, RecordCount: index, FirstBreak: -1}, nil
}

func broken(index int, rec map[string]any, reason string) VerifyResult {
	ts, _ := rec["ts"].(string)
	return VerifyResult{
		OK:          false,
		RecordCount: index,
		FirstBreak:  index,
		BrokenTS:    ts,
		Reason:      reason,
	}
}

func short(h string) string {
	if h == "" {
		return "MISSING"
	}
	if len(h) > 16 {
		return h[:16]
	}
	return h
}
