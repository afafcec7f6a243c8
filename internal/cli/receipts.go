package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/agentsh/guardian/internal/audit"
	"github.com/agentsh/guardian/pkg/types"
)

func newReceiptsCmd() *cobra.Command {
	var n int
	var follow bool

	cmd := &cobra.Command{
		Use:   "receipts",
		Short: "Show recent audit receipts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			log, err := a.openAudit()
			if err != nil {
				return err
			}

			recs, err := log.Tail(n)
			if err != nil {
				return err
			}
			printReceipts(cmd.OutOrStdout(), recs)

			if follow {
				return followReceipts(cmd.Context(), log, cmd.OutOrStdout(), recs)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&n, "n", "n", 20, "number of receipts to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep watching the audit directory and print new receipts")
	return cmd
}

func printReceipts(out io.Writer, recs []types.Receipt) {
	if len(recs) == 0 {
		fmt.Fprintln(out, "No receipts found.")
		return
	}
	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TS\tINTENT\tDECISION\tREASON\tHASH")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			clip(r.TS, 19), r.Intent, r.Decision, clip(r.Reason, 50), shortHash(r.Hash))
	}
	_ = w.Flush()
}

// followReceipts blocks, printing each receipt as it lands, until the
// context is cancelled.
func followReceipts(ctx context.Context, log *audit.Log, out io.Writer, seen []types.Receipt) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(log.Dir()); err != nil {
		return fmt.Errorf("watch audit dir: %w", err)
	}

	lastHash := ""
	if len(seen) > 0 {
		lastHash = seen[0].Hash
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			lastHash, err = printSince(log, out, lastHash)
			if err != nil {
				return err
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch audit dir: %w", werr)
		}
	}
}

// printSince prints receipts newer than lastHash in chronological order
// and returns the new head hash.
func printSince(log *audit.Log, out io.Writer, lastHash string) (string, error) {
	recs, err := log.Tail(200)
	if err != nil {
		return lastHash, err
	}
	var fresh []types.Receipt
	for _, r := range recs { // newest first
		if r.Hash == lastHash {
			break
		}
		fresh = append(fresh, r)
	}
	for i := len(fresh) - 1; i >= 0; i-- {
		r := fresh[i]
		fmt.Fprintf(out, "%s  %s  %s  %s  %s\n",
			clip(r.TS, 19), r.Intent, r.Decision, clip(r.Reason, 50), shortHash(r.Hash))
	}
	if len(recs) > 0 {
		return recs[0].Hash, nil
	}
	return lastHash, nil
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
