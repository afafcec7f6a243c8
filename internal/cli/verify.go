package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the audit receipt chain",
		Long: `Replay the entire receipt history, recomputing every hash and
checking each record's link to its predecessor, across day boundaries.
An empty log verifies clean.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			log, err := a.openAudit()
			if err != nil {
				return err
			}

			res, err := log.Verify()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.OK {
				fmt.Fprintf(out, "VERIFIED  (%d records)\n", res.RecordCount)
				return nil
			}

			errOut := cmd.ErrOrStderr()
			fmt.Fprintf(errOut, "FAILED  at record index %d\n", res.FirstBreak)
			if res.BrokenTS != "" {
				fmt.Fprintf(errOut, "  Timestamp: %s\n", res.BrokenTS)
			}
			fmt.Fprintf(errOut, "  Reason: %s\n", res.Reason)
			return NewExitError(1, "")
		},
	}
}
