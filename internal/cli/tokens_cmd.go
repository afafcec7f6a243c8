package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Inspect and clean up allow tokens",
	}
	cmd.AddCommand(newTokensListCmd())
	cmd.AddCommand(newTokensPruneCmd())
	return cmd
}

func newTokensListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored tokens, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			store, err := a.openTokens()
			if err != nil {
				return err
			}
			defer store.Close()

			toks, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(toks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tokens stored.")
				return nil
			}

			now := time.Now()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TOKEN_ID\tINTENT\tEXPIRES_AT\tSTATUS")
			for _, tok := range toks {
				status := "valid"
				if !tok.ValidAt(now) {
					status = "expired"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					tok.TokenID, tok.Intent, tok.ExpiresAt.Format(time.RFC3339), status)
			}
			return w.Flush()
		},
	}
}

func newTokensPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			store, err := a.openTokens()
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Prune(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d expired token(s).\n", n)
			return nil
		},
	}
}
