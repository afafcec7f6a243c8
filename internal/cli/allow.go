package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentsh/guardian/pkg/types"
)

func newAllowCmd() *cobra.Command {
	var ttlSeconds int

	cmd := &cobra.Command{
		Use:   "allow INTENT",
		Short: "Issue a short-lived allow token for an intent",
		Long: `Issue a time-boxed allow token. While the token is valid, every
command classified with the matching intent runs without an interactive
prompt. Tokens are reusable until expiry; they are never consumed.

Example:
  guardian allow file_delete --ttl 30`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			intent, err := types.ParseIntent(args[0])
			if err != nil {
				return err
			}

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			store, err := a.openTokens()
			if err != nil {
				return err
			}
			defer store.Close()

			ttl := a.cfg.DefaultTokenTTL()
			if cmd.Flags().Changed("ttl") {
				ttl = time.Duration(ttlSeconds) * time.Second
			}

			tok, err := store.Issue(cmd.Context(), intent, ttl)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Token issued")
			fmt.Fprintf(out, "  token_id   : %s\n", tok.TokenID)
			fmt.Fprintf(out, "  intent     : %s\n", tok.Intent)
			fmt.Fprintf(out, "  issued_at  : %s\n", tok.IssuedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "  expires_at : %s\n", tok.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().IntVar(&ttlSeconds, "ttl", 0, "token time-to-live in seconds (default from config)")
	return cmd
}
