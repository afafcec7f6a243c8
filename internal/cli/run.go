package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentsh/guardian/internal/runner"
	"github.com/agentsh/guardian/pkg/types"
)

func newRunCmd() *cobra.Command {
	var nonInteractive bool

	cmd := &cobra.Command{
		Use:   "run [flags] -- COMMAND [ARGS...]",
		Short: "Run a command through enforcement",
		Long: `Run a command through the full enforcement pipeline: intent
classification, policy evaluation, token or interactive authorization,
and the final safety scan. Every attempt, allowed or denied, appends
one receipt to the audit chain.

Examples:
  guardian run -- echo hello
  guardian run -- rm -rf ./build
  guardian run --non-interactive -- kill -9 4242`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("command required after --\n\nUsage: guardian run [flags] -- COMMAND [ARGS...]")
			}
			raw := strings.Join(args, " ")

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			engine, err := a.openEngine()
			if err != nil {
				return err
			}
			store, err := a.openTokens()
			if err != nil {
				return err
			}
			defer store.Close()
			log, err := a.openAudit()
			if err != nil {
				return err
			}
			timeout, err := a.cfg.ExecTimeout()
			if err != nil {
				return err
			}

			var confirm runner.ConfirmFunc
			if !nonInteractive && stdinIsTerminal() {
				confirm = interactiveConfirm(cmd.InOrStdin(), cmd.ErrOrStderr())
			}

			r, err := runner.New(runner.Options{
				Engine:  engine,
				Tokens:  store,
				Log:     log,
				Confirm: confirm,
				Logger:  a.logger,
				Timeout: timeout,
			})
			if err != nil {
				return err
			}

			res, err := r.Execute(cmd.Context(), raw)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()
			switch res.Outcome {
			case types.OutcomeDenied:
				fmt.Fprintf(errOut, "DENIED  intent=%s\n", res.Intent)
				fmt.Fprintf(errOut, "  Reason: %s\n", res.Reason)
				if res.Suggestion != "" {
					fmt.Fprintf(errOut, "  Suggestion: %s\n", res.Suggestion)
				}
				fmt.Fprintf(errOut, "  Receipt: %s\n", shortHash(res.Receipt.Hash))
				return NewExitError(1, "")
			default:
				fmt.Fprintf(errOut, "ALLOWED  intent=%s\n", res.Intent)
				if res.Output != "" {
					fmt.Fprint(out, res.Output)
				}
				if res.ExitCode != 0 {
					return NewExitError(res.ExitCode, "")
				}
				return nil
			}
		},
	}

	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "never prompt; deny risky commands without a valid token")
	return cmd
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16] + "…"
	}
	return h
}
