package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentsh/guardian/internal/policy"
	"github.com/agentsh/guardian/pkg/types"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Show the active policy",
		Args:  cobra.NoArgs,
		RunE:  runPolicyShow,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print a human-readable policy summary",
		Args:  cobra.NoArgs,
		RunE:  runPolicyShow,
	})
	return cmd
}

func runPolicyShow(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	engine, err := a.openEngine()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Guardian policy summary")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Supported intents:")
	for _, in := range types.AllIntents {
		fmt.Fprintf(out, "  - %s\n", in)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Always-block rules (no token can override):")
	for _, desc := range engine.BlockRuleSummaries() {
		fmt.Fprintf(out, "  x %s\n", desc)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Risky intents (require a token or interactive confirmation):")
	for _, in := range policy.RiskyIntents() {
		fmt.Fprintf(out, "  ! %s\n", in)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Tokens are reusable until expiry and scoped to one intent.")
	fmt.Fprintf(out, "Receipt location: %s\n", a.cfg.Audit.Dir)
	return nil
}
