package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/agentsh/guardian/internal/runner"
	"github.com/agentsh/guardian/pkg/types"
)

// stdinIsTerminal reports whether an interactive prompt is even possible.
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// interactiveConfirm prompts for the literal answer ALLOW. Anything else,
// including a closed input stream, denies — the prompt can refuse but
// never escalate.
func interactiveConfirm(in io.Reader, out io.Writer) runner.ConfirmFunc {
	return func(intent types.Intent, command string) bool {
		fmt.Fprintf(out, "\n!  This is risky (intent=%s).\n", intent)
		fmt.Fprintf(out, "   Command: %s\n", command)
		fmt.Fprint(out, "   Type ALLOW to proceed: ")

		sc := bufio.NewScanner(in)
		if !sc.Scan() {
			fmt.Fprintln(out)
			return false
		}
		return strings.TrimSpace(sc.Text()) == "ALLOW"
	}
}
