// Package classifier maps raw command text to an intent. Classification
// is deterministic and total: every input yields exactly one intent.
package classifier

import (
	"regexp"
	"strings"

	"github.com/agentsh/guardian/pkg/types"
)

// rule binds one compiled pattern to the intent it indicates.
type rule struct {
	intent  types.Intent
	pattern *regexp.Regexp
}

// rules is evaluated top to bottom, first match wins. The order is part
// of the classification contract: the most dangerous and most specific
// intents come first so that, e.g., "curl … | bash" lands in network_exec
// even though it also looks like a plain download. Do not reorder.
var rules = []rule{
	// disk_format before anything generic
	{types.IntentDiskFormat, regexp.MustCompile(`(?i)(^|\||;|&&)\s*(mkfs|format\s+\w+:|diskpart|dd\s+)`)},
	{types.IntentDiskFormat, regexp.MustCompile(`(?i)\bdd\b.*\bof=/dev/`)},

	// network_exec: pipe-to-shell and powershell download-and-execute
	{types.IntentNetworkExec, regexp.MustCompile(`(?i)(curl|wget)\s+.*\|\s*(ba)?sh`)},
	{types.IntentNetworkExec, regexp.MustCompile(`(?i)powershell\s+.*(\biex\b|\bInvoke-Expression\b|\biwr\b.*\|\s*iex)`)},
	{types.IntentNetworkExec, regexp.MustCompile(`(?i)(curl|wget|Invoke-WebRequest|iwr)\s+.*\|\s*(iex|Invoke-Expression|sh|bash)`)},

	// file_delete
	{types.IntentFileDelete, regexp.MustCompile(`(?i)(^|\||;|&&)\s*rm\s+`)},
	{types.IntentFileDelete, regexp.MustCompile(`(?i)(^|\||;|&&)\s*(del|rmdir|Remove-Item)\s+`)},

	// privilege_escalation
	{types.IntentPrivilegeEscalation, regexp.MustCompile(`(?i)(^|\||;|&&)\s*(sudo|doas|runas|pkexec)\s+`)},
	{types.IntentPrivilegeEscalation, regexp.MustCompile(`(?i)\bchmod\s+.*\b777\b`)},
	{types.IntentPrivilegeEscalation, regexp.MustCompile(`(?i)\bchmod\s+-R\s+`)},

	// process_kill
	{types.IntentProcessKill, regexp.MustCompile(`(?i)(^|\||;|&&)\s*(kill|killall|pkill)\s+`)},
	{types.IntentProcessKill, regexp.MustCompile(`(?i)(^|\||;|&&)\s*taskkill\s+`)},

	// system_config
	{types.IntentSystemConfig, regexp.MustCompile(`(?i)(^|\||;|&&)\s*(sysctl|systemctl|launchctl|reg\s+(add|delete))\s+`)},
	{types.IntentSystemConfig, regexp.MustCompile(`(?i)\bregedit\b`)},

	// safe_echo stays near the end so piped/compound forms are caught above
	{types.IntentSafeEcho, regexp.MustCompile(`(?i)^\s*echo\s+`)},
	{types.IntentSafeEcho, regexp.MustCompile(`(?i)^\s*printf\s+`)},
}

// Normalize trims surrounding whitespace. Case folding happens inside the
// patterns themselves; matching must treat "RM -RF /" and "rm -rf /"
// identically since casing is otherwise a trivial bypass.
func Normalize(command string) string {
	return strings.TrimSpace(command)
}

// Classify returns the intent for command. It never fails; unmatched
// input falls back to shell_run. Results are never cached: callers
// re-classify right before execution to detect drift, which only works
// if nothing memoizes.
func Classify(command string) types.Intent {
	cmd := Normalize(command)
	for _, r := range rules {
		if r.pattern.MatchString(cmd) {
			return r.intent
		}
	}
	return types.IntentShellRun
}
