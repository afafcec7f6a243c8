package types

import (
	"fmt"
	"strings"
)

// Intent is the coarse category of what a command is trying to do.
// The set is closed; anything the classifier cannot place lands in
// IntentShellRun, the least-privileged non-trivial bucket.
type Intent string

const (
	IntentSafeEcho            Intent = "safe_echo"
	IntentShellRun            Intent = "shell_run"
	IntentFileDelete          Intent = "file_delete"
	IntentNetworkExec         Intent = "network_exec"
	IntentPrivilegeEscalation Intent = "privilege_escalation"
	IntentDiskFormat          Intent = "disk_format"
	IntentProcessKill         Intent = "process_kill"
	IntentSystemConfig        Intent = "system_config"
)

// AllIntents lists every intent in display order.
var AllIntents = []Intent{
	IntentSafeEcho,
	IntentShellRun,
	IntentFileDelete,
	IntentNetworkExec,
	IntentPrivilegeEscalation,
	IntentDiskFormat,
	IntentProcessKill,
	IntentSystemConfig,
}

// ParseIntent validates a user-supplied intent name.
func ParseIntent(s string) (Intent, error) {
	in := Intent(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllIntents {
		if in == known {
			return in, nil
		}
	}
	return "", fmt.Errorf("unknown intent %q (valid: %s)", s, strings.Join(IntentNames(), ", "))
}

// IntentNames returns the intent names as plain strings.
func IntentNames() []string {
	names := make([]string, len(AllIntents))
	for i, in := range AllIntents {
		names[i] = string(in)
	}
	return names
}
