// Package policy decides whether a classified command may run. It is
// deny-by-default for risky intents and carries a fixed table of
// always-block rules that no token or confirmation can override.
package policy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/agentsh/guardian/internal/classifier"
	"github.com/agentsh/guardian/pkg/types"
)

// blockRule is one entry in the static always-block table.
type blockRule struct {
	description string
	pattern     *regexp.Regexp
	suggestion  string
}

const (
	suggestRootDelete = "Delete specific paths instead: rm -rf ./my_folder"
	suggestPipeShell  = "Download the script first, review it, then run: curl -O script.sh && cat script.sh && bash script.sh"
	suggestDiskFormat = "Use safe disk utilities with explicit confirmation."
	suggestDeviceDD   = "Double-check the target device; use a file path instead of a block device."
)

// alwaysBlock is fixed at startup and never mutated. These patterns deny
// unconditionally regardless of tokens, confirmation, or intent.
var alwaysBlock = []blockRule{
	{
		description: "Destructive root deletion (rm -rf /)",
		pattern:     regexp.MustCompile(`(?i)\brm\s+.*-[A-Za-z]*r[A-Za-z]*f[A-Za-z]*\s+/\s*$`),
		suggestion:  suggestRootDelete,
	},
	{
		description: "Destructive root deletion (rm -rf /)",
		pattern:     regexp.MustCompile(`(?i)\brm\s+.*-[A-Za-z]*f[A-Za-z]*r[A-Za-z]*\s+/\s*$`),
		suggestion:  suggestRootDelete,
	},
	{
		description: "Destructive root deletion (rm -rf /*)",
		pattern:     regexp.MustCompile(`(?i)\brm\s+.*-[A-Za-z]*r[A-Za-z]*f[A-Za-z]*\s+/\*`),
		suggestion:  suggestRootDelete,
	},
	{
		description: "Network download piped to shell execution (curl|wget … | bash/sh)",
		pattern:     regexp.MustCompile(`(?i)(curl|wget)\s+.*\|\s*(ba)?sh`),
		suggestion:  suggestPipeShell,
	},
	{
		description: "PowerShell download-and-execute pattern",
		pattern:     regexp.MustCompile(`(?i)powershell\s+.*(\biex\b|\bInvoke-Expression\b)`),
		suggestion:  suggestPipeShell,
	},
	{
		description: "PowerShell download-and-execute pattern",
		pattern:     regexp.MustCompile(`(?i)(iwr|Invoke-WebRequest)\s+.*\|\s*(iex|Invoke-Expression)`),
		suggestion:  suggestPipeShell,
	},
	{
		description: "Disk formatting command (mkfs/format/diskpart)",
		pattern:     regexp.MustCompile(`(?i)(^|\s)(mkfs|diskpart)\b`),
		suggestion:  suggestDiskFormat,
	},
	{
		description: "Disk formatting command (format drive)",
		pattern:     regexp.MustCompile(`(?i)\bformat\s+[A-Za-z]:`),
		suggestion:  suggestDiskFormat,
	},
	{
		description: "Destructive device write (dd … of=/dev/…)",
		pattern:     regexp.MustCompile(`(?i)\bdd\b.*\bof=/dev/`),
		suggestion:  suggestDeviceDD,
	},
}

// riskyIntents require explicit authorization (token or confirmation).
var riskyIntents = map[types.Intent]struct{}{
	types.IntentFileDelete:          {},
	types.IntentPrivilegeEscalation: {},
	types.IntentProcessKill:         {},
	types.IntentSystemConfig:        {},
}

var intentSuggestions = map[types.Intent]string{
	types.IntentFileDelete:          "Use guardian allow file_delete --ttl 30 to pre-authorize, or confirm interactively.",
	types.IntentPrivilegeEscalation: "Review the command carefully. Use guardian allow privilege_escalation --ttl 30.",
	types.IntentProcessKill:         "Consider graceful termination (kill <pid>) before kill -9.",
	types.IntentSystemConfig:        "Back up your configuration first.",
}

// Result is the engine's verdict for one command. RequiresAuth marks a
// PENDING_CONFIRMATION that the runner must resolve with a token or an
// interactive confirmation before anything executes.
type Result struct {
	Decision     types.Decision
	Reason       string
	RequiresAuth bool
	Rule         string
	Suggestion   string
}

// BlockMatch identifies which always-block rule a command tripped.
type BlockMatch struct {
	Rule       string
	Suggestion string
}

type compiledOverlayRule struct {
	rule OverlayBlockRule
	g    glob.Glob
}

// Engine evaluates commands. It performs no I/O and never fails at
// evaluation time; all pattern compilation happens in NewEngine.
type Engine struct {
	overlayRules []compiledOverlayRule
}

// NewEngine builds an engine, compiling overlay rules if an overlay is
// given. A nil overlay yields the built-in rules only.
func NewEngine(overlay *Overlay) (*Engine, error) {
	e := &Engine{}
	if overlay == nil {
		return e, nil
	}
	for _, r := range overlay.BlockRules {
		g, err := glob.Compile(strings.ToLower(r.Pattern))
		if err != nil {
			return nil, fmt.Errorf("compile overlay rule %q pattern %q: %w", r.Name, r.Pattern, err)
		}
		e.overlayRules = append(e.overlayRules, compiledOverlayRule{rule: r, g: g})
	}
	return e, nil
}

// ScanBlocked checks command against every always-block rule (built-in
// table first, then overlay rules) and returns the first match.
func (e *Engine) ScanBlocked(command string) (BlockMatch, bool) {
	for _, r := range alwaysBlock {
		if r.pattern.MatchString(command) {
			return BlockMatch{Rule: r.description, Suggestion: r.suggestion}, true
		}
	}
	normalized := strings.ToLower(classifier.Normalize(command))
	for _, r := range e.overlayRules {
		if r.g.Match(normalized) {
			m := BlockMatch{Rule: r.rule.Name, Suggestion: r.rule.Suggestion}
			if r.rule.Message != "" {
				m.Rule = r.rule.Name + ": " + r.rule.Message
			}
			return m, true
		}
	}
	return BlockMatch{}, false
}

// Evaluate maps a command and its classified intent to a decision.
//
// Always-block rules are checked first and win over everything. Risky
// intents come back as PENDING_CONFIRMATION with RequiresAuth set; the
// engine itself never consults the token store or the terminal, so the
// same inputs always produce the same Result.
func (e *Engine) Evaluate(command string, intent types.Intent) Result {
	if m, ok := e.ScanBlocked(command); ok {
		return Result{
			Decision:   types.DecisionDenied,
			Reason:     "BLOCKED: " + m.Rule,
			Rule:       m.Rule,
			Suggestion: m.Suggestion,
		}
	}

	if _, risky := riskyIntents[intent]; risky {
		return Result{
			Decision:     types.DecisionPending,
			Reason:       fmt.Sprintf("Risky intent (%s) requires explicit authorization.", intent),
			RequiresAuth: true,
			Suggestion:   intentSuggestions[intent],
		}
	}

	return Result{Decision: types.DecisionAllowed, Reason: "Command allowed by policy."}
}

// IsRisky reports whether intent belongs to the authorization-required set.
func IsRisky(intent types.Intent) bool {
	_, ok := riskyIntents[intent]
	return ok
}

// RiskyIntents returns the authorization-required intents, sorted.
func RiskyIntents() []types.Intent {
	out := make([]types.Intent, 0, len(riskyIntents))
	for in := range riskyIntents {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BlockRuleSummaries returns the descriptions of every active block rule
// in evaluation order, for the policy summary surface.
func (e *Engine) BlockRuleSummaries() []string {
	out := make([]string, 0, len(alwaysBlock)+len(e.overlayRules))
	for _, r := range alwaysBlock {
		out = append(out, r.description)
	}
	for _, r := range e.overlayRules {
		out = append(out, r.rule.Name)
	}
	return out
}
