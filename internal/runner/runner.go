// Package runner sequences the enforcement pipeline: classify, evaluate
// policy, resolve authorization, re-check everything, and only then hand
// the command to the operating system. It is the sole owner of the
// process-spawn capability and appends exactly one receipt per attempt,
// denial or success alike.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentsh/guardian/internal/audit"
	"github.com/agentsh/guardian/internal/classifier"
	"github.com/agentsh/guardian/internal/policy"
	"github.com/agentsh/guardian/internal/tokens"
	"github.com/agentsh/guardian/pkg/types"
)

// ConfirmFunc resolves a PENDING_CONFIRMATION interactively. It must
// return true only for an explicit affirmative (the literal answer
// ALLOW); a closed input stream or any other response is false.
type ConfirmFunc func(intent types.Intent, command string) bool

// execFunc is the process-spawn capability. It is constructed once in
// New and never exported; no other code path in the module can reach a
// process spawn.
type execFunc func(ctx context.Context, command string) (exitCode int, output string)

// Runner drives the 4-gate pipeline.
type Runner struct {
	engine  *policy.Engine
	tokens  *tokens.Store
	log     *audit.Log
	confirm ConfirmFunc
	logger  *slog.Logger
	timeout time.Duration

	exec execFunc
}

// Options configures a Runner. Engine, Tokens, and Log are required.
// A nil Confirm means non-interactive operation: risky commands without
// a valid token are denied outright.
type Options struct {
	Engine  *policy.Engine
	Tokens  *tokens.Store
	Log     *audit.Log
	Confirm ConfirmFunc
	Logger  *slog.Logger
	Timeout time.Duration
}

const defaultTimeout = 300 * time.Second

// New constructs a Runner and binds the execution capability to it.
func New(opts Options) (*Runner, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("runner: policy engine is required")
	}
	if opts.Tokens == nil {
		return nil, fmt.Errorf("runner: token store is required")
	}
	if opts.Log == nil {
		return nil, fmt.Errorf("runner: audit log is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Runner{
		engine:  opts.Engine,
		tokens:  opts.Tokens,
		log:     opts.Log,
		confirm: opts.Confirm,
		logger:  logger,
		timeout: timeout,
		exec:    newExecCapability(timeout),
	}, nil
}

// Result is the outcome of one Execute call.
type Result struct {
	Decision   types.Decision
	Outcome    types.Outcome
	Intent     types.Intent
	Reason     string
	Suggestion string
	ExitCode   int
	Output     string
	Receipt    types.Receipt
}

// Execute runs raw through the gates. Every gate fails closed: anything
// it cannot positively affirm becomes a denial. The returned error is
// reserved for storage failures; an unwritable receipt fails the whole
// operation even when the process already ran.
func (r *Runner) Execute(ctx context.Context, raw string) (Result, error) {
	// Gate 1: classify and evaluate policy.
	intent := classifier.Classify(raw)
	pres := r.engine.Evaluate(raw, intent)

	if pres.Decision == types.DecisionDenied {
		return r.deny(ctx, intent, raw, pres.Reason, pres.Suggestion, nil)
	}

	var tok *types.AllowToken
	reason := pres.Reason
	if pres.RequiresAuth {
		found, err := r.tokens.FindValid(ctx, intent, time.Now())
		if err != nil {
			// A broken token store must not turn into a silent allow,
			// and the failed lookup is itself an auditable denial.
			res, denyErr := r.deny(ctx, intent, raw,
				"Risky intent denied: token store unavailable.", pres.Suggestion, nil)
			if denyErr != nil {
				return res, denyErr
			}
			return res, fmt.Errorf("token lookup: %w", err)
		}
		switch {
		case found != nil:
			tok = found
			reason = fmt.Sprintf("token-authorized (%s)", tok.TokenID)
		case r.confirm == nil:
			return r.deny(ctx, intent, raw,
				"Risky intent denied (no valid token, no interactive confirmation).",
				pres.Suggestion, nil)
		case !r.confirm(intent, raw):
			return r.deny(ctx, intent, raw,
				"User declined interactive authorization.", pres.Suggestion, nil)
		default:
			reason = "Authorized interactively."
		}
	}

	// Gate 2: a token that was valid at evaluation may have lapsed while
	// waiting (e.g. at a confirmation prompt). Re-check at this instant.
	if tok != nil && !tok.ValidAt(time.Now()) {
		return r.deny(ctx, intent, raw,
			fmt.Sprintf("Token %s expired before execution.", tok.TokenID),
			pres.Suggestion, nil)
	}

	// Gate 3: re-classify immediately before execution. Disagreement
	// with the first pass means the effective intent drifted between
	// screening and execution; fail closed.
	if second := classifier.Classify(raw); second != intent {
		return r.deny(ctx, intent, raw,
			fmt.Sprintf("Re-classification drift: %s became %s.", intent, second), "", nil)
	}

	// Gate 4: final always-block scan, unconditionally. Intentionally
	// redundant with Gate 1; no token or confirmation reaches past it.
	if m, blocked := r.engine.ScanBlocked(raw); blocked {
		return r.deny(ctx, intent, raw,
			"BLOCKED at final safety scan: "+m.Rule, m.Suggestion, nil)
	}

	exitCode, output := r.exec(ctx, raw)

	rec, err := r.log.Append(ctx, audit.Entry{
		Intent:    intent,
		Command:   raw,
		Decision:  types.DecisionAllowed,
		Reason:    reason,
		TokenID:   tokenID(tok),
		ExpiresAt: tokenExpiry(tok),
	})
	res := Result{
		Decision: types.DecisionAllowed,
		Outcome:  types.OutcomeRan,
		Intent:   intent,
		Reason:   reason,
		ExitCode: exitCode,
		Output:   output,
		Receipt:  rec,
	}
	if exitCode != 0 {
		res.Outcome = types.OutcomeFailed
		res.Reason = fmt.Sprintf("Command exited with code %d.", exitCode)
	}
	if err != nil {
		// The process may already have run; an unrecorded execution is
		// worse than a failed one, so surface this loudly.
		r.logger.Error("receipt append failed after execution", "error", err)
		res.Outcome = types.OutcomeFailed
		return res, fmt.Errorf("append receipt: %w", err)
	}

	r.logger.Info("command executed",
		"intent", string(intent),
		"exit_code", exitCode,
		"token_authorized", tok != nil)
	return res, nil
}

// deny records a denial receipt and returns the denied result. The
// receipt is not optional; if it cannot be written the caller gets the
// storage error alongside the denial.
func (r *Runner) deny(ctx context.Context, intent types.Intent, command, reason, suggestion string, tok *types.AllowToken) (Result, error) {
	rec, err := r.log.Append(ctx, audit.Entry{
		Intent:    intent,
		Command:   command,
		Decision:  types.DecisionDenied,
		Reason:    reason,
		TokenID:   tokenID(tok),
		ExpiresAt: tokenExpiry(tok),
	})
	res := Result{
		Decision:   types.DecisionDenied,
		Outcome:    types.OutcomeDenied,
		Intent:     intent,
		Reason:     reason,
		Suggestion: suggestion,
		ExitCode:   1,
		Receipt:    rec,
	}
	if err != nil {
		r.logger.Error("receipt append failed on denial", "error", err)
		return res, fmt.Errorf("append receipt: %w", err)
	}
	r.logger.Warn("command denied", "intent", string(intent), "reason", reason)
	return res, nil
}

func tokenID(tok *types.AllowToken) *string {
	if tok == nil {
		return nil
	}
	id := tok.TokenID
	return &id
}

func tokenExpiry(tok *types.AllowToken) *string {
	if tok == nil {
		return nil
	}
	exp := tok.ExpiresAt.UTC().Format(time.RFC3339Nano)
	return &exp
}
