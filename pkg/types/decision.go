package types

// Decision is the policy verdict for a single command.
//
// PENDING_CONFIRMATION only exists while a run is in flight: the runner
// resolves it to ALLOWED or DENIED before any receipt is written, so the
// audit log never contains an unresolved decision.
type Decision string

const (
	DecisionAllowed Decision = "ALLOWED"
	DecisionDenied  Decision = "DENIED"
	DecisionPending Decision = "PENDING_CONFIRMATION"
)

// Outcome is the tri-state result of one execution attempt, used by the
// CLI layer to derive process exit codes.
type Outcome string

const (
	// OutcomeRan means the command was allowed and exited zero.
	OutcomeRan Outcome = "ran"
	// OutcomeDenied means a gate denied the command; nothing was spawned.
	OutcomeDenied Outcome = "denied"
	// OutcomeFailed means the command was allowed but the underlying
	// process exited non-zero (or could not be started).
	OutcomeFailed Outcome = "failed"
)
