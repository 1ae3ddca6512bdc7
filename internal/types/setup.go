package types

// SetupMode selects between a dry run and real execution.
type SetupMode string

const (
	// ModePlan computes and reports intended actions without executing any of them.
	ModePlan SetupMode = "plan"
	// ModeApply executes the computed actions and reports real outcomes.
	ModeApply SetupMode = "apply"
)

// ParseSetupMode converts a flag value into a SetupMode.
func ParseSetupMode(s string) (SetupMode, bool) {
	switch SetupMode(s) {
	case ModePlan:
		return ModePlan, true
	case ModeApply:
		return ModeApply, true
	default:
		return "", false
	}
}

// StepKind identifies which branch produced a setup step.
type StepKind string

const (
	KindInstall StepKind = "install"
	KindAuth    StepKind = "auth"
	KindManual  StepKind = "manual"
)

// StepStatus is the outcome recorded for a setup step.
type StepStatus string

const (
	// StepPlanned means the action was computed but not executed (plan mode), or is about to run.
	StepPlanned StepStatus = "planned"
	// StepCompleted means the action ran successfully.
	StepCompleted StepStatus = "completed"
	// StepFailed means the action ran and failed.
	StepFailed StepStatus = "failed"
	// StepPending means an interactive action was started but has not finished yet.
	StepPending StepStatus = "pending"
	// StepSkipped means no automated action exists for the check.
	StepSkipped StepStatus = "skipped"
)

// SetupStep records one action taken or proposed for one failing check.
type SetupStep struct {
	CheckID string     `json:"check_id"`
	Label   string     `json:"label"`
	Kind    StepKind   `json:"kind"`
	Status  StepStatus `json:"status"`
	Command string     `json:"command,omitempty"`
	Message string     `json:"message,omitempty"`

	// OutputTail is stdout then stderr, at most 4000 characters plus a
	// truncation marker.
	OutputTail string `json:"output_tail,omitempty"`
}

// SetupResult is the complete outcome of one orchestrator run.
type SetupResult struct {
	Capability string    `json:"capability"`
	Mode       SetupMode `json:"mode"`

	// OK is true when no required check is still failing.
	OK bool `json:"ok"`

	Before HealthResult `json:"before"`
	After  HealthResult `json:"after"`

	Steps           []SetupStep   `json:"steps"`
	RemainingChecks []HealthCheck `json:"remaining_checks"`

	// RequiresUserInput is true when an authentication step is still waiting on the operator.
	RequiresUserInput bool `json:"requires_user_input"`

	// AuthSession and AuthTarget locate the terminal session of the last auth step.
	AuthSession string `json:"auth_session,omitempty"`
	AuthTarget  string `json:"auth_target,omitempty"`

	Summary string `json:"summary"`
}

// CountStatus returns how many steps ended with the given status.
func (r *SetupResult) CountStatus(status StepStatus) int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == status {
			n++
		}
	}
	return n
}
