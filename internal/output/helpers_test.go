package output

import (
	"time"

	"github.com/ancients-collective/rigup/internal/types"
)

// testTimestamp is a fixed time for deterministic test output.
var testTimestamp = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

var testSystem = types.ReportSystem{
	Hostname:      "test-host",
	OS:            "linux",
	OSVersion:     "6.1.0",
	Arch:          "amd64",
	DistroID:      "ubuntu",
	DistroVersion: "22.04",
	EnvType:       "bare-metal",
}

func githubBefore() types.HealthResult {
	return types.HealthResult{
		Capability: "github",
		CheckedAt:  testTimestamp,
		Checks: []types.HealthCheck{
			{ID: "git_cli", Label: "Git CLI", Required: true, OK: true},
			{ID: "gh_cli", Label: "GitHub CLI", Required: true, OK: false, Message: "command not found: gh", Hint: "brew install gh"},
			{ID: "gh_auth", Label: "GitHub login", Required: true, OK: false, Message: "gh auth status failed"},
			{ID: "git_identity", Label: "Git identity", Required: false, OK: false, Message: "user.email not set"},
		},
	}
}

// newApplyReport builds a representative apply-mode SetupReport.
func newApplyReport() *types.SetupReport {
	before := githubBefore()
	after := githubBefore()
	after.Checks[1].OK = true
	after.Checks[1].Message = ""

	return &types.SetupReport{
		Version:     "1.0.0",
		RunID:       "0b0e4a8c-6d39-4d7e-9d61-3f1b3a9b2c11",
		Timestamp:   testTimestamp,
		System:      testSystem,
		Environment: types.InstallEnvironment{HasHomebrew: true, HasCurl: true},
		DurationMS:  12345,
		Result: &types.SetupResult{
			Capability: "github",
			Mode:       types.ModeApply,
			Before:     before,
			After:      after,
			Steps: []types.SetupStep{
				{
					CheckID:    "gh_cli",
					Label:      "GitHub CLI",
					Kind:       types.KindInstall,
					Status:     types.StepCompleted,
					Command:    "brew install gh",
					Message:    "Installed",
					OutputTail: "==> Pouring gh--2.40.0.bottle.tar.gz\n🍺  /opt/homebrew/Cellar/gh/2.40.0",
				},
				{
					CheckID: "gh_auth",
					Label:   "GitHub login",
					Kind:    types.KindAuth,
					Status:  types.StepPending,
					Command: "gh auth login --hostname github.com --git-protocol https --web",
					Message: "Waiting for login in session setup (target setup:0.0)",
				},
			},
			RemainingChecks:   []types.HealthCheck{after.Checks[2]},
			RequiresUserInput: true,
			AuthSession:       "setup",
			AuthTarget:        "setup:0.0",
			Summary:           "Setup is partially complete. User input is still required",
		},
	}
}

// newPlanReport builds a plan-mode SetupReport.
func newPlanReport() *types.SetupReport {
	before := githubBefore()
	return &types.SetupReport{
		Version:     "1.0.0",
		RunID:       "run-plan",
		Timestamp:   testTimestamp,
		System:      testSystem,
		Environment: types.InstallEnvironment{HasApt: true, HasCurl: true, IsPrivileged: true, UseSudo: true},
		Result: &types.SetupResult{
			Capability: "github",
			Mode:       types.ModePlan,
			Before:     before,
			After:      before,
			Steps: []types.SetupStep{
				{CheckID: "gh_cli", Label: "GitHub CLI", Kind: types.KindInstall, Status: types.StepPlanned,
					Command: "sudo -n env DEBIAN_FRONTEND=noninteractive apt-get install -y gh", Message: "Will run in apply mode"},
				{CheckID: "gh_auth", Label: "GitHub login", Kind: types.KindManual, Status: types.StepSkipped,
					Message: "gh auth status failed"},
			},
			RemainingChecks: before.Missing(),
			Summary:         "Planned 1 action(s)",
		},
	}
}

// newFailedReport builds an apply-mode report whose install failed.
func newFailedReport() *types.SetupReport {
	r := newApplyReport()
	r.Result.Steps = []types.SetupStep{{
		CheckID:    "gh_cli",
		Label:      "GitHub CLI",
		Kind:       types.KindInstall,
		Status:     types.StepFailed,
		Command:    "brew install gh",
		Message:    "exit status 1",
		OutputTail: "line1\nline2\nline3\nline4\nline5\nline6\nline7\nError: no bottle available",
	}}
	r.Result.RequiresUserInput = false
	r.Result.AuthSession = ""
	r.Result.AuthTarget = ""
	r.Result.Summary = "Setup finished with unresolved checks"
	return r
}

// newCleanSetupReport builds a report for a capability that needed nothing.
func newCleanSetupReport() *types.SetupReport {
	h := types.HealthResult{Capability: "python", Checks: []types.HealthCheck{
		{ID: "python3_runtime", Label: "Python 3", Required: true, OK: true},
	}}
	return &types.SetupReport{
		Version:   "1.0.0",
		RunID:     "run-clean",
		Timestamp: testTimestamp,
		System:    testSystem,
		Result: &types.SetupResult{
			Capability:      "python",
			Mode:            types.ModeApply,
			OK:              true,
			Before:          h,
			After:           h,
			Steps:           []types.SetupStep{},
			RemainingChecks: []types.HealthCheck{},
			Summary:         "All prerequisites are already satisfied",
		},
	}
}

// newHealthReport builds a HealthReport with mixed results.
func newHealthReport() *types.HealthReport {
	h := githubBefore()
	h.Checks = append(h.Checks, types.HealthCheck{
		ID: "docker_service", Label: "Docker service", Required: false, OK: true, Skipped: true,
		Message: "OS \"darwin\" not in supported list [linux]",
	})
	return &types.HealthReport{
		Version:   "1.0.0",
		Timestamp: testTimestamp,
		System:    testSystem,
		Health:    h,
	}
}
