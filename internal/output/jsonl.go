package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/ancients-collective/rigup/internal/types"
)

// JSONLFormatter writes reports as newline-delimited JSON (one object per line).
// The first line is a header with system and summary information.
// Subsequent lines are individual steps or checks.
type JSONLFormatter struct{}

type setupHeader struct {
	Type              string                   `json:"type"`
	Version           string                   `json:"version"`
	RunID             string                   `json:"run_id"`
	Timestamp         string                   `json:"timestamp"`
	System            types.ReportSystem       `json:"system"`
	Environment       types.InstallEnvironment `json:"environment"`
	Capability        string                   `json:"capability"`
	Mode              types.SetupMode          `json:"mode"`
	OK                bool                     `json:"ok"`
	RequiresUserInput bool                     `json:"requires_user_input"`
	AuthSession       string                   `json:"auth_session,omitempty"`
	AuthTarget        string                   `json:"auth_target,omitempty"`
	Summary           string                   `json:"summary"`
	DurationMS        int64                    `json:"duration_ms"`
}

// WriteSetup renders a setup run as JSONL: header line, one line per step,
// then one line per remaining check.
func (f *JSONLFormatter) WriteSetup(w io.Writer, report *types.SetupReport) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	res := report.Result
	if res == nil {
		res = &types.SetupResult{}
	}
	header := setupHeader{
		Type:              "header",
		Version:           report.Version,
		RunID:             report.RunID,
		Timestamp:         report.Timestamp.Format(time.RFC3339),
		System:            report.System,
		Environment:       report.Environment,
		Capability:        res.Capability,
		Mode:              res.Mode,
		OK:                res.OK,
		RequiresUserInput: res.RequiresUserInput,
		AuthSession:       res.AuthSession,
		AuthTarget:        res.AuthTarget,
		Summary:           res.Summary,
		DurationMS:        report.DurationMS,
	}
	if err := enc.Encode(header); err != nil {
		return err
	}

	for _, s := range res.Steps {
		line := struct {
			Type string          `json:"type"`
			Step types.SetupStep `json:"step"`
		}{Type: "step", Step: s}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	for _, c := range res.RemainingChecks {
		line := struct {
			Type  string            `json:"type"`
			Check types.HealthCheck `json:"check"`
		}{Type: "remaining", Check: c}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}

// WriteHealth renders a health report as JSONL: header line + one line per check.
func (f *JSONLFormatter) WriteHealth(w io.Writer, report *types.HealthReport) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	header := struct {
		Type       string             `json:"type"`
		Version    string             `json:"version"`
		Timestamp  string             `json:"timestamp"`
		System     types.ReportSystem `json:"system"`
		Capability string             `json:"capability"`
		Missing    int                `json:"missing"`
	}{
		Type:       "header",
		Version:    report.Version,
		Timestamp:  report.Timestamp.Format(time.RFC3339),
		System:     report.System,
		Capability: report.Health.Capability,
		Missing:    len(report.Health.Missing()),
	}
	if err := enc.Encode(header); err != nil {
		return err
	}

	for _, c := range report.Health.Checks {
		line := struct {
			Type  string            `json:"type"`
			Check types.HealthCheck `json:"check"`
		}{Type: "check", Check: c}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}
