package types

import "time"

// HealthCheck is one verifiable requirement of a capability at one point in time.
type HealthCheck struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
	OK       bool   `json:"ok"`

	// Skipped is set when the check does not apply to this host. Skipped checks are always OK.
	Skipped bool `json:"skipped,omitempty"`

	// Hint is remediation text supplied by the capability definition.
	Hint string `json:"hint,omitempty"`

	// Message is the detail produced by the failing (or last passing) probe.
	Message string `json:"message,omitempty"`
}

// Missing reports whether the check is required and currently failing.
func (c HealthCheck) Missing() bool {
	return c.Required && !c.OK
}

// HealthResult is an ordered snapshot of a capability's checks.
// A new HealthResult is produced by every query; existing ones are never modified.
type HealthResult struct {
	Capability string        `json:"capability"`
	Checks     []HealthCheck `json:"checks"`
	CheckedAt  time.Time     `json:"checked_at"`
}

// Missing returns the required, failing checks in their original order.
func (r HealthResult) Missing() []HealthCheck {
	var out []HealthCheck
	for _, c := range r.Checks {
		if c.Missing() {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the check with the given id.
func (r HealthResult) Find(id string) (HealthCheck, bool) {
	for _, c := range r.Checks {
		if c.ID == id {
			return c, true
		}
	}
	return HealthCheck{}, false
}

// CheckPassed reports whether the check with the given id is present and OK.
func (r HealthResult) CheckPassed(id string) bool {
	c, ok := r.Find(id)
	return ok && c.OK
}
