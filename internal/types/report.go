package types

import "time"

// SetupReport is the top-level structure written by `rigup setup`.
// It is serialized directly to JSON for the --format=json output.
type SetupReport struct {
	// Version is the rigup version that produced this report.
	Version string `json:"version"`

	// RunID uniquely identifies this invocation.
	RunID string `json:"run_id"`

	// Timestamp is when the run started.
	Timestamp time.Time `json:"timestamp"`

	// System describes the host.
	System ReportSystem `json:"system"`

	// Environment is the detected install environment used for command selection.
	Environment InstallEnvironment `json:"environment"`

	// DurationMS is the total run duration in milliseconds.
	DurationMS int64 `json:"duration_ms"`

	// Result is the orchestrator outcome.
	Result *SetupResult `json:"result"`
}

// HealthReport is the top-level structure written by `rigup health`.
type HealthReport struct {
	Version   string       `json:"version"`
	Timestamp time.Time    `json:"timestamp"`
	System    ReportSystem `json:"system"`
	Health    HealthResult `json:"health"`
}

// ReportSystem describes the host a report was produced on.
type ReportSystem struct {
	// Hostname is the system hostname.
	Hostname string `json:"hostname"`

	// OS is the operating system name.
	OS string `json:"os"`

	// OSVersion is the kernel version.
	OSVersion string `json:"os_version"`

	// Arch is the CPU architecture.
	Arch string `json:"arch"`

	// DistroID is the Linux distribution ID.
	DistroID string `json:"distro_id,omitempty"`

	// DistroVersion is the Linux distribution version.
	DistroVersion string `json:"distro_version,omitempty"`

	// EnvType is the environment category (container, vm, bare-metal).
	EnvType string `json:"env_type"`

	// EnvRuntime is the specific runtime (docker, kvm, etc.).
	EnvRuntime string `json:"env_runtime,omitempty"`
}

// NewReportSystem flattens a SystemContext for serialization.
func NewReportSystem(ctx SystemContext) ReportSystem {
	return ReportSystem{
		Hostname:      ctx.Environment.Hostname,
		OS:            ctx.OS.Name,
		OSVersion:     ctx.OS.Version,
		Arch:          ctx.OS.Arch,
		DistroID:      ctx.Distro.ID,
		DistroVersion: ctx.Distro.Version,
		EnvType:       ctx.Environment.Type,
		EnvRuntime:    ctx.Environment.Runtime,
	}
}
