// Package types defines shared type definitions used across all rigup packages.
package types

// CapabilityDefinition represents one installable tool integration loaded from a YAML file.
// A capability owns an ordered list of health checks; the order is the priority in which
// missing prerequisites are handled during setup.
type CapabilityDefinition struct {
	// ID is a unique identifier for the capability (alphanumeric, underscores, hyphens).
	ID string `yaml:"id" validate:"required,rigup_id"`

	// Name is a human-readable name for the capability.
	Name string `yaml:"name" validate:"required,min=3,max=100"`

	// Description explains what the capability provides.
	Description string `yaml:"description" validate:"required"`

	// Author identifies who created or maintains the definition.
	Author string `yaml:"author,omitempty"`

	// Version is the version of the definition (e.g., "1.0").
	Version string `yaml:"version,omitempty"`

	// SupportedOS limits which operating systems this capability applies to.
	SupportedOS []string `yaml:"supported_os,omitempty" validate:"omitempty,dive,oneof=linux darwin"`

	// Tags are optional labels for filtering and organization.
	Tags []string `yaml:"tags,omitempty"`

	// References are URLs to documentation for the integration.
	References []string `yaml:"references,omitempty" validate:"omitempty,dive,url"`

	// Checks are the prerequisites, in priority order.
	Checks []CheckDefinition `yaml:"checks" validate:"required,min=1,dive"`
}

// CheckDefinition is a single verifiable requirement of a capability.
type CheckDefinition struct {
	// ID is stable across releases; the setup command table is keyed by it.
	ID string `yaml:"id" validate:"required,rigup_id"`

	// Label is shown to the operator.
	Label string `yaml:"label" validate:"required,min=3,max=100"`

	// Required defaults to true when absent.
	Required *bool `yaml:"required,omitempty"`

	// Hint is remediation text shown when no automated action exists.
	Hint string `yaml:"hint,omitempty"`

	// SupportedOS limits which operating systems this check applies to.
	// On other systems the check is reported as passing and skipped.
	SupportedOS []string `yaml:"supported_os,omitempty" validate:"omitempty,dive,oneof=linux darwin"`

	// Steps are evaluated in order; the first failing step fails the check.
	Steps []CheckStep `yaml:"steps" validate:"required,min=1,dive"`
}

// IsRequired reports whether the check blocks the capability. Absent means required.
func (c CheckDefinition) IsRequired() bool {
	return c.Required == nil || *c.Required
}

// CheckStep represents a single probe within a check.
// Each step calls a built-in function with arguments and optional conditions.
type CheckStep struct {
	// Function is the name of the built-in function to call (e.g., "command_exists").
	Function string `yaml:"function" validate:"required"`

	// Args are the arguments passed to the function.
	Args map[string]interface{} `yaml:"args" validate:"required"`

	// When specifies conditions under which this step should execute.
	// If the condition does not match the current system context, the step is skipped.
	When *ConditionBlock `yaml:"when,omitempty"`
}

// ConditionBlock defines platform/context conditions for conditional step execution.
// All specified fields must match (AND logic). Empty fields are ignored.
type ConditionBlock struct {
	// OS matches the operating system name (e.g., "linux", "darwin").
	OS string `yaml:"os,omitempty"`

	// Distro matches the Linux distribution ID (e.g., "ubuntu", "rhel").
	Distro string `yaml:"distro,omitempty"`

	// Environment matches the execution environment type (e.g., "container", "vm").
	Environment string `yaml:"environment,omitempty"`
}
