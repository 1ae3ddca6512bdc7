package engine

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"time"
)

// ErrCommandNotFound is returned when an allowlisted command is not installed.
var ErrCommandNotFound = errors.New("command not found")

// CommandSpec defines the constraints for an allowlisted probe command.
type CommandSpec struct {
	// Name is looked up on PATH at execution time so that tools installed
	// during a setup run are visible to the next health query.
	Name string

	// AllowedFlags lists the flags that may be passed. A flag written as
	// --key=value is matched on --key.
	AllowedFlags []string

	// MaxArgs is the maximum number of positional (non-flag) arguments.
	MaxArgs int

	// Timeout bounds a single execution.
	Timeout time.Duration
}

// AllowlistExecutor runs only pre-approved probe commands with validated
// arguments. It never invokes a shell.
type AllowlistExecutor struct {
	allowlist map[string]CommandSpec
	lookPath  func(string) (string, error)
}

// defaultProbeTimeout bounds probes that talk to a remote service.
const defaultProbeTimeout = 10 * time.Second

// NewAllowlistExecutor creates an executor with the probes capability checks use.
func NewAllowlistExecutor() *AllowlistExecutor {
	versionOnly := []string{"--version", "-V"}
	specs := []CommandSpec{
		{Name: "gh", AllowedFlags: []string{"--version", "--hostname", "--active"}, MaxArgs: 2, Timeout: defaultProbeTimeout},
		{Name: "gcloud", AllowedFlags: []string{"--version", "--filter", "--format"}, MaxArgs: 2, Timeout: defaultProbeTimeout},
		{Name: "az", AllowedFlags: []string{"--version", "--output", "--query"}, MaxArgs: 2, Timeout: defaultProbeTimeout},
		{Name: "vercel", AllowedFlags: []string{"--version"}, MaxArgs: 1, Timeout: defaultProbeTimeout},
		{Name: "docker", AllowedFlags: []string{"--version", "--format"}, MaxArgs: 1, Timeout: defaultProbeTimeout},
		{Name: "git", AllowedFlags: []string{"--version", "--global", "--get"}, MaxArgs: 2, Timeout: 2 * time.Second},
		{Name: "node", AllowedFlags: versionOnly, MaxArgs: 0, Timeout: 2 * time.Second},
		{Name: "npm", AllowedFlags: versionOnly, MaxArgs: 0, Timeout: 5 * time.Second},
		{Name: "python3", AllowedFlags: versionOnly, MaxArgs: 0, Timeout: 2 * time.Second},
		{Name: "uv", AllowedFlags: versionOnly, MaxArgs: 0, Timeout: 2 * time.Second},
		{Name: "jq", AllowedFlags: versionOnly, MaxArgs: 0, Timeout: 2 * time.Second},
		{Name: "rg", AllowedFlags: versionOnly, MaxArgs: 0, Timeout: 2 * time.Second},
		{Name: "tmux", AllowedFlags: versionOnly, MaxArgs: 0, Timeout: 2 * time.Second},
		{Name: "systemctl", AllowedFlags: []string{"--user", "--quiet"}, MaxArgs: 2, Timeout: 5 * time.Second},
	}
	return NewAllowlistExecutorWith(specs...)
}

// NewAllowlistExecutorWith creates an executor allowing exactly the given specs.
func NewAllowlistExecutorWith(specs ...CommandSpec) *AllowlistExecutor {
	allowlist := make(map[string]CommandSpec, len(specs))
	for _, s := range specs {
		allowlist[s.Name] = s
	}
	return &AllowlistExecutor{allowlist: allowlist, lookPath: exec.LookPath}
}

// IsAllowed checks whether a command is in the allowlist.
func (e *AllowlistExecutor) IsAllowed(cmd string) bool {
	_, ok := e.allowlist[cmd]
	return ok
}

// Commands returns the allowlisted command names, sorted.
func (e *AllowlistExecutor) Commands() []string {
	names := make([]string, 0, len(e.allowlist))
	for name := range e.allowlist {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Execute runs an allowlisted command and returns its combined output.
// A non-zero exit is returned as *exec.ExitError alongside the output; a
// missing binary as ErrCommandNotFound.
func (e *AllowlistExecutor) Execute(ctx context.Context, cmd string, args []string) ([]byte, error) {
	spec, ok := e.allowlist[cmd]
	if !ok {
		return nil, fmt.Errorf("command %q not in allowlist", cmd)
	}
	if err := ValidateArgs(spec, args); err != nil {
		return nil, err
	}

	path, err := e.lookPath(spec.Name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.Name, ErrCommandNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, args...).CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("command %q timed out after %v", cmd, spec.Timeout)
	}
	return output, err
}

// ValidateArgs checks that all arguments comply with the CommandSpec constraints.
func ValidateArgs(spec CommandSpec, args []string) error {
	positional := 0
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			name, _, _ := strings.Cut(arg, "=")
			if !slices.Contains(spec.AllowedFlags, name) {
				return fmt.Errorf("flag %q not allowed for this command (allowed: %s)",
					name, strings.Join(spec.AllowedFlags, ", "))
			}
			continue
		}
		positional++
	}

	if positional > spec.MaxArgs {
		return fmt.Errorf("too many positional arguments: got %d, max %d", positional, spec.MaxArgs)
	}
	return nil
}
