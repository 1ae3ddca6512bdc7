// Package engine evaluates capability health checks: built-in check
// functions, the allowlisted probe executor and the health service that
// turns a capability definition into a HealthResult.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// BuiltinFunction performs one probe. It returns pass/fail with a detail
// message, or an error when the probe itself could not be carried out.
type BuiltinFunction func(ctx context.Context, args map[string]interface{}) (pass bool, detail string, err error)

type builtin struct {
	run   BuiltinFunction
	check func(args map[string]interface{}) error
}

// FunctionRegistry holds the built-in functions available to check steps.
type FunctionRegistry struct {
	functions map[string]builtin
	executor  *AllowlistExecutor
	validate  *validator.Validate

	lookPath    func(string) (string, error)
	lookupEnv   func(string) (string, bool)
	home        string
	dialTimeout time.Duration
}

// RegistryOption customizes a FunctionRegistry.
type RegistryOption func(*FunctionRegistry)

// WithLookPath replaces exec.LookPath for command_exists.
func WithLookPath(fn func(string) (string, error)) RegistryOption {
	return func(r *FunctionRegistry) { r.lookPath = fn }
}

// WithLookupEnv replaces os.LookupEnv for env_var_set.
func WithLookupEnv(fn func(string) (string, bool)) RegistryOption {
	return func(r *FunctionRegistry) { r.lookupEnv = fn }
}

// WithHomeDir sets the directory "~/" paths expand against.
func WithHomeDir(dir string) RegistryOption {
	return func(r *FunctionRegistry) { r.home = dir }
}

// NewFunctionRegistry creates a registry with all built-in functions
// registered. A nil executor selects NewAllowlistExecutor.
func NewFunctionRegistry(executor *AllowlistExecutor, opts ...RegistryOption) *FunctionRegistry {
	if executor == nil {
		executor = NewAllowlistExecutor()
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	home, _ := os.UserHomeDir()
	r := &FunctionRegistry{
		functions:   make(map[string]builtin),
		executor:    executor,
		validate:    v,
		lookPath:    exec.LookPath,
		lookupEnv:   os.LookupEnv,
		home:        home,
		dialTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}

	register(r, "command_exists", r.commandExists)
	register(r, "command_succeeds", r.commandSucceeds)
	register(r, "command_output_contains", r.commandOutputContains)
	register(r, "file_exists", r.fileExists)
	register(r, "file_contains", r.fileContains)
	register(r, "env_var_set", r.envVarSet)
	register(r, "port_listening", r.portListening)
	register(r, "service_running", r.serviceRunning)

	return r
}

// register binds a typed function. Arguments are decoded from the YAML map
// with mapstructure and validated with the struct's validate tags.
func register[A any](r *FunctionRegistry, name string, fn func(context.Context, A) (bool, string, error)) {
	r.functions[name] = builtin{
		run: func(ctx context.Context, args map[string]interface{}) (bool, string, error) {
			var a A
			if err := r.decodeArgs(args, &a); err != nil {
				return false, "", err
			}
			return fn(ctx, a)
		},
		check: func(args map[string]interface{}) error {
			var a A
			return r.decodeArgs(args, &a)
		},
	}
}

func (r *FunctionRegistry) decodeArgs(args map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}

	if err := r.validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Tag() == "required" {
				return fmt.Errorf("missing required argument %q", fe.Field())
			}
			return fmt.Errorf("argument %q must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// FunctionNames returns a sorted list of all registered function names.
func (r *FunctionRegistry) FunctionNames() []string {
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Call invokes a registered function by name with the given arguments.
func (r *FunctionRegistry) Call(ctx context.Context, name string, args map[string]interface{}) (bool, string, error) {
	fn, ok := r.functions[name]
	if !ok {
		return false, "", fmt.Errorf("unknown function %q", name)
	}
	return fn.run(ctx, args)
}

// CheckArgs validates arguments for a function without running it.
func (r *FunctionRegistry) CheckArgs(name string, args map[string]interface{}) error {
	fn, ok := r.functions[name]
	if !ok {
		return fmt.Errorf("unknown function %q", name)
	}
	if err := fn.check(args); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

type commandExistsArgs struct {
	Name string `mapstructure:"name" validate:"required"`
}

func (r *FunctionRegistry) commandExists(_ context.Context, a commandExistsArgs) (bool, string, error) {
	if err := validateCommandName(a.Name); err != nil {
		return false, "", err
	}
	path, err := r.lookPath(a.Name)
	if err != nil {
		return false, fmt.Sprintf("command %q not found on PATH", a.Name), nil
	}
	return true, fmt.Sprintf("command %q found at %s", a.Name, path), nil
}

type commandArgs struct {
	Command string   `mapstructure:"command" validate:"required"`
	Args    []string `mapstructure:"args"`
}

// commandSucceeds passes when an allowlisted probe exits 0.
func (r *FunctionRegistry) commandSucceeds(ctx context.Context, a commandArgs) (bool, string, error) {
	if !r.executor.IsAllowed(a.Command) {
		return false, "", fmt.Errorf("command %q not in allowlist", a.Command)
	}

	output, err := r.executor.Execute(ctx, a.Command, a.Args)
	display := strings.TrimSpace(a.Command + " " + strings.Join(a.Args, " "))
	switch {
	case err == nil:
		return true, fmt.Sprintf("%q succeeded", display), nil
	case errors.Is(err, ErrCommandNotFound):
		return false, fmt.Sprintf("command %q is not installed", a.Command), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		detail := fmt.Sprintf("%q exited with code %d", display, exitErr.ExitCode())
		if line := firstLine(output); line != "" {
			detail += ": " + line
		}
		return false, detail, nil
	}
	return false, "", fmt.Errorf("command %q failed: %w", a.Command, err)
}

type commandOutputArgs struct {
	Command string   `mapstructure:"command" validate:"required"`
	Args    []string `mapstructure:"args"`
	Pattern string   `mapstructure:"pattern" validate:"required"`
}

// commandOutputContains runs an allowlisted probe and matches its output.
// A non-zero exit still lets the pattern match; other failures are errors.
func (r *FunctionRegistry) commandOutputContains(ctx context.Context, a commandOutputArgs) (bool, string, error) {
	re, err := validateRegexPattern(a.Pattern)
	if err != nil {
		return false, "", err
	}
	if !r.executor.IsAllowed(a.Command) {
		return false, "", fmt.Errorf("command %q not in allowlist", a.Command)
	}

	output, err := r.executor.Execute(ctx, a.Command, a.Args)
	if errors.Is(err, ErrCommandNotFound) {
		return false, fmt.Sprintf("command %q is not installed", a.Command), nil
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return false, "", fmt.Errorf("command %q failed: %w", a.Command, err)
	}

	if re.Match(output) {
		return true, fmt.Sprintf("command %q output matches pattern %q", a.Command, a.Pattern), nil
	}
	if err != nil {
		return false, fmt.Sprintf("command %q exited with error: %v", a.Command, err), nil
	}
	return false, fmt.Sprintf("command %q output does not match pattern %q", a.Command, a.Pattern), nil
}

type fileExistsArgs struct {
	Path         string `mapstructure:"path" validate:"required"`
	ExpectExists *bool  `mapstructure:"expect_exists"`
}

// fileExists uses Lstat, so a dangling symlink counts as existing.
func (r *FunctionRegistry) fileExists(_ context.Context, a fileExistsArgs) (bool, string, error) {
	cleaned, err := validatePath(a.Path, r.home)
	if err != nil {
		return false, "", err
	}
	expect := a.ExpectExists == nil || *a.ExpectExists

	_, err = os.Lstat(cleaned)
	if err != nil && !os.IsNotExist(err) {
		return false, "", fmt.Errorf("error checking file %q: %w", cleaned, err)
	}
	exists := err == nil

	switch {
	case expect && exists:
		return true, fmt.Sprintf("file exists: %s", cleaned), nil
	case expect:
		return false, fmt.Sprintf("file does not exist: %s", cleaned), nil
	case !exists:
		return true, fmt.Sprintf("file does not exist (as expected): %s", cleaned), nil
	default:
		return false, fmt.Sprintf("file exists (should not): %s", cleaned), nil
	}
}

type fileContainsArgs struct {
	Path    string `mapstructure:"path" validate:"required"`
	Pattern string `mapstructure:"pattern" validate:"required"`
}

func (r *FunctionRegistry) fileContains(_ context.Context, a fileContainsArgs) (bool, string, error) {
	cleaned, err := validatePath(a.Path, r.home)
	if err != nil {
		return false, "", err
	}
	re, err := validateRegexPattern(a.Pattern)
	if err != nil {
		return false, "", err
	}

	data, err := readFileLimited(cleaned)
	if err != nil {
		return false, fmt.Sprintf("cannot read file: %s (%v)", cleaned, err), nil
	}
	if re.Match(data) {
		return true, fmt.Sprintf("pattern %q found in %s", a.Pattern, cleaned), nil
	}
	return false, fmt.Sprintf("pattern not found: %q in %s", a.Pattern, cleaned), nil
}

type envVarArgs struct {
	Name string `mapstructure:"name" validate:"required"`
}

// envVarSet passes when the variable is set to a non-blank value. The value
// is never echoed; it is often a token.
func (r *FunctionRegistry) envVarSet(_ context.Context, a envVarArgs) (bool, string, error) {
	if err := validateEnvVarName(a.Name); err != nil {
		return false, "", err
	}
	if v, ok := r.lookupEnv(a.Name); ok && strings.TrimSpace(v) != "" {
		return true, fmt.Sprintf("environment variable %s is set", a.Name), nil
	}
	return false, fmt.Sprintf("environment variable %s is not set", a.Name), nil
}

type portArgs struct {
	Port int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Host string `mapstructure:"host" validate:"omitempty,hostname|ip"`
}

func (r *FunctionRegistry) portListening(ctx context.Context, a portArgs) (bool, string, error) {
	host := a.Host
	if host == "" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, strconv.Itoa(a.Port))

	d := net.Dialer{Timeout: r.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false, fmt.Sprintf("nothing is listening on %s", addr), nil
	}
	conn.Close()
	return true, fmt.Sprintf("%s is listening", addr), nil
}

type serviceArgs struct {
	Name string `mapstructure:"name" validate:"required"`
	User bool   `mapstructure:"user"`
}

// serviceRunning asks systemd whether a unit is active.
func (r *FunctionRegistry) serviceRunning(ctx context.Context, a serviceArgs) (bool, string, error) {
	if err := validateServiceName(a.Name); err != nil {
		return false, "", err
	}

	args := []string{"is-active", a.Name}
	if a.User {
		args = append([]string{"--user"}, args...)
	}

	output, err := r.executor.Execute(ctx, "systemctl", args)
	if errors.Is(err, ErrCommandNotFound) {
		return false, "systemctl is not available on this host", nil
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return false, "", fmt.Errorf("failed to execute systemctl: %w", err)
	}

	status := strings.TrimSpace(string(output))
	if status == "active" {
		return true, fmt.Sprintf("service %q is running", a.Name), nil
	}
	return false, fmt.Sprintf("service %q is not running (status: %s)", a.Name, status), nil
}

func firstLine(b []byte) string {
	line, _, _ := strings.Cut(strings.TrimSpace(string(b)), "\n")
	return strings.TrimSpace(line)
}
