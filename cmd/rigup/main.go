// Package main is the entry point for rigup, which checks the tools an agent
// workspace depends on and installs or logs in to whatever is missing.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ancients-collective/rigup/internal/output"
	"github.com/ancients-collective/rigup/internal/types"
)

// version is set at build time via -ldflags. The default is a dev fallback
// for plain `go install` or `go run` usage.
var version = "0.3.0"

// Exit codes.
const (
	exitOK         = 0
	exitUnresolved = 1 // checks still failing, or a usage error
	exitError      = 2 // the run itself could not complete
	exitUserInput  = 3 // an interactive login is waiting on the operator
)

var commands = []string{"setup", "health", "list", "env", "validate", "version"}

// Config holds all parsed CLI flag values.
type Config struct {
	Command    string
	Capability string
	Path       string

	// Global flags.
	CatalogDir string
	EnvFile    string
	Verify     bool
	Debug      bool
	NoColor    bool

	// Output flags.
	Format     string
	OutputFile string
	Quiet      bool
	Verbose    bool

	// Setup flags. Zero values defer to config.Settings.
	Mode    string
	Apply   bool
	NoAuth  bool
	Session string
	Isolate bool
	Wait    int
	Cwd     string
	Timeout time.Duration
}

// newFlagSet builds the FlagSet for one subcommand. Global flags are accepted
// by every subcommand.
func newFlagSet(cmd string, cfg *Config, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("rigup "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.CatalogDir, "catalog", "", "Capability catalog directory (default: built-in catalog)")
	fs.StringVar(&cfg.EnvFile, "env-file", "", "Read RIGUP_* settings from a dotenv file")
	fs.BoolVar(&cfg.Verify, "verify", false, "Verify catalog directory integrity before loading")
	fs.BoolVar(&cfg.Debug, "debug", false, "Enable debug diagnostic output")
	fs.BoolVar(&cfg.NoColor, "no-color", false, "Disable colored output")

	switch cmd {
	case "setup", "health", "env":
		fs.StringVar(&cfg.Format, "format", "text", "Output format: text, json, jsonl")
		fs.StringVar(&cfg.Format, "f", "text", "Output format (shorthand)")
		fs.StringVar(&cfg.OutputFile, "output", "", "Write output to file (default: stdout)")
		fs.StringVar(&cfg.OutputFile, "o", "", "Write output to file (shorthand)")
		fs.BoolVar(&cfg.Quiet, "quiet", false, "Suppress output, exit code only")
		fs.BoolVar(&cfg.Quiet, "q", false, "Suppress output (shorthand)")
		fs.BoolVar(&cfg.Verbose, "verbose", false, "Show passing checks and full command output")
		fs.BoolVar(&cfg.Verbose, "v", false, "Verbose output (shorthand)")
	}

	switch cmd {
	case "setup", "health":
		fs.StringVar(&cfg.Capability, "capability", "", "Capability id from the catalog")
		fs.StringVar(&cfg.Capability, "c", "", "Capability id (shorthand)")
	}

	if cmd == "setup" {
		fs.StringVar(&cfg.Mode, "mode", string(types.ModePlan), "Setup mode: plan, apply")
		fs.BoolVar(&cfg.Apply, "apply", false, "Shorthand for --mode apply")
		fs.BoolVar(&cfg.NoAuth, "no-auth", false, "Do not start interactive login flows")
		fs.StringVar(&cfg.Session, "session", "", "tmux session for login flows (default: $RIGUP_SESSION or setup)")
		fs.BoolVar(&cfg.Isolate, "isolate", false, "Append a unique suffix to the session name")
		fs.IntVar(&cfg.Wait, "wait", 0, "Seconds to wait for each login (10-900, default: $RIGUP_WAIT_SECONDS or 120)")
		fs.StringVar(&cfg.Cwd, "cwd", "", "Working directory for install commands (default: current directory)")
		fs.DurationVar(&cfg.Timeout, "timeout", 0, "Timeout per install command (default: $RIGUP_INSTALL_TIMEOUT or 5m)")
	}
	return fs
}

// parseInterspersed parses flags that may appear before or after positional
// arguments and returns the positionals in order.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// parseArgs parses the subcommand and its flags into a Config.
func parseArgs(args []string, stderr io.Writer) (*Config, error) {
	if len(args) == 0 {
		printUsage(stderr)
		return nil, errors.New("no command given")
	}
	switch args[0] {
	case "-h", "-help", "--help", "help":
		printUsage(stderr)
		return nil, flag.ErrHelp
	case "--version", "-version":
		args[0] = "version"
	}

	cfg := &Config{Command: args[0]}
	if !isCommand(cfg.Command) {
		fmt.Fprintf(stderr, "  ✗ Unknown command %q\n", cfg.Command)
		if s := suggestIDs(cfg.Command, commands); len(s) > 0 {
			fmt.Fprintf(stderr, "\n  Did you mean:\n")
			for _, c := range s {
				fmt.Fprintf(stderr, "    • %s\n", c)
			}
		}
		fmt.Fprintf(stderr, "\n  Run `rigup help` for usage.\n")
		return nil, fmt.Errorf("unknown command %q", cfg.Command)
	}

	fs := newFlagSet(cfg.Command, cfg, stderr)
	positional, err := parseInterspersed(fs, args[1:])
	if err != nil {
		return nil, err
	}
	if err := cfg.applyPositional(positional); err != nil {
		fmt.Fprintf(stderr, "  ✗ %v\n", err)
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		fmt.Fprintf(stderr, "  ✗ %v\n", err)
		return nil, err
	}
	return cfg, nil
}

func isCommand(name string) bool {
	for _, c := range commands {
		if c == name {
			return true
		}
	}
	return false
}

func (cfg *Config) applyPositional(positional []string) error {
	switch cfg.Command {
	case "setup", "health":
		if len(positional) > 1 {
			return fmt.Errorf("expected one capability, got %s", strings.Join(positional, " "))
		}
		if len(positional) == 1 {
			if cfg.Capability != "" && cfg.Capability != positional[0] {
				return fmt.Errorf("capability given twice: %q and %q", cfg.Capability, positional[0])
			}
			cfg.Capability = positional[0]
		}
		if cfg.Capability == "" {
			return errors.New("a capability is required (see `rigup list`)")
		}
	case "validate":
		if len(positional) != 1 {
			return errors.New("validate takes exactly one file or directory")
		}
		cfg.Path = positional[0]
	default:
		if len(positional) > 0 {
			return fmt.Errorf("%s takes no arguments, got %s", cfg.Command, strings.Join(positional, " "))
		}
	}
	return nil
}

// validate checks flag values that the FlagSet cannot.
func (cfg *Config) validate() error {
	if cfg.Format != "" {
		valid := false
		for _, f := range output.Formats {
			valid = valid || f == cfg.Format
		}
		if !valid {
			return fmt.Errorf("invalid --format value %q (must be text, json, or jsonl)", cfg.Format)
		}
	}
	if cfg.Command != "setup" {
		return nil
	}
	if cfg.Apply {
		if cfg.Mode != string(types.ModePlan) && cfg.Mode != string(types.ModeApply) {
			return fmt.Errorf("--apply conflicts with --mode %s", cfg.Mode)
		}
		cfg.Mode = string(types.ModeApply)
	}
	if _, ok := types.ParseSetupMode(cfg.Mode); !ok {
		return fmt.Errorf("invalid --mode value %q (must be plan or apply)", cfg.Mode)
	}
	if cfg.Wait < 0 {
		return fmt.Errorf("invalid --wait value %d (must be positive)", cfg.Wait)
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("invalid --timeout value %s (must be positive)", cfg.Timeout)
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  rigup: get an agent workspace's tools installed and logged in\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Usage: rigup <command> [options] [capability]\n\n")
	fmt.Fprintf(w, "  Commands:\n")
	fmt.Fprintf(w, "    setup <capability>      Plan or apply fixes for failing checks\n")
	fmt.Fprintf(w, "    health <capability>     Show the current check results\n")
	fmt.Fprintf(w, "    list                    List catalog capabilities and their checks\n")
	fmt.Fprintf(w, "    env                     Show the detected host and installers\n")
	fmt.Fprintf(w, "    validate <path>         Validate capability YAML without running it\n")
	fmt.Fprintf(w, "    version                 Print the rigup version\n")
	fmt.Fprintf(w, "\n  Global options:\n")
	fmt.Fprintf(w, "         --catalog <dir>      Capability catalog directory (default: built-in)\n")
	fmt.Fprintf(w, "         --env-file <file>    Read RIGUP_* settings from a dotenv file\n")
	fmt.Fprintf(w, "         --verify             Verify catalog directory integrity before loading\n")
	fmt.Fprintf(w, "         --debug              Enable debug diagnostic output\n")
	fmt.Fprintf(w, "         --no-color           Disable colored output\n")
	fmt.Fprintf(w, "\n  Setup options:\n")
	fmt.Fprintf(w, "         --mode <plan|apply>  Dry run (default) or execute\n")
	fmt.Fprintf(w, "         --apply              Shorthand for --mode apply\n")
	fmt.Fprintf(w, "         --no-auth            Report login checks as manual steps\n")
	fmt.Fprintf(w, "         --session <name>     tmux session for login flows (default: setup)\n")
	fmt.Fprintf(w, "         --isolate            Use a unique session name for this run\n")
	fmt.Fprintf(w, "         --wait <seconds>     Wait per login, 10-900 (default: 120)\n")
	fmt.Fprintf(w, "         --cwd <dir>          Working directory for install commands\n")
	fmt.Fprintf(w, "         --timeout <dur>      Timeout per install command (default: 5m)\n")
	fmt.Fprintf(w, "\n  Output options (setup, health, env):\n")
	fmt.Fprintf(w, "    -f,  --format <type>      Output format: text, json, jsonl (default: text)\n")
	fmt.Fprintf(w, "    -o,  --output <file>      Write output to file (default: stdout)\n")
	fmt.Fprintf(w, "    -q,  --quiet              Suppress output, exit code only\n")
	fmt.Fprintf(w, "    -v,  --verbose            Show passing checks and full command output\n")
	fmt.Fprintf(w, "\n  Exit codes:\n")
	fmt.Fprintf(w, "    0 ready · 1 checks still failing or usage error · 2 error · 3 login waiting\n")
	fmt.Fprintf(w, "\n  Examples:\n")
	fmt.Fprintf(w, "    rigup list                            Show available capabilities\n")
	fmt.Fprintf(w, "    rigup health github                   Check GitHub prerequisites\n")
	fmt.Fprintf(w, "    rigup setup github                    Plan what would be installed\n")
	fmt.Fprintf(w, "    rigup setup github --apply            Install and start gh login\n")
	fmt.Fprintf(w, "    rigup setup gcloud --apply --wait 300 Allow five minutes for login\n")
	fmt.Fprintf(w, "    rigup setup docker --apply -f json    JSON report for automation\n")
	fmt.Fprintf(w, "    rigup validate ./capabilities         Validate YAML without running\n")
	fmt.Fprintf(w, "\n")
}

func main() {
	cfg, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(exitOK)
	}
	if err != nil {
		os.Exit(exitUnresolved)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg, os.Stdout, os.Stderr, os.Environ())
	stop()
	os.Exit(code)
}

// run executes the parsed command and returns an exit code.
func run(ctx context.Context, cfg *Config, stdout, stderr io.Writer, environ []string) int {
	if cfg.Command == "version" {
		fmt.Fprintf(stdout, "rigup %s\n", version)
		return exitOK
	}

	a, code := newApp(cfg, stdout, stderr, environ)
	if code >= 0 {
		return code
	}
	defer func() { _ = a.log.Sync() }()

	switch cfg.Command {
	case "setup":
		return a.runSetup(ctx)
	case "health":
		return a.runHealth(ctx)
	case "list":
		return a.runList()
	case "env":
		return a.runEnv(ctx)
	case "validate":
		return a.runValidate()
	}
	return exitUnresolved
}

// unsafeOutputPrefixes are path prefixes where writing output files is rejected.
var unsafeOutputPrefixes = []string{"/etc/", "/proc/", "/sys/", "/dev/", "/boot/", "/sbin/", "/bin/", "/usr/"}

// validateOutputPath checks that the output file path is safe to write to.
func validateOutputPath(path string) error {
	cleaned := filepath.Clean(path)
	if filepath.IsAbs(cleaned) {
		for _, prefix := range unsafeOutputPrefixes {
			if strings.HasPrefix(cleaned, prefix) {
				return fmt.Errorf("refusing to write to system path %q", cleaned)
			}
		}
	}
	return nil
}
