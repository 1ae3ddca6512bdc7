package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/ancients-collective/rigup/capabilities"
	"github.com/ancients-collective/rigup/internal/config"
	sysdetect "github.com/ancients-collective/rigup/internal/context"
	"github.com/ancients-collective/rigup/internal/engine"
	"github.com/ancients-collective/rigup/internal/loader"
	"github.com/ancients-collective/rigup/internal/logging"
	"github.com/ancients-collective/rigup/internal/output"
	"github.com/ancients-collective/rigup/internal/setup"
	"github.com/ancients-collective/rigup/internal/terminal"
	"github.com/ancients-collective/rigup/internal/types"
)

// app carries what every subcommand needs once flags and settings are merged.
type app struct {
	cfg      *Config
	settings config.Settings
	log      *zap.Logger
	stdout   io.Writer
	stderr   io.Writer
	dumb     bool

	// probe overrides host installer detection in tests.
	probe sysdetect.Prober
}

// newApp loads settings and configures logging and color.
// Returns -1 as code if successful, or an exit code on failure.
func newApp(cfg *Config, stdout, stderr io.Writer, environ []string) (*app, int) {
	settings, err := config.Load(cfg.EnvFile, environ)
	if err != nil {
		fmt.Fprintf(stderr, "  ✗ %v\n", err)
		return nil, exitError
	}
	if cfg.CatalogDir == "" {
		cfg.CatalogDir = settings.CatalogDir
	}
	cfg.Debug = cfg.Debug || settings.Debug

	a := &app{
		cfg:      cfg,
		settings: settings,
		log:      logging.New(stderr, cfg.Debug),
		stdout:   stdout,
		stderr:   stderr,
		dumb:     output.IsDumbTerm(),
		probe:    sysdetect.HostProber{},
	}
	if cfg.NoColor || (cfg.Format != "" && cfg.Format != "text") || cfg.OutputFile != "" || a.dumb {
		color.NoColor = true
	}
	return a, -1
}

// warnf prints a user-facing warning unless --quiet is set.
func (a *app) warnf(format string, args ...any) {
	if !a.cfg.Quiet {
		fmt.Fprintf(a.stderr, "  ⚠ "+format+"\n", args...)
	}
}

// errorf prints a user-facing error unless --quiet is set.
func (a *app) errorf(format string, args ...any) {
	if !a.cfg.Quiet {
		fmt.Fprintf(a.stderr, "  ✗ "+format+"\n", args...)
	}
}

func (a *app) newRegistry() *engine.FunctionRegistry {
	return engine.NewFunctionRegistry(engine.NewAllowlistExecutor())
}

// detectSystem detects the host context.
// Returns -1 as code if successful, or an exit code on failure.
func (a *app) detectSystem() (types.SystemContext, int) {
	sys, warnings, err := sysdetect.DetectSystemContext(sysdetect.NewOSDetector(a.log))
	if err != nil {
		a.errorf("Failed to detect system context: %v", err)
		return sys, exitError
	}
	for _, w := range warnings {
		a.warnf("%s", w)
	}
	return sys, -1
}

// loadCatalog loads the configured catalog, or the built-in one.
// Returns -1 as code if successful, or an exit code on failure.
func (a *app) loadCatalog(registry *engine.FunctionRegistry) ([]types.CapabilityDefinition, int) {
	ldr := loader.New(registry)

	var (
		caps   []types.CapabilityDefinition
		errs   []error
		source = "built-in catalog"
	)
	if dir := a.cfg.CatalogDir; dir != "" {
		source = dir
		if a.cfg.Verify {
			if warnings := engine.VerifyCatalogDirectory(dir); len(warnings) > 0 {
				for _, w := range warnings {
					a.errorf("%s", w)
				}
				a.errorf("Aborting: catalog directory failed integrity verification")
				return nil, exitError
			}
		}
		caps, errs = ldr.LoadDirectory(dir)
	} else {
		if a.cfg.Verify {
			a.log.Debug("--verify ignored for the built-in catalog")
		}
		caps, errs = ldr.LoadFromFS(capabilities.FS)
	}

	for _, e := range errs {
		a.warnf("Load error: %v", e)
	}
	if len(caps) == 0 {
		a.errorf("No capabilities found in %s", source)
		return nil, exitError
	}
	a.log.Debug("catalog loaded", zap.String("source", source), zap.Int("capabilities", len(caps)))
	return caps, -1
}

// requireCapability reports an unknown id with suggestions.
func (a *app) requireCapability(caps []types.CapabilityDefinition) bool {
	ids := make([]string, len(caps))
	for i, c := range caps {
		if c.ID == a.cfg.Capability {
			return true
		}
		ids[i] = c.ID
	}
	a.errorf("No capability found with ID %q", a.cfg.Capability)
	if a.cfg.Quiet {
		return false
	}
	if suggestions := suggestIDs(a.cfg.Capability, ids); len(suggestions) > 0 {
		fmt.Fprintf(a.stderr, "\n  Did you mean:\n")
		for _, s := range suggestions {
			fmt.Fprintf(a.stderr, "    • %s\n", s)
		}
	}
	fmt.Fprintf(a.stderr, "\n  Use `rigup list` to see all available capabilities.\n")
	return false
}

// ─── setup ───────────────────────────────────────────────────────────

func (a *app) runSetup(ctx context.Context) int {
	start := time.Now()

	sys, code := a.detectSystem()
	if code >= 0 {
		return code
	}
	registry := a.newRegistry()
	caps, code := a.loadCatalog(registry)
	if code >= 0 {
		return code
	}
	if !a.requireCapability(caps) {
		return exitUnresolved
	}

	installEnv := sysdetect.DetectInstallEnvironment(ctx, a.probe)
	health := engine.NewHealthService(caps, registry, sys, a.log)

	session := a.cfg.Session
	if session == "" {
		session = a.settings.SessionName
	}
	if a.cfg.Isolate {
		session += "-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
	}
	wait := a.cfg.Wait
	if wait == 0 {
		wait = a.settings.WaitSeconds
	}
	timeout := a.cfg.Timeout
	if timeout == 0 {
		timeout = a.settings.InstallTimeout
	}

	opts := []setup.Option{
		setup.WithEnvironmentDetector(func(context.Context) types.InstallEnvironment { return installEnv }),
		setup.WithPollInterval(a.settings.PollInterval),
		setup.WithLogger(a.log),
	}
	if a.showProgress() {
		opts = append(opts, setup.WithStepObserver(a.progress))
	}
	orch := setup.New(health, setup.NewShellRunner(a.log), terminal.NewTmux(a.settings.TmuxBinary, a.log), opts...)

	mode, _ := types.ParseSetupMode(a.cfg.Mode)
	if a.showProgress() {
		fmt.Fprintf(a.stderr, "\n  ▸ Checking %s (%s mode) ...\n", a.cfg.Capability, mode)
	}
	res, err := orch.Run(ctx, setup.Request{
		CapabilityID:   a.cfg.Capability,
		Mode:           mode,
		SkipAuthFlow:   a.cfg.NoAuth,
		SessionName:    session,
		WaitSeconds:    wait,
		Cwd:            a.cfg.Cwd,
		InstallTimeout: timeout,
	})
	if err != nil {
		a.errorf("Setup failed: %v", err)
		return exitError
	}

	report := &types.SetupReport{
		Version:     version,
		RunID:       uuid.NewString(),
		Timestamp:   start,
		System:      types.NewReportSystem(sys),
		Environment: installEnv,
		DurationMS:  time.Since(start).Milliseconds(),
		Result:      res,
	}
	code = setupExitCode(res)
	if a.cfg.Quiet {
		return code
	}
	if wc := a.writeReport(func(f output.Formatter, w io.Writer) error { return f.WriteSetup(w, report) }); wc >= 0 {
		return wc
	}
	if a.cfg.OutputFile != "" {
		fmt.Fprintf(a.stderr, "  ✓ %s: written to %s\n", res.Summary, a.cfg.OutputFile)
	}
	return code
}

// setupExitCode maps a result to the process exit code.
func setupExitCode(res *types.SetupResult) int {
	switch {
	case res.OK:
		return exitOK
	case res.RequiresUserInput:
		return exitUserInput
	default:
		return exitUnresolved
	}
}

func (a *app) showProgress() bool {
	return a.cfg.Format == "text" && !a.cfg.Quiet && a.cfg.OutputFile == ""
}

// progress prints one line per step as the run advances.
func (a *app) progress(s types.SetupStep) {
	fmt.Fprintf(a.stderr, "    %s %-16s %s\n", progressIcon(s.Status, a.dumb), s.CheckID, s.Status)
}

func progressIcon(s types.StepStatus, dumb bool) string {
	icons := map[types.StepStatus][2]string{
		types.StepCompleted: {"✓", "+"},
		types.StepFailed:    {"✗", "x"},
		types.StepPending:   {"◷", "~"},
		types.StepPlanned:   {"ℹ", "i"},
		types.StepSkipped:   {"○", "-"},
	}
	pair, ok := icons[s]
	if !ok {
		return "?"
	}
	if dumb {
		return pair[1]
	}
	return pair[0]
}

// ─── health ──────────────────────────────────────────────────────────

func (a *app) runHealth(ctx context.Context) int {
	sys, code := a.detectSystem()
	if code >= 0 {
		return code
	}
	registry := a.newRegistry()
	caps, code := a.loadCatalog(registry)
	if code >= 0 {
		return code
	}
	if !a.requireCapability(caps) {
		return exitUnresolved
	}

	result, err := engine.NewHealthService(caps, registry, sys, a.log).Health(ctx, a.cfg.Capability)
	if err != nil {
		a.errorf("Health check failed: %v", err)
		return exitError
	}

	code = exitOK
	if len(result.Missing()) > 0 {
		code = exitUnresolved
	}
	if a.cfg.Quiet {
		return code
	}

	report := &types.HealthReport{
		Version:   version,
		Timestamp: result.CheckedAt,
		System:    types.NewReportSystem(sys),
		Health:    result,
	}
	if wc := a.writeReport(func(f output.Formatter, w io.Writer) error { return f.WriteHealth(w, report) }); wc >= 0 {
		return wc
	}
	return code
}

// ─── list ────────────────────────────────────────────────────────────

func (a *app) runList() int {
	caps, code := a.loadCatalog(a.newRegistry())
	if code >= 0 {
		return code
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i].ID < caps[j].ID })

	maxID := 0
	for _, c := range caps {
		maxID = max(maxID, len(c.ID))
	}

	fmt.Fprintf(a.stdout, "\n  Available capabilities (%d):\n\n", len(caps))
	for _, c := range caps {
		fmt.Fprintf(a.stdout, "    %-*s  %s\n", maxID, c.ID, c.Name)
		checks := make([]string, len(c.Checks))
		for i, chk := range c.Checks {
			checks[i] = chk.ID
			if !chk.IsRequired() {
				checks[i] += " (optional)"
			}
		}
		fmt.Fprintf(a.stdout, "    %-*s  %s\n", maxID, "", color.New(color.Faint).Sprint(strings.Join(checks, ", ")))
	}
	fmt.Fprintln(a.stdout)
	return exitOK
}

// ─── env ─────────────────────────────────────────────────────────────

func (a *app) runEnv(ctx context.Context) int {
	sys, code := a.detectSystem()
	if code >= 0 {
		return code
	}
	report := struct {
		Version     string                   `json:"version"`
		System      types.ReportSystem       `json:"system"`
		Environment types.InstallEnvironment `json:"environment"`
		Settings    envSettings              `json:"settings"`
	}{
		Version:     version,
		System:      types.NewReportSystem(sys),
		Environment: sysdetect.DetectInstallEnvironment(ctx, a.probe),
		Settings: envSettings{
			Catalog:        a.cfg.CatalogDir,
			Session:        a.settings.SessionName,
			WaitSeconds:    config.ClampWait(a.settings.WaitSeconds),
			InstallTimeout: a.settings.InstallTimeout.String(),
			PollInterval:   a.settings.PollInterval.String(),
			Tmux:           a.settings.TmuxBinary,
		},
	}
	if a.cfg.Quiet {
		return exitOK
	}

	w, closeFn, code := a.openOutput()
	if code >= 0 {
		return code
	}
	defer closeFn()

	if a.cfg.Format == "json" || a.cfg.Format == "jsonl" {
		enc := json.NewEncoder(w)
		if a.cfg.Format == "json" {
			enc.SetIndent("", "  ")
		}
		if err := enc.Encode(report); err != nil {
			a.errorf("Failed to write output: %v", err)
			return exitError
		}
		return exitOK
	}

	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}
	catalog := report.Settings.Catalog
	if catalog == "" {
		catalog = "(built-in)"
	}
	s, e := report.System, report.Environment
	fmt.Fprintf(w, "\n  Host\n")
	fmt.Fprintf(w, "    Hostname:   %s\n", s.Hostname)
	fmt.Fprintf(w, "    OS:         %s %s (%s)\n", s.OS, s.OSVersion, s.Arch)
	if s.DistroID != "" {
		fmt.Fprintf(w, "    Distro:     %s %s\n", s.DistroID, s.DistroVersion)
	}
	fmt.Fprintf(w, "    Env:        %s %s\n", s.EnvType, s.EnvRuntime)
	fmt.Fprintf(w, "\n  Installers\n")
	fmt.Fprintf(w, "    Homebrew:   %s\n", yesNo(e.HasHomebrew))
	fmt.Fprintf(w, "    apt-get:    %s\n", yesNo(e.HasApt))
	fmt.Fprintf(w, "    curl:       %s\n", yesNo(e.HasCurl))
	fmt.Fprintf(w, "    Privileged: %s\n", yesNo(e.IsPrivileged))
	fmt.Fprintf(w, "    Uses sudo:  %s\n", yesNo(e.UseSudo))
	fmt.Fprintf(w, "\n  Settings\n")
	fmt.Fprintf(w, "    Catalog:    %s\n", catalog)
	fmt.Fprintf(w, "    Session:    %s\n", report.Settings.Session)
	fmt.Fprintf(w, "    Wait:       %ds\n", report.Settings.WaitSeconds)
	fmt.Fprintf(w, "    Timeout:    %s\n", report.Settings.InstallTimeout)
	fmt.Fprintf(w, "    Poll:       %s\n", report.Settings.PollInterval)
	fmt.Fprintf(w, "    tmux:       %s\n\n", report.Settings.Tmux)
	return exitOK
}

type envSettings struct {
	Catalog        string `json:"catalog,omitempty"`
	Session        string `json:"session"`
	WaitSeconds    int    `json:"wait_seconds"`
	InstallTimeout string `json:"install_timeout"`
	PollInterval   string `json:"poll_interval"`
	Tmux           string `json:"tmux"`
}

// ─── validate ────────────────────────────────────────────────────────

// runValidate validates capability YAML without evaluating any check.
func (a *app) runValidate() int {
	ldr := loader.New(a.newRegistry())
	path := a.cfg.Path

	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(a.stderr, "  ✗ Cannot access %q: %v\n", path, err)
		return exitUnresolved
	}

	if info.IsDir() {
		if errs := ldr.ValidateDirectory(path); len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintf(a.stderr, "  ✗ %v\n", e)
			}
			fmt.Fprintf(a.stderr, "\n  Validation failed: %d error(s)\n", len(errs))
			return exitUnresolved
		}
		fmt.Fprintf(a.stdout, "  ✓ All capabilities in %s are valid\n", path)
		return exitOK
	}

	if err := ldr.ValidateOnly(path); err != nil {
		fmt.Fprintf(a.stderr, "  ✗ %v\n", err)
		return exitUnresolved
	}
	fmt.Fprintf(a.stdout, "  ✓ %s is valid\n", path)
	return exitOK
}

// ─── output ──────────────────────────────────────────────────────────

// openOutput returns stdout or the --output file.
// Returns -1 as code if successful, or an exit code on failure.
func (a *app) openOutput() (io.Writer, func(), int) {
	if a.cfg.OutputFile == "" {
		return a.stdout, func() {}, -1
	}
	if err := validateOutputPath(a.cfg.OutputFile); err != nil {
		a.errorf("Unsafe output path: %v", err)
		return nil, nil, exitUnresolved
	}
	f, err := os.Create(a.cfg.OutputFile)
	if err != nil {
		a.errorf("Failed to create output file: %v", err)
		return nil, nil, exitError
	}
	return f, func() {
		if err := f.Close(); err != nil {
			a.log.Warn("closing output file", zap.String("path", a.cfg.OutputFile), zap.Error(err))
		}
	}, -1
}

// writeReport renders with the configured formatter.
// Returns -1 on success, or an exit code on failure.
func (a *app) writeReport(render func(output.Formatter, io.Writer) error) int {
	formatter, err := output.ForFormat(a.cfg.Format, output.TextFormatter{
		Verbose: a.cfg.Verbose,
		Width:   a.termWidth(),
		Dumb:    a.dumb,
	})
	if err != nil {
		a.errorf("%v", err)
		return exitUnresolved
	}

	w, closeFn, code := a.openOutput()
	if code >= 0 {
		return code
	}
	defer closeFn()

	if err := render(formatter, w); err != nil {
		a.errorf("Failed to write output: %v", err)
		return exitError
	}
	return -1
}

func (a *app) termWidth() int {
	if a.cfg.OutputFile != "" || a.cfg.Format != "text" {
		return 0
	}
	f, ok := a.stdout.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
		return w
	}
	return 0
}
