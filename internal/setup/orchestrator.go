// Package setup brings a capability's prerequisites up to date: it selects
// install and login commands for failing health checks, runs them, and
// reports each action as a step.
//
// Runs for the same capability must be serialized by the caller; two
// concurrent runs may both act on the same missing check.
package setup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ancients-collective/rigup/internal/config"
	"github.com/ancients-collective/rigup/internal/types"
)

// Summaries reported in SetupResult.Summary.
const (
	SummaryAlreadySatisfied = "All prerequisites are already satisfied"
	SummarySatisfied        = "All required prerequisites are satisfied"
	SummaryNeedsUserInput   = "Setup is partially complete. User input is still required"
	SummaryUnresolved       = "Setup finished with unresolved checks"
)

const (
	// DefaultSessionName is used when a request names no terminal session.
	DefaultSessionName = "setup"

	msgNoAutomation = "No automated action is available for this check"
	msgCanceled     = "Setup was canceled before this check was processed"
)

// Request describes one orchestrator run.
type Request struct {
	CapabilityID string
	Mode         types.SetupMode

	// SkipAuthFlow disables interactive login steps; failing auth checks are
	// then reported as manual.
	SkipAuthFlow bool

	// SessionName defaults to DefaultSessionName.
	SessionName string

	// WaitSeconds bounds each auth wait. Zero means 120; other values are
	// clamped to [10, 900].
	WaitSeconds int

	// Cwd is where install commands run. Empty means the process directory.
	Cwd string

	// InstallTimeout defaults to DefaultInstallTimeout.
	InstallTimeout time.Duration
}

// StepObserver is told about each step as soon as it is recorded.
type StepObserver func(types.SetupStep)

// Orchestrator runs the setup state machine. It holds no per-run state and
// may be shared between runs for different capabilities.
type Orchestrator struct {
	health  HealthSource
	runner  CommandRunner
	bridge  SessionBridge
	poller  *Poller
	detect  func(context.Context) types.InstallEnvironment
	resolve Resolver
	observe StepObserver
	log     *zap.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithEnvironmentDetector sets how the install environment is probed.
func WithEnvironmentDetector(fn func(context.Context) types.InstallEnvironment) Option {
	return func(o *Orchestrator) { o.detect = fn }
}

// WithResolver replaces PathResolver for auth command selection.
func WithResolver(r Resolver) Option {
	return func(o *Orchestrator) { o.resolve = r }
}

// WithClock replaces the poller's clock.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.poller.clock = c }
}

// WithPollInterval replaces DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.poller.interval = d
		}
	}
}

// WithLogger sets the logger for the orchestrator and its poller.
func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
			o.poller.log = log
		}
	}
}

// WithStepObserver registers a callback for progress reporting.
func WithStepObserver(fn StepObserver) Option {
	return func(o *Orchestrator) { o.observe = fn }
}

// New builds an Orchestrator. The bridge may be nil when auth flows are
// never run; auth steps then fail with an explanatory message.
func New(health HealthSource, runner CommandRunner, bridge SessionBridge, opts ...Option) *Orchestrator {
	log := zap.NewNop()
	o := &Orchestrator{
		health:  health,
		runner:  runner,
		bridge:  bridge,
		poller:  &Poller{source: health, clock: realClock{}, interval: DefaultPollInterval, log: log},
		detect:  func(context.Context) types.InstallEnvironment { return types.InstallEnvironment{} },
		resolve: PathResolver,
		observe: func(types.SetupStep) {},
		log:     log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// normalize fills defaults and rejects requests no run can serve.
func (req Request) normalize() (Request, error) {
	if req.CapabilityID == "" {
		return req, errors.New("capability id must not be empty")
	}
	if req.Mode == "" {
		req.Mode = types.ModePlan
	}
	if _, ok := types.ParseSetupMode(string(req.Mode)); !ok {
		return req, fmt.Errorf("invalid mode %q (must be plan or apply)", req.Mode)
	}
	if req.SessionName == "" {
		req.SessionName = DefaultSessionName
	}
	req.WaitSeconds = config.ClampWait(req.WaitSeconds)
	if req.Cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			req.Cwd = wd
		}
	}
	if req.InstallTimeout <= 0 {
		req.InstallTimeout = DefaultInstallTimeout
	}
	return req, nil
}

// run carries the mutable state of one invocation.
type run struct {
	req         Request
	env         types.InstallEnvironment
	latest      types.HealthResult
	steps       []types.SetupStep
	authSession Session
}

// Run brings one capability's required checks up to date. Expected failures
// are reported as step statuses; an error is returned only for an invalid
// request or when the baseline health query fails.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*types.SetupResult, error) {
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}

	before, err := o.health.Health(ctx, req.CapabilityID)
	if err != nil {
		return nil, fmt.Errorf("baseline health for %s: %w", req.CapabilityID, err)
	}

	missing := before.Missing()
	if len(missing) == 0 {
		return &types.SetupResult{
			Capability:      req.CapabilityID,
			Mode:            req.Mode,
			OK:              true,
			Before:          before,
			After:           before,
			Steps:           []types.SetupStep{},
			RemainingChecks: []types.HealthCheck{},
			Summary:         SummaryAlreadySatisfied,
		}, nil
	}

	r := &run{req: req, env: o.detect(ctx), latest: before}
	o.log.Debug("setup starting",
		zap.String("capability", req.CapabilityID),
		zap.String("mode", string(req.Mode)),
		zap.Int("missing", len(missing)),
		zap.Bool("homebrew", r.env.HasHomebrew),
		zap.Bool("apt", r.env.HasApt),
		zap.Bool("privileged", r.env.IsPrivileged))

	for _, check := range missing {
		if ctx.Err() != nil {
			o.record(r, types.SetupStep{
				CheckID: check.ID,
				Label:   check.Label,
				Kind:    types.KindManual,
				Status:  types.StepSkipped,
				Message: msgCanceled,
			})
			continue
		}
		o.record(r, o.handle(ctx, r, check))
	}

	return o.finish(r, before), nil
}

func (o *Orchestrator) record(r *run, step types.SetupStep) {
	r.steps = append(r.steps, step)
	o.observe(step)
}

// handle produces the single step for one missing check: install if a
// command exists, else auth if enabled and available, else manual.
func (o *Orchestrator) handle(ctx context.Context, r *run, check types.HealthCheck) types.SetupStep {
	id := CheckID(check.ID)

	if cmd, ok := SelectInstallCommand(id, r.env); ok {
		return o.install(ctx, r, check, cmd)
	}
	if !r.req.SkipAuthFlow {
		if cmd, ok := SelectAuthCommand(id, o.resolve); ok {
			return o.auth(ctx, r, check, cmd)
		}
	}

	msg := check.Hint
	if msg == "" {
		msg = check.Message
	}
	if msg == "" {
		msg = msgNoAutomation
	}
	return types.SetupStep{
		CheckID: check.ID,
		Label:   check.Label,
		Kind:    types.KindManual,
		Status:  types.StepSkipped,
		Message: msg,
	}
}

func (o *Orchestrator) install(ctx context.Context, r *run, check types.HealthCheck, cmd string) types.SetupStep {
	step := types.SetupStep{
		CheckID: check.ID,
		Label:   check.Label,
		Kind:    types.KindInstall,
		Status:  types.StepPlanned,
		Command: cmd,
	}
	if r.req.Mode == types.ModePlan {
		step.Message = "Will run in apply mode"
		return step
	}

	o.log.Info("installing", zap.String("check", check.ID), zap.String("command", cmd))
	res := o.runner.Run(ctx, cmd, r.req.Cwd, r.req.InstallTimeout)
	step.OutputTail = Truncate(joinOutput(res.Stdout, res.Stderr), OutputBudget)

	o.refresh(ctx, r)

	if !res.OK {
		step.Status = types.StepFailed
		step.Message = res.ErrorMessage
		return step
	}
	step.Status = types.StepCompleted
	if r.latest.CheckPassed(check.ID) {
		step.Message = "Installed"
	} else {
		step.Message = "Install command succeeded but the check still fails; a new shell may be needed to pick up PATH changes"
	}
	return step
}

func (o *Orchestrator) auth(ctx context.Context, r *run, check types.HealthCheck, cmd string) types.SetupStep {
	step := types.SetupStep{
		CheckID: check.ID,
		Label:   check.Label,
		Kind:    types.KindAuth,
		Status:  types.StepPlanned,
		Command: cmd,
	}
	if r.req.Mode == types.ModePlan {
		step.Message = fmt.Sprintf("Will start the login in terminal session %q in apply mode", r.req.SessionName)
		return step
	}

	if o.bridge == nil {
		step.Status = types.StepFailed
		step.Message = "No terminal session support is configured for interactive login"
		return step
	}
	sess, err := o.bridge.EnsureSession(ctx, r.req.SessionName)
	if err != nil {
		step.Status = types.StepFailed
		step.Message = fmt.Sprintf("Could not open terminal session %q: %v", r.req.SessionName, err)
		return step
	}
	if err := o.bridge.SendCommand(ctx, sess, cmd); err != nil {
		step.Status = types.StepFailed
		step.Message = fmt.Sprintf("Could not start login in session %q: %v", sess.Name, err)
		return step
	}
	// Last one wins when several auth steps run.
	r.authSession = sess

	wait := time.Duration(r.req.WaitSeconds) * time.Second
	o.log.Info("waiting for login",
		zap.String("check", check.ID),
		zap.String("session", sess.Name),
		zap.Duration("wait", wait))
	poll := o.poller.WaitForCheck(ctx, r.req.CapabilityID, check.ID, wait)
	if poll.Latest.Capability != "" {
		r.latest = poll.Latest
	}

	if poll.Passed {
		step.Status = types.StepCompleted
		step.Message = "Authentication completed"
		return step
	}
	step.Status = types.StepPending
	step.Message = fmt.Sprintf("Waiting for login in session %s (target %s). Attach with `%s`, finish the prompt, then run setup again",
		sess.Name, sess.Target, sess.AttachCommand)
	return step
}

// refresh replaces the latest snapshot. A failed query keeps the previous one.
func (o *Orchestrator) refresh(ctx context.Context, r *run) {
	h, err := o.health.Health(ctx, r.req.CapabilityID)
	if err != nil {
		o.log.Warn("health refresh failed; keeping previous snapshot",
			zap.String("capability", r.req.CapabilityID), zap.Error(err))
		return
	}
	r.latest = h
}

func (o *Orchestrator) finish(r *run, before types.HealthResult) *types.SetupResult {
	after := r.latest
	if r.req.Mode == types.ModePlan {
		after = before
	}

	res := &types.SetupResult{
		Capability:      r.req.CapabilityID,
		Mode:            r.req.Mode,
		Before:          before,
		After:           after,
		Steps:           r.steps,
		RemainingChecks: after.Missing(),
		AuthSession:     r.authSession.Name,
		AuthTarget:      r.authSession.Target,
	}
	if res.RemainingChecks == nil {
		res.RemainingChecks = []types.HealthCheck{}
	}
	res.OK = len(res.RemainingChecks) == 0
	for _, s := range r.steps {
		if s.Kind == types.KindAuth && s.Status == types.StepPending {
			res.RequiresUserInput = true
			break
		}
	}

	switch {
	case r.req.Mode == types.ModePlan:
		res.Summary = fmt.Sprintf("Planned %d action(s)", res.CountStatus(types.StepPlanned))
	case res.OK:
		res.Summary = SummarySatisfied
	case res.RequiresUserInput:
		res.Summary = SummaryNeedsUserInput
	default:
		res.Summary = SummaryUnresolved
	}
	return res
}

func joinOutput(stdout, stderr string) string {
	switch {
	case stdout == "":
		return stderr
	case stderr == "":
		return stdout
	}
	return stdout + "\n" + stderr
}
