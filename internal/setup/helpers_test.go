package setup

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ancients-collective/rigup/internal/types"
)

// scriptedHealth returns snapshots in order and repeats the last one.
type scriptedHealth struct {
	mu        sync.Mutex
	snapshots []types.HealthResult
	errs      []error
	calls     int
}

func (s *scriptedHealth) Health(_ context.Context, capabilityID string) (types.HealthResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return types.HealthResult{}, s.errs[i]
	}
	if i >= len(s.snapshots) {
		i = len(s.snapshots) - 1
	}
	res := s.snapshots[i]
	res.Capability = capabilityID
	return res, nil
}

func (s *scriptedHealth) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var errUnavailable = errors.New("health backend unavailable")

type runCall struct {
	command string
	dir     string
	timeout time.Duration
}

type recordingRunner struct {
	calls  []runCall
	result RunResult
}

func (r *recordingRunner) Run(_ context.Context, command, dir string, timeout time.Duration) RunResult {
	r.calls = append(r.calls, runCall{command: command, dir: dir, timeout: timeout})
	return r.result
}

type recordingBridge struct {
	ensured []string
	sent    []string
	err     error
}

func (b *recordingBridge) EnsureSession(_ context.Context, name string) (Session, error) {
	b.ensured = append(b.ensured, name)
	if b.err != nil {
		return Session{}, b.err
	}
	return Session{Name: name, Target: name + ":0.0", AttachCommand: "tmux attach -t " + name}, nil
}

func (b *recordingBridge) SendCommand(_ context.Context, _ Session, command string) error {
	b.sent = append(b.sent, command)
	return nil
}

// fakeClock advances only when Sleep is called.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
	cancel context.CancelFunc
	// cancelAfter cancels via cancel once this many sleeps have happened.
	cancelAfter int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	if c.cancel != nil && len(c.sleeps) >= c.cancelAfter {
		c.cancel()
		return context.Canceled
	}
	return nil
}

func (c *fakeClock) Elapsed(start time.Time) time.Duration { return c.now.Sub(start) }

func check(id string, required, ok bool) types.HealthCheck {
	return types.HealthCheck{ID: id, Label: id + " label", Required: required, OK: ok}
}

func snapshot(checks ...types.HealthCheck) types.HealthResult {
	return types.HealthResult{Checks: checks}
}

func resolverFor(available ...string) Resolver {
	return func(candidates []string) (string, bool) {
		for _, c := range candidates {
			for _, a := range available {
				if c == a {
					return c, true
				}
			}
		}
		return "", false
	}
}

func brewEnv(context.Context) types.InstallEnvironment {
	return types.InstallEnvironment{HasHomebrew: true, HasCurl: true}
}
