package setup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	// DefaultInstallTimeout bounds a single install command.
	DefaultInstallTimeout = 300 * time.Second

	// OutputBudget is the number of characters kept per captured stream.
	OutputBudget = 4000

	// waitDelay is how long Wait keeps draining pipes after the process
	// group has been killed.
	waitDelay = 3 * time.Second
)

// RunResult is the outcome of one shell command. A failing command is
// reported here, never as a Go error.
type RunResult struct {
	OK           bool
	Stdout       string
	Stderr       string
	ErrorMessage string
	ExitCode     int
	Duration     time.Duration
}

// CommandRunner executes one command line to completion or timeout.
type CommandRunner interface {
	Run(ctx context.Context, command, dir string, timeout time.Duration) RunResult
}

// ShellRunner runs command lines through `sh -c` in their own process group,
// so a timeout kills installers together with the children they spawn.
// Command lines come from the fixed selector table, never from user input.
type ShellRunner struct {
	shell string
	log   *zap.Logger
}

// NewShellRunner returns a runner using sh from PATH. A nil logger discards output.
func NewShellRunner(log *zap.Logger) *ShellRunner {
	if log == nil {
		log = zap.NewNop()
	}
	return &ShellRunner{shell: "sh", log: log}
}

// Run executes command in dir. A zero timeout selects DefaultInstallTimeout.
func (r *ShellRunner) Run(ctx context.Context, command, dir string, timeout time.Duration) RunResult {
	if timeout <= 0 {
		timeout = DefaultInstallTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.shell, "-c", command)
	cmd.Dir = dir
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	r.log.Debug("running command", zap.String("command", command), zap.String("dir", dir), zap.Duration("timeout", timeout))
	err := cmd.Run()

	res := RunResult{
		Stdout:   Truncate(stdout.String(), OutputBudget),
		Stderr:   Truncate(stderr.String(), OutputBudget),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case err == nil, errors.Is(err, exec.ErrWaitDelay) && res.ExitCode == 0:
		// A background child holding the pipes open is not a failure.
		res.OK = true
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.ErrorMessage = fmt.Sprintf("command timed out after %s", timeout)
	case errors.Is(ctx.Err(), context.Canceled):
		res.ErrorMessage = "command canceled"
	default:
		res.ErrorMessage = err.Error()
	}

	r.log.Debug("command finished",
		zap.String("command", command),
		zap.Bool("ok", res.OK),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration))
	return res
}

// Truncate cuts s to budget characters and appends a marker naming how many
// characters were dropped. Strings within budget are returned unchanged.
func Truncate(s string, budget int) string {
	n := utf8.RuneCountInString(s)
	if n <= budget {
		return s
	}
	runes := []rune(s)
	return string(runes[:budget]) + fmt.Sprintf("...[truncated %d chars]...", n-budget)
}
