// Package terminal drives tmux so interactive login commands run in a
// session an operator can attach to.
package terminal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ancients-collective/rigup/internal/setup"
)

// commandTimeout bounds each tmux invocation.
const commandTimeout = 10 * time.Second

var sessionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ErrInvalidSessionName is returned for names tmux would misparse as targets.
var ErrInvalidSessionName = errors.New("invalid session name")

// runFunc executes the tmux binary with args and returns combined output.
type runFunc func(ctx context.Context, binary string, args ...string) ([]byte, error)

// Tmux implements setup.SessionBridge on top of the tmux CLI.
type Tmux struct {
	binary string
	run    runFunc
	log    *zap.Logger
}

// NewTmux returns a bridge using binary ("tmux" when empty).
func NewTmux(binary string, log *zap.Logger) *Tmux {
	if binary == "" {
		binary = "tmux"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Tmux{binary: binary, run: execTmux, log: log}
}

func execTmux(ctx context.Context, binary string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// paneFormat prints the fully qualified address of the session's active pane.
const paneFormat = "#{session_name}:#{window_index}.#{pane_index}"

// EnsureSession creates a detached session named name unless one exists.
// The returned Target is the session's active pane as tmux reports it, so
// base-index and pane-base-index settings are honored.
func (t *Tmux) EnsureSession(ctx context.Context, name string) (setup.Session, error) {
	if !sessionNamePattern.MatchString(name) {
		return setup.Session{}, fmt.Errorf("%w: %q", ErrInvalidSessionName, name)
	}

	if _, err := t.run(ctx, t.binary, "has-session", "-t", "="+name); err == nil {
		t.log.Debug("reusing tmux session", zap.String("session", name))
	} else {
		out, err := t.run(ctx, t.binary, "new-session", "-d", "-s", name)
		if err != nil {
			return setup.Session{}, t.wrap("new-session", out, err)
		}
		t.log.Info("created tmux session", zap.String("session", name))
	}

	return setup.Session{
		Name:          name,
		Target:        t.activePane(ctx, name),
		AttachCommand: fmt.Sprintf("%s attach -t %s", t.binary, name),
	}, nil
}

// activePane resolves the session's active pane. When tmux cannot report it,
// the session-relative target "=name:" is used; tmux maps that to the same pane.
func (t *Tmux) activePane(ctx context.Context, name string) string {
	fallback := "=" + name + ":"
	out, err := t.run(ctx, t.binary, "display-message", "-p", "-t", fallback, paneFormat)
	pane := strings.TrimSpace(string(out))
	if err != nil || pane == "" || strings.ContainsAny(pane, " \n") {
		t.log.Debug("could not resolve active pane", zap.String("session", name), zap.Error(err))
		return fallback
	}
	return pane
}

// SendCommand types command literally into the session's pane and presses Enter.
func (t *Tmux) SendCommand(ctx context.Context, s setup.Session, command string) error {
	if out, err := t.run(ctx, t.binary, "send-keys", "-t", s.Target, "-l", command); err != nil {
		return t.wrap("send-keys", out, err)
	}
	if out, err := t.run(ctx, t.binary, "send-keys", "-t", s.Target, "Enter"); err != nil {
		return t.wrap("send-keys", out, err)
	}
	t.log.Debug("sent command", zap.String("target", s.Target), zap.String("command", command))
	return nil
}

func (t *Tmux) wrap(op string, out []byte, err error) error {
	if msg := strings.TrimSpace(string(out)); msg != "" {
		return fmt.Errorf("tmux %s: %s: %w", op, msg, err)
	}
	return fmt.Errorf("tmux %s: %w", op, err)
}
