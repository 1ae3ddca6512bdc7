package terminal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ancients-collective/rigup/internal/setup"
)

var _ setup.SessionBridge = (*Tmux)(nil)

type fakeTmux struct {
	calls    []string
	sessions map[string]bool
	failOn   string
	// pane is what display-message prints; empty makes it fail.
	pane string
}

func (f *fakeTmux) run(_ context.Context, binary string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, binary+" "+strings.Join(args, " "))
	if f.failOn != "" && args[0] == f.failOn {
		return []byte("server exited unexpectedly\n"), errors.New("exit status 1")
	}
	switch args[0] {
	case "has-session":
		if !f.sessions[strings.TrimPrefix(args[2], "=")] {
			return []byte("can't find session"), errors.New("exit status 1")
		}
	case "new-session":
		f.sessions[args[3]] = true
	case "display-message":
		if f.pane == "" {
			return []byte("no current client"), errors.New("exit status 1")
		}
		return []byte(f.pane + "\n"), nil
	}
	return nil, nil
}

func newFake(t *testing.T, existing ...string) (*Tmux, *fakeTmux) {
	t.Helper()
	f := &fakeTmux{sessions: map[string]bool{}, pane: "setup:0.0"}
	for _, s := range existing {
		f.sessions[s] = true
	}
	tm := NewTmux("", nil)
	tm.run = f.run
	return tm, f
}

func TestEnsureSession_CreatesWhenAbsent(t *testing.T) {
	tm, f := newFake(t)

	sess, err := tm.EnsureSession(context.Background(), "setup")

	require.NoError(t, err)
	assert.Equal(t, setup.Session{Name: "setup", Target: "setup:0.0", AttachCommand: "tmux attach -t setup"}, sess)
	assert.Equal(t, []string{
		"tmux has-session -t =setup",
		"tmux new-session -d -s setup",
		"tmux display-message -p -t =setup: " + paneFormat,
	}, f.calls)
}

func TestEnsureSession_HonorsBaseIndex(t *testing.T) {
	tm, f := newFake(t)
	f.pane = "setup:1.1"

	sess, err := tm.EnsureSession(context.Background(), "setup")
	require.NoError(t, err)
	assert.Equal(t, "setup:1.1", sess.Target)

	require.NoError(t, tm.SendCommand(context.Background(), sess, "az login"))
	assert.Contains(t, f.calls, "tmux send-keys -t setup:1.1 -l az login")
}

func TestEnsureSession_FallsBackToSessionTarget(t *testing.T) {
	tm, f := newFake(t, "setup")
	f.pane = ""

	sess, err := tm.EnsureSession(context.Background(), "setup")

	require.NoError(t, err)
	assert.Equal(t, "=setup:", sess.Target)
}

func TestEnsureSession_ReusesExisting(t *testing.T) {
	tm, f := newFake(t, "setup")

	first, err := tm.EnsureSession(context.Background(), "setup")
	require.NoError(t, err)
	second, err := tm.EnsureSession(context.Background(), "setup")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, countPrefix(f.calls, "tmux has-session"))
	assert.Zero(t, countPrefix(f.calls, "tmux new-session"))
}

func TestEnsureSession_CreateFailure(t *testing.T) {
	tm, f := newFake(t)
	f.failOn = "new-session"

	_, err := tm.EnsureSession(context.Background(), "setup")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "tmux new-session: server exited unexpectedly")
}

func TestEnsureSession_RejectsBadNames(t *testing.T) {
	tm, f := newFake(t)

	for _, name := range []string{"", "a:b", "a.b", "has space", strings.Repeat("x", 65), "-t;rm"} {
		t.Run(name, func(t *testing.T) {
			_, err := tm.EnsureSession(context.Background(), name)
			assert.ErrorIs(t, err, ErrInvalidSessionName)
		})
	}
	assert.Empty(t, f.calls)
}

func TestSendCommand_TypesLiterallyThenEnter(t *testing.T) {
	tm, f := newFake(t, "setup")
	sess := setup.Session{Name: "setup", Target: "setup:0.0"}

	require.NoError(t, tm.SendCommand(context.Background(), sess, "gh auth login --web"))

	assert.Equal(t, []string{
		"tmux send-keys -t setup:0.0 -l gh auth login --web",
		"tmux send-keys -t setup:0.0 Enter",
	}, f.calls)
}

func TestSendCommand_Failure(t *testing.T) {
	tm, f := newFake(t)
	f.failOn = "send-keys"

	err := tm.SendCommand(context.Background(), setup.Session{Target: "setup:0.0"}, "az login")

	require.Error(t, err)
	assert.Len(t, f.calls, 1)
}

func TestNewTmux_CustomBinary(t *testing.T) {
	tm := NewTmux("/opt/bin/tmux", nil)
	tm.run = func(context.Context, string, ...string) ([]byte, error) { return nil, nil }

	sess, err := tm.EnsureSession(context.Background(), "work")

	require.NoError(t, err)
	assert.Equal(t, "/opt/bin/tmux attach -t work", sess.AttachCommand)
	assert.Equal(t, "=work:", sess.Target)
}

func countPrefix(calls []string, prefix string) int {
	n := 0
	for _, c := range calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}
