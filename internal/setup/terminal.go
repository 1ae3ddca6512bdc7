package setup

import "context"

// Session locates a persistent, human-attachable terminal.
type Session struct {
	// Name is the session name the caller asked for.
	Name string

	// Target addresses the pane commands are typed into.
	Target string

	// AttachCommand is what an operator runs to take over the session.
	AttachCommand string
}

// SessionBridge starts or reuses named terminal sessions and types commands
// into them. Output is never read back; auth progress is observed through
// health checks instead.
type SessionBridge interface {
	// EnsureSession creates the session if absent and returns it. Calling it
	// again with the same name returns the same session.
	EnsureSession(ctx context.Context, name string) (Session, error)

	// SendCommand types command into the session and submits it.
	SendCommand(ctx context.Context, s Session, command string) error
}
