package context

import (
	stdctx "context"
	"os"
	"os/exec"
	"time"

	"github.com/ancients-collective/rigup/internal/types"
)

// sudoProbeTimeout bounds the non-interactive sudo check.
const sudoProbeTimeout = 3 * time.Second

// Prober performs the read-only host probes behind install detection.
type Prober interface {
	// LookPath reports whether an executable is on PATH.
	LookPath(name string) bool

	// Euid returns the effective user id, or -1 where unsupported.
	Euid() int

	// SudoNonInteractive reports whether `sudo -n true` succeeds.
	SudoNonInteractive(ctx stdctx.Context) bool
}

// HostProber probes the live host.
type HostProber struct{}

func (HostProber) LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func (HostProber) Euid() int { return os.Geteuid() }

func (HostProber) SudoNonInteractive(ctx stdctx.Context) bool {
	if _, err := exec.LookPath("sudo"); err != nil {
		return false
	}
	ctx, cancel := stdctx.WithTimeout(ctx, sudoProbeTimeout)
	defer cancel()
	return exec.CommandContext(ctx, "sudo", "-n", "true").Run() == nil
}

// DetectInstallEnvironment reports which installers the host offers and
// whether privileged package managers may be used. It never fails: any probe
// that cannot answer resolves to false.
func DetectInstallEnvironment(ctx stdctx.Context, p Prober) types.InstallEnvironment {
	env := types.InstallEnvironment{
		HasHomebrew: p.LookPath("brew"),
		HasApt:      p.LookPath("apt-get"),
		HasCurl:     p.LookPath("curl"),
	}

	if p.Euid() == 0 {
		env.IsPrivileged = true
		return env
	}
	// Only worth asking sudo when something needs it.
	if env.HasApt && p.SudoNonInteractive(ctx) {
		env.IsPrivileged = true
		env.UseSudo = true
	}
	return env
}
