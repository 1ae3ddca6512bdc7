package setup

import (
	"os/exec"

	"github.com/ancients-collective/rigup/internal/types"
)

// CheckID names a health check the selector knows how to remediate. The set
// is closed: a check id missing from the switches below has no automation.
type CheckID string

const (
	CheckGitCLI         CheckID = "git_cli"
	CheckGitHubCLI      CheckID = "gh_cli"
	CheckNodeRuntime    CheckID = "node_runtime"
	CheckPython3Runtime CheckID = "python3_runtime"
	CheckUVCLI          CheckID = "uv_cli"
	CheckJQCLI          CheckID = "jq_cli"
	CheckTmuxCLI        CheckID = "tmux_cli"
	CheckRipgrepCLI     CheckID = "ripgrep_cli"
	CheckGCloudCLI      CheckID = "gcloud_cli"
	CheckAzureCLI       CheckID = "az_cli"
	CheckDockerCLI      CheckID = "docker_cli"
	CheckVercelCLI      CheckID = "vercel_cli"

	CheckGitHubAuth CheckID = "gh_auth"
	CheckGCloudAuth CheckID = "gcloud_auth"
	CheckAzureAuth  CheckID = "az_auth"
	CheckVercelAuth CheckID = "vercel_auth"
)

// Resolver returns the first of the candidate tool names present on the
// host, in candidate order.
type Resolver func(candidates []string) (string, bool)

// PathResolver resolves candidates against PATH.
func PathResolver(candidates []string) (string, bool) {
	for _, c := range candidates {
		if _, err := exec.LookPath(c); err == nil {
			return c, true
		}
	}
	return "", false
}

// pkg names a tool in each package manager. Empty means not packaged there.
type pkg struct {
	brew string
	apt  string
}

// packageCommand applies the fixed preference order: Homebrew, then apt when
// the process may use it.
func packageCommand(env types.InstallEnvironment, p pkg) (string, bool) {
	if p.brew != "" && env.HasHomebrew {
		return "brew install " + p.brew, true
	}
	if p.apt != "" && env.HasApt && env.IsPrivileged {
		return privileged(env, "env DEBIAN_FRONTEND=noninteractive apt-get install -y "+p.apt), true
	}
	return "", false
}

func privileged(env types.InstallEnvironment, cmd string) string {
	if env.UseSudo {
		return "sudo -n " + cmd
	}
	return cmd
}

// SelectInstallCommand returns the command that installs the tool behind a
// failing check, or false when no installer on this host can provide it.
func SelectInstallCommand(id CheckID, env types.InstallEnvironment) (string, bool) {
	switch id {
	case CheckGitCLI:
		return packageCommand(env, pkg{brew: "git", apt: "git"})
	case CheckGitHubCLI:
		return packageCommand(env, pkg{brew: "gh", apt: "gh"})
	case CheckNodeRuntime:
		return packageCommand(env, pkg{brew: "node", apt: "nodejs npm"})
	case CheckPython3Runtime:
		return packageCommand(env, pkg{brew: "python", apt: "python3 python3-venv python3-pip"})
	case CheckJQCLI:
		return packageCommand(env, pkg{brew: "jq", apt: "jq"})
	case CheckTmuxCLI:
		return packageCommand(env, pkg{brew: "tmux", apt: "tmux"})
	case CheckRipgrepCLI:
		return packageCommand(env, pkg{brew: "ripgrep", apt: "ripgrep"})
	case CheckVercelCLI:
		return packageCommand(env, pkg{brew: "vercel-cli"})

	case CheckUVCLI:
		if cmd, ok := packageCommand(env, pkg{brew: "uv"}); ok {
			return cmd, true
		}
		if env.HasCurl {
			return "curl -LsSf https://astral.sh/uv/install.sh | sh", true
		}
	case CheckGCloudCLI:
		if cmd, ok := packageCommand(env, pkg{brew: "--cask google-cloud-sdk"}); ok {
			return cmd, true
		}
		if env.HasCurl {
			return "curl -sSL https://sdk.cloud.google.com | bash -s -- --disable-prompts", true
		}
	case CheckAzureCLI:
		if cmd, ok := packageCommand(env, pkg{brew: "azure-cli"}); ok {
			return cmd, true
		}
		if env.HasCurl && env.HasApt && env.IsPrivileged {
			return "curl -sL https://aka.ms/InstallAzureCLIDeb | " + privileged(env, "bash"), true
		}
	case CheckDockerCLI:
		if cmd, ok := packageCommand(env, pkg{brew: "--cask docker", apt: "docker.io"}); ok {
			return cmd, true
		}
		if env.HasCurl && env.IsPrivileged {
			return "curl -fsSL https://get.docker.com | " + privileged(env, "sh"), true
		}
	}
	return "", false
}

// SelectAuthCommand returns the interactive login command for a failing
// authentication check, using the first tool resolve finds.
func SelectAuthCommand(id CheckID, resolve Resolver) (string, bool) {
	switch id {
	case CheckGitHubAuth:
		if _, ok := resolve([]string{"gh"}); ok {
			return "gh auth login --hostname github.com --git-protocol https --web", true
		}
	case CheckGCloudAuth:
		if _, ok := resolve([]string{"gcloud"}); ok {
			return "gcloud auth login", true
		}
	case CheckAzureAuth:
		if _, ok := resolve([]string{"az"}); ok {
			return "az login", true
		}
	case CheckVercelAuth:
		tool, ok := resolve([]string{"vercel", "npx"})
		switch {
		case ok && tool == "vercel":
			return "vercel login", true
		case ok && tool == "npx":
			return "npx --yes vercel login", true
		}
	}
	return "", false
}
