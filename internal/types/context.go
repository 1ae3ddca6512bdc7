package types

// Valid environment types.
const (
	EnvContainer = "container"
	EnvVM        = "vm"
	EnvBareMetal = "bare-metal"
)

// SystemContext holds information about the host where checks are evaluated.
// It is populated by the context detection package and used to filter checks and steps.
type SystemContext struct {
	// OS contains operating system information.
	OS OSInfo

	// Distro contains Linux distribution information.
	Distro DistroInfo

	// Environment contains execution environment information.
	Environment EnvInfo
}

// OSInfo holds operating system details.
type OSInfo struct {
	// Name is the OS identifier (e.g., "linux", "darwin").
	Name string

	// Version is the kernel version string.
	Version string

	// Arch is the CPU architecture (e.g., "amd64", "arm64").
	Arch string
}

// DistroInfo holds Linux distribution details.
// Empty on non-Linux systems.
type DistroInfo struct {
	// ID is the distribution identifier (e.g., "ubuntu", "rhel", "alpine").
	ID string

	// Version is the distribution version (e.g., "22.04", "9", "3.18").
	Version string

	// Family is the distribution family (e.g., "debian", "rhel", "alpine").
	Family string
}

// EnvInfo holds execution environment details.
type EnvInfo struct {
	// Type is the environment category: "container", "vm", or "bare-metal".
	Type string

	// Runtime is the specific runtime (e.g., "docker", "podman", "kvm", "vmware").
	Runtime string

	// Hostname is the system hostname (os.Hostname).
	Hostname string
}

// InstallEnvironment records which installers the host offers and whether the
// process may use privileged package managers. It is read-only once detected.
type InstallEnvironment struct {
	// HasHomebrew is true when `brew` is available (preferred package manager).
	HasHomebrew bool `json:"has_homebrew"`

	// HasApt is true when `apt-get` is available.
	HasApt bool `json:"has_apt"`

	// HasCurl is true when `curl` is available for script-based installers.
	HasCurl bool `json:"has_curl"`

	// IsPrivileged is true when running as root or when passwordless sudo works.
	IsPrivileged bool `json:"is_privileged"`

	// UseSudo is true when privilege comes from sudo rather than uid 0.
	UseSudo bool `json:"use_sudo,omitempty"`
}
