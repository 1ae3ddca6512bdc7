//go:build linux

package context

import (
	"bytes"
	"os"
	"runtime"
	"strings"

	"github.com/ancients-collective/rigup/internal/types"
	"github.com/shirou/gopsutil/v4/host"
	"go.uber.org/zap"
)

// LinuxDetector implements OSDetector for Linux using gopsutil with
// filesystem fallbacks.
type LinuxDetector struct {
	log *zap.Logger
}

// NewOSDetector returns a LinuxDetector. A nil logger discards output.
func NewOSDetector(log *zap.Logger) OSDetector {
	if log == nil {
		log = zap.NewNop()
	}
	return &LinuxDetector{log: log}
}

func (d *LinuxDetector) DetectOS() (types.OSInfo, error) {
	osInfo := types.OSInfo{Name: runtime.GOOS, Arch: runtime.GOARCH}
	info, err := host.Info()
	if err != nil {
		d.log.Debug("host info unavailable", zap.Error(err))
		return osInfo, nil
	}
	osInfo.Version = info.KernelVersion
	return osInfo, nil
}

func (d *LinuxDetector) DetectDistro() (types.DistroInfo, error) {
	info, err := host.Info()
	if err != nil {
		return types.DistroInfo{}, err
	}
	return types.DistroInfo{
		ID:      info.Platform,
		Version: info.PlatformVersion,
		Family:  info.PlatformFamily,
	}, nil
}

// DetectEnvironment prefers container over VM over bare-metal.
func (d *LinuxDetector) DetectEnvironment() (types.EnvInfo, error) {
	env := types.EnvInfo{Type: types.EnvBareMetal}
	if h, err := os.Hostname(); err == nil {
		env.Hostname = h
	}

	if ok, rt := detectContainerWith(containerMarkers); ok {
		env.Type = types.EnvContainer
		env.Runtime = rt
	} else if ok, hv := detectVMWith("/sys/class/dmi/id/sys_vendor", "/proc/cpuinfo"); ok {
		env.Type = types.EnvVM
		env.Runtime = hv
	} else {
		d.log.Debug("no container or hypervisor indicators found")
	}
	return env, nil
}

// containerMarker pairs a path with the runtime it implies. When needle is
// set the file must contain it; otherwise existence is enough.
type containerMarker struct {
	path    string
	needle  string
	runtime string
}

var containerMarkers = []containerMarker{
	{path: "/.dockerenv", runtime: "docker"},
	{path: "/run/.containerenv", runtime: "podman"},
	{path: "/proc/self/cgroup", needle: "docker", runtime: "docker"},
	{path: "/proc/self/cgroup", needle: "kubepods", runtime: "kubernetes"},
	{path: "/proc/self/cgroup", needle: "lxc", runtime: "lxc"},
}

func isContainerRuntime(virt string) bool {
	switch virt {
	case "docker", "lxc", "podman", "systemd-nspawn":
		return true
	}
	return false
}

// detectContainerWith asks gopsutil first, then walks the markers in order.
func detectContainerWith(markers []containerMarker) (bool, string) {
	if role, virt, err := host.Virtualization(); err == nil && role == "guest" && isContainerRuntime(virt) {
		return true, virt
	}

	for _, m := range markers {
		if m.needle == "" {
			if _, err := os.Lstat(m.path); err == nil {
				return true, m.runtime
			}
			continue
		}
		data, err := os.ReadFile(m.path)
		if err == nil && bytes.Contains(data, []byte(m.needle)) {
			return true, m.runtime
		}
	}
	return false, ""
}

// hypervisorVendors maps lowercase DMI sys_vendor substrings to a hypervisor name.
var hypervisorVendors = []struct{ substr, hv string }{
	{"qemu", "kvm"},
	{"innotek gmbh", "virtualbox"},
	{"vmware", "vmware"},
	{"microsoft corporation", "hyper-v"},
	{"xen", "xen"},
	{"amazon ec2", "aws-nitro"},
	{"google", "gce"},
}

// detectVMWith asks gopsutil first, then falls back to DMI vendor and the
// cpuinfo hypervisor flag.
func detectVMWith(sysVendorPath, cpuinfoPath string) (bool, string) {
	if role, virt, err := host.Virtualization(); err == nil && role == "guest" && virt != "" && !isContainerRuntime(virt) {
		return true, virt
	}

	if data, err := os.ReadFile(sysVendorPath); err == nil {
		v := strings.ToLower(strings.TrimSpace(string(data)))
		for _, m := range hypervisorVendors {
			if strings.Contains(v, m.substr) {
				return true, m.hv
			}
		}
	}

	if data, err := os.ReadFile(cpuinfoPath); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if strings.HasPrefix(line, "flags") && strings.Contains(line, " hypervisor") {
				return true, "unknown"
			}
		}
	}
	return false, ""
}
