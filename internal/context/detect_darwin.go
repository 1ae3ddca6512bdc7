//go:build darwin

package context

import (
	"os"
	"runtime"

	"github.com/ancients-collective/rigup/internal/types"
	"github.com/shirou/gopsutil/v4/host"
	"go.uber.org/zap"
)

// DarwinDetector implements OSDetector for macOS.
type DarwinDetector struct {
	log *zap.Logger
}

// NewOSDetector returns a DarwinDetector. A nil logger discards output.
func NewOSDetector(log *zap.Logger) OSDetector {
	if log == nil {
		log = zap.NewNop()
	}
	return &DarwinDetector{log: log}
}

func (d *DarwinDetector) DetectOS() (types.OSInfo, error) {
	osInfo := types.OSInfo{Name: runtime.GOOS, Arch: runtime.GOARCH}
	info, err := host.Info()
	if err != nil {
		d.log.Debug("host info unavailable", zap.Error(err))
		return osInfo, nil
	}
	osInfo.Version = info.PlatformVersion
	return osInfo, nil
}

// DetectDistro returns empty DistroInfo; macOS has no distribution concept.
func (d *DarwinDetector) DetectDistro() (types.DistroInfo, error) {
	return types.DistroInfo{}, nil
}

func (d *DarwinDetector) DetectEnvironment() (types.EnvInfo, error) {
	env := types.EnvInfo{Type: types.EnvBareMetal}
	if h, err := os.Hostname(); err == nil {
		env.Hostname = h
	}
	return env, nil
}
