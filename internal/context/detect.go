// Package context detects the host platform and the installers it offers.
//
// Detection is split in two: the platform context (OS, distro, container or VM)
// drives which capability checks apply, and the install environment drives
// which setup command is selected for a missing check.
package context

import (
	"fmt"

	"github.com/ancients-collective/rigup/internal/types"
)

// OSDetector abstracts platform-specific system detection.
// Each supported OS provides an implementation via build tags.
type OSDetector interface {
	DetectOS() (types.OSInfo, error)

	// DetectDistro returns empty DistroInfo on non-Linux systems.
	DetectDistro() (types.DistroInfo, error)

	// DetectEnvironment reports container, VM, or bare-metal.
	DetectEnvironment() (types.EnvInfo, error)
}

// DetectSystemContext runs the detector layer by layer. Only OS detection is
// fatal; distro and environment failures are returned as warnings and leave
// the corresponding fields empty.
func DetectSystemContext(detector OSDetector) (types.SystemContext, []string, error) {
	var sys types.SystemContext
	var warnings []string

	osInfo, err := detector.DetectOS()
	if err != nil {
		return sys, nil, fmt.Errorf("OS detection failed: %w", err)
	}
	sys.OS = osInfo

	if distro, err := detector.DetectDistro(); err != nil {
		warnings = append(warnings, fmt.Sprintf("distro detection failed: %v", err))
	} else {
		sys.Distro = distro
	}

	if env, err := detector.DetectEnvironment(); err != nil {
		warnings = append(warnings, fmt.Sprintf("environment detection failed: %v", err))
	} else {
		sys.Environment = env
	}

	return sys, warnings, nil
}
