package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ancients-collective/rigup/internal/types"
)

// CheckApplies reports whether a check is relevant on this host. Checks for
// other operating systems are reported as passing and skipped.
func CheckApplies(capSupported, checkSupported []string, sys types.SystemContext) (bool, string) {
	if len(capSupported) > 0 && !slices.Contains(capSupported, sys.OS.Name) {
		return false, fmt.Sprintf("capability does not support OS %q (supported: %s)",
			sys.OS.Name, strings.Join(capSupported, ", "))
	}
	if len(checkSupported) > 0 && !slices.Contains(checkSupported, sys.OS.Name) {
		return false, fmt.Sprintf("check does not apply to OS %q (supported: %s)",
			sys.OS.Name, strings.Join(checkSupported, ", "))
	}
	return true, ""
}

// EvaluateCondition checks if a step's condition matches the system context.
// All specified fields must match. A nil condition always matches.
func EvaluateCondition(cond *types.ConditionBlock, sys types.SystemContext) bool {
	if cond == nil {
		return true
	}
	if cond.OS != "" && cond.OS != sys.OS.Name {
		return false
	}
	if cond.Distro != "" && cond.Distro != sys.Distro.ID {
		return false
	}
	if cond.Environment != "" && cond.Environment != sys.Environment.Type {
		return false
	}
	return true
}
