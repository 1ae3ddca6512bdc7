package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ancients-collective/rigup/internal/types"
)

// ErrUnknownCapability is returned when no catalog entry has the requested id.
var ErrUnknownCapability = errors.New("unknown capability")

// HealthService evaluates capability checks against the live host. Each call
// to Health produces a fresh snapshot; nothing is cached between calls.
type HealthService struct {
	catalog  map[string]types.CapabilityDefinition
	registry *FunctionRegistry
	sys      types.SystemContext
	log      *zap.Logger
	now      func() time.Time
}

// NewHealthService indexes the given capabilities by id. Later definitions
// with a duplicate id replace earlier ones; the loader rejects duplicates
// before this point.
func NewHealthService(caps []types.CapabilityDefinition, registry *FunctionRegistry, sys types.SystemContext, log *zap.Logger) *HealthService {
	if log == nil {
		log = zap.NewNop()
	}
	catalog := make(map[string]types.CapabilityDefinition, len(caps))
	for _, c := range caps {
		catalog[c.ID] = c
	}
	return &HealthService{
		catalog:  catalog,
		registry: registry,
		sys:      sys,
		log:      log,
		now:      time.Now,
	}
}

// Capability returns the definition with the given id.
func (s *HealthService) Capability(id string) (types.CapabilityDefinition, bool) {
	c, ok := s.catalog[id]
	return c, ok
}

// Health evaluates every check of a capability in definition order.
// Probe failures are reported in the check; only an unknown capability or a
// cancelled context is returned as an error.
func (s *HealthService) Health(ctx context.Context, capabilityID string) (types.HealthResult, error) {
	def, ok := s.catalog[capabilityID]
	if !ok {
		return types.HealthResult{}, fmt.Errorf("%w: %q", ErrUnknownCapability, capabilityID)
	}

	result := types.HealthResult{
		Capability: def.ID,
		Checks:     make([]types.HealthCheck, 0, len(def.Checks)),
	}
	for _, check := range def.Checks {
		if err := ctx.Err(); err != nil {
			return types.HealthResult{}, fmt.Errorf("health of %s interrupted: %w", capabilityID, err)
		}
		result.Checks = append(result.Checks, s.evaluate(ctx, def, check))
	}
	result.CheckedAt = s.now()
	return result, nil
}

// evaluate runs a check's steps in order; the first failing step fails it.
func (s *HealthService) evaluate(ctx context.Context, def types.CapabilityDefinition, check types.CheckDefinition) types.HealthCheck {
	hc := types.HealthCheck{
		ID:       check.ID,
		Label:    check.Label,
		Required: check.IsRequired(),
		Hint:     check.Hint,
	}

	if ok, reason := CheckApplies(def.SupportedOS, check.SupportedOS, s.sys); !ok {
		hc.OK, hc.Skipped, hc.Message = true, true, reason
		return hc
	}

	executed := 0
	for _, step := range check.Steps {
		if !EvaluateCondition(step.When, s.sys) {
			continue
		}
		executed++

		pass, detail, err := s.registry.Call(ctx, step.Function, step.Args)
		if err != nil {
			s.log.Debug("check step errored",
				zap.String("capability", def.ID),
				zap.String("check", check.ID),
				zap.String("function", step.Function),
				zap.Error(err))
			hc.Message = err.Error()
			return hc
		}
		if !pass {
			hc.Message = detail
			return hc
		}
		hc.Message = detail
	}

	hc.OK = true
	if executed == 0 {
		hc.Skipped = true
		hc.Message = "no steps apply to this host"
	}
	return hc
}
