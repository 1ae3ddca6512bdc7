package setup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ancients-collective/rigup/internal/types"
)

const (
	// DefaultPollInterval is the pause between health queries while waiting.
	DefaultPollInterval = 3 * time.Second

	// MinPollWait is the shortest wait a caller can ask for.
	MinPollWait = 10 * time.Second
)

// HealthSource answers health queries for a capability.
// *engine.HealthService satisfies it.
type HealthSource interface {
	Health(ctx context.Context, capabilityID string) (types.HealthResult, error)
}

// Clock lets tests drive the poll loop without real delays.
type Clock interface {
	Now() time.Time

	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PollResult is the outcome of waiting on one check. Latest is the zero
// value when no query succeeded.
type PollResult struct {
	Passed bool
	Latest types.HealthResult
}

// Poller waits for a single check to pass.
type Poller struct {
	source   HealthSource
	clock    Clock
	interval time.Duration
	log      *zap.Logger
}

// NewPoller returns a Poller using the real clock and DefaultPollInterval.
func NewPoller(source HealthSource, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{source: source, clock: realClock{}, interval: DefaultPollInterval, log: log}
}

// WaitForCheck queries health immediately and then every poll interval until
// the check passes or max(wait, MinPollWait) has elapsed. It never fails:
// query errors are logged and retried, and cancellation ends the wait with
// Passed=false and the most recent good snapshot.
func (p *Poller) WaitForCheck(ctx context.Context, capabilityID, checkID string, wait time.Duration) PollResult {
	limit := max(wait, MinPollWait)
	start := p.clock.Now()

	var latest types.HealthResult
	for attempt := 1; ; attempt++ {
		res, err := p.source.Health(ctx, capabilityID)
		if err != nil {
			p.log.Debug("health query failed while waiting",
				zap.String("capability", capabilityID),
				zap.String("check", checkID),
				zap.Int("attempt", attempt),
				zap.Error(err))
		} else {
			latest = res
			if res.CheckPassed(checkID) {
				return PollResult{Passed: true, Latest: latest}
			}
		}

		if p.clock.Now().Sub(start) >= limit {
			return PollResult{Latest: latest}
		}
		if err := p.clock.Sleep(ctx, p.interval); err != nil {
			p.log.Debug("wait canceled", zap.String("check", checkID), zap.Error(err))
			return PollResult{Latest: latest}
		}
	}
}
