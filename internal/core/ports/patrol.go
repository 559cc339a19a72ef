package ports

import (
	"context"
	"time"

	"github.com/bahati/fleet-guardian/internal/core/domain"
)

// CycleReport summarizes one completed patrol cycle. Zero alerts is a normal,
// reported outcome, not an error.
type CycleReport struct {
	StartedAt        time.Time
	FinishedAt       time.Time
	EventsFetched    int
	MalformedRecords int
	DriversTotal     int
	DriversEvaluated int // windows at or above the minimum-activity floor
	AlertsEmitted    int
	AlertsSuppressed int // skipped by the dedup ledger
	PublishFailures  int
	Errors           []error // recoverable errors encountered during the cycle
}

// PatrolRunner runs patrol cycles. At most one cycle may be in flight at a
// time; a concurrent trigger fails with domain.ErrPatrolInFlight.
type PatrolRunner interface {
	Run(ctx context.Context) (*CycleReport, error)
	// LastReport returns the most recent completed cycle report, or nil when
	// no cycle has run yet in this process.
	LastReport() *CycleReport
	// Phase reports the stage the runner is currently in.
	Phase() domain.Phase
}
