package ports

import (
	"context"
	"time"

	"github.com/bahati/fleet-guardian/internal/core/domain"
)

// AlertSink publishes fraud alerts to the external alert/log store.
type AlertSink interface {
	// Publish writes one alert record. A rejected write returns an error
	// wrapping domain.ErrPublishFailed; it must not affect other alerts.
	Publish(ctx context.Context, alert domain.FraudAlert) error
}

// AlertArchive persists emitted alerts locally for auditing and the status
// API. Archive failures are non-fatal to the cycle.
type AlertArchive interface {
	Insert(ctx context.Context, alert domain.FraudAlert) error
	ListRecent(ctx context.Context, limit int) ([]domain.FraudAlert, error)
}

// DedupLedger suppresses re-emission of an alert that already fired for the
// same subject, rule, and day. Ledger errors are advisory: when the ledger
// cannot be consulted the alert is published anyway.
type DedupLedger interface {
	Seen(ctx context.Context, subjectID, ruleTag string, day time.Time) (bool, error)
	Mark(ctx context.Context, subjectID, ruleTag string, day time.Time) error
}
