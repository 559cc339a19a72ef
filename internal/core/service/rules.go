package service

import (
	"fmt"

	"github.com/bahati/fleet-guardian/internal/core/domain"
)

// RuleStationaryHighRevenue tags alerts from the shipped anomaly rule.
const RuleStationaryHighRevenue = "gps-stationary-high-revenue"

// Rule is one independent anomaly check. Rules are pure: the same window and
// diameter always produce the same verdict, and rules never short-circuit
// each other — every rule sees every window.
type Rule interface {
	// Tag identifies the rule in emitted alerts.
	Tag() string
	// Evaluate returns an alert and true when the window is suspicious.
	Evaluate(w *domain.DriverActivityWindow, diameterKm float64) (domain.FraudAlert, bool)
}

// StationaryHighRevenueRule flags drivers recording many high-revenue
// transactions with almost no geographic movement — the signature of GPS
// spoofing or fabricated visits. All three thresholds come from
// configuration.
type StationaryHighRevenueRule struct {
	MinActivity           int
	MaxStationaryRadiusKm float64
	MinSuspiciousRevenue  float64
}

func (r StationaryHighRevenueRule) Tag() string { return RuleStationaryHighRevenue }

func (r StationaryHighRevenueRule) Evaluate(w *domain.DriverActivityWindow, diameterKm float64) (domain.FraudAlert, bool) {
	if w.EventCount < r.MinActivity {
		return domain.FraudAlert{}, false
	}
	if diameterKm >= r.MaxStationaryRadiusKm {
		return domain.FraudAlert{}, false
	}
	if w.TotalRevenue <= r.MinSuspiciousRevenue {
		return domain.FraudAlert{}, false
	}

	return domain.FraudAlert{
		SubjectID:    w.DriverID,
		SubjectLabel: fmt.Sprintf("Driver %s", w.DriverID),
		RuleTag:      r.Tag(),
		Severity:     domain.SeverityWarning,
		Message: fmt.Sprintf(
			"driver %s processed %d transactions totalling %.0f but moved only %.1f meters",
			w.DriverID, w.EventCount, w.TotalRevenue, diameterKm*1000,
		),
	}, true
}
