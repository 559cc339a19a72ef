package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bahati/fleet-guardian/internal/api/metrics"
	"github.com/bahati/fleet-guardian/internal/core/domain"
	"github.com/bahati/fleet-guardian/internal/core/ports"
)

// PatrolService orchestrates one detection cycle:
// Idle → Fetching → Aggregating → Analyzing → Emitting → Idle.
// No state survives between cycles except what the external sink retains;
// LastReport is process-local observability only.
type PatrolService struct {
	source    ports.EventSource
	sink      ports.AlertSink
	archive   ports.AlertArchive // optional
	dedup     ports.DedupLedger  // optional
	evaluator *Evaluator
	window    time.Duration
	log       zerolog.Logger

	runMu      sync.Mutex // held for the whole cycle: at most one in flight
	stateMu    sync.Mutex
	phase      domain.Phase
	lastReport *ports.CycleReport
}

// NewPatrolService wires a patrol runner. archive and dedup may be nil; the
// cycle then runs without local audit and without cross-cycle suppression.
func NewPatrolService(
	source ports.EventSource,
	sink ports.AlertSink,
	archive ports.AlertArchive,
	dedup ports.DedupLedger,
	evaluator *Evaluator,
	window time.Duration,
	log zerolog.Logger,
) *PatrolService {
	return &PatrolService{
		source:    source,
		sink:      sink,
		archive:   archive,
		dedup:     dedup,
		evaluator: evaluator,
		window:    window,
		log:       log,
		phase:     domain.PhaseIdle,
	}
}

// Run executes exactly one patrol cycle. A fetch failure is fail-safe: the
// cycle completes with zero alerts and the error on the report — absence of
// data never fabricates an alert. Returns domain.ErrPatrolInFlight when a
// cycle is already running, and the context error when cancelled mid-cycle.
func (s *PatrolService) Run(ctx context.Context) (*ports.CycleReport, error) {
	if !s.runMu.TryLock() {
		return nil, domain.ErrPatrolInFlight
	}
	defer s.runMu.Unlock()
	defer s.setPhase(domain.PhaseIdle)

	started := time.Now().UTC()
	report := &ports.CycleReport{StartedAt: started}
	defer func() {
		report.FinishedAt = time.Now().UTC()
		metrics.CycleDuration.Observe(report.FinishedAt.Sub(started).Seconds())
		s.stateMu.Lock()
		s.lastReport = report
		s.stateMu.Unlock()
	}()

	// --- Fetching ---
	s.setPhase(domain.PhaseFetching)
	s.log.Info().Dur("window", s.window).Msg("patrol: fetching recent transactions")
	if err := ctx.Err(); err != nil {
		report.Errors = append(report.Errors, err)
		return report, err
	}
	fetched, err := s.source.FetchSince(ctx, started.Add(-s.window))
	if err != nil {
		// Fail-safe: back to Idle with zero alerts, error reported.
		s.log.Warn().Err(err).Msg("patrol: fetch failed, completing cycle with no alerts")
		report.Errors = append(report.Errors, err)
		s.logSummary(report)
		return report, nil
	}
	report.EventsFetched = len(fetched.Events)
	report.MalformedRecords = fetched.Malformed
	metrics.EventsFetchedTotal.Add(float64(len(fetched.Events)))
	metrics.MalformedRecordsTotal.Add(float64(fetched.Malformed))

	// --- Aggregating ---
	s.setPhase(domain.PhaseAggregating)
	windows := AggregateByDriver(fetched.Events)
	report.DriversTotal = len(windows)
	s.log.Info().Int("events", len(fetched.Events)).Int("drivers", len(windows)).Msg("patrol: aggregated driver windows")

	// --- Analyzing ---
	s.setPhase(domain.PhaseAnalyzing)
	result := s.evaluator.Evaluate(windows, started)
	report.DriversEvaluated = result.Evaluated
	metrics.DriversEvaluatedTotal.Add(float64(result.Evaluated))
	s.log.Info().Int("evaluated", result.Evaluated).Int("suspicious", len(result.Alerts)).Msg("patrol: analysis complete")

	// --- Emitting ---
	s.setPhase(domain.PhaseEmitting)
	if err := s.emit(ctx, result.Alerts, report); err != nil {
		return report, err
	}

	s.logSummary(report)
	return report, nil
}

// emit publishes each alert in turn. One rejected write never suppresses the
// rest; cancellation stops all further publishes (alerts already published
// stay published — the sink has no transaction semantics).
func (s *PatrolService) emit(ctx context.Context, alerts []domain.FraudAlert, report *ports.CycleReport) error {
	for _, alert := range alerts {
		if err := ctx.Err(); err != nil {
			report.Errors = append(report.Errors, err)
			return err
		}

		if s.suppressed(ctx, alert) {
			report.AlertsSuppressed++
			metrics.AlertDedupTotal.WithLabelValues("hit").Inc()
			s.log.Debug().Str("subject", alert.SubjectID).Str("rule", alert.RuleTag).Msg("patrol: alert suppressed by dedup ledger")
			continue
		}
		if s.dedup != nil {
			metrics.AlertDedupTotal.WithLabelValues("miss").Inc()
		}

		if err := s.sink.Publish(ctx, alert); err != nil {
			report.PublishFailures++
			report.Errors = append(report.Errors, fmt.Errorf("%w: subject %s: %w", domain.ErrPublishFailed, alert.SubjectID, err))
			metrics.AlertPublishErrorsTotal.Inc()
			s.log.Error().Err(err).Str("subject", alert.SubjectID).Msg("patrol: alert publish rejected")
			continue
		}
		report.AlertsEmitted++
		metrics.AlertsEmittedTotal.WithLabelValues(alert.RuleTag).Inc()
		s.log.Warn().
			Str("subject", alert.SubjectID).
			Str("rule", alert.RuleTag).
			Str("severity", string(alert.Severity)).
			Msg(alert.Message)

		s.markAndArchive(ctx, alert)
	}
	return nil
}

// suppressed consults the dedup ledger. Ledger errors are advisory — when in
// doubt, publish.
func (s *PatrolService) suppressed(ctx context.Context, alert domain.FraudAlert) bool {
	if s.dedup == nil {
		return false
	}
	seen, err := s.dedup.Seen(ctx, alert.SubjectID, alert.RuleTag, alert.CycleTimestamp)
	if err != nil {
		s.log.Warn().Err(err).Str("subject", alert.SubjectID).Msg("patrol: dedup check failed, publishing anyway")
		return false
	}
	return seen
}

// markAndArchive records the published alert in the dedup ledger and the
// local archive. Both are best-effort.
func (s *PatrolService) markAndArchive(ctx context.Context, alert domain.FraudAlert) {
	if s.dedup != nil {
		if err := s.dedup.Mark(ctx, alert.SubjectID, alert.RuleTag, alert.CycleTimestamp); err != nil {
			s.log.Warn().Err(err).Str("subject", alert.SubjectID).Msg("patrol: failed to mark dedup key")
		}
	}
	if s.archive != nil {
		if err := s.archive.Insert(ctx, alert); err != nil {
			s.log.Warn().Err(err).Str("subject", alert.SubjectID).Msg("patrol: failed to archive alert")
		}
	}
}

func (s *PatrolService) logSummary(report *ports.CycleReport) {
	s.log.Info().
		Int("events", report.EventsFetched).
		Int("drivers", report.DriversTotal).
		Int("alerts", report.AlertsEmitted).
		Int("suppressed", report.AlertsSuppressed).
		Int("publish_failures", report.PublishFailures).
		Int("recoverable_errors", len(report.Errors)).
		Msg("patrol: cycle complete")
}

// LastReport returns the most recent completed cycle report, or nil.
func (s *PatrolService) LastReport() *ports.CycleReport {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastReport
}

// Phase reports the current pipeline stage.
func (s *PatrolService) Phase() domain.Phase {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.phase
}

func (s *PatrolService) setPhase(p domain.Phase) {
	s.stateMu.Lock()
	s.phase = p
	s.stateMu.Unlock()
}
