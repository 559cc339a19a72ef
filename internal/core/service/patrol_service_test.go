package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bahati/fleet-guardian/internal/core/domain"
	"github.com/bahati/fleet-guardian/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubSource struct {
	result   ports.FetchResult
	err      error
	fetching chan struct{} // when set, closed once a fetch begins
	release  chan struct{} // when set, fetch blocks until closed
}

func (s *stubSource) FetchSince(ctx context.Context, _ time.Time) (ports.FetchResult, error) {
	if s.fetching != nil {
		close(s.fetching)
		s.fetching = nil
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return ports.FetchResult{}, ctx.Err()
		}
	}
	if s.err != nil {
		return ports.FetchResult{}, s.err
	}
	return s.result, nil
}

type stubSink struct {
	mu        sync.Mutex
	published []domain.FraudAlert
	failFor   map[string]error // subject id -> error
	onPublish func()           // called after each successful publish
}

func (s *stubSink) Publish(_ context.Context, alert domain.FraudAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[alert.SubjectID]; ok {
		return err
	}
	s.published = append(s.published, alert)
	if s.onPublish != nil {
		s.onPublish()
	}
	return nil
}

type stubLedger struct {
	seen    map[string]bool // subject:rule
	seenErr error
	marked  []string
}

func (l *stubLedger) Seen(_ context.Context, subjectID, ruleTag string, _ time.Time) (bool, error) {
	if l.seenErr != nil {
		return false, l.seenErr
	}
	return l.seen[subjectID+":"+ruleTag], nil
}

func (l *stubLedger) Mark(_ context.Context, subjectID, ruleTag string, _ time.Time) error {
	l.marked = append(l.marked, subjectID+":"+ruleTag)
	return nil
}

type stubArchive struct {
	inserted  []domain.FraudAlert
	insertErr error
}

func (a *stubArchive) Insert(_ context.Context, alert domain.FraudAlert) error {
	if a.insertErr != nil {
		return a.insertErr
	}
	a.inserted = append(a.inserted, alert)
	return nil
}

func (a *stubArchive) ListRecent(_ context.Context, _ int) ([]domain.FraudAlert, error) {
	return a.inserted, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// suspiciousEvents builds count clustered high-revenue events for one driver.
func suspiciousEvents(driverID string, count int, totalRevenue float64) []domain.TransactionEvent {
	events := make([]domain.TransactionEvent, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, domain.TransactionEvent{
			ID:        driverID + "-tx-" + string(rune('a'+i)),
			DriverID:  driverID,
			Revenue:   totalRevenue / float64(count),
			Timestamp: time.Now().UTC(),
			GPS:       &domain.Coordinates{Lat: -6.8000 + float64(i)*0.00001, Lng: 39.2800},
		})
	}
	return events
}

func newPatrol(source ports.EventSource, sink ports.AlertSink, archive ports.AlertArchive, ledger ports.DedupLedger) *PatrolService {
	ev := NewEvaluator([]Rule{defaultRule()}, nil, 5, 2)
	return NewPatrolService(source, sink, archive, ledger, ev, 24*time.Hour, zerolog.Nop())
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestPatrol_Run_EmitsAlertForStationaryDriver(t *testing.T) {
	source := &stubSource{result: ports.FetchResult{Events: suspiciousEvents("drv-1", 6, 80000)}}
	sink := &stubSink{}
	archive := &stubArchive{}

	svc := newPatrol(source, sink, archive, nil)
	report, err := svc.Run(context.Background())

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if report.AlertsEmitted != 1 || len(sink.published) != 1 {
		t.Fatalf("expected exactly one alert, got report=%d sink=%d", report.AlertsEmitted, len(sink.published))
	}
	if sink.published[0].RuleTag != RuleStationaryHighRevenue {
		t.Errorf("unexpected rule tag: %q", sink.published[0].RuleTag)
	}
	if len(archive.inserted) != 1 {
		t.Errorf("expected alert archived, got %d", len(archive.inserted))
	}
	if report.EventsFetched != 6 || report.DriversTotal != 1 || report.DriversEvaluated != 1 {
		t.Errorf("unexpected report counters: %+v", report)
	}
}

func TestPatrol_Run_FetchFailureCompletesWithZeroAlerts(t *testing.T) {
	source := &stubSource{err: domain.ErrStoreUnavailable}
	sink := &stubSink{}

	svc := newPatrol(source, sink, nil, nil)
	report, err := svc.Run(context.Background())

	// Fail-safe, not fail-open: the cycle completes, reports the error, and
	// fabricates nothing.
	if err != nil {
		t.Fatalf("fetch failure must not fail the cycle, got: %v", err)
	}
	if report.AlertsEmitted != 0 || len(sink.published) != 0 {
		t.Errorf("expected zero alerts after fetch failure")
	}
	if len(report.Errors) != 1 || !errors.Is(report.Errors[0], domain.ErrStoreUnavailable) {
		t.Errorf("expected a reported store error, got: %v", report.Errors)
	}
}

func TestPatrol_Run_PublishFailureDoesNotBlockOthers(t *testing.T) {
	events := append(suspiciousEvents("drv-a", 6, 80000), suspiciousEvents("drv-b", 6, 90000)...)
	source := &stubSource{result: ports.FetchResult{Events: events}}
	sink := &stubSink{failFor: map[string]error{"drv-a": errors.New("sink rejected write")}}

	svc := newPatrol(source, sink, nil, nil)
	report, err := svc.Run(context.Background())

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if report.PublishFailures != 1 {
		t.Errorf("expected 1 publish failure, got %d", report.PublishFailures)
	}
	if report.AlertsEmitted != 1 || len(sink.published) != 1 || sink.published[0].SubjectID != "drv-b" {
		t.Errorf("the second alert must still be published: %+v", sink.published)
	}
	if len(report.Errors) != 1 || !errors.Is(report.Errors[0], domain.ErrPublishFailed) {
		t.Errorf("expected a reported publish error, got: %v", report.Errors)
	}
}

func TestPatrol_Run_DedupLedgerSuppressesSeenAlert(t *testing.T) {
	source := &stubSource{result: ports.FetchResult{Events: suspiciousEvents("drv-1", 6, 80000)}}
	sink := &stubSink{}
	ledger := &stubLedger{seen: map[string]bool{"drv-1:" + RuleStationaryHighRevenue: true}}

	svc := newPatrol(source, sink, nil, ledger)
	report, err := svc.Run(context.Background())

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if report.AlertsSuppressed != 1 || report.AlertsEmitted != 0 {
		t.Errorf("expected alert suppressed by ledger: %+v", report)
	}
	if len(sink.published) != 0 {
		t.Errorf("suppressed alert must not be published")
	}
	if len(ledger.marked) != 0 {
		t.Errorf("suppressed alert must not be re-marked")
	}
}

func TestPatrol_Run_LedgerErrorPublishesAnyway(t *testing.T) {
	source := &stubSource{result: ports.FetchResult{Events: suspiciousEvents("drv-1", 6, 80000)}}
	sink := &stubSink{}
	ledger := &stubLedger{seenErr: errors.New("redis timeout")}

	svc := newPatrol(source, sink, nil, ledger)
	report, err := svc.Run(context.Background())

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if report.AlertsEmitted != 1 || len(sink.published) != 1 {
		t.Errorf("ledger failure must not suppress the alert")
	}
}

func TestPatrol_Run_SecondCycleRejectedWhileInFlight(t *testing.T) {
	fetching := make(chan struct{})
	release := make(chan struct{})
	source := &stubSource{fetching: fetching, release: release}
	sink := &stubSink{}

	svc := newPatrol(source, sink, nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Run(context.Background())
	}()

	<-fetching // first cycle is now inside Fetching
	if _, err := svc.Run(context.Background()); !errors.Is(err, domain.ErrPatrolInFlight) {
		t.Errorf("expected ErrPatrolInFlight, got: %v", err)
	}

	close(release)
	<-done

	// Lock released after completion: a new cycle may run.
	if _, err := svc.Run(context.Background()); err != nil {
		t.Errorf("expected cycle to run after previous finished, got: %v", err)
	}
}

func TestPatrol_Run_CancellationStopsFurtherPublishes(t *testing.T) {
	events := append(suspiciousEvents("drv-a", 6, 80000), suspiciousEvents("drv-b", 6, 90000)...)
	source := &stubSource{result: ports.FetchResult{Events: events}}

	ctx, cancel := context.WithCancel(context.Background())
	sink := &stubSink{onPublish: cancel} // cancel after the first successful write

	svc := newPatrol(source, sink, nil, nil)
	report, err := svc.Run(ctx)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
	// The alert published before cancellation stays published; no further
	// alerts go out.
	if len(sink.published) != 1 || report.AlertsEmitted != 1 {
		t.Errorf("expected exactly one publish before cancellation, got %d", len(sink.published))
	}
}

func TestPatrol_Run_QuietWindowEmitsNothing(t *testing.T) {
	// Plenty of movement and modest revenue: a normal day.
	events := []domain.TransactionEvent{
		{ID: "t1", DriverID: "drv-1", Revenue: 1000, Timestamp: time.Now(), GPS: &domain.Coordinates{Lat: -6.8000, Lng: 39.2800}},
		{ID: "t2", DriverID: "drv-1", Revenue: 1500, Timestamp: time.Now(), GPS: &domain.Coordinates{Lat: -6.1659, Lng: 39.2026}},
	}
	source := &stubSource{result: ports.FetchResult{Events: events}}
	sink := &stubSink{}

	svc := newPatrol(source, sink, nil, nil)
	report, err := svc.Run(context.Background())

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if report.AlertsEmitted != 0 {
		t.Errorf("expected a quiet cycle, got %d alerts", report.AlertsEmitted)
	}
	if svc.LastReport() != report {
		t.Errorf("LastReport must return the completed cycle")
	}
	if svc.Phase() != domain.PhaseIdle {
		t.Errorf("runner must return to idle, got %q", svc.Phase())
	}
}
