package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bahati/fleet-guardian/internal/core/domain"
	"github.com/bahati/fleet-guardian/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(context.Context) error { return p.err }

type stubRunner struct {
	report *ports.CycleReport
	runErr error
	phase  domain.Phase
}

func (r *stubRunner) Run(context.Context) (*ports.CycleReport, error) {
	if r.runErr != nil {
		return nil, r.runErr
	}
	return r.report, nil
}

func (r *stubRunner) LastReport() *ports.CycleReport { return r.report }
func (r *stubRunner) Phase() domain.Phase            { return r.phase }

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func doRequest(t *testing.T, h echo.HandlerFunc, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		e.HTTPErrorHandler(err, e.NewContext(req, rec))
	}
	return rec
}

func TestReadiness_StoreReachable(t *testing.T) {
	h := NewStatusHandler(&stubPinger{}, &stubRunner{phase: domain.PhaseIdle}, nil)

	rec := doRequest(t, h.Readiness, http.MethodGet, "/health/ready")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp readinessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Status != "ok" || resp.Dependencies["store"].Status != "ok" {
		t.Errorf("unexpected readiness response: %+v", resp)
	}
}

func TestReadiness_StoreDown(t *testing.T) {
	h := NewStatusHandler(&stubPinger{err: errors.New("connection refused")}, &stubRunner{phase: domain.PhaseIdle}, nil)

	rec := doRequest(t, h.Readiness, http.MethodGet, "/health/ready")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestStatus_IncludesLastCycle(t *testing.T) {
	report := &ports.CycleReport{
		StartedAt:        time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC),
		FinishedAt:       time.Date(2026, 9, 1, 6, 0, 2, 0, time.UTC),
		EventsFetched:    120,
		DriversTotal:     9,
		DriversEvaluated: 4,
		AlertsEmitted:    1,
	}
	h := NewStatusHandler(&stubPinger{}, &stubRunner{report: report, phase: domain.PhaseIdle}, nil)

	rec := doRequest(t, h.Status, http.MethodGet, "/api/status")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Phase != domain.PhaseIdle {
		t.Errorf("unexpected phase: %q", resp.Phase)
	}
	if resp.LastCycle == nil || resp.LastCycle.EventsFetched != 120 || resp.LastCycle.AlertsEmitted != 1 {
		t.Errorf("unexpected last cycle summary: %+v", resp.LastCycle)
	}
}

func TestStatus_NoCycleYet(t *testing.T) {
	h := NewStatusHandler(&stubPinger{}, &stubRunner{phase: domain.PhaseIdle}, nil)

	rec := doRequest(t, h.Status, http.MethodGet, "/api/status")

	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.LastCycle != nil {
		t.Errorf("expected no last cycle before the first run")
	}
}

func TestTriggerPatrol_ReturnsSummary(t *testing.T) {
	report := &ports.CycleReport{EventsFetched: 10, AlertsEmitted: 2}
	h := NewStatusHandler(&stubPinger{}, &stubRunner{report: report}, nil)

	rec := doRequest(t, h.TriggerPatrol, http.MethodPost, "/api/patrol")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp cycleSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.AlertsEmitted != 2 {
		t.Errorf("unexpected summary: %+v", resp)
	}
}

func TestTriggerPatrol_InFlightPropagates(t *testing.T) {
	h := NewStatusHandler(&stubPinger{}, &stubRunner{runErr: domain.ErrPatrolInFlight}, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/patrol", nil)
	rec := httptest.NewRecorder()

	err := h.TriggerPatrol(e.NewContext(req, rec))
	if !errors.Is(err, domain.ErrPatrolInFlight) {
		t.Errorf("expected ErrPatrolInFlight to propagate to the error handler, got: %v", err)
	}
}
