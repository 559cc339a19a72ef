package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bahati/fleet-guardian/internal/core/domain"
	"github.com/bahati/fleet-guardian/internal/core/ports"
)

// StorePinger is the slice of the store adapter the handlers need.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles GET /health — liveness probe.
// Returns 200 immediately; confirms the process is alive.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// StatusHandler serves readiness and the patrol status summary.
type StatusHandler struct {
	store   StorePinger
	patrol  ports.PatrolRunner
	archive ports.AlertArchive // nil when no archive is configured
}

func NewStatusHandler(store StorePinger, patrol ports.PatrolRunner, archive ports.AlertArchive) *StatusHandler {
	return &StatusHandler{store: store, patrol: patrol, archive: archive}
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

// Readiness handles GET /health/ready: is the transaction store reachable
// with the configured credential?
func (h *StatusHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	deps := make(map[string]dependencyStatus)
	healthy := true

	if err := h.store.Ping(ctx); err != nil {
		deps["store"] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
		healthy = false
	} else {
		deps["store"] = dependencyStatus{Status: "ok"}
	}

	status := "ok"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, readinessResponse{
		Status:       status,
		Dependencies: deps,
	})
}

type cycleSummary struct {
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	EventsFetched    int       `json:"events_fetched"`
	MalformedRecords int       `json:"malformed_records"`
	DriversTotal     int       `json:"drivers_total"`
	DriversEvaluated int       `json:"drivers_evaluated"`
	AlertsEmitted    int       `json:"alerts_emitted"`
	AlertsSuppressed int       `json:"alerts_suppressed"`
	PublishFailures  int       `json:"publish_failures"`
	Errors           []string  `json:"errors,omitempty"`
}

type recentAlert struct {
	SubjectID      string    `json:"subject_id"`
	SubjectLabel   string    `json:"subject_label"`
	RuleTag        string    `json:"rule_tag"`
	Message        string    `json:"message"`
	Severity       string    `json:"severity"`
	CycleTimestamp time.Time `json:"cycle_timestamp"`
}

type statusResponse struct {
	Phase        domain.Phase  `json:"phase"`
	LastCycle    *cycleSummary `json:"last_cycle,omitempty"`
	RecentAlerts []recentAlert `json:"recent_alerts,omitempty"`
}

// Status handles GET /api/status: current phase, last cycle summary, and the
// most recently archived alerts.
func (h *StatusHandler) Status(c echo.Context) error {
	resp := statusResponse{Phase: h.patrol.Phase()}

	if report := h.patrol.LastReport(); report != nil {
		summary := cycleSummary{
			StartedAt:        report.StartedAt,
			FinishedAt:       report.FinishedAt,
			EventsFetched:    report.EventsFetched,
			MalformedRecords: report.MalformedRecords,
			DriversTotal:     report.DriversTotal,
			DriversEvaluated: report.DriversEvaluated,
			AlertsEmitted:    report.AlertsEmitted,
			AlertsSuppressed: report.AlertsSuppressed,
			PublishFailures:  report.PublishFailures,
		}
		for _, err := range report.Errors {
			summary.Errors = append(summary.Errors, err.Error())
		}
		resp.LastCycle = &summary
	}

	if h.archive != nil {
		alerts, err := h.archive.ListRecent(c.Request().Context(), 20)
		if err != nil {
			return err
		}
		for _, a := range alerts {
			resp.RecentAlerts = append(resp.RecentAlerts, recentAlert{
				SubjectID:      a.SubjectID,
				SubjectLabel:   a.SubjectLabel,
				RuleTag:        a.RuleTag,
				Message:        a.Message,
				Severity:       string(a.Severity),
				CycleTimestamp: a.CycleTimestamp,
			})
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// TriggerPatrol handles POST /api/patrol: runs one cycle immediately.
// Responds 409 when a cycle is already in flight.
func (h *StatusHandler) TriggerPatrol(c echo.Context) error {
	report, err := h.patrol.Run(c.Request().Context())
	if err != nil {
		return err
	}

	summary := cycleSummary{
		StartedAt:        report.StartedAt,
		FinishedAt:       report.FinishedAt,
		EventsFetched:    report.EventsFetched,
		MalformedRecords: report.MalformedRecords,
		DriversTotal:     report.DriversTotal,
		DriversEvaluated: report.DriversEvaluated,
		AlertsEmitted:    report.AlertsEmitted,
		AlertsSuppressed: report.AlertsSuppressed,
		PublishFailures:  report.PublishFailures,
	}
	for _, e := range report.Errors {
		summary.Errors = append(summary.Errors, e.Error())
	}
	return c.JSON(http.StatusOK, summary)
}
