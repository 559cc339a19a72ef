package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/bahati/fleet-guardian/internal/api/handler"
	"github.com/bahati/fleet-guardian/internal/core/ports"
)

// NewRouter builds the serve-mode Echo instance: health probes, patrol
// status, a manual patrol trigger, and Prometheus metrics.
func NewRouter(store handler.StorePinger, patrol ports.PatrolRunner, archive ports.AlertArchive, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("guardian"))

	// --- Handlers ---
	healthHandler := handler.NewHealthHandler()
	statusHandler := handler.NewStatusHandler(store, patrol, archive)

	e.GET("/health", healthHandler.Liveness)         // liveness  – is the process alive?
	e.GET("/health/ready", statusHandler.Readiness)  // readiness – is the store reachable?
	e.GET("/metrics", echoprometheus.NewHandler())   // Prometheus scrape endpoint

	e.GET("/api/status", statusHandler.Status)
	e.POST("/api/patrol", statusHandler.TriggerPatrol)

	return e
}
