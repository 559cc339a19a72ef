// Command guardian runs the fleet-integrity watchdog.
//
//	guardian patrol   run exactly one patrol cycle and exit (default)
//	guardian serve    run scheduled patrols plus the status/metrics server
//
// Exit code 0 means the cycle completed, even with zero alerts. A non-zero
// exit only signals an unrecoverable setup failure (missing credential,
// invalid threshold) or a cancelled cycle.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/bahati/fleet-guardian/internal/api"
	"github.com/bahati/fleet-guardian/internal/core/geo"
	"github.com/bahati/fleet-guardian/internal/core/ports"
	"github.com/bahati/fleet-guardian/internal/core/service"
	"github.com/bahati/fleet-guardian/internal/infrastructure/config"
	mongodb "github.com/bahati/fleet-guardian/internal/infrastructure/db/mongo"
	redisdb "github.com/bahati/fleet-guardian/internal/infrastructure/db/redis"
	"github.com/bahati/fleet-guardian/internal/infrastructure/store"
	"github.com/bahati/fleet-guardian/pkg/logger"
)

func main() {
	mode := "patrol"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "guardian: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	app, cleanup := buildApp(ctx, cfg, log)
	defer cleanup()

	switch mode {
	case "patrol":
		runOnce(ctx, app, log)
	case "serve":
		serve(ctx, cfg, app, log)
	default:
		fmt.Fprintf(os.Stderr, "usage: guardian [patrol|serve]\n")
		os.Exit(2)
	}
}

// app bundles the wired components each mode needs.
type app struct {
	source  *store.TransactionSource
	patrol  *service.PatrolService
	archive ports.AlertArchive
}

// buildApp wires the pipeline from configuration. Redis and Mongo are
// optional enrichments: when configured but unreachable the guardian logs the
// failure and patrols without them rather than refusing to start.
func buildApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, func()) {
	storeClient := store.NewClient(cfg.Store.BaseURL, cfg.Store.Credential, cfg.Store.Timeout)
	sinkClient := store.NewClient(cfg.Sink.BaseURL, cfg.Sink.Credential, cfg.Sink.Timeout)

	source := store.NewTransactionSource(storeClient, cfg.Store.PageSize, log)
	sink := store.NewAlertSink(sinkClient, log)

	cleanups := []func(){}

	var ledger ports.DedupLedger
	if cfg.Redis.Addr != "" {
		client, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			log.Warn().Err(err).Msg("redis unreachable, patrolling without alert dedup")
		} else {
			ledger = redisdb.NewAlertLedger(client)
			cleanups = append(cleanups, func() { _ = client.Close() })
		}
	}

	var archive ports.AlertArchive
	if cfg.Mongo.URI != "" {
		client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			log.Warn().Err(err).Msg("mongo unreachable, patrolling without alert archive")
		} else {
			repo := mongodb.NewAlertRepository(db)
			if err := repo.EnsureIndexes(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to ensure alert indexes")
			}
			archive = repo
			cleanups = append(cleanups, func() {
				disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(disconnectCtx)
			})
		}
	}

	rules := []service.Rule{
		service.StationaryHighRevenueRule{
			MinActivity:           cfg.Patrol.MinActivity,
			MaxStationaryRadiusKm: cfg.Patrol.MaxStationaryRadiusKm,
			MinSuspiciousRevenue:  cfg.Patrol.MinSuspiciousRevenue,
		},
	}
	evaluator := service.NewEvaluator(rules, geo.Diameter, cfg.Patrol.MinActivity, cfg.Patrol.Workers)
	patrol := service.NewPatrolService(source, sink, archive, ledger, evaluator, cfg.Patrol.Window(), log)

	cleanup := func() {
		for _, fn := range cleanups {
			fn()
		}
	}
	return &app{source: source, patrol: patrol, archive: archive}, cleanup
}

// runOnce executes a single patrol cycle.
func runOnce(ctx context.Context, a *app, log zerolog.Logger) {
	report, err := a.patrol.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("patrol cycle did not complete")
		os.Exit(1)
	}
	log.Info().Int("alerts", report.AlertsEmitted).Msg("patrol finished")
}

// serve runs patrols on a fixed interval and exposes the status server.
func serve(ctx context.Context, cfg *config.Config, a *app, log zerolog.Logger) {
	e := api.NewRouter(a.source, a.patrol, a.archive, log)

	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Msg("status server listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("status server stopped")
		}
	}()

	ticker := time.NewTicker(cfg.Patrol.Interval)
	defer ticker.Stop()

	// First patrol fires immediately; later ones on the ticker. The runner's
	// own lock prevents overlap with cycles triggered over HTTP.
	for {
		if _, err := a.patrol.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("scheduled patrol skipped")
		}
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := e.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("status server shutdown error")
			}
			log.Info().Msg("guardian stopped")
			return
		case <-ticker.C:
		}
	}
}
