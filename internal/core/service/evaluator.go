package service

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/bahati/fleet-guardian/internal/core/domain"
	"github.com/bahati/fleet-guardian/internal/core/geo"
)

const defaultWorkers = 4

// Evaluator fans per-driver rule evaluation out across a fixed set of workers
// sharded by driver id. Parallelism is a throughput optimization only: the
// emitted alert set is identical to a serial scan, and the returned slice is
// sorted by subject then rule so logs stay deterministic.
type Evaluator struct {
	rules       []Rule
	diameter    geo.DiameterFunc
	minActivity int
	workers     int
}

// NewEvaluator builds an Evaluator. Windows below minActivity are invisible
// to every rule. If workers <= 0, defaultWorkers is used; if diameter is nil,
// the pairwise geo.Diameter is used.
func NewEvaluator(rules []Rule, diameter geo.DiameterFunc, minActivity, workers int) *Evaluator {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if diameter == nil {
		diameter = geo.Diameter
	}
	return &Evaluator{
		rules:       rules,
		diameter:    diameter,
		minActivity: minActivity,
		workers:     workers,
	}
}

// EvaluateResult carries the alerts plus how many windows cleared the
// minimum-activity floor.
type EvaluateResult struct {
	Alerts    []domain.FraudAlert
	Evaluated int
}

// Evaluate runs every rule against every eligible window and returns the
// alerts stamped with the cycle timestamp.
func (e *Evaluator) Evaluate(windows map[string]*domain.DriverActivityWindow, cycleTS time.Time) EvaluateResult {
	shards := make([][]*domain.DriverActivityWindow, e.workers)
	evaluated := 0
	for id, w := range windows {
		// Minimum-activity floor: low-activity drivers are invisible to the
		// rules regardless of any other statistic.
		if w.EventCount < e.minActivity {
			continue
		}
		evaluated++
		idx := shardIndex(id, e.workers)
		shards[idx] = append(shards[idx], w)
	}

	results := make([][]domain.FraudAlert, e.workers)
	var wg sync.WaitGroup
	for i, shard := range shards {
		if len(shard) == 0 {
			continue
		}
		wg.Add(1)
		go func(i int, shard []*domain.DriverActivityWindow) {
			defer wg.Done()
			results[i] = e.evaluateShard(shard, cycleTS)
		}(i, shard)
	}
	wg.Wait()

	var alerts []domain.FraudAlert
	for _, r := range results {
		alerts = append(alerts, r...)
	}
	sort.Slice(alerts, func(a, b int) bool {
		if alerts[a].SubjectID != alerts[b].SubjectID {
			return alerts[a].SubjectID < alerts[b].SubjectID
		}
		return alerts[a].RuleTag < alerts[b].RuleTag
	})

	return EvaluateResult{Alerts: alerts, Evaluated: evaluated}
}

func (e *Evaluator) evaluateShard(shard []*domain.DriverActivityWindow, cycleTS time.Time) []domain.FraudAlert {
	var alerts []domain.FraudAlert
	for _, w := range shard {
		diameterKm := e.diameter(w.Positions)
		for _, rule := range e.rules {
			if alert, ok := rule.Evaluate(w, diameterKm); ok {
				alert.CycleTimestamp = cycleTS
				alerts = append(alerts, alert)
			}
		}
	}
	return alerts
}

// shardIndex maps a driver id deterministically to a worker index.
func shardIndex(driverID string, workers int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(driverID))
	return int(h.Sum32()) % workers
}
