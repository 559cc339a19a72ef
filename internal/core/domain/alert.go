package domain

import "time"

// Severity classifies how urgent a fraud alert is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertCategory is the fixed category under which watchdog alerts are filed
// in the external sink.
const AlertCategory = "Security Scan"

// FraudAlert is the output record of the rule engine: one per suspicious
// driver per cycle. Created by a rule, consumed exactly once by the emitter,
// never mutated and never re-read in-process — durability is the sink's job.
type FraudAlert struct {
	SubjectID      string
	SubjectLabel   string
	RuleTag        string
	Message        string
	Severity       Severity
	CycleTimestamp time.Time
}

// Phase names the stage a patrol cycle is currently in. A cycle always
// returns to PhaseIdle; no state survives between cycles.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseFetching    Phase = "fetching"
	PhaseAggregating Phase = "aggregating"
	PhaseAnalyzing   Phase = "analyzing"
	PhaseEmitting    Phase = "emitting"
)
