package redis

import (
	"testing"
	"time"
)

func TestAlertLedger_KeyIsDayGranular(t *testing.T) {
	l := &AlertLedger{}

	morning := time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 9, 1, 22, 30, 0, 0, time.UTC)
	nextDay := time.Date(2026, 9, 2, 6, 0, 0, 0, time.UTC)

	if l.key("drv-1", "gps-stationary-high-revenue", morning) != l.key("drv-1", "gps-stationary-high-revenue", evening) {
		t.Error("same subject, rule, and day must map to the same key")
	}
	if l.key("drv-1", "gps-stationary-high-revenue", morning) == l.key("drv-1", "gps-stationary-high-revenue", nextDay) {
		t.Error("a new day must map to a new key")
	}
	if got, want := l.key("drv-1", "r1", morning), "alert:drv-1:r1:2026-09-01"; got != want {
		t.Errorf("key = %q, want %q", got, want)
	}
}

func TestAlertLedger_KeyUsesUTCDay(t *testing.T) {
	l := &AlertLedger{}

	// 23:30 in UTC+3 is 20:30 UTC, still the same UTC day.
	eat := time.FixedZone("EAT", 3*3600)
	local := time.Date(2026, 9, 1, 23, 30, 0, 0, eat)

	if got, want := l.key("drv-1", "r1", local), "alert:drv-1:r1:2026-09-01"; got != want {
		t.Errorf("key = %q, want %q", got, want)
	}
}
