package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Keys expire after two days so a persisting condition re-alerts on a fresh
// day while the same day stays quiet.
const ledgerTTL = 48 * time.Hour

// AlertLedger suppresses duplicate alerts across patrol cycles, backed by
// Redis. Key format: alert:<subject_id>:<rule_tag>:<YYYY-MM-DD>
type AlertLedger struct {
	client *redis.Client
}

// NewAlertLedger creates an AlertLedger wrapping the given Redis client.
func NewAlertLedger(client *redis.Client) *AlertLedger {
	return &AlertLedger{client: client}
}

// Seen reports whether an alert for this subject and rule already fired on
// the given day.
func (l *AlertLedger) Seen(ctx context.Context, subjectID, ruleTag string, day time.Time) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(subjectID, ruleTag, day)).Result()
	if err != nil {
		return false, fmt.Errorf("alert ledger check: %w", err)
	}
	return n > 0, nil
}

// Mark records that an alert fired for this subject, rule, and day.
func (l *AlertLedger) Mark(ctx context.Context, subjectID, ruleTag string, day time.Time) error {
	return l.client.Set(ctx, l.key(subjectID, ruleTag, day), "1", ledgerTTL).Err()
}

func (l *AlertLedger) key(subjectID, ruleTag string, day time.Time) string {
	return fmt.Sprintf("alert:%s:%s:%s", subjectID, ruleTag, day.UTC().Format("2006-01-02"))
}
