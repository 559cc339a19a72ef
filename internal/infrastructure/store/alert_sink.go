package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/bahati/fleet-guardian/internal/core/domain"
)

// AlertSink implements ports.AlertSink against the store's ai_logs resource,
// one POST per alert.
type AlertSink struct {
	client *Client
	log    zerolog.Logger
}

// NewAlertSink creates an AlertSink on the given client.
func NewAlertSink(client *Client, log zerolog.Logger) *AlertSink {
	return &AlertSink{client: client, log: log}
}

// alertDoc is the fixed wire shape of a published alert.
type alertDoc struct {
	SubjectID    string `json:"subjectId"`
	SubjectLabel string `json:"subjectLabel"`
	Category     string `json:"category"`
	Message      string `json:"message"`
	RuleTag      string `json:"ruleTag"`
	Timestamp    string `json:"timestamp"`
}

// Publish writes one alert record. A non-2xx response or transport failure
// returns an error wrapping domain.ErrPublishFailed; the caller decides what
// to do with the remaining alerts.
func (s *AlertSink) Publish(ctx context.Context, alert domain.FraudAlert) error {
	doc := alertDoc{
		SubjectID:    alert.SubjectID,
		SubjectLabel: alert.SubjectLabel,
		Category:     domain.AlertCategory,
		Message:      alert.Message,
		RuleTag:      alert.RuleTag,
		Timestamp:    alert.CycleTimestamp.UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode alert: %w", domain.ErrPublishFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.endpoint("ai_logs"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %w", domain.ErrPublishFailed, err)
	}
	s.client.authorize(req)
	req.Header.Set("Prefer", "return=minimal")

	resp, err := s.client.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPublishFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.log.Warn().Int("status", resp.StatusCode).Bytes("body", respBody).Msg("sink rejected alert write")
		return fmt.Errorf("%w: unexpected status %d", domain.ErrPublishFailed, resp.StatusCode)
	}
	return nil
}
