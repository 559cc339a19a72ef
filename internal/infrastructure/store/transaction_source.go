package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/bahati/fleet-guardian/internal/core/domain"
	"github.com/bahati/fleet-guardian/internal/core/ports"
)

const defaultPageSize = 1000

// TransactionSource implements ports.EventSource against the store's
// transactions resource.
type TransactionSource struct {
	client   *Client
	pageSize int
	log      zerolog.Logger
}

// NewTransactionSource creates a TransactionSource. If pageSize <= 0,
// defaultPageSize is used.
func NewTransactionSource(client *Client, pageSize int, log zerolog.Logger) *TransactionSource {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &TransactionSource{client: client, pageSize: pageSize, log: log}
}

// transactionDoc mirrors the store's wire representation of one transaction.
// Pointer fields distinguish absent from zero; records that fail to decode
// into this shape are excluded, never fatal.
type transactionDoc struct {
	ID         string          `json:"id"`
	DriverID   *string         `json:"driverId"`
	LocationID string          `json:"locationId"`
	Revenue    *float64        `json:"revenue"`
	Timestamp  string          `json:"timestamp"`
	GPS        *coordinatesDoc `json:"gps"`
}

type coordinatesDoc struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// FetchSince retrieves every transaction with a timestamp strictly after
// since, paging through the store until a short page. A transport or decode
// failure at the page level yields an empty result and an error wrapping
// domain.ErrStoreUnavailable; individual malformed records are skipped and
// counted.
func (s *TransactionSource) FetchSince(ctx context.Context, since time.Time) (ports.FetchResult, error) {
	var result ports.FetchResult

	for offset := 0; ; offset += s.pageSize {
		page, err := s.fetchPage(ctx, since, offset)
		if err != nil {
			return ports.FetchResult{}, err
		}

		for _, doc := range page {
			ev, ok := s.decode(doc)
			if !ok {
				result.Malformed++
				continue
			}
			result.Events = append(result.Events, ev)
		}

		if len(page) < s.pageSize {
			return result, nil
		}
	}
}

func (s *TransactionSource) fetchPage(ctx context.Context, since time.Time, offset int) ([]transactionDoc, error) {
	q := url.Values{}
	q.Set("select", "id,driverId,locationId,revenue,timestamp,gps")
	q.Set("timestamp", "gt."+since.UTC().Format(time.RFC3339))
	q.Set("order", "timestamp.asc")
	q.Set("limit", strconv.Itoa(s.pageSize))
	q.Set("offset", strconv.Itoa(offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.client.endpoint("transactions")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", domain.ErrStoreUnavailable, err)
	}
	s.client.authorize(req)

	resp, err := s.client.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.log.Warn().Int("status", resp.StatusCode).Bytes("body", body).Msg("store rejected transaction fetch")
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrStoreUnavailable, resp.StatusCode)
	}

	var page []transactionDoc
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrStoreUnavailable, err)
	}
	return page, nil
}

// Ping verifies the store is reachable and the credential is accepted, using
// a single-row probe query. Used by the readiness endpoint.
func (s *TransactionSource) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.client.endpoint("transactions")+"?select=id&limit=1", nil)
	if err != nil {
		return fmt.Errorf("store ping: %w", err)
	}
	s.client.authorize(req)

	resp, err := s.client.http.Do(req)
	if err != nil {
		return fmt.Errorf("store ping: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("store ping: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// decode converts a wire document to a domain event. Returns false when a
// required field is missing or unparseable; the caller counts the record as
// malformed and moves on.
func (s *TransactionSource) decode(doc transactionDoc) (domain.TransactionEvent, bool) {
	if doc.ID == "" {
		return domain.TransactionEvent{}, false
	}

	ts, err := time.Parse(time.RFC3339, doc.Timestamp)
	if err != nil {
		s.log.Debug().Str("id", doc.ID).Str("timestamp", doc.Timestamp).Msg("skipping record with unparseable timestamp")
		return domain.TransactionEvent{}, false
	}

	ev := domain.TransactionEvent{
		ID:         doc.ID,
		LocationID: doc.LocationID,
		Timestamp:  ts,
	}
	if doc.DriverID != nil {
		ev.DriverID = *doc.DriverID
	}
	if doc.Revenue != nil && !math.IsNaN(*doc.Revenue) && !math.IsInf(*doc.Revenue, 0) {
		ev.Revenue = *doc.Revenue
	}
	if doc.GPS != nil {
		ev.GPS = &domain.Coordinates{Lat: doc.GPS.Lat, Lng: doc.GPS.Lng}
	}
	return ev, true
}
