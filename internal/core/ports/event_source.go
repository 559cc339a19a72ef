package ports

import (
	"context"
	"time"

	"github.com/bahati/fleet-guardian/internal/core/domain"
)

// FetchResult carries a logically complete event sequence plus bookkeeping
// about records that could not be decoded.
type FetchResult struct {
	Events    []domain.TransactionEvent
	Malformed int // records excluded because they could not be decoded
}

// EventSource retrieves transaction events from the external store.
type EventSource interface {
	// FetchSince returns all events with a timestamp strictly after the given
	// instant. Pagination in the underlying store is handled transparently;
	// the caller sees one complete sequence. A transient store failure yields
	// an empty result and an error wrapping domain.ErrStoreUnavailable — it
	// must never panic or abort the cycle.
	FetchSince(ctx context.Context, since time.Time) (FetchResult, error)
}
