package domain

import "errors"

// Error taxonomy for the patrol pipeline. Every failure in
// fetch/aggregate/analyze/emit resolves to one of these, wrapped with
// context; none of them is allowed to surface as a crash.
var (
	// ErrStoreUnavailable marks a transient network or HTTP failure while
	// talking to the transaction store. The cycle continues with an empty
	// event set.
	ErrStoreUnavailable = errors.New("transaction store unavailable")

	// ErrMalformedRecord marks a record the store returned that could not be
	// decoded. The record is excluded; the batch is never abandoned.
	ErrMalformedRecord = errors.New("malformed transaction record")

	// ErrPublishFailed marks a rejected alert write. Reported per alert;
	// remaining alerts in the cycle are still emitted.
	ErrPublishFailed = errors.New("alert publish failed")

	// ErrPatrolInFlight is returned when a cycle is triggered while the
	// previous one has not finished.
	ErrPatrolInFlight = errors.New("patrol cycle already in flight")
)
