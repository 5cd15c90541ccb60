package delivery

import "time"

// MaxBackoff caps the retry interval at 24 hours.
const MaxBackoff = 24 * time.Hour

// Backoff returns the wait before the next attempt after attemptCount
// failures: 2^attemptCount minutes, capped at MaxBackoff.
func Backoff(attemptCount int) time.Duration {
	if attemptCount < 0 {
		attemptCount = 0
	}
	// 2^11 minutes already exceeds 24h.
	if attemptCount >= 11 {
		return MaxBackoff
	}
	d := time.Duration(1<<uint(attemptCount)) * time.Minute
	if d > MaxBackoff {
		return MaxBackoff
	}
	return d
}

// Outcome summarizes one finished attempt for the state machine.
type Outcome struct {
	// Success reports whether the destination acknowledged the attempt.
	Success bool

	// ErrorCode classifies the failure, empty on success.
	ErrorCode string

	// ResponseStatus is the HTTP status, zero when no response arrived.
	ResponseStatus int
}

// Effects are the side effects a transition asks its caller to perform.
// The transition itself is pure: it mutates only the delivery value.
type Effects struct {
	// ScheduleRetry asks the caller to enqueue the next attempt at the
	// delivery's NextAttemptAt.
	ScheduleRetry bool

	// NotifyFailure asks the caller to alert subscribers that the
	// delivery exhausted its attempts.
	NotifyFailure bool
}

// BeginAttempt moves a delivery into the delivering state and counts the
// attempt. Callers must check Terminal before invoking.
func BeginAttempt(d *Delivery, now time.Time) {
	d.Status = StatusDelivering
	d.AttemptCount++
	d.NextAttemptAt = nil
	d.UpdatedAt = now
}

// Resolve applies an attempt outcome to a delivering delivery and returns
// the effects the caller must perform. It never touches storage, clocks,
// or the network.
func Resolve(d *Delivery, out Outcome, now time.Time) Effects {
	d.UpdatedAt = now
	d.LastErrorCode = out.ErrorCode
	d.LastResponseStatus = out.ResponseStatus

	if out.Success {
		d.Status = StatusSuccess
		d.NextAttemptAt = nil
		completed := now
		d.CompletedAt = &completed
		return Effects{}
	}

	d.Status = StatusFailed

	if d.Exhausted() {
		d.NextAttemptAt = nil
		completed := now
		d.CompletedAt = &completed
		return Effects{NotifyFailure: true}
	}

	next := now.Add(Backoff(d.AttemptCount))
	d.NextAttemptAt = &next
	return Effects{ScheduleRetry: true}
}

// Cancel withdraws a delivery between attempts. Returns ErrNotCancellable
// when the delivery is in flight or already terminal.
func Cancel(d *Delivery, now time.Time) error {
	if !d.Cancellable() {
		return ErrNotCancellable
	}
	d.Status = StatusCancelled
	d.NextAttemptAt = nil
	completed := now
	d.CompletedAt = &completed
	d.UpdatedAt = now
	return nil
}

// Requeue schedules a manual retry for a non-terminal failed or pending
// delivery. The attempt count is preserved; manual retries do not extend
// the budget.
func Requeue(d *Delivery, now time.Time) error {
	switch d.Status {
	case StatusPending, StatusQueued:
	case StatusFailed:
		if d.Exhausted() {
			return ErrNotRetryable
		}
	default:
		return ErrNotRetryable
	}

	d.Status = StatusQueued
	at := now
	d.NextAttemptAt = &at
	d.UpdatedAt = now
	return nil
}
