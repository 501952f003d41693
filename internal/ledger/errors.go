package ledger

import "errors"

var (
	// ErrConcurrentAttempt is returned by BeginAttempt when another attempt
	// already holds the downloading state for the same (source, video) key.
	ErrConcurrentAttempt = errors.New("concurrent download attempt for key")

	// ErrAlreadyCompleted is returned by BeginAttempt for records that have
	// already finished successfully.
	ErrAlreadyCompleted = errors.New("record already completed")

	// ErrAttemptsExhausted is returned by BeginAttempt when a failed record
	// has reached MaxAttempts.
	ErrAttemptsExhausted = errors.New("record exhausted retry attempts")
)
