// Package worker claims and dispatches analysis jobs (C8 in
// SPEC_FULL.md): a lease-based loop with a visibility-timeout sweep for
// stuck jobs and an uncapped exponential backoff on retryable
// failures.
package worker

import "strings"

// nonRetryableSubstrings aborts a job to its terminal failed state
// instead of rescheduling it — these indicate the job will never
// succeed no matter how many times it's retried.
var nonRetryableSubstrings = []string{
	"insufficient_quota",
	"401",
	"403",
}

// retryableSubstrings reschedules the job for another attempt. Checked
// only once none of nonRetryableSubstrings match.
var retryableSubstrings = []string{
	"timeout",
	"json",
	"validation",
}

// IsRetryable classifies a job failure by substring match against its
// error message, the same shape as the reference pipeline's provider
// error codes. An error matching neither list defaults to
// non-retryable — an unrecognized failure is assumed to need operator
// attention rather than silently retrying forever.
func IsRetryable(errMsg string) bool {
	lower := strings.ToLower(errMsg)
	for _, s := range nonRetryableSubstrings {
		if strings.Contains(lower, strings.ToLower(s)) {
			return false
		}
	}
	for _, s := range retryableSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
