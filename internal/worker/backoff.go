package worker

import "time"

// Backoff computes the delay before a job's next attempt. The
// reference Python worker caps this at 300s and scales by 10
// (min((2**next_attempts)*10, 300)); SPEC_FULL.md's elaborated
// behavior drops both the cap and the x10 scale in favor of the plain
// uncapped doubling, so a job that keeps failing backs off
// indefinitely rather than settling at a 5-minute ceiling.
func Backoff(attempts int) time.Duration {
	return time.Duration(1<<uint(attempts+1)) * time.Second
}
