package syncqueue

import "time"

// Backoff returns the delay before the next attempt for an item that has
// already failed retryCount times: base doubled per prior failure, so 30s,
// 60s, 120s with the default base.
func Backoff(base time.Duration, retryCount int) time.Duration {
	if base <= 0 {
		base = 30 * time.Second
	}
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount > 16 {
		retryCount = 16
	}
	return base << uint(retryCount)
}
