// Package retry computes the exponential backoff schedule applied to failed
// watermark attempts.
package retry

import "time"

// Delay returns the wait before attempt retryCount+1: base doubles with every
// retry already consumed, so the schedule is base, 2*base, 4*base and so on.
func Delay(base time.Duration, retryCount int) time.Duration {
	if base <= 0 {
		return 0
	}
	if retryCount < 0 {
		retryCount = 0
	}
	delay := base
	for i := 0; i < retryCount; i++ {
		delay *= 2
	}
	return delay
}

// Retryable reports whether a task with the given retry count has budget for
// another attempt. A max of N allows N retries after the initial attempt.
func Retryable(retryCount, maxRetries int) bool {
	return retryCount < maxRetries
}
