package retry_test

import (
	"testing"
	"time"

	"stamper/internal/retry"
)

func TestDelayDoublesPerRetry(t *testing.T) {
	base := 5 * time.Second
	cases := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, 5 * time.Second},
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 40 * time.Second},
	}
	for _, tc := range cases {
		if got := retry.Delay(base, tc.retryCount); got != tc.want {
			t.Fatalf("Delay(%v, %d) = %v, want %v", base, tc.retryCount, got, tc.want)
		}
	}
}

func TestDelayGuardsDegenerateInputs(t *testing.T) {
	if got := retry.Delay(0, 3); got != 0 {
		t.Fatalf("Delay(0, 3) = %v, want 0", got)
	}
	if got := retry.Delay(5*time.Second, -1); got != 5*time.Second {
		t.Fatalf("Delay with negative count = %v, want base", got)
	}
}

func TestRetryableBudget(t *testing.T) {
	// max_retries=3 means four total attempts: the initial one plus three
	// retries at counts 0, 1 and 2.
	for count := 0; count < 3; count++ {
		if !retry.Retryable(count, 3) {
			t.Fatalf("expected retry budget remaining at count %d", count)
		}
	}
	if retry.Retryable(3, 3) {
		t.Fatal("expected budget exhausted at count 3")
	}
	if retry.Retryable(0, 0) {
		t.Fatal("expected no retries when max is zero")
	}
}
