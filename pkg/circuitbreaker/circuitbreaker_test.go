package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func fail() error    { return errBoom }
func succeed() error { return nil }

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	b := New(2, 1, time.Minute)

	b.Execute(fail)
	if b.State() != Closed {
		t.Fatalf("state = %s after one failure, want Closed", b.State())
	}
	b.Execute(fail)
	if b.State() != Open {
		t.Fatalf("state = %s after two failures, want Open", b.State())
	}

	if err := b.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() error = %v while open, want ErrCircuitOpen", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := New(2, 1, time.Minute)

	b.Execute(fail)
	b.Execute(succeed)
	b.Execute(fail)

	if b.State() != Closed {
		t.Errorf("state = %s, want Closed after non-consecutive failures", b.State())
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	b := New(1, 2, 10*time.Millisecond)

	b.Execute(fail)
	if b.State() != Open {
		t.Fatalf("state = %s, want Open", b.State())
	}

	time.Sleep(20 * time.Millisecond)

	// First probe succeeds but one success is not enough to close.
	if err := b.Execute(succeed); err != nil {
		t.Fatalf("probe Execute() error = %v", err)
	}
	if b.State() != HalfOpen {
		t.Fatalf("state = %s, want HalfOpen", b.State())
	}

	if err := b.Execute(succeed); err != nil {
		t.Fatalf("probe Execute() error = %v", err)
	}
	if b.State() != Closed {
		t.Errorf("state = %s, want Closed after success threshold", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := New(1, 2, 10*time.Millisecond)

	b.Execute(fail)
	time.Sleep(20 * time.Millisecond)

	b.Execute(fail)
	if b.State() != Open {
		t.Errorf("state = %s, want Open after half-open failure", b.State())
	}
}
