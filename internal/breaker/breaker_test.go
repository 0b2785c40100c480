package breaker_test

import (
	"testing"
	"time"

	"emaildispatch/internal/breaker"
)

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := breaker.New(breaker.Config{FailureThreshold: 3, Timeout: time.Minute, RecoveryThreshold: 2})

	for i := 0; i < 2; i++ {
		if !b.Permit() {
			t.Fatalf("expected permit before threshold reached")
		}
		b.RecordFailure()
	}
	if b.State() != breaker.StateClosed {
		t.Fatalf("expected CLOSED before threshold, got %v", b.State())
	}

	b.RecordFailure()
	if b.State() != breaker.StateOpen {
		t.Fatalf("expected OPEN after threshold, got %v", b.State())
	}
	if b.Permit() {
		t.Fatalf("expected OPEN breaker to deny permit before timeout")
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	b := breaker.New(breaker.Config{FailureThreshold: 1, Timeout: time.Millisecond, RecoveryThreshold: 2})

	b.RecordFailure()
	if b.State() != breaker.StateOpen {
		t.Fatalf("expected OPEN, got %v", b.State())
	}

	time.Sleep(2 * time.Millisecond)
	if !b.Permit() {
		t.Fatalf("expected permit after timeout elapses")
	}
	if b.State() != breaker.StateHalfOpen {
		t.Fatalf("expected HALF_OPEN after timeout, got %v", b.State())
	}

	b.RecordSuccess()
	if b.State() != breaker.StateHalfOpen {
		t.Fatalf("expected still HALF_OPEN after one success, got %v", b.State())
	}
	b.RecordSuccess()
	if b.State() != breaker.StateClosed {
		t.Fatalf("expected CLOSED after recovery threshold met, got %v", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := breaker.New(breaker.Config{FailureThreshold: 1, Timeout: time.Millisecond, RecoveryThreshold: 2})

	b.RecordFailure()
	time.Sleep(2 * time.Millisecond)
	b.Permit()
	if b.State() != breaker.StateHalfOpen {
		t.Fatalf("expected HALF_OPEN, got %v", b.State())
	}

	b.RecordFailure()
	if b.State() != breaker.StateOpen {
		t.Fatalf("expected OPEN after half-open failure, got %v", b.State())
	}
}

func TestRegistryIsolatesProviders(t *testing.T) {
	r := breaker.NewRegistry(breaker.Config{FailureThreshold: 1, Timeout: time.Minute, RecoveryThreshold: 1})

	r.Get("sendgrid").RecordFailure()
	if r.Get("sendgrid").State() != breaker.StateOpen {
		t.Fatalf("expected sendgrid OPEN")
	}
	if r.Get("mailgun").State() != breaker.StateClosed {
		t.Fatalf("expected mailgun unaffected, got %v", r.Get("mailgun").State())
	}
}
