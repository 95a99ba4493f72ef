package admission

import (
	"context"
	"testing"
	"time"
)

func TestInFlight_Drains(t *testing.T) {
	t.Parallel()

	gate := NewInFlight()
	if !gate.Begin() {
		t.Fatalf("expected begin to succeed")
	}
	if !gate.Begin() {
		t.Fatalf("expected begin to succeed")
	}
	gate.End()
	gate.End()
	gate.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := gate.Wait(ctx); err != nil {
		t.Fatalf("expected drain to succeed: %v", err)
	}
}

func TestInFlight_ClosePreventsBegin(t *testing.T) {
	t.Parallel()

	gate := NewInFlight()
	gate.Close()
	if gate.Begin() {
		t.Fatalf("expected begin to fail")
	}
}

func TestInFlight_WaitRespectsContext(t *testing.T) {
	t.Parallel()

	gate := NewInFlight()
	if !gate.Begin() {
		t.Fatalf("expected begin to succeed")
	}
	gate.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := gate.Wait(ctx); err == nil {
		t.Fatalf("expected wait to time out with a request in flight")
	}
	gate.End()
}
