package models

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		from  OrderStatus
		to    OrderStatus
		admin bool
		want  bool
	}{
		{name: "admin pending to processing", from: StatusPending, to: StatusProcessing, admin: true, want: true},
		{name: "admin processing to shipped", from: StatusProcessing, to: StatusShipped, admin: true, want: true},
		{name: "admin shipped to delivered", from: StatusShipped, to: StatusDelivered, admin: true, want: true},
		{name: "admin delivered to cancelled", from: StatusDelivered, to: StatusCancelled, admin: true, want: true},
		{name: "admin pending to shipped skips processing", from: StatusPending, to: StatusShipped, admin: true, want: false},
		{name: "admin delivered back to shipped", from: StatusDelivered, to: StatusShipped, admin: true, want: false},
		{name: "admin cancelled is terminal", from: StatusCancelled, to: StatusPending, admin: true, want: false},
		{name: "same status", from: StatusProcessing, to: StatusProcessing, admin: true, want: false},
		{name: "unknown status", from: StatusPending, to: OrderStatus("Lost"), admin: true, want: false},
		{name: "owner cancels pending", from: StatusPending, to: StatusCancelled, admin: false, want: true},
		{name: "owner cannot cancel processing", from: StatusProcessing, to: StatusCancelled, admin: false, want: false},
		{name: "owner cannot advance", from: StatusPending, to: StatusProcessing, admin: false, want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := CanTransition(tt.from, tt.to, tt.admin); got != tt.want {
				t.Fatalf("CanTransition(%s, %s, %v) = %v, want %v", tt.from, tt.to, tt.admin, got, tt.want)
			}
		})
	}
}

func TestTimelineDerivedFromHistory(t *testing.T) {
	t.Parallel()

	placed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	processing := placed.Add(time.Hour)
	history := []StatusEntry{
		{Status: StatusPending, Timestamp: placed},
		{Status: StatusProcessing, Timestamp: processing},
	}

	steps := Timeline(history)
	if len(steps) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(steps))
	}
	if !steps[0].Completed || !steps[0].Timestamp.Equal(placed) {
		t.Fatalf("unexpected pending step: %+v", steps[0])
	}
	if !steps[1].Completed || !steps[1].Timestamp.Equal(processing) {
		t.Fatalf("unexpected processing step: %+v", steps[1])
	}
	if steps[2].Completed || steps[2].Timestamp != nil {
		t.Fatalf("shipped should be incomplete: %+v", steps[2])
	}
}

func TestTimelineAppendsCancelled(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	steps := Timeline([]StatusEntry{
		{Status: StatusPending, Timestamp: at},
		{Status: StatusCancelled, Timestamp: at.Add(time.Minute)},
	})

	last := steps[len(steps)-1]
	if last.Status != StatusCancelled || !last.Completed {
		t.Fatalf("expected completed cancelled step, got %+v", last)
	}
}

func TestClampedDecrement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		current       int
		qty           int
		wantRemaining int
		wantApplied   int
	}{
		{name: "enough stock", current: 5, qty: 2, wantRemaining: 3, wantApplied: 2},
		{name: "exact stock", current: 3, qty: 3, wantRemaining: 0, wantApplied: 3},
		{name: "oversold clamps at zero", current: 2, qty: 5, wantRemaining: 0, wantApplied: 2},
		{name: "empty stays empty", current: 0, qty: 1, wantRemaining: 0, wantApplied: 0},
		{name: "non positive quantity", current: 4, qty: 0, wantRemaining: 4, wantApplied: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			remaining, applied := ClampedDecrement(tt.current, tt.qty)
			if remaining != tt.wantRemaining || applied != tt.wantApplied {
				t.Fatalf("ClampedDecrement(%d, %d) = (%d, %d), want (%d, %d)", tt.current, tt.qty, remaining, applied, tt.wantRemaining, tt.wantApplied)
			}
		})
	}
}
