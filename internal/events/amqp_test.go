package events

import (
	"encoding/json"
	"testing"

	"github.com/crowdsignals/stadium-simulator/model"
)

func TestEstimatedWaitMinutes(t *testing.T) {
	// Bar serves two people per minute at thirty seconds each.
	if got := estimatedWaitMinutes(model.FacilityBar, 8); got != 2.0 {
		t.Fatalf("bar wait for 8 queued = %v, want 2.0", got)
	}
	// Toilets serve three people per minute at fifteen seconds each.
	if got := estimatedWaitMinutes(model.FacilityToilet, 12); got != 1.0 {
		t.Fatalf("toilet wait for 12 queued = %v, want 1.0", got)
	}
	if got := estimatedWaitMinutes(model.FacilityBar, 0); got != 0 {
		t.Fatalf("empty queue wait = %v, want 0", got)
	}
}

func TestWaitStatusThresholds(t *testing.T) {
	cases := []struct {
		wait float64
		want string
	}{
		{0.2, "normal"},
		{0.6, "medium"},
		{2.0, "high"},
		{3.5, "critical"},
	}
	for _, tc := range cases {
		if got := waitStatus(tc.wait); got != tc.want {
			t.Fatalf("waitStatus(%v) = %q, want %q", tc.wait, got, tc.want)
		}
	}
}

func TestOccupancyStatusThresholds(t *testing.T) {
	cases := []struct {
		rate float64
		want string
	}{
		{10, "low"},
		{60, "medium"},
		{80, "high"},
		{95, "full"},
	}
	for _, tc := range cases {
		if got := occupancyStatus(tc.rate); got != tc.want {
			t.Fatalf("occupancyStatus(%v) = %q, want %q", tc.rate, got, tc.want)
		}
	}
}

func TestQueueUpdatePayloadShape(t *testing.T) {
	payload := queueUpdate{
		EventID:          "e-1",
		EventType:        "queue_update",
		Timestamp:        "2026-01-01T00:00:00Z",
		LocationType:     "BAR",
		LocationID:       "BAR_NORTE_L0",
		Location:         position{X: 500, Y: 600},
		QueueLength:      4,
		Capacity:         10,
		OccupancyRate:    40,
		EstimatedWaitMin: 1,
		Metadata:         map[string]any{"status": "medium"},
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal queue update: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal queue update: %v", err)
	}
	for _, key := range []string{"event_id", "event_type", "location_type", "location_id", "queue_length", "estimated_wait_min"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("queue update payload missing %q field: %s", key, raw)
		}
	}
}

func TestRound1(t *testing.T) {
	if got := round1(17.36); got != 17.4 {
		t.Fatalf("round1(17.36) = %v, want 17.4", got)
	}
	if got := round1(17.32); got != 17.3 {
		t.Fatalf("round1(17.32) = %v, want 17.3", got)
	}
}
