package balance

import (
	"context"
	"testing"
	"time"

	"github.com/chatfloor/dispatch/internal/cache"
	"github.com/chatfloor/dispatch/internal/clock"
)

func newScoringService() *Service {
	clk := clock.NewManual(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	return NewService(nil, nil, nil, cache.New[time.Time](clk), clk, 100, 20, 2, 5*time.Minute, 30*time.Minute)
}

func TestScore(t *testing.T) {
	svc := newScoringService()
	tests := []struct {
		conversations int
		want          int
	}{
		{0, 100},
		{1, 80},
		{2, 60},
		{3, 40},
		{4, 20},
		{5, 0},
		{9, 0},
	}
	for _, tt := range tests {
		if got := svc.Score(tt.conversations); got != tt.want {
			t.Errorf("Score(%d) = %d, want %d", tt.conversations, got, tt.want)
		}
	}
}

// The services here are built with nil queries and a nil mover, so any
// database read or move attempt during cooldown would panic. A clean return
// proves the gate short-circuits first.

func TestDetectImbalanceHonorsCooldown(t *testing.T) {
	svc := newScoringService()
	svc.marker.Put(rebalanceMarkerKey, svc.clock.Now(), time.Minute)

	pair, err := svc.DetectImbalance(context.Background())
	if err != nil {
		t.Fatalf("DetectImbalance during cooldown: %v", err)
	}
	if pair != nil {
		t.Errorf("DetectImbalance during cooldown = %+v, want nil", pair)
	}
}

func TestRedistributeHonorsCooldown(t *testing.T) {
	svc := newScoringService()
	svc.marker.Put(rebalanceMarkerKey, svc.clock.Now(), time.Minute)

	moved, err := svc.Redistribute(context.Background())
	if err != nil {
		t.Fatalf("Redistribute during cooldown: %v", err)
	}
	if moved {
		t.Error("Redistribute moved a conversation during cooldown")
	}
}

func TestCooldownExpiresWithClock(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	marker := cache.New[time.Time](clk)
	marker.Put(rebalanceMarkerKey, clk.Now(), time.Minute)

	if _, cooling := marker.Get(rebalanceMarkerKey); !cooling {
		t.Fatal("marker should be live right after a rebalance")
	}
	clk.Advance(2 * time.Minute)
	if _, cooling := marker.Get(rebalanceMarkerKey); cooling {
		t.Error("marker should expire once the cooldown elapses")
	}
}

func TestStatusFor(t *testing.T) {
	svc := newScoringService()
	tests := []struct {
		score int
		want  Status
	}{
		{100, StatusAvailable},
		{51, StatusAvailable},
		{50, StatusBusy},
		{21, StatusBusy},
		{20, StatusOverloaded},
		{0, StatusOverloaded},
	}
	for _, tt := range tests {
		if got := svc.StatusFor(tt.score); got != tt.want {
			t.Errorf("StatusFor(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
