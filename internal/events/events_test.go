package events

import (
	"context"
	"testing"
	"time"
)

func TestNewEnvelope(t *testing.T) {
	at := time.Date(2025, 6, 1, 8, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	event := New(TypePersonaAssigned, at, PersonaAssigned{WorkerID: "w"})

	if event.Meta.ID == "" {
		t.Error("expected a generated id")
	}
	if event.Meta.CorrelationID != event.Meta.ID {
		t.Error("correlation id should default to the event id")
	}
	if event.Meta.Type != TypePersonaAssigned {
		t.Errorf("type = %q", event.Meta.Type)
	}
	if event.Meta.Time.Location() != time.UTC {
		t.Errorf("time not normalized to UTC: %v", event.Meta.Time)
	}
}

func TestMemoryBusRecords(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()
	now := time.Now()

	if err := bus.Publish(ctx, New(TypeLockStatusChanged, now, LockStatusChanged{ResourceID: "r"})); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := bus.Publish(ctx, New(TypeConflictDetected, now, ConflictDetected{Kind: "duplicate_primary"})); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if got := len(bus.Events()); got != 2 {
		t.Fatalf("Events() = %d, want 2", got)
	}
	if got := len(bus.ByType(TypeConflictDetected)); got != 1 {
		t.Errorf("ByType(conflict) = %d, want 1", got)
	}

	bus.Reset()
	if got := len(bus.Events()); got != 0 {
		t.Errorf("Events() after Reset = %d, want 0", got)
	}
}
