package timer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chatfloor/dispatch/internal/clock"
	"github.com/chatfloor/dispatch/internal/events"
	"github.com/chatfloor/dispatch/internal/timer"
)

type stubLocker struct {
	denyAcquire bool
	acquired    []string
}

func (l *stubLocker) Acquire(ctx context.Context, resourceID, holderID, lockType string, ttl time.Duration) (bool, error) {
	if l.denyAcquire {
		return false, nil
	}
	l.acquired = append(l.acquired, resourceID)
	return true, nil
}

func (l *stubLocker) Release(ctx context.Context, resourceID string) (bool, error) {
	return true, nil
}

type stubChecker struct {
	active   map[string]bool
	failures int
}

func (c *stubChecker) IsAssignmentActive(ctx context.Context, workerID, personaID string) (bool, error) {
	if c.failures > 0 {
		c.failures--
		return false, errors.New("storage unavailable")
	}
	if c.active == nil {
		return true, nil
	}
	return c.active[workerID+"|"+personaID], nil
}

func newTestService(t *testing.T, clk clock.Clock, bus events.Bus, checker timer.AssignmentChecker) *timer.Service {
	t.Helper()
	return timer.NewService(nil, clk, bus, &stubLocker{}, checker, 60*time.Second, 30*time.Second)
}

func TestSweepWarnsOnceThenExpires(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	bus := events.NewMemoryBus()
	svc := newTestService(t, clk, bus, &stubChecker{})

	svc.Start("w1", "p1", "c1")

	// Before the warning window nothing happens.
	clk.Advance(20 * time.Second)
	if _, warned, err := svc.Sweep(context.Background()); err != nil || warned != 0 {
		t.Fatalf("Sweep = warned %d, err %v; want 0, nil", warned, err)
	}

	// Inside the window the warning fires exactly once across repeated sweeps.
	clk.Advance(15 * time.Second)
	for i := 0; i < 3; i++ {
		if _, _, err := svc.Sweep(context.Background()); err != nil {
			t.Fatalf("Sweep: %v", err)
		}
	}
	if got := len(bus.ByType(events.TypeInactivityWarning)); got != 1 {
		t.Fatalf("warnings = %d, want 1", got)
	}

	// Past the threshold the entry expires exactly once.
	clk.Advance(30 * time.Second)
	expired, _, err := svc.Sweep(context.Background())
	if err != nil || expired != 1 {
		t.Fatalf("Sweep = expired %d, err %v; want 1, nil", expired, err)
	}
	expired, _, err = svc.Sweep(context.Background())
	if err != nil || expired != 0 {
		t.Fatalf("second Sweep = expired %d, err %v; want 0, nil", expired, err)
	}
	if got := len(bus.ByType(events.TypeInactivityDetected)); got != 1 {
		t.Errorf("detections = %d, want 1", got)
	}
	if svc.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0", svc.ActiveCount())
	}
}

func TestSweepSkipsInactiveAssignment(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	bus := events.NewMemoryBus()
	svc := newTestService(t, clk, bus, &stubChecker{active: map[string]bool{}})

	svc.Start("w1", "p1", "")
	clk.Advance(2 * time.Minute)

	expired, _, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if expired != 0 {
		t.Errorf("expired = %d, want 0 for already-released assignment", expired)
	}
	if got := len(bus.ByType(events.TypeInactivityDetected)); got != 0 {
		t.Errorf("detections = %d, want 0", got)
	}
}

func TestSweepRetriesExpiryAfterCheckerFailure(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	bus := events.NewMemoryBus()
	svc := newTestService(t, clk, bus, &stubChecker{failures: 1})

	svc.Start("w1", "p1", "")
	clk.Advance(2 * time.Minute)

	// First sweep hits the storage blip: no detection yet, but the entry must
	// survive for a retry.
	expired, _, err := svc.Sweep(context.Background())
	if err == nil {
		t.Fatal("Sweep swallowed the checker failure")
	}
	if expired != 0 {
		t.Fatalf("expired = %d during checker failure, want 0", expired)
	}
	if svc.ActiveCount() != 1 {
		t.Fatalf("ActiveCount = %d after failed sweep, want 1", svc.ActiveCount())
	}

	// Storage recovered: the same entry now expires and signals.
	expired, _, err = svc.Sweep(context.Background())
	if err != nil || expired != 1 {
		t.Fatalf("Sweep after recovery = expired %d, err %v; want 1, nil", expired, err)
	}
	if got := len(bus.ByType(events.TypeInactivityDetected)); got != 1 {
		t.Errorf("detections = %d, want 1", got)
	}
	if svc.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0", svc.ActiveCount())
	}
}

func TestResetRestartsCountdown(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	bus := events.NewMemoryBus()
	svc := newTestService(t, clk, bus, &stubChecker{})

	svc.Start("w1", "p1", "c1")
	clk.Advance(50 * time.Second)
	if err := svc.Reset(context.Background(), "w1", "p1", "c1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	// 50s into the original countdown plus 30s more is past the old deadline
	// but well inside the restarted one.
	clk.Advance(30 * time.Second)
	expired, _, err := svc.Sweep(context.Background())
	if err != nil || expired != 0 {
		t.Fatalf("Sweep = expired %d, err %v; want 0, nil", expired, err)
	}
}

func TestResetSkipsWhenGuardHeld(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := timer.NewService(nil, clk, events.NewMemoryBus(), &stubLocker{denyAcquire: true}, &stubChecker{}, 60*time.Second, 30*time.Second)

	svc.Start("w1", "p1", "c1")
	clk.Advance(50 * time.Second)
	if err := svc.Reset(context.Background(), "w1", "p1", "c1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	// The guarded reset lost the race and skipped, so the original deadline
	// still stands.
	clk.Advance(15 * time.Second)
	expired, _, err := svc.Sweep(context.Background())
	if err != nil || expired != 1 {
		t.Fatalf("Sweep = expired %d, err %v; want 1, nil", expired, err)
	}
}

func TestExtendClearsWarning(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	bus := events.NewMemoryBus()
	svc := newTestService(t, clk, bus, &stubChecker{})

	svc.Start("w1", "p1", "c1")
	clk.Advance(40 * time.Second)
	if _, warned, _ := svc.Sweep(context.Background()); warned != 1 {
		t.Fatal("expected a warning before Extend")
	}

	svc.Extend("w1", "p1", 5)

	// The pushed deadline re-arms the warning for a later window.
	clk.Advance(15 * time.Second)
	if _, warned, _ := svc.Sweep(context.Background()); warned != 0 {
		t.Error("warning fired again immediately after Extend")
	}
	clk.Advance(6 * time.Minute)
	if expired, _, _ := svc.Sweep(context.Background()); expired != 1 {
		t.Error("extended entry did not expire at the pushed deadline")
	}
}

func TestCancelAllFor(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, clk, events.NewMemoryBus(), &stubChecker{})

	svc.Start("w1", "p1", "c1")
	svc.Start("w1", "p2", "")
	svc.Start("w2", "p1", "c2")

	svc.CancelAllFor("w1")
	if got := svc.ActiveCount(); got != 1 {
		t.Errorf("ActiveCount = %d, want 1", got)
	}
}
