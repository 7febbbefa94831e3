package assignment_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatfloor/dispatch/internal/assignment"
	"github.com/chatfloor/dispatch/internal/cache"
	"github.com/chatfloor/dispatch/internal/clock"
	"github.com/chatfloor/dispatch/internal/db"
	"github.com/chatfloor/dispatch/internal/db/sqlc"
	"github.com/chatfloor/dispatch/internal/events"
	"github.com/chatfloor/dispatch/internal/lock"
	"github.com/chatfloor/dispatch/internal/timer"
)

type testStack struct {
	queries     *sqlc.Queries
	locks       *lock.Service
	timers      *timer.Service
	assignments *assignment.Service
	clock       *clock.Manual
	bus         *events.MemoryBus
}

func setupAssignmentIntegrationTest(t *testing.T) (*testStack, func()) {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("skip integration test: TEST_POSTGRES_DSN is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("skip integration test: cannot connect to database: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("skip integration test: database ping failed: %v", err)
	}

	queries := sqlc.New(pool)
	clk := clock.NewManual(time.Now().UTC())
	bus := events.NewMemoryBus()
	locks := lock.NewService(nil, pool, queries, cache.New[string](clk), clk, bus)
	timers := timer.NewService(nil, clk, bus, locks, nil, 60*time.Second, 30*time.Second)
	assignments := assignment.NewService(nil, pool, queries, locks, timers, bus, clk, 5*time.Minute)
	timers.SetChecker(assignments)

	stack := &testStack{
		queries:     queries,
		locks:       locks,
		timers:      timers,
		assignments: assignments,
		clock:       clk,
		bus:         bus,
	}
	return stack, func() { pool.Close() }
}

func createTestWorker(t *testing.T, stack *testStack) string {
	t.Helper()
	row, err := stack.queries.CreateWorker(context.Background(), sqlc.CreateWorkerParams{
		DisplayName:  "worker-" + uuid.NewString()[:8],
		IsActive:     true,
		IsOnline:     true,
		LastActivity: db.Timestamptz(stack.clock.Now()),
	})
	if err != nil {
		t.Fatalf("create worker: %v", err)
	}
	return db.UUIDToString(row.ID)
}

func createTestPersona(t *testing.T, stack *testStack) string {
	t.Helper()
	row, err := stack.queries.CreatePersona(context.Background(), sqlc.CreatePersonaParams{
		DisplayName: "persona-" + uuid.NewString()[:8],
		IsActive:    true,
	})
	if err != nil {
		t.Fatalf("create persona: %v", err)
	}
	return db.UUIDToString(row.ID)
}

func TestGrantIsExclusivePerPersona(t *testing.T) {
	stack, teardown := setupAssignmentIntegrationTest(t)
	defer teardown()
	ctx := context.Background()

	workerA := createTestWorker(t, stack)
	workerB := createTestWorker(t, stack)
	persona := createTestPersona(t, stack)

	granted, err := stack.assignments.Grant(ctx, workerA, persona, true)
	if err != nil {
		t.Fatalf("Grant A: %v", err)
	}
	if granted == nil || !granted.Primary {
		t.Fatalf("Grant A = %+v, want a primary assignment", granted)
	}

	second, err := stack.assignments.Grant(ctx, workerB, persona, true)
	if err != nil {
		t.Fatalf("Grant B: %v", err)
	}
	if second != nil {
		t.Error("persona granted to a second worker while held")
	}
}

func TestGrantPrimaryReplacesExisting(t *testing.T) {
	stack, teardown := setupAssignmentIntegrationTest(t)
	defer teardown()
	ctx := context.Background()

	worker := createTestWorker(t, stack)
	personaOld := createTestPersona(t, stack)
	personaNew := createTestPersona(t, stack)

	if _, err := stack.assignments.Grant(ctx, worker, personaOld, true); err != nil {
		t.Fatalf("Grant old: %v", err)
	}
	granted, err := stack.assignments.Grant(ctx, worker, personaNew, true)
	if err != nil {
		t.Fatalf("Grant new: %v", err)
	}
	if granted == nil || !granted.Primary {
		t.Fatalf("Grant new = %+v, want a primary assignment", granted)
	}

	// The previous primary went through demote then deactivate.
	active, err := stack.assignments.IsAssignmentActive(ctx, worker, personaOld)
	if err != nil {
		t.Fatalf("IsAssignmentActive old: %v", err)
	}
	if active {
		t.Error("old primary still active after a new primary grant")
	}

	pgWorker, err := db.ParseUUID(worker)
	if err != nil {
		t.Fatal(err)
	}
	actives, err := stack.queries.ListActiveAssignmentsByWorker(ctx, pgWorker)
	if err != nil {
		t.Fatal(err)
	}
	primaries := 0
	for _, a := range actives {
		if a.IsPrimary {
			primaries++
		}
	}
	if primaries != 1 {
		t.Errorf("active primaries = %d, want exactly 1", primaries)
	}
}

func TestGrantPrimaryUnbindsDisplacedClients(t *testing.T) {
	stack, teardown := setupAssignmentIntegrationTest(t)
	defer teardown()
	ctx := context.Background()

	worker := createTestWorker(t, stack)
	personaOld := createTestPersona(t, stack)
	personaNew := createTestPersona(t, stack)
	client := "client-" + uuid.NewString()[:8]

	old, err := stack.assignments.Grant(ctx, worker, personaOld, true)
	if err != nil || old == nil {
		t.Fatalf("Grant old = %+v, %v", old, err)
	}
	if bound, err := stack.assignments.BindClient(ctx, old.ID, client); err != nil || !bound {
		t.Fatalf("BindClient = %v, %v", bound, err)
	}

	granted, err := stack.assignments.Grant(ctx, worker, personaNew, true)
	if err != nil || granted == nil {
		t.Fatalf("Grant new = %+v, %v", granted, err)
	}
	defer stack.assignments.Release(ctx, worker)

	// Displacing the primary retires its clients too, the same as a release;
	// a binding on a dead assignment would pin the client forever.
	pgOld, err := db.ParseUUID(old.ID)
	if err != nil {
		t.Fatal(err)
	}
	bindings, err := stack.queries.ListActiveBindingsByAssignment(ctx, pgOld)
	if err != nil {
		t.Fatal(err)
	}
	if len(bindings) != 0 {
		t.Errorf("displaced assignment still holds %d bindings", len(bindings))
	}

	locked, err := stack.locks.IsLocked(ctx, lock.ClientPersonaResource(client, personaOld))
	if err != nil {
		t.Fatal(err)
	}
	if locked {
		t.Error("client-persona lock survived the primary handoff")
	}
}

func TestGrantReusesReleasedRow(t *testing.T) {
	stack, teardown := setupAssignmentIntegrationTest(t)
	defer teardown()
	ctx := context.Background()

	worker := createTestWorker(t, stack)
	persona := createTestPersona(t, stack)

	first, err := stack.assignments.Grant(ctx, worker, persona, false)
	if err != nil || first == nil {
		t.Fatalf("Grant = %+v, %v", first, err)
	}
	if err := stack.assignments.Release(ctx, worker); err != nil {
		t.Fatalf("Release: %v", err)
	}

	again, err := stack.assignments.Grant(ctx, worker, persona, false)
	if err != nil || again == nil {
		t.Fatalf("regrant = %+v, %v", again, err)
	}
	if again.ID != first.ID {
		t.Errorf("regrant created a new row %s, want reactivated %s", again.ID, first.ID)
	}
}

func TestBindClientIsPersonaWideExclusive(t *testing.T) {
	stack, teardown := setupAssignmentIntegrationTest(t)
	defer teardown()
	ctx := context.Background()

	workerA := createTestWorker(t, stack)
	workerB := createTestWorker(t, stack)
	persona := createTestPersona(t, stack)
	client := "client-" + uuid.NewString()[:8]

	held, err := stack.assignments.Grant(ctx, workerA, persona, true)
	if err != nil || held == nil {
		t.Fatalf("Grant A = %+v, %v", held, err)
	}
	shared, err := stack.assignments.GrantShared(ctx, workerB, persona)
	if err != nil || shared == nil {
		t.Fatalf("GrantShared B = %+v, %v", shared, err)
	}

	bound, err := stack.assignments.BindClient(ctx, held.ID, client)
	if err != nil || !bound {
		t.Fatalf("BindClient A = %v, %v; want true, nil", bound, err)
	}

	// Same client on another assignment of the same persona must refuse.
	bound, err = stack.assignments.BindClient(ctx, shared.ID, client)
	if err != nil {
		t.Fatalf("BindClient B: %v", err)
	}
	if bound {
		t.Error("client bound to two assignments of one persona")
	}

	// Binding again where the client already lives is a no-op success.
	bound, err = stack.assignments.BindClient(ctx, held.ID, client)
	if err != nil || !bound {
		t.Errorf("rebind = %v, %v; want true, nil", bound, err)
	}
}

func TestReleaseFreesBindingsAndLocks(t *testing.T) {
	stack, teardown := setupAssignmentIntegrationTest(t)
	defer teardown()
	ctx := context.Background()

	worker := createTestWorker(t, stack)
	persona := createTestPersona(t, stack)
	client := "client-" + uuid.NewString()[:8]

	granted, err := stack.assignments.Grant(ctx, worker, persona, true)
	if err != nil || granted == nil {
		t.Fatalf("Grant = %+v, %v", granted, err)
	}
	if bound, err := stack.assignments.BindClient(ctx, granted.ID, client); err != nil || !bound {
		t.Fatalf("BindClient = %v, %v", bound, err)
	}

	if err := stack.assignments.Release(ctx, worker); err != nil {
		t.Fatalf("Release: %v", err)
	}

	active, err := stack.assignments.IsAssignmentActive(ctx, worker, persona)
	if err != nil {
		t.Fatal(err)
	}
	if active {
		t.Error("assignment still active after Release")
	}

	locked, err := stack.locks.IsLocked(ctx, lock.ClientPersonaResource(client, persona))
	if err != nil {
		t.Fatal(err)
	}
	if locked {
		t.Error("client-persona lock survived Release")
	}
	if stack.timers.ActiveCount() != 0 {
		t.Errorf("timers left after Release: %d", stack.timers.ActiveCount())
	}
}

func TestReassignInactiveReclaimsStaleWork(t *testing.T) {
	stack, teardown := setupAssignmentIntegrationTest(t)
	defer teardown()
	ctx := context.Background()

	worker := createTestWorker(t, stack)
	persona := createTestPersona(t, stack)

	if granted, err := stack.assignments.Grant(ctx, worker, persona, true); err != nil || granted == nil {
		t.Fatalf("Grant = %+v, %v", granted, err)
	}

	stack.clock.Advance(2 * time.Minute)
	count, err := stack.assignments.ReassignInactive(ctx, 60*time.Second)
	if err != nil {
		t.Fatalf("ReassignInactive: %v", err)
	}
	if count < 1 {
		t.Fatalf("ReassignInactive reclaimed %d, want at least 1", count)
	}

	active, err := stack.assignments.IsAssignmentActive(ctx, worker, persona)
	if err != nil {
		t.Fatal(err)
	}
	if active {
		t.Error("stale assignment still active after ReassignInactive")
	}
}

func TestExtendTimerDefersReclaim(t *testing.T) {
	stack, teardown := setupAssignmentIntegrationTest(t)
	defer teardown()
	ctx := context.Background()

	worker := createTestWorker(t, stack)
	persona := createTestPersona(t, stack)

	granted, err := stack.assignments.Grant(ctx, worker, persona, true)
	if err != nil || granted == nil {
		t.Fatalf("Grant = %+v, %v", granted, err)
	}
	defer stack.assignments.Release(ctx, worker)

	if err := stack.assignments.ExtendTimer(ctx, granted.ID, 5); err != nil {
		t.Fatalf("ExtendTimer: %v", err)
	}

	// Two minutes is well past the 60s inactivity threshold, but inside the
	// five extra minutes.
	stack.clock.Advance(2 * time.Minute)
	if _, _, err := stack.timers.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	active, err := stack.assignments.IsAssignmentActive(ctx, worker, persona)
	if err != nil {
		t.Fatal(err)
	}
	if !active {
		t.Error("assignment reclaimed despite an extended timer")
	}
}

func TestMarkActivityKeepsAssignmentFresh(t *testing.T) {
	stack, teardown := setupAssignmentIntegrationTest(t)
	defer teardown()
	ctx := context.Background()

	worker := createTestWorker(t, stack)
	persona := createTestPersona(t, stack)

	granted, err := stack.assignments.Grant(ctx, worker, persona, true)
	if err != nil || granted == nil {
		t.Fatalf("Grant = %+v, %v", granted, err)
	}

	stack.clock.Advance(45 * time.Second)
	if err := stack.assignments.MarkActivity(ctx, granted.ID); err != nil {
		t.Fatalf("MarkActivity: %v", err)
	}

	// 45s + 45s crosses the 60s threshold from the grant, but activity reset
	// the countdown.
	stack.clock.Advance(45 * time.Second)
	if _, err := stack.assignments.ReassignInactive(ctx, 60*time.Second); err != nil {
		t.Fatalf("ReassignInactive: %v", err)
	}

	active, err := stack.assignments.IsAssignmentActive(ctx, worker, persona)
	if err != nil {
		t.Fatal(err)
	}
	if !active {
		t.Error("fresh assignment reclaimed despite recent activity")
	}
}
