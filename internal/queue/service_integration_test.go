package queue_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/chatfloor/dispatch/internal/assignment"
	"github.com/chatfloor/dispatch/internal/cache"
	"github.com/chatfloor/dispatch/internal/clock"
	"github.com/chatfloor/dispatch/internal/db"
	"github.com/chatfloor/dispatch/internal/db/sqlc"
	"github.com/chatfloor/dispatch/internal/events"
	"github.com/chatfloor/dispatch/internal/lock"
	"github.com/chatfloor/dispatch/internal/queue"
	"github.com/chatfloor/dispatch/internal/timer"
)

type queueStack struct {
	pool        *pgxpool.Pool
	queries     *sqlc.Queries
	assignments *assignment.Service
	timers      *timer.Service
	waitQueue   *queue.Service
	clock       *clock.Manual
	bus         *events.MemoryBus
}

func setupQueueIntegrationTest(t *testing.T) (*queueStack, func()) {
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
	waitQueue := queue.NewService(nil, pool, queries, assignments, bus, clk, 1, 30)

	stack := &queueStack{
		pool:        pool,
		queries:     queries,
		assignments: assignments,
		timers:      timers,
		waitQueue:   waitQueue,
		clock:       clk,
		bus:         bus,
	}
	return stack, func() { pool.Close() }
}

func (s *queueStack) createWorker(t *testing.T) string {
	t.Helper()
	row, err := s.queries.CreateWorker(context.Background(), sqlc.CreateWorkerParams{
		DisplayName:  "worker-" + uuid.NewString()[:8],
		IsActive:     true,
		IsOnline:     true,
		LastActivity: db.Timestamptz(s.clock.Now()),
	})
	require.NoError(t, err)
	return db.UUIDToString(row.ID)
}

func (s *queueStack) createPersona(t *testing.T) string {
	t.Helper()
	row, err := s.queries.CreatePersona(context.Background(), sqlc.CreatePersonaParams{
		DisplayName: "persona-" + uuid.NewString()[:8],
		IsActive:    true,
	})
	require.NoError(t, err)
	return db.UUIDToString(row.ID)
}

func (s *queueStack) positionOf(t *testing.T, workerID string) int {
	t.Helper()
	entries, err := s.waitQueue.Entries(context.Background())
	require.NoError(t, err)
	for _, e := range entries {
		if e.WorkerID == workerID {
			return e.Position
		}
	}
	return 0
}

func TestQueuePositionsStayContiguous(t *testing.T) {
	stack, teardown := setupQueueIntegrationTest(t)
	defer teardown()
	ctx := context.Background()

	workers := []string{stack.createWorker(t), stack.createWorker(t), stack.createWorker(t)}
	for _, w := range workers {
		_, err := stack.waitQueue.Enqueue(ctx, w, 0)
		require.NoError(t, err)
		defer stack.waitQueue.Leave(ctx, w)
	}

	require.NoError(t, stack.waitQueue.Leave(ctx, workers[1]))

	entries, err := stack.waitQueue.Entries(ctx)
	require.NoError(t, err)
	for i, e := range entries {
		require.Equal(t, i+1, e.Position, "positions must be contiguous and 1-based")
	}
	require.Zero(t, stack.positionOf(t, workers[1]), "left worker still queued")
}

func TestEnqueuePriorityOnlyRises(t *testing.T) {
	stack, teardown := setupQueueIntegrationTest(t)
	defer teardown()
	ctx := context.Background()

	first := stack.createWorker(t)
	second := stack.createWorker(t)

	_, err := stack.waitQueue.Enqueue(ctx, first, 0)
	require.NoError(t, err)
	defer stack.waitQueue.Leave(ctx, first)
	_, err = stack.waitQueue.Enqueue(ctx, second, 0)
	require.NoError(t, err)
	defer stack.waitQueue.Leave(ctx, second)
	require.Less(t, stack.positionOf(t, first), stack.positionOf(t, second))

	// Raising the later worker's priority moves it ahead.
	entry, err := stack.waitQueue.Enqueue(ctx, second, 5)
	require.NoError(t, err)
	require.Equal(t, 5, entry.Priority)
	require.Less(t, stack.positionOf(t, second), stack.positionOf(t, first))

	// A lower priority on re-enqueue is ignored.
	entry, err = stack.waitQueue.Enqueue(ctx, second, 1)
	require.NoError(t, err)
	require.Equal(t, 5, entry.Priority)
	require.Less(t, stack.positionOf(t, second), stack.positionOf(t, first))
}

func TestEnqueueEstimateStaysInBounds(t *testing.T) {
	stack, teardown := setupQueueIntegrationTest(t)
	defer teardown()
	ctx := context.Background()

	worker := stack.createWorker(t)
	entry, err := stack.waitQueue.Enqueue(ctx, worker, 0)
	require.NoError(t, err)
	defer stack.waitQueue.Leave(ctx, worker)
	require.GreaterOrEqual(t, entry.EstimatedWaitMinutes, 1)
	require.LessOrEqual(t, entry.EstimatedWaitMinutes, 30)
}

func TestReenqueueSamePriorityRefreshesEstimate(t *testing.T) {
	stack, teardown := setupQueueIntegrationTest(t)
	defer teardown()
	ctx := context.Background()

	worker := stack.createWorker(t)
	// Pin the clamp shut on both sides so the estimate is exact regardless of
	// how busy the shared database is.
	narrow := queue.NewService(nil, stack.pool, stack.queries, stack.assignments, stack.bus, stack.clock, 1, 1)
	wide := queue.NewService(nil, stack.pool, stack.queries, stack.assignments, stack.bus, stack.clock, 7, 7)

	first, err := narrow.Enqueue(ctx, worker, 5)
	require.NoError(t, err)
	defer narrow.Leave(ctx, worker)
	require.Equal(t, 1, first.EstimatedWaitMinutes)

	// Same priority, so only the estimate may change.
	second, err := wide.Enqueue(ctx, worker, 5)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.Priority, second.Priority)
	require.Equal(t, 7, second.EstimatedWaitMinutes)

	pgWorker, err := db.ParseUUID(worker)
	require.NoError(t, err)
	stored, err := stack.queries.GetActiveQueueEntryByWorker(ctx, pgWorker)
	require.NoError(t, err)
	require.Equal(t, int32(7), stored.EstimatedWaitMinutes)
}

func TestProcessQueuePrefersPendingPersona(t *testing.T) {
	stack, teardown := setupQueueIntegrationTest(t)
	defer teardown()
	ctx := context.Background()

	waiter := stack.createWorker(t)
	quiet := stack.createPersona(t)
	waiting := stack.createPersona(t)
	stack.assignments.MarkClientMessagePending(waiting, "client-"+uuid.NewString()[:8])

	// Top priority so leftover entries on a shared database cannot jump ahead.
	_, err := stack.waitQueue.Enqueue(ctx, waiter, 100)
	require.NoError(t, err)
	defer stack.waitQueue.Leave(ctx, waiter)

	served, err := stack.waitQueue.ProcessQueue(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, served, 1)

	pgWaiter, err := db.ParseUUID(waiter)
	require.NoError(t, err)
	actives, err := stack.queries.ListActiveAssignmentsByWorker(ctx, pgWaiter)
	require.NoError(t, err)
	require.Len(t, actives, 1)
	require.Equal(t, waiting, db.UUIDToString(actives[0].PersonaID),
		"persona with a waiting client must be handed out before idle ones")

	holdsQuiet, err := stack.assignments.IsAssignmentActive(ctx, waiter, quiet)
	require.NoError(t, err)
	require.False(t, holdsQuiet)
}

// TestTimeoutHandsCapacityToQueuedWorker drives the full reclamation path: a
// worker holding a persona with a live conversation goes idle, the sweep
// detects it, the stale assignment is released, and queue processing hands
// the freed persona to the waiting worker.
func TestTimeoutHandsCapacityToQueuedWorker(t *testing.T) {
	stack, teardown := setupQueueIntegrationTest(t)
	defer teardown()
	ctx := context.Background()

	holder := stack.createWorker(t)
	waiter := stack.createWorker(t)
	persona := stack.createPersona(t)
	client := "client-" + uuid.NewString()[:8]

	granted, err := stack.assignments.Grant(ctx, holder, persona, true)
	require.NoError(t, err)
	require.NotNil(t, granted)
	bound, err := stack.assignments.BindClient(ctx, granted.ID, client)
	require.NoError(t, err)
	require.True(t, bound)

	// Top priority so leftover entries on a shared database cannot jump ahead.
	_, err = stack.waitQueue.Enqueue(ctx, waiter, 100)
	require.NoError(t, err)

	// The holder goes silent past the 60s threshold.
	stack.clock.Advance(2 * time.Minute)

	expired, _, err := stack.timers.Sweep(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, expired, 1)
	require.NotEmpty(t, stack.bus.ByType(events.TypeInactivityDetected))

	reclaimed, err := stack.assignments.ReassignInactive(ctx, 60*time.Second)
	require.NoError(t, err)
	require.GreaterOrEqual(t, reclaimed, 1)

	active, err := stack.assignments.IsAssignmentActive(ctx, holder, persona)
	require.NoError(t, err)
	require.False(t, active, "idle holder keeps the persona")

	served, err := stack.waitQueue.ProcessQueue(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, served, 1)

	pgWaiter, err := db.ParseUUID(waiter)
	require.NoError(t, err)
	actives, err := stack.queries.ListActiveAssignmentsByWorker(ctx, pgWaiter)
	require.NoError(t, err)
	require.NotEmpty(t, actives, "queued worker received nothing")

	require.Zero(t, stack.positionOf(t, waiter), "served worker still queued")
}
