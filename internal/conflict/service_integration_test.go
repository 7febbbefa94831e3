package conflict_test

import (
	"context"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/chatfloor/dispatch/internal/assignment"
	"github.com/chatfloor/dispatch/internal/cache"
	"github.com/chatfloor/dispatch/internal/clock"
	"github.com/chatfloor/dispatch/internal/conflict"
	"github.com/chatfloor/dispatch/internal/db"
	"github.com/chatfloor/dispatch/internal/db/sqlc"
	"github.com/chatfloor/dispatch/internal/events"
	"github.com/chatfloor/dispatch/internal/lock"
	"github.com/chatfloor/dispatch/internal/queue"
	"github.com/chatfloor/dispatch/internal/timer"
)

type conflictStack struct {
	queries     *sqlc.Queries
	assignments *assignment.Service
	waitQueue   *queue.Service
	resolver    *conflict.Service
	clock       *clock.Manual
	bus         *events.MemoryBus
}

func setupConflictIntegrationTest(t *testing.T) (*conflictStack, func()) {
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
	resolver := conflict.NewService(nil, pool, queries, assignments, waitQueue, bus, clk)

	stack := &conflictStack{
		queries:     queries,
		assignments: assignments,
		waitQueue:   waitQueue,
		resolver:    resolver,
		clock:       clk,
		bus:         bus,
	}
	return stack, func() { pool.Close() }
}

func (s *conflictStack) createWorker(t *testing.T) string {
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

func (s *conflictStack) createPersona(t *testing.T) string {
	t.Helper()
	row, err := s.queries.CreatePersona(context.Background(), sqlc.CreatePersonaParams{
		DisplayName: "persona-" + uuid.NewString()[:8],
		IsActive:    true,
	})
	require.NoError(t, err)
	return db.UUIDToString(row.ID)
}

// rawAssignment writes an assignment row directly, bypassing the service
// guards, to fabricate states the resolver must repair.
func (s *conflictStack) rawAssignment(t *testing.T, workerID, personaID string, primary bool, at time.Time) sqlc.Assignment {
	t.Helper()
	pgWorker, err := db.ParseUUID(workerID)
	require.NoError(t, err)
	pgPersona, err := db.ParseUUID(personaID)
	require.NoError(t, err)
	row, err := s.queries.CreateAssignment(context.Background(), sqlc.CreateAssignmentParams{
		WorkerID:     pgWorker,
		PersonaID:    pgPersona,
		IsPrimary:    primary,
		LastActivity: db.Timestamptz(at),
	})
	require.NoError(t, err)
	return row
}

func (s *conflictStack) rawBinding(t *testing.T, assignmentID sqlc.Assignment, clientID string, at time.Time) {
	t.Helper()
	_, err := s.queries.CreateClientBinding(context.Background(), sqlc.CreateClientBindingParams{
		AssignmentID: assignmentID.ID,
		ClientID:     clientID,
		BoundAt:      db.Timestamptz(at),
	})
	require.NoError(t, err)
}

func (s *conflictStack) activeBindingsForPair(t *testing.T, personaID, clientID string) int {
	t.Helper()
	pairs, err := s.queries.ListDuplicateBoundPairs(context.Background())
	require.NoError(t, err)
	for _, p := range pairs {
		if db.UUIDToString(p.PersonaID) == personaID && p.ClientID == clientID {
			return 2 // still duplicated
		}
	}
	return 1
}

func TestValidateIntegrityRepairsDuplicateBindings(t *testing.T) {
	stack, teardown := setupConflictIntegrationTest(t)
	defer teardown()
	ctx := context.Background()

	workerA := stack.createWorker(t)
	workerB := stack.createWorker(t)
	persona := stack.createPersona(t)
	client := "client-" + uuid.NewString()[:8]

	now := stack.clock.Now()
	stale := stack.rawAssignment(t, workerA, persona, false, now.Add(-time.Hour))
	fresh := stack.rawAssignment(t, workerB, persona, false, now)
	stack.rawBinding(t, stale, client, now.Add(-time.Hour))
	stack.rawBinding(t, fresh, client, now)

	issues, err := stack.resolver.ValidateIntegrity(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, issues, 1)
	require.Equal(t, 1, stack.activeBindingsForPair(t, persona, client))

	// The binding on the assignment with the freshest activity survives.
	bindings, err := stack.queries.ListActiveBindingsByAssignment(ctx, fresh.ID)
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	bindings, err = stack.queries.ListActiveBindingsByAssignment(ctx, stale.ID)
	require.NoError(t, err)
	require.Empty(t, bindings)

	require.NotEmpty(t, stack.bus.ByType(events.TypeConflictDetected))

	// A second pass finds nothing left to repair for this pair.
	stack.bus.Reset()
	_, err = stack.resolver.ValidateIntegrity(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stack.activeBindingsForPair(t, persona, client))
}

func TestValidateIntegrityDemotesExtraPrimaries(t *testing.T) {
	stack, teardown := setupConflictIntegrationTest(t)
	defer teardown()
	ctx := context.Background()

	worker := stack.createWorker(t)
	older := stack.createPersona(t)
	newer := stack.createPersona(t)

	now := stack.clock.Now()
	stack.rawAssignment(t, worker, older, true, now.Add(-time.Hour))
	kept := stack.rawAssignment(t, worker, newer, true, now)

	issues, err := stack.resolver.ValidateIntegrity(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, issues, 1)

	pgWorker, err := db.ParseUUID(worker)
	require.NoError(t, err)
	actives, err := stack.queries.ListActiveAssignmentsByWorker(ctx, pgWorker)
	require.NoError(t, err)

	var primaries []string
	for _, a := range actives {
		if a.IsPrimary {
			primaries = append(primaries, db.UUIDToString(a.ID))
		}
	}
	require.Equal(t, []string{db.UUIDToString(kept.ID)}, primaries,
		"only the most recently granted primary survives")
}

func TestHandleConnectionCollisionOrdersDeterministically(t *testing.T) {
	stack, teardown := setupConflictIntegrationTest(t)
	defer teardown()
	ctx := context.Background()

	workerA := stack.createWorker(t)
	workerB := stack.createWorker(t)
	workerC := stack.createWorker(t)
	persona1 := stack.createPersona(t)
	persona2 := stack.createPersona(t)

	// C already holds a persona and must keep it untouched.
	heldPersona := stack.createPersona(t)
	held, err := stack.assignments.Grant(ctx, workerC, heldPersona, true)
	require.NoError(t, err)
	require.NotNil(t, held)

	// Two free personas for three claimants, presented out of order.
	result, err := stack.resolver.HandleConnectionCollision(ctx,
		[]string{workerC, workerB, workerA},
		[]string{persona1, persona2})
	require.NoError(t, err)

	require.Equal(t, heldPersona, result[workerC], "existing holder must keep its persona")

	ordered := []string{workerA, workerB}
	slices.Sort(ordered)
	winner, loser := ordered[0], ordered[1]

	// The lower worker id wins a persona first; both grants come from the
	// offered set.
	require.Contains(t, []string{persona1, persona2}, result[winner])
	if got, ok := result[loser]; ok {
		require.Contains(t, []string{persona1, persona2}, got)
		require.NotEqual(t, result[winner], got)
	} else {
		// No persona left for the loser, so it must be queued.
		entries, err := stack.waitQueue.Entries(ctx)
		require.NoError(t, err)
		queued := false
		for _, e := range entries {
			if e.WorkerID == loser {
				queued = true
			}
		}
		require.True(t, queued, "collision loser was neither granted nor queued")
		require.NoError(t, stack.waitQueue.Leave(ctx, loser))
	}
}
