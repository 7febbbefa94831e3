// Package assignment grants and revokes persona ownership and binds clients
// to workers.
//
// Every state transition runs inside one transaction with the contested rows
// read FOR UPDATE. Primary handoff is two-phase: demote the old primary, then
// deactivate, then activate the target. The order is load-bearing; flipping
// it would let a concurrent reader observe two primaries for one worker.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatfloor/dispatch/internal/cache"
	"github.com/chatfloor/dispatch/internal/clock"
	"github.com/chatfloor/dispatch/internal/db"
	"github.com/chatfloor/dispatch/internal/db/sqlc"
	"github.com/chatfloor/dispatch/internal/events"
	"github.com/chatfloor/dispatch/internal/lock"
	"github.com/chatfloor/dispatch/internal/timer"
)

// grantGuardTTL bounds the persona guard lock taken while a grant transaction
// runs. Long enough to outlive the transaction, short enough that a crashed
// process frees the persona quickly.
const grantGuardTTL = 10 * time.Second

// pendingTTL bounds how long an unanswered client message keeps marking its
// persona as pending.
const pendingTTL = 30 * time.Minute

// Service is the assignment core.
type Service struct {
	pool    *pgxpool.Pool
	queries *sqlc.Queries
	locks   *lock.Service
	timers  *timer.Service
	bus     events.Bus
	clock   clock.Clock
	logger  *slog.Logger

	// pending marks (persona, client) pairs with an unanswered client
	// message; consulted when choosing which persona to hand out next.
	pending *cache.Cache[string]

	lockTTL time.Duration
}

// NewService creates the assignment service.
func NewService(log *slog.Logger, pool *pgxpool.Pool, queries *sqlc.Queries, locks *lock.Service, timers *timer.Service, bus events.Bus, clk clock.Clock, lockTTL time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	if clk == nil {
		clk = clock.System()
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &Service{
		pool:    pool,
		queries: queries,
		locks:   locks,
		timers:  timers,
		bus:     bus,
		clock:   clk,
		logger:  log.With(slog.String("service", "assignment")),
		pending: cache.New[string](clk),
		lockTTL: lockTTL,
	}
}

// Grant gives personaID to workerID. An empty personaID selects uniformly
// among active personas with no active assignment. Returns (nil, nil) when
// the persona is taken or none is free; that is contention, not an error.
func (s *Service) Grant(ctx context.Context, workerID, personaID string, makePrimary bool) (*Assignment, error) {
	pgWorker, err := db.ParseUUID(workerID)
	if err != nil {
		return nil, fmt.Errorf("invalid worker id: %w", err)
	}

	if personaID == "" {
		free, err := s.queries.ListAvailablePersonas(ctx)
		if err != nil {
			return nil, fmt.Errorf("list available personas: %w", err)
		}
		if len(free) == 0 {
			return nil, nil
		}
		personaID = db.UUIDToString(free[rand.IntN(len(free))].ID)
	}
	pgPersona, err := db.ParseUUID(personaID)
	if err != nil {
		return nil, fmt.Errorf("invalid persona id: %w", err)
	}

	// Guard the persona across processes for the duration of the grant, so a
	// simultaneous claim resolves to a clean miss instead of a constraint
	// error surfacing from the unique index.
	guard := lock.PersonaResource(personaID)
	ok, err := s.locks.Acquire(ctx, guard, workerID, lock.TypePersona, grantGuardTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	defer func() {
		if _, err := s.locks.Release(ctx, guard); err != nil {
			s.logger.Error("release grant guard", slog.String("persona", personaID), slog.Any("error", err))
		}
	}()

	now := s.clock.Now()
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin grant: %w", err)
	}
	defer tx.Rollback(ctx)
	qtx := s.queries.WithTx(tx)

	holders, err := qtx.ListActiveAssignmentsByPersonaForUpdate(ctx, pgPersona)
	if err != nil {
		return nil, fmt.Errorf("read persona holders: %w", err)
	}
	if len(holders) > 0 {
		return nil, nil
	}

	// A new primary displaces everything the worker held, clients and their
	// locks included, exactly as a release would.
	var freedLocks []string
	if makePrimary {
		freedLocks, err = s.unbindWorkerClients(ctx, qtx, pgWorker, now)
		if err != nil {
			return nil, err
		}
		if _, err := qtx.DemoteWorkerPrimaries(ctx, pgWorker); err != nil {
			return nil, fmt.Errorf("demote primaries: %w", err)
		}
		if _, err := qtx.DeactivateWorkerAssignments(ctx, sqlc.DeactivateWorkerAssignmentsParams{
			WorkerID:   pgWorker,
			ReleasedAt: db.Timestamptz(now),
		}); err != nil {
			return nil, fmt.Errorf("deactivate assignments: %w", err)
		}
	}

	var row sqlc.Assignment
	prior, err := qtx.GetLatestAssignmentForWorkerPersona(ctx, sqlc.GetLatestAssignmentForWorkerPersonaParams{
		WorkerID:  pgWorker,
		PersonaID: pgPersona,
	})
	switch {
	case err == nil:
		row, err = qtx.ReactivateAssignment(ctx, sqlc.ReactivateAssignmentParams{
			ID:        prior.ID,
			IsPrimary: makePrimary,
			GrantedAt: db.Timestamptz(now),
		})
		if err != nil {
			return nil, fmt.Errorf("reactivate assignment: %w", err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		row, err = qtx.CreateAssignment(ctx, sqlc.CreateAssignmentParams{
			WorkerID:     pgWorker,
			PersonaID:    pgPersona,
			IsPrimary:    makePrimary,
			LastActivity: db.Timestamptz(now),
		})
		if err != nil {
			return nil, fmt.Errorf("create assignment: %w", err)
		}
	default:
		return nil, fmt.Errorf("read prior assignment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit grant: %w", err)
	}

	if makePrimary {
		s.timers.CancelAllFor(workerID)
		for _, resource := range freedLocks {
			if _, err := s.locks.Release(ctx, resource); err != nil {
				s.logger.Error("release binding lock", slog.String("resource", resource), slog.Any("error", err))
			}
		}
	}

	granted := toAssignment(row)
	s.timers.Start(workerID, personaID, "")
	s.publish(ctx, events.TypePersonaAssigned, events.PersonaAssigned{
		AssignmentID: granted.ID,
		WorkerID:     workerID,
		PersonaID:    personaID,
		Primary:      granted.Primary,
	})
	return &granted, nil
}

// GrantShared gives personaID to workerID as an additional non-primary
// assignment without requiring the persona to be free. Used when moving a
// conversation onto a worker while the original holder keeps serving its
// other clients. Returns (nil, nil) only when the worker already actively
// holds the persona elsewhere in a conflicting state.
func (s *Service) GrantShared(ctx context.Context, workerID, personaID string) (*Assignment, error) {
	pgWorker, err := db.ParseUUID(workerID)
	if err != nil {
		return nil, fmt.Errorf("invalid worker id: %w", err)
	}
	pgPersona, err := db.ParseUUID(personaID)
	if err != nil {
		return nil, fmt.Errorf("invalid persona id: %w", err)
	}

	now := s.clock.Now()
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin shared grant: %w", err)
	}
	defer tx.Rollback(ctx)
	qtx := s.queries.WithTx(tx)

	existing, err := qtx.GetActiveAssignmentForWorkerPersona(ctx, sqlc.GetActiveAssignmentForWorkerPersonaParams{
		WorkerID:  pgWorker,
		PersonaID: pgPersona,
	})
	if err == nil {
		granted := toAssignment(existing)
		return &granted, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("read assignment: %w", err)
	}

	var row sqlc.Assignment
	prior, err := qtx.GetLatestAssignmentForWorkerPersona(ctx, sqlc.GetLatestAssignmentForWorkerPersonaParams{
		WorkerID:  pgWorker,
		PersonaID: pgPersona,
	})
	switch {
	case err == nil:
		row, err = qtx.ReactivateAssignment(ctx, sqlc.ReactivateAssignmentParams{
			ID:        prior.ID,
			IsPrimary: false,
			GrantedAt: db.Timestamptz(now),
		})
		if err != nil {
			return nil, fmt.Errorf("reactivate assignment: %w", err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		row, err = qtx.CreateAssignment(ctx, sqlc.CreateAssignmentParams{
			WorkerID:     pgWorker,
			PersonaID:    pgPersona,
			IsPrimary:    false,
			LastActivity: db.Timestamptz(now),
		})
		if err != nil {
			return nil, fmt.Errorf("create assignment: %w", err)
		}
	default:
		return nil, fmt.Errorf("read prior assignment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit shared grant: %w", err)
	}

	granted := toAssignment(row)
	s.timers.Start(workerID, personaID, "")
	s.publish(ctx, events.TypePersonaAssigned, events.PersonaAssigned{
		AssignmentID: granted.ID,
		WorkerID:     workerID,
		PersonaID:    personaID,
		Primary:      false,
	})
	return &granted, nil
}

// Release demotes then deactivates every active assignment owned by the
// worker, unbinds its clients, and frees their locks.
func (s *Service) Release(ctx context.Context, workerID string) error {
	pgWorker, err := db.ParseUUID(workerID)
	if err != nil {
		return fmt.Errorf("invalid worker id: %w", err)
	}

	now := s.clock.Now()
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin release: %w", err)
	}
	defer tx.Rollback(ctx)
	qtx := s.queries.WithTx(tx)

	freedLocks, err := s.unbindWorkerClients(ctx, qtx, pgWorker, now)
	if err != nil {
		return err
	}

	// Two-phase: clear the primary flag first and persist it, only then
	// deactivate. Readers between the statements see a demoted but still
	// active assignment, never two primaries.
	if _, err := qtx.DemoteWorkerPrimaries(ctx, pgWorker); err != nil {
		return fmt.Errorf("demote primaries: %w", err)
	}
	if _, err := qtx.DeactivateWorkerAssignments(ctx, sqlc.DeactivateWorkerAssignmentsParams{
		WorkerID:   pgWorker,
		ReleasedAt: db.Timestamptz(now),
	}); err != nil {
		return fmt.Errorf("deactivate assignments: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit release: %w", err)
	}

	s.timers.CancelAllFor(workerID)
	for _, resource := range freedLocks {
		if _, err := s.locks.Release(ctx, resource); err != nil {
			s.logger.Error("release binding lock", slog.String("resource", resource), slog.Any("error", err))
		}
	}
	return nil
}

// unbindWorkerClients deactivates every client binding under the worker's
// active assignments, inside the caller's transaction, and returns the
// client-persona lock resources those bindings held. The caller releases them
// after commit.
func (s *Service) unbindWorkerClients(ctx context.Context, qtx *sqlc.Queries, pgWorker pgtype.UUID, now time.Time) ([]string, error) {
	actives, err := qtx.ListActiveAssignmentsByWorkerForUpdate(ctx, pgWorker)
	if err != nil {
		return nil, fmt.Errorf("read worker assignments: %w", err)
	}

	var freed []string
	for _, a := range actives {
		bindings, err := qtx.ListActiveBindingsByAssignment(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("read bindings: %w", err)
		}
		for _, b := range bindings {
			if err := qtx.DeactivateBindingByID(ctx, sqlc.DeactivateBindingByIDParams{
				ID:        b.ID,
				UnboundAt: db.Timestamptz(now),
			}); err != nil {
				return nil, fmt.Errorf("unbind client %s: %w", b.ClientID, err)
			}
			freed = append(freed, lock.ClientPersonaResource(b.ClientID, db.UUIDToString(a.PersonaID)))
		}
	}
	return freed, nil
}

// BindClient adds clientID to the assignment's bound set. Returns
// (false, nil) when the client is already bound to another active assignment
// of the same persona, or when the client-persona lock is contested.
func (s *Service) BindClient(ctx context.Context, assignmentID, clientID string) (bool, error) {
	pgAssignment, err := db.ParseUUID(assignmentID)
	if err != nil {
		return false, fmt.Errorf("invalid assignment id: %w", err)
	}

	now := s.clock.Now()
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin bind: %w", err)
	}
	defer tx.Rollback(ctx)
	qtx := s.queries.WithTx(tx)

	a, err := qtx.GetAssignmentForUpdate(ctx, pgAssignment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("read assignment: %w", err)
	}
	if !a.IsActive {
		return false, nil
	}
	personaID := db.UUIDToString(a.PersonaID)
	workerID := db.UUIDToString(a.WorkerID)

	// Exclusivity is persona-wide: the client must not appear in any active
	// assignment's bound set for this persona, not just this one.
	existing, err := qtx.GetActiveBindingForClient(ctx, sqlc.GetActiveBindingForClientParams{
		ClientID:  clientID,
		PersonaID: a.PersonaID,
	})
	if err == nil {
		return db.UUIDToString(existing.AssignmentID) == assignmentID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("check client binding: %w", err)
	}

	resource := lock.ClientPersonaResource(clientID, personaID)
	ok, err := s.locks.Acquire(ctx, resource, workerID, lock.TypeClientPersona, s.lockTTL)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if _, err := qtx.CreateClientBinding(ctx, sqlc.CreateClientBindingParams{
		AssignmentID: pgAssignment,
		ClientID:     clientID,
		BoundAt:      db.Timestamptz(now),
	}); err != nil {
		s.releaseLock(ctx, resource)
		return false, fmt.Errorf("create binding: %w", err)
	}
	if err := qtx.TouchAssignmentActivity(ctx, sqlc.TouchAssignmentActivityParams{
		ID:           pgAssignment,
		LastActivity: db.Timestamptz(now),
	}); err != nil {
		s.releaseLock(ctx, resource)
		return false, fmt.Errorf("touch assignment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		s.releaseLock(ctx, resource)
		return false, fmt.Errorf("commit bind: %w", err)
	}

	s.timers.Start(workerID, personaID, clientID)
	s.publish(ctx, events.TypeClientAssigned, events.ClientAssigned{
		AssignmentID: assignmentID,
		WorkerID:     workerID,
		PersonaID:    personaID,
		ClientID:     clientID,
	})
	return true, nil
}

// UnbindClient removes clientID from the assignment and frees its lock.
// Idempotent.
func (s *Service) UnbindClient(ctx context.Context, assignmentID, clientID string) error {
	pgAssignment, err := db.ParseUUID(assignmentID)
	if err != nil {
		return fmt.Errorf("invalid assignment id: %w", err)
	}
	a, err := s.queries.GetAssignment(ctx, pgAssignment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("read assignment: %w", err)
	}

	if _, err := s.queries.DeactivateClientBinding(ctx, sqlc.DeactivateClientBindingParams{
		AssignmentID: pgAssignment,
		ClientID:     clientID,
		UnboundAt:    db.Timestamptz(s.clock.Now()),
	}); err != nil {
		return fmt.Errorf("unbind client: %w", err)
	}

	personaID := db.UUIDToString(a.PersonaID)
	s.timers.Cancel(db.UUIDToString(a.WorkerID), personaID, clientID)
	s.releaseLock(ctx, lock.ClientPersonaResource(clientID, personaID))
	return nil
}

// IsAssignmentActive reports whether worker still actively holds persona.
func (s *Service) IsAssignmentActive(ctx context.Context, workerID, personaID string) (bool, error) {
	pgWorker, err := db.ParseUUID(workerID)
	if err != nil {
		return false, fmt.Errorf("invalid worker id: %w", err)
	}
	pgPersona, err := db.ParseUUID(personaID)
	if err != nil {
		return false, fmt.Errorf("invalid persona id: %w", err)
	}
	_, err = s.queries.GetActiveAssignmentForWorkerPersona(ctx, sqlc.GetActiveAssignmentForWorkerPersonaParams{
		WorkerID:  pgWorker,
		PersonaID: pgPersona,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read assignment: %w", err)
	}
	return true, nil
}

// FindLeastBusyWorker picks the worker best placed to serve (client,
// persona): a holder of the persona with no conversations, then the holder
// with the fewest, then any online worker with none at all, then the online
// worker with the fewest overall. Nil when nobody is online.
func (s *Service) FindLeastBusyWorker(ctx context.Context, clientID, personaID string) (*Worker, error) {
	pgPersona, err := db.ParseUUID(personaID)
	if err != nil {
		return nil, fmt.Errorf("invalid persona id: %w", err)
	}

	holders, err := s.queries.ListPersonaHolders(ctx, pgPersona)
	if err != nil {
		return nil, fmt.Errorf("list persona holders: %w", err)
	}
	for _, h := range holders {
		w, err := s.queries.GetWorker(ctx, h.WorkerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("read worker: %w", err)
		}
		if w.IsActive && w.IsOnline {
			worker := toWorker(w)
			return &worker, nil
		}
	}

	loads, err := s.queries.ListWorkerLoads(ctx)
	if err != nil {
		return nil, fmt.Errorf("list worker loads: %w", err)
	}
	if len(loads) == 0 {
		return nil, nil
	}
	best := loads[0]
	for _, l := range loads[1:] {
		if l.Conversations < best.Conversations {
			best = l
		}
	}
	w, err := s.queries.GetWorker(ctx, best.WorkerID)
	if err != nil {
		return nil, fmt.Errorf("read worker: %w", err)
	}
	worker := toWorker(w)
	return &worker, nil
}

// AssignClientToWorker routes a client conversation: pick the least busy
// worker, grant the persona if they do not yet hold it (primary only when
// they have no primary yet), then bind the client.
func (s *Service) AssignClientToWorker(ctx context.Context, clientID, personaID string) (*Worker, error) {
	worker, err := s.FindLeastBusyWorker(ctx, clientID, personaID)
	if err != nil || worker == nil {
		return nil, err
	}

	holds, err := s.IsAssignmentActive(ctx, worker.ID, personaID)
	if err != nil {
		return nil, err
	}
	if !holds {
		pgWorker, err := db.ParseUUID(worker.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid worker id: %w", err)
		}
		actives, err := s.queries.ListActiveAssignmentsByWorker(ctx, pgWorker)
		if err != nil {
			return nil, fmt.Errorf("list worker assignments: %w", err)
		}
		hasPrimary := false
		for _, a := range actives {
			if a.IsPrimary {
				hasPrimary = true
				break
			}
		}
		granted, err := s.Grant(ctx, worker.ID, personaID, !hasPrimary)
		if err != nil {
			return nil, err
		}
		if granted == nil {
			return nil, nil
		}
	}

	pgWorker, err := db.ParseUUID(worker.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid worker id: %w", err)
	}
	pgPersona, err := db.ParseUUID(personaID)
	if err != nil {
		return nil, fmt.Errorf("invalid persona id: %w", err)
	}
	a, err := s.queries.GetActiveAssignmentForWorkerPersona(ctx, sqlc.GetActiveAssignmentForWorkerPersonaParams{
		WorkerID:  pgWorker,
		PersonaID: pgPersona,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read assignment: %w", err)
	}

	ok, err := s.BindClient(ctx, db.UUIDToString(a.ID), clientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	s.ClearPending(personaID, clientID)
	return worker, nil
}

// ReassignInactive releases every active assignment idle longer than
// threshold and returns how many assignments were reclaimed.
func (s *Service) ReassignInactive(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-threshold)
	stale, err := s.queries.ListStaleActiveAssignments(ctx, db.Timestamptz(cutoff))
	if err != nil {
		return 0, fmt.Errorf("list stale assignments: %w", err)
	}

	released := 0
	seen := map[string]bool{}
	for _, a := range stale {
		workerID := db.UUIDToString(a.WorkerID)
		if seen[workerID] {
			released++
			continue
		}
		seen[workerID] = true
		if err := s.Release(ctx, workerID); err != nil {
			return released, err
		}
		released++
	}
	return released, nil
}

// MarkActivity records worker activity on an assignment and restarts its
// inactivity countdown.
func (s *Service) MarkActivity(ctx context.Context, assignmentID string) error {
	return s.touch(ctx, assignmentID, func(id sqlc.Assignment, now time.Time) error {
		return s.queries.TouchAssignmentActivity(ctx, sqlc.TouchAssignmentActivityParams{
			ID:           id.ID,
			LastActivity: db.Timestamptz(now),
		})
	})
}

// MarkMessageSent records a worker reply; the persona's pending markers are
// cleared since the client has been answered.
func (s *Service) MarkMessageSent(ctx context.Context, assignmentID string) error {
	return s.touch(ctx, assignmentID, func(row sqlc.Assignment, now time.Time) error {
		if err := s.queries.SetAssignmentMessageSent(ctx, sqlc.SetAssignmentMessageSentParams{
			ID:              row.ID,
			LastMessageSent: db.Timestamptz(now),
		}); err != nil {
			return err
		}
		s.clearPendingForPersona(db.UUIDToString(row.PersonaID))
		return nil
	})
}

// ExtendTimer pushes the assignment's inactivity deadline out by minutes
// without counting as activity. Returns an error only when the assignment
// cannot be read or is inactive.
func (s *Service) ExtendTimer(ctx context.Context, assignmentID string, minutes int) error {
	pgAssignment, err := db.ParseUUID(assignmentID)
	if err != nil {
		return fmt.Errorf("invalid assignment id: %w", err)
	}
	row, err := s.queries.GetAssignment(ctx, pgAssignment)
	if err != nil {
		return fmt.Errorf("read assignment: %w", err)
	}
	if !row.IsActive {
		return fmt.Errorf("assignment %s is not active", assignmentID)
	}
	s.timers.Extend(db.UUIDToString(row.WorkerID), db.UUIDToString(row.PersonaID), minutes)
	return nil
}

// MarkTyping records a typing signal on an assignment.
func (s *Service) MarkTyping(ctx context.Context, assignmentID string) error {
	return s.touch(ctx, assignmentID, func(row sqlc.Assignment, now time.Time) error {
		return s.queries.SetAssignmentTyping(ctx, sqlc.SetAssignmentTypingParams{
			ID:         row.ID,
			LastTyping: db.Timestamptz(now),
		})
	})
}

func (s *Service) touch(ctx context.Context, assignmentID string, update func(sqlc.Assignment, time.Time) error) error {
	pgAssignment, err := db.ParseUUID(assignmentID)
	if err != nil {
		return fmt.Errorf("invalid assignment id: %w", err)
	}
	row, err := s.queries.GetAssignment(ctx, pgAssignment)
	if err != nil {
		return fmt.Errorf("read assignment: %w", err)
	}
	now := s.clock.Now()
	if err := update(row, now); err != nil {
		return fmt.Errorf("update assignment activity: %w", err)
	}
	workerID := db.UUIDToString(row.WorkerID)
	personaID := db.UUIDToString(row.PersonaID)
	if err := s.timers.Reset(ctx, workerID, personaID, ""); err != nil {
		s.logger.Error("reset inactivity timer", slog.String("assignment", assignmentID), slog.Any("error", err))
	}
	return nil
}

// MarkClientMessagePending flags an unanswered client message on (persona,
// client). Consulted by the queue and collision handling when preferring
// personas with waiting clients.
func (s *Service) MarkClientMessagePending(personaID, clientID string) {
	s.pending.Put(personaID+"|"+clientID, clientID, pendingTTL)
}

// ClearPending drops the pending marker for (persona, client).
func (s *Service) ClearPending(personaID, clientID string) {
	s.pending.Forget(personaID + "|" + clientID)
}

func (s *Service) clearPendingForPersona(personaID string) {
	var keys []string
	s.pending.Range(func(key string, _ string) bool {
		if strings.HasPrefix(key, personaID+"|") {
			keys = append(keys, key)
		}
		return true
	})
	for _, k := range keys {
		s.pending.Forget(k)
	}
}

// HasPendingMessages reports whether the persona has any unanswered client
// message marker.
func (s *Service) HasPendingMessages(personaID string) bool {
	found := false
	s.pending.Range(func(key string, _ string) bool {
		if strings.HasPrefix(key, personaID+"|") {
			found = true
			return false
		}
		return true
	})
	return found
}

// PendingPersonas returns the set of persona ids carrying pending markers.
func (s *Service) PendingPersonas() map[string]bool {
	out := map[string]bool{}
	s.pending.Range(func(key string, _ string) bool {
		if i := strings.IndexByte(key, '|'); i > 0 {
			out[key[:i]] = true
		}
		return true
	})
	return out
}

// AvailablePersonas lists active personas with no active assignment.
func (s *Service) AvailablePersonas(ctx context.Context) ([]string, error) {
	rows, err := s.queries.ListAvailablePersonas(ctx)
	if err != nil {
		return nil, fmt.Errorf("list available personas: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, p := range rows {
		ids = append(ids, db.UUIDToString(p.ID))
	}
	return ids, nil
}

func (s *Service) releaseLock(ctx context.Context, resource string) {
	if _, err := s.locks.Release(ctx, resource); err != nil {
		s.logger.Error("release lock", slog.String("resource", resource), slog.Any("error", err))
	}
}

func (s *Service) publish(ctx context.Context, eventType events.Type, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, events.New(eventType, s.clock.Now(), payload)); err != nil {
		s.logger.Error("publish assignment event", slog.String("type", string(eventType)), slog.Any("error", err))
	}
}
