// Package conflict detects and repairs invariant violations left behind by
// races, and resolves simultaneous capacity claims deterministically.
package conflict

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatfloor/dispatch/internal/assignment"
	"github.com/chatfloor/dispatch/internal/clock"
	"github.com/chatfloor/dispatch/internal/db"
	"github.com/chatfloor/dispatch/internal/db/sqlc"
	"github.com/chatfloor/dispatch/internal/events"
	"github.com/chatfloor/dispatch/internal/queue"
)

// Service is the conflict resolver.
type Service struct {
	pool        *pgxpool.Pool
	queries     *sqlc.Queries
	assignments *assignment.Service
	waitQueue   *queue.Service
	bus         events.Bus
	clock       clock.Clock
	logger      *slog.Logger
}

// NewService creates the conflict resolver.
func NewService(log *slog.Logger, pool *pgxpool.Pool, queries *sqlc.Queries, assignments *assignment.Service, waitQueue *queue.Service, bus events.Bus, clk clock.Clock) *Service {
	if log == nil {
		log = slog.Default()
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Service{
		pool:        pool,
		queries:     queries,
		assignments: assignments,
		waitQueue:   waitQueue,
		bus:         bus,
		clock:       clk,
		logger:      log.With(slog.String("service", "conflict")),
	}
}

// ValidateIntegrity repairs duplicate client bindings and duplicate primary
// assignments, returning the number of issues fixed. Repairs are logged and
// signaled, never raised to callers; a second consecutive run repairs
// nothing.
func (s *Service) ValidateIntegrity(ctx context.Context) (int, error) {
	issues := 0

	dupes, err := s.queries.ListDuplicateBoundPairs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list duplicate bindings: %w", err)
	}
	for _, pair := range dupes {
		repaired, err := s.repairDuplicateBinding(ctx, pair)
		if err != nil {
			return issues, err
		}
		issues += repaired
	}

	workers, err := s.queries.ListWorkersWithMultiplePrimaries(ctx)
	if err != nil {
		return issues, fmt.Errorf("list duplicate primaries: %w", err)
	}
	for _, workerID := range workers {
		repaired, err := s.repairDuplicatePrimaries(ctx, workerID)
		if err != nil {
			return issues, err
		}
		issues += repaired
	}

	if issues > 0 {
		s.logger.Warn("integrity violations repaired", slog.Int("issues", issues))
	}
	return issues, nil
}

// repairDuplicateBinding keeps the binding whose assignment has the freshest
// activity and unbinds the client everywhere else.
func (s *Service) repairDuplicateBinding(ctx context.Context, pair sqlc.ListDuplicateBoundPairsRow) (int, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin repair: %w", err)
	}
	defer tx.Rollback(ctx)
	qtx := s.queries.WithTx(tx)

	rows, err := qtx.ListActiveBindingsForPairForUpdate(ctx, sqlc.ListActiveBindingsForPairForUpdateParams{
		PersonaID: pair.PersonaID,
		ClientID:  pair.ClientID,
	})
	if err != nil {
		return 0, fmt.Errorf("lock duplicate bindings: %w", err)
	}
	if len(rows) < 2 {
		return 0, nil
	}

	now := s.clock.Now()
	// rows are ordered by assignment activity, freshest first; the head wins.
	for _, loser := range rows[1:] {
		if err := qtx.DeactivateBindingByID(ctx, sqlc.DeactivateBindingByIDParams{
			ID:        loser.ID,
			UnboundAt: db.Timestamptz(now),
		}); err != nil {
			return 0, fmt.Errorf("unbind duplicate: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit repair: %w", err)
	}

	repaired := len(rows) - 1
	for _, loser := range rows[1:] {
		s.publish(ctx, events.ConflictDetected{
			Kind:      "duplicate_client_binding",
			WorkerID:  db.UUIDToString(loser.WorkerID),
			PersonaID: db.UUIDToString(pair.PersonaID),
			ClientID:  pair.ClientID,
			Detail:    "client unbound from stale assignment",
		})
	}
	return repaired, nil
}

// repairDuplicatePrimaries keeps the most recently granted primary and
// demotes the rest.
func (s *Service) repairDuplicatePrimaries(ctx context.Context, workerID pgtype.UUID) (int, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin repair: %w", err)
	}
	defer tx.Rollback(ctx)
	qtx := s.queries.WithTx(tx)

	rows, err := qtx.ListActivePrimariesForWorkerForUpdate(ctx, workerID)
	if err != nil {
		return 0, fmt.Errorf("lock primaries: %w", err)
	}
	if len(rows) < 2 {
		return 0, nil
	}

	for _, loser := range rows[1:] {
		if err := qtx.SetAssignmentPrimary(ctx, sqlc.SetAssignmentPrimaryParams{
			ID:        loser.ID,
			IsPrimary: false,
		}); err != nil {
			return 0, fmt.Errorf("demote duplicate primary: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit repair: %w", err)
	}

	repaired := len(rows) - 1
	for _, loser := range rows[1:] {
		s.publish(ctx, events.ConflictDetected{
			Kind:      "duplicate_primary",
			WorkerID:  db.UUIDToString(workerID),
			PersonaID: db.UUIDToString(loser.PersonaID),
			Detail:    "older primary demoted",
		})
	}
	return repaired, nil
}

// HandleConnectionCollision resolves several workers requesting capacity at
// effectively the same instant. Workers are served in ascending id order so
// the outcome is reproducible regardless of arrival interleaving. Each
// worker keeps its existing assignment, else receives the next free persona
// (pending-message personas first), else joins the wait queue.
func (s *Service) HandleConnectionCollision(ctx context.Context, workerIDs, availablePersonas []string) (map[string]string, error) {
	personas := slices.Clone(availablePersonas)
	for personaID := range s.assignments.PendingPersonas() {
		if !slices.Contains(personas, personaID) {
			personas = append(personas, personaID)
		}
	}
	slices.SortStableFunc(personas, func(a, b string) int {
		ap, bp := s.assignments.HasPendingMessages(a), s.assignments.HasPendingMessages(b)
		switch {
		case ap && !bp:
			return -1
		case !ap && bp:
			return 1
		default:
			return 0
		}
	})

	ordered := slices.Clone(workerIDs)
	slices.Sort(ordered)

	result := make(map[string]string, len(ordered))
	for _, workerID := range ordered {
		pgWorker, err := db.ParseUUID(workerID)
		if err != nil {
			return nil, fmt.Errorf("invalid worker id: %w", err)
		}
		actives, err := s.queries.ListActiveAssignmentsByWorker(ctx, pgWorker)
		if err != nil {
			return nil, fmt.Errorf("list worker assignments: %w", err)
		}
		if len(actives) > 0 {
			kept := actives[0]
			for _, a := range actives {
				if a.IsPrimary {
					kept = a
					break
				}
			}
			result[workerID] = db.UUIDToString(kept.PersonaID)
			continue
		}

		granted := false
		for i, personaID := range personas {
			a, err := s.assignments.Grant(ctx, workerID, personaID, true)
			if err != nil {
				return nil, err
			}
			if a == nil {
				continue
			}
			result[workerID] = personaID
			personas = slices.Delete(personas, i, i+1)
			granted = true
			break
		}
		if !granted {
			if _, err := s.waitQueue.Enqueue(ctx, workerID, 0); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

func (s *Service) publish(ctx context.Context, payload events.ConflictDetected) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, events.New(events.TypeConflictDetected, s.clock.Now(), payload)); err != nil {
		s.logger.Error("publish conflict event", slog.String("kind", payload.Kind), slog.Any("error", err))
	}
}
