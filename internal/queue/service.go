// Package queue holds workers waiting for persona capacity in priority
// order.
//
// Positions are 1-based and contiguous; every mutation reorders inside the
// same transaction that changed the entries, so no observer sees a gap.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatfloor/dispatch/internal/assignment"
	"github.com/chatfloor/dispatch/internal/clock"
	"github.com/chatfloor/dispatch/internal/db"
	"github.com/chatfloor/dispatch/internal/db/sqlc"
	"github.com/chatfloor/dispatch/internal/events"
)

// waitPerSlotMinutes is the heuristic cost of one queue slot; the estimate is
// advisory, never a promise.
const waitPerSlotMinutes = 5

// Entry is a worker's place in the wait queue.
type Entry struct {
	ID                   string    `json:"id"`
	WorkerID             string    `json:"worker_id"`
	Priority             int       `json:"priority"`
	Position             int       `json:"position"`
	QueuedAt             time.Time `json:"queued_at"`
	EstimatedWaitMinutes int       `json:"estimated_wait_minutes"`
}

type positionChange struct {
	workerID string
	position int
	wait     int
}

// Service manages the durable wait queue.
type Service struct {
	pool        *pgxpool.Pool
	queries     *sqlc.Queries
	assignments *assignment.Service
	bus         events.Bus
	clock       clock.Clock
	logger      *slog.Logger

	minWaitMinutes int
	maxWaitMinutes int
}

// NewService creates the wait queue service.
func NewService(log *slog.Logger, pool *pgxpool.Pool, queries *sqlc.Queries, assignments *assignment.Service, bus events.Bus, clk clock.Clock, minWaitMinutes, maxWaitMinutes int) *Service {
	if log == nil {
		log = slog.Default()
	}
	if clk == nil {
		clk = clock.System()
	}
	if minWaitMinutes <= 0 {
		minWaitMinutes = 1
	}
	if maxWaitMinutes <= 0 {
		maxWaitMinutes = 30
	}
	return &Service{
		pool:           pool,
		queries:        queries,
		assignments:    assignments,
		bus:            bus,
		clock:          clk,
		logger:         log.With(slog.String("service", "queue")),
		minWaitMinutes: minWaitMinutes,
		maxWaitMinutes: maxWaitMinutes,
	}
}

// Enqueue places workerID on the queue. A worker already queued keeps its
// spot; its priority can only ever be raised, never lowered. The whole queue
// reorders afterwards.
func (s *Service) Enqueue(ctx context.Context, workerID string, priority int) (*Entry, error) {
	pgWorker, err := db.ParseUUID(workerID)
	if err != nil {
		return nil, fmt.Errorf("invalid worker id: %w", err)
	}

	now := s.clock.Now()
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin enqueue: %w", err)
	}
	defer tx.Rollback(ctx)
	qtx := s.queries.WithTx(tx)

	estimate, err := s.estimateWait(ctx, qtx)
	if err != nil {
		return nil, err
	}

	var row sqlc.QueueEntry
	existing, err := qtx.GetActiveQueueEntryByWorkerForUpdate(ctx, pgWorker)
	switch {
	case err == nil:
		if int32(priority) > existing.Priority {
			row, err = qtx.UpdateQueueEntryPriority(ctx, sqlc.UpdateQueueEntryPriorityParams{
				ID:                   existing.ID,
				Priority:             int32(priority),
				EstimatedWaitMinutes: int32(estimate),
			})
			if err != nil {
				return nil, fmt.Errorf("raise priority: %w", err)
			}
		} else {
			// The queue may have grown or shrunk since the worker first
			// joined; keep the stored estimate current even when priority
			// stays put.
			row, err = qtx.UpdateQueueEntryEstimate(ctx, sqlc.UpdateQueueEntryEstimateParams{
				ID:                   existing.ID,
				EstimatedWaitMinutes: int32(estimate),
			})
			if err != nil {
				return nil, fmt.Errorf("refresh estimate: %w", err)
			}
		}
	case errors.Is(err, pgx.ErrNoRows):
		row, err = qtx.CreateQueueEntry(ctx, sqlc.CreateQueueEntryParams{
			WorkerID:             pgWorker,
			Priority:             int32(priority),
			Position:             0,
			QueuedAt:             db.Timestamptz(now),
			EstimatedWaitMinutes: int32(estimate),
		})
		if err != nil {
			return nil, fmt.Errorf("create queue entry: %w", err)
		}
	default:
		return nil, fmt.Errorf("read queue entry: %w", err)
	}

	changes, position, err := s.reorderLocked(ctx, qtx, db.UUIDToString(row.ID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit enqueue: %w", err)
	}
	s.publishChanges(ctx, changes)

	entry := toEntry(row)
	entry.Position = position
	return &entry, nil
}

// Reorder rebuilds contiguous 1-based positions by (priority desc, queued_at
// asc) and emits a position change for every entry that moved.
func (s *Service) Reorder(ctx context.Context) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer tx.Rollback(ctx)
	qtx := s.queries.WithTx(tx)

	changes, _, err := s.reorderLocked(ctx, qtx, "")
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	s.publishChanges(ctx, changes)
	return nil
}

// Leave removes workerID from the queue explicitly; entries behind it move
// up.
func (s *Service) Leave(ctx context.Context, workerID string) error {
	pgWorker, err := db.ParseUUID(workerID)
	if err != nil {
		return fmt.Errorf("invalid worker id: %w", err)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin leave: %w", err)
	}
	defer tx.Rollback(ctx)
	qtx := s.queries.WithTx(tx)

	if _, err := qtx.LeaveQueue(ctx, sqlc.LeaveQueueParams{
		WorkerID: pgWorker,
		LeftAt:   db.Timestamptz(s.clock.Now()),
	}); err != nil {
		return fmt.Errorf("leave queue: %w", err)
	}
	changes, _, err := s.reorderLocked(ctx, qtx, "")
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit leave: %w", err)
	}
	s.publishChanges(ctx, changes)
	return nil
}

// ProcessQueue walks queued workers in priority order and tries to grant
// each one an available persona, preferring personas with a pending
// unanswered client message. Granted workers leave the queue; the rest stay.
func (s *Service) ProcessQueue(ctx context.Context) (int, error) {
	entries, err := s.queries.ListActiveQueueEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("list queue entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	granted := 0
	for _, e := range entries {
		workerID := db.UUIDToString(e.WorkerID)

		personas, err := s.assignments.AvailablePersonas(ctx)
		if err != nil {
			return granted, err
		}
		if len(personas) == 0 {
			break
		}
		ordered := make([]string, 0, len(personas))
		var rest []string
		for _, p := range personas {
			if s.assignments.HasPendingMessages(p) {
				ordered = append(ordered, p)
			} else {
				rest = append(rest, p)
			}
		}
		ordered = append(ordered, rest...)

		for _, personaID := range ordered {
			a, err := s.assignments.Grant(ctx, workerID, personaID, true)
			if err != nil {
				return granted, err
			}
			if a == nil {
				continue
			}
			if err := s.Leave(ctx, workerID); err != nil {
				return granted, err
			}
			granted++
			break
		}
	}
	return granted, nil
}

// Entries returns the live queue in position order.
func (s *Service) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.queries.ListActiveQueueEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, toEntry(r))
	}
	return out, nil
}

// reorderLocked recomputes positions with all live entries locked. Returns
// the emitted changes and, when trackID is set, that entry's new position.
func (s *Service) reorderLocked(ctx context.Context, qtx *sqlc.Queries, trackID string) ([]positionChange, int, error) {
	rows, err := qtx.ListActiveQueueEntriesForUpdate(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("lock queue entries: %w", err)
	}

	var changes []positionChange
	tracked := 0
	for i, row := range rows {
		position := int32(i + 1)
		if trackID != "" && db.UUIDToString(row.ID) == trackID {
			tracked = int(position)
		}
		if row.Position == position {
			continue
		}
		if err := qtx.UpdateQueueEntryPosition(ctx, sqlc.UpdateQueueEntryPositionParams{
			ID:       row.ID,
			Position: position,
		}); err != nil {
			return nil, 0, fmt.Errorf("update position: %w", err)
		}
		changes = append(changes, positionChange{
			workerID: db.UUIDToString(row.WorkerID),
			position: int(position),
			wait:     int(row.EstimatedWaitMinutes),
		})
	}
	return changes, tracked, nil
}

// estimateWait derives the advisory wait in minutes from queue depth and
// free persona capacity, clamped to the configured bounds.
func (s *Service) estimateWait(ctx context.Context, qtx *sqlc.Queries) (int, error) {
	entries, err := qtx.ListActiveQueueEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("count queue: %w", err)
	}
	available, err := qtx.CountAvailablePersonas(ctx)
	if err != nil {
		return 0, fmt.Errorf("count available personas: %w", err)
	}
	if available < 1 {
		available = 1
	}
	estimate := waitPerSlotMinutes * (len(entries) + 1) / int(available)
	if estimate < s.minWaitMinutes {
		estimate = s.minWaitMinutes
	}
	if estimate > s.maxWaitMinutes {
		estimate = s.maxWaitMinutes
	}
	return estimate, nil
}

func (s *Service) publishChanges(ctx context.Context, changes []positionChange) {
	if s.bus == nil {
		return
	}
	for _, c := range changes {
		evt := events.New(events.TypeQueuePositionChanged, s.clock.Now(), events.QueuePositionChanged{
			WorkerID:             c.workerID,
			Position:             c.position,
			EstimatedWaitMinutes: c.wait,
		})
		if err := s.bus.Publish(ctx, evt); err != nil {
			s.logger.Error("publish queue event", slog.String("worker", c.workerID), slog.Any("error", err))
		}
	}
}

func toEntry(row sqlc.QueueEntry) Entry {
	return Entry{
		ID:                   db.UUIDToString(row.ID),
		WorkerID:             db.UUIDToString(row.WorkerID),
		Priority:             int(row.Priority),
		Position:             int(row.Position),
		QueuedAt:             db.TimeFromPg(row.QueuedAt),
		EstimatedWaitMinutes: int(row.EstimatedWaitMinutes),
	}
}
