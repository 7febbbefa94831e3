// Package balance spreads client conversations across online workers.
//
// Rebalancing is deliberately slow-moving: one conversation per cycle, gated
// by a cooldown recorded in the cache, so load differences converge without
// conversations ping-ponging between workers.
package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chatfloor/dispatch/internal/assignment"
	"github.com/chatfloor/dispatch/internal/cache"
	"github.com/chatfloor/dispatch/internal/clock"
	"github.com/chatfloor/dispatch/internal/db"
	"github.com/chatfloor/dispatch/internal/db/sqlc"
)

const rebalanceMarkerKey = "rebalance:last"

// Status labels a worker's capacity band.
type Status string

const (
	StatusAvailable  Status = "available"
	StatusBusy       Status = "busy"
	StatusOverloaded Status = "overloaded"
)

// WorkerLoad is one online worker's conversation load and derived score.
type WorkerLoad struct {
	WorkerID      string `json:"worker_id"`
	Conversations int    `json:"conversations"`
	Score         int    `json:"score"`
	Status        Status `json:"status"`
}

// Imbalance names the pair a rebalance would move between.
type Imbalance struct {
	MostLoaded  WorkerLoad `json:"most_loaded"`
	LeastLoaded WorkerLoad `json:"least_loaded"`
}

// Mover is the slice of the assignment service a rebalance needs: grant the
// target a seat on the persona, then move the client binding across.
type Mover interface {
	GrantShared(ctx context.Context, workerID, personaID string) (*assignment.Assignment, error)
	BindClient(ctx context.Context, assignmentID, clientID string) (bool, error)
	UnbindClient(ctx context.Context, assignmentID, clientID string) error
}

// Service is the load balancer.
type Service struct {
	queries     *sqlc.Queries
	assignments Mover
	marker      *cache.Cache[time.Time]
	clock       clock.Clock
	logger      *slog.Logger

	scoreBase          int
	scorePerConvo      int
	imbalanceThreshold int
	cooldown           time.Duration
	continuityWindow   time.Duration
}

// NewService creates the load balancer.
func NewService(log *slog.Logger, queries *sqlc.Queries, assignments Mover, marker *cache.Cache[time.Time], clk clock.Clock, scoreBase, scorePerConvo, imbalanceThreshold int, cooldown, continuityWindow time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	if clk == nil {
		clk = clock.System()
	}
	if scoreBase <= 0 {
		scoreBase = 100
	}
	if scorePerConvo <= 0 {
		scorePerConvo = 20
	}
	if imbalanceThreshold <= 0 {
		imbalanceThreshold = 2
	}
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	if continuityWindow <= 0 {
		continuityWindow = 30 * time.Minute
	}
	return &Service{
		queries:            queries,
		assignments:        assignments,
		marker:             marker,
		clock:              clk,
		logger:             log.With(slog.String("service", "balance")),
		scoreBase:          scoreBase,
		scorePerConvo:      scorePerConvo,
		imbalanceThreshold: imbalanceThreshold,
		cooldown:           cooldown,
		continuityWindow:   continuityWindow,
	}
}

// Score maps an active conversation count to a 0..base capacity score.
func (s *Service) Score(conversations int) int {
	score := s.scoreBase - s.scorePerConvo*conversations
	if score < 0 {
		return 0
	}
	return score
}

// StatusFor labels a score.
func (s *Service) StatusFor(score int) Status {
	switch {
	case score > 50:
		return StatusAvailable
	case score > 20:
		return StatusBusy
	default:
		return StatusOverloaded
	}
}

// Loads returns every online worker's current load.
func (s *Service) Loads(ctx context.Context) ([]WorkerLoad, error) {
	rows, err := s.queries.ListWorkerLoads(ctx)
	if err != nil {
		return nil, fmt.Errorf("list worker loads: %w", err)
	}
	out := make([]WorkerLoad, 0, len(rows))
	for _, r := range rows {
		score := s.Score(int(r.Conversations))
		out = append(out, WorkerLoad{
			WorkerID:      db.UUIDToString(r.WorkerID),
			Conversations: int(r.Conversations),
			Score:         score,
			Status:        s.StatusFor(score),
		})
	}
	return out, nil
}

// DetectImbalance returns the move candidate pair, or nil when loads are
// within threshold or the cooldown since the last successful rebalance has
// not elapsed.
func (s *Service) DetectImbalance(ctx context.Context) (*Imbalance, error) {
	if _, cooling := s.marker.Get(rebalanceMarkerKey); cooling {
		return nil, nil
	}

	loads, err := s.Loads(ctx)
	if err != nil {
		return nil, err
	}
	if len(loads) < 2 {
		return nil, nil
	}

	most, least := loads[0], loads[0]
	for _, l := range loads[1:] {
		if l.Conversations > most.Conversations {
			most = l
		}
		if l.Conversations < least.Conversations {
			least = l
		}
	}
	if most.Conversations-least.Conversations < s.imbalanceThreshold {
		return nil, nil
	}
	return &Imbalance{MostLoaded: most, LeastLoaded: least}, nil
}

// Redistribute moves exactly one client conversation from the most-loaded to
// the least-loaded worker and records the rebalance timestamp. Reports
// whether a move happened.
func (s *Service) Redistribute(ctx context.Context) (bool, error) {
	imbalance, err := s.DetectImbalance(ctx)
	if err != nil || imbalance == nil {
		return false, err
	}
	// The threshold guarantees the source holds at least two conversations,
	// so a single move can never drain its last one.
	if imbalance.MostLoaded.Conversations < 2 {
		return false, nil
	}

	source := imbalance.MostLoaded.WorkerID
	target := imbalance.LeastLoaded.WorkerID

	pgSource, err := db.ParseUUID(source)
	if err != nil {
		return false, fmt.Errorf("invalid worker id: %w", err)
	}
	assignments, err := s.queries.ListActiveAssignmentsByWorker(ctx, pgSource)
	if err != nil {
		return false, fmt.Errorf("list source assignments: %w", err)
	}

	for _, a := range assignments {
		bindings, err := s.queries.ListActiveBindingsByAssignment(ctx, a.ID)
		if err != nil {
			return false, fmt.Errorf("list bindings: %w", err)
		}
		if len(bindings) == 0 {
			continue
		}
		binding := bindings[0]
		personaID := db.UUIDToString(a.PersonaID)

		granted, err := s.assignments.GrantShared(ctx, target, personaID)
		if err != nil {
			return false, err
		}
		if granted == nil {
			continue
		}

		sourceAssignment := db.UUIDToString(a.ID)
		if err := s.assignments.UnbindClient(ctx, sourceAssignment, binding.ClientID); err != nil {
			return false, err
		}
		bound, err := s.assignments.BindClient(ctx, granted.ID, binding.ClientID)
		if err != nil || !bound {
			// The client is unbound at this point. Put it back on the source
			// so a failed move degrades to no move instead of dropping the
			// conversation.
			restored, restoreErr := s.assignments.BindClient(ctx, sourceAssignment, binding.ClientID)
			s.logger.Warn("rebalance move failed, restoring source binding",
				slog.String("client", binding.ClientID),
				slog.String("from", source),
				slog.String("to", target),
				slog.Bool("restored", restoreErr == nil && restored),
			)
			if err != nil {
				return false, err
			}
			if restoreErr != nil {
				return false, fmt.Errorf("restore source binding: %w", restoreErr)
			}
			return false, nil
		}

		s.marker.Put(rebalanceMarkerKey, s.clock.Now(), s.cooldown)
		s.logger.Info("conversation rebalanced",
			slog.String("client", binding.ClientID),
			slog.String("from", source),
			slog.String("to", target),
			slog.String("persona", personaID),
		)
		return true, nil
	}
	return false, nil
}

// GetOptimalAssignment picks the worker for a client message: the current
// binding's worker while the conversation is fresh (continuity), otherwise
// the highest-scoring online worker.
func (s *Service) GetOptimalAssignment(ctx context.Context, clientID, personaID string) (*assignment.Worker, error) {
	pgPersona, err := db.ParseUUID(personaID)
	if err != nil {
		return nil, fmt.Errorf("invalid persona id: %w", err)
	}

	binding, err := s.queries.GetActiveBindingForClient(ctx, sqlc.GetActiveBindingForClientParams{
		ClientID:  clientID,
		PersonaID: pgPersona,
	})
	if err == nil {
		row, err := s.queries.GetAssignment(ctx, binding.AssignmentID)
		if err != nil {
			return nil, fmt.Errorf("read assignment: %w", err)
		}
		if row.IsActive && s.clock.Now().Sub(db.TimeFromPg(row.LastActivity)) <= s.continuityWindow {
			w, err := s.queries.GetWorker(ctx, row.WorkerID)
			if err != nil {
				return nil, fmt.Errorf("read worker: %w", err)
			}
			worker := assignment.Worker{ID: db.UUIDToString(w.ID), DisplayName: w.DisplayName, Online: w.IsActive && w.IsOnline}
			return &worker, nil
		}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("read binding: %w", err)
	}

	loads, err := s.Loads(ctx)
	if err != nil {
		return nil, err
	}
	if len(loads) == 0 {
		return nil, nil
	}
	best := loads[0]
	for _, l := range loads[1:] {
		if l.Score > best.Score {
			best = l
		}
	}
	pgWorker, err := db.ParseUUID(best.WorkerID)
	if err != nil {
		return nil, fmt.Errorf("invalid worker id: %w", err)
	}
	w, err := s.queries.GetWorker(ctx, pgWorker)
	if err != nil {
		return nil, fmt.Errorf("read worker: %w", err)
	}
	worker := assignment.Worker{ID: db.UUIDToString(w.ID), DisplayName: w.DisplayName, Online: w.IsActive && w.IsOnline}
	return &worker, nil
}
