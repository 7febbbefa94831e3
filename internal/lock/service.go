// Package lock provides exclusive, TTL-bound locks on personas and
// client-persona pairs.
//
// Acquisition runs as read-for-update then insert inside one transaction,
// backstopped by a partial unique index on unreleased rows: near-simultaneous
// claims on a resource with no existing row race to the insert, and the index
// fails the loser. A held lock is an expected outcome (false, nil), not an
// error.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatfloor/dispatch/internal/cache"
	"github.com/chatfloor/dispatch/internal/clock"
	"github.com/chatfloor/dispatch/internal/db"
	"github.com/chatfloor/dispatch/internal/db/sqlc"
	"github.com/chatfloor/dispatch/internal/events"
)

// Lock resource types.
const (
	TypePersona       = "persona"
	TypeClientPersona = "client_persona"
	TypeTimerReset    = "timer_reset"
)

// PersonaResource builds the lock resource id for a persona.
func PersonaResource(personaID string) string {
	return "persona:" + personaID
}

// ClientPersonaResource builds the lock resource id for a client-persona pair.
func ClientPersonaResource(clientID, personaID string) string {
	return "client:" + clientID + ":persona:" + personaID
}

// TimerResetResource builds the lock resource id guarding a timer reset key.
func TimerResetResource(key string) string {
	return "timer_reset:" + key
}

// Lock describes a live lock row.
type Lock struct {
	ID         string
	ResourceID string
	HolderID   string
	Type       string
	LockedAt   time.Time
	ExpiresAt  time.Time
}

// Service implements the lock manager over the durable store with a
// read-through cache fast path.
type Service struct {
	pool    *pgxpool.Pool
	queries *sqlc.Queries
	cache   *cache.Cache[string]
	clock   clock.Clock
	bus     events.Bus
	logger  *slog.Logger
}

// NewService creates a lock manager.
func NewService(log *slog.Logger, pool *pgxpool.Pool, queries *sqlc.Queries, c *cache.Cache[string], clk clock.Clock, bus events.Bus) *Service {
	if log == nil {
		log = slog.Default()
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Service{
		pool:    pool,
		queries: queries,
		cache:   c,
		clock:   clk,
		bus:     bus,
		logger:  log.With(slog.String("service", "lock")),
	}
}

// Acquire attempts to take an exclusive lock on resourceID for holderID.
// Returns (false, nil) when an unexpired lock already exists; the caller
// decides whether to retry.
func (s *Service) Acquire(ctx context.Context, resourceID, holderID, lockType string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("acquire %s: ttl must be positive", resourceID)
	}
	pgHolder, err := db.ParseUUID(holderID)
	if err != nil {
		return false, fmt.Errorf("invalid holder id: %w", err)
	}

	now := s.clock.Now()
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin acquire: %w", err)
	}
	defer tx.Rollback(ctx)
	qtx := s.queries.WithTx(tx)

	_, err = qtx.GetLiveLockForUpdate(ctx, sqlc.GetLiveLockForUpdateParams{
		ResourceID: resourceID,
		ExpiresAt:  db.Timestamptz(now),
	})
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("read lock %s: %w", resourceID, err)
	}

	// An expired row that the sweep has not caught yet still occupies the
	// unique live-resource slot; retire it before inserting.
	if _, err := qtx.ReleaseExpiredLocksForResource(ctx, sqlc.ReleaseExpiredLocksForResourceParams{
		ResourceID: resourceID,
		ReleasedAt: db.Timestamptz(now),
	}); err != nil {
		return false, fmt.Errorf("retire expired lock %s: %w", resourceID, err)
	}

	if _, err := qtx.CreateLock(ctx, sqlc.CreateLockParams{
		ResourceID: resourceID,
		HolderID:   pgHolder,
		LockType:   lockType,
		LockedAt:   db.Timestamptz(now),
		ExpiresAt:  db.Timestamptz(now.Add(ttl)),
	}); err != nil {
		// The FOR UPDATE read locks nothing when no row exists, so two first
		// acquires can both reach the insert; the unique live-resource index
		// turns the loser into ordinary contention.
		if db.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("create lock %s: %w", resourceID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit acquire %s: %w", resourceID, err)
	}

	s.cache.Put(resourceID, holderID, ttl)
	s.publish(ctx, events.LockStatusChanged{
		ResourceID: resourceID,
		HolderID:   holderID,
		Locked:     true,
	})
	return true, nil
}

// Release soft-deletes the lock on resourceID. Idempotent; returns whether a
// live lock row was actually released.
func (s *Service) Release(ctx context.Context, resourceID string) (bool, error) {
	rows, err := s.queries.ReleaseLock(ctx, sqlc.ReleaseLockParams{
		ResourceID: resourceID,
		ReleasedAt: db.Timestamptz(s.clock.Now()),
	})
	// Invalidate before reporting: the cache must never outlive the row.
	s.cache.Forget(resourceID)
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", resourceID, err)
	}
	if rows > 0 {
		s.publish(ctx, events.LockStatusChanged{ResourceID: resourceID, Locked: false})
	}
	return rows > 0, nil
}

// IsLocked reports whether resourceID currently has an unexpired lock. A live
// cache entry answers without touching storage; a miss falls through to the
// durable row.
func (s *Service) IsLocked(ctx context.Context, resourceID string) (bool, error) {
	if _, ok := s.cache.Get(resourceID); ok {
		return true, nil
	}
	now := s.clock.Now()
	row, err := s.queries.GetLiveLock(ctx, sqlc.GetLiveLockParams{
		ResourceID: resourceID,
		ExpiresAt:  db.Timestamptz(now),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check lock %s: %w", resourceID, err)
	}
	if remaining := row.ExpiresAt.Time.Sub(now); remaining > 0 {
		s.cache.Put(resourceID, db.UUIDToString(row.HolderID), remaining)
	}
	return true, nil
}

// Extend reissues the lock with a new TTL. Only the current holder may
// extend; implemented as release plus reacquire in one transaction so the
// cache entry is rebuilt rather than stretched.
func (s *Service) Extend(ctx context.Context, resourceID, holderID string, newTTL time.Duration) (bool, error) {
	if newTTL <= 0 {
		return false, fmt.Errorf("extend %s: ttl must be positive", resourceID)
	}
	pgHolder, err := db.ParseUUID(holderID)
	if err != nil {
		return false, fmt.Errorf("invalid holder id: %w", err)
	}

	now := s.clock.Now()
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin extend: %w", err)
	}
	defer tx.Rollback(ctx)
	qtx := s.queries.WithTx(tx)

	row, err := qtx.GetLiveLockForUpdate(ctx, sqlc.GetLiveLockForUpdateParams{
		ResourceID: resourceID,
		ExpiresAt:  db.Timestamptz(now),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read lock %s: %w", resourceID, err)
	}
	if db.UUIDToString(row.HolderID) != holderID {
		return false, nil
	}

	if _, err := qtx.ReleaseLock(ctx, sqlc.ReleaseLockParams{
		ResourceID: resourceID,
		ReleasedAt: db.Timestamptz(now),
		ReleaseReason: db.Text("extended"),
	}); err != nil {
		return false, fmt.Errorf("release for extend %s: %w", resourceID, err)
	}
	if _, err := qtx.CreateLock(ctx, sqlc.CreateLockParams{
		ResourceID: resourceID,
		HolderID:   pgHolder,
		LockType:   row.LockType,
		LockedAt:   db.Timestamptz(now),
		ExpiresAt:  db.Timestamptz(now.Add(newTTL)),
	}); err != nil {
		return false, fmt.Errorf("reacquire %s: %w", resourceID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit extend %s: %w", resourceID, err)
	}

	s.cache.Forget(resourceID)
	s.cache.Put(resourceID, holderID, newTTL)
	return true, nil
}

// ForceRelease releases the lock regardless of holder. Administrative path;
// emits an audited status change carrying the reason.
func (s *Service) ForceRelease(ctx context.Context, resourceID, reason string) error {
	rows, err := s.queries.ReleaseLock(ctx, sqlc.ReleaseLockParams{
		ResourceID:    resourceID,
		ReleasedAt:    db.Timestamptz(s.clock.Now()),
		ReleaseReason: db.Text(reason),
	})
	s.cache.Forget(resourceID)
	if err != nil {
		return fmt.Errorf("force release %s: %w", resourceID, err)
	}
	s.logger.Warn("lock force-released",
		slog.String("resource", resourceID),
		slog.String("reason", reason),
		slog.Int64("rows", rows),
	)
	s.publish(ctx, events.LockStatusChanged{
		ResourceID: resourceID,
		Locked:     false,
		Reason:     reason,
	})
	return nil
}

// SweepExpired soft-deletes every lock whose TTL has lapsed and returns the
// count. Runs on the maintenance cadence to keep the table tidy.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	rows, err := s.queries.ReleaseExpiredLocks(ctx, db.Timestamptz(s.clock.Now()))
	if err != nil {
		return 0, fmt.Errorf("sweep expired locks: %w", err)
	}
	return rows, nil
}

func (s *Service) publish(ctx context.Context, payload events.LockStatusChanged) {
	if s.bus == nil {
		return
	}
	evt := events.New(events.TypeLockStatusChanged, s.clock.Now(), payload)
	if err := s.bus.Publish(ctx, evt); err != nil {
		s.logger.Error("publish lock event", slog.String("resource", payload.ResourceID), slog.Any("error", err))
	}
}
