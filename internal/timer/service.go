// Package timer tracks per-assignment inactivity countdowns and reclaims
// idle personas through the sweep.
//
// Entries live in a keyed in-process registry. Native delayed callbacks are
// deliberately absent: the periodic sweep is the one reclamation path, so a
// process restart can never strand a timer that only existed in a callback.
package timer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/chatfloor/dispatch/internal/clock"
	"github.com/chatfloor/dispatch/internal/events"
	"github.com/chatfloor/dispatch/internal/lock"
)

// Entry is one countdown keyed by (worker, persona[, client]).
type Entry struct {
	WorkerID    string
	PersonaID   string
	ClientID    string
	ExpiresAt   time.Time
	WarningSent bool
}

// Key returns the registry key for the entry.
func (e Entry) Key() string {
	return Key(e.WorkerID, e.PersonaID, e.ClientID)
}

// Key builds a registry key. Client is optional.
func Key(workerID, personaID, clientID string) string {
	if clientID == "" {
		return workerID + "|" + personaID
	}
	return workerID + "|" + personaID + "|" + clientID
}

// AssignmentChecker re-validates that an assignment is still active before a
// timer expiry is allowed to signal reclamation.
type AssignmentChecker interface {
	IsAssignmentActive(ctx context.Context, workerID, personaID string) (bool, error)
}

// Locker is the mutual-exclusion guard used around cancel-restart pairs.
type Locker interface {
	Acquire(ctx context.Context, resourceID, holderID, lockType string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, resourceID string) (bool, error)
}

// Service is the inactivity timer registry and sweep.
type Service struct {
	registry *xsync.Map[string, Entry]
	clock    clock.Clock
	bus      events.Bus
	locks    Locker
	checker  AssignmentChecker
	logger   *slog.Logger

	inactivityThreshold time.Duration
	warningThreshold    time.Duration
	resetGuardTTL       time.Duration
}

// NewService creates the timer service. Thresholds of zero fall back to the
// 60s/30s defaults.
func NewService(log *slog.Logger, clk clock.Clock, bus events.Bus, locks Locker, checker AssignmentChecker, inactivityThreshold, warningThreshold time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	if clk == nil {
		clk = clock.System()
	}
	if inactivityThreshold <= 0 {
		inactivityThreshold = 60 * time.Second
	}
	if warningThreshold <= 0 {
		warningThreshold = 30 * time.Second
	}
	return &Service{
		registry:            xsync.NewMap[string, Entry](),
		clock:               clk,
		bus:                 bus,
		locks:               locks,
		checker:             checker,
		logger:              log.With(slog.String("service", "timer")),
		inactivityThreshold: inactivityThreshold,
		warningThreshold:    warningThreshold,
		resetGuardTTL:       2 * time.Second,
	}
}

// SetChecker wires the assignment re-validator after construction. The timer
// registry and the assignment layer reference each other, so the checker
// arrives late; call once during boot, before the first sweep.
func (s *Service) SetChecker(checker AssignmentChecker) {
	s.checker = checker
}

// Start registers (or replaces) the countdown for the key.
func (s *Service) Start(workerID, personaID, clientID string) {
	entry := Entry{
		WorkerID:  workerID,
		PersonaID: personaID,
		ClientID:  clientID,
		ExpiresAt: s.clock.Now().Add(s.inactivityThreshold),
	}
	s.registry.Store(entry.Key(), entry)
}

// Reset cancels and restarts the countdown. The cancel-restart pair is
// guarded by a short lock on the key so two near-simultaneous activity
// signals (typing then send) cannot interleave; the loser simply skips, since
// the winner restarts the same countdown.
func (s *Service) Reset(ctx context.Context, workerID, personaID, clientID string) error {
	key := Key(workerID, personaID, clientID)
	guard := lock.TimerResetResource(key)
	ok, err := s.locks.Acquire(ctx, guard, workerID, lock.TypeTimerReset, s.resetGuardTTL)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	defer func() {
		if _, err := s.locks.Release(ctx, guard); err != nil {
			s.logger.Error("release reset guard", slog.String("key", key), slog.Any("error", err))
		}
	}()

	s.Cancel(workerID, personaID, clientID)
	s.Start(workerID, personaID, clientID)
	return nil
}

// Extend pushes every countdown for (worker, persona) forward by the given
// minutes and clears pending warnings.
func (s *Service) Extend(workerID, personaID string, minutes int) {
	if minutes <= 0 {
		return
	}
	prefix := workerID + "|" + personaID
	s.registry.Range(func(key string, entry Entry) bool {
		if key != prefix && !strings.HasPrefix(key, prefix+"|") {
			return true
		}
		entry.ExpiresAt = entry.ExpiresAt.Add(time.Duration(minutes) * time.Minute)
		entry.WarningSent = false
		s.registry.Store(key, entry)
		return true
	})
}

// Cancel removes the countdown for the key, if any.
func (s *Service) Cancel(workerID, personaID, clientID string) {
	s.registry.Delete(Key(workerID, personaID, clientID))
}

// CancelAllFor removes every countdown owned by the worker.
func (s *Service) CancelAllFor(workerID string) {
	s.registry.Range(func(key string, _ Entry) bool {
		if strings.HasPrefix(key, workerID+"|") {
			s.registry.Delete(key)
		}
		return true
	})
}

// ActiveCount returns the number of registered countdowns.
func (s *Service) ActiveCount() int {
	return s.registry.Size()
}

// Sweep walks the registry once. Expired entries whose assignment is still
// active emit InactivityDetected and are removed; entries whose assignment
// already went inactive are removed silently, so a reclamation that raced the
// sweep is never signaled twice. Entries inside the warning window emit a
// single InactivityWarning.
func (s *Service) Sweep(ctx context.Context) (expired, warned int, err error) {
	now := s.clock.Now()
	var firstErr error

	s.registry.Range(func(key string, entry Entry) bool {
		if now.After(entry.ExpiresAt) {
			active := true
			var checkErr error
			if s.checker != nil {
				active, checkErr = s.checker.IsAssignmentActive(ctx, entry.WorkerID, entry.PersonaID)
			}
			if checkErr != nil {
				// Entry stays registered; the next sweep retries instead of
				// losing the reclamation signal to a storage blip.
				if firstErr == nil {
					firstErr = checkErr
				}
				return true
			}
			s.registry.Delete(key)
			if !active {
				return true
			}
			expired++
			s.publish(ctx, events.TypeInactivityDetected, events.InactivityDetected{
				WorkerID:  entry.WorkerID,
				PersonaID: entry.PersonaID,
				ClientID:  entry.ClientID,
			})
			return true
		}

		if !entry.WarningSent && entry.ExpiresAt.Sub(now) <= s.warningThreshold {
			entry.WarningSent = true
			s.registry.Store(key, entry)
			warned++
			s.publish(ctx, events.TypeInactivityWarning, events.InactivityWarning{
				WorkerID:  entry.WorkerID,
				PersonaID: entry.PersonaID,
				ClientID:  entry.ClientID,
				ExpiresAt: entry.ExpiresAt,
			})
		}
		return true
	})

	return expired, warned, firstErr
}

func (s *Service) publish(ctx context.Context, eventType events.Type, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, events.New(eventType, s.clock.Now(), payload)); err != nil {
		s.logger.Error("publish timer event", slog.String("type", string(eventType)), slog.Any("error", err))
	}
}
