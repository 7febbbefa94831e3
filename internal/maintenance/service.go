// Package maintenance drives the periodic background work: inactivity
// sweeps, queue processing, rebalancing, integrity validation, and lock
// cleanup. Jobs also run on demand so an external scheduler or operator can
// trigger them between ticks.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chatfloor/dispatch/internal/assignment"
	"github.com/chatfloor/dispatch/internal/balance"
	"github.com/chatfloor/dispatch/internal/config"
	"github.com/chatfloor/dispatch/internal/conflict"
	"github.com/chatfloor/dispatch/internal/lock"
	"github.com/chatfloor/dispatch/internal/queue"
	"github.com/chatfloor/dispatch/internal/timer"
)

// SweepReport summarizes one inactivity sweep pass.
type SweepReport struct {
	Expired       int `json:"expired"`
	Warned        int `json:"warned"`
	Reassigned    int `json:"reassigned"`
	LocksReleased int `json:"locks_released"`
}

type Service struct {
	cfg         config.DispatchConfig
	timers      *timer.Service
	assignments *assignment.Service
	waitQueue   *queue.Service
	balancer    *balance.Service
	resolver    *conflict.Service
	locks       *lock.Service
	logger      *slog.Logger

	cron *cron.Cron
	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

func NewService(log *slog.Logger, cfg config.DispatchConfig, timers *timer.Service, assignments *assignment.Service, waitQueue *queue.Service, balancer *balance.Service, resolver *conflict.Service, locks *lock.Service) *Service {
	if log == nil {
		log = slog.Default()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Service{
		cfg:         cfg,
		timers:      timers,
		assignments: assignments,
		waitQueue:   waitQueue,
		balancer:    balancer,
		resolver:    resolver,
		locks:       locks,
		logger:      log.With(slog.String("service", "maintenance")),
		cron:        cron.New(cron.WithParser(parser)),
		jobs:        map[string]cron.EntryID{},
	}
}

// Start registers the periodic jobs and begins ticking.
func (s *Service) Start() error {
	jobs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context)
	}{
		{"sweep", time.Duration(s.cfg.SweepIntervalSeconds) * time.Second, func(ctx context.Context) {
			if _, err := s.RunSweep(ctx); err != nil {
				s.logger.Error("sweep failed", slog.Any("error", err))
			}
		}},
		{"queue", time.Duration(s.cfg.QueueIntervalSeconds) * time.Second, func(ctx context.Context) {
			if _, err := s.RunQueue(ctx); err != nil {
				s.logger.Error("queue processing failed", slog.Any("error", err))
			}
		}},
		{"rebalance", time.Duration(s.cfg.RebalanceIntervalSeconds) * time.Second, func(ctx context.Context) {
			if _, err := s.RunRebalance(ctx); err != nil {
				s.logger.Error("rebalance failed", slog.Any("error", err))
			}
		}},
		{"integrity", time.Duration(s.cfg.IntegrityIntervalSeconds) * time.Second, func(ctx context.Context) {
			if _, err := s.RunIntegrity(ctx); err != nil {
				s.logger.Error("integrity check failed", slog.Any("error", err))
			}
		}},
	}
	for _, job := range jobs {
		run := job.run
		entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %s", job.interval), func() {
			run(context.Background())
		})
		if err != nil {
			return fmt.Errorf("schedule %s job: %w", job.name, err)
		}
		s.mu.Lock()
		s.jobs[job.name] = entryID
		s.mu.Unlock()
	}
	s.cron.Start()
	s.logger.Info("maintenance started", slog.Int("jobs", len(jobs)))
	return nil
}

// Stop halts the ticker and waits for running jobs to finish.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("maintenance stopped")
}

// RunSweep expires idle timers, reclaims assignments that went stale in the
// store, and drops expired lock rows.
func (s *Service) RunSweep(ctx context.Context) (SweepReport, error) {
	report := SweepReport{}
	expired, warned, err := s.timers.Sweep(ctx)
	if err != nil {
		return report, fmt.Errorf("sweep timers: %w", err)
	}
	report.Expired = expired
	report.Warned = warned

	reassigned, err := s.assignments.ReassignInactive(ctx, s.cfg.InactivityThreshold())
	if err != nil {
		return report, fmt.Errorf("reassign inactive: %w", err)
	}
	report.Reassigned = reassigned

	released, err := s.locks.SweepExpired(ctx)
	if err != nil {
		return report, fmt.Errorf("sweep locks: %w", err)
	}
	report.LocksReleased = int(released)

	if report.Expired > 0 || report.Reassigned > 0 || report.LocksReleased > 0 {
		s.logger.Info("sweep completed",
			slog.Int("expired", report.Expired),
			slog.Int("warned", report.Warned),
			slog.Int("reassigned", report.Reassigned),
			slog.Int("locks_released", report.LocksReleased))
	}
	return report, nil
}

// RunQueue serves waiting workers from freed capacity.
func (s *Service) RunQueue(ctx context.Context) (int, error) {
	served, err := s.waitQueue.ProcessQueue(ctx)
	if err != nil {
		return 0, fmt.Errorf("process queue: %w", err)
	}
	if served > 0 {
		s.logger.Info("queue processed", slog.Int("served", served))
	}
	return served, nil
}

// RunRebalance moves at most one conversation off the busiest worker.
func (s *Service) RunRebalance(ctx context.Context) (bool, error) {
	moved, err := s.balancer.Redistribute(ctx)
	if err != nil {
		return false, fmt.Errorf("redistribute: %w", err)
	}
	if moved {
		s.logger.Info("rebalance moved a conversation")
	}
	return moved, nil
}

// RunIntegrity repairs invariant violations and reports how many were found.
func (s *Service) RunIntegrity(ctx context.Context) (int, error) {
	issues, err := s.resolver.ValidateIntegrity(ctx)
	if err != nil {
		return issues, fmt.Errorf("validate integrity: %w", err)
	}
	return issues, nil
}
