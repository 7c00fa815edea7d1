package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driven"
	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driving"
)

const (
	// DefaultCleanupSchedule purges expired OAuth states.
	DefaultCleanupSchedule = "@every 5m"

	// DefaultSweepSchedule refreshes installations nearing expiry.
	DefaultSweepSchedule = "@every 1m"

	maintenanceLockName = "maintenance"
)

// Scheduler runs periodic maintenance on cron schedules.
// It purges expired OAuth states and proactively refreshes installations so
// that proxied requests rarely pay for a refresh round trip.
//
// For multi-instance deployments, configure a DistributedLock so that only one
// instance runs each cycle.
type Scheduler struct {
	states        driven.OAuthStateStore
	installations driven.InstallationStore
	tokens        driving.TokenService
	lock          driven.DistributedLock
	logger        *slog.Logger

	cleanupSpec string
	sweepSpec   string
	lockTTL     time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	OAuthStateStore   driven.OAuthStateStore   // Optional: no cleanup job when nil
	InstallationStore driven.InstallationStore // Optional with TokenService: no sweep job when nil
	TokenService      driving.TokenService
	Lock              driven.DistributedLock // Optional: distributed lock for multi-instance coordination
	Logger            *slog.Logger

	CleanupSchedule string        // cron spec (default: every 5m)
	SweepSchedule   string        // cron spec (default: every 1m); "-" disables the sweep
	LockTTL         time.Duration // TTL for the distributed lock (default: 60s)
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cleanupSpec := cfg.CleanupSchedule
	if cleanupSpec == "" {
		cleanupSpec = DefaultCleanupSchedule
	}

	sweepSpec := cfg.SweepSchedule
	if sweepSpec == "" {
		sweepSpec = DefaultSweepSchedule
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 60 * time.Second
	}

	return &Scheduler{
		states:        cfg.OAuthStateStore,
		installations: cfg.InstallationStore,
		tokens:        cfg.TokenService,
		lock:          cfg.Lock,
		logger:        logger,
		cleanupSpec:   cleanupSpec,
		sweepSpec:     sweepSpec,
		lockTTL:       lockTTL,
	}
}

// Start registers the maintenance jobs and starts the cron runner.
// Jobs run with ctx until Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if s.states != nil {
		if _, err := c.AddFunc(s.cleanupSpec, func() { _ = s.CleanupStates(ctx) }); err != nil {
			return fmt.Errorf("invalid cleanup schedule %q: %w", s.cleanupSpec, err)
		}
	}
	if s.sweepSpec != "-" && s.installations != nil && s.tokens != nil {
		if _, err := c.AddFunc(s.sweepSpec, func() { _, _ = s.SweepTokens(ctx) }); err != nil {
			return fmt.Errorf("invalid sweep schedule %q: %w", s.sweepSpec, err)
		}
	}

	c.Start()
	s.cron = c
	s.running = true

	s.logger.Info("scheduler starting",
		"cleanup_schedule", s.cleanupSpec,
		"sweep_schedule", s.sweepSpec,
		"jobs", len(c.Entries()),
	)
	return nil
}

// Stop stops the cron runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	c := s.cron
	s.running = false
	s.mu.Unlock()

	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// CleanupStates purges expired OAuth states.
func (s *Scheduler) CleanupStates(ctx context.Context) error {
	if s.states == nil {
		return nil
	}

	return s.withLock(ctx, "cleanup", func() error {
		if err := s.states.Cleanup(ctx); err != nil {
			s.logger.Error("failed to clean up oauth states", "error", err)
			return err
		}
		s.logger.Debug("cleaned up expired oauth states")
		return nil
	})
}

// SweepTokens asks the token service for a fresh token for every current,
// refreshable installation. Tokens outside the refresh window are left alone
// by EnsureFresh, so only due installations cost a round trip.
// Returns how many installations were checked.
func (s *Scheduler) SweepTokens(ctx context.Context) (int, error) {
	if s.installations == nil || s.tokens == nil {
		return 0, nil
	}

	checked := 0
	err := s.withLock(ctx, "sweep", func() error {
		installations, err := s.installations.List(ctx)
		if err != nil {
			s.logger.Error("failed to list installations for sweep", "error", err)
			return err
		}

		for _, inst := range installations {
			if inst.IsSuperseded() || !inst.CanRefresh() {
				continue
			}
			checked++
			if _, err := s.tokens.EnsureFresh(ctx, inst.ID); err != nil {
				s.logger.Warn("background refresh failed",
					"installation_id", inst.ID,
					"location_id", inst.LocationID,
					"error", err,
				)
			}
		}
		return nil
	})
	return checked, err
}

// withLock runs fn while holding the named maintenance lock, if one is configured.
// A cycle is skipped when another instance holds the lock.
func (s *Scheduler) withLock(ctx context.Context, job string, fn func() error) error {
	if s.lock == nil {
		return fn()
	}

	name := maintenanceLockName + ":" + job
	acquired, err := s.lock.Acquire(ctx, name, s.lockTTL)
	if err != nil {
		s.logger.Warn("failed to acquire scheduler lock", "job", job, "error", err)
		return err
	}
	if !acquired {
		s.logger.Debug("scheduler lock held by another instance, skipping cycle", "job", job)
		return nil
	}
	defer func() {
		if err := s.lock.Release(ctx, name); err != nil {
			s.logger.Warn("failed to release scheduler lock", "job", job, "error", err)
		}
	}()

	return fn()
}
