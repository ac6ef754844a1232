package mirror

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/souschef/internal/app/system"
	"github.com/R3E-Network/souschef/internal/logging"
)

// DefaultSchedule runs a sync every five minutes.
const DefaultSchedule = "@every 5m"

var _ system.Service = (*Scheduler)(nil)

// Runner is the part of Syncer the scheduler drives.
type Runner interface {
	SyncAll(ctx context.Context, mode Mode) ([]Report, error)
}

// Scheduler runs SyncAll on a cron schedule. Runs never overlap; a tick
// that fires while the previous run is still going is skipped.
type Scheduler struct {
	runner   Runner
	mode     Mode
	schedule string
	timeout  time.Duration
	log      *logging.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	runs    int
}

// NewScheduler validates schedule (standard five-field cron or @every
// descriptors) and returns a stopped scheduler.
func NewScheduler(runner Runner, mode Mode, schedule string, log *logging.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("sync runner is required")
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse sync schedule %q: %w", schedule, err)
	}
	if log == nil {
		log = logging.NewDefault("mirror-scheduler")
	}
	return &Scheduler{runner: runner, mode: mode, schedule: schedule, timeout: 2 * time.Minute, log: log}, nil
}

func (s *Scheduler) Name() string { return "mirror-scheduler" }

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.schedule, s.tick); err != nil {
		return fmt.Errorf("schedule sync: %w", err)
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.cron = c
	s.running = true
	c.Start()

	s.log.WithField("schedule", s.schedule).WithField("mode", s.mode).Info("sync scheduler started")
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c, cancel := s.cron, s.cancel
	s.running = false
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	cancel()
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("sync scheduler stopped")
	return nil
}

// RunNow performs one sync outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) ([]Report, error) {
	return s.run(ctx)
}

// Runs reports how many scheduled or manual runs have completed.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if _, err := s.run(ctx); err != nil {
		s.log.WithError(err).Warn("scheduled sync failed")
	}
}

func (s *Scheduler) run(ctx context.Context) ([]Report, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	reports, err := s.runner.SyncAll(ctx, s.mode)
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
	return reports, err
}
