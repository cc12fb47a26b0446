package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"PegSentinel/internal/logger"
	"PegSentinel/internal/scenario"
)

// ErrBusy is returned when a run is requested while another is in progress.
var ErrBusy = errors.New("a simulation run is already in progress")

// Scheduler starts simulation runs on a cron schedule.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   *scenario.Runner
	OnResult func(*scenario.Result)
	Ctx      context.Context

	running sync.Mutex
}

// NewScheduler creates a new Scheduler. onResult may be nil.
func NewScheduler(ctx context.Context, runner *scenario.Runner, onResult func(*scenario.Result)) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Runner:   runner,
		OnResult: onResult,
		Ctx:      ctx,
	}
}

func (s *Scheduler) log() *logger.Entry {
	return logger.GetLogger().WithComponent("scheduler")
}

// Register schedules a run for every tick of spec (six fields, seconds first).
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.runTask); err != nil {
		return fmt.Errorf("register simulation task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log().Info("scheduler started")
}

// Stop stops the cron scheduler and waits for a run in progress.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log().Info("scheduler stopped")
}

// RunNow executes a run immediately (for RUN_ON_START or one-shot mode).
func (s *Scheduler) RunNow() (*scenario.Result, error) {
	if !s.running.TryLock() {
		return nil, ErrBusy
	}
	defer s.running.Unlock()

	res, err := s.Runner.Run(s.Ctx)
	if res != nil && s.OnResult != nil {
		s.OnResult(res)
	}
	return res, err
}

func (s *Scheduler) runTask() {
	s.log().Info("running scheduled simulation")
	if _, err := s.RunNow(); err != nil {
		if errors.Is(err, ErrBusy) {
			s.log().Warn("previous run still in progress, skipping tick")
			return
		}
		s.log().WithError(err).Error("scheduled simulation failed")
	}
}
