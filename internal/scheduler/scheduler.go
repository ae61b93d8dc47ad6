package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// TickFunc is invoked on every scheduled fire time.
type TickFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	// Spec is a standard five-field cron expression, optionally prefixed with
	// CRON_TZ=<zone>.
	Spec       string
	Location   *time.Location
	RunOnStart bool
}

// Scheduler drives cron-timed briefing runs.
type Scheduler struct {
	opts     Options
	schedule cron.Schedule
	logger   zerolog.Logger
}

// New parses the cron spec and constructs a Scheduler.
func New(opts Options, logger zerolog.Logger) (*Scheduler, error) {
	if opts.Spec == "" {
		return nil, errors.New("scheduler spec required")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	schedule, err := cron.ParseStandard(opts.Spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", opts.Spec, err)
	}
	return &Scheduler{
		opts:     opts,
		schedule: schedule,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Next returns the first fire time after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.opts.Location))
}

// Run blocks, invoking tick on every fire time until ctx is cancelled. A tick
// that is still running when the next one is due causes that one to be skipped.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	c := cron.New(
		cron.WithLocation(s.opts.Location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	job := cron.FuncJob(func() {
		s.execute(ctx, tick, time.Now().In(s.opts.Location))
	})
	c.Schedule(s.schedule, job)

	if s.opts.RunOnStart {
		s.execute(ctx, tick, time.Now().In(s.opts.Location))
	}

	c.Start()
	s.logger.Info().Str("spec", s.opts.Spec).Time("next", s.Next(time.Now())).Msg("scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) execute(ctx context.Context, tick TickFunc, at time.Time) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Info().Time("at", at).Msg("executing scheduled tick")
	if err := tick(ctx, at); err != nil {
		s.logger.Error().Err(err).Time("at", at).Msg("tick execution failed")
	}
}
