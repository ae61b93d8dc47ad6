package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"premarket-bias/internal/alerting"
	"premarket-bias/internal/credentials"
	"premarket-bias/internal/scheduler"
	"premarket-bias/internal/service"
)

// Watch generates a briefing on the configured cron schedule and delivers it
// to Telegram, or to stdout when Telegram is disabled.
func (a *App) Watch(ctx context.Context, opts WatchOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if a.Config.Schedule.Cron == "" {
		return errors.New("schedule.cron not configured")
	}

	sched, err := scheduler.New(scheduler.Options{
		Spec:       a.Config.Schedule.Cron,
		Location:   a.Config.Location(),
		RunOnStart: opts.RunOnStart || a.Config.Schedule.RunOnStart,
	}, a.Logger)
	if err != nil {
		return err
	}

	svc, closeSvc, err := a.newService(ctx)
	if err != nil {
		return err
	}
	defer closeSvc()

	notifier := a.newNotifier()
	if notifier == nil {
		a.Logger.Warn().Msg("telegram disabled; briefings go to stdout")
	}

	a.Logger.Info().Msg("starting scheduled briefings")
	err = sched.Run(ctx, func(ctx context.Context, at time.Time) error {
		res := svc.Generate(ctx, "schedule", credentials.Input{}, a.Config.ResolveModel(""))
		return a.deliver(ctx, notifier, res, opts.WithContext)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("scheduler terminated with error")
		return err
	}

	a.Logger.Info().Msg("scheduled briefings stopped")
	return nil
}

func (a *App) deliver(ctx context.Context, notifier alerting.Notifier, res service.Result, withContext bool) error {
	if notifier == nil {
		return writeResult(a.out(), res, withContext)
	}
	note := alerting.Notification{
		RunID:       res.RunID,
		GeneratedAt: res.GeneratedAt,
		Narrative:   res.Narrative.Text,
		Failed:      res.Narrative.Failed(),
		Context:     res.Context.String(),
		WithContext: withContext,
	}
	if err := notifier.Notify(ctx, note); err != nil {
		return fmt.Errorf("deliver briefing %s: %w", res.RunID, err)
	}
	return nil
}
