// Package cron provides cron-based scheduling for housekeeping jobs.
//
// The CronTrigger type runs a Job according to a cron schedule.
// It is designed to be started once and run until the context is cancelled.
//
// Example usage:
//
//	trigger, err := cron.NewCronTrigger("*/5 * * * *", sweep, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	trigger.Start(ctx)  // Returns immediately, runs in background
//	<-ctx.Done()        // Wait for shutdown signal
package cron

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/robfig/cron/v3"
)

// ErrInvalidCronSpec is returned when the cron specification cannot be parsed.
var ErrInvalidCronSpec = errors.New("invalid cron spec")

// Job is the work a trigger runs on each tick.
type Job func() error

// CronTrigger executes a Job according to a cron schedule.
type CronTrigger struct {
	spec     string
	schedule cron.Schedule
	job      Job
	logger   *slog.Logger
	clock    clock.Clock
	runs     atomic.Int64
}

// Option configures a CronTrigger.
type Option func(*CronTrigger)

// WithClock sets the clock the schedule is evaluated against.
func WithClock(c clock.Clock) Option {
	return func(ct *CronTrigger) {
		ct.clock = c
	}
}

// NewCronTrigger creates a new CronTrigger with the given cron specification.
// The spec follows standard cron format (5 fields: minute, hour, day, month, weekday).
// Returns ErrInvalidCronSpec if the expression cannot be parsed.
func NewCronTrigger(spec string, job Job, logger *slog.Logger, opts ...Option) (*CronTrigger, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronSpec, err)
	}

	ct := &CronTrigger{
		spec:     spec,
		schedule: schedule,
		job:      job,
		logger:   logger,
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(ct)
	}
	return ct, nil
}

// Start launches a goroutine that runs the job according to the cron schedule.
// Returns immediately. The goroutine exits when ctx is cancelled.
func (ct *CronTrigger) Start(ctx context.Context) {
	go ct.loop(ctx)
}

// NextRun returns the next scheduled run time from now.
func (ct *CronTrigger) NextRun() time.Time {
	return ct.schedule.Next(ct.clock.Now())
}

// Runs returns how many times the job has run.
func (ct *CronTrigger) Runs() int64 {
	return ct.runs.Load()
}

// loop is the main scheduling loop that runs in a goroutine.
func (ct *CronTrigger) loop(ctx context.Context) {
	for {
		nextRun := ct.NextRun()
		waitDuration := nextRun.Sub(ct.clock.Now())

		ct.logger.Debug("waiting for next scheduled run",
			"next_run", nextRun,
			"wait_duration", waitDuration,
		)

		select {
		case <-ctx.Done():
			ct.logger.Info("cron trigger shutting down")
			return
		case <-ct.clock.After(waitDuration):
			ct.executeRun()
		}
	}
}

// executeRun executes the job and logs the result.
func (ct *CronTrigger) executeRun() {
	ct.logger.Debug("starting scheduled run", "spec", ct.spec)

	err := ct.job()
	ct.runs.Add(1)
	if err != nil {
		ct.logger.Warn("scheduled run completed with error", "error", err)
	} else {
		ct.logger.Debug("scheduled run completed successfully")
	}
}
