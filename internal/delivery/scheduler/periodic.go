package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/yourusername/carpool-bot/internal/usecase"
)

// Cycle one unit of periodic work
type Cycle func(ctx context.Context) error

// Periodic fires a cycle on every tick. Cycles run on their own goroutine so a slow one never
// delays the ticker; overlapping is prevented by the use case run-lock.
type Periodic struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	cycle    Cycle
	log      *slog.Logger

	wg sync.WaitGroup
}

// NewPeriodic creates a trigger firing cycle every interval; each run is bounded by timeout
func NewPeriodic(name string, interval, timeout time.Duration, cycle Cycle, log *slog.Logger) *Periodic {
	return &Periodic{
		name:     name,
		interval: interval,
		timeout:  timeout,
		cycle:    cycle,
		log:      log.With("scheduler", name),
	}
}

// Run blocks until ctx is canceled, then waits for the in-flight cycle to finish
func (p *Periodic) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info("scheduler started", "action", "scheduler_started", "interval", p.interval.String())

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			p.log.Info("scheduler stopped", "action", "scheduler_stopped")
			return
		case <-ticker.C:
			p.Trigger(ctx)
		}
	}
}

// Trigger launches one cycle now. The cycle keeps running after ctx is canceled, up to the timeout.
func (p *Periodic) Trigger(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()

		started := time.Now()
		err := p.cycle(runCtx)
		switch {
		case errors.Is(err, usecase.ErrCycleInProgress):
			p.log.Warn("previous cycle still running, tick skipped", "action", "cycle_skipped")
		case err != nil:
			p.log.Error("cycle failed", "action", "cycle_failed", "error", err)
		default:
			p.log.Debug("cycle finished", "action", "cycle_finished", "took", time.Since(started).String())
		}
	}()
}

// Wait blocks until every launched cycle has returned
func (p *Periodic) Wait() {
	p.wg.Wait()
}
