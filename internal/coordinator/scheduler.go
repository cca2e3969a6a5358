package coordinator

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"accum-core/internal/domain"
)

// Runner is the part of the coordinator the scheduler needs.
type Runner interface {
	RunCycle(ctx context.Context, symbol domain.Symbol) CycleResult
}

// Scheduler fires execution cycles on fixed intervals. Each interval runs
// its own trigger loop, so a tick that lands while another cycle is in
// flight reaches the coordinator immediately and is rejected by the
// single-flight guard rather than queued behind the running cycle.
type Scheduler struct {
	runner    Runner
	symbol    domain.Symbol
	intervals []time.Duration

	triggered atomic.Int64
	skipped   atomic.Int64
}

func NewScheduler(runner Runner, symbol domain.Symbol, intervals ...time.Duration) *Scheduler {
	return &Scheduler{runner: runner, symbol: symbol, intervals: intervals}
}

// Counts reports how many triggers fired and how many of those were
// rejected because a cycle was already running.
func (s *Scheduler) Counts() (triggered, skipped int64) {
	return s.triggered.Load(), s.skipped.Load()
}

// Run blocks until the context is cancelled, triggering one cycle per tick
// per interval.
func (s *Scheduler) Run(ctx context.Context) {
	for _, iv := range s.intervals {
		go func(iv time.Duration) {
			t := time.NewTicker(iv)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					s.fire(ctx, iv)
				}
			}
		}(iv)
	}
	<-ctx.Done()
}

func (s *Scheduler) fire(ctx context.Context, iv time.Duration) {
	s.triggered.Add(1)
	res := s.runner.RunCycle(ctx, s.symbol)
	switch res.Status {
	case StatusRejected:
		s.skipped.Add(1)
		log.Printf("scheduler: %s trigger (%s) skipped: %s", s.symbol, iv, res.Reason)
	case StatusFailed:
		log.Printf("scheduler: %s cycle (%s) failed: %s", s.symbol, iv, res.Reason)
	default:
		log.Printf("scheduler: %s cycle (%s) %s action=%s reason=%s", s.symbol, iv, res.Status, res.Action, res.Reason)
	}
}
